// Package statestore provides the key-value state store the statistics
// engine reads prior state from and writes merged updates to. Values are
// JSON documents; Update performs a shallow object merge so callers can
// patch individual fields without rewriting the whole document.
package statestore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Well-known state keys.
const (
	KeyStats      = "stats"
	KeyDiaryStats = "diary-stats"
)

// Store is a key-value store with partial-merge update semantics.
type Store interface {
	// Get returns the stored document for key, with ok=false on absence.
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)

	// Set stores the document for key, replacing any previous value.
	Set(ctx context.Context, key string, value json.RawMessage) error

	// Update merges the fields of partial into the stored document.
	// A missing key behaves like Set.
	Update(ctx context.Context, key string, partial json.RawMessage) error
}

// mergeDocuments shallow-merges the top-level fields of partial into base.
// Non-object documents are replaced wholesale.
func mergeDocuments(base, partial json.RawMessage) (json.RawMessage, error) {
	if len(base) == 0 {
		return partial, nil
	}

	var baseObj, partialObj map[string]json.RawMessage
	if err := json.Unmarshal(base, &baseObj); err != nil {
		// Stored value is not an object; the partial replaces it.
		return partial, nil
	}
	if err := json.Unmarshal(partial, &partialObj); err != nil {
		return nil, fmt.Errorf("update value is not a JSON object: %w", err)
	}

	for k, v := range partialObj {
		baseObj[k] = v
	}

	merged, err := json.Marshal(baseObj)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged document: %w", err)
	}
	return merged, nil
}

// SetJSON marshals value and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal state %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// GetJSON loads the document for key into out. Returns false when the key
// is absent.
func GetJSON(ctx context.Context, s Store, key string, out any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("failed to unmarshal state %s: %w", key, err)
	}
	return true, nil
}
