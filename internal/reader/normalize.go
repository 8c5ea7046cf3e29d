package reader

import (
	"encoding/json"
	"fmt"
	"time"
)

// The Reader backend has shipped several envelope shapes over time:
// {"data":{"quotes":[...]}}, {"data":[...]}, {"items":[...]}, and bare
// arrays or objects. These helpers normalize all of them into the strict
// types the rest of the engine uses, so the tolerance lives in exactly one
// seam instead of every call site.

// envelope covers the known wrapper shapes.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Items json.RawMessage `json:"items"`
}

// innerList covers wrappers that nest the list one level deeper.
type innerList struct {
	Quotes json.RawMessage `json:"quotes"`
	Items  json.RawMessage `json:"items"`
}

// unwrapList digs the JSON array out of any known envelope shape.
func unwrapList(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if raw[0] == '[' {
		return raw
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil
	}
	if len(env.Items) > 0 {
		return unwrapList(env.Items)
	}
	if len(env.Data) > 0 {
		if env.Data[0] == '[' {
			return env.Data
		}
		var inner innerList
		if err := json.Unmarshal(env.Data, &inner); err == nil {
			if len(inner.Quotes) > 0 {
				return inner.Quotes
			}
			if len(inner.Items) > 0 {
				return inner.Items
			}
		}
	}
	return nil
}

// unwrapObject returns the inner object for {"data":{...}} envelopes, or
// the payload itself when it is already the object.
func unwrapObject(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && env.Data[0] == '{' {
		return env.Data
	}
	return raw
}

// rawQuote accepts every field spelling the backend has used for quotes.
type rawQuote struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Author     string `json:"author"`
	Source     string `json:"source"`
	CreatedAt  string `json:"createdAt"`
	DateAdded  string `json:"dateAdded"`
	IsFavorite bool   `json:"isFavorite"`
	Favorite   bool   `json:"favorite"`
}

func normalizeQuotes(raw json.RawMessage) ([]Quote, error) {
	list := unwrapList(raw)
	if list == nil {
		return []Quote{}, nil
	}

	var rawQuotes []rawQuote
	if err := json.Unmarshal(list, &rawQuotes); err != nil {
		return nil, fmt.Errorf("failed to decode quotes payload: %w", err)
	}

	quotes := make([]Quote, 0, len(rawQuotes))
	for _, rq := range rawQuotes {
		quotes = append(quotes, Quote{
			ID:         rq.ID,
			Text:       rq.Text,
			Author:     rq.Author,
			Source:     rq.Source,
			CreatedAt:  parseQuoteTime(rq.CreatedAt, rq.DateAdded),
			IsFavorite: rq.IsFavorite || rq.Favorite,
		})
	}
	return quotes, nil
}

// parseQuoteTime prefers createdAt and falls back to dateAdded; both RFC
// 3339 and date-only spellings occur in the wild.
func parseQuoteTime(createdAt, dateAdded string) time.Time {
	for _, candidate := range []string{createdAt, dateAdded} {
		if candidate == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, candidate); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// rawStats accepts every field spelling for the main stats document.
type rawStats struct {
	TotalQuotes           *int `json:"totalQuotes"`
	Total                 *int `json:"total"`
	CurrentStreak         *int `json:"currentStreak"`
	Streak                *int `json:"streak"`
	DaysInApp             *int `json:"daysInApp"`
	DaysSinceRegistration *int `json:"daysSinceRegistration"`
}

func normalizeStats(raw json.RawMessage) (*Stats, error) {
	obj := unwrapObject(raw)
	if obj == nil {
		return nil, fmt.Errorf("empty stats payload")
	}

	var rs rawStats
	if err := json.Unmarshal(obj, &rs); err != nil {
		return nil, fmt.Errorf("failed to decode stats payload: %w", err)
	}

	return &Stats{
		TotalQuotes:   firstInt(rs.TotalQuotes, rs.Total),
		CurrentStreak: firstInt(rs.CurrentStreak, rs.Streak),
		DaysInApp:     firstInt(rs.DaysInApp, rs.DaysSinceRegistration),
	}, nil
}

func normalizeActivityPercent(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("empty activity payload")
	}

	// Bare number.
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n), nil
	}

	var body struct {
		Percent *float64 `json:"percent"`
		Data    *struct {
			Percent *float64 `json:"percent"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return 0, fmt.Errorf("failed to decode activity payload: %w", err)
	}
	if body.Percent != nil {
		return int(*body.Percent), nil
	}
	if body.Data != nil && body.Data.Percent != nil {
		return int(*body.Data.Percent), nil
	}
	return 0, fmt.Errorf("activity payload carries no percent field")
}

func normalizeTopBooks(raw json.RawMessage) ([]TopBook, error) {
	list := unwrapList(raw)
	if list == nil {
		return []TopBook{}, nil
	}

	var books []TopBook
	if err := json.Unmarshal(list, &books); err != nil {
		return nil, fmt.Errorf("failed to decode top books payload: %w", err)
	}
	return books, nil
}

func firstInt(candidates ...*int) int {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return 0
}
