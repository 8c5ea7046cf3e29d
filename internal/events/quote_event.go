package events

import "github.com/readerbot/statskit/internal/reader"

// ChangeType is the kind of quote mutation being signalled.
type ChangeType string

const (
	QuoteAdded   ChangeType = "added"
	QuoteDeleted ChangeType = "deleted"
	QuoteEdited  ChangeType = "edited"
)

// QuoteChange is the payload published on TopicQuotesChanged by whatever
// part of the application mutates quotes.
//
// For deletes the two flags select the handler path: Optimistic marks a
// delete applied locally before server confirmation, Reverted undoes an
// optimistic delete whose server call failed. A delete with neither flag
// is already confirmed and only needs a cache flush plus silent refresh.
type QuoteChange struct {
	Type       ChangeType
	QuoteID    string
	Quote      *reader.Quote
	Optimistic bool
	Reverted   bool
}
