package stats

import (
	"sync"

	"github.com/readerbot/statskit/internal/reader"
)

// QuoteList is the locally held quote list: the fallback data source when
// the API is unavailable and the input for recomputing optimistic stats
// after an edit. The application keeps it in sync via the mutation events.
type QuoteList struct {
	mu     sync.RWMutex
	quotes []reader.Quote
}

// NewQuoteList creates an empty list.
func NewQuoteList() *QuoteList {
	return &QuoteList{}
}

// Replace swaps the whole list.
func (l *QuoteList) Replace(quotes []reader.Quote) {
	l.mu.Lock()
	l.quotes = append([]reader.Quote(nil), quotes...)
	l.mu.Unlock()
}

// Add appends a quote.
func (l *QuoteList) Add(q reader.Quote) {
	l.mu.Lock()
	l.quotes = append(l.quotes, q)
	l.mu.Unlock()
}

// Remove drops the quote with the given ID, if present.
func (l *QuoteList) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, q := range l.quotes {
		if q.ID == id {
			l.quotes = append(l.quotes[:i], l.quotes[i+1:]...)
			return
		}
	}
}

// Upsert replaces the quote with the same ID, or appends it.
func (l *QuoteList) Upsert(q reader.Quote) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, existing := range l.quotes {
		if existing.ID == q.ID {
			l.quotes[i] = q
			return
		}
	}
	l.quotes = append(l.quotes, q)
}

// Quotes returns a copy of the list.
func (l *QuoteList) Quotes() []reader.Quote {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]reader.Quote(nil), l.quotes...)
}

// Len returns the number of locally held quotes.
func (l *QuoteList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.quotes)
}
