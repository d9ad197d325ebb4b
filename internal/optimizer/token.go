package optimizer

import "sync/atomic"

// Token is a shared cancellation flag. The driver polls it at generation
// boundaries; cancelling guarantees only that no further generations start.
type Token struct {
	cancelled atomic.Bool
}

// NewToken returns a fresh, uncancelled token.
func NewToken() *Token {
	return &Token{}
}

// Cancel trips the flag. Safe to call from any goroutine, idempotent.
func (t *Token) Cancel() {
	t.cancelled.Store(true)
}

// Cancelled reports whether the token has been tripped. A nil token is
// never cancelled.
func (t *Token) Cancelled() bool {
	if t == nil {
		return false
	}
	return t.cancelled.Load()
}
