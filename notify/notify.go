// Package notify is the user-notification port. The transport and mutation
// layers report classified failures through it; the embedding application
// decides how (or whether) to show them.
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Notifier receives user-facing notifications. Implementations must be safe
// for concurrent use.
type Notifier interface {
	Success(msg string)
	Error(msg string)
	// SessionExpired fires when the session is unrecoverable. The embedding
	// application typically navigates to its login surface here.
	SessionExpired()
}

// Nop discards everything.
type Nop struct{}

func (Nop) Success(string) {}
func (Nop) Error(string)   {}
func (Nop) SessionExpired() {}

// Log writes notifications through a zerolog logger. Useful for the CLI and
// for headless embeddings.
type Log struct {
	Logger zerolog.Logger
}

func (l Log) Success(msg string) {
	l.Logger.Info().Msg(msg)
}

func (l Log) Error(msg string) {
	l.Logger.Error().Msg(msg)
}

func (l Log) SessionExpired() {
	l.Logger.Warn().Msg("session expired, please log in again")
}

// Deduped suppresses repeated SessionExpired notifications within Window so
// the transport and the mutation pipeline do not both report the same
// expiry. Other notifications pass through unchanged.
type Deduped struct {
	Next   Notifier
	Window time.Duration

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

const defaultDedupWindow = 3 * time.Second

func NewDeduped(next Notifier) *Deduped {
	return &Deduped{Next: next, Window: defaultDedupWindow, now: time.Now}
}

func (d *Deduped) Success(msg string) { d.Next.Success(msg) }
func (d *Deduped) Error(msg string)   { d.Next.Error(msg) }

func (d *Deduped) SessionExpired() {
	d.mu.Lock()
	now := d.nowFunc()()
	window := d.Window
	if window == 0 {
		window = defaultDedupWindow
	}
	if !d.last.IsZero() && now.Sub(d.last) < window {
		d.mu.Unlock()
		return
	}
	d.last = now
	d.mu.Unlock()
	d.Next.SessionExpired()
}

func (d *Deduped) nowFunc() func() time.Time {
	if d.now == nil {
		return time.Now
	}
	return d.now
}
