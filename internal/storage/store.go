package storage

import (
	"context"

	"github.com/roman-kulish/waterfall/internal/bookmark"
)

// Store persists recording sessions, their display lines and frequency
// bookmarks.
type Store interface {
	// CreateSession starts a new recording and assigns it a unique run ID.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - source: Name of the FFT producer (e.g., "synthetic", "rtl_power")
	//   - centerFreq, bandwidth: Tuning at the start of the session, in Hz
	//   - config: Optional producer configuration. Can be string, []byte, or JSON-serializable object
	CreateSession(ctx context.Context, source string, centerFreq, bandwidth float64, config any) (*Session, error)

	// Session retrieves a session by its ID.
	Session(ctx context.Context, id int64) (*Session, error)

	// Sessions returns all sessions ordered by start time.
	Sessions(ctx context.Context) ([]*Session, error)

	// StoreLines saves display lines of a session in a single transaction.
	// Line sequence numbers are assigned by the store.
	StoreLines(ctx context.Context, sessionID int64, lines []Line) error

	// ReadLines returns a reader over the lines of a session in recording
	// order. The reader must be closed after use.
	ReadLines(ctx context.Context, sessionID int64, opts ...ReaderOption) (LineReader, error)

	bookmark.Store

	// Close releases all database connections. It is safe to call Close
	// multiple times.
	Close() error
}

// LineReader iterates over recorded display lines.
type LineReader interface {
	// Session returns the session this reader is accessing.
	Session() *Session

	// Next advances the iterator and returns true if there is another line.
	Next(context.Context) bool

	// Current returns the current line. If called after Next() returns false,
	// the behavior is undefined.
	Current() *Line

	// Error returns any error that occurred during iteration.
	Error() error

	Close() error
}
