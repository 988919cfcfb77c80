package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNoData indicates either that a session has no recorded lines, or that
// all lines have been read from the reader.
var ErrNoData = errors.New("no data available")

// ReaderOption configures a SqliteLineReader.
type ReaderOption func(*SqliteLineReader)

// WithStartTime excludes lines recorded before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SqliteLineReader) {
		r.startTime = &t
	}
}

// WithEndTime excludes lines recorded after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SqliteLineReader) {
		r.endTime = &t
	}
}

// WithTimeRange is equivalent to applying both WithStartTime and WithEndTime.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SqliteLineReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// WithLimit caps the number of lines returned.
func WithLimit(n int) ReaderOption {
	return func(r *SqliteLineReader) {
		r.limit = n
	}
}

// SqliteLineReader implements LineReader for the SQLite backend.
type SqliteLineReader struct {
	db *sql.DB

	sessionID int64
	session   *Session

	startTime *time.Time
	endTime   *time.Time
	limit     int

	current *Line
	rows    *sql.Rows
	err     error
}

var _ LineReader = (*SqliteLineReader)(nil)

func newSqliteLineReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*SqliteLineReader, error) {
	lr := &SqliteLineReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(lr)
	}
	if err := lr.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return lr, nil
}

func (lr *SqliteLineReader) init(ctx context.Context) error {
	if lr.db == nil {
		return errors.New("database connection required")
	}
	if lr.sessionID <= 0 {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: lr.loadSession},
		{msg: "initializing filters", fn: lr.initFilters},
		{msg: "initializing query", fn: lr.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (lr *SqliteLineReader) loadSession(ctx context.Context) (err error) {
	lr.session, err = loadSession(ctx, lr.db, lr.sessionID)
	return err
}

func (lr *SqliteLineReader) initFilters(ctx context.Context) (err error) {
	if lr.startTime != nil && lr.endTime != nil && lr.startTime.After(*lr.endTime) {
		return fmt.Errorf("start time %s is after end time %s", lr.startTime, lr.endTime)
	}
	if lr.limit < 0 {
		return fmt.Errorf("negative limit %d", lr.limit)
	}

	stmt, err := lr.db.PrepareContext(ctx, selectFilterValuesSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var count, first, last int64
	if err = stmt.QueryRowContext(ctx, lr.sessionID).Scan(&count, &first, &last); err != nil {
		return fmt.Errorf("scanning filters data: %w", err)
	}
	if count == 0 {
		return ErrNoData
	}

	if lr.startTime == nil {
		t := time.Unix(0, first)
		lr.startTime = &t
	}
	if lr.endTime == nil {
		t := time.Unix(0, last)
		lr.endTime = &t
	}
	return nil
}

func (lr *SqliteLineReader) initQuery(ctx context.Context) (err error) {
	limit := int64(math.MaxInt64)
	if lr.limit > 0 {
		limit = int64(lr.limit)
	}

	lr.rows, err = lr.db.QueryContext(ctx, selectLinesSQL, lr.sessionID, lr.startTime.UnixNano(), lr.endTime.UnixNano(), limit)
	if err != nil {
		return fmt.Errorf("querying lines: %w", err)
	}
	return nil
}

func (lr *SqliteLineReader) Session() *Session {
	return lr.session
}

func (lr *SqliteLineReader) Next(ctx context.Context) bool {
	if lr.err != nil || lr.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		lr.err = ctx.Err()
		return false
	default:
	}

	if !lr.rows.Next() {
		lr.current = nil
		lr.err = ErrNoData
		return false
	}

	var data lineData
	if lr.err = lr.rows.Scan(&data.ID, &data.Timestamp, &data.CenterFrequency, &data.Bandwidth, &data.Width, &data.Power); lr.err != nil {
		lr.err = fmt.Errorf("scanning line: %w", lr.err)
		return false
	}

	lr.current, lr.err = data.toLine()
	return lr.err == nil
}

func (lr *SqliteLineReader) Current() *Line {
	return lr.current
}

func (lr *SqliteLineReader) Error() error {
	if lr.err != nil && !errors.Is(lr.err, ErrNoData) {
		return lr.err
	}
	if lr.rows != nil {
		return lr.rows.Err()
	}
	return nil
}

func (lr *SqliteLineReader) Close() error {
	if lr.rows != nil {
		err := lr.rows.Close()
		lr.current = nil
		lr.rows = nil
		return err
	}
	return nil
}
