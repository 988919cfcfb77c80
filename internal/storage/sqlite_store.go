package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/waterfall/internal/bookmark"
)

// maxLinesPerInsert keeps batch inserts under the SQLite host parameter limit.
const maxLinesPerInsert = 500

// SqliteStore implements Store on a SQLite database file. Writes go through a
// single WAL-mode connection; reads use a separate read-only connection.
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

var _ Store = (*SqliteStore)(nil)

// NewSqliteStore returns a store backed by the database at dbPath. The file
// and schema are created on first use.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1)

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		// The write connection creates the file and schema.
		if _, err := s.getWriteDB(); err != nil {
			s.readDBErr = err
			return
		}

		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, source string, centerFreq, bandwidth float64, config any) (session *Session, err error) {
	configData, err := toConfigData(config)
	if err != nil {
		return nil, err
	}

	db, err := s.getWriteDB()
	if err != nil {
		return nil, fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	data := sessionData{
		RunID:           uuid.New().String(),
		StartTime:       time.Now().UTC(),
		Source:          source,
		CenterFrequency: centerFreq,
		Bandwidth:       bandwidth,
		Config:          configData,
	}

	result, err := stmt.ExecContext(ctx, data.RunID, data.StartTime, data.Source, data.CenterFrequency, data.Bandwidth, data.Config)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}

	if data.ID, err = result.LastInsertId(); err != nil {
		return nil, fmt.Errorf("getting session ID: %w", err)
	}
	return data.toSession(), nil
}

func (s *SqliteStore) Session(ctx context.Context, id int64) (session *Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return loadSession(ctx, db, id)
}

func loadSession(ctx context.Context, db *sql.DB, id int64) (session *Session, err error) {
	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var data sessionData
	if err = stmt.QueryRowContext(ctx, id).Scan(&data.ID, &data.RunID, &data.StartTime, &data.Source, &data.CenterFrequency, &data.Bandwidth, &data.Config); err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	return data.toSession(), nil
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var data sessionData
		if err = rows.Scan(&data.ID, &data.RunID, &data.StartTime, &data.Source, &data.CenterFrequency, &data.Bandwidth, &data.Config); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, data.toSession())
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

func (s *SqliteStore) StoreLines(ctx context.Context, sessionID int64, lines []Line) (err error) {
	if len(lines) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	for start := 0; start < len(lines); start += maxLinesPerInsert {
		batch := lines[start:min(start+maxLinesPerInsert, len(lines))]

		values := make([]any, 0, len(batch)*6)
		var sb strings.Builder
		sb.WriteString(insertLinesSQL)

		for i := range batch {
			data := toLineData(sessionID, &batch[i])
			values = append(values,
				data.SessionID,
				data.Timestamp,
				data.CenterFrequency,
				data.Bandwidth,
				data.Width,
				data.Power,
			)

			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?, ?, ?)")
		}

		if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
			return fmt.Errorf("batch inserting lines: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ReadLines creates a reader over the lines of a session. Without options
// every line is returned in recording order.
func (s *SqliteStore) ReadLines(ctx context.Context, sessionID int64, opts ...ReaderOption) (LineReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqliteLineReader(ctx, db, sessionID, opts...)
}

func (s *SqliteStore) SaveBookmark(ctx context.Context, b bookmark.Bookmark) error {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	if _, err = db.ExecContext(ctx, upsertBookmarkSQL, b.Name, b.Frequency, b.Bandwidth, b.Mode); err != nil {
		return fmt.Errorf("saving bookmark: %w", err)
	}
	return nil
}

func (s *SqliteStore) DeleteBookmark(ctx context.Context, name string) error {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	if _, err = db.ExecContext(ctx, deleteBookmarkSQL, name); err != nil {
		return fmt.Errorf("deleting bookmark: %w", err)
	}
	return nil
}

func (s *SqliteStore) Bookmarks(ctx context.Context) (bookmarks []bookmark.Bookmark, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectBookmarksSQL)
	if err != nil {
		return nil, fmt.Errorf("querying bookmarks: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var b bookmark.Bookmark
		if err = rows.Scan(&b.Name, &b.Frequency, &b.Bandwidth, &b.Mode); err != nil {
			return nil, fmt.Errorf("scanning bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bookmarks: %w", err)
	}
	return bookmarks, nil
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
