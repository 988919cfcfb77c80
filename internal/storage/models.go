package storage

import (
	"database/sql"
	"time"
)

type sessionData struct {
	ID              int64
	RunID           string
	StartTime       time.Time
	Source          string
	CenterFrequency float64
	Bandwidth       float64
	Config          sql.NullString
}

type lineData struct {
	ID              int64
	SessionID       int64
	Timestamp       int64 // Unix nanoseconds
	CenterFrequency float64
	Bandwidth       float64
	Width           int
	Power           []byte
}
