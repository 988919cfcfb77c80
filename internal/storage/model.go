package storage

import (
	"time"
)

// Session describes one recording of display lines.
type Session struct {
	ID              int64
	RunID           string // Globally unique identifier of the recording
	StartTime       time.Time
	Source          string  // Name of the FFT producer, e.g. "synthetic" or "rtl_power"
	CenterFrequency float64 // Hz, at the start of the session
	Bandwidth       float64 // Hz
	Config          *string // Producer configuration as JSON, if any
}

// Line is one recorded display line. Power holds one value per output pixel in
// dB.
type Line struct {
	Seq             int64 // Assigned by the store, increasing within a session
	Timestamp       time.Time
	CenterFrequency float64
	Bandwidth       float64
	Power           []float32
}
