package storage

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && *err == nil && !errors.Is(cErr, sql.ErrTxDone) {
		*err = cErr
	}
}

// toConfigData accepts a string, a byte slice or any JSON-serializable value.
func toConfigData(config any) (sql.NullString, error) {
	var data sql.NullString

	switch c := config.(type) {
	case nil:
	case string:
		data.Valid = true
		data.String = c

	case []byte:
		data.Valid = true
		data.String = string(c)

	default:
		p, err := json.Marshal(config)
		if err != nil {
			return data, fmt.Errorf("marshaling config: %w", err)
		}
		data.Valid = true
		data.String = string(p)
	}
	return data, nil
}

func (d *sessionData) toSession() *Session {
	sess := &Session{
		ID:              d.ID,
		RunID:           d.RunID,
		StartTime:       d.StartTime,
		Source:          d.Source,
		CenterFrequency: d.CenterFrequency,
		Bandwidth:       d.Bandwidth,
	}
	if d.Config.Valid {
		sess.Config = &d.Config.String
	}
	return sess
}

func toLineData(sessionID int64, l *Line) *lineData {
	return &lineData{
		SessionID:       sessionID,
		Timestamp:       l.Timestamp.UnixNano(),
		CenterFrequency: l.CenterFrequency,
		Bandwidth:       l.Bandwidth,
		Width:           len(l.Power),
		Power:           encodePower(l.Power),
	}
}

func (d *lineData) toLine() (*Line, error) {
	power, err := decodePower(d.Power, d.Width)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", d.ID, err)
	}
	return &Line{
		Seq:             d.ID,
		Timestamp:       time.Unix(0, d.Timestamp).UTC(),
		CenterFrequency: d.CenterFrequency,
		Bandwidth:       d.Bandwidth,
		Power:           power,
	}, nil
}

// encodePower packs samples as little-endian IEEE 754 float32 values.
func encodePower(power []float32) []byte {
	p := make([]byte, 4*len(power))
	for i, v := range power {
		binary.LittleEndian.PutUint32(p[4*i:], math.Float32bits(v))
	}
	return p
}

func decodePower(p []byte, width int) ([]float32, error) {
	if len(p) != 4*width {
		return nil, fmt.Errorf("power blob of %d bytes does not hold %d samples", len(p), width)
	}
	power := make([]float32, width)
	for i := range power {
		power[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[4*i:]))
	}
	return power, nil
}
