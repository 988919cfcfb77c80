package storage

import (
	_ "embed"
)

var (
	//go:embed schema.sql
	initSchemaSQL string

	// Indexes are created when the write connection closes so that recording
	// does not pay for index maintenance.
	//go:embed indexes.sql
	initIndexesSQL string
)

const (
	insertSessionSQL = `
INSERT INTO sessions (run_id,
                      start_time,
                      source,
                      center_frequency,
                      bandwidth,
                      config)
VALUES (?, ?, ?, ?, ?, ?)`

	selectSessionSQL = `
SELECT id,
       run_id,
       start_time,
       source,
       center_frequency,
       bandwidth,
       config
FROM sessions
WHERE id = ?`

	selectSessionsSQL = `
SELECT id,
       run_id,
       start_time,
       source,
       center_frequency,
       bandwidth,
       config
FROM sessions
ORDER BY start_time`

	insertLinesSQL = `
INSERT INTO lines (session_id,
                   timestamp,
                   center_frequency,
                   bandwidth,
                   width,
                   power)
VALUES `

	selectFilterValuesSQL = `
SELECT COUNT(*),
       COALESCE(MIN(timestamp), 0),
       COALESCE(MAX(timestamp), 0)
FROM lines
WHERE session_id = ?`

	selectLinesSQL = `
SELECT id,
       timestamp,
       center_frequency,
       bandwidth,
       width,
       power
FROM lines
WHERE session_id = ?
  AND timestamp BETWEEN ? AND ?
ORDER BY id
LIMIT ?`

	upsertBookmarkSQL = `
INSERT INTO bookmarks (name, frequency, bandwidth, mode)
VALUES (?, ?, ?, ?)
ON CONFLICT (name) DO UPDATE SET frequency = excluded.frequency,
                                 bandwidth = excluded.bandwidth,
                                 mode      = excluded.mode`

	deleteBookmarkSQL = `
DELETE
FROM bookmarks
WHERE name = ?`

	selectBookmarksSQL = `
SELECT name,
       frequency,
       bandwidth,
       mode
FROM bookmarks
ORDER BY name`
)
