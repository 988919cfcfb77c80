package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/waterfall/internal/bookmark"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	s := NewSqliteStore(filepath.Join(t.TempDir(), "waterfall.db"))
	t.Cleanup(func() {
		assert.NoError(t, s.Close())
	})
	return s
}

func testLines(start time.Time, n, width int) []Line {
	lines := make([]Line, n)
	for i := range lines {
		power := make([]float32, width)
		for j := range power {
			power[j] = float32(-100 + i + j)
		}
		lines[i] = Line{
			Timestamp:       start.Add(time.Duration(i) * time.Second),
			CenterFrequency: 100e6,
			Bandwidth:       2e6,
			Power:           power,
		}
	}
	return lines
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.CreateSession(ctx, "synthetic", 100e6, 2e6, map[string]int{"size": 1024})
	require.NoError(t, err)
	second, err := s.CreateSession(ctx, "rtl_power", 433.92e6, 1e6, nil)
	require.NoError(t, err)

	_, err = uuid.Parse(first.RunID)
	assert.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)

	got, err := s.Session(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "synthetic", got.Source)
	assert.Equal(t, 100e6, got.CenterFrequency)
	require.NotNil(t, got.Config)
	assert.JSONEq(t, `{"size":1024}`, *got.Config)
	assert.WithinDuration(t, first.StartTime, got.StartTime, time.Millisecond)

	all, err := s.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Nil(t, all[1].Config)

	_, err = s.Session(ctx, 42)
	assert.Error(t, err)
}

func TestStoreAndReadLines(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.CreateSession(ctx, "synthetic", 100e6, 2e6, nil)
	require.NoError(t, err)

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	lines := testLines(start, maxLinesPerInsert+20, 16)
	require.NoError(t, s.StoreLines(ctx, sess.ID, lines))

	r, err := s.ReadLines(ctx, sess.ID)
	require.NoError(t, err)
	defer func() { assert.NoError(t, r.Close()) }()

	assert.Equal(t, sess.RunID, r.Session().RunID)

	var n int
	var prev int64
	for r.Next(ctx) {
		line := r.Current()
		assert.Greater(t, line.Seq, prev)
		prev = line.Seq

		want := lines[n]
		assert.True(t, want.Timestamp.Equal(line.Timestamp))
		if diff := cmp.Diff(want.Power, line.Power); diff != "" {
			t.Fatalf("line %d power mismatch (-want +got):\n%s", n, diff)
		}
		n++
	}
	require.NoError(t, r.Error())
	assert.Equal(t, len(lines), n)
}

func TestReadLinesFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.CreateSession(ctx, "synthetic", 100e6, 2e6, nil)
	require.NoError(t, err)

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.StoreLines(ctx, sess.ID, testLines(start, 10, 4)))

	count := func(opts ...ReaderOption) int {
		r, err := s.ReadLines(ctx, sess.ID, opts...)
		require.NoError(t, err)
		defer r.Close()

		var n int
		for r.Next(ctx) {
			n++
		}
		require.NoError(t, r.Error())
		return n
	}

	assert.Equal(t, 10, count())
	assert.Equal(t, 4, count(WithLimit(4)))
	assert.Equal(t, 3, count(WithTimeRange(start.Add(2*time.Second), start.Add(4*time.Second))))
	assert.Equal(t, 2, count(WithStartTime(start.Add(8*time.Second))))
	assert.Equal(t, 1, count(WithEndTime(start)))

	_, err = s.ReadLines(ctx, sess.ID, WithTimeRange(start.Add(time.Second), start))
	assert.Error(t, err)
}

func TestReadLinesEmptySession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.CreateSession(ctx, "synthetic", 100e6, 2e6, nil)
	require.NoError(t, err)

	_, err = s.ReadLines(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestReadLinesCancelled(t *testing.T) {
	s := newTestStore(t)

	sess, err := s.CreateSession(context.Background(), "synthetic", 100e6, 2e6, nil)
	require.NoError(t, err)
	require.NoError(t, s.StoreLines(context.Background(), sess.ID, testLines(time.Now(), 3, 4)))

	r, err := s.ReadLines(context.Background(), sess.ID)
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, r.Next(ctx))
	assert.ErrorIs(t, r.Error(), context.Canceled)
}

func TestBookmarks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	list, err := s.Bookmarks(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.SaveBookmark(ctx, bookmark.Bookmark{Name: "b", Frequency: 7.1e6, Mode: bookmark.ModeUnknown}))
	require.NoError(t, s.SaveBookmark(ctx, bookmark.Bookmark{Name: "a", Frequency: 145.5e6, Bandwidth: 12500, Mode: 1}))
	require.NoError(t, s.SaveBookmark(ctx, bookmark.Bookmark{Name: "b", Frequency: 7.2e6, Mode: 2}))

	list, err = s.Bookmarks(ctx)
	require.NoError(t, err)
	want := []bookmark.Bookmark{
		{Name: "a", Frequency: 145.5e6, Bandwidth: 12500, Mode: 1},
		{Name: "b", Frequency: 7.2e6, Mode: 2},
	}
	if diff := cmp.Diff(want, list); diff != "" {
		t.Errorf("bookmarks mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, s.DeleteBookmark(ctx, "a"))
	list, err = s.Bookmarks(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].Name)
}

func TestBookmarkManagerPersistence(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := bookmark.NewManager(bookmark.WithStore(s))
	require.NoError(t, m.Add(ctx, bookmark.Bookmark{Name: "fm", Frequency: 101.1e6, Bandwidth: 200e3, Mode: bookmark.ModeUnknown}))

	reloaded := bookmark.NewManager(bookmark.WithStore(s))
	require.NoError(t, reloaded.Load(ctx))

	b, ok := reloaded.Get("fm")
	require.True(t, ok)
	assert.Equal(t, 101.1e6, b.Frequency)
}

func TestCloseIsIdempotent(t *testing.T) {
	s := NewSqliteStore(filepath.Join(t.TempDir(), "waterfall.db"))
	_, err := s.CreateSession(context.Background(), "synthetic", 1e6, 1e6, "raw")
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestPowerEncoding(t *testing.T) {
	power := []float32{-120.5, 0, 3.25, -0.0001}

	got, err := decodePower(encodePower(power), len(power))
	require.NoError(t, err)
	assert.Equal(t, power, got)

	_, err = decodePower([]byte{1, 2, 3}, 1)
	assert.Error(t, err)
}
