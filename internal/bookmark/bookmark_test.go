package bookmark

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	saved   map[string]Bookmark
	failing bool
}

func newMemStore() *memStore {
	return &memStore{saved: make(map[string]Bookmark)}
}

func (s *memStore) SaveBookmark(_ context.Context, b Bookmark) error {
	if s.failing {
		return errors.New("disk full")
	}
	s.saved[b.Name] = b
	return nil
}

func (s *memStore) DeleteBookmark(_ context.Context, name string) error {
	delete(s.saved, name)
	return nil
}

func (s *memStore) Bookmarks(context.Context) ([]Bookmark, error) {
	var list []Bookmark
	for _, b := range s.saved {
		list = append(list, b)
	}
	return list, nil
}

type fakeTuner struct {
	center   float64
	selected string
	vfos     map[string][2]float64
}

func (t *fakeTuner) CenterFrequency() float64        { return t.center }
func (t *fakeTuner) SetCenterFrequency(freq float64) { t.center = freq }
func (t *fakeTuner) SelectedVFO() string             { return t.selected }

func (t *fakeTuner) VFOFrequency(name string) (float64, float64, bool) {
	v, ok := t.vfos[name]
	return v[0], v[1], ok
}

func (t *fakeTuner) TuneVFO(name string, freq, bandwidth float64) error {
	v, ok := t.vfos[name]
	if !ok {
		return errors.New("no such vfo")
	}
	v[0] = freq
	if bandwidth > 0 {
		v[1] = bandwidth
	}
	t.vfos[name] = v
	return nil
}

func TestFormatFrequency(t *testing.T) {
	tests := []struct {
		freq float64
		want string
	}{
		{freq: 145.5e6, want: "145.5MHz"},
		{freq: 100e6, want: "100MHz"},
		{freq: 12500, want: "12.5KHz"},
		{freq: 800, want: "800Hz"},
		{freq: 1234567.891, want: "1.234568MHz"},
		{freq: 0, want: "0Hz"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFrequency(tt.freq))
		})
	}
}

func TestAddFromTuner(t *testing.T) {
	ctx := context.Background()

	t.Run("no vfo selected", func(t *testing.T) {
		m := NewManager()
		b, err := m.AddFromTuner(ctx, &fakeTuner{center: 100e6})
		require.NoError(t, err)

		assert.Equal(t, "Bookmark (1)", b.Name)
		assert.Equal(t, 100e6, b.Frequency)
		assert.Zero(t, b.Bandwidth)
		assert.Equal(t, ModeUnknown, b.Mode)
	})

	t.Run("selected vfo", func(t *testing.T) {
		m := NewManager()
		tuner := &fakeTuner{
			center:   100e6,
			selected: "radio",
			vfos:     map[string][2]float64{"radio": {100.25e6, 12500}},
		}
		b, err := m.AddFromTuner(ctx, tuner)
		require.NoError(t, err)

		assert.Equal(t, 100.25e6, b.Frequency)
		assert.Equal(t, 12500.0, b.Bandwidth)
	})

	t.Run("names skip existing", func(t *testing.T) {
		m := NewManager()
		require.NoError(t, m.Add(ctx, Bookmark{Name: "Bookmark (1)"}))

		b, err := m.AddFromTuner(ctx, &fakeTuner{})
		require.NoError(t, err)
		assert.Equal(t, "Bookmark (2)", b.Name)
	})
}

func TestAddRemove(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := NewManager(WithStore(store))

	require.NoError(t, m.Add(ctx, Bookmark{Name: "b", Frequency: 2e6}))
	require.NoError(t, m.Add(ctx, Bookmark{Name: "a", Frequency: 1e6}))
	assert.ErrorIs(t, m.Add(ctx, Bookmark{Name: "a"}), ErrExists)
	assert.Len(t, store.saved, 2)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, "b", list[1].Name)

	require.NoError(t, m.Remove(ctx, "a"))
	assert.ErrorIs(t, m.Remove(ctx, "a"), ErrNotFound)
	assert.NotContains(t, store.saved, "a")
}

func TestStoreFailureLeavesListUnchanged(t *testing.T) {
	store := newMemStore()
	store.failing = true
	m := NewManager(WithStore(store))

	require.Error(t, m.Add(context.Background(), Bookmark{Name: "a"}))
	assert.Empty(t, m.List())
}

func TestRemoveSelected(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, m.Add(ctx, Bookmark{Name: name}))
	}
	require.NoError(t, m.Select("a", true))
	require.NoError(t, m.Select("c", true))
	assert.ErrorIs(t, m.Select("x", true), ErrNotFound)

	n, err := m.RemoveSelected(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list := m.List()
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].Name)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	require.NoError(t, m.Add(ctx, Bookmark{Name: "fm", Frequency: 101.1e6, Bandwidth: 200e3}))

	t.Run("centre frequency", func(t *testing.T) {
		tuner := &fakeTuner{center: 100e6}
		require.NoError(t, m.Apply("fm", tuner))
		assert.Equal(t, 101.1e6, tuner.center)
	})

	t.Run("selected vfo", func(t *testing.T) {
		tuner := &fakeTuner{
			center:   100e6,
			selected: "radio",
			vfos:     map[string][2]float64{"radio": {100e6, 12500}},
		}
		require.NoError(t, m.Apply("fm", tuner))
		assert.Equal(t, 100e6, tuner.center)
		assert.Equal(t, [2]float64{101.1e6, 200e3}, tuner.vfos["radio"])
	})

	t.Run("unknown", func(t *testing.T) {
		assert.ErrorIs(t, m.Apply("am", &fakeTuner{}), ErrNotFound)
	})
}

func TestApplySelected(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	require.NoError(t, m.Add(ctx, Bookmark{Name: "a", Frequency: 1e6}))
	require.NoError(t, m.Add(ctx, Bookmark{Name: "b", Frequency: 2e6}))

	tuner := &fakeTuner{}
	assert.ErrorIs(t, m.ApplySelected(tuner), ErrNoSelected)

	require.NoError(t, m.Select("b", true))
	require.NoError(t, m.ApplySelected(tuner))
	assert.Equal(t, 2e6, tuner.center)
	assert.Empty(t, m.Selected())
}

func TestLoad(t *testing.T) {
	store := newMemStore()
	store.saved["x"] = Bookmark{Name: "x", Frequency: 7.1e6, Mode: 3, Selected: true}

	m := NewManager(WithStore(store))
	require.NoError(t, m.Load(context.Background()))

	b, ok := m.Get("x")
	require.True(t, ok)
	assert.Equal(t, 7.1e6, b.Frequency)
	assert.Equal(t, 3, b.Mode)
	assert.False(t, b.Selected)
}
