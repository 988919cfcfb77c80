package bookmark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/dustin/go-humanize"
)

// ModeUnknown marks a bookmark without a demodulation mode.
const ModeUnknown = -1

var (
	ErrExists     = errors.New("bookmark already exists")
	ErrNotFound   = errors.New("bookmark not found")
	ErrNoSelected = errors.New("exactly one bookmark must be selected")
)

// Bookmark is a named frequency. A zero Bandwidth means the bookmark was taken
// without a VFO and only retunes the centre frequency.
type Bookmark struct {
	Name      string
	Frequency float64 // Hz
	Bandwidth float64 // Hz
	Mode      int
	Selected  bool
}

// Store persists bookmarks.
type Store interface {
	SaveBookmark(ctx context.Context, b Bookmark) error
	DeleteBookmark(ctx context.Context, name string) error
	Bookmarks(ctx context.Context) ([]Bookmark, error)
}

// Tuner is the part of the waterfall a bookmark is taken from and applied to.
type Tuner interface {
	CenterFrequency() float64
	SetCenterFrequency(freq float64)

	// SelectedVFO returns the selected VFO name, empty when none is selected.
	SelectedVFO() string

	// VFOFrequency returns the absolute centre frequency and bandwidth of a VFO.
	VFOFrequency(name string) (freq, bandwidth float64, ok bool)

	// TuneVFO moves a VFO centre to freq. A zero bandwidth leaves it unchanged.
	TuneVFO(name string, freq, bandwidth float64) error
}

// Manager keeps the bookmark list and mirrors every change into an optional
// Store.
type Manager struct {
	mu        sync.Mutex
	bookmarks map[string]*Bookmark
	next      int

	store  Store
	logger *slog.Logger
}

// WithStore persists bookmarks through s.
func WithStore(s Store) func(*Manager) {
	return func(m *Manager) {
		m.store = s
	}
}

// WithLogger sets the logger for the manager.
func WithLogger(logger *slog.Logger) func(*Manager) {
	return func(m *Manager) {
		m.logger = logger
	}
}

func NewManager(opts ...func(*Manager)) *Manager {
	m := &Manager{
		bookmarks: make(map[string]*Bookmark),
		next:      1,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(slog.String("component", "bookmarks"))
	return m
}

// Load replaces the in-memory list with the stored bookmarks. It is a no-op
// without a store.
func (m *Manager) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	stored, err := m.store.Bookmarks(ctx)
	if err != nil {
		return fmt.Errorf("loading bookmarks: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.bookmarks = make(map[string]*Bookmark, len(stored))
	for _, b := range stored {
		b.Selected = false
		m.bookmarks[b.Name] = &b
	}
	m.logger.Debug("bookmarks loaded", slog.Int("count", len(stored)))
	return nil
}

// Add stores a new bookmark.
func (m *Manager) Add(ctx context.Context, b Bookmark) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bookmarks[b.Name]; ok {
		return fmt.Errorf("adding %q: %w", b.Name, ErrExists)
	}
	return m.put(ctx, b)
}

func (m *Manager) put(ctx context.Context, b Bookmark) error {
	if m.store != nil {
		if err := m.store.SaveBookmark(ctx, b); err != nil {
			return fmt.Errorf("saving %q: %w", b.Name, err)
		}
	}
	m.bookmarks[b.Name] = &b
	return nil
}

// AddFromTuner bookmarks what the tuner is listening to under an automatic
// name. Without a selected VFO the centre frequency is saved with no
// bandwidth, otherwise the selected VFO frequency and bandwidth.
func (m *Manager) AddFromTuner(ctx context.Context, t Tuner) (Bookmark, error) {
	b := Bookmark{
		Frequency: t.CenterFrequency(),
		Mode:      ModeUnknown,
	}
	if name := t.SelectedVFO(); name != "" {
		if freq, bw, ok := t.VFOFrequency(name); ok {
			b.Frequency, b.Bandwidth = freq, bw
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		b.Name = fmt.Sprintf("Bookmark (%d)", m.next)
		m.next++
		if _, ok := m.bookmarks[b.Name]; !ok {
			break
		}
	}
	if err := m.put(ctx, b); err != nil {
		return Bookmark{}, err
	}
	m.logger.Info("bookmark added", slog.String("name", b.Name), slog.String("frequency", FormatFrequency(b.Frequency)))
	return b, nil
}

// Update replaces an existing bookmark.
func (m *Manager) Update(ctx context.Context, b Bookmark) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bookmarks[b.Name]; !ok {
		return fmt.Errorf("updating %q: %w", b.Name, ErrNotFound)
	}
	return m.put(ctx, b)
}

// Remove deletes a bookmark.
func (m *Manager) Remove(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.remove(ctx, name)
}

func (m *Manager) remove(ctx context.Context, name string) error {
	if _, ok := m.bookmarks[name]; !ok {
		return fmt.Errorf("removing %q: %w", name, ErrNotFound)
	}
	if m.store != nil {
		if err := m.store.DeleteBookmark(ctx, name); err != nil {
			return fmt.Errorf("deleting %q: %w", name, err)
		}
	}
	delete(m.bookmarks, name)
	return nil
}

// RemoveSelected deletes every selected bookmark and returns how many were
// removed.
func (m *Manager) RemoveSelected(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int
	for _, name := range m.selected() {
		if err := m.remove(ctx, name); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Select sets the selection flag of a bookmark.
func (m *Manager) Select(name string, selected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookmarks[name]
	if !ok {
		return fmt.Errorf("selecting %q: %w", name, ErrNotFound)
	}
	b.Selected = selected
	return nil
}

// Selected returns the names of the selected bookmarks in sorted order.
func (m *Manager) Selected() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.selected()
}

func (m *Manager) selected() []string {
	var names []string
	for name, b := range m.bookmarks {
		if b.Selected {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Get returns a bookmark by name.
func (m *Manager) Get(name string) (Bookmark, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookmarks[name]
	if !ok {
		return Bookmark{}, false
	}
	return *b, true
}

// List returns every bookmark sorted by name.
func (m *Manager) List() []Bookmark {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]Bookmark, 0, len(m.bookmarks))
	for _, b := range m.bookmarks {
		list = append(list, *b)
	}
	slices.SortFunc(list, func(a, b Bookmark) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return list
}

// Apply tunes to a bookmark. Without a selected VFO the centre frequency is
// moved, otherwise the selected VFO is retuned.
func (m *Manager) Apply(name string, t Tuner) error {
	b, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("applying %q: %w", name, ErrNotFound)
	}

	vfo := t.SelectedVFO()
	if vfo == "" {
		t.SetCenterFrequency(b.Frequency)
		m.logger.Info("tuned to bookmark", slog.String("name", name), slog.String("frequency", FormatFrequency(b.Frequency)))
		return nil
	}

	if err := t.TuneVFO(vfo, b.Frequency, b.Bandwidth); err != nil {
		return fmt.Errorf("applying %q to %q: %w", name, vfo, err)
	}
	m.logger.Info("tuned vfo to bookmark",
		slog.String("name", name),
		slog.String("vfo", vfo),
		slog.String("frequency", FormatFrequency(b.Frequency)))
	return nil
}

// ApplySelected applies the only selected bookmark and deselects it.
func (m *Manager) ApplySelected(t Tuner) error {
	names := m.Selected()
	if len(names) != 1 {
		return fmt.Errorf("applying selection of %d: %w", len(names), ErrNoSelected)
	}
	if err := m.Apply(names[0], t); err != nil {
		return err
	}
	return m.Select(names[0], false)
}

// FormatFrequency formats a frequency with up to six decimals in the largest
// unit of MHz, KHz and Hz that keeps the value above one, e.g. "145.5MHz".
func FormatFrequency(freq float64) string {
	switch {
	case freq >= 1e6:
		return humanize.FtoaWithDigits(freq/1e6, 6) + "MHz"
	case freq >= 1e3:
		return humanize.FtoaWithDigits(freq/1e3, 6) + "KHz"
	default:
		return humanize.FtoaWithDigits(freq, 6) + "Hz"
	}
}
