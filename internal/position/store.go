// Package position persists the last known origin of every window kind.
package position

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/peterbourgon/diskv/v3"
	"go.uber.org/zap"

	"desk-overlay/internal/overlay"
)

// DefaultSaveDelay coalesces bursts of move events into one write
const DefaultSaveDelay = 250 * time.Millisecond

// Store reads and writes <kind>-pos.json files in one directory
type Store struct {
	d    *diskv.Diskv
	dir  string
	log  *zap.Logger
	save func(func())

	mu      sync.Mutex
	pending map[overlay.Kind]overlay.Position
	stats   Stats
}

// Stats holds store counters
type Stats struct {
	Loads     int `json:"loads"`
	Defaults  int `json:"defaults"`
	Writes    int `json:"writes"`
	Coalesced int `json:"coalesced"`
	Failures  int `json:"failures"`
}

// record is the on-disk shape. Pointers tell a missing coordinate from 0.
type record struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// Key returns the file name holding kind's position
func Key(kind overlay.Kind) string {
	return string(kind) + "-pos.json"
}

// Open creates a store rooted at dir, creating it if needed
func Open(dir string, saveDelay time.Duration, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create position directory: %w", err)
	}
	if saveDelay <= 0 {
		saveDelay = DefaultSaveDelay
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Store{
		d: diskv.New(diskv.Options{
			BasePath:          dir,
			AdvancedTransform: flatTransform,
			InverseTransform:  inverseFlatTransform,
			CacheSizeMax:      64 * 1024,
		}),
		dir:     dir,
		log:     log.Named("position"),
		save:    debounce.New(saveDelay),
		pending: make(map[overlay.Kind]overlay.Position),
	}, nil
}

// every key lives directly under the base path
func flatTransform(key string) *diskv.PathKey {
	return &diskv.PathKey{Path: []string{}, FileName: key}
}

func inverseFlatTransform(pk *diskv.PathKey) string {
	return pk.FileName
}

// Dir returns the directory the store writes to
func (s *Store) Dir() string {
	return s.dir
}

// Lookup returns the persisted position of kind, if any. Missing or
// malformed files report false.
func (s *Store) Lookup(kind overlay.Kind) (overlay.Position, bool) {
	s.mu.Lock()
	if pos, ok := s.pending[kind]; ok {
		s.mu.Unlock()
		return pos, true
	}
	s.mu.Unlock()

	if !s.d.Has(Key(kind)) {
		return overlay.Position{}, false
	}

	data, err := s.d.Read(Key(kind))
	if err != nil {
		s.log.Warn("failed to read position", zap.String("kind", string(kind)), zap.Error(err))
		return overlay.Position{}, false
	}

	var r record
	if err := json.Unmarshal(data, &r); err != nil || r.X == nil || r.Y == nil {
		s.log.Warn("ignoring malformed position file", zap.String("kind", string(kind)))
		return overlay.Position{}, false
	}
	x, okX := coordinate(*r.X)
	y, okY := coordinate(*r.Y)
	if !okX || !okY {
		s.log.Warn("ignoring out of range position", zap.String("kind", string(kind)))
		return overlay.Position{}, false
	}

	return overlay.Position{X: x, Y: y}, true
}

// Load returns the persisted position of kind or, when there is none, the
// kind's default for the given display.
func (s *Store) Load(kind overlay.Kind, display overlay.Size) overlay.Position {
	pos, ok := s.Lookup(kind)

	s.mu.Lock()
	s.stats.Loads++
	if !ok {
		s.stats.Defaults++
	}
	s.mu.Unlock()

	if ok {
		return pos
	}
	return Default(kind, display)
}

// Default computes kind's screen-relative default origin
func Default(kind overlay.Kind, display overlay.Size) overlay.Position {
	if d, ok := overlay.Descriptors()[kind]; ok && d.Default != nil {
		return d.Default(display)
	}
	return overlay.Centered(display)
}

// Save writes pos immediately, dropping any deferred write for kind
func (s *Store) Save(kind overlay.Kind, pos overlay.Position) error {
	s.mu.Lock()
	delete(s.pending, kind)
	s.mu.Unlock()

	return s.write(kind, pos)
}

// SaveDeferred records pos and writes it once moves have settled
func (s *Store) SaveDeferred(kind overlay.Kind, pos overlay.Position) {
	s.mu.Lock()
	if _, ok := s.pending[kind]; ok {
		s.stats.Coalesced++
	}
	s.pending[kind] = pos
	s.mu.Unlock()

	s.save(func() {
		if err := s.Flush(); err != nil {
			s.log.Warn("deferred position save failed", zap.Error(err))
		}
	})
}

// Flush writes every deferred position now
func (s *Store) Flush() error {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[overlay.Kind]overlay.Position)
	s.mu.Unlock()

	var firstErr error
	for kind, pos := range pending {
		if err := s.write(kind, pos); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats returns store counters
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Store) write(kind overlay.Kind, pos overlay.Position) error {
	x, y := float64(pos.X), float64(pos.Y)
	data, err := json.Marshal(record{X: &x, Y: &y})
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}

	if err := s.d.Write(Key(kind), data); err != nil {
		s.mu.Lock()
		s.stats.Failures++
		s.mu.Unlock()
		return fmt.Errorf("failed to write position for %s: %w", kind, err)
	}

	s.mu.Lock()
	s.stats.Writes++
	s.mu.Unlock()
	s.log.Debug("position saved", zap.String("kind", string(kind)), zap.Int("x", pos.X), zap.Int("y", pos.Y))
	return nil
}

// coordinate rounds f to a screen coordinate. NaN, infinities and values
// outside the 32-bit range are rejected.
func coordinate(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	r := math.Round(f)
	if r < math.MinInt32 || r > math.MaxInt32 {
		return 0, false
	}
	return int(r), true
}
