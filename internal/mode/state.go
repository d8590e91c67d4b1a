package mode

import "sync"

// Mode is the global interaction mode shared by every overlay window
type Mode int

const (
	// Desktop keeps overlays passive, beneath normal windows
	Desktop Mode = iota
	// Edit lets overlays receive focus and input
	Edit
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case Desktop:
		return "desktop"
	case Edit:
		return "edit"
	default:
		return "unknown"
	}
}

// Reader exposes the current mode to components that must not change it
type Reader interface {
	Current() Mode
}

// State holds the process-wide mode. Only Machine writes it.
type State struct {
	mu   sync.RWMutex
	mode Mode
}

// NewState creates a state in Desktop mode
func NewState() *State {
	return &State{mode: Desktop}
}

// Current returns the active mode
func (s *State) Current() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// IsEditing reports whether Edit mode is active
func (s *State) IsEditing() bool {
	return s.Current() == Edit
}

// swap stores m and returns the previous mode
func (s *State) swap(m Mode) Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.mode
	s.mode = m
	return prev
}
