package sensor

import "sync"

// Simulated is an in-memory motion sensor for development machines without
// GPIO hardware and for tests.
type Simulated struct {
	mu     sync.Mutex
	level  bool
	err    error
	closed bool
}

// NewSimulated creates a simulated sensor reading low.
func NewSimulated() *Simulated {
	return &Simulated{}
}

// Set drives the simulated signal level.
func (s *Simulated) Set(level bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.level = level
}

// Fail makes subsequent reads return the given error (nil restores reads).
func (s *Simulated) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.err = err
}

// Read returns the simulated level.
func (s *Simulated) Read() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return false, s.err
	}

	return s.level, nil
}

// Close marks the sensor closed.
func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}
