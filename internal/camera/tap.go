package camera

import (
	"errors"
	"sync"
)

// ErrViewerExists is returned when a tap viewer id is reused.
var ErrViewerExists = errors.New("viewer id already exists")

// Tap fans captured frames out to preview viewers with a latest-frame-wins
// policy: a viewer that cannot keep up sees the newest frame, never a
// backlog. Whoever currently owns the camera handle (the preview streamer
// or an active recording session) publishes into the tap, which is how the
// live view keeps flowing while a recording holds the exclusive gate.
type Tap struct {
	mu      sync.RWMutex
	viewers map[string]chan Frame
	latest  Frame
	hasAny  bool
}

// NewTap creates an empty frame tap.
func NewTap() *Tap {
	return &Tap{
		viewers: make(map[string]chan Frame),
	}
}

// Attach registers a viewer and returns its frame channel. The channel has
// a one-frame buffer; stale frames are replaced, not queued.
func (t *Tap) Attach(id string) (<-chan Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.viewers[id]; ok {
		return nil, ErrViewerExists
	}

	ch := make(chan Frame, 1)
	t.viewers[id] = ch

	return ch, nil
}

// Detach removes a viewer. Unknown ids are ignored.
func (t *Tap) Detach(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.viewers, id)
}

// Publish delivers a frame to all viewers without blocking and records it
// as the latest frame for snapshots.
func (t *Tap) Publish(frame Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.latest = frame
	t.hasAny = true

	for _, ch := range t.viewers {
		select {
		case ch <- frame:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- frame:
			default:
			}
		}
	}
}

// Latest returns the most recently published frame, if any.
func (t *Tap) Latest() (Frame, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.latest, t.hasAny
}
