package frame

import "sync"

// History is a bounded FIFO of archived frames keyed by sequence number.
// Frames are archived after their trajectory is published.
type History struct {
	mu       sync.Mutex
	capacity int
	order    []uint32
	frames   map[uint32]*Frame
}

// NewHistory returns a history holding at most capacity frames.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{capacity: capacity, frames: make(map[uint32]*Frame)}
}

// Add archives a frame, evicting the oldest when full.
func (h *History) Add(seq uint32, f *Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.frames[seq]; !exists {
		h.order = append(h.order, seq)
	}
	h.frames[seq] = f
	for len(h.order) > h.capacity {
		oldest := h.order[0]
		h.order = h.order[1:]
		delete(h.frames, oldest)
	}
}

// Find returns the archived frame with the given sequence number, or nil.
func (h *History) Find(seq uint32) *Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames[seq]
}

// Latest returns the most recently archived frame, or nil when empty.
func (h *History) Latest() *Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.order) == 0 {
		return nil
	}
	return h.frames[h.order[len(h.order)-1]]
}

// Len returns the number of archived frames.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.order)
}

// Clear drops all archived frames.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.order = nil
	h.frames = make(map[uint32]*Frame)
}
