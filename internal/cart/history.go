package cart

import "cart-service/internal/models"

// DefaultHistoryCapacity is the number of undo snapshots kept per cart.
const DefaultHistoryCapacity = 10

// History is a bounded stack of prior cart states.
// Pushing past capacity silently drops the oldest snapshot.
type History struct {
	capacity  int
	snapshots []models.CartState
}

// NewHistory creates an undo history. Non-positive capacity falls back to the default.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		capacity:  capacity,
		snapshots: make([]models.CartState, 0, capacity),
	}
}

// Push stores a copy of state as the most recent snapshot.
func (h *History) Push(state models.CartState) {
	if len(h.snapshots) == h.capacity {
		copy(h.snapshots, h.snapshots[1:])
		h.snapshots = h.snapshots[:h.capacity-1]
	}
	h.snapshots = append(h.snapshots, state.Clone())
}

// Pop removes and returns the most recent snapshot.
func (h *History) Pop() (models.CartState, bool) {
	if len(h.snapshots) == 0 {
		return models.CartState{}, false
	}
	last := h.snapshots[len(h.snapshots)-1]
	h.snapshots[len(h.snapshots)-1] = models.CartState{}
	h.snapshots = h.snapshots[:len(h.snapshots)-1]
	return last, true
}

// Len returns the number of stored snapshots.
func (h *History) Len() int {
	return len(h.snapshots)
}

// Capacity returns the maximum number of snapshots.
func (h *History) Capacity() int {
	return h.capacity
}
