// Package replacer implements the buffer pool's victim-selection policy: an
// LRU replacer over currently-unpinned frames.
package replacer

import (
	"container/list"
	"errors"
	"sync"

	"coredb/types"
)

// ErrEmpty is returned by Victim when no frame is currently replaceable.
var ErrEmpty = errors.New("replacer: no replaceable frame")

// LRUReplacer tracks frames that are candidates for eviction, in the order
// they became unpinned. Victim always returns the oldest such frame. All
// four operations serialize under one mutex.
type LRUReplacer struct {
	mu       sync.Mutex
	capacity int
	order    *list.List                        // front = oldest unpinned, back = newest
	index    map[types.FrameID]*list.Element
}

// NewLRUReplacer creates a replacer tracking up to capacity frames — the
// same size as the buffer pool it serves.
func NewLRUReplacer(capacity int) *LRUReplacer {
	return &LRUReplacer{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[types.FrameID]*list.Element, capacity),
	}
}

// Victim removes and returns the least-recently-unpinned frame.
func (r *LRUReplacer) Victim() (types.FrameID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	front := r.order.Front()
	if front == nil {
		return 0, ErrEmpty
	}
	frame := front.Value.(types.FrameID)
	r.order.Remove(front)
	delete(r.index, frame)
	return frame, nil
}

// Pin removes frame from the replaceable set: it is back in active use.
// A no-op if frame isn't currently tracked.
func (r *LRUReplacer) Pin(frame types.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if elem, ok := r.index[frame]; ok {
		r.order.Remove(elem)
		delete(r.index, frame)
	}
}

// Unpin marks frame as replaceable, appending it as the newest entry. A
// no-op if frame is already tracked (it does not move to the back again).
func (r *LRUReplacer) Unpin(frame types.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[frame]; ok {
		return
	}
	r.index[frame] = r.order.PushBack(frame)
}

// Size returns the number of frames currently replaceable.
func (r *LRUReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}
