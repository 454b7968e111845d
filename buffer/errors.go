package buffer

import "errors"

// ErrNoEvictable is returned when every frame in the pool is pinned, so
// neither the free list nor the replacer can produce a victim.
var ErrNoEvictable = errors.New("buffer: no evictable frame, every page is pinned")

// ErrPinned is returned by DeletePage when the target page is still pinned.
var ErrPinned = errors.New("buffer: cannot delete a pinned page")
