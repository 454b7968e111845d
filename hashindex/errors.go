package hashindex

import "errors"

// ErrFull is returned by BucketPage.Insert when every slot is readable
// (holds a live pair).
var ErrFull = errors.New("hashindex: bucket is full")

// ErrDuplicate is returned by BucketPage.Insert / Insert when the exact
// (key, value) pair already exists.
var ErrDuplicate = errors.New("hashindex: duplicate key/value pair")

// ErrDirectoryFull is returned when a split is required but the directory
// is already at MaxDepth.
var ErrDirectoryFull = errors.New("hashindex: directory at maximum depth")

// ErrNotFound is returned by Remove when the (key, value) pair is absent.
var ErrNotFound = errors.New("hashindex: key/value pair not found")
