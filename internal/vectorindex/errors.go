package vectorindex

import "errors"

// ErrDimensionMismatch is returned when a vector's length does not match the
// index's configured dimension.
var ErrDimensionMismatch = errors.New("vectorindex: dimension mismatch")

// ErrIndexCorrupt is returned when the index file and its sidecar disagree
// on length, or either file fails to parse.
var ErrIndexCorrupt = errors.New("vectorindex: index corrupt")

// ErrIndexMissing is returned by Load when the index file or its sidecar
// does not exist yet; callers
// should treat this as "start empty", not a fatal condition.
var ErrIndexMissing = errors.New("vectorindex: index missing")
