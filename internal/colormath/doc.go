// Package colormath provides the color-space arithmetic used by the
// development pipeline.
//
// It knows a closed set of RGB spaces (the linear ProPhoto working space, the
// sRGB display space and the camera vendor gamuts targeted by log encoding),
// derives 3x3 gamut matrices from their primaries and white points, and
// applies vendor log transfer curves.
//
// # Pixel Layout
//
// Functions that operate on pixels take an interleaved, row-major RGB slice
// of float32 values (R0,G0,B0,R1,G1,B1,...). They mutate the slice in place.
//
// # Thread Safety
//
// All exported functions are safe for concurrent use. Gamut matrices are
// cached per (from, to) pair behind a sync.Map.
package colormath
