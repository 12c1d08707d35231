// Package imaging provides the float pixel buffer and the tone operators of
// the development pipeline.
//
// A Buffer is a 3-channel float32 image, interleaved and row-major, tagged
// with the colormath.Space its samples are expressed in. Buffers produced by
// FileDecoder are scene-linear in the working space (linear ProPhoto RGB).
//
// # Tone Operators
//
// The operators run in place and in a fixed order chosen by the caller:
//   - ApplyGain: scalar exposure gain
//   - ApplyWhiteBalance: temperature (red/blue) and tint (green/magenta)
//   - ApplyHighlightShadow: soft-masked tone reshaping around mid-gray
//   - ApplySaturationAndContrast: luminance power curve, then chroma scale
//
// Luminance-based operators take the space explicitly and derive their
// weights from its primaries. None of them allocate a new full-size buffer
// unless the input's pixel slice is oversized, in which case it is compacted
// once.
//
// # Decoding
//
// FileDecoder reads PNG, JPEG and TIFF sources, linearizes their sRGB
// encoding and converts them to the working space. It supports a half-size
// preview mode. EXIF metadata is read when present.
//
// # Thread Safety
//
// Operators are stateless. A Buffer must not be mutated by two goroutines at
// once; the pipeline gives each stage exclusive ownership.
package imaging
