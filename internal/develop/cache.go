package develop

import (
	"github.com/ironsheep/raw-alchemy/internal/imaging"
)

// CacheEntry holds the expensive upstream products for one open image: the
// decoded linear buffer and the lens-corrected buffer derived from it.
//
// Buffers stored in an entry are never mutated afterwards; consumers copy
// before running operators. Corrected is always the product of Decoded
// under LensKey.
type CacheEntry struct {
	ImageID string
	Decoded *imaging.Buffer
	Exif    imaging.Exif

	// BitDepth and Orientation are carried over from the decoder.
	BitDepth    int
	Orientation int

	Corrected *imaging.Buffer
	LensKey   LensKey
}

// Loaded reports whether the entry holds a decoded buffer.
func (e *CacheEntry) Loaded() bool {
	return e.Decoded != nil
}

// Holds reports whether the entry holds the decoded buffer of id.
func (e *CacheEntry) Holds(id string) bool {
	return e.Decoded != nil && e.ImageID == id
}

// Update replaces the decoded buffer. Any corrected buffer is dropped since
// it no longer derives from the stored decode.
func (e *CacheEntry) Update(id string, d *imaging.Decoded) {
	e.ImageID = id
	e.Decoded = d.Buffer
	e.Exif = d.Exif
	e.BitDepth = d.BitDepth
	e.Orientation = d.Orientation
	e.Corrected = nil
	e.LensKey = LensKey{}
}

// SetCorrected stores the corrected buffer produced under key.
func (e *CacheEntry) SetCorrected(key LensKey, buf *imaging.Buffer) {
	e.Corrected = buf
	e.LensKey = key
}

// CorrectedFor returns the corrected buffer when it was produced under key.
func (e *CacheEntry) CorrectedFor(key LensKey) (*imaging.Buffer, bool) {
	if e.Corrected == nil || e.LensKey != key {
		return nil, false
	}
	return e.Corrected, true
}

// Clear drops both buffers and the metadata.
func (e *CacheEntry) Clear() {
	*e = CacheEntry{}
}
