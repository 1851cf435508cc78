// Package utf8map translates byte offsets in UTF-8 encoded text back into
// character offsets.
//
// A Mapping holds one entry per encoded byte: the index of the character that
// produced it. The element width is picked from the largest character index
// so short inputs cost one byte per encoded byte.
package utf8map

import (
	"fmt"
	"math"
)

// Mapping maps byte indexes of an encoded buffer to character indexes.
type Mapping interface {
	// Set records that byteIndex was produced by charIndex. It panics if
	// charIndex does not fit the mapping's element width.
	Set(byteIndex, charIndex int)

	// CharIndex returns the character index for byteIndex.
	CharIndex(byteIndex int) int

	// Len returns the number of mapped bytes.
	Len() int
}

// resizer is implemented by every Mapping in this package; the encoders
// allocate for the worst case and trim afterwards.
type resizer interface {
	truncate(n int)
}

// New returns a Mapping with size entries, using the narrowest element width
// that can hold maxCharIndex.
func New(size, maxCharIndex int) (Mapping, error) {
	if size < 0 {
		return nil, fmt.Errorf("mapping size must be non-negative, got %d", size)
	}
	if maxCharIndex < 0 {
		return nil, fmt.Errorf("max char index must be non-negative, got %d", maxCharIndex)
	}

	switch {
	case maxCharIndex <= math.MaxUint8:
		m := make(byteMapping, size)
		return &m, nil
	case maxCharIndex <= math.MaxUint16:
		m := make(shortMapping, size)
		return &m, nil
	case uint64(maxCharIndex) <= math.MaxUint32:
		m := make(intMapping, size)
		return &m, nil
	default:
		return nil, fmt.Errorf("max char index %d exceeds 32 bits", maxCharIndex)
	}
}

type byteMapping []uint8

func (m byteMapping) Set(byteIndex, charIndex int) {
	if charIndex < 0 || charIndex > math.MaxUint8 {
		panic(fmt.Sprintf("utf8map: char index %d does not fit a byte mapping", charIndex))
	}
	m[byteIndex] = uint8(charIndex)
}

func (m byteMapping) CharIndex(byteIndex int) int { return int(m[byteIndex]) }
func (m byteMapping) Len() int                    { return len(m) }
func (m *byteMapping) truncate(n int)             { *m = (*m)[:n] }

type shortMapping []uint16

func (m shortMapping) Set(byteIndex, charIndex int) {
	if charIndex < 0 || charIndex > math.MaxUint16 {
		panic(fmt.Sprintf("utf8map: char index %d does not fit a short mapping", charIndex))
	}
	m[byteIndex] = uint16(charIndex)
}

func (m shortMapping) CharIndex(byteIndex int) int { return int(m[byteIndex]) }
func (m shortMapping) Len() int                    { return len(m) }
func (m *shortMapping) truncate(n int)             { *m = (*m)[:n] }

type intMapping []uint32

func (m intMapping) Set(byteIndex, charIndex int) {
	if charIndex < 0 || uint64(charIndex) > math.MaxUint32 {
		panic(fmt.Sprintf("utf8map: char index %d does not fit an int mapping", charIndex))
	}
	m[byteIndex] = uint32(charIndex)
}

func (m intMapping) CharIndex(byteIndex int) int { return int(m[byteIndex]) }
func (m intMapping) Len() int                    { return len(m) }
func (m *intMapping) truncate(n int)             { *m = (*m)[:n] }
