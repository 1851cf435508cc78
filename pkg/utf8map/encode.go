package utf8map

import (
	"unicode/utf16"
	"unicode/utf8"
)

const replacement = '?'

// EncodeUTF16 encodes UTF-16 code units as UTF-8 and records, for every
// output byte, the index of the code unit that produced it. Both halves of a
// surrogate pair keep their own index: the first two bytes of the 4-byte
// sequence map to the high surrogate, the last two to the low surrogate.
//
// Unpaired surrogates are written as a single '?'. The unit following an
// unpaired high surrogate is encoded normally.
//
// When the input is pure ASCII the returned Mapping is nil and every byte
// index equals its character index.
func EncodeUTF16(units []uint16) ([]byte, Mapping) {
	out := make([]byte, 0, len(units))

	i := 0
	for i < len(units) && units[i] < utf8.RuneSelf {
		out = append(out, byte(units[i]))
		i++
	}
	if i == len(units) {
		return out, nil
	}

	out = append(make([]byte, 0, len(units)*3), out...)
	m, _ := New(len(units)*3, len(units)-1)
	for j := range i {
		m.Set(j, j)
	}

	for ; i < len(units); i++ {
		c := units[i]
		start := len(out)

		switch {
		case c < utf8.RuneSelf:
			out = append(out, byte(c))
		case c < 0x800:
			out = append(out, byte(0xC0|c>>6), byte(0x80|c&0x3F))
		case utf16.IsSurrogate(rune(c)):
			if isHighSurrogate(c) && i+1 < len(units) && isLowSurrogate(units[i+1]) {
				r := utf16.DecodeRune(rune(c), rune(units[i+1]))
				out = append(out,
					byte(0xF0|r>>18),
					byte(0x80|(r>>12)&0x3F),
					byte(0x80|(r>>6)&0x3F),
					byte(0x80|r&0x3F),
				)
				m.Set(start, i)
				m.Set(start+1, i)
				m.Set(start+2, i+1)
				m.Set(start+3, i+1)
				i++
				continue
			}
			out = append(out, replacement)
		default:
			out = append(out, byte(0xE0|c>>12), byte(0x80|(c>>6)&0x3F), byte(0x80|c&0x3F))
		}

		for b := start; b < len(out); b++ {
			m.Set(b, i)
		}
	}

	m.(resizer).truncate(len(out))
	return out, m
}

// MapString returns the byte-to-rune mapping for s. Invalid UTF-8 bytes each
// count as one character, matching utf8.RuneCountInString. It returns nil when
// s is ASCII-only (every byte is its own character).
func MapString(s string) Mapping {
	chars := utf8.RuneCountInString(s)
	if chars == len(s) {
		return nil
	}

	m, _ := New(len(s), chars-1)
	ci := 0
	for i := 0; i < len(s); ci++ {
		_, w := utf8.DecodeRuneInString(s[i:])
		for j := range w {
			m.Set(i+j, ci)
		}
		i += w
	}
	return m
}

// ToUTF16 converts s to UTF-16 code units.
func ToUTF16(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

func isHighSurrogate(c uint16) bool { return c >= 0xD800 && c < 0xDC00 }
func isLowSurrogate(c uint16) bool  { return c >= 0xDC00 && c < 0xE000 }
