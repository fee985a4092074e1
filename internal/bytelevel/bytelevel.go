// Package bytelevel holds the reversible 256-entry byte-to-unicode alphabet
// used by byte-level pre-tokenization, normalization and decoding. Printable
// bytes map to themselves; the rest are shifted into the U+0100 page so that
// every byte has a visible, regex-safe representative.
package bytelevel

import "unicode/utf8"

var (
	byteToRune [256]rune
	runeToByte map[rune]byte
)

func init() {
	runeToByte = make(map[rune]byte, 256)
	n := 0
	for b := 0; b < 256; b++ {
		if (b >= '!' && b <= '~') || (b >= 0xa1 && b <= 0xac) || (b >= 0xae && b <= 0xff) {
			byteToRune[b] = rune(b)
		} else {
			byteToRune[b] = rune(256 + n)
			n++
		}
		runeToByte[byteToRune[b]] = byte(b)
	}
}

// RuneFor returns the alphabet rune standing for byte b.
func RuneFor(b byte) rune { return byteToRune[b] }

// ByteFor returns the byte a rune of the alphabet stands for.
func ByteFor(r rune) (byte, bool) {
	b, ok := runeToByte[r]
	return b, ok
}

// Encode remaps every byte of s to its alphabet rune.
func Encode(s string) string {
	out := make([]rune, 0, len(s))
	for i := 0; i < len(s); i++ {
		out = append(out, byteToRune[s[i]])
	}
	return string(out)
}

// Decode reverses Encode. Runes outside the alphabet are copied through
// verbatim, so decoding text that mixes alphabet runes with added tokens
// stays lossless.
func Decode(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := runeToByte[r]; ok {
			out = append(out, b)
		} else {
			var buf [utf8.UTFMax]byte
			n := utf8.EncodeRune(buf[:], r)
			out = append(out, buf[:n]...)
		}
	}
	return string(out)
}

// Alphabet returns all 256 alphabet runes, ordered by source byte.
func Alphabet() []rune {
	out := make([]rune, 256)
	copy(out, byteToRune[:])
	return out
}
