package normalizers

import (
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/gomlx/go-tokenizers/normalized"
)

// Bert performs the BERT-style cleanup: control-character removal,
// whitespace folding, optional spacing around CJK code points, optional
// accent stripping, and optional lowercasing, applied in that order.
type Bert struct {
	lifecycle
	CleanText          bool
	HandleChineseChars bool
	Lowercase          bool
	// StripAccents defaults to the Lowercase setting when nil.
	StripAccents *bool
}

// NewBert returns the normalizer with the defaults used by BERT checkpoints:
// everything enabled, accent stripping following the lowercase flag.
func NewBert() *Bert {
	return &Bert{CleanText: true, HandleChineseChars: true, Lowercase: true}
}

// Normalize implements Normalizer.
func (n *Bert) Normalize(ns *normalized.String) error {
	if err := n.guard(); err != nil {
		return err
	}
	if n.CleanText {
		ns.Transform(func(r rune) string {
			if r == 0 || r == 0xFFFD || isBertControl(r) {
				return ""
			}
			if isBertWhitespace(r) {
				return " "
			}
			return string(r)
		})
	}
	if n.HandleChineseChars {
		ns.Transform(func(r rune) string {
			if isChineseChar(r) {
				return " " + string(r) + " "
			}
			return string(r)
		})
	}
	stripAccents := n.Lowercase
	if n.StripAccents != nil {
		stripAccents = *n.StripAccents
	}
	if stripAccents {
		ns.Normalize(norm.NFD)
		ns.Filter(func(r rune) bool { return !unicode.Is(unicode.Mn, r) })
	}
	if n.Lowercase {
		ns.Lowercase()
	}
	return nil
}

func isBertWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isBertControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r)
}

// isChineseChar reports whether r sits in one of the CJK unified ideograph
// blocks BERT surrounds with spaces.
func isChineseChar(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF,
		r >= 0x3400 && r <= 0x4DBF,
		r >= 0x20000 && r <= 0x2A6DF,
		r >= 0x2A700 && r <= 0x2B73F,
		r >= 0x2B740 && r <= 0x2B81F,
		r >= 0x2B820 && r <= 0x2CEAF,
		r >= 0xF900 && r <= 0xFAFF,
		r >= 0x2F800 && r <= 0x2FA1F:
		return true
	}
	return false
}
