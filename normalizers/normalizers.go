// Package normalizers implements the text-normalization stage of the
// pipeline. A Normalizer mutates a normalized.String in place, preserving
// the alignment map back to the original input. The variant set is closed;
// serialization dispatches over the "type" tag of each variant.
package normalizers

import (
	"regexp"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/normalized"
)

// Normalizer is one step of the normalization chain. Instances are owned by
// a single caller; after Close every call fails with api.ErrClosed.
type Normalizer interface {
	Normalize(ns *normalized.String) error
	Close() error
}

// lifecycle implements the release-exactly-once discipline shared by all
// variants. Closing twice is a no-op.
type lifecycle struct {
	closed bool
}

func (l *lifecycle) Close() error {
	l.closed = true
	return nil
}

func (l *lifecycle) guard() error {
	if l.closed {
		return api.ErrClosed
	}
	return nil
}

// Unicode applies one of the standard Unicode normalization forms.
type Unicode struct {
	lifecycle
	form norm.Form
}

// NewNFC returns a canonical-composition normalizer.
func NewNFC() *Unicode { return &Unicode{form: norm.NFC} }

// NewNFD returns a canonical-decomposition normalizer.
func NewNFD() *Unicode { return &Unicode{form: norm.NFD} }

// NewNFKC returns a compatibility-composition normalizer.
func NewNFKC() *Unicode { return &Unicode{form: norm.NFKC} }

// NewNFKD returns a compatibility-decomposition normalizer.
func NewNFKD() *Unicode { return &Unicode{form: norm.NFKD} }

// Normalize implements Normalizer.
func (n *Unicode) Normalize(ns *normalized.String) error {
	if err := n.guard(); err != nil {
		return err
	}
	ns.Normalize(n.form)
	return nil
}

// Lowercase lowercases the whole buffer.
type Lowercase struct {
	lifecycle
}

// NewLowercase returns a lowercasing normalizer.
func NewLowercase() *Lowercase { return &Lowercase{} }

// Normalize implements Normalizer.
func (n *Lowercase) Normalize(ns *normalized.String) error {
	if err := n.guard(); err != nil {
		return err
	}
	ns.Lowercase()
	return nil
}

// Strip trims whitespace from the configured sides.
type Strip struct {
	lifecycle
	Left  bool
	Right bool
}

// NewStrip returns a whitespace-stripping normalizer.
func NewStrip(left, right bool) *Strip { return &Strip{Left: left, Right: right} }

// Normalize implements Normalizer.
func (n *Strip) Normalize(ns *normalized.String) error {
	if err := n.guard(); err != nil {
		return err
	}
	ns.Strip(n.Left, n.Right)
	return nil
}

// StripAccents decomposes the buffer and drops combining marks.
type StripAccents struct {
	lifecycle
}

// NewStripAccents returns an accent-stripping normalizer.
func NewStripAccents() *StripAccents { return &StripAccents{} }

// Normalize implements Normalizer.
func (n *StripAccents) Normalize(ns *normalized.String) error {
	if err := n.guard(); err != nil {
		return err
	}
	ns.Normalize(norm.NFD)
	ns.Filter(func(r rune) bool { return !unicode.Is(unicode.Mn, r) })
	return nil
}

// Replace substitutes every occurrence of a pattern by fixed content.
// Literal patterns are escaped before matching.
type Replace struct {
	lifecycle
	Pattern api.Pattern
	Content string
	re      *regexp.Regexp
}

// NewReplace builds a Replace normalizer, validating the pattern at
// construction.
func NewReplace(pattern api.Pattern, content string) (*Replace, error) {
	if pattern.IsZero() {
		return nil, api.Errorf(api.ConfigError, "replace normalizer needs a non-empty pattern")
	}
	re, err := pattern.Compile()
	if err != nil {
		return nil, err
	}
	return &Replace{Pattern: pattern, Content: content, re: re}, nil
}

// Normalize implements Normalizer.
func (n *Replace) Normalize(ns *normalized.String) error {
	if err := n.guard(); err != nil {
		return err
	}
	ns.Replace(n.re, n.Content)
	return nil
}

// Prepend inserts a fixed prefix in front of the buffer.
type Prepend struct {
	lifecycle
	Prefix string
}

// NewPrepend returns a prefix-inserting normalizer.
func NewPrepend(prefix string) *Prepend { return &Prepend{Prefix: prefix} }

// Normalize implements Normalizer.
func (n *Prepend) Normalize(ns *normalized.String) error {
	if err := n.guard(); err != nil {
		return err
	}
	ns.Prepend(n.Prefix)
	return nil
}

// NMT removes the control and format characters commonly found in machine
// translation corpora and maps the remaining oddball whitespace variants to
// a plain space.
type NMT struct {
	lifecycle
}

// NewNMT returns the translation-corpus cleaning normalizer.
func NewNMT() *NMT { return &NMT{} }

func nmtRemoved(r rune) bool {
	switch {
	case r >= 0x0001 && r <= 0x0008:
		return true
	case r == 0x000B, r == 0x000E, r == 0x001F, r == 0x007F, r == 0x008F, r == 0x009F:
		return true
	case r >= 0x000F && r <= 0x001E:
		return true
	}
	return false
}

func nmtSpaced(r rune) bool {
	switch r {
	case 0x0009, 0x000A, 0x000C, 0x000D, 0x1680, 0x2028, 0x2029, 0x2581, 0xFEFF, 0xFFFD:
		return true
	}
	return r >= 0x200B && r <= 0x200F || r >= 0x2000 && r <= 0x200A
}

// Normalize implements Normalizer.
func (n *NMT) Normalize(ns *normalized.String) error {
	if err := n.guard(); err != nil {
		return err
	}
	ns.Transform(func(r rune) string {
		switch {
		case nmtRemoved(r):
			return ""
		case nmtSpaced(r):
			return " "
		}
		return string(r)
	})
	return nil
}

// Sequence runs an ordered list of normalizers left to right; each stage
// sees the previous stage's output. The sequence owns its children: closing
// it closes all of them exactly once.
type Sequence struct {
	lifecycle
	children []Normalizer
}

// NewSequence adopts the given normalizers. Ownership transfers to the
// sequence even if validation fails, so partially-built sequences never leak
// children.
func NewSequence(children ...Normalizer) (*Sequence, error) {
	seq := &Sequence{children: children}
	for i, c := range children {
		if c == nil {
			_ = seq.Close()
			return nil, api.Errorf(api.ConfigError, "sequence child %d is nil", i)
		}
	}
	return seq, nil
}

// Normalize implements Normalizer.
func (s *Sequence) Normalize(ns *normalized.String) error {
	if err := s.guard(); err != nil {
		return err
	}
	for _, c := range s.children {
		if err := c.Normalize(ns); err != nil {
			return api.WrapError(api.NormalizationError, err)
		}
	}
	return nil
}

// Close releases the sequence and all its children. Closing twice is a
// no-op and never double-releases a child.
func (s *Sequence) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	for _, c := range s.children {
		if c != nil {
			_ = c.Close()
		}
	}
	return nil
}
