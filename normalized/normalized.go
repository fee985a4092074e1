// Package normalized implements the mutable, offset-tracked text buffer that
// is threaded through the normalization and pre-tokenization stages. Every
// mutation keeps a byte-level alignment map back to the original input, so
// token offsets can always be resolved against the text the caller provided.
package normalized

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/gomlx/go-tokenizers/api"
)

// String owns the original input, the current normalized text, and one
// original byte range per normalized byte. The alignment map is monotonic
// and total: every normalized position resolves to an original range.
type String struct {
	original   string
	normalized string
	alignments [][2]int
}

// New creates a String whose normalized text starts out identical to the
// input.
func New(s string) *String {
	aligns := make([][2]int, len(s))
	for i, r := range s {
		w := utf8.RuneLen(r)
		for j := 0; j < w; j++ {
			aligns[i+j] = [2]int{i, i + w}
		}
	}
	return &String{original: s, normalized: s, alignments: aligns}
}

// Get returns the current normalized text.
func (s *String) Get() string { return s.normalized }

// Original returns the untouched input text.
func (s *String) Original() string { return s.original }

// Len returns the byte length of the normalized text.
func (s *String) Len() int { return len(s.normalized) }

// IsEmpty reports whether the normalized text is empty.
func (s *String) IsEmpty() bool { return len(s.normalized) == 0 }

// rangeUnion resolves the normalized byte range [start, end) to the covering
// original byte range. A zero-width range anchors at the nearest original
// position.
func (s *String) rangeUnion(start, end int) [2]int {
	if len(s.alignments) == 0 {
		return [2]int{0, 0}
	}
	if start >= end {
		if start >= len(s.alignments) {
			n := len(s.original)
			return [2]int{n, n}
		}
		a := s.alignments[start][0]
		return [2]int{a, a}
	}
	return [2]int{s.alignments[start][0], s.alignments[end-1][1]}
}

// OriginalOffsets converts a byte range of the normalized text into the
// covering byte range of the original text.
func (s *String) OriginalOffsets(start, end int) api.Offsets {
	r := s.rangeUnion(start, end)
	return api.Offsets{Start: r[0], End: r[1]}
}

// Transform rewrites the normalized text rune by rune: f returns the
// replacement for each rune, possibly empty (dropping it) or longer than one
// rune. Replacement bytes inherit the original range of the rune they
// replace.
func (s *String) Transform(f func(r rune) string) {
	var out strings.Builder
	out.Grow(len(s.normalized))
	aligns := make([][2]int, 0, len(s.alignments))
	for i, r := range s.normalized {
		w := utf8.RuneLen(r)
		orig := s.rangeUnion(i, i+w)
		rep := f(r)
		out.WriteString(rep)
		for j := 0; j < len(rep); j++ {
			aligns = append(aligns, orig)
		}
	}
	s.normalized = out.String()
	s.alignments = aligns
}

// Map replaces every rune by f(rune), keeping alignment.
func (s *String) Map(f func(rune) rune) {
	s.Transform(func(r rune) string { return string(f(r)) })
}

// Filter drops every rune for which keep returns false.
func (s *String) Filter(keep func(rune) bool) {
	s.Transform(func(r rune) string {
		if keep(r) {
			return string(r)
		}
		return ""
	})
}

// Lowercase lowercases the normalized text in place.
func (s *String) Lowercase() {
	s.Map(unicode.ToLower)
}

// Prepend inserts prefix at the start of the normalized text. The inserted
// bytes carry a zero-width alignment anchored at the first original
// position.
func (s *String) Prepend(prefix string) {
	if prefix == "" {
		return
	}
	anchor := s.rangeUnion(0, 0)
	aligns := make([][2]int, 0, len(prefix)+len(s.alignments))
	for i := 0; i < len(prefix); i++ {
		aligns = append(aligns, anchor)
	}
	s.alignments = append(aligns, s.alignments...)
	s.normalized = prefix + s.normalized
}

// Append adds suffix at the end of the normalized text, anchored past the
// last original position.
func (s *String) Append(suffix string) {
	if suffix == "" {
		return
	}
	n := len(s.original)
	for i := 0; i < len(suffix); i++ {
		s.alignments = append(s.alignments, [2]int{n, n})
	}
	s.normalized += suffix
}

// Replace substitutes every match of re by content. Replacement bytes map to
// the original range the match covered.
func (s *String) Replace(re *regexp.Regexp, content string) {
	matches := re.FindAllStringIndex(s.normalized, -1)
	if len(matches) == 0 {
		return
	}
	var out strings.Builder
	aligns := make([][2]int, 0, len(s.alignments))
	last := 0
	for _, m := range matches {
		out.WriteString(s.normalized[last:m[0]])
		aligns = append(aligns, s.alignments[last:m[0]]...)
		orig := s.rangeUnion(m[0], m[1])
		out.WriteString(content)
		for j := 0; j < len(content); j++ {
			aligns = append(aligns, orig)
		}
		last = m[1]
	}
	out.WriteString(s.normalized[last:])
	aligns = append(aligns, s.alignments[last:]...)
	s.normalized = out.String()
	s.alignments = aligns
}

// Normalize applies a Unicode normalization form, segment by segment, so
// that each output segment inherits the original range of the input segment
// it was derived from.
func (s *String) Normalize(form norm.Form) {
	if form.IsNormalString(s.normalized) {
		return
	}
	var it norm.Iter
	it.InitString(form, s.normalized)
	var out strings.Builder
	out.Grow(len(s.normalized))
	aligns := make([][2]int, 0, len(s.alignments))
	pos := 0
	for !it.Done() {
		seg := it.Next()
		next := it.Pos()
		orig := s.rangeUnion(pos, next)
		out.Write(seg)
		for j := 0; j < len(seg); j++ {
			aligns = append(aligns, orig)
		}
		pos = next
	}
	s.normalized = out.String()
	s.alignments = aligns
}

// Strip trims Unicode whitespace from the requested sides.
func (s *String) Strip(left, right bool) {
	start, end := 0, len(s.normalized)
	if left {
		start = len(s.normalized) - len(strings.TrimLeftFunc(s.normalized, unicode.IsSpace))
	}
	if right {
		end = len(strings.TrimRightFunc(s.normalized, unicode.IsSpace))
	}
	if end < start {
		end = start
	}
	s.normalized = s.normalized[start:end]
	s.alignments = s.alignments[start:end]
}
