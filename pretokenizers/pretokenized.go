// Package pretokenizers implements the segmentation stage of the pipeline:
// splitting the normalized buffer into (substring, offsets) pairs that the
// model tokenizes independently. Offsets can be read back in either
// referential (original or normalized text) and either unit (bytes or
// runes), whatever the pipeline did internally.
package pretokenizers

import (
	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/normalized"
)

// split is one segment of the buffer. text is what the model will see; it
// usually is a plain slice of the normalized text ([start, end)), but
// transforming pre-tokenizers (byte-level, metaspace) replace it and record
// a byte mapping back to the normalized text.
type split struct {
	text       string
	start, end int
	// mapping holds, per byte of text, the absolute normalized byte range it
	// derives from. nil means identity from start.
	mapping [][2]int
	tokens  []api.Token
	done    bool
}

// normOffsets resolves a byte range of the split's text to absolute
// normalized byte offsets.
func (s *split) normOffsets(o api.Offsets) (int, int) {
	if s.mapping == nil {
		return s.start + o.Start, s.start + o.End
	}
	if len(s.mapping) == 0 {
		return s.start, s.start
	}
	if o.Start >= o.End {
		if o.Start >= len(s.mapping) {
			return s.end, s.end
		}
		a := s.mapping[o.Start][0]
		return a, a
	}
	end := o.End
	if end > len(s.mapping) {
		end = len(s.mapping)
	}
	return s.mapping[o.Start][0], s.mapping[end-1][1]
}

// PreTokenizedString carries the ordered splits of one normalized buffer
// through pre-tokenization and model tokenization.
type PreTokenizedString struct {
	ns     *normalized.String
	splits []split
}

// New wraps a normalized buffer as a single split covering all of it.
func New(ns *normalized.String) *PreTokenizedString {
	p := &PreTokenizedString{ns: ns}
	if !ns.IsEmpty() {
		p.splits = []split{{text: ns.Get(), start: 0, end: ns.Len()}}
	}
	return p
}

// Piece describes one fragment a splitting function carves out of a split:
// the byte range of the parent text it covers and, for transforming
// pre-tokenizers, the replacement text with its byte mapping (relative to
// the parent text).
type Piece struct {
	Range   api.Offsets
	Text    string
	Mapping [][2]int
}

// Split replaces every current split by the pieces fn returns for its text.
// Pieces must be ordered and non-overlapping; empty pieces are dropped.
func (p *PreTokenizedString) Split(fn func(text string) ([]Piece, error)) error {
	out := make([]split, 0, len(p.splits))
	for i := range p.splits {
		parent := &p.splits[i]
		pieces, err := fn(parent.text)
		if err != nil {
			return api.WrapError(api.PreTokenizationError, err)
		}
		for _, piece := range pieces {
			child, ok := parent.carve(piece)
			if ok {
				out = append(out, child)
			}
		}
	}
	p.splits = out
	return nil
}

// carve builds the child split for one piece.
func (s *split) carve(piece Piece) (split, bool) {
	text := piece.Text
	var mapping [][2]int
	if s.mapping == nil {
		if text == "" {
			text = s.text[piece.Range.Start:piece.Range.End]
		} else {
			mapping = make([][2]int, len(piece.Mapping))
			for j, rel := range piece.Mapping {
				mapping[j] = [2]int{s.start + rel[0], s.start + rel[1]}
			}
		}
		if text == "" {
			return split{}, false
		}
		return split{
			text:    text,
			start:   s.start + piece.Range.Start,
			end:     s.start + piece.Range.End,
			mapping: mapping,
		}, true
	}

	// Parent already carries an explicit mapping: resolve ranges through it.
	absStart, absEnd := s.normOffsets(api.Offsets{Start: piece.Range.Start, End: piece.Range.End})
	if text == "" {
		text = s.text[piece.Range.Start:piece.Range.End]
		if text == "" {
			return split{}, false
		}
		mapping = s.mapping[piece.Range.Start:piece.Range.End]
	} else {
		mapping = make([][2]int, len(piece.Mapping))
		for j, rel := range piece.Mapping {
			a, b := s.normOffsets(api.Offsets{Start: rel[0], End: rel[1]})
			mapping[j] = [2]int{a, b}
		}
	}
	return split{text: text, start: absStart, end: absEnd, mapping: mapping}, true
}

// Count returns the number of splits.
func (p *PreTokenizedString) Count() int { return len(p.splits) }

// Text returns the i-th split's text, the sequence handed to the model.
func (p *PreTokenizedString) Text(i int) string { return p.splits[i].text }

// SetTokens attaches the model output for the i-th split.
func (p *PreTokenizedString) SetTokens(i int, tokens []api.Token) {
	p.splits[i].tokens = tokens
	p.splits[i].done = true
}

// Substring is one (text, offsets) pair of the segmentation.
type Substring struct {
	Text    string
	Offsets api.Offsets
}

// Substrings reads the segmentation back, converting offsets to the
// requested referential and unit.
func (p *PreTokenizedString) Substrings(ref api.Referential, unit api.Unit) []Substring {
	out := make([]Substring, len(p.splits))
	for i := range p.splits {
		s := &p.splits[i]
		out[i] = Substring{
			Text:    s.text,
			Offsets: p.convert(api.Offsets{Start: s.start, End: s.end}, ref, unit),
		}
	}
	return out
}

// convert maps normalized byte offsets to the requested referential/unit.
func (p *PreTokenizedString) convert(off api.Offsets, ref api.Referential, unit api.Unit) api.Offsets {
	switch ref {
	case api.NormalizedReferential:
		if unit == api.CharUnit {
			return api.CharOffsets(p.ns.Get(), off)
		}
		return off
	default:
		orig := p.ns.OriginalOffsets(off.Start, off.End)
		if unit == api.CharUnit {
			return api.CharOffsets(p.ns.Original(), orig)
		}
		return orig
	}
}

// IntoEncoding assembles the attached tokens into an Encoding. Every
// position gets the split index as its word index and the token's span
// converted to the requested referential and unit.
func (p *PreTokenizedString) IntoEncoding(typeID int, ref api.Referential, unit api.Unit) (*api.Encoding, error) {
	var tokens []api.Token
	var wordIDs []int
	for i := range p.splits {
		s := &p.splits[i]
		if !s.done {
			return nil, api.Errorf(api.EncodingError, "split %d was never tokenized by the model", i)
		}
		for _, tok := range s.tokens {
			a, b := s.normOffsets(tok.Offsets)
			tok.Offsets = p.convert(api.Offsets{Start: a, End: b}, ref, unit)
			tokens = append(tokens, tok)
			wordIDs = append(wordIDs, i)
		}
	}
	return api.NewEncoding(tokens, typeID, wordIDs), nil
}
