package pretokenizers

import (
	"unicode"
	"unicode/utf8"

	"github.com/gomlx/go-tokenizers/api"
)

// PreTokenizer is one segmentation strategy. Instances are owned by a single
// caller; after Close every call fails with api.ErrClosed.
type PreTokenizer interface {
	PreTokenize(p *PreTokenizedString) error
	Close() error
}

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

// SplitDelimiterBehavior decides what happens to the delimiter matches when
// a split is applied.
type SplitDelimiterBehavior uint8

const (
	Removed SplitDelimiterBehavior = iota
	Isolated
	MergedWithPrevious
	MergedWithNext
	Contiguous
)

func (b SplitDelimiterBehavior) String() string {
	switch b {
	case Removed:
		return "Removed"
	case Isolated:
		return "Isolated"
	case MergedWithPrevious:
		return "MergedWithPrevious"
	case MergedWithNext:
		return "MergedWithNext"
	case Contiguous:
		return "Contiguous"
	}
	return "Unknown"
}

// segment is a span of text flagged as delimiter match or content.
type segment struct {
	span    api.Offsets
	isMatch bool
}

// segments builds the full segment cover of text from ordered delimiter
// match spans.
func segments(text string, matches []api.Offsets) []segment {
	var out []segment
	pos := 0
	for _, m := range matches {
		if m.Start > pos {
			out = append(out, segment{span: api.Offsets{Start: pos, End: m.Start}})
		}
		if m.End > m.Start {
			out = append(out, segment{span: m, isMatch: true})
		}
		pos = m.End
	}
	if pos < len(text) {
		out = append(out, segment{span: api.Offsets{Start: pos, End: len(text)}})
	}
	return out
}

// behaviorPieces converts delimiter match spans into split pieces following
// the configured delimiter-retention behavior.
func behaviorPieces(text string, matches []api.Offsets, behavior SplitDelimiterBehavior) []Piece {
	segs := segments(text, matches)
	var pieces []Piece
	switch behavior {
	case Removed:
		for _, s := range segs {
			if !s.isMatch {
				pieces = append(pieces, Piece{Range: s.span})
			}
		}
	case Isolated:
		for _, s := range segs {
			pieces = append(pieces, Piece{Range: s.span})
		}
	case Contiguous:
		pieces = mergeAdjacentMatches(segs)
	case MergedWithPrevious:
		prevMatch := false
		for _, s := range segs {
			if s.isMatch && len(pieces) > 0 && !prevMatch {
				pieces[len(pieces)-1].Range.End = s.span.End
			} else {
				pieces = append(pieces, Piece{Range: s.span})
			}
			prevMatch = s.isMatch
		}
	case MergedWithNext:
		var rev []Piece
		nextMatch := false
		for i := len(segs) - 1; i >= 0; i-- {
			s := segs[i]
			if s.isMatch && len(rev) > 0 && !nextMatch {
				rev[len(rev)-1].Range.Start = s.span.Start
			} else {
				rev = append(rev, Piece{Range: s.span})
			}
			nextMatch = s.isMatch
		}
		for i := len(rev) - 1; i >= 0; i-- {
			pieces = append(pieces, rev[i])
		}
	}
	return pieces
}

// mergeAdjacentMatches keeps every segment but fuses runs of adjacent
// delimiter matches into one piece.
func mergeAdjacentMatches(segs []segment) []Piece {
	var pieces []Piece
	prevMatch := false
	for _, s := range segs {
		if s.isMatch && prevMatch && len(pieces) > 0 {
			pieces[len(pieces)-1].Range.End = s.span.End
		} else {
			pieces = append(pieces, Piece{Range: s.span})
		}
		prevMatch = s.isMatch
	}
	return pieces
}

// matchRuns returns the spans of maximal runs of runes satisfying pred.
func matchRuns(text string, pred func(rune) bool) []api.Offsets {
	var out []api.Offsets
	start := -1
	for i, r := range text {
		if pred(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, api.Offsets{Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, api.Offsets{Start: start, End: len(text)})
	}
	return out
}

// matchRunes returns one span per rune satisfying pred.
func matchRunes(text string, pred func(rune) bool) []api.Offsets {
	var out []api.Offsets
	for i, r := range text {
		if pred(r) {
			out = append(out, api.Offsets{Start: i, End: i + utf8.RuneLen(r)})
		}
	}
	return out
}

// WhitespaceSplit splits on runs of whitespace, dropping them.
type WhitespaceSplit struct {
	lifecycle
}

// NewWhitespaceSplit returns the plain whitespace splitter.
func NewWhitespaceSplit() *WhitespaceSplit { return &WhitespaceSplit{} }

// PreTokenize implements PreTokenizer.
func (w *WhitespaceSplit) PreTokenize(p *PreTokenizedString) error {
	if err := w.guard(); err != nil {
		return err
	}
	return p.Split(func(text string) ([]Piece, error) {
		return behaviorPieces(text, matchRuns(text, unicode.IsSpace), Removed), nil
	})
}

// Whitespace splits into word-character runs and punctuation runs, dropping
// whitespace, the `\w+|[^\w\s]+` convention.
type Whitespace struct {
	lifecycle
}

// NewWhitespace returns the word/punctuation splitter.
func NewWhitespace() *Whitespace { return &Whitespace{} }

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// PreTokenize implements PreTokenizer.
func (w *Whitespace) PreTokenize(p *PreTokenizedString) error {
	if err := w.guard(); err != nil {
		return err
	}
	return p.Split(func(text string) ([]Piece, error) {
		var matches []api.Offsets
		start := -1
		wasWord := false
		for i, r := range text {
			switch {
			case unicode.IsSpace(r):
				if start >= 0 {
					matches = append(matches, api.Offsets{Start: start, End: i})
					start = -1
				}
			case start < 0:
				start = i
				wasWord = isWordRune(r)
			case isWordRune(r) != wasWord:
				matches = append(matches, api.Offsets{Start: start, End: i})
				start = i
				wasWord = isWordRune(r)
			}
		}
		if start >= 0 {
			matches = append(matches, api.Offsets{Start: start, End: len(text)})
		}
		pieces := make([]Piece, len(matches))
		for i, m := range matches {
			pieces[i] = Piece{Range: m}
		}
		return pieces, nil
	})
}

// Bert splits the BERT way: whitespace removed, every punctuation rune
// isolated.
type Bert struct {
	lifecycle
}

// NewBert returns the BERT pre-tokenizer.
func NewBert() *Bert { return &Bert{} }

func isBertPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

// PreTokenize implements PreTokenizer.
func (b *Bert) PreTokenize(p *PreTokenizedString) error {
	if err := b.guard(); err != nil {
		return err
	}
	if err := p.Split(func(text string) ([]Piece, error) {
		return behaviorPieces(text, matchRuns(text, unicode.IsSpace), Removed), nil
	}); err != nil {
		return err
	}
	return p.Split(func(text string) ([]Piece, error) {
		return behaviorPieces(text, matchRunes(text, isBertPunct), Isolated), nil
	})
}

// Punctuation isolates punctuation runes with a configurable behavior.
type Punctuation struct {
	lifecycle
	Behavior SplitDelimiterBehavior
}

// NewPunctuation returns a punctuation splitter with the given behavior.
func NewPunctuation(behavior SplitDelimiterBehavior) *Punctuation {
	return &Punctuation{Behavior: behavior}
}

// PreTokenize implements PreTokenizer.
func (n *Punctuation) PreTokenize(p *PreTokenizedString) error {
	if err := n.guard(); err != nil {
		return err
	}
	return p.Split(func(text string) ([]Piece, error) {
		return behaviorPieces(text, matchRunes(text, isBertPunct), n.Behavior), nil
	})
}

// Digits separates numbers from everything else. With IndividualDigits set
// every digit becomes its own split.
type Digits struct {
	lifecycle
	IndividualDigits bool
}

// NewDigits returns a digit splitter.
func NewDigits(individual bool) *Digits { return &Digits{IndividualDigits: individual} }

// PreTokenize implements PreTokenizer.
func (n *Digits) PreTokenize(p *PreTokenizedString) error {
	if err := n.guard(); err != nil {
		return err
	}
	return p.Split(func(text string) ([]Piece, error) {
		if n.IndividualDigits {
			return behaviorPieces(text, matchRunes(text, unicode.IsDigit), Isolated), nil
		}
		return behaviorPieces(text, matchRuns(text, unicode.IsDigit), Isolated), nil
	})
}

// CharDelimiterSplit splits on a single delimiter rune, dropping it.
type CharDelimiterSplit struct {
	lifecycle
	Delimiter rune
}

// NewCharDelimiterSplit validates the delimiter at construction.
func NewCharDelimiterSplit(delimiter rune) (*CharDelimiterSplit, error) {
	if delimiter == 0 {
		return nil, api.Errorf(api.PreTokenizationError, "char delimiter split needs a delimiter character")
	}
	return &CharDelimiterSplit{Delimiter: delimiter}, nil
}

// PreTokenize implements PreTokenizer.
func (n *CharDelimiterSplit) PreTokenize(p *PreTokenizedString) error {
	if err := n.guard(); err != nil {
		return err
	}
	return p.Split(func(text string) ([]Piece, error) {
		return behaviorPieces(text, matchRunes(text, func(r rune) bool { return r == n.Delimiter }), Removed), nil
	})
}

// FixedLength splits into chunks of Length runes regardless of content.
type FixedLength struct {
	lifecycle
	Length int
}

// NewFixedLength validates the chunk length at construction. The
// conventional default is 5.
func NewFixedLength(length int) (*FixedLength, error) {
	if length < 1 {
		return nil, api.Errorf(api.PreTokenizationError, "fixed-length chunk size must be at least 1, got %d", length)
	}
	return &FixedLength{Length: length}, nil
}

// PreTokenize implements PreTokenizer.
func (n *FixedLength) PreTokenize(p *PreTokenizedString) error {
	if err := n.guard(); err != nil {
		return err
	}
	return p.Split(func(text string) ([]Piece, error) {
		var pieces []Piece
		count := 0
		start := 0
		for i := range text {
			if count == n.Length {
				pieces = append(pieces, Piece{Range: api.Offsets{Start: start, End: i}})
				start = i
				count = 0
			}
			count++
		}
		if start < len(text) {
			pieces = append(pieces, Piece{Range: api.Offsets{Start: start, End: len(text)}})
		}
		return pieces, nil
	})
}

// Sequence runs pre-tokenizers in order, each refining the previous splits.
// The sequence owns its children; closing it closes them exactly once.
type Sequence struct {
	lifecycle
	children []PreTokenizer
}

// NewSequence adopts the given pre-tokenizers. Children are owned by the
// sequence even when validation fails.
func NewSequence(children ...PreTokenizer) (*Sequence, error) {
	seq := &Sequence{children: children}
	for i, c := range children {
		if c == nil {
			_ = seq.Close()
			return nil, api.Errorf(api.ConfigError, "sequence child %d is nil", i)
		}
	}
	return seq, nil
}

// PreTokenize implements PreTokenizer.
func (s *Sequence) PreTokenize(p *PreTokenizedString) error {
	if err := s.guard(); err != nil {
		return err
	}
	for _, c := range s.children {
		if err := c.PreTokenize(p); err != nil {
			return api.WrapError(api.PreTokenizationError, err)
		}
	}
	return nil
}

// Close releases the sequence and all its children, exactly once.
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
