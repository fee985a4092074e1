package pretokenizers

import (
	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"

	"github.com/gomlx/go-tokenizers/api"
)

// Split is the generic pattern splitter: delimiter matches are handled per
// the configured behavior, and Invert splits on the complement of the
// matches instead.
type Split struct {
	lifecycle
	Pattern  api.Pattern
	Behavior SplitDelimiterBehavior
	Invert   bool
	re       *regexp2.Regexp
}

// NewSplit validates the pattern at construction: an empty pattern or an
// uncompilable regex is a configuration error, not a split-time failure.
func NewSplit(pattern api.Pattern, behavior SplitDelimiterBehavior, invert bool) (*Split, error) {
	if pattern.IsZero() {
		return nil, api.Errorf(api.PreTokenizationError, "split pre-tokenizer needs a non-empty pattern")
	}
	re, err := regexp2.Compile(pattern.Expr(), regexp2.None)
	if err != nil {
		return nil, api.WrapError(api.PreTokenizationError, errors.Wrapf(err, "invalid split pattern %q", pattern.Expr()))
	}
	return &Split{Pattern: pattern, Behavior: behavior, Invert: invert, re: re}, nil
}

// findMatches returns the byte spans of every pattern match in text.
// regexp2 reports rune indices, so spans are mapped back through a rune
// index table.
func findMatches(re *regexp2.Regexp, text string) ([]api.Offsets, error) {
	runeToByte := make([]int, 0, len(text)+1)
	for i := range text {
		runeToByte = append(runeToByte, i)
	}
	runeToByte = append(runeToByte, len(text))

	var out []api.Offsets
	m, err := re.FindStringMatch(text)
	for m != nil && err == nil {
		start := runeToByte[m.Index]
		end := runeToByte[m.Index+m.Length]
		out = append(out, api.Offsets{Start: start, End: end})
		if m.Length == 0 {
			// Zero-width match: step forward to avoid spinning in place.
			break
		}
		m, err = re.FindNextMatch(m)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// complement returns the gaps between ordered spans over text.
func complement(text string, matches []api.Offsets) []api.Offsets {
	var out []api.Offsets
	pos := 0
	for _, m := range matches {
		if m.Start > pos {
			out = append(out, api.Offsets{Start: pos, End: m.Start})
		}
		pos = m.End
	}
	if pos < len(text) {
		out = append(out, api.Offsets{Start: pos, End: len(text)})
	}
	return out
}

// PreTokenize implements PreTokenizer.
func (s *Split) PreTokenize(p *PreTokenizedString) error {
	if err := s.guard(); err != nil {
		return err
	}
	return p.Split(func(text string) ([]Piece, error) {
		matches, err := findMatches(s.re, text)
		if err != nil {
			return nil, err
		}
		if s.Invert {
			matches = complement(text, matches)
		}
		return behaviorPieces(text, matches, s.Behavior), nil
	})
}
