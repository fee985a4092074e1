package pretokenizers

import (
	"unicode/utf8"

	"github.com/gomlx/go-tokenizers/api"
)

// PrependScheme controls whether Metaspace inserts its replacement
// character in front of the text.
type PrependScheme uint8

const (
	// PrependAlways adds the replacement at the start of every split.
	PrependAlways PrependScheme = iota
	// PrependFirst adds it only at the start of the first split.
	PrependFirst
	// PrependNever adds nothing.
	PrependNever
)

func (s PrependScheme) String() string {
	switch s {
	case PrependAlways:
		return "always"
	case PrependFirst:
		return "first"
	case PrependNever:
		return "never"
	}
	return "unknown"
}

// Metaspace replaces every space by a designated replacement character and
// splits so that each word keeps its leading replacement, the SentencePiece
// convention.
type Metaspace struct {
	lifecycle
	Replacement rune
	Scheme      PrependScheme
	SplitOn     bool
}

// DefaultMetaspaceReplacement is U+2581, LOWER ONE EIGHTH BLOCK.
const DefaultMetaspaceReplacement = '▁'

// NewMetaspace validates the replacement character at construction: it must
// be exactly one character.
func NewMetaspace(replacement rune, scheme PrependScheme, splitOn bool) (*Metaspace, error) {
	if replacement == 0 || !utf8.ValidRune(replacement) {
		return nil, api.Errorf(api.PreTokenizationError, "metaspace replacement must be exactly one character")
	}
	return &Metaspace{Replacement: replacement, Scheme: scheme, SplitOn: splitOn}, nil
}

// PreTokenize implements PreTokenizer.
func (m *Metaspace) PreTokenize(p *PreTokenizedString) error {
	if err := m.guard(); err != nil {
		return err
	}
	rep := string(m.Replacement)
	repLen := len(rep)
	index := 0
	if err := p.Split(func(text string) ([]Piece, error) {
		prepend := m.Scheme == PrependAlways || (m.Scheme == PrependFirst && index == 0)
		index++

		var out []byte
		var mapping [][2]int
		if prepend {
			out = append(out, rep...)
			for j := 0; j < repLen; j++ {
				mapping = append(mapping, [2]int{0, 0})
			}
		}
		for i, r := range text {
			w := utf8.RuneLen(r)
			if r == ' ' {
				out = append(out, rep...)
				for j := 0; j < repLen; j++ {
					mapping = append(mapping, [2]int{i, i + w})
				}
				continue
			}
			out = append(out, text[i:i+w]...)
			for j := 0; j < w; j++ {
				mapping = append(mapping, [2]int{i, i + w})
			}
		}
		piece := Piece{Range: api.Offsets{Start: 0, End: len(text)}, Text: string(out), Mapping: mapping}
		return []Piece{piece}, nil
	}); err != nil {
		return err
	}

	if !m.SplitOn {
		return nil
	}
	return p.Split(func(text string) ([]Piece, error) {
		matches := matchRunes(text, func(r rune) bool { return r == m.Replacement })
		return behaviorPieces(text, matches, MergedWithNext), nil
	})
}
