package processors

import (
	"strconv"
	"strings"

	"github.com/gomlx/go-tokenizers/api"
)

// templatePiece is one slot of a parsed template: a sequence reference
// ($A or $B) or a special token, each with a type id.
type templatePiece struct {
	// sequence is "A" or "B" for sequence slots, empty for specials.
	sequence string
	// special holds the token content for special slots.
	special string
	typeID  int
}

// Template builds encodings from a declarative description such as
// "[CLS] $A [SEP]" or "$A:0 $B:1 [SEP]:1". Slots are whitespace
// separated; "$A" and "$B" stand for the first and second sequence, a
// ":n" suffix sets the slot's type id, and every other slot names a
// special token that must be listed in the id map.
type Template struct {
	lifecycle
	single []templatePiece
	pair   []templatePiece

	singleSrc string
	pairSrc   string
	specials  map[string]int
}

// NewTemplate parses the single and pair templates. The pair template
// may be empty, in which case pair inputs are rejected at Process time.
// Every special token referenced by a template must appear in specials.
func NewTemplate(single, pair string, specials map[string]int) (*Template, error) {
	t := &Template{
		singleSrc: single,
		pairSrc:   pair,
		specials:  make(map[string]int, len(specials)),
	}
	for token, id := range specials {
		t.specials[token] = id
	}

	var err error
	if t.single, err = t.parse(single, false); err != nil {
		return nil, err
	}
	if len(t.single) == 0 {
		return nil, api.Errorf(api.ConfigError, "empty single-sequence template")
	}
	if pair != "" {
		if t.pair, err = t.parse(pair, true); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Template) parse(template string, allowB bool) ([]templatePiece, error) {
	var pieces []templatePiece
	sawA, sawB := false, false
	for _, field := range strings.Fields(template) {
		piece := templatePiece{}
		if colon := strings.LastIndex(field, ":"); colon > 0 {
			id, err := strconv.Atoi(field[colon+1:])
			if err != nil || id < 0 {
				return nil, api.Errorf(api.ConfigError, "bad type id in template slot %q", field)
			}
			piece.typeID = id
			field = field[:colon]
		}
		switch {
		case field == "$A" || field == "$a" || field == "$" || field == "$0":
			piece.sequence = "A"
			sawA = true
		case field == "$B" || field == "$b" || field == "$1":
			if !allowB {
				return nil, api.Errorf(api.ConfigError, "single-sequence template references $B")
			}
			piece.sequence = "B"
			sawB = true
		default:
			if strings.HasPrefix(field, "$") {
				return nil, api.Errorf(api.ConfigError, "unknown sequence reference %q in template", field)
			}
			if _, ok := t.specials[field]; !ok {
				return nil, api.Errorf(api.ConfigError, "template references special token %q with no id", field)
			}
			piece.special = field
		}
		pieces = append(pieces, piece)
	}
	if len(pieces) > 0 && !sawA {
		return nil, api.Errorf(api.ConfigError, "template %q never references $A", template)
	}
	if allowB && len(pieces) > 0 && !sawB {
		return nil, api.Errorf(api.ConfigError, "pair template %q never references $B", template)
	}
	return pieces, nil
}

// SingleTemplate returns the source of the single-sequence template.
func (t *Template) SingleTemplate() string { return t.singleSrc }

// PairTemplate returns the source of the pair template, empty when pairs
// are not configured.
func (t *Template) PairTemplate() string { return t.pairSrc }

// SpecialTokens returns a copy of the special-token id map.
func (t *Template) SpecialTokens() map[string]int {
	out := make(map[string]int, len(t.specials))
	for token, id := range t.specials {
		out[token] = id
	}
	return out
}

// AddedTokens implements PostProcessor.
func (t *Template) AddedTokens(isPair bool) int {
	pieces := t.single
	if isPair {
		pieces = t.pair
	}
	count := 0
	for _, piece := range pieces {
		if piece.special != "" {
			count++
		}
	}
	return count
}

// Process implements PostProcessor.
func (t *Template) Process(encoding, pair *api.Encoding, addSpecialTokens bool) (*api.Encoding, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}
	pieces := t.single
	if pair != nil {
		if t.pair == nil {
			return nil, api.Errorf(api.ConfigError, "template has no pair form but a pair was given")
		}
		pieces = t.pair
	}
	if !addSpecialTokens {
		return mergePair(encoding, pair), nil
	}

	out := &api.Encoding{}
	for _, piece := range pieces {
		switch {
		case piece.sequence == "A":
			out.Merge(withTypeID(encoding, piece.typeID), true)
		case piece.sequence == "B":
			out.Merge(withTypeID(pair, piece.typeID), true)
		default:
			out.Merge(specialEncoding(t.specials[piece.special], piece.special, piece.typeID), false)
		}
	}
	return out, nil
}
