package processors

import (
	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/internal/bytelevel"
)

// ByteLevel fixes up offsets of byte-level tokens: the space glued to the
// front of a word by the byte-level pre-tokenizer is removed from the
// reported range, so offsets point at the visible word.
type ByteLevel struct {
	lifecycle

	// AddPrefixSpace mirrors the pre-tokenizer setting. When false, the
	// first token never had a space glued on and is left untouched.
	AddPrefixSpace bool

	// TrimOffsets enables the offset fixup.
	TrimOffsets bool
}

// NewByteLevel returns a ByteLevel processor with trimming enabled.
func NewByteLevel() *ByteLevel {
	return &ByteLevel{AddPrefixSpace: true, TrimOffsets: true}
}

// AddedTokens implements PostProcessor.
func (p *ByteLevel) AddedTokens(isPair bool) int { return 0 }

// Process implements PostProcessor.
func (p *ByteLevel) Process(encoding, pair *api.Encoding, addSpecialTokens bool) (*api.Encoding, error) {
	if err := p.guard(); err != nil {
		return nil, err
	}
	if p.TrimOffsets {
		trimByteLevelOffsets(encoding, p.AddPrefixSpace)
		if pair != nil {
			trimByteLevelOffsets(pair, p.AddPrefixSpace)
		}
	}
	out := withTypeID(encoding, 0)
	if pair != nil {
		out.Merge(withTypeID(pair, 1), true)
	}
	return out, nil
}

// trimByteLevelOffsets shrinks each token's offsets by its leading and
// trailing encoded spaces. Every encoded space maps back to exactly one
// source byte, so the adjustment is a plain count.
func trimByteLevelOffsets(e *api.Encoding, addPrefixSpace bool) {
	for i, token := range e.Tokens {
		if e.SpecialTokensMask[i] == 1 {
			continue
		}
		leading, trailing := spaceMargins(token)
		offsets := e.Offsets[i]
		if i == 0 && !addPrefixSpace {
			leading = 0
		}
		offsets.Start += leading
		offsets.End -= trailing
		if offsets.End < offsets.Start {
			offsets.End = offsets.Start
		}
		e.Offsets[i] = offsets
	}
}

// spaceMargins counts the encoded spaces at both ends of a byte-level
// token.
func spaceMargins(token string) (leading, trailing int) {
	runes := []rune(token)
	for _, r := range runes {
		if b, ok := bytelevel.ByteFor(r); !ok || b != ' ' {
			break
		}
		leading++
	}
	for i := len(runes) - 1; i >= leading; i-- {
		if b, ok := bytelevel.ByteFor(runes[i]); !ok || b != ' ' {
			break
		}
		trailing++
	}
	return leading, trailing
}
