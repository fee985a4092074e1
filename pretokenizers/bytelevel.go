package pretokenizers

import (
	"unicode/utf8"

	"github.com/dlclark/regexp2"

	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/internal/bytelevel"
)

// gpt2Pattern is the GPT-2 contraction/word pattern. The trailing
// whitespace alternation needs lookahead, hence regexp2.
const gpt2Pattern = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`

// ByteLevel remaps every byte to the reversible printable alphabet and
// optionally pre-splits with the GPT-2 word pattern. The remap guarantees
// the model only ever sees valid strings, whatever bytes came in.
type ByteLevel struct {
	lifecycle
	AddPrefixSpace bool
	UseRegex       bool
	TrimOffsets    bool
	re             *regexp2.Regexp
}

// NewByteLevel returns a byte-level pre-tokenizer with the GPT-2 defaults:
// prefix space added, regex splitting on, offset trimming on.
func NewByteLevel() *ByteLevel {
	return &ByteLevel{
		AddPrefixSpace: true,
		UseRegex:       true,
		TrimOffsets:    true,
		re:             regexp2.MustCompile(gpt2Pattern, regexp2.None),
	}
}

// Alphabet returns the 256 runes byte-level models build their base
// vocabulary from.
func Alphabet() []rune { return bytelevel.Alphabet() }

// PreTokenize implements PreTokenizer.
func (b *ByteLevel) PreTokenize(p *PreTokenizedString) error {
	if err := b.guard(); err != nil {
		return err
	}
	return p.Split(func(text string) ([]Piece, error) {
		work := text
		prefixed := false
		if b.AddPrefixSpace && len(text) > 0 && text[0] != ' ' {
			work = " " + text
			prefixed = true
		}

		var spans []api.Offsets
		if b.UseRegex {
			var err error
			spans, err = findMatches(b.re, work)
			if err != nil {
				return nil, err
			}
		} else {
			spans = []api.Offsets{{Start: 0, End: len(work)}}
		}

		// srcRange maps a byte index of work back to the parent split text.
		srcRange := func(i int) [2]int {
			if prefixed {
				if i == 0 {
					return [2]int{0, 0}
				}
				return [2]int{i - 1, i}
			}
			return [2]int{i, i + 1}
		}

		pieces := make([]Piece, 0, len(spans))
		for _, span := range spans {
			if span.Start >= span.End {
				continue
			}
			encoded := make([]byte, 0, (span.End-span.Start)*2)
			var mapping [][2]int
			for i := span.Start; i < span.End; i++ {
				r := bytelevel.RuneFor(work[i])
				w := utf8.RuneLen(r)
				var buf [utf8.UTFMax]byte
				utf8.EncodeRune(buf[:], r)
				encoded = append(encoded, buf[:w]...)
				src := srcRange(i)
				for j := 0; j < w; j++ {
					mapping = append(mapping, src)
				}
			}
			rng := api.Offsets{Start: span.Start, End: span.End}
			if prefixed {
				if rng.Start > 0 {
					rng.Start--
				}
				rng.End--
			}
			pieces = append(pieces, Piece{Range: rng, Text: string(encoded), Mapping: mapping})
		}
		return pieces, nil
	})
}
