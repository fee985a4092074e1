// Package decoders implements the decoding stage: turning a sequence of
// token strings back into readable text, undoing whatever marker scheme
// the model's tokens carry. The variant set is closed; serialization
// dispatches over the "type" tag of each variant.
package decoders

import (
	"strings"
	"unicode/utf8"

	"github.com/gomlx/go-tokenizers/api"
)

// Decoder rewrites a token chain. Each step receives the previous step's
// output, so decoders compose. Instances are owned by a single caller;
// after Close every call fails with api.ErrClosed.
type Decoder interface {
	DecodeChain(tokens []string) ([]string, error)
	Close() error
}

// Decode runs d over tokens and joins the result into the final text.
func Decode(d Decoder, tokens []string) (string, error) {
	parts, err := d.DecodeChain(tokens)
	if err != nil {
		return "", err
	}
	return strings.Join(parts, ""), nil
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

// WordPiece undoes the continuation prefix: continuation tokens are
// glued to the previous one, word-initial tokens get a space.
type WordPiece struct {
	lifecycle

	// Prefix marks continuation tokens, "##" by convention.
	Prefix string

	// Cleanup removes the artifacts of pre-tokenization around
	// punctuation and contractions.
	Cleanup bool
}

// NewWordPiece returns a WordPiece decoder with the standard "##"
// prefix and cleanup enabled.
func NewWordPiece() *WordPiece {
	return &WordPiece{Prefix: "##", Cleanup: true}
}

var cleanupReplacer = strings.NewReplacer(
	" .", ".",
	" ?", "?",
	" !", "!",
	" ,", ",",
	" ' ", "'",
	" n't", "n't",
	" 'm", "'m",
	" 's", "'s",
	" 've", "'ve",
	" 're", "'re",
)

// DecodeChain implements Decoder.
func (d *WordPiece) DecodeChain(tokens []string) ([]string, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	out := make([]string, len(tokens))
	for i, token := range tokens {
		if i > 0 {
			if strings.HasPrefix(token, d.Prefix) {
				token = strings.TrimPrefix(token, d.Prefix)
			} else {
				token = " " + token
			}
		}
		if d.Cleanup {
			token = cleanupReplacer.Replace(token)
		}
		out[i] = token
	}
	return out, nil
}

// BPEDecoder undoes an end-of-word suffix by turning it into a space.
type BPEDecoder struct {
	lifecycle
	Suffix string
}

// NewBPEDecoder returns a BPEDecoder for the given end-of-word suffix,
// "</w>" when empty.
func NewBPEDecoder(suffix string) *BPEDecoder {
	if suffix == "" {
		suffix = "</w>"
	}
	return &BPEDecoder{Suffix: suffix}
}

// DecodeChain implements Decoder.
func (d *BPEDecoder) DecodeChain(tokens []string) ([]string, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	out := make([]string, len(tokens))
	for i, token := range tokens {
		replacement := " "
		if i == len(tokens)-1 {
			replacement = ""
		}
		out[i] = strings.ReplaceAll(token, d.Suffix, replacement)
	}
	return out, nil
}

// Fuse concatenates the whole chain into one string.
type Fuse struct {
	lifecycle
}

// NewFuse returns a Fuse decoder.
func NewFuse() *Fuse { return &Fuse{} }

// DecodeChain implements Decoder.
func (d *Fuse) DecodeChain(tokens []string) ([]string, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	return []string{strings.Join(tokens, "")}, nil
}

// Strip removes up to a fixed number of copies of one character from
// each end of every token.
type Strip struct {
	lifecycle
	Content rune
	Left    int
	Right   int
}

// NewStrip returns a Strip decoder.
func NewStrip(content rune, left, right int) *Strip {
	return &Strip{Content: content, Left: left, Right: right}
}

// DecodeChain implements Decoder.
func (d *Strip) DecodeChain(tokens []string) ([]string, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	out := make([]string, len(tokens))
	for i, token := range tokens {
		for n := 0; n < d.Left; n++ {
			r, size := utf8.DecodeRuneInString(token)
			if size == 0 || r != d.Content {
				break
			}
			token = token[size:]
		}
		for n := 0; n < d.Right; n++ {
			r, size := utf8.DecodeLastRuneInString(token)
			if size == 0 || r != d.Content {
				break
			}
			token = token[:len(token)-size]
		}
		out[i] = token
	}
	return out, nil
}

// Replace rewrites every token with a pattern substitution, the inverse
// of the Replace normalizer.
type Replace struct {
	lifecycle
	Pattern api.Pattern
	Content string

	re replaceRegexp
}

type replaceRegexp interface {
	ReplaceAllString(src, repl string) string
}

// NewReplace compiles the pattern eagerly so a bad expression fails at
// construction.
func NewReplace(pattern api.Pattern, content string) (*Replace, error) {
	re, err := pattern.Compile()
	if err != nil {
		return nil, api.WrapError(api.ConfigError, err)
	}
	return &Replace{Pattern: pattern, Content: content, re: re}, nil
}

// DecodeChain implements Decoder.
func (d *Replace) DecodeChain(tokens []string) ([]string, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	out := make([]string, len(tokens))
	for i, token := range tokens {
		out[i] = d.re.ReplaceAllString(token, d.Content)
	}
	return out, nil
}

// Sequence chains decoders, feeding each the previous output.
type Sequence struct {
	lifecycle
	children []Decoder
}

// NewSequence adopts the given decoders. The sequence owns them and
// closes them with itself.
func NewSequence(children ...Decoder) *Sequence {
	return &Sequence{children: children}
}

// Children returns the chained decoders, in order.
func (d *Sequence) Children() []Decoder { return d.children }

// DecodeChain implements Decoder.
func (d *Sequence) DecodeChain(tokens []string) ([]string, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	var err error
	for _, child := range d.children {
		tokens, err = child.DecodeChain(tokens)
		if err != nil {
			return nil, err
		}
	}
	return tokens, nil
}

// Close implements Decoder, closing every child exactly once.
func (d *Sequence) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	for _, child := range d.children {
		if err := child.Close(); err != nil {
			return err
		}
	}
	return nil
}
