package decoders

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gomlx/go-tokenizers/internal/bytelevel"
	"github.com/gomlx/go-tokenizers/pretokenizers"
)

// ByteLevel maps the byte-to-unicode alphabet back to raw bytes,
// undoing the byte-level pre-tokenizer.
type ByteLevel struct {
	lifecycle
}

// NewByteLevel returns a ByteLevel decoder.
func NewByteLevel() *ByteLevel { return &ByteLevel{} }

// DecodeChain implements Decoder. The whole chain is joined before
// decoding: multi-byte characters may be split across tokens and only
// decode correctly once reassembled.
func (d *ByteLevel) DecodeChain(tokens []string) ([]string, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	return []string{bytelevel.Decode(strings.Join(tokens, ""))}, nil
}

// Metaspace turns the replacement character back into spaces, dropping
// the one prepended to the first word.
type Metaspace struct {
	lifecycle
	Replacement rune
	Scheme      pretokenizers.PrependScheme
}

// NewMetaspace returns a Metaspace decoder with the standard
// replacement.
func NewMetaspace() *Metaspace {
	return &Metaspace{
		Replacement: pretokenizers.DefaultMetaspaceReplacement,
		Scheme:      pretokenizers.PrependAlways,
	}
}

// DecodeChain implements Decoder.
func (d *Metaspace) DecodeChain(tokens []string) ([]string, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	out := make([]string, len(tokens))
	for i, token := range tokens {
		token = strings.ReplaceAll(token, string(d.Replacement), " ")
		if i == 0 && d.Scheme != pretokenizers.PrependNever {
			token = strings.TrimPrefix(token, " ")
		}
		out[i] = token
	}
	return out, nil
}

// ByteFallback reassembles <0xNN> byte tokens into text. Runs of byte
// tokens are decoded together; every byte that does not form valid UTF-8
// becomes one replacement character.
type ByteFallback struct {
	lifecycle
}

// NewByteFallback returns a ByteFallback decoder.
func NewByteFallback() *ByteFallback { return &ByteFallback{} }

// byteTokenValue parses "<0xNN>", reporting false for anything else.
func byteTokenValue(token string) (byte, bool) {
	if len(token) != 6 || !strings.HasPrefix(token, "<0x") || token[5] != '>' {
		return 0, false
	}
	v, err := strconv.ParseUint(token[3:5], 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(v), true
}

// flushBytes decodes an accumulated byte run, substituting U+FFFD per
// invalid byte.
func flushBytes(raw []byte) string {
	var b strings.Builder
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		if r == utf8.RuneError && size <= 1 {
			b.WriteRune('�')
			raw = raw[1:]
			continue
		}
		b.Write(raw[:size])
		raw = raw[size:]
	}
	return b.String()
}

// DecodeChain implements Decoder.
func (d *ByteFallback) DecodeChain(tokens []string) ([]string, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	var out []string
	var pending []byte
	for _, token := range tokens {
		if b, ok := byteTokenValue(token); ok {
			pending = append(pending, b)
			continue
		}
		if len(pending) > 0 {
			out = append(out, flushBytes(pending))
			pending = nil
		}
		out = append(out, token)
	}
	if len(pending) > 0 {
		out = append(out, flushBytes(pending))
	}
	return out, nil
}
