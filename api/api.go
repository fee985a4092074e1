// Package api defines the shared types of the tokenization pipeline.
// It sits below every other package so that normalizers, pre-tokenizers,
// models, processors and decoders can exchange tokens, offsets and encodings
// without cyclic dependencies.
package api

// Referential selects which text an offset range refers to: the original
// input as given by the caller, or the normalized text produced by the
// normalizer chain.
type Referential uint8

const (
	OriginalReferential Referential = iota
	NormalizedReferential
)

// Unit selects how offsets are counted.
type Unit uint8

const (
	ByteUnit Unit = iota
	CharUnit
)

// Offsets is a half-open [Start, End) range over a text. Whether positions
// count bytes or runes, and which text they index, is decided by the
// Referential and Unit the range was requested in.
type Offsets struct {
	Start int
	End   int
}

// Len returns the width of the range.
func (o Offsets) Len() int { return o.End - o.Start }

// CharOffsets converts byte offsets over text into rune offsets.
// Offsets must sit on rune boundaries of text.
func CharOffsets(text string, o Offsets) Offsets {
	chars := 0
	var out Offsets
	for i := range text {
		if i == o.Start {
			out.Start = chars
		}
		if i == o.End {
			out.End = chars
			return out
		}
		chars++
	}
	if o.Start == len(text) {
		out.Start = chars
	}
	out.End = chars
	return out
}

// Token is a single unit produced by a model: the vocabulary entry, its id,
// and the byte span of the tokenized sequence it covers.
type Token struct {
	ID      int
	Value   string
	Offsets Offsets
}

// AddedToken is a token injected into the vocabulary independently of
// training, optionally marked special. The flags control how it is matched
// in raw input before the model runs.
type AddedToken struct {
	Content    string `json:"content"`
	SingleWord bool   `json:"single_word"`
	LStrip     bool   `json:"lstrip"`
	RStrip     bool   `json:"rstrip"`
	Normalized bool   `json:"normalized"`
	Special    bool   `json:"special"`
}

// NewAddedToken returns a regular (non-special) added token with the default
// matching flags used for user-added vocabulary entries.
func NewAddedToken(content string) AddedToken {
	return AddedToken{Content: content, Normalized: true}
}

// NewSpecialToken returns a special added token: matched verbatim in raw
// input, never normalized, skippable when decoding.
func NewSpecialToken(content string) AddedToken {
	return AddedToken{Content: content, Special: true}
}
