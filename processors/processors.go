// Package processors implements the post-processing stage: wrapping model
// output with the special tokens a downstream model expects and fixing up
// type ids and offsets. The variant set is closed; serialization
// dispatches over the "type" tag of each variant.
package processors

import (
	"github.com/gomlx/go-tokenizers/api"
)

// PostProcessor finalises one encoding, or an encoding pair, into the
// single encoding handed back to the caller. Instances are owned by a
// single caller; after Close every call fails with api.ErrClosed.
type PostProcessor interface {
	// AddedTokens returns how many positions Process will add for a
	// single input or a pair. Truncation uses it to reserve room.
	AddedTokens(isPair bool) int

	// Process consumes encoding (and pair, which may be nil) and returns
	// the final encoding. addSpecialTokens false skips the wrapping but
	// still merges pairs.
	Process(encoding, pair *api.Encoding, addSpecialTokens bool) (*api.Encoding, error)

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

// specialEncoding builds the one-position encoding for a special token.
func specialEncoding(id int, token string, typeID int) *api.Encoding {
	return &api.Encoding{
		IDs:               []int{id},
		TypeIDs:           []int{typeID},
		Tokens:            []string{token},
		WordIDs:           []int{api.NoWord},
		Offsets:           []api.Offsets{{}},
		SpecialTokensMask: []int{1},
		AttentionMask:     []int{1},
	}
}

// withTypeID returns a copy of e with every type id replaced.
func withTypeID(e *api.Encoding, typeID int) *api.Encoding {
	out := &api.Encoding{
		IDs:               append([]int(nil), e.IDs...),
		TypeIDs:           make([]int, e.Len()),
		Tokens:            append([]string(nil), e.Tokens...),
		WordIDs:           append([]int(nil), e.WordIDs...),
		Offsets:           append([]api.Offsets(nil), e.Offsets...),
		SpecialTokensMask: append([]int(nil), e.SpecialTokensMask...),
		AttentionMask:     append([]int(nil), e.AttentionMask...),
	}
	for i := range out.TypeIDs {
		out.TypeIDs[i] = typeID
	}
	return out
}

// mergePair joins encoding and pair without special tokens, giving the
// pair type id 1.
func mergePair(encoding, pair *api.Encoding) *api.Encoding {
	out := withTypeID(encoding, 0)
	if pair != nil {
		out.Merge(withTypeID(pair, 1), true)
	}
	return out
}

// Bert wraps encodings the way BERT-family models expect:
// [CLS] A [SEP] for single inputs and [CLS] A [SEP] B [SEP] for pairs,
// with the pair segment carrying type id 1.
type Bert struct {
	lifecycle
	SepToken string
	SepID    int
	ClsToken string
	ClsID    int
}

// NewBert returns a Bert processor for the given separator and
// classifier tokens.
func NewBert(sepToken string, sepID int, clsToken string, clsID int) *Bert {
	return &Bert{SepToken: sepToken, SepID: sepID, ClsToken: clsToken, ClsID: clsID}
}

// AddedTokens implements PostProcessor.
func (p *Bert) AddedTokens(isPair bool) int {
	if isPair {
		return 3
	}
	return 2
}

// Process implements PostProcessor.
func (p *Bert) Process(encoding, pair *api.Encoding, addSpecialTokens bool) (*api.Encoding, error) {
	if err := p.guard(); err != nil {
		return nil, err
	}
	if !addSpecialTokens {
		return mergePair(encoding, pair), nil
	}
	out := specialEncoding(p.ClsID, p.ClsToken, 0)
	out.Merge(withTypeID(encoding, 0), true)
	out.Merge(specialEncoding(p.SepID, p.SepToken, 0), false)
	if pair != nil {
		out.Merge(withTypeID(pair, 1), true)
		out.Merge(specialEncoding(p.SepID, p.SepToken, 1), false)
	}
	return out, nil
}

// Roberta wraps encodings RoBERTa style: <s> A </s> for single inputs
// and <s> A </s> </s> B </s> for pairs. Type ids stay 0 throughout.
type Roberta struct {
	lifecycle
	SepToken string
	SepID    int
	ClsToken string
	ClsID    int

	// TrimOffsets removes the leading space byte-level tokens carry from
	// the reported offsets.
	TrimOffsets bool

	// AddPrefixSpace records whether the byte-level pre-tokenizer added
	// a prefix space; offset trimming leaves the first token alone when
	// it did not.
	AddPrefixSpace bool
}

// NewRoberta returns a Roberta processor with offset trimming enabled.
func NewRoberta(sepToken string, sepID int, clsToken string, clsID int) *Roberta {
	return &Roberta{
		SepToken:       sepToken,
		SepID:          sepID,
		ClsToken:       clsToken,
		ClsID:          clsID,
		TrimOffsets:    true,
		AddPrefixSpace: true,
	}
}

// AddedTokens implements PostProcessor.
func (p *Roberta) AddedTokens(isPair bool) int {
	if isPair {
		return 4
	}
	return 2
}

// Process implements PostProcessor.
func (p *Roberta) Process(encoding, pair *api.Encoding, addSpecialTokens bool) (*api.Encoding, error) {
	if err := p.guard(); err != nil {
		return nil, err
	}
	if p.TrimOffsets {
		trimByteLevelOffsets(encoding, p.AddPrefixSpace)
		if pair != nil {
			trimByteLevelOffsets(pair, p.AddPrefixSpace)
		}
	}
	if !addSpecialTokens {
		out := withTypeID(encoding, 0)
		if pair != nil {
			out.Merge(withTypeID(pair, 0), true)
		}
		return out, nil
	}
	out := specialEncoding(p.ClsID, p.ClsToken, 0)
	out.Merge(withTypeID(encoding, 0), true)
	out.Merge(specialEncoding(p.SepID, p.SepToken, 0), false)
	if pair != nil {
		out.Merge(specialEncoding(p.SepID, p.SepToken, 0), false)
		out.Merge(withTypeID(pair, 0), true)
		out.Merge(specialEncoding(p.SepID, p.SepToken, 0), false)
	}
	return out, nil
}

// Sequence chains processors, feeding each one the previous result. Only
// the first sees the pair; later ones refine the merged encoding.
type Sequence struct {
	lifecycle
	children []PostProcessor
}

// NewSequence adopts the given processors. The sequence owns them and
// closes them with itself.
func NewSequence(children ...PostProcessor) *Sequence {
	return &Sequence{children: children}
}

// Children returns the chained processors, in order.
func (p *Sequence) Children() []PostProcessor { return p.children }

// AddedTokens implements PostProcessor.
func (p *Sequence) AddedTokens(isPair bool) int {
	total := 0
	for _, child := range p.children {
		total += child.AddedTokens(isPair)
	}
	return total
}

// Process implements PostProcessor.
func (p *Sequence) Process(encoding, pair *api.Encoding, addSpecialTokens bool) (*api.Encoding, error) {
	if err := p.guard(); err != nil {
		return nil, err
	}
	out := encoding
	for i, child := range p.children {
		var err error
		if i == 0 {
			out, err = child.Process(out, pair, addSpecialTokens)
		} else {
			out, err = child.Process(out, nil, addSpecialTokens)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Close implements PostProcessor, closing every child exactly once.
func (p *Sequence) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	for _, child := range p.children {
		if err := child.Close(); err != nil {
			return err
		}
	}
	return nil
}
