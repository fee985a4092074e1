// Package tokenizer assembles the full encoding pipeline: added-token
// extraction, normalization, pre-tokenization, the model, post-processing,
// truncation and padding on the way in, and the decoder on the way out.
package tokenizer

import (
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/corpus"
	"github.com/gomlx/go-tokenizers/decoders"
	"github.com/gomlx/go-tokenizers/models"
	"github.com/gomlx/go-tokenizers/normalized"
	"github.com/gomlx/go-tokenizers/normalizers"
	"github.com/gomlx/go-tokenizers/pretokenizers"
	"github.com/gomlx/go-tokenizers/processors"
)

// TruncationStrategy selects which side of a pair gives way when the
// combined length exceeds the limit.
type TruncationStrategy uint8

const (
	// LongestFirst trims whichever sequence is currently longer, one
	// position at a time.
	LongestFirst TruncationStrategy = iota
	// OnlyFirst trims only the first sequence.
	OnlyFirst
	// OnlySecond trims only the second sequence.
	OnlySecond
)

func (s TruncationStrategy) String() string {
	switch s {
	case LongestFirst:
		return "LongestFirst"
	case OnlyFirst:
		return "OnlyFirst"
	case OnlySecond:
		return "OnlySecond"
	}
	return "unknown"
}

// TruncationConfig bounds encodings. MaxLength counts the special tokens
// the post-processor will add.
type TruncationConfig struct {
	MaxLength int
	Stride    int
	Strategy  TruncationStrategy
	Direction api.Direction
}

// PaddingStrategy selects the padding target length.
type PaddingStrategy uint8

const (
	// PadLongest pads every encoding of a batch to the batch's longest.
	PadLongest PaddingStrategy = iota
	// PadFixed pads to a fixed length.
	PadFixed
)

func (s PaddingStrategy) String() string {
	switch s {
	case PadLongest:
		return "BatchLongest"
	case PadFixed:
		return "Fixed"
	}
	return "unknown"
}

// PaddingConfig describes how encodings are padded. PadToMultipleOf
// rounds the target length up when non-zero.
type PaddingConfig struct {
	Strategy        PaddingStrategy
	Length          int
	PadToMultipleOf int
	PadID           int
	PadTypeID       int
	PadToken        string
	Direction       api.Direction
}

// Fields is a bitmask of the optional Encoding fields to compute. Ids
// are always produced.
type Fields uint8

const (
	FieldTypeIDs Fields = 1 << iota
	FieldTokens
	FieldWordIDs
	FieldOffsets
	FieldSpecialTokensMask
	FieldAttentionMask

	AllFields = FieldTypeIDs | FieldTokens | FieldWordIDs | FieldOffsets |
		FieldSpecialTokensMask | FieldAttentionMask
)

// Tokenizer ties the pipeline stages together. Configure it with the
// With* methods, which return the tokenizer for chaining. A Tokenizer
// owns its stages and closes them with itself; it is safe for concurrent
// encoding once configured.
type Tokenizer struct {
	normalizer    normalizers.Normalizer
	preTokenizer  pretokenizers.PreTokenizer
	model         models.Model
	postProcessor processors.PostProcessor
	decoder       decoders.Decoder

	added      *AddedVocabulary
	truncation *TruncationConfig
	padding    *PaddingConfig
	fields     Fields

	offsetsRef  api.Referential
	offsetsUnit api.Unit

	closed bool
}

// New returns a tokenizer around model with no other stages configured.
func New(model models.Model) *Tokenizer {
	return &Tokenizer{
		model:       model,
		added:       NewAddedVocabulary(),
		fields:      AllFields,
		offsetsRef:  api.OriginalReferential,
		offsetsUnit: api.ByteUnit,
	}
}

// WithNormalizer sets the normalization stage.
func (t *Tokenizer) WithNormalizer(n normalizers.Normalizer) *Tokenizer {
	t.normalizer = n
	return t
}

// WithPreTokenizer sets the pre-tokenization stage.
func (t *Tokenizer) WithPreTokenizer(p pretokenizers.PreTokenizer) *Tokenizer {
	t.preTokenizer = p
	return t
}

// WithPostProcessor sets the post-processing stage.
func (t *Tokenizer) WithPostProcessor(p processors.PostProcessor) *Tokenizer {
	t.postProcessor = p
	return t
}

// WithDecoder sets the decoding stage.
func (t *Tokenizer) WithDecoder(d decoders.Decoder) *Tokenizer {
	t.decoder = d
	return t
}

// WithTruncation enables truncation; nil disables it.
func (t *Tokenizer) WithTruncation(cfg *TruncationConfig) *Tokenizer {
	t.truncation = cfg
	return t
}

// WithPadding enables padding; nil disables it.
func (t *Tokenizer) WithPadding(cfg *PaddingConfig) *Tokenizer {
	t.padding = cfg
	return t
}

// WithFields selects which optional encoding fields are computed.
func (t *Tokenizer) WithFields(fields Fields) *Tokenizer {
	t.fields = fields
	return t
}

// WithOffsets selects the referential and unit of reported offsets.
func (t *Tokenizer) WithOffsets(ref api.Referential, unit api.Unit) *Tokenizer {
	t.offsetsRef = ref
	t.offsetsUnit = unit
	return t
}

// Normalizer returns the configured normalization stage, may be nil.
func (t *Tokenizer) Normalizer() normalizers.Normalizer { return t.normalizer }

// PreTokenizer returns the configured pre-tokenization stage, may be nil.
func (t *Tokenizer) PreTokenizer() pretokenizers.PreTokenizer { return t.preTokenizer }

// Model returns the tokenization model.
func (t *Tokenizer) Model() models.Model { return t.model }

// PostProcessor returns the configured post-processing stage, may be nil.
func (t *Tokenizer) PostProcessor() processors.PostProcessor { return t.postProcessor }

// Decoder returns the configured decoding stage, may be nil.
func (t *Tokenizer) Decoder() decoders.Decoder { return t.decoder }

// Added returns the added-token vocabulary.
func (t *Tokenizer) Added() *AddedVocabulary { return t.added }

// Truncation returns the truncation configuration, nil when disabled.
func (t *Tokenizer) Truncation() *TruncationConfig { return t.truncation }

// Padding returns the padding configuration, nil when disabled.
func (t *Tokenizer) Padding() *PaddingConfig { return t.padding }

func (t *Tokenizer) guard() error {
	if t.closed {
		return api.ErrClosed
	}
	return nil
}

// Close releases the tokenizer and every stage it owns. Closing twice is
// a no-op.
func (t *Tokenizer) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	for _, c := range []interface{ Close() error }{
		t.normalizer, t.preTokenizer, t.postProcessor, t.decoder,
	} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			return err
		}
	}
	return nil
}

// AddTokens registers plain added tokens, returning how many were new.
func (t *Tokenizer) AddTokens(tokens ...api.AddedToken) int {
	return t.added.Add(tokens, t.model)
}

// AddSpecialTokens registers the given contents as special added tokens.
func (t *Tokenizer) AddSpecialTokens(contents ...string) int {
	tokens := make([]api.AddedToken, len(contents))
	for i, content := range contents {
		tokens[i] = api.NewSpecialToken(content)
	}
	return t.added.Add(tokens, t.model)
}

// TokenToID resolves a token, added vocabulary first.
func (t *Tokenizer) TokenToID(token string) (int, bool) {
	if id, ok := t.added.TokenToID(token); ok {
		return id, true
	}
	return t.model.TokenToID(token)
}

// IDToToken resolves an id, added vocabulary first.
func (t *Tokenizer) IDToToken(id int) (string, bool) {
	if token, ok := t.added.IDToToken(id); ok {
		return token, true
	}
	return t.model.IDToToken(id)
}

// Vocab returns the vocabulary, including added tokens when withAdded is
// set.
func (t *Tokenizer) Vocab(withAdded bool) map[string]int {
	vocab := t.model.Vocab()
	if withAdded {
		for _, tok := range t.added.Tokens() {
			id, _ := t.added.TokenToID(tok.Content)
			vocab[tok.Content] = id
		}
	}
	return vocab
}

// VocabSize returns the vocabulary size, counting added ids past the
// model when withAdded is set.
func (t *Tokenizer) VocabSize(withAdded bool) int {
	if !withAdded {
		return t.model.VocabSize()
	}
	return t.model.VocabSize() + t.added.novel
}

// NumSpecialTokensToAdd reports how many positions post-processing adds.
func (t *Tokenizer) NumSpecialTokensToAdd(isPair bool) int {
	if t.postProcessor == nil {
		return 0
	}
	return t.postProcessor.AddedTokens(isPair)
}

// Encode runs the pipeline over one input.
func (t *Tokenizer) Encode(input string, addSpecialTokens bool) (*api.Encoding, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}
	return t.encode(input, nil, addSpecialTokens)
}

// EncodePair runs the pipeline over an input pair.
func (t *Tokenizer) EncodePair(input, pair string, addSpecialTokens bool) (*api.Encoding, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}
	return t.encode(input, &pair, addSpecialTokens)
}

// EncodeBatch encodes every input concurrently. With PadLongest
// configured, the whole batch is padded to its longest encoding.
func (t *Tokenizer) EncodeBatch(inputs []string, addSpecialTokens bool) ([]*api.Encoding, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}
	out := make([]*api.Encoding, len(inputs))
	g := new(errgroup.Group)
	for i, input := range inputs {
		g.Go(func() error {
			enc, err := t.encode(input, nil, addSpecialTokens)
			if err != nil {
				return err
			}
			out[i] = enc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if t.padding != nil && t.padding.Strategy == PadLongest {
		longest := 0
		for _, enc := range out {
			if enc.Len() > longest {
				longest = enc.Len()
			}
		}
		target := t.padTarget(longest)
		for _, enc := range out {
			t.pad(enc, target)
		}
	}
	return out, nil
}

func (t *Tokenizer) encode(input string, pair *string, addSpecialTokens bool) (*api.Encoding, error) {
	encoding, err := t.encodeSingle(input)
	if err != nil {
		return nil, err
	}
	var pairEncoding *api.Encoding
	if pair != nil {
		if pairEncoding, err = t.encodeSingle(*pair); err != nil {
			return nil, err
		}
	}

	if t.truncation != nil {
		if err := t.truncate(encoding, pairEncoding, addSpecialTokens); err != nil {
			return nil, err
		}
	}

	final, err := t.postProcess(encoding, pairEncoding, addSpecialTokens)
	if err != nil {
		return nil, err
	}

	if t.padding != nil && t.padding.Strategy == PadFixed {
		t.pad(final, t.padTarget(t.padding.Length))
	}
	t.project(final)
	return final, nil
}

// encodeSingle pushes one raw string through added-token extraction,
// normalization, pre-tokenization and the model, merging the per-part
// encodings back together.
func (t *Tokenizer) encodeSingle(sequence string) (*api.Encoding, error) {
	out := &api.Encoding{}
	for _, p := range t.added.Extract(sequence) {
		if p.tokenID >= 0 {
			out.Merge(t.addedTokenEncoding(sequence, p), true)
			continue
		}
		enc, err := t.encodePlain(p.text)
		if err != nil {
			return nil, err
		}
		t.shiftOffsets(enc, sequence, p.start)
		out.Merge(enc, true)
	}
	return out, nil
}

// addedTokenEncoding emits the single position of a matched added token.
func (t *Tokenizer) addedTokenEncoding(sequence string, p part) *api.Encoding {
	offsets := api.Offsets{Start: p.start, End: p.start + len(p.text)}
	if t.offsetsUnit == api.CharUnit {
		offsets = api.CharOffsets(sequence, offsets)
	}
	special := 0
	if p.special {
		special = 1
	}
	return &api.Encoding{
		IDs:               []int{p.tokenID},
		TypeIDs:           []int{0},
		Tokens:            []string{p.text},
		WordIDs:           []int{0},
		Offsets:           []api.Offsets{offsets},
		SpecialTokensMask: []int{special},
		AttentionMask:     []int{1},
	}
}

// encodePlain runs the normal pipeline over text that matched no added
// token.
func (t *Tokenizer) encodePlain(text string) (*api.Encoding, error) {
	ns := normalized.New(text)
	if t.normalizer != nil {
		if err := t.normalizer.Normalize(ns); err != nil {
			return nil, err
		}
	}
	pts := pretokenizers.New(ns)
	if t.preTokenizer != nil {
		if err := t.preTokenizer.PreTokenize(pts); err != nil {
			return nil, err
		}
	}
	for i := 0; i < pts.Count(); i++ {
		tokens, err := t.model.Tokenize(pts.Text(i))
		if err != nil {
			return nil, api.WrapError(api.EncodingError, err)
		}
		pts.SetTokens(i, tokens)
	}
	return pts.IntoEncoding(0, t.offsetsRef, t.offsetsUnit)
}

// shiftOffsets rebases a part's offsets onto the full raw input. Only
// original-referential offsets can be rebased; normalized offsets stay
// local to their part.
func (t *Tokenizer) shiftOffsets(enc *api.Encoding, sequence string, start int) {
	if t.offsetsRef != api.OriginalReferential || start == 0 {
		return
	}
	shift := start
	if t.offsetsUnit == api.CharUnit {
		shift = utf8.RuneCountInString(sequence[:start])
	}
	for i := range enc.Offsets {
		enc.Offsets[i].Start += shift
		enc.Offsets[i].End += shift
	}
}

// truncate applies the truncation configuration, reserving room for the
// special tokens post-processing will add.
func (t *Tokenizer) truncate(encoding, pair *api.Encoding, addSpecialTokens bool) error {
	cfg := t.truncation
	reserved := 0
	if addSpecialTokens {
		reserved = t.NumSpecialTokensToAdd(pair != nil)
	}
	budget := cfg.MaxLength - reserved
	if budget < 0 {
		budget = 0
	}
	if pair == nil {
		encoding.Truncate(budget, cfg.Stride, cfg.Direction)
		return nil
	}
	switch cfg.Strategy {
	case OnlyFirst:
		target := budget - pair.Len()
		if target <= 0 {
			return api.Errorf(api.EncodingError, "second sequence alone exceeds the truncation budget of %d", budget)
		}
		encoding.Truncate(target, cfg.Stride, cfg.Direction)
	case OnlySecond:
		target := budget - encoding.Len()
		if target <= 0 {
			return api.Errorf(api.EncodingError, "first sequence alone exceeds the truncation budget of %d", budget)
		}
		pair.Truncate(target, cfg.Stride, cfg.Direction)
	default:
		lenA, lenB := encoding.Len(), pair.Len()
		for lenA+lenB > budget {
			if lenA >= lenB {
				lenA--
			} else {
				lenB--
			}
		}
		encoding.Truncate(lenA, cfg.Stride, cfg.Direction)
		pair.Truncate(lenB, cfg.Stride, cfg.Direction)
	}
	return nil
}

// postProcess finalises the encoding, pushing overflow windows through
// the same processing individually.
func (t *Tokenizer) postProcess(encoding, pair *api.Encoding, addSpecialTokens bool) (*api.Encoding, error) {
	windows := encoding.Overflowing
	encoding.Overflowing = nil
	if pair != nil {
		windows = append(windows, pair.Overflowing...)
		pair.Overflowing = nil
	}

	final, err := t.processOne(encoding, pair, addSpecialTokens)
	if err != nil {
		return nil, err
	}
	for i := range windows {
		processed, err := t.processOne(&windows[i], nil, addSpecialTokens)
		if err != nil {
			return nil, err
		}
		if t.padding != nil && t.padding.Strategy == PadFixed {
			t.pad(processed, t.padTarget(t.padding.Length))
		}
		final.Overflowing = append(final.Overflowing, *processed)
	}
	return final, nil
}

func (t *Tokenizer) processOne(encoding, pair *api.Encoding, addSpecialTokens bool) (*api.Encoding, error) {
	if t.postProcessor == nil {
		out := &api.Encoding{}
		out.Merge(encoding, true)
		if pair != nil {
			for i := range pair.TypeIDs {
				pair.TypeIDs[i] = 1
			}
			out.Merge(pair, true)
		}
		return out, nil
	}
	return t.postProcessor.Process(encoding, pair, addSpecialTokens)
}

// padTarget rounds the base length up to the configured multiple.
func (t *Tokenizer) padTarget(base int) int {
	if t.padding.PadToMultipleOf > 0 {
		if rem := base % t.padding.PadToMultipleOf; rem != 0 {
			base += t.padding.PadToMultipleOf - rem
		}
	}
	return base
}

func (t *Tokenizer) pad(enc *api.Encoding, target int) {
	cfg := t.padding
	enc.Pad(target, cfg.PadID, cfg.PadTypeID, cfg.PadToken, cfg.Direction)
}

// project drops the optional fields the caller did not ask for.
func (t *Tokenizer) project(enc *api.Encoding) {
	if t.fields == AllFields {
		return
	}
	if t.fields&FieldTypeIDs == 0 {
		enc.TypeIDs = nil
	}
	if t.fields&FieldTokens == 0 {
		enc.Tokens = nil
	}
	if t.fields&FieldWordIDs == 0 {
		enc.WordIDs = nil
	}
	if t.fields&FieldOffsets == 0 {
		enc.Offsets = nil
	}
	if t.fields&FieldSpecialTokensMask == 0 {
		enc.SpecialTokensMask = nil
	}
	if t.fields&FieldAttentionMask == 0 {
		enc.AttentionMask = nil
	}
	for i := range enc.Overflowing {
		t.project(&enc.Overflowing[i])
	}
}

// Decode maps ids back to text through the configured decoder. With no
// decoder, tokens are joined with single spaces.
func (t *Tokenizer) Decode(ids []int, skipSpecialTokens bool) (string, error) {
	if err := t.guard(); err != nil {
		return "", err
	}
	tokens := make([]string, 0, len(ids))
	for _, id := range ids {
		token, ok := t.IDToToken(id)
		if !ok {
			return "", api.Errorf(api.DecodingError, "id %d is outside the vocabulary", id)
		}
		if skipSpecialTokens && t.added.IsSpecial(token) {
			continue
		}
		tokens = append(tokens, token)
	}
	if t.decoder != nil {
		text, err := decoders.Decode(t.decoder, tokens)
		if err != nil {
			return "", api.WrapError(api.DecodingError, err)
		}
		return text, nil
	}
	return strings.Join(tokens, " "), nil
}

// DecodeBatch decodes every id sequence concurrently.
func (t *Tokenizer) DecodeBatch(batch [][]int, skipSpecialTokens bool) ([]string, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}
	out := make([]string, len(batch))
	g := new(errgroup.Group)
	for i, ids := range batch {
		g.Go(func() error {
			text, err := t.Decode(ids, skipSpecialTokens)
			if err != nil {
				return err
			}
			out[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Train counts words with the configured normalization and
// pre-tokenization, trains a fresh model, and installs it together with
// the trainer's special tokens.
func (t *Tokenizer) Train(ctx context.Context, trainer models.Trainer, sources ...corpus.Source) error {
	if err := t.guard(); err != nil {
		return err
	}
	counts, err := corpus.WordCounts(ctx, t.splitForTraining, sources...)
	if err != nil {
		return err
	}
	model, err := trainer.Train(counts)
	if err != nil {
		return err
	}
	t.model = model
	t.added = NewAddedVocabulary()
	t.added.Add(trainer.SpecialTokens(), model)
	return nil
}

// splitForTraining runs a line through normalization and
// pre-tokenization, returning the word list the trainers consume.
func (t *Tokenizer) splitForTraining(line string) ([]string, error) {
	ns := normalized.New(line)
	if t.normalizer != nil {
		if err := t.normalizer.Normalize(ns); err != nil {
			return nil, err
		}
	}
	pts := pretokenizers.New(ns)
	if t.preTokenizer != nil {
		if err := t.preTokenizer.PreTokenize(pts); err != nil {
			return nil, err
		}
	}
	words := make([]string, pts.Count())
	for i := range words {
		words[i] = pts.Text(i)
	}
	return words, nil
}
