package tokenizer

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/decoders"
	"github.com/gomlx/go-tokenizers/models"
	"github.com/gomlx/go-tokenizers/models/bpe"
	"github.com/gomlx/go-tokenizers/models/unigram"
	"github.com/gomlx/go-tokenizers/models/wordlevel"
	"github.com/gomlx/go-tokenizers/models/wordpiece"
	"github.com/gomlx/go-tokenizers/normalizers"
	"github.com/gomlx/go-tokenizers/pretokenizers"
	"github.com/gomlx/go-tokenizers/processors"
)

// formatVersion tags serialized tokenizers; readers reject anything
// newer than they know.
const formatVersion = "1.0"

type addedTokenJSON struct {
	ID         int    `json:"id"`
	Content    string `json:"content"`
	SingleWord bool   `json:"single_word"`
	LStrip     bool   `json:"lstrip"`
	RStrip     bool   `json:"rstrip"`
	Normalized bool   `json:"normalized"`
	Special    bool   `json:"special"`
}

type truncationJSON struct {
	Direction string `json:"direction"`
	MaxLength int    `json:"max_length"`
	Strategy  string `json:"strategy"`
	Stride    int    `json:"stride"`
}

type paddingJSON struct {
	Strategy        json.RawMessage `json:"strategy"`
	Direction       string          `json:"direction"`
	PadToMultipleOf *int            `json:"pad_to_multiple_of"`
	PadID           int             `json:"pad_id"`
	PadTypeID       int             `json:"pad_type_id"`
	PadToken        string          `json:"pad_token"`
}

type tokenizerJSON struct {
	Version       string           `json:"version"`
	Truncation    *truncationJSON  `json:"truncation"`
	Padding       *paddingJSON     `json:"padding"`
	AddedTokens   []addedTokenJSON `json:"added_tokens"`
	Normalizer    json.RawMessage  `json:"normalizer"`
	PreTokenizer  json.RawMessage  `json:"pre_tokenizer"`
	PostProcessor json.RawMessage  `json:"post_processor"`
	Decoder       json.RawMessage  `json:"decoder"`
	Model         json.RawMessage  `json:"model"`
}

func directionName(d api.Direction) string {
	if d == api.Left {
		return "Left"
	}
	return "Right"
}

func parseDirection(s string) (api.Direction, error) {
	switch s {
	case "Left", "left":
		return api.Left, nil
	case "Right", "right", "":
		return api.Right, nil
	}
	return api.Right, api.Errorf(api.ConfigError, "unknown direction %q", s)
}

// MarshalJSON implements json.Marshaler, producing the full pipeline
// configuration.
func (t *Tokenizer) MarshalJSON() ([]byte, error) {
	out := tokenizerJSON{Version: formatVersion}

	if t.truncation != nil {
		out.Truncation = &truncationJSON{
			Direction: directionName(t.truncation.Direction),
			MaxLength: t.truncation.MaxLength,
			Strategy:  t.truncation.Strategy.String(),
			Stride:    t.truncation.Stride,
		}
	}
	if t.padding != nil {
		p := &paddingJSON{
			Direction: directionName(t.padding.Direction),
			PadID:     t.padding.PadID,
			PadTypeID: t.padding.PadTypeID,
			PadToken:  t.padding.PadToken,
		}
		if t.padding.PadToMultipleOf > 0 {
			n := t.padding.PadToMultipleOf
			p.PadToMultipleOf = &n
		}
		if t.padding.Strategy == PadFixed {
			raw, err := json.Marshal(map[string]int{"Fixed": t.padding.Length})
			if err != nil {
				return nil, api.WrapError(api.SaveError, err)
			}
			p.Strategy = raw
		} else {
			p.Strategy = json.RawMessage(`"BatchLongest"`)
		}
		out.Padding = p
	}

	for _, tok := range t.added.Tokens() {
		id, _ := t.added.TokenToID(tok.Content)
		out.AddedTokens = append(out.AddedTokens, addedTokenJSON{
			ID:         id,
			Content:    tok.Content,
			SingleWord: tok.SingleWord,
			LStrip:     tok.LStrip,
			RStrip:     tok.RStrip,
			Normalized: tok.Normalized,
			Special:    tok.Special,
		})
	}
	sort.Slice(out.AddedTokens, func(i, j int) bool { return out.AddedTokens[i].ID < out.AddedTokens[j].ID })

	var err error
	if t.normalizer != nil {
		if out.Normalizer, err = normalizers.Marshal(t.normalizer); err != nil {
			return nil, err
		}
	}
	if t.preTokenizer != nil {
		if out.PreTokenizer, err = pretokenizers.Marshal(t.preTokenizer); err != nil {
			return nil, err
		}
	}
	if t.postProcessor != nil {
		if out.PostProcessor, err = processors.Marshal(t.postProcessor); err != nil {
			return nil, err
		}
	}
	if t.decoder != nil {
		if out.Decoder, err = decoders.Marshal(t.decoder); err != nil {
			return nil, err
		}
	}
	if out.Model, err = marshalModel(t.model); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// FromBytes rebuilds a tokenizer from serialized configuration.
func FromBytes(data []byte) (*Tokenizer, error) {
	var in tokenizerJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, api.WrapError(api.LoadError, err)
	}
	if in.Version != "" && in.Version != formatVersion {
		return nil, api.Errorf(api.LoadError, "unsupported tokenizer format version %q", in.Version)
	}
	if in.Model == nil {
		return nil, api.Errorf(api.LoadError, "tokenizer configuration has no model section")
	}
	model, err := unmarshalModel(in.Model)
	if err != nil {
		return nil, err
	}
	t := New(model)

	if in.Truncation != nil {
		direction, err := parseDirection(in.Truncation.Direction)
		if err != nil {
			return nil, err
		}
		strategy := LongestFirst
		switch in.Truncation.Strategy {
		case "LongestFirst", "":
		case "OnlyFirst":
			strategy = OnlyFirst
		case "OnlySecond":
			strategy = OnlySecond
		default:
			return nil, api.Errorf(api.ConfigError, "unknown truncation strategy %q", in.Truncation.Strategy)
		}
		t.WithTruncation(&TruncationConfig{
			MaxLength: in.Truncation.MaxLength,
			Stride:    in.Truncation.Stride,
			Strategy:  strategy,
			Direction: direction,
		})
	}
	if in.Padding != nil {
		direction, err := parseDirection(in.Padding.Direction)
		if err != nil {
			return nil, err
		}
		cfg := &PaddingConfig{
			PadID:     in.Padding.PadID,
			PadTypeID: in.Padding.PadTypeID,
			PadToken:  in.Padding.PadToken,
			Direction: direction,
		}
		if in.Padding.PadToMultipleOf != nil {
			cfg.PadToMultipleOf = *in.Padding.PadToMultipleOf
		}
		if strings.Contains(string(in.Padding.Strategy), "Fixed") {
			var fixed struct {
				Fixed int `json:"Fixed"`
			}
			if err := json.Unmarshal(in.Padding.Strategy, &fixed); err != nil {
				return nil, api.WrapError(api.LoadError, err)
			}
			cfg.Strategy = PadFixed
			cfg.Length = fixed.Fixed
		}
		t.WithPadding(cfg)
	}

	if in.Normalizer != nil {
		n, err := normalizers.Unmarshal(in.Normalizer)
		if err != nil {
			return nil, err
		}
		t.WithNormalizer(n)
	}
	if in.PreTokenizer != nil {
		p, err := pretokenizers.Unmarshal(in.PreTokenizer)
		if err != nil {
			return nil, err
		}
		t.WithPreTokenizer(p)
	}
	if in.PostProcessor != nil {
		p, err := processors.Unmarshal(in.PostProcessor)
		if err != nil {
			return nil, err
		}
		t.WithPostProcessor(p)
	}
	if in.Decoder != nil {
		d, err := decoders.Unmarshal(in.Decoder)
		if err != nil {
			return nil, err
		}
		t.WithDecoder(d)
	}

	for _, tok := range in.AddedTokens {
		t.added.AddWithID(api.AddedToken{
			Content:    tok.Content,
			SingleWord: tok.SingleWord,
			LStrip:     tok.LStrip,
			RStrip:     tok.RStrip,
			Normalized: tok.Normalized,
			Special:    tok.Special,
		}, tok.ID, model)
	}
	return t, nil
}

// modelJSON is the wire shape shared by every model variant, dispatching
// on the "type" tag.
type modelJSON struct {
	Type string `json:"type"`

	Vocab  json.RawMessage `json:"vocab,omitempty"`
	Merges []string        `json:"merges,omitempty"`

	Dropout                 *float64 `json:"dropout,omitempty"`
	UnkToken                *string  `json:"unk_token,omitempty"`
	ContinuingSubwordPrefix *string  `json:"continuing_subword_prefix,omitempty"`
	EndOfWordSuffix         *string  `json:"end_of_word_suffix,omitempty"`
	FuseUnk                 *bool    `json:"fuse_unk,omitempty"`
	ByteFallback            *bool    `json:"byte_fallback,omitempty"`

	MaxInputCharsPerWord *int `json:"max_input_chars_per_word,omitempty"`

	UnkID *int `json:"unk_id,omitempty"`
}

func marshalModel(m models.Model) (json.RawMessage, error) {
	strPtr := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}
	boolPtr := func(b bool) *bool { return &b }
	switch v := m.(type) {
	case *bpe.BPE:
		cfg := v.Options()
		out := modelJSON{
			Type:                    "BPE",
			UnkToken:                strPtr(cfg.UnkToken),
			ContinuingSubwordPrefix: strPtr(cfg.ContinuingSubwordPrefix),
			EndOfWordSuffix:         strPtr(cfg.EndOfWordSuffix),
			FuseUnk:                 boolPtr(cfg.FuseUnk),
			ByteFallback:            boolPtr(cfg.ByteFallback),
		}
		if cfg.Dropout > 0 {
			out.Dropout = &cfg.Dropout
		}
		var err error
		if out.Vocab, err = json.Marshal(v.Vocab()); err != nil {
			return nil, api.WrapError(api.SaveError, err)
		}
		for _, pair := range v.Merges() {
			out.Merges = append(out.Merges, pair.Left+" "+pair.Right)
		}
		return json.Marshal(out)
	case *wordpiece.WordPiece:
		cfg := v.Options()
		out := modelJSON{
			Type:                    "WordPiece",
			UnkToken:                strPtr(cfg.UnkToken),
			ContinuingSubwordPrefix: strPtr(cfg.ContinuingSubwordPrefix),
			MaxInputCharsPerWord:    &cfg.MaxInputCharsPerWord,
		}
		var err error
		if out.Vocab, err = json.Marshal(v.Vocab()); err != nil {
			return nil, api.WrapError(api.SaveError, err)
		}
		return json.Marshal(out)
	case *wordlevel.WordLevel:
		out := modelJSON{Type: "WordLevel", UnkToken: strPtr(v.UnkToken())}
		var err error
		if out.Vocab, err = json.Marshal(v.Vocab()); err != nil {
			return nil, api.WrapError(api.SaveError, err)
		}
		return json.Marshal(out)
	case *unigram.Unigram:
		pieces := v.Pieces()
		vocab := make([][2]any, len(pieces))
		for i, piece := range pieces {
			vocab[i] = [2]any{piece.Token, piece.LogProb}
		}
		out := modelJSON{
			Type:         "Unigram",
			UnkID:        v.UnkID(),
			ByteFallback: boolPtr(v.ByteFallback()),
		}
		var err error
		if out.Vocab, err = json.Marshal(vocab); err != nil {
			return nil, api.WrapError(api.SaveError, err)
		}
		return json.Marshal(out)
	}
	return nil, api.Errorf(api.BuildError, "unsupported model %T", m)
}

func unmarshalModel(data json.RawMessage) (models.Model, error) {
	var cfg modelJSON
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, api.WrapError(api.LoadError, err)
	}
	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	boolOf := func(p *bool) bool { return p != nil && *p }
	switch cfg.Type {
	case "BPE":
		var vocab map[string]int
		if err := json.Unmarshal(cfg.Vocab, &vocab); err != nil {
			return nil, api.WrapError(api.LoadError, err)
		}
		merges := make([]bpe.Pair, 0, len(cfg.Merges))
		for _, merge := range cfg.Merges {
			left, right, ok := strings.Cut(merge, " ")
			if !ok {
				return nil, api.Errorf(api.LoadError, "malformed merge entry %q", merge)
			}
			merges = append(merges, bpe.Pair{Left: left, Right: right})
		}
		modelCfg := bpe.Config{
			UnkToken:                str(cfg.UnkToken),
			ContinuingSubwordPrefix: str(cfg.ContinuingSubwordPrefix),
			EndOfWordSuffix:         str(cfg.EndOfWordSuffix),
			FuseUnk:                 boolOf(cfg.FuseUnk),
			ByteFallback:            boolOf(cfg.ByteFallback),
		}
		if cfg.Dropout != nil {
			modelCfg.Dropout = *cfg.Dropout
		}
		return bpe.New(vocab, merges, modelCfg)
	case "WordPiece":
		var vocab map[string]int
		if err := json.Unmarshal(cfg.Vocab, &vocab); err != nil {
			return nil, api.WrapError(api.LoadError, err)
		}
		modelCfg := wordpiece.Config{
			UnkToken:                str(cfg.UnkToken),
			ContinuingSubwordPrefix: str(cfg.ContinuingSubwordPrefix),
		}
		if cfg.MaxInputCharsPerWord != nil {
			modelCfg.MaxInputCharsPerWord = *cfg.MaxInputCharsPerWord
		}
		return wordpiece.New(vocab, modelCfg)
	case "WordLevel":
		var vocab map[string]int
		if err := json.Unmarshal(cfg.Vocab, &vocab); err != nil {
			return nil, api.WrapError(api.LoadError, err)
		}
		return wordlevel.New(vocab, str(cfg.UnkToken))
	case "Unigram":
		var vocab [][2]json.RawMessage
		if err := json.Unmarshal(cfg.Vocab, &vocab); err != nil {
			return nil, api.WrapError(api.LoadError, err)
		}
		pieces := make([]unigram.Piece, len(vocab))
		for i, entry := range vocab {
			if err := json.Unmarshal(entry[0], &pieces[i].Token); err != nil {
				return nil, api.WrapError(api.LoadError, err)
			}
			if err := json.Unmarshal(entry[1], &pieces[i].LogProb); err != nil {
				return nil, api.WrapError(api.LoadError, err)
			}
		}
		return unigram.New(pieces, unigram.Config{
			UnkID:        cfg.UnkID,
			ByteFallback: boolOf(cfg.ByteFallback),
			FuseUnk:      true,
		})
	}
	return nil, api.Errorf(api.LoadError, "unknown model type %q", cfg.Type)
}
