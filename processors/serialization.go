package processors

import (
	"encoding/json"

	"github.com/gomlx/go-tokenizers/api"
)

// tokenID is the wire shape of a special token reference.
type tokenID struct {
	Token string `json:"token"`
	ID    int    `json:"id"`
}

// config is the wire shape shared by every processor variant, dispatching
// on the "type" tag.
type config struct {
	Type string `json:"type"`

	Sep *tokenID `json:"sep,omitempty"`
	Cls *tokenID `json:"cls,omitempty"`

	TrimOffsets    *bool `json:"trim_offsets,omitempty"`
	AddPrefixSpace *bool `json:"add_prefix_space,omitempty"`

	Single        *string        `json:"single,omitempty"`
	Pair          *string        `json:"pair,omitempty"`
	SpecialTokens map[string]int `json:"special_tokens,omitempty"`

	Processors []json.RawMessage `json:"processors,omitempty"`
}

// Unmarshal builds a post-processor from its JSON configuration.
func Unmarshal(data []byte) (PostProcessor, error) {
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, api.WrapError(api.LoadError, err)
	}
	switch cfg.Type {
	case "BertProcessing":
		if cfg.Sep == nil || cfg.Cls == nil {
			return nil, api.Errorf(api.ConfigError, "bert processor needs sep and cls tokens")
		}
		return NewBert(cfg.Sep.Token, cfg.Sep.ID, cfg.Cls.Token, cfg.Cls.ID), nil
	case "RobertaProcessing":
		if cfg.Sep == nil || cfg.Cls == nil {
			return nil, api.Errorf(api.ConfigError, "roberta processor needs sep and cls tokens")
		}
		p := NewRoberta(cfg.Sep.Token, cfg.Sep.ID, cfg.Cls.Token, cfg.Cls.ID)
		if cfg.TrimOffsets != nil {
			p.TrimOffsets = *cfg.TrimOffsets
		}
		if cfg.AddPrefixSpace != nil {
			p.AddPrefixSpace = *cfg.AddPrefixSpace
		}
		return p, nil
	case "ByteLevel":
		p := NewByteLevel()
		if cfg.TrimOffsets != nil {
			p.TrimOffsets = *cfg.TrimOffsets
		}
		if cfg.AddPrefixSpace != nil {
			p.AddPrefixSpace = *cfg.AddPrefixSpace
		}
		return p, nil
	case "TemplateProcessing":
		single, pair := "", ""
		if cfg.Single != nil {
			single = *cfg.Single
		}
		if cfg.Pair != nil {
			pair = *cfg.Pair
		}
		return NewTemplate(single, pair, cfg.SpecialTokens)
	case "Sequence":
		children := make([]PostProcessor, 0, len(cfg.Processors))
		for _, raw := range cfg.Processors {
			child, err := Unmarshal(raw)
			if err != nil {
				for _, c := range children {
					_ = c.Close()
				}
				return nil, err
			}
			children = append(children, child)
		}
		return NewSequence(children...), nil
	}
	return nil, api.Errorf(api.ConfigError, "unknown processor type %q", cfg.Type)
}

// Marshal serializes a post-processor to its tagged JSON configuration.
// The variant set is closed; anything else is a build error.
func Marshal(p PostProcessor) ([]byte, error) {
	cfg, err := configOf(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(cfg)
}

func configOf(p PostProcessor) (*config, error) {
	boolPtr := func(b bool) *bool { return &b }
	switch v := p.(type) {
	case *Bert:
		return &config{
			Type: "BertProcessing",
			Sep:  &tokenID{Token: v.SepToken, ID: v.SepID},
			Cls:  &tokenID{Token: v.ClsToken, ID: v.ClsID},
		}, nil
	case *Roberta:
		return &config{
			Type:           "RobertaProcessing",
			Sep:            &tokenID{Token: v.SepToken, ID: v.SepID},
			Cls:            &tokenID{Token: v.ClsToken, ID: v.ClsID},
			TrimOffsets:    boolPtr(v.TrimOffsets),
			AddPrefixSpace: boolPtr(v.AddPrefixSpace),
		}, nil
	case *ByteLevel:
		return &config{
			Type:           "ByteLevel",
			TrimOffsets:    boolPtr(v.TrimOffsets),
			AddPrefixSpace: boolPtr(v.AddPrefixSpace),
		}, nil
	case *Template:
		single, pair := v.SingleTemplate(), v.PairTemplate()
		cfg := &config{
			Type:          "TemplateProcessing",
			Single:        &single,
			SpecialTokens: v.SpecialTokens(),
		}
		if pair != "" {
			cfg.Pair = &pair
		}
		return cfg, nil
	case *Sequence:
		cfg := &config{Type: "Sequence", Processors: make([]json.RawMessage, 0, len(v.children))}
		for _, c := range v.children {
			raw, err := Marshal(c)
			if err != nil {
				return nil, err
			}
			cfg.Processors = append(cfg.Processors, raw)
		}
		return cfg, nil
	}
	return nil, api.Errorf(api.BuildError, "unsupported processor %T", p)
}
