package normalizers

import (
	"encoding/json"

	"golang.org/x/text/unicode/norm"

	"github.com/gomlx/go-tokenizers/api"
)

// config is the wire shape shared by every normalizer variant, dispatching
// on the "type" tag.
type config struct {
	Type string `json:"type"`

	StripLeft  *bool `json:"strip_left,omitempty"`
	StripRight *bool `json:"strip_right,omitempty"`

	Pattern *api.Pattern `json:"pattern,omitempty"`
	Content *string      `json:"content,omitempty"`

	Prepend *string `json:"prepend,omitempty"`

	CleanText          *bool `json:"clean_text,omitempty"`
	HandleChineseChars *bool `json:"handle_chinese_chars,omitempty"`
	StripAccents       *bool `json:"strip_accents,omitempty"`
	Lowercase          *bool `json:"lowercase,omitempty"`

	PrecompiledCharsmap []byte `json:"precompiled_charsmap,omitempty"`

	Normalizers []json.RawMessage `json:"normalizers,omitempty"`
}

// Unmarshal builds a normalizer from its JSON configuration.
func Unmarshal(data []byte) (Normalizer, error) {
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, api.WrapError(api.LoadError, err)
	}
	switch cfg.Type {
	case "NFC":
		return NewNFC(), nil
	case "NFD":
		return NewNFD(), nil
	case "NFKC":
		return NewNFKC(), nil
	case "NFKD":
		return NewNFKD(), nil
	case "Nmt":
		return NewNMT(), nil
	case "Lowercase":
		return NewLowercase(), nil
	case "Strip":
		s := NewStrip(true, true)
		if cfg.StripLeft != nil {
			s.Left = *cfg.StripLeft
		}
		if cfg.StripRight != nil {
			s.Right = *cfg.StripRight
		}
		return s, nil
	case "StripAccents":
		return NewStripAccents(), nil
	case "Replace":
		if cfg.Pattern == nil {
			return nil, api.Errorf(api.ConfigError, "replace normalizer without pattern")
		}
		content := ""
		if cfg.Content != nil {
			content = *cfg.Content
		}
		return NewReplace(*cfg.Pattern, content)
	case "Prepend":
		prefix := ""
		if cfg.Prepend != nil {
			prefix = *cfg.Prepend
		}
		return NewPrepend(prefix), nil
	case "BertNormalizer":
		b := NewBert()
		if cfg.CleanText != nil {
			b.CleanText = *cfg.CleanText
		}
		if cfg.HandleChineseChars != nil {
			b.HandleChineseChars = *cfg.HandleChineseChars
		}
		if cfg.Lowercase != nil {
			b.Lowercase = *cfg.Lowercase
		}
		b.StripAccents = cfg.StripAccents
		return b, nil
	case "Precompiled":
		return NewPrecompiled(cfg.PrecompiledCharsmap)
	case "ByteLevel":
		return NewByteLevel(), nil
	case "Sequence":
		children := make([]Normalizer, 0, len(cfg.Normalizers))
		for _, raw := range cfg.Normalizers {
			child, err := Unmarshal(raw)
			if err != nil {
				for _, c := range children {
					_ = c.Close()
				}
				return nil, err
			}
			children = append(children, child)
		}
		return NewSequence(children...)
	}
	return nil, api.Errorf(api.ConfigError, "unknown normalizer type %q", cfg.Type)
}

// Marshal serializes a normalizer to its tagged JSON configuration. The
// variant set is closed; anything else is a build error.
func Marshal(n Normalizer) ([]byte, error) {
	cfg, err := configOf(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(cfg)
}

func configOf(n Normalizer) (*config, error) {
	boolPtr := func(b bool) *bool { return &b }
	switch v := n.(type) {
	case *Unicode:
		switch v.form {
		case norm.NFC:
			return &config{Type: "NFC"}, nil
		case norm.NFD:
			return &config{Type: "NFD"}, nil
		case norm.NFKC:
			return &config{Type: "NFKC"}, nil
		case norm.NFKD:
			return &config{Type: "NFKD"}, nil
		}
		return nil, api.Errorf(api.BuildError, "unicode normalizer with unknown form")
	case *NMT:
		return &config{Type: "Nmt"}, nil
	case *Lowercase:
		return &config{Type: "Lowercase"}, nil
	case *Strip:
		return &config{Type: "Strip", StripLeft: boolPtr(v.Left), StripRight: boolPtr(v.Right)}, nil
	case *StripAccents:
		return &config{Type: "StripAccents"}, nil
	case *Replace:
		pattern := v.Pattern
		return &config{Type: "Replace", Pattern: &pattern, Content: &v.Content}, nil
	case *Prepend:
		return &config{Type: "Prepend", Prepend: &v.Prefix}, nil
	case *Bert:
		return &config{
			Type:               "BertNormalizer",
			CleanText:          boolPtr(v.CleanText),
			HandleChineseChars: boolPtr(v.HandleChineseChars),
			StripAccents:       v.StripAccents,
			Lowercase:          boolPtr(v.Lowercase),
		}, nil
	case *Precompiled:
		return &config{Type: "Precompiled", PrecompiledCharsmap: v.Charsmap()}, nil
	case *ByteLevel:
		return &config{Type: "ByteLevel"}, nil
	case *Sequence:
		cfg := &config{Type: "Sequence", Normalizers: make([]json.RawMessage, 0, len(v.children))}
		for _, c := range v.children {
			raw, err := Marshal(c)
			if err != nil {
				return nil, err
			}
			cfg.Normalizers = append(cfg.Normalizers, raw)
		}
		return cfg, nil
	}
	return nil, api.Errorf(api.BuildError, "unsupported normalizer %T", n)
}
