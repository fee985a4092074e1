package decoders

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/pretokenizers"
)

// config is the wire shape shared by every decoder variant, dispatching
// on the "type" tag.
type config struct {
	Type string `json:"type"`

	Prefix  *string `json:"prefix,omitempty"`
	Cleanup *bool   `json:"cleanup,omitempty"`

	Suffix *string `json:"suffix,omitempty"`

	Replacement   *string `json:"replacement,omitempty"`
	PrependScheme *string `json:"prepend_scheme,omitempty"`

	Content *string `json:"content,omitempty"`
	Start   *int    `json:"start,omitempty"`
	Stop    *int    `json:"stop,omitempty"`

	Pattern *api.Pattern `json:"pattern,omitempty"`

	Decoders []json.RawMessage `json:"decoders,omitempty"`
}

// Unmarshal builds a decoder from its JSON configuration.
func Unmarshal(data []byte) (Decoder, error) {
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, api.WrapError(api.LoadError, err)
	}
	switch cfg.Type {
	case "ByteLevel":
		return NewByteLevel(), nil
	case "WordPiece":
		d := NewWordPiece()
		if cfg.Prefix != nil {
			d.Prefix = *cfg.Prefix
		}
		if cfg.Cleanup != nil {
			d.Cleanup = *cfg.Cleanup
		}
		return d, nil
	case "BPEDecoder":
		suffix := ""
		if cfg.Suffix != nil {
			suffix = *cfg.Suffix
		}
		return NewBPEDecoder(suffix), nil
	case "Metaspace":
		d := NewMetaspace()
		if cfg.Replacement != nil {
			r, _ := utf8.DecodeRuneInString(*cfg.Replacement)
			if r == utf8.RuneError {
				return nil, api.Errorf(api.ConfigError, "bad metaspace replacement %q", *cfg.Replacement)
			}
			d.Replacement = r
		}
		if cfg.PrependScheme != nil {
			scheme, err := pretokenizers.ParsePrependScheme(*cfg.PrependScheme)
			if err != nil {
				return nil, err
			}
			d.Scheme = scheme
		}
		return d, nil
	case "ByteFallback":
		return NewByteFallback(), nil
	case "Fuse":
		return NewFuse(), nil
	case "Strip":
		content := ' '
		if cfg.Content != nil {
			r, _ := utf8.DecodeRuneInString(*cfg.Content)
			if r == utf8.RuneError {
				return nil, api.Errorf(api.ConfigError, "bad strip content %q", *cfg.Content)
			}
			content = r
		}
		left, right := 0, 0
		if cfg.Start != nil {
			left = *cfg.Start
		}
		if cfg.Stop != nil {
			right = *cfg.Stop
		}
		return NewStrip(content, left, right), nil
	case "Replace":
		if cfg.Pattern == nil {
			return nil, api.Errorf(api.ConfigError, "replace decoder without pattern")
		}
		content := ""
		if cfg.Content != nil {
			content = *cfg.Content
		}
		return NewReplace(*cfg.Pattern, content)
	case "Sequence":
		children := make([]Decoder, 0, len(cfg.Decoders))
		for _, raw := range cfg.Decoders {
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
	return nil, api.Errorf(api.ConfigError, "unknown decoder type %q", cfg.Type)
}

// Marshal serializes a decoder to its tagged JSON configuration. The
// variant set is closed; anything else is a build error.
func Marshal(d Decoder) ([]byte, error) {
	cfg, err := configOf(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(cfg)
}

func configOf(d Decoder) (*config, error) {
	boolPtr := func(b bool) *bool { return &b }
	strPtr := func(s string) *string { return &s }
	intPtr := func(i int) *int { return &i }
	switch v := d.(type) {
	case *ByteLevel:
		return &config{Type: "ByteLevel"}, nil
	case *WordPiece:
		return &config{Type: "WordPiece", Prefix: strPtr(v.Prefix), Cleanup: boolPtr(v.Cleanup)}, nil
	case *BPEDecoder:
		return &config{Type: "BPEDecoder", Suffix: strPtr(v.Suffix)}, nil
	case *Metaspace:
		return &config{
			Type:          "Metaspace",
			Replacement:   strPtr(string(v.Replacement)),
			PrependScheme: strPtr(v.Scheme.String()),
		}, nil
	case *ByteFallback:
		return &config{Type: "ByteFallback"}, nil
	case *Fuse:
		return &config{Type: "Fuse"}, nil
	case *Strip:
		return &config{
			Type:    "Strip",
			Content: strPtr(string(v.Content)),
			Start:   intPtr(v.Left),
			Stop:    intPtr(v.Right),
		}, nil
	case *Replace:
		pattern := v.Pattern
		return &config{Type: "Replace", Pattern: &pattern, Content: strPtr(v.Content)}, nil
	case *Sequence:
		cfg := &config{Type: "Sequence", Decoders: make([]json.RawMessage, 0, len(v.children))}
		for _, c := range v.children {
			raw, err := Marshal(c)
			if err != nil {
				return nil, err
			}
			cfg.Decoders = append(cfg.Decoders, raw)
		}
		return cfg, nil
	}
	return nil, api.Errorf(api.BuildError, "unsupported decoder %T", d)
}
