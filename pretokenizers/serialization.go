package pretokenizers

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/gomlx/go-tokenizers/api"
)

type config struct {
	Type string `json:"type"`

	AddPrefixSpace *bool `json:"add_prefix_space,omitempty"`
	TrimOffsets    *bool `json:"trim_offsets,omitempty"`
	UseRegex       *bool `json:"use_regex,omitempty"`

	Replacement   *string `json:"replacement,omitempty"`
	PrependScheme *string `json:"prepend_scheme,omitempty"`
	SplitOn       *bool   `json:"split,omitempty"`

	Pattern  *api.Pattern `json:"pattern,omitempty"`
	Behavior *string      `json:"behavior,omitempty"`
	Invert   *bool        `json:"invert,omitempty"`

	IndividualDigits *bool `json:"individual_digits,omitempty"`

	Delimiter *string `json:"delimiter,omitempty"`

	Length *int `json:"length,omitempty"`

	PreTokenizers []json.RawMessage `json:"pretokenizers,omitempty"`
}

func parseBehavior(s string) (SplitDelimiterBehavior, error) {
	switch s {
	case "Removed", "":
		return Removed, nil
	case "Isolated":
		return Isolated, nil
	case "MergedWithPrevious":
		return MergedWithPrevious, nil
	case "MergedWithNext":
		return MergedWithNext, nil
	case "Contiguous":
		return Contiguous, nil
	}
	return Removed, api.Errorf(api.ConfigError, "unknown split behavior %q", s)
}

// ParsePrependScheme maps the wire names of the prepend schemes back to
// their values. The empty string means the default, always.
func ParsePrependScheme(s string) (PrependScheme, error) {
	switch s {
	case "always", "":
		return PrependAlways, nil
	case "first":
		return PrependFirst, nil
	case "never":
		return PrependNever, nil
	}
	return PrependAlways, api.Errorf(api.ConfigError, "unknown prepend scheme %q", s)
}

// Unmarshal builds a pre-tokenizer from its JSON configuration.
func Unmarshal(data []byte) (PreTokenizer, error) {
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, api.WrapError(api.LoadError, err)
	}
	switch cfg.Type {
	case "Whitespace":
		return NewWhitespace(), nil
	case "WhitespaceSplit":
		return NewWhitespaceSplit(), nil
	case "BertPreTokenizer":
		return NewBert(), nil
	case "Punctuation":
		behavior := Isolated
		if cfg.Behavior != nil {
			var err error
			if behavior, err = parseBehavior(*cfg.Behavior); err != nil {
				return nil, err
			}
		}
		return NewPunctuation(behavior), nil
	case "Digits":
		individual := false
		if cfg.IndividualDigits != nil {
			individual = *cfg.IndividualDigits
		}
		return NewDigits(individual), nil
	case "CharDelimiterSplit":
		if cfg.Delimiter == nil || *cfg.Delimiter == "" {
			return nil, api.Errorf(api.PreTokenizationError, "char delimiter split without delimiter")
		}
		r, _ := utf8.DecodeRuneInString(*cfg.Delimiter)
		return NewCharDelimiterSplit(r)
	case "ByteLevel":
		b := NewByteLevel()
		if cfg.AddPrefixSpace != nil {
			b.AddPrefixSpace = *cfg.AddPrefixSpace
		}
		if cfg.TrimOffsets != nil {
			b.TrimOffsets = *cfg.TrimOffsets
		}
		if cfg.UseRegex != nil {
			b.UseRegex = *cfg.UseRegex
		}
		return b, nil
	case "Metaspace":
		replacement := rune(DefaultMetaspaceReplacement)
		if cfg.Replacement != nil {
			if utf8.RuneCountInString(*cfg.Replacement) != 1 {
				return nil, api.Errorf(api.PreTokenizationError, "metaspace replacement must be exactly one character, got %q", *cfg.Replacement)
			}
			replacement, _ = utf8.DecodeRuneInString(*cfg.Replacement)
		}
		scheme := PrependAlways
		if cfg.PrependScheme != nil {
			var err error
			if scheme, err = ParsePrependScheme(*cfg.PrependScheme); err != nil {
				return nil, err
			}
		}
		splitOn := true
		if cfg.SplitOn != nil {
			splitOn = *cfg.SplitOn
		}
		return NewMetaspace(replacement, scheme, splitOn)
	case "Split":
		if cfg.Pattern == nil {
			return nil, api.Errorf(api.PreTokenizationError, "split pre-tokenizer without pattern")
		}
		behavior := Removed
		if cfg.Behavior != nil {
			var err error
			if behavior, err = parseBehavior(*cfg.Behavior); err != nil {
				return nil, err
			}
		}
		invert := false
		if cfg.Invert != nil {
			invert = *cfg.Invert
		}
		return NewSplit(*cfg.Pattern, behavior, invert)
	case "UnicodeScripts":
		return NewUnicodeScripts(), nil
	case "FixedLength":
		length := 5
		if cfg.Length != nil {
			length = *cfg.Length
		}
		return NewFixedLength(length)
	case "Sequence":
		children := make([]PreTokenizer, 0, len(cfg.PreTokenizers))
		for _, raw := range cfg.PreTokenizers {
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
	return nil, api.Errorf(api.ConfigError, "unknown pre-tokenizer type %q", cfg.Type)
}

// Marshal serializes a pre-tokenizer to its tagged JSON configuration.
func Marshal(p PreTokenizer) ([]byte, error) {
	cfg, err := configOf(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(cfg)
}

func configOf(p PreTokenizer) (*config, error) {
	boolPtr := func(b bool) *bool { return &b }
	strPtr := func(s string) *string { return &s }
	switch v := p.(type) {
	case *Whitespace:
		return &config{Type: "Whitespace"}, nil
	case *WhitespaceSplit:
		return &config{Type: "WhitespaceSplit"}, nil
	case *Bert:
		return &config{Type: "BertPreTokenizer"}, nil
	case *Punctuation:
		return &config{Type: "Punctuation", Behavior: strPtr(v.Behavior.String())}, nil
	case *Digits:
		return &config{Type: "Digits", IndividualDigits: boolPtr(v.IndividualDigits)}, nil
	case *CharDelimiterSplit:
		return &config{Type: "CharDelimiterSplit", Delimiter: strPtr(string(v.Delimiter))}, nil
	case *ByteLevel:
		return &config{
			Type:           "ByteLevel",
			AddPrefixSpace: boolPtr(v.AddPrefixSpace),
			TrimOffsets:    boolPtr(v.TrimOffsets),
			UseRegex:       boolPtr(v.UseRegex),
		}, nil
	case *Metaspace:
		return &config{
			Type:          "Metaspace",
			Replacement:   strPtr(string(v.Replacement)),
			PrependScheme: strPtr(v.Scheme.String()),
			SplitOn:       boolPtr(v.SplitOn),
		}, nil
	case *Split:
		pattern := v.Pattern
		return &config{
			Type:     "Split",
			Pattern:  &pattern,
			Behavior: strPtr(v.Behavior.String()),
			Invert:   boolPtr(v.Invert),
		}, nil
	case *UnicodeScripts:
		return &config{Type: "UnicodeScripts"}, nil
	case *FixedLength:
		length := v.Length
		return &config{Type: "FixedLength", Length: &length}, nil
	case *Sequence:
		cfg := &config{Type: "Sequence", PreTokenizers: make([]json.RawMessage, 0, len(v.children))}
		for _, c := range v.children {
			raw, err := Marshal(c)
			if err != nil {
				return nil, err
			}
			cfg.PreTokenizers = append(cfg.PreTokenizers, raw)
		}
		return cfg, nil
	}
	return nil, api.Errorf(api.BuildError, "unsupported pre-tokenizer %T", p)
}
