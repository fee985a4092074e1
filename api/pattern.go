package api

import (
	"encoding/json"
	"regexp"

	"github.com/pkg/errors"
)

// Pattern selects text to match: either a literal string (escaped before
// matching) or a regular expression. Exactly one of the two is set.
type Pattern struct {
	String string
	Regex  string
}

// LiteralPattern returns a pattern matching s verbatim.
func LiteralPattern(s string) Pattern { return Pattern{String: s} }

// RegexPattern returns a pattern matching the given regular expression.
func RegexPattern(expr string) Pattern { return Pattern{Regex: expr} }

// IsZero reports whether no pattern is set.
func (p Pattern) IsZero() bool { return p.String == "" && p.Regex == "" }

// Expr returns the regular-expression source of the pattern, quoting
// literal patterns.
func (p Pattern) Expr() string {
	if p.Regex != "" {
		return p.Regex
	}
	return regexp.QuoteMeta(p.String)
}

// Compile builds the pattern's regular expression.
func (p Pattern) Compile() (*regexp.Regexp, error) {
	re, err := regexp.Compile(p.Expr())
	if err != nil {
		return nil, WrapError(ConfigError, errors.Wrapf(err, "invalid pattern %q", p.Expr()))
	}
	return re, nil
}

type patternJSON struct {
	String *string `json:"String,omitempty"`
	Regex  *string `json:"Regex,omitempty"`
}

// MarshalJSON writes the pattern in its tagged wire form,
// {"String": ...} or {"Regex": ...}.
func (p Pattern) MarshalJSON() ([]byte, error) {
	var pj patternJSON
	if p.Regex != "" {
		pj.Regex = &p.Regex
	} else {
		pj.String = &p.String
	}
	return json.Marshal(pj)
}

// UnmarshalJSON reads either tagged form.
func (p *Pattern) UnmarshalJSON(data []byte) error {
	var pj patternJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return err
	}
	*p = Pattern{}
	if pj.String != nil {
		p.String = *pj.String
	}
	if pj.Regex != nil {
		p.Regex = *pj.Regex
	}
	return nil
}
