package tokenizer

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/models"
)

// AddedVocabulary holds the tokens layered on top of a model's
// vocabulary: user additions and the special tokens of the
// post-processing templates. They are matched against raw input before
// normalization and model splitting, so their surface form always
// survives intact.
type AddedVocabulary struct {
	tokens    []api.AddedToken
	tokenToID map[string]int
	idToToken map[int]string

	// novel counts the tokens that received ids past the model's
	// vocabulary, spacing out the next fresh id.
	novel int
}

// NewAddedVocabulary returns an empty added vocabulary.
func NewAddedVocabulary() *AddedVocabulary {
	return &AddedVocabulary{
		tokenToID: make(map[string]int),
		idToToken: make(map[int]string),
	}
}

// Len returns how many added tokens carry ids beyond the model's
// vocabulary.
func (v *AddedVocabulary) Len() int { return len(v.tokens) }

// Tokens returns the added tokens in insertion order.
func (v *AddedVocabulary) Tokens() []api.AddedToken {
	return append([]api.AddedToken(nil), v.tokens...)
}

// TokenToID resolves an added token's id.
func (v *AddedVocabulary) TokenToID(token string) (int, bool) {
	id, ok := v.tokenToID[token]
	return id, ok
}

// IDToToken resolves an added id back to its content.
func (v *AddedVocabulary) IDToToken(id int) (string, bool) {
	token, ok := v.idToToken[id]
	return token, ok
}

// IsSpecial reports whether content was added with the special flag.
func (v *AddedVocabulary) IsSpecial(content string) bool {
	for _, tok := range v.tokens {
		if tok.Content == content {
			return tok.Special
		}
	}
	return false
}

// Add registers tokens, assigning fresh ids after the model's
// vocabulary. Tokens the model already knows keep the model's id.
// Returns how many tokens were actually new.
func (v *AddedVocabulary) Add(tokens []api.AddedToken, model models.Model) int {
	added := 0
	for _, tok := range tokens {
		if tok.Content == "" {
			continue
		}
		if _, ok := v.tokenToID[tok.Content]; ok {
			continue
		}
		id, known := model.TokenToID(tok.Content)
		if !known {
			id = model.VocabSize() + v.novel
			v.novel++
		}
		v.insert(tok, id)
		added++
	}
	return added
}

// AddWithID registers a token under an explicit id, used when loading a
// serialized tokenizer. Later Add calls hand out ids past it.
func (v *AddedVocabulary) AddWithID(tok api.AddedToken, id int, model models.Model) {
	if _, ok := v.tokenToID[tok.Content]; ok {
		return
	}
	if past := id - model.VocabSize() + 1; past > v.novel {
		v.novel = past
	}
	v.insert(tok, id)
}

func (v *AddedVocabulary) insert(tok api.AddedToken, id int) {
	v.tokens = append(v.tokens, tok)
	v.tokenToID[tok.Content] = id
	v.idToToken[id] = tok.Content
}

// part is one segment of the raw input after added-token extraction:
// either a matched token or plain text still to be pushed through the
// pipeline.
type part struct {
	text    string
	start   int // byte offset in the raw input
	tokenID int // -1 for plain text
	special bool
}

// Extract splits sequence around added-token occurrences. Longer tokens
// win over shorter ones starting at the same position; singleWord
// matches require non-word characters (or the text edge) on both sides,
// and lstrip/rstrip extend the match over adjacent whitespace.
func (v *AddedVocabulary) Extract(sequence string) []part {
	if len(v.tokens) == 0 {
		return []part{{text: sequence, tokenID: -1}}
	}
	ordered := append([]api.AddedToken(nil), v.tokens...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Content) > len(ordered[j].Content)
	})

	var parts []part
	plainStart := 0
	flushPlain := func(end int) {
		if end > plainStart {
			parts = append(parts, part{text: sequence[plainStart:end], start: plainStart, tokenID: -1})
		}
	}

	for pos := 0; pos < len(sequence); {
		matched := false
		for _, tok := range ordered {
			if !strings.HasPrefix(sequence[pos:], tok.Content) {
				continue
			}
			end := pos + len(tok.Content)
			if tok.SingleWord && (isWordBoundaryRune(sequence, pos, true) || isWordBoundaryRune(sequence, end, false)) {
				continue
			}
			start := pos
			if tok.LStrip {
				start = stripLeft(sequence, start)
			}
			if start < plainStart {
				start = plainStart
			}
			if tok.RStrip {
				end = stripRight(sequence, end)
			}
			flushPlain(start)
			parts = append(parts, part{
				text:    sequence[start:end],
				start:   start,
				tokenID: v.tokenToID[tok.Content],
				special: tok.Special,
			})
			pos = end
			plainStart = end
			matched = true
			break
		}
		if !matched {
			_, size := utf8.DecodeRuneInString(sequence[pos:])
			pos += size
		}
	}
	flushPlain(len(sequence))
	if len(parts) == 0 {
		return []part{{text: sequence, tokenID: -1}}
	}
	return parts
}

// isWordBoundaryRune reports whether the rune adjacent to pos is a word
// character, which disqualifies a singleWord match. before selects the
// rune ending at pos instead of the one starting there.
func isWordBoundaryRune(s string, pos int, before bool) bool {
	var r rune
	if before {
		if pos == 0 {
			return false
		}
		r, _ = utf8.DecodeLastRuneInString(s[:pos])
	} else {
		if pos >= len(s) {
			return false
		}
		r, _ = utf8.DecodeRuneInString(s[pos:])
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func stripLeft(s string, pos int) int {
	for pos > 0 {
		r, size := utf8.DecodeLastRuneInString(s[:pos])
		if !unicode.IsSpace(r) {
			break
		}
		pos -= size
	}
	return pos
}

func stripRight(s string, pos int) int {
	for pos < len(s) {
		r, size := utf8.DecodeRuneInString(s[pos:])
		if !unicode.IsSpace(r) {
			break
		}
		pos += size
	}
	return pos
}
