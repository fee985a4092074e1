// Package wordlevel implements exact whole-token vocabulary lookup with no
// subword splitting.
package wordlevel

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/models"
)

// WordLevel maps whole words to ids; anything missing becomes the unk
// token.
type WordLevel struct {
	unkToken string
	vocab    map[string]int
	vocabR   map[int]string
}

var _ models.Model = &WordLevel{}

// New builds a WordLevel model from an explicit vocabulary.
func New(vocab map[string]int, unkToken string) (*WordLevel, error) {
	w := &WordLevel{
		unkToken: unkToken,
		vocab:    make(map[string]int, len(vocab)),
		vocabR:   make(map[int]string, len(vocab)),
	}
	for token, id := range vocab {
		w.vocab[token] = id
		w.vocabR[id] = token
	}
	return w, nil
}

// NewFromFile loads the vocab.json shape.
func NewFromFile(path, unkToken string) (*WordLevel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, api.WrapError(api.LoadError, errors.Wrapf(err, "reading word-level vocabulary"))
	}
	var vocab map[string]int
	if err := json.Unmarshal(data, &vocab); err != nil {
		return nil, api.WrapError(api.LoadError, err)
	}
	return New(vocab, unkToken)
}

// UnkToken returns the configured unknown token.
func (w *WordLevel) UnkToken() string { return w.unkToken }

// Tokenize implements models.Model.
func (w *WordLevel) Tokenize(sequence string) ([]api.Token, error) {
	if sequence == "" {
		return nil, nil
	}
	offsets := api.Offsets{Start: 0, End: len(sequence)}
	if id, ok := w.vocab[sequence]; ok {
		return []api.Token{{ID: id, Value: sequence, Offsets: offsets}}, nil
	}
	if w.unkToken == "" {
		return nil, api.Errorf(api.EncodingError, "no entry for %q and no unk token configured", sequence)
	}
	id, ok := w.vocab[w.unkToken]
	if !ok {
		return nil, api.Errorf(api.EncodingError, "unk token %q is not in the vocabulary", w.unkToken)
	}
	return []api.Token{{ID: id, Value: w.unkToken, Offsets: offsets}}, nil
}

// TokenToID implements models.Model.
func (w *WordLevel) TokenToID(token string) (int, bool) {
	id, ok := w.vocab[token]
	return id, ok
}

// IDToToken implements models.Model.
func (w *WordLevel) IDToToken(id int) (string, bool) {
	token, ok := w.vocabR[id]
	return token, ok
}

// Vocab implements models.Model.
func (w *WordLevel) Vocab() map[string]int {
	out := make(map[string]int, len(w.vocab))
	for k, v := range w.vocab {
		out[k] = v
	}
	return out
}

// VocabSize implements models.Model.
func (w *WordLevel) VocabSize() int { return len(w.vocab) }

// Save writes vocab.json ordered by id.
func (w *WordLevel) Save(dir, prefix string, pretty bool) ([]string, error) {
	name := "vocab.json"
	if prefix != "" {
		name = prefix + "-" + name
	}
	path := filepath.Join(dir, name)

	type entry struct {
		token string
		id    int
	}
	entries := make([]entry, 0, len(w.vocab))
	for token, id := range w.vocab {
		entries = append(entries, entry{token, id})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	out := make([]byte, 0, len(entries)*16)
	out = append(out, '{')
	for i, e := range entries {
		if i > 0 {
			out = append(out, ',')
		}
		if pretty {
			out = append(out, "\n  "...)
		}
		quoted, _ := json.Marshal(e.token)
		out = append(out, quoted...)
		out = append(out, ':')
		if pretty {
			out = append(out, ' ')
		}
		out = strconv.AppendInt(out, int64(e.id), 10)
	}
	if pretty && len(entries) > 0 {
		out = append(out, '\n')
	}
	out = append(out, '}')
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return nil, api.WrapError(api.SaveError, errors.Wrapf(err, "writing %q", path))
	}
	return []string{path}, nil
}
