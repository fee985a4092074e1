// Package wordpiece implements greedy longest-prefix-match tokenization
// with a continuation marker, the algorithm behind BERT vocabularies.
package wordpiece

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/models"
)

// Config carries the WordPiece knobs.
type Config struct {
	// UnkToken replaces any word with no matching decomposition.
	// Defaults to "[UNK]".
	UnkToken string
	// ContinuingSubwordPrefix marks non-initial pieces. Defaults to "##".
	ContinuingSubwordPrefix string
	// MaxInputCharsPerWord fails words longer than this straight to unk.
	// Defaults to 100.
	MaxInputCharsPerWord int
}

func (c *Config) applyDefaults() {
	if c.UnkToken == "" {
		c.UnkToken = "[UNK]"
	}
	if c.ContinuingSubwordPrefix == "" {
		c.ContinuingSubwordPrefix = "##"
	}
	if c.MaxInputCharsPerWord == 0 {
		c.MaxInputCharsPerWord = 100
	}
}

// WordPiece is a trained WordPiece model.
type WordPiece struct {
	config Config
	vocab  map[string]int
	vocabR map[int]string
}

var _ models.Model = &WordPiece{}

// New builds a WordPiece model from an explicit vocabulary.
func New(vocab map[string]int, config Config) (*WordPiece, error) {
	config.applyDefaults()
	w := &WordPiece{
		config: config,
		vocab:  make(map[string]int, len(vocab)),
		vocabR: make(map[int]string, len(vocab)),
	}
	for token, id := range vocab {
		w.vocab[token] = id
		w.vocabR[id] = token
	}
	return w, nil
}

// NewFromFile loads the line-per-token vocab.txt shape.
func NewFromFile(path string, config Config) (*WordPiece, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, api.WrapError(api.LoadError, errors.Wrapf(err, "opening wordpiece vocabulary"))
	}
	defer f.Close()
	vocab := make(map[string]int)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r\n")
		if token == "" {
			continue
		}
		vocab[token] = len(vocab)
	}
	if err := scanner.Err(); err != nil {
		return nil, api.WrapError(api.LoadError, err)
	}
	return New(vocab, config)
}

// Options returns the model configuration.
func (w *WordPiece) Options() Config { return w.config }

// Tokenize implements models.Model: greedy longest prefix match, marking
// non-initial pieces with the continuation prefix. A word with no full
// decomposition tokenizes to the unk token alone.
func (w *WordPiece) Tokenize(sequence string) ([]api.Token, error) {
	if sequence == "" {
		return nil, nil
	}
	unkID, hasUnk := w.vocab[w.config.UnkToken]
	asUnk := func() ([]api.Token, error) {
		if !hasUnk {
			return nil, api.Errorf(api.EncodingError, "no decomposition for %q and unk token %q is not in the vocabulary", sequence, w.config.UnkToken)
		}
		return []api.Token{{ID: unkID, Value: w.config.UnkToken, Offsets: api.Offsets{Start: 0, End: len(sequence)}}}, nil
	}

	runes := []rune(sequence)
	if len(runes) > w.config.MaxInputCharsPerWord {
		return asUnk()
	}

	// byteAt[i] is the byte offset of the i-th rune.
	byteAt := make([]int, len(runes)+1)
	pos := 0
	for i, r := range runes {
		byteAt[i] = pos
		pos += len(string(r))
	}
	byteAt[len(runes)] = pos

	var tokens []api.Token
	start := 0
	for start < len(runes) {
		end := len(runes)
		var match string
		matchID := 0
		for end > start {
			sub := string(runes[start:end])
			if start > 0 {
				sub = w.config.ContinuingSubwordPrefix + sub
			}
			if id, ok := w.vocab[sub]; ok {
				match, matchID = sub, id
				break
			}
			end--
		}
		if match == "" {
			return asUnk()
		}
		tokens = append(tokens, api.Token{
			ID:      matchID,
			Value:   match,
			Offsets: api.Offsets{Start: byteAt[start], End: byteAt[end]},
		})
		start = end
	}
	return tokens, nil
}

// TokenToID implements models.Model.
func (w *WordPiece) TokenToID(token string) (int, bool) {
	id, ok := w.vocab[token]
	return id, ok
}

// IDToToken implements models.Model.
func (w *WordPiece) IDToToken(id int) (string, bool) {
	token, ok := w.vocabR[id]
	return token, ok
}

// Vocab implements models.Model.
func (w *WordPiece) Vocab() map[string]int {
	out := make(map[string]int, len(w.vocab))
	for k, v := range w.vocab {
		out[k] = v
	}
	return out
}

// VocabSize implements models.Model.
func (w *WordPiece) VocabSize() int { return len(w.vocab) }

// Save writes vocab.txt, one token per line ordered by id.
func (w *WordPiece) Save(dir, prefix string, _ bool) ([]string, error) {
	name := "vocab.txt"
	if prefix != "" {
		name = prefix + "-" + name
	}
	path := filepath.Join(dir, name)

	tokens := make([]string, 0, len(w.vocab))
	for token := range w.vocab {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool { return w.vocab[tokens[i]] < w.vocab[tokens[j]] })

	var sb strings.Builder
	for _, token := range tokens {
		sb.WriteString(token)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return nil, api.WrapError(api.SaveError, errors.Wrapf(err, "writing %q", path))
	}
	return []string{path}, nil
}
