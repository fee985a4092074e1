package wordlevel

import (
	"sort"

	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/models"
)

// TrainerConfig controls vocabulary construction. Zero values select the
// defaults documented on each field.
type TrainerConfig struct {
	// VocabSize caps the trained vocabulary, special tokens included.
	// Defaults to 30000.
	VocabSize int

	// MinFrequency drops words seen fewer times than this.
	MinFrequency int

	// SpecialTokens are inserted first, in order, before any corpus word.
	SpecialTokens []api.AddedToken

	// UnkToken is the unknown token configured on the trained model.
	UnkToken string
}

// Trainer builds a WordLevel model by ranking corpus words by frequency.
type Trainer struct {
	config TrainerConfig
}

var _ models.Trainer = &Trainer{}

// NewTrainer returns a Trainer with defaults applied over config.
func NewTrainer(config TrainerConfig) *Trainer {
	if config.VocabSize == 0 {
		config.VocabSize = 30000
	}
	return &Trainer{config: config}
}

// SpecialTokens implements models.Trainer.
func (t *Trainer) SpecialTokens() []api.AddedToken { return t.config.SpecialTokens }

// Train implements models.Trainer. Words are ranked by descending
// frequency, ties broken lexicographically, so identical inputs always
// yield the same vocabulary.
func (t *Trainer) Train(words map[string]int) (models.Model, error) {
	vocab := make(map[string]int)
	add := func(token string) {
		if _, ok := vocab[token]; !ok {
			vocab[token] = len(vocab)
		}
	}
	for _, special := range t.config.SpecialTokens {
		add(special.Content)
	}
	if t.config.UnkToken != "" {
		add(t.config.UnkToken)
	}

	type wordCount struct {
		word  string
		count int
	}
	ranked := make([]wordCount, 0, len(words))
	for word, count := range words {
		if count < t.config.MinFrequency {
			continue
		}
		ranked = append(ranked, wordCount{word, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})

	for _, wc := range ranked {
		if len(vocab) >= t.config.VocabSize {
			break
		}
		add(wc.word)
	}
	return New(vocab, t.config.UnkToken)
}
