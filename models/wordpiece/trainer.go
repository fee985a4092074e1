package wordpiece

import (
	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/models"
	"github.com/gomlx/go-tokenizers/models/bpe"
)

// TrainerConfig configures WordPiece training.
type TrainerConfig struct {
	VocabSize       int
	MinFrequency    int
	SpecialTokens   []api.AddedToken
	LimitAlphabet   int
	InitialAlphabet []rune
	Model           Config
}

// Trainer fits a WordPiece model. WordPiece vocabularies are built by the
// BPE merge procedure run with the continuation prefix, then keeping the
// resulting vocabulary and dropping the merge list.
type Trainer struct {
	config TrainerConfig
}

var _ models.Trainer = &Trainer{}

// NewTrainer returns a trainer for the given configuration.
func NewTrainer(config TrainerConfig) *Trainer {
	config.Model.applyDefaults()
	return &Trainer{config: config}
}

// SpecialTokens implements models.Trainer.
func (t *Trainer) SpecialTokens() []api.AddedToken {
	return append([]api.AddedToken(nil), t.config.SpecialTokens...)
}

// Train implements models.Trainer.
func (t *Trainer) Train(words map[string]int) (models.Model, error) {
	inner := bpe.NewTrainer(bpe.TrainerConfig{
		VocabSize:       t.config.VocabSize,
		MinFrequency:    t.config.MinFrequency,
		SpecialTokens:   t.config.SpecialTokens,
		LimitAlphabet:   t.config.LimitAlphabet,
		InitialAlphabet: t.config.InitialAlphabet,
		Model: bpe.Config{
			UnkToken:                t.config.Model.UnkToken,
			ContinuingSubwordPrefix: t.config.Model.ContinuingSubwordPrefix,
		},
	})
	trained, err := inner.TrainModel(words)
	if err != nil {
		return nil, err
	}
	return New(trained.Vocab(), t.config.Model)
}
