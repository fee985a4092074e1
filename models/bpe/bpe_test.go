package bpe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/go-tokenizers/api"
)

func trainingCorpus() map[string]int {
	// Word counts for "low low low low low", "lowest lowest",
	// "newer newer newer".
	return map[string]int{"low": 5, "lowest": 2, "newer": 3}
}

func TestTrainerLearnsMergesFromCorpus(t *testing.T) {
	trainer := NewTrainer(TrainerConfig{VocabSize: 20})
	model, err := trainer.TrainModel(trainingCorpus())
	require.NoError(t, err)

	want := []Pair{
		{"l", "o"}, {"lo", "w"},
		{"e", "r"}, {"e", "w"}, {"ew", "er"}, {"n", "ewer"},
		{"e", "s"}, {"es", "t"}, {"low", "est"},
	}
	assert.Equal(t, want, model.Merges())

	// Alphabet first, sorted, then merged tokens in merge order.
	id, ok := model.TokenToID("e")
	require.True(t, ok)
	assert.Equal(t, 0, id)
	id, ok = model.TokenToID("lowest")
	require.True(t, ok)
	assert.Equal(t, 16, id)
	assert.Equal(t, 17, model.VocabSize())
}

func TestTrainerIsDeterministic(t *testing.T) {
	a, err := NewTrainer(TrainerConfig{VocabSize: 20}).TrainModel(trainingCorpus())
	require.NoError(t, err)
	b, err := NewTrainer(TrainerConfig{VocabSize: 20}).TrainModel(trainingCorpus())
	require.NoError(t, err)
	assert.Equal(t, a.Merges(), b.Merges())
	assert.Equal(t, a.Vocab(), b.Vocab())
}

func TestTrainerSpecialTokensGetFirstIDs(t *testing.T) {
	trainer := NewTrainer(TrainerConfig{
		VocabSize:     20,
		SpecialTokens: []api.AddedToken{api.NewSpecialToken("<unk>"), api.NewSpecialToken("<pad>")},
	})
	model, err := trainer.TrainModel(trainingCorpus())
	require.NoError(t, err)
	id, ok := model.TokenToID("<unk>")
	require.True(t, ok)
	assert.Equal(t, 0, id)
	id, ok = model.TokenToID("<pad>")
	require.True(t, ok)
	assert.Equal(t, 1, id)
}

func TestTrainerEmptyCorpus(t *testing.T) {
	_, err := NewTrainer(TrainerConfig{}).TrainModel(nil)
	assert.True(t, api.IsKind(err, api.TrainingError))
}

func TestTokenizeAppliesMergesByRank(t *testing.T) {
	model, err := NewTrainer(TrainerConfig{VocabSize: 20}).TrainModel(trainingCorpus())
	require.NoError(t, err)

	tokens, err := model.Tokenize("lower")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "low", tokens[0].Value)
	assert.Equal(t, "er", tokens[1].Value)
	assert.Equal(t, api.Offsets{Start: 0, End: 3}, tokens[0].Offsets)
	assert.Equal(t, api.Offsets{Start: 3, End: 5}, tokens[1].Offsets)
}

func TestTokenizeUnknownCharacterWithoutUnk(t *testing.T) {
	model, err := New(map[string]int{"a": 0}, nil, Config{})
	require.NoError(t, err)
	_, err = model.Tokenize("ab")
	assert.True(t, api.IsKind(err, api.EncodingError))
}

func TestTokenizeUnkFusing(t *testing.T) {
	vocab := map[string]int{"<unk>": 0, "a": 1}
	fused, err := New(vocab, nil, Config{UnkToken: "<unk>", FuseUnk: true})
	require.NoError(t, err)
	tokens, err := fused.Tokenize("axy")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "a", tokens[0].Value)
	assert.Equal(t, "<unk>", tokens[1].Value)
	assert.Equal(t, api.Offsets{Start: 1, End: 3}, tokens[1].Offsets)

	plain, err := New(vocab, nil, Config{UnkToken: "<unk>"})
	require.NoError(t, err)
	tokens, err = plain.Tokenize("axy")
	require.NoError(t, err)
	assert.Len(t, tokens, 3)
}

func TestTokenizeByteFallback(t *testing.T) {
	vocab := map[string]int{"a": 0}
	for i := 0; i < 256; i++ {
		vocab[byteName(byte(i))] = 1 + i
	}
	model, err := New(vocab, nil, Config{ByteFallback: true})
	require.NoError(t, err)
	tokens, err := model.Tokenize("aé")
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	assert.Equal(t, "a", tokens[0].Value)
	assert.Equal(t, "<0xC3>", tokens[1].Value)
	assert.Equal(t, "<0xA9>", tokens[2].Value)
}

func byteName(b byte) string {
	const hex = "0123456789ABCDEF"
	return "<0x" + string(hex[b>>4]) + string(hex[b&0xF]) + ">"
}

func TestDropoutSeedReproducible(t *testing.T) {
	corpus := trainingCorpus()
	trained, err := NewTrainer(TrainerConfig{VocabSize: 20}).TrainModel(corpus)
	require.NoError(t, err)

	seed := int64(42)
	build := func() *BPE {
		m, err := New(trained.Vocab(), trained.Merges(), Config{Dropout: 0.5, DropoutSeed: &seed})
		require.NoError(t, err)
		return m
	}
	a, err := build().Tokenize("lowest")
	require.NoError(t, err)
	b, err := build().Tokenize("lowest")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTokenizeDropoutConcurrent(t *testing.T) {
	corpus := trainingCorpus()
	trained, err := NewTrainer(TrainerConfig{VocabSize: 20}).TrainModel(corpus)
	require.NoError(t, err)
	model, err := New(trained.Vocab(), trained.Merges(), Config{Dropout: 0.5})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				tokens, err := model.Tokenize("lowest")
				assert.NoError(t, err)
				assert.NotEmpty(t, tokens)
			}
		}()
	}
	wg.Wait()
}

func TestNewRejectsInvalidMerges(t *testing.T) {
	_, err := New(map[string]int{"a": 0, "b": 1}, []Pair{{"a", "b"}}, Config{})
	assert.True(t, api.IsKind(err, api.ConfigError), "merged token missing from vocab")

	_, err = New(map[string]int{"a": 0, "ab": 1}, []Pair{{"a", "b"}}, Config{})
	assert.True(t, api.IsKind(err, api.ConfigError), "merge part missing from vocab")
}

func TestContinuingSubwordPrefixMerge(t *testing.T) {
	vocab := map[string]int{"a": 0, "##b": 1, "ab": 2}
	model, err := New(vocab, []Pair{{"a", "##b"}}, Config{ContinuingSubwordPrefix: "##"})
	require.NoError(t, err)
	tokens, err := model.Tokenize("ab")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "ab", tokens[0].Value)
}
