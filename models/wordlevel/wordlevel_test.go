package wordlevel

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/go-tokenizers/api"
)

func TestTokenizeExactLookup(t *testing.T) {
	model, err := New(map[string]int{"hello": 0, "world": 1}, "")
	require.NoError(t, err)

	tokens, err := model.Tokenize("world")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, 1, tokens[0].ID)
	assert.Equal(t, api.Offsets{Start: 0, End: 5}, tokens[0].Offsets)

	_, err = model.Tokenize("missing")
	assert.True(t, api.IsKind(err, api.EncodingError))
}

func TestTokenizeUnkFallback(t *testing.T) {
	model, err := New(map[string]int{"[UNK]": 0, "hello": 1}, "[UNK]")
	require.NoError(t, err)
	tokens, err := model.Tokenize("missing")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "[UNK]", tokens[0].Value)
	assert.Equal(t, api.Offsets{Start: 0, End: 7}, tokens[0].Offsets)
}

func TestTrainerRanksByFrequencyThenLexicographic(t *testing.T) {
	words := map[string]int{"the": 5, "cat": 3, "sat": 3, "mat": 1}
	trainer := NewTrainer(TrainerConfig{
		MinFrequency:  2,
		SpecialTokens: []api.AddedToken{api.NewSpecialToken("[UNK]")},
		UnkToken:      "[UNK]",
	})
	model, err := trainer.Train(words)
	require.NoError(t, err)
	wl, ok := model.(*WordLevel)
	require.True(t, ok)

	for token, want := range map[string]int{"[UNK]": 0, "the": 1, "cat": 2, "sat": 3} {
		id, found := wl.TokenToID(token)
		require.True(t, found, token)
		assert.Equal(t, want, id, token)
	}
	_, found := wl.TokenToID("mat")
	assert.False(t, found, "below min frequency")
}

func TestTrainerCapsVocabSize(t *testing.T) {
	words := map[string]int{"a": 3, "b": 2, "c": 1}
	model, err := NewTrainer(TrainerConfig{VocabSize: 2}).Train(words)
	require.NoError(t, err)
	assert.Equal(t, 2, model.VocabSize())
}

func TestSaveAndReload(t *testing.T) {
	model, err := New(map[string]int{"[UNK]": 0, "hi": 1}, "[UNK]")
	require.NoError(t, err)

	dir := t.TempDir()
	files, err := model.Save(dir, "test", false)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "test-vocab.json", filepath.Base(files[0]))

	loaded, err := NewFromFile(files[0], "[UNK]")
	require.NoError(t, err)
	assert.Equal(t, model.Vocab(), loaded.Vocab())
}
