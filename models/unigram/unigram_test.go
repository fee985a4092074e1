package unigram

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/go-tokenizers/api"
)

func intPtr(v int) *int { return &v }

func TestTokenizePicksBestScoringSegmentation(t *testing.T) {
	model, err := New([]Piece{
		{"h", -1}, {"e", -1}, {"ll", -1}, {"o", -1},
		{"hell", -2}, {"hello", -5},
	}, Config{})
	require.NoError(t, err)

	// "hell"+"o" scores -3, beating both the single piece (-5) and the
	// character path (-4).
	tokens, err := model.Tokenize("hello")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "hell", tokens[0].Value)
	assert.Equal(t, "o", tokens[1].Value)
	assert.Equal(t, api.Offsets{Start: 0, End: 4}, tokens[0].Offsets)
	assert.Equal(t, api.Offsets{Start: 4, End: 5}, tokens[1].Offsets)
}

func TestTokenizeUnknownCharactersFuse(t *testing.T) {
	model, err := New([]Piece{{"<unk>", 0}, {"a", -1}}, Config{UnkID: intPtr(0), FuseUnk: true})
	require.NoError(t, err)

	tokens, err := model.Tokenize("aXY")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "a", tokens[0].Value)
	assert.Equal(t, 0, tokens[1].ID)
	assert.Equal(t, "XY", tokens[1].Value)
	assert.Equal(t, api.Offsets{Start: 1, End: 3}, tokens[1].Offsets)
}

func TestTokenizeUnknownWithoutUnkFails(t *testing.T) {
	model, err := New([]Piece{{"a", -1}}, Config{})
	require.NoError(t, err)
	_, err = model.Tokenize("ax")
	assert.True(t, api.IsKind(err, api.EncodingError))
}

func TestTokenizeByteFallback(t *testing.T) {
	model, err := New([]Piece{
		{"a", -1}, {"<0xC3>", -2}, {"<0xA9>", -2},
	}, Config{ByteFallback: true})
	require.NoError(t, err)

	tokens, err := model.Tokenize("aé")
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	assert.Equal(t, "a", tokens[0].Value)
	assert.Equal(t, "<0xC3>", tokens[1].Value)
	assert.Equal(t, "<0xA9>", tokens[2].Value)
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Config{})
	assert.True(t, api.IsKind(err, api.ConfigError), "empty vocabulary")

	_, err = New([]Piece{{"a", -1}}, Config{UnkID: intPtr(3)})
	assert.True(t, api.IsKind(err, api.ConfigError), "unk id out of range")

	_, err = New([]Piece{{"a", -1}, {"a", -2}}, Config{})
	assert.True(t, api.IsKind(err, api.ConfigError), "duplicate piece")
}

func trainingCorpus() map[string]int {
	return map[string]int{
		"hello": 10, "hell": 4, "help": 4, "held": 2,
		"world": 8, "word": 3, "wore": 2,
	}
}

func TestTrainerCoversEverySingleCharacter(t *testing.T) {
	trainer := NewTrainer(TrainerConfig{VocabSize: 20, UnkToken: "<unk>"})
	model, err := trainer.Train(trainingCorpus())
	require.NoError(t, err)
	um, ok := model.(*Unigram)
	require.True(t, ok)

	require.NotNil(t, um.UnkID())
	assert.Equal(t, 0, *um.UnkID())

	for _, c := range "helowrdp" {
		_, found := um.TokenToID(string(c))
		assert.True(t, found, "missing single character %q", c)
	}

	// Every corpus word still tokenizes without hitting the unk piece.
	for word := range trainingCorpus() {
		tokens, err := um.Tokenize(word)
		require.NoError(t, err)
		for _, tok := range tokens {
			assert.NotEqual(t, *um.UnkID(), tok.ID, "word %q", word)
		}
	}
}

func TestTrainerIsDeterministic(t *testing.T) {
	config := TrainerConfig{VocabSize: 20, UnkToken: "<unk>"}
	a, err := NewTrainer(config).Train(trainingCorpus())
	require.NoError(t, err)
	b, err := NewTrainer(config).Train(trainingCorpus())
	require.NoError(t, err)
	assert.Equal(t, a.(*Unigram).Pieces(), b.(*Unigram).Pieces())
}

func TestTrainerSpecialTokensFirst(t *testing.T) {
	trainer := NewTrainer(TrainerConfig{
		VocabSize:     20,
		SpecialTokens: []api.AddedToken{api.NewSpecialToken("<s>"), api.NewSpecialToken("</s>")},
		UnkToken:      "<unk>",
	})
	model, err := trainer.Train(trainingCorpus())
	require.NoError(t, err)
	um := model.(*Unigram)

	id, found := um.TokenToID("<s>")
	require.True(t, found)
	assert.Equal(t, 0, id)
	id, found = um.TokenToID("</s>")
	require.True(t, found)
	assert.Equal(t, 1, id)
	require.NotNil(t, um.UnkID())
	assert.Equal(t, 2, *um.UnkID())
}

func TestSaveAndReload(t *testing.T) {
	model, err := New([]Piece{{"<unk>", 0}, {"a", -1.5}, {"ab", -2.5}}, Config{UnkID: intPtr(0)})
	require.NoError(t, err)

	dir := t.TempDir()
	files, err := model.Save(dir, "test", false)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "test-unigram.json", filepath.Base(files[0]))

	loaded, err := NewFromFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, model.Pieces(), loaded.Pieces())
	require.NotNil(t, loaded.UnkID())
	assert.Equal(t, 0, *loaded.UnkID())
}
