package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/models/wordlevel"
)

func newModel(t *testing.T) *wordlevel.WordLevel {
	t.Helper()
	model, err := wordlevel.New(map[string]int{"a": 0, "b": 1, "<s>": 2}, "")
	require.NoError(t, err)
	return model
}

func extractTexts(parts []part) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = p.text
	}
	return out
}

func TestAddReusesModelID(t *testing.T) {
	v := NewAddedVocabulary()
	model := newModel(t)

	added := v.Add([]api.AddedToken{api.NewSpecialToken("<s>"), api.NewSpecialToken("<pad>")}, model)
	assert.Equal(t, 2, added)

	id, ok := v.TokenToID("<s>")
	require.True(t, ok)
	assert.Equal(t, 2, id, "token already in the model keeps its id")

	id, ok = v.TokenToID("<pad>")
	require.True(t, ok)
	assert.Equal(t, 3, id, "fresh token gets the next id past the model")
}

func TestAddIsIdempotent(t *testing.T) {
	v := NewAddedVocabulary()
	model := newModel(t)
	assert.Equal(t, 1, v.Add([]api.AddedToken{api.NewSpecialToken("<pad>")}, model))
	assert.Equal(t, 0, v.Add([]api.AddedToken{api.NewSpecialToken("<pad>")}, model))
	assert.Equal(t, 1, v.Len())
}

func TestExtractLongestMatchWins(t *testing.T) {
	v := NewAddedVocabulary()
	model := newModel(t)
	v.Add([]api.AddedToken{api.NewSpecialToken("<s>"), api.NewSpecialToken("<ss>")}, model)

	parts := v.Extract("x<ss>y")
	assert.Equal(t, []string{"x", "<ss>", "y"}, extractTexts(parts))
	assert.True(t, parts[1].special)
	assert.Equal(t, 1, parts[1].start)
}

func TestExtractNoMatchReturnsWholeInput(t *testing.T) {
	v := NewAddedVocabulary()
	parts := v.Extract("plain text")
	require.Len(t, parts, 1)
	assert.Equal(t, "plain text", parts[0].text)
	assert.Equal(t, -1, parts[0].tokenID)
}

func TestExtractSingleWordNeedsBoundaries(t *testing.T) {
	v := NewAddedVocabulary()
	model := newModel(t)
	v.Add([]api.AddedToken{{Content: "tok", SingleWord: true}}, model)

	parts := v.Extract("a tok b")
	assert.Equal(t, []string{"a ", "tok", " b"}, extractTexts(parts))

	parts = v.Extract("a tokens b")
	require.Len(t, parts, 1)
	assert.Equal(t, -1, parts[0].tokenID, "mid-word occurrence must not match")
}

func TestExtractStripFlagsAbsorbWhitespace(t *testing.T) {
	v := NewAddedVocabulary()
	model := newModel(t)
	v.Add([]api.AddedToken{{Content: "<mask>", LStrip: true, RStrip: true}}, model)

	parts := v.Extract("a <mask> b")
	assert.Equal(t, []string{"a", " <mask> ", "b"}, extractTexts(parts))
	assert.Equal(t, 1, parts[1].start)
}

func TestAddWithIDBumpsNovelCounter(t *testing.T) {
	v := NewAddedVocabulary()
	model := newModel(t)

	v.AddWithID(api.NewSpecialToken("<x>"), 10, model)
	id, ok := v.TokenToID("<x>")
	require.True(t, ok)
	assert.Equal(t, 10, id)

	// The next fresh token lands past the explicit id.
	v.Add([]api.AddedToken{api.NewSpecialToken("<y>")}, model)
	id, ok = v.TokenToID("<y>")
	require.True(t, ok)
	assert.Greater(t, id, 10)
}
