package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/go-tokenizers/api"
)

func wordEncoding(tokens ...string) *api.Encoding {
	toks := make([]api.Token, len(tokens))
	words := make([]int, len(tokens))
	pos := 0
	for i, tok := range tokens {
		toks[i] = api.Token{ID: 100 + i, Value: tok, Offsets: api.Offsets{Start: pos, End: pos + len(tok)}}
		words[i] = i
		pos += len(tok) + 1
	}
	return api.NewEncoding(toks, 0, words)
}

func TestBertSingleSequence(t *testing.T) {
	p := NewBert("[SEP]", 102, "[CLS]", 101)
	assert.Equal(t, 2, p.AddedTokens(false))
	assert.Equal(t, 3, p.AddedTokens(true))

	out, err := p.Process(wordEncoding("hello", "world"), nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"[CLS]", "hello", "world", "[SEP]"}, out.Tokens)
	assert.Equal(t, []int{101, 100, 101, 102}, out.IDs)
	assert.Equal(t, []int{0, 0, 0, 0}, out.TypeIDs)
	assert.Equal(t, []int{1, 0, 0, 1}, out.SpecialTokensMask)
	assert.Equal(t, []int{api.NoWord, 0, 1, api.NoWord}, out.WordIDs)
	// Specials carry zero offsets.
	assert.Equal(t, api.Offsets{}, out.Offsets[0])
	assert.Equal(t, api.Offsets{}, out.Offsets[3])
}

func TestBertPairGetsTypeIDOne(t *testing.T) {
	p := NewBert("[SEP]", 102, "[CLS]", 101)
	out, err := p.Process(wordEncoding("a"), wordEncoding("b"), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"[CLS]", "a", "[SEP]", "b", "[SEP]"}, out.Tokens)
	assert.Equal(t, []int{0, 0, 0, 1, 1}, out.TypeIDs)
}

func TestBertWithoutSpecialTokens(t *testing.T) {
	p := NewBert("[SEP]", 102, "[CLS]", 101)
	out, err := p.Process(wordEncoding("a"), wordEncoding("b"), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out.Tokens)
	assert.Equal(t, []int{0, 1}, out.TypeIDs)
}

func TestRobertaPairUsesDoubleSepAndTypeZero(t *testing.T) {
	p := NewRoberta("</s>", 2, "<s>", 0)
	assert.Equal(t, 2, p.AddedTokens(false))
	assert.Equal(t, 4, p.AddedTokens(true))

	out, err := p.Process(wordEncoding("a"), wordEncoding("b"), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"<s>", "a", "</s>", "</s>", "b", "</s>"}, out.Tokens)
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0}, out.TypeIDs)
}

func TestTemplateParsing(t *testing.T) {
	specials := map[string]int{"[CLS]": 101, "[SEP]": 102}

	_, err := NewTemplate("[CLS] $A [SEP]", "[CLS] $A [SEP] $B:1 [SEP]:1", specials)
	require.NoError(t, err)

	_, err = NewTemplate("[BOGUS] $A", "", specials)
	assert.True(t, api.IsKind(err, api.ConfigError), "unknown special token")

	_, err = NewTemplate("[CLS] [SEP]", "", specials)
	assert.True(t, api.IsKind(err, api.ConfigError), "single template without $A")

	_, err = NewTemplate("$A", "$A [SEP]", specials)
	assert.True(t, api.IsKind(err, api.ConfigError), "pair template without $B")
}

func TestTemplateProcess(t *testing.T) {
	tmpl, err := NewTemplate("[CLS] $A [SEP]", "[CLS] $A [SEP] $B:1 [SEP]:1", map[string]int{"[CLS]": 101, "[SEP]": 102})
	require.NoError(t, err)
	assert.Equal(t, 2, tmpl.AddedTokens(false))
	assert.Equal(t, 3, tmpl.AddedTokens(true))

	out, err := tmpl.Process(wordEncoding("x"), wordEncoding("y"), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"[CLS]", "x", "[SEP]", "y", "[SEP]"}, out.Tokens)
	assert.Equal(t, []int{0, 0, 0, 1, 1}, out.TypeIDs)
	assert.Equal(t, []int{1, 0, 1, 0, 1}, out.SpecialTokensMask)
}

func TestTemplateWithoutSpecialTokensMergesSequences(t *testing.T) {
	tmpl, err := NewTemplate("[CLS] $A [SEP]", "[CLS] $A [SEP] $B:1 [SEP]:1", map[string]int{"[CLS]": 101, "[SEP]": 102})
	require.NoError(t, err)
	out, err := tmpl.Process(wordEncoding("x"), wordEncoding("y"), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, out.Tokens)
}

func TestByteLevelTrimsOffsets(t *testing.T) {
	p := NewByteLevel()
	toks := []api.Token{
		{ID: 1, Value: "ĠHello", Offsets: api.Offsets{Start: 0, End: 6}},
		{ID: 2, Value: "Ġworld", Offsets: api.Offsets{Start: 6, End: 12}},
	}
	enc := api.NewEncoding(toks, 0, []int{0, 1})
	out, err := p.Process(enc, nil, true)
	require.NoError(t, err)
	// The leading space marker is trimmed out of each token's span.
	assert.Equal(t, api.Offsets{Start: 1, End: 6}, out.Offsets[0])
	assert.Equal(t, api.Offsets{Start: 7, End: 12}, out.Offsets[1])
}

func TestSequenceRunsChildrenInOrder(t *testing.T) {
	seq := NewSequence(NewByteLevel(), NewBert("[SEP]", 102, "[CLS]", 101))
	assert.Equal(t, 2, seq.AddedTokens(false))

	out, err := seq.Process(wordEncoding("a"), nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"[CLS]", "a", "[SEP]"}, out.Tokens)
}

func TestClosedProcessorFails(t *testing.T) {
	p := NewBert("[SEP]", 102, "[CLS]", 101)
	require.NoError(t, p.Close())
	_, err := p.Process(wordEncoding("a"), nil, true)
	assert.ErrorIs(t, err, api.ErrClosed)
	assert.NoError(t, p.Close())
}

func TestSerializationRoundTrip(t *testing.T) {
	tmpl, err := NewTemplate("[CLS] $A [SEP]", "[CLS] $A [SEP] $B:1 [SEP]:1", map[string]int{"[CLS]": 101, "[SEP]": 102})
	require.NoError(t, err)

	data, err := Marshal(tmpl)
	require.NoError(t, err)
	loaded, err := Unmarshal(data)
	require.NoError(t, err)

	out, err := loaded.Process(wordEncoding("x"), nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"[CLS]", "x", "[SEP]"}, out.Tokens)
}
