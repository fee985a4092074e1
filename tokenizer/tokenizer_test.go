package tokenizer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/corpus"
	"github.com/gomlx/go-tokenizers/decoders"
	"github.com/gomlx/go-tokenizers/models/wordlevel"
	"github.com/gomlx/go-tokenizers/normalizers"
	"github.com/gomlx/go-tokenizers/pretokenizers"
	"github.com/gomlx/go-tokenizers/processors"
)

func newWordLevelTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	model, err := wordlevel.New(map[string]int{
		"[UNK]": 0, "hello": 1, "world": 2, "my": 3, "name": 4, "is": 5,
	}, "[UNK]")
	require.NoError(t, err)
	return New(model).WithPreTokenizer(pretokenizers.NewWhitespaceSplit())
}

func letterTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	model, err := wordlevel.New(map[string]int{
		"a": 0, "b": 1, "c": 2, "d": 3, "e": 4, "f": 5,
	}, "")
	require.NoError(t, err)
	return New(model).WithPreTokenizer(pretokenizers.NewWhitespaceSplit())
}

func TestEncodeBasic(t *testing.T) {
	tok := newWordLevelTokenizer(t)
	defer tok.Close()

	enc, err := tok.Encode("hello world", true)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, enc.IDs)
	assert.Equal(t, []string{"hello", "world"}, enc.Tokens)
	assert.Equal(t, []api.Offsets{{Start: 0, End: 5}, {Start: 6, End: 11}}, enc.Offsets)
	assert.Equal(t, []int{0, 1}, enc.WordIDs)
	assert.Equal(t, []int{1, 1}, enc.AttentionMask)
	assert.Equal(t, []int{0, 0}, enc.SpecialTokensMask)
}

func TestEncodeUnknownWordFallsToUnk(t *testing.T) {
	tok := newWordLevelTokenizer(t)
	defer tok.Close()

	enc, err := tok.Encode("hello zebra", true)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, enc.IDs)
	assert.Equal(t, []string{"hello", "[UNK]"}, enc.Tokens)
}

func TestEncodeWithNormalizer(t *testing.T) {
	tok := newWordLevelTokenizer(t).WithNormalizer(normalizers.NewLowercase())
	defer tok.Close()

	enc, err := tok.Encode("HELLO World", true)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, enc.IDs)
}

func TestEncodeWithBertProcessor(t *testing.T) {
	tok := newWordLevelTokenizer(t)
	defer tok.Close()
	tok.AddSpecialTokens("[CLS]", "[SEP]")
	clsID, ok := tok.TokenToID("[CLS]")
	require.True(t, ok)
	sepID, ok := tok.TokenToID("[SEP]")
	require.True(t, ok)
	tok.WithPostProcessor(processors.NewBert("[SEP]", sepID, "[CLS]", clsID))

	assert.Equal(t, 2, tok.NumSpecialTokensToAdd(false))
	assert.Equal(t, 3, tok.NumSpecialTokensToAdd(true))

	enc, err := tok.Encode("hello world", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"[CLS]", "hello", "world", "[SEP]"}, enc.Tokens)
	assert.Equal(t, []int{1, 0, 0, 1}, enc.SpecialTokensMask)

	pair, err := tok.EncodePair("hello", "world", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"[CLS]", "hello", "[SEP]", "world", "[SEP]"}, pair.Tokens)
	assert.Equal(t, []int{0, 0, 0, 1, 1}, pair.TypeIDs)
}

func TestEncodePairWithoutProcessorSetsTypeIDs(t *testing.T) {
	tok := newWordLevelTokenizer(t)
	defer tok.Close()

	enc, err := tok.EncodePair("hello", "world", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world"}, enc.Tokens)
	assert.Equal(t, []int{0, 1}, enc.TypeIDs)
}

func TestAddedTokensMatchRawInput(t *testing.T) {
	tok := newWordLevelTokenizer(t)
	defer tok.Close()

	added := tok.AddSpecialTokens("<s>")
	assert.Equal(t, 1, added)
	base := tok.Model().VocabSize()
	assert.Equal(t, base+1, tok.VocabSize(true))

	enc, err := tok.Encode("hello <s> world", true)
	require.NoError(t, err)
	require.Equal(t, []string{"hello", "<s>", "world"}, enc.Tokens)
	assert.Equal(t, base, enc.IDs[1])
	assert.Equal(t, []int{0, 1, 0}, enc.SpecialTokensMask)
	// Offsets on either side of the added token still point at the raw
	// input.
	assert.Equal(t, api.Offsets{Start: 0, End: 5}, enc.Offsets[0])
	assert.Equal(t, api.Offsets{Start: 6, End: 9}, enc.Offsets[1])
	assert.Equal(t, api.Offsets{Start: 10, End: 15}, enc.Offsets[2])
}

func TestTruncationProducesOverflowWindows(t *testing.T) {
	tok := letterTokenizer(t).WithTruncation(&TruncationConfig{MaxLength: 4, Stride: 2})
	defer tok.Close()

	enc, err := tok.Encode("a b c d e f", false)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, enc.IDs)
	require.Len(t, enc.Overflowing, 2)
	assert.Equal(t, []int{2, 3, 4, 5}, enc.Overflowing[0].IDs)
	assert.Equal(t, []int{4, 5}, enc.Overflowing[1].IDs)
}

func TestTruncationReservesRoomForSpecialTokens(t *testing.T) {
	tok := newWordLevelTokenizer(t)
	defer tok.Close()
	tok.AddSpecialTokens("[CLS]", "[SEP]")
	clsID, _ := tok.TokenToID("[CLS]")
	sepID, _ := tok.TokenToID("[SEP]")
	tok.WithPostProcessor(processors.NewBert("[SEP]", sepID, "[CLS]", clsID))
	tok.WithTruncation(&TruncationConfig{MaxLength: 4})

	enc, err := tok.Encode("hello world my name is", true)
	require.NoError(t, err)
	assert.Equal(t, 4, enc.Len())
	assert.Equal(t, []string{"[CLS]", "hello", "world", "[SEP]"}, enc.Tokens)
}

func TestTruncationOnlySecondFailsWhenFirstTooLong(t *testing.T) {
	tok := letterTokenizer(t).WithTruncation(&TruncationConfig{MaxLength: 3, Strategy: OnlySecond})
	defer tok.Close()

	_, err := tok.EncodePair("a b c d", "e f", false)
	assert.True(t, api.IsKind(err, api.EncodingError))
}

func TestPaddingFixed(t *testing.T) {
	tok := newWordLevelTokenizer(t).WithPadding(&PaddingConfig{
		Strategy: PadFixed, Length: 5, PadToken: "[PAD]", PadID: 9,
	})
	defer tok.Close()

	enc, err := tok.Encode("hello world", true)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 9, 9, 9}, enc.IDs)
	assert.Equal(t, []int{1, 1, 0, 0, 0}, enc.AttentionMask)
	assert.Equal(t, []int{0, 1, api.NoWord, api.NoWord, api.NoWord}, enc.WordIDs)
}

func TestPaddingToMultipleOf(t *testing.T) {
	tok := newWordLevelTokenizer(t).WithPadding(&PaddingConfig{
		Strategy: PadFixed, Length: 5, PadToMultipleOf: 4, PadToken: "[PAD]", PadID: 9,
	})
	defer tok.Close()

	enc, err := tok.Encode("hello", true)
	require.NoError(t, err)
	assert.Equal(t, 8, enc.Len())
}

func TestEncodeBatchPadsToLongest(t *testing.T) {
	tok := newWordLevelTokenizer(t).WithPadding(&PaddingConfig{
		Strategy: PadLongest, PadToken: "[PAD]", PadID: 9,
	})
	defer tok.Close()

	encs, err := tok.EncodeBatch([]string{"hello world my", "hello"}, true)
	require.NoError(t, err)
	require.Len(t, encs, 2)
	assert.Equal(t, 3, encs[0].Len())
	assert.Equal(t, 3, encs[1].Len())
	assert.Equal(t, []int{1, 9, 9}, encs[1].IDs)
}

func TestFieldsProjection(t *testing.T) {
	tok := newWordLevelTokenizer(t).WithFields(FieldAttentionMask)
	defer tok.Close()

	enc, err := tok.Encode("hello world", true)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, enc.IDs)
	assert.Equal(t, []int{1, 1}, enc.AttentionMask)
	assert.Nil(t, enc.Tokens)
	assert.Nil(t, enc.Offsets)
	assert.Nil(t, enc.TypeIDs)
	assert.Nil(t, enc.WordIDs)
	assert.Nil(t, enc.SpecialTokensMask)
}

func TestDecode(t *testing.T) {
	tok := newWordLevelTokenizer(t)
	defer tok.Close()
	tok.AddSpecialTokens("<s>")
	specialID, _ := tok.TokenToID("<s>")

	text, err := tok.Decode([]int{1, 2}, false)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	text, err = tok.Decode([]int{specialID, 1, 2}, true)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	_, err = tok.Decode([]int{999}, false)
	assert.True(t, api.IsKind(err, api.DecodingError))
}

func TestDecodeReversesEncode(t *testing.T) {
	vocab := map[string]int{"[UNK]": 0, "[CLS]": 1, "[SEP]": 2}
	for _, w := range []string{
		"hello", "world", "it", "does", "not", "stop", ".",
		"one", "two", "three", "four", "!", "is", "this", "fine", "?",
		"well", ",", "maybe", "Berlin",
	} {
		vocab[w] = len(vocab)
	}
	model, err := wordlevel.New(vocab, "[UNK]")
	require.NoError(t, err)

	tok := New(model).
		WithNormalizer(&normalizers.Bert{CleanText: true, HandleChineseChars: true}).
		WithPreTokenizer(pretokenizers.NewBert()).
		WithDecoder(decoders.NewWordPiece())
	defer tok.Close()
	tok.AddSpecialTokens("[CLS]", "[SEP]")
	tok.WithPostProcessor(processors.NewBert("[SEP]", 2, "[CLS]", 1))

	for _, input := range []string{
		"hello world",
		"it does not stop.",
		"one two three four!",
		"is this fine?",
		"well, maybe",
		"Berlin is not hello",
	} {
		enc, err := tok.Encode(input, true)
		require.NoError(t, err)
		text, err := tok.Decode(enc.IDs, true)
		require.NoError(t, err)
		assert.Equal(t, input, text, "round trip of %q", input)
	}
}

func TestDecodeBatch(t *testing.T) {
	tok := newWordLevelTokenizer(t)
	defer tok.Close()

	out, err := tok.DecodeBatch([][]int{{1, 2}, {3, 4}}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello world", "my name"}, out)
}

func TestTrainInstallsModelAndSpecials(t *testing.T) {
	tok := New(nil).WithPreTokenizer(pretokenizers.NewWhitespaceSplit())
	defer tok.Close()

	trainer := wordlevel.NewTrainer(wordlevel.TrainerConfig{
		SpecialTokens: []api.AddedToken{api.NewSpecialToken("[UNK]")},
		UnkToken:      "[UNK]",
	})
	source := corpus.NewStrings([]string{"hello world", "hello again"})
	require.NoError(t, tok.Train(context.Background(), trainer, source))

	require.NotNil(t, tok.Model())
	enc, err := tok.Encode("hello world", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world"}, enc.Tokens)

	_, ok := tok.TokenToID("[UNK]")
	assert.True(t, ok)
}

func TestSerializationRoundTrip(t *testing.T) {
	tok := newWordLevelTokenizer(t).
		WithNormalizer(normalizers.NewLowercase()).
		WithTruncation(&TruncationConfig{MaxLength: 8}).
		WithPadding(&PaddingConfig{Strategy: PadFixed, Length: 8, PadToken: "[PAD]", PadID: 9})
	defer tok.Close()
	tok.AddSpecialTokens("<s>")

	data, err := json.Marshal(tok)
	require.NoError(t, err)

	loaded, err := FromBytes(data)
	require.NoError(t, err)
	defer loaded.Close()

	want, err := tok.Encode("Hello <s> world", true)
	require.NoError(t, err)
	got, err := loaded.Encode("Hello <s> world", true)
	require.NoError(t, err)
	assert.Equal(t, want.IDs, got.IDs)
	assert.Equal(t, want.Tokens, got.Tokens)
	assert.Equal(t, want.Offsets, got.Offsets)
	assert.Equal(t, tok.Vocab(true), loaded.Vocab(true))
}

func TestFromBytesRejectsUnknownVersion(t *testing.T) {
	_, err := FromBytes([]byte(`{"version":"9.9","model":{"type":"WordLevel","vocab":{},"unk_token":""}}`))
	assert.Error(t, err)
}

func TestSaveAndReload(t *testing.T) {
	tok := newWordLevelTokenizer(t)
	defer tok.Close()

	path := t.TempDir() + "/tokenizer.json"
	require.NoError(t, tok.Save(path, true))

	loaded, err := FromFile(path)
	require.NoError(t, err)
	defer loaded.Close()
	assert.Equal(t, tok.Vocab(false), loaded.Vocab(false))
}

func TestClosedTokenizerFails(t *testing.T) {
	tok := newWordLevelTokenizer(t)
	require.NoError(t, tok.Close())

	_, err := tok.Encode("hello", true)
	assert.ErrorIs(t, err, api.ErrClosed)
	_, err = tok.Decode([]int{1}, false)
	assert.ErrorIs(t, err, api.ErrClosed)
	assert.NoError(t, tok.Close())
}
