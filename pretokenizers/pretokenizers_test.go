package pretokenizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/normalized"
)

func pretokenize(t *testing.T, p PreTokenizer, input string) *PreTokenizedString {
	t.Helper()
	pts := New(normalized.New(input))
	require.NoError(t, p.PreTokenize(pts))
	return pts
}

func texts(p *PreTokenizedString) []string {
	out := make([]string, p.Count())
	for i := range out {
		out[i] = p.Text(i)
	}
	return out
}

func TestWhitespaceSplitsWordsAndPunctuation(t *testing.T) {
	p := pretokenize(t, NewWhitespace(), "Hey friend!  How are you?")
	assert.Equal(t, []string{"Hey", "friend", "!", "How", "are", "you", "?"}, texts(p))
}

func TestWhitespaceSplitKeepsPunctuationAttached(t *testing.T) {
	p := pretokenize(t, NewWhitespaceSplit(), "Hey friend!")
	assert.Equal(t, []string{"Hey", "friend!"}, texts(p))
}

func TestWhitespaceOffsetsPointAtOriginal(t *testing.T) {
	p := pretokenize(t, NewWhitespace(), "ab  cd")
	subs := p.Substrings(api.OriginalReferential, api.ByteUnit)
	require.Len(t, subs, 2)
	assert.Equal(t, api.Offsets{Start: 0, End: 2}, subs[0].Offsets)
	assert.Equal(t, api.Offsets{Start: 4, End: 6}, subs[1].Offsets)
}

func TestBertPreTokenizer(t *testing.T) {
	p := pretokenize(t, NewBert(), "don't stop")
	assert.Equal(t, []string{"don", "'", "t", "stop"}, texts(p))
}

func TestPunctuationBehaviors(t *testing.T) {
	for _, tc := range []struct {
		behavior SplitDelimiterBehavior
		want     []string
	}{
		{Removed, []string{"a", "b"}},
		{Isolated, []string{"a", ".", "b"}},
		{MergedWithPrevious, []string{"a.", "b"}},
		{MergedWithNext, []string{"a", ".b"}},
	} {
		p := pretokenize(t, NewPunctuation(tc.behavior), "a.b")
		assert.Equal(t, tc.want, texts(p), "behavior %s", tc.behavior)
	}
}

func TestDigits(t *testing.T) {
	grouped := pretokenize(t, NewDigits(false), "ab12cd")
	assert.Equal(t, []string{"ab", "12", "cd"}, texts(grouped))

	individual := pretokenize(t, NewDigits(true), "a12")
	assert.Equal(t, []string{"a", "1", "2"}, texts(individual))
}

func TestCharDelimiterSplit(t *testing.T) {
	d, err := NewCharDelimiterSplit('-')
	require.NoError(t, err)
	p := pretokenize(t, d, "a-b--c")
	assert.Equal(t, []string{"a", "b", "c"}, texts(p))
}

func TestFixedLength(t *testing.T) {
	f, err := NewFixedLength(2)
	require.NoError(t, err)
	p := pretokenize(t, f, "abcde")
	assert.Equal(t, []string{"ab", "cd", "e"}, texts(p))

	_, err = NewFixedLength(0)
	assert.True(t, api.IsKind(err, api.PreTokenizationError))
}

func TestByteLevelEncodesSpaces(t *testing.T) {
	b := NewByteLevel()
	p := pretokenize(t, b, "Hello world")
	got := texts(p)
	require.Len(t, got, 2)
	// The leading prefix space and the word separator both become the
	// byte-level space marker.
	assert.Equal(t, "ĠHello", got[0])
	assert.Equal(t, "Ġworld", got[1])
}

func TestByteLevelOffsetsSurviveTransform(t *testing.T) {
	b := NewByteLevel()
	b.AddPrefixSpace = false
	p := pretokenize(t, b, "hi yo")
	subs := p.Substrings(api.OriginalReferential, api.ByteUnit)
	require.Len(t, subs, 2)
	assert.Equal(t, api.Offsets{Start: 0, End: 2}, subs[0].Offsets)
	assert.Equal(t, api.Offsets{Start: 2, End: 5}, subs[1].Offsets)
}

func TestMetaspace(t *testing.T) {
	m, err := NewMetaspace(DefaultMetaspaceReplacement, PrependAlways, true)
	require.NoError(t, err)
	p := pretokenize(t, m, "Hey friend")
	assert.Equal(t, []string{"▁Hey", "▁friend"}, texts(p))
}

func TestMetaspacePrependNever(t *testing.T) {
	m, err := NewMetaspace(DefaultMetaspaceReplacement, PrependNever, true)
	require.NoError(t, err)
	p := pretokenize(t, m, "Hey friend")
	assert.Equal(t, []string{"Hey", "▁friend"}, texts(p))
}

func TestSplitRegexBehavior(t *testing.T) {
	s, err := NewSplit(api.RegexPattern(`\s+`), Removed, false)
	require.NoError(t, err)
	p := pretokenize(t, s, "one  two")
	assert.Equal(t, []string{"one", "two"}, texts(p))

	_, err = NewSplit(api.RegexPattern(`(`), Removed, false)
	assert.True(t, api.IsKind(err, api.PreTokenizationError))
}

func TestSplitInvert(t *testing.T) {
	s, err := NewSplit(api.RegexPattern(`\w+`), Removed, true)
	require.NoError(t, err)
	p := pretokenize(t, s, "ab, cd")
	assert.Equal(t, []string{"ab", "cd"}, texts(p))
}

func TestUnicodeScriptsSplitsAtScriptBoundaries(t *testing.T) {
	p := pretokenize(t, NewUnicodeScripts(), "abcニホンゴdef")
	assert.Equal(t, []string{"abc", "ニホンゴ", "def"}, texts(p))
}

func TestSequencePreTokenizer(t *testing.T) {
	seq, err := NewSequence(NewWhitespaceSplit(), NewPunctuation(Isolated))
	require.NoError(t, err)
	p := pretokenize(t, seq, "hi, there")
	assert.Equal(t, []string{"hi", ",", "there"}, texts(p))
}

func TestClosedPreTokenizerFails(t *testing.T) {
	w := NewWhitespace()
	require.NoError(t, w.Close())
	err := w.PreTokenize(New(normalized.New("x")))
	assert.ErrorIs(t, err, api.ErrClosed)
}

func TestSerializationRoundTrip(t *testing.T) {
	m, err := NewMetaspace(DefaultMetaspaceReplacement, PrependFirst, true)
	require.NoError(t, err)
	seq, err := NewSequence(NewWhitespaceSplit(), m)
	require.NoError(t, err)

	data, err := Marshal(seq)
	require.NoError(t, err)
	loaded, err := Unmarshal(data)
	require.NoError(t, err)

	p := pretokenize(t, loaded, "a b")
	assert.Equal(t, []string{"▁a", "▁b"}, texts(p))
}
