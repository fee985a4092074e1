package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/normalized"
)

func normalize(t *testing.T, n Normalizer, input string) string {
	t.Helper()
	ns := normalized.New(input)
	require.NoError(t, n.Normalize(ns))
	return ns.Get()
}

func TestSequenceLowercaseStripAccents(t *testing.T) {
	seq, err := NewSequence(NewLowercase(), NewStripAccents())
	require.NoError(t, err)
	defer seq.Close()

	assert.Equal(t, "cafe", normalize(t, seq, "CAFÉ"))
}

func TestStripAccentsKeepsBaseRunes(t *testing.T) {
	n := NewStripAccents()
	assert.Equal(t, "uber", normalize(t, n, "über"))
	assert.Equal(t, "ascii stays", normalize(t, n, "ascii stays"))
}

func TestNMTDropsControlsAndSpacesOddWhitespace(t *testing.T) {
	n := NewNMT()
	// U+0001 is removed, U+2007 (figure space) and U+200B (zero-width
	// space) become plain spaces.
	assert.Equal(t, "a b c", normalize(t, n, "a b​c"))
}

func TestBertNormalizerDefaults(t *testing.T) {
	b := NewBert()
	// Control characters are dropped, CJK characters get surrounding
	// spaces, text is lowercased.
	assert.Equal(t, "hello  世  界 ", normalize(t, b, "Hello\x00 世界"))
}

func TestStripNormalizer(t *testing.T) {
	n := NewStrip(true, false)
	assert.Equal(t, "x  ", normalize(t, n, "  x  "))
}

func TestReplaceNormalizer(t *testing.T) {
	n, err := NewReplace(api.RegexPattern(`\s+`), " ")
	require.NoError(t, err)
	assert.Equal(t, "a b", normalize(t, n, "a \t b"))
}

func TestPrependNormalizer(t *testing.T) {
	n := NewPrepend("_")
	assert.Equal(t, "_word", normalize(t, n, "word"))
}

func TestClosedNormalizerFails(t *testing.T) {
	n := NewLowercase()
	require.NoError(t, n.Close())

	ns := normalized.New("X")
	err := n.Normalize(ns)
	assert.ErrorIs(t, err, api.ErrClosed)
	// Closing again stays a no-op.
	assert.NoError(t, n.Close())
}

func TestSequenceCloseCascades(t *testing.T) {
	child := NewLowercase()
	seq, err := NewSequence(child)
	require.NoError(t, err)
	require.NoError(t, seq.Close())

	assert.ErrorIs(t, child.Normalize(normalized.New("x")), api.ErrClosed)
}

func TestSerializationRoundTrip(t *testing.T) {
	seq, err := NewSequence(NewNFKC(), NewLowercase(), NewStrip(true, true))
	require.NoError(t, err)

	data, err := Marshal(seq)
	require.NoError(t, err)

	loaded, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, "café", normalize(t, loaded, "  CAFÉ  "))
}

func TestUnmarshalUnknownType(t *testing.T) {
	_, err := Unmarshal([]byte(`{"type":"NoSuchNormalizer"}`))
	assert.True(t, api.IsKind(err, api.ConfigError))
}
