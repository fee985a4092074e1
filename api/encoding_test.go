package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEncoding(ids ...int) *Encoding {
	tokens := make([]Token, len(ids))
	words := make([]int, len(ids))
	for i, id := range ids {
		tokens[i] = Token{ID: id, Value: string(rune('a' + id)), Offsets: Offsets{Start: i, End: i + 1}}
		words[i] = i
	}
	return NewEncoding(tokens, 0, words)
}

func TestEncodingMergeShiftsWords(t *testing.T) {
	a := makeEncoding(0, 1)
	b := makeEncoding(2, 3, 4)
	a.Merge(b, true)

	assert.Equal(t, []int{0, 1, 2, 3, 4}, a.IDs)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, a.WordIDs)

	// Special positions keep NoWord through a shift.
	c := makeEncoding(5)
	c.WordIDs[0] = NoWord
	a.Merge(c, true)
	assert.Equal(t, NoWord, a.WordIDs[5])
}

func TestEncodingTruncateProducesOverlappingWindows(t *testing.T) {
	e := makeEncoding(0, 1, 2, 3, 4, 5)
	e.Truncate(4, 2, Right)

	require.Equal(t, 4, e.Len())
	assert.Equal(t, []int{0, 1, 2, 3}, e.IDs)
	require.Len(t, e.Overflowing, 2)
	// stride 2 means each window re-covers the last two positions of
	// the previous one.
	assert.Equal(t, []int{2, 3, 4, 5}, e.Overflowing[0].IDs)
	assert.Equal(t, []int{4, 5}, e.Overflowing[1].IDs)
}

func TestEncodingTruncateLeft(t *testing.T) {
	e := makeEncoding(0, 1, 2, 3, 4, 5)
	e.Truncate(4, 0, Left)

	assert.Equal(t, []int{2, 3, 4, 5}, e.IDs)
	require.Len(t, e.Overflowing, 1)
	assert.Equal(t, []int{0, 1}, e.Overflowing[0].IDs)
}

func TestEncodingTruncateNoopWhenShort(t *testing.T) {
	e := makeEncoding(0, 1)
	e.Truncate(4, 0, Right)
	assert.Equal(t, 2, e.Len())
	assert.Empty(t, e.Overflowing)
}

func TestEncodingPad(t *testing.T) {
	e := makeEncoding(1, 2)
	e.Pad(4, 0, 0, "[PAD]", Right)

	assert.Equal(t, []int{1, 2, 0, 0}, e.IDs)
	assert.Equal(t, []string{"b", "c", "[PAD]", "[PAD]"}, e.Tokens)
	assert.Equal(t, []int{1, 1, 0, 0}, e.AttentionMask)
	assert.Equal(t, []int{0, 0, 1, 1}, e.SpecialTokensMask)
	assert.Equal(t, []int{0, 1, NoWord, NoWord}, e.WordIDs)

	left := makeEncoding(1)
	left.Pad(3, 0, 0, "[PAD]", Left)
	assert.Equal(t, []int{0, 0, 1}, left.IDs)
}

func TestCharOffsets(t *testing.T) {
	// "héllo": é is two bytes.
	text := "héllo"
	assert.Equal(t, Offsets{Start: 1, End: 3}, CharOffsets(text, Offsets{Start: 1, End: 4}))
	assert.Equal(t, Offsets{Start: 0, End: 5}, CharOffsets(text, Offsets{Start: 0, End: len(text)}))
}
