package normalized

import (
	"regexp"
	"testing"

	"golang.org/x/text/unicode/norm"

	"github.com/stretchr/testify/assert"

	"github.com/gomlx/go-tokenizers/api"
)

func TestLowercaseKeepsAlignment(t *testing.T) {
	ns := New("Hello World")
	ns.Lowercase()

	assert.Equal(t, "hello world", ns.Get())
	assert.Equal(t, "Hello World", ns.Original())
	assert.Equal(t, api.Offsets{Start: 6, End: 11}, ns.OriginalOffsets(6, 11))
}

func TestFilterShrinksAndMapsBack(t *testing.T) {
	ns := New("a-b-c")
	ns.Filter(func(r rune) bool { return r != '-' })

	assert.Equal(t, "abc", ns.Get())
	// "c" sits at byte 4 of the original.
	assert.Equal(t, api.Offsets{Start: 4, End: 5}, ns.OriginalOffsets(2, 3))
}

func TestNormalizeNFDExpandsRunes(t *testing.T) {
	// é decomposes into e plus a combining accent.
	ns := New("café")
	ns.Normalize(norm.NFD)

	assert.Equal(t, "café", ns.Get())
	// The whole decomposition maps back to the original two-byte é.
	assert.Equal(t, api.Offsets{Start: 3, End: 5}, ns.OriginalOffsets(3, len(ns.Get())))
}

func TestPrependMapsToFirstRune(t *testing.T) {
	ns := New("word")
	ns.Prepend("▁")

	assert.Equal(t, "▁word", ns.Get())
	// The synthetic prefix shares the first rune's original span.
	off := ns.OriginalOffsets(0, 3)
	assert.Equal(t, 0, off.Start)
}

func TestReplaceCollapsesSpan(t *testing.T) {
	ns := New("a  b")
	ns.Replace(regexp.MustCompile(`\s+`), " ")

	assert.Equal(t, "a b", ns.Get())
	assert.Equal(t, api.Offsets{Start: 3, End: 4}, ns.OriginalOffsets(2, 3))
}

func TestStrip(t *testing.T) {
	ns := New("  hi  ")
	ns.Strip(true, true)
	assert.Equal(t, "hi", ns.Get())
	assert.Equal(t, api.Offsets{Start: 2, End: 4}, ns.OriginalOffsets(0, 2))

	left := New("  hi")
	left.Strip(true, false)
	assert.Equal(t, "hi", left.Get())
}
