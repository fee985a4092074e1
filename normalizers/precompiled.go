package normalizers

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/normalized"
)

// Precompiled applies a precomputed character-remapping table in the
// SentencePiece precompiled_charsmap format: a serialized double-array trie
// over UTF-8 prefixes plus a pool of NUL-separated replacement strings. The
// output depends only on the table and the input.
type Precompiled struct {
	lifecycle
	charsmap   []byte
	trie       doubleArray
	normParams []byte
}

// NewPrecompiled parses a precompiled charsmap blob.
func NewPrecompiled(charsmap []byte) (*Precompiled, error) {
	if len(charsmap) < 4 {
		return nil, api.Errorf(api.ConfigError, "precompiled charsmap too short: %d bytes", len(charsmap))
	}
	trieSize := binary.LittleEndian.Uint32(charsmap[:4])
	if trieSize%4 != 0 || int(trieSize) > len(charsmap)-4 {
		return nil, api.WrapError(api.ConfigError,
			errors.Errorf("precompiled charsmap trie block of %d bytes does not fit in %d", trieSize, len(charsmap)))
	}
	trieBytes := charsmap[4 : 4+trieSize]
	units := make([]uint32, trieSize/4)
	for i := range units {
		units[i] = binary.LittleEndian.Uint32(trieBytes[i*4:])
	}
	return &Precompiled{
		charsmap:   charsmap,
		trie:       doubleArray{units: units},
		normParams: charsmap[4+trieSize:],
	}, nil
}

// Charsmap returns the raw blob the normalizer was built from, for
// serialization.
func (n *Precompiled) Charsmap() []byte { return n.charsmap }

// replacement returns the NUL-terminated pool entry starting at index.
func (n *Precompiled) replacement(index int) string {
	if index < 0 || index >= len(n.normParams) {
		return ""
	}
	end := index
	for end < len(n.normParams) && n.normParams[end] != 0 {
		end++
	}
	return string(n.normParams[index:end])
}

// transform looks up the longest remapped prefix of chunk. It returns the
// replacement and the number of input bytes consumed, or consumed == 0 when
// no prefix is in the table.
func (n *Precompiled) transform(chunk string) (string, int) {
	value, length := n.trie.longestPrefix([]byte(chunk))
	if length == 0 {
		return "", 0
	}
	return n.replacement(value), length
}

// Normalize implements Normalizer.
func (n *Precompiled) Normalize(ns *normalized.String) error {
	if err := n.guard(); err != nil {
		return err
	}
	// Work rune by rune so alignment stays per-character: a rune either has
	// a replacement in the table or is copied through.
	ns.Transform(func(r rune) string {
		var buf [utf8.UTFMax]byte
		w := utf8.EncodeRune(buf[:], r)
		if rep, consumed := n.transform(string(buf[:w])); consumed == w {
			return rep
		}
		return string(r)
	})
	return nil
}

// doubleArray is a read-only darts-clone double-array trie.
type doubleArray struct {
	units []uint32
}

func daHasLeaf(u uint32) bool { return (u>>8)&1 == 1 }
func daValue(u uint32) int    { return int(u & 0x7fffffff) }
func daLabel(u uint32) uint32 { return u & 0x800000ff }
func daOffset(u uint32) uint32 {
	return (u >> 10) << ((u & 0x200) >> 6)
}

// longestPrefix walks the trie over key and returns the value and byte
// length of the longest matching prefix.
func (d doubleArray) longestPrefix(key []byte) (value, length int) {
	if len(d.units) == 0 {
		return 0, 0
	}
	nodePos := uint32(0)
	unit := d.units[nodePos]
	for i, c := range key {
		if c == 0 {
			break
		}
		nodePos ^= daOffset(unit) ^ uint32(c)
		if nodePos >= uint32(len(d.units)) {
			break
		}
		unit = d.units[nodePos]
		if daLabel(unit) != uint32(c) {
			break
		}
		if daHasLeaf(unit) {
			leafPos := nodePos ^ daOffset(unit)
			if leafPos < uint32(len(d.units)) {
				value = daValue(d.units[leafPos])
				length = i + 1
			}
		}
	}
	return value, length
}
