package normalizers

import (
	"github.com/gomlx/go-tokenizers/internal/bytelevel"
	"github.com/gomlx/go-tokenizers/normalized"
)

// ByteLevel remaps every byte of the buffer to its printable alphabet rune,
// so downstream regex-based stages always operate on a valid string.
type ByteLevel struct {
	lifecycle
}

// NewByteLevel returns the byte-remapping normalizer.
func NewByteLevel() *ByteLevel { return &ByteLevel{} }

// Normalize implements Normalizer.
func (n *ByteLevel) Normalize(ns *normalized.String) error {
	if err := n.guard(); err != nil {
		return err
	}
	ns.Transform(func(r rune) string {
		return bytelevel.Encode(string(r))
	})
	return nil
}
