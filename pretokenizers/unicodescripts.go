package pretokenizers

import (
	"sort"
	"unicode"

	"github.com/gomlx/go-tokenizers/api"
)

// UnicodeScripts splits at boundaries between Unicode script families.
// Hiragana, Katakana and the katakana middle dot are folded into Han, the
// usual convention for CJK subword models.
type UnicodeScripts struct {
	lifecycle
}

// NewUnicodeScripts returns the script-boundary splitter.
func NewUnicodeScripts() *UnicodeScripts { return &UnicodeScripts{} }

// scriptTables lists the script range tables once, in a fixed order so
// lookups are deterministic.
var scriptTables = func() []struct {
	name  string
	table *unicode.RangeTable
} {
	names := make([]string, 0, len(unicode.Scripts))
	for name := range unicode.Scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]struct {
		name  string
		table *unicode.RangeTable
	}, len(names))
	for i, name := range names {
		out[i].name = name
		out[i].table = unicode.Scripts[name]
	}
	return out
}()

// scriptOf resolves the script family of r, folding the kana scripts into
// Han. Runes outside every script table count as Common.
func scriptOf(r rune) string {
	if r == 0x30FB {
		return "Han"
	}
	for _, st := range scriptTables {
		if unicode.Is(st.table, r) {
			switch st.name {
			case "Hiragana", "Katakana":
				return "Han"
			default:
				return st.name
			}
		}
	}
	return "Common"
}

// PreTokenize implements PreTokenizer.
func (u *UnicodeScripts) PreTokenize(p *PreTokenizedString) error {
	if err := u.guard(); err != nil {
		return err
	}
	return p.Split(func(text string) ([]Piece, error) {
		var pieces []Piece
		start := 0
		current := ""
		for i, r := range text {
			script := scriptOf(r)
			if script == "Common" || script == "Inherited" {
				continue
			}
			if current != "" && script != current {
				pieces = append(pieces, Piece{Range: api.Offsets{Start: start, End: i}})
				start = i
			}
			current = script
		}
		if start < len(text) {
			pieces = append(pieces, Piece{Range: api.Offsets{Start: start, End: len(text)}})
		}
		return pieces, nil
	})
}
