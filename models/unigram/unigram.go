// Package unigram implements the unigram language-model tokenizer: every
// vocabulary piece carries a log probability and a sequence is segmented
// into the most probable sequence of pieces with a Viterbi pass.
package unigram

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/models"
)

// unkPenalty is subtracted from the lowest vocabulary score to price
// unknown characters during the Viterbi pass.
const unkPenalty = 10.0

// Piece is one vocabulary entry.
type Piece struct {
	Token   string
	LogProb float64
}

// Config holds the optional unigram knobs.
type Config struct {
	// UnkID indexes the piece used for characters no piece covers. Nil
	// means unknown characters make Tokenize fail.
	UnkID *int

	// ByteFallback replaces unknown characters with their <0xNN> byte
	// pieces when those are present in the vocabulary.
	ByteFallback bool

	// FuseUnk merges runs of consecutive unknown characters into a
	// single unk token.
	FuseUnk bool
}

// Unigram scores segmentations with per-piece log probabilities.
type Unigram struct {
	config Config

	pieces   []Piece
	vocab    map[string]int
	minScore float64

	// maxPieceLen bounds the lattice edge search, in bytes.
	maxPieceLen int
}

var _ models.Model = &Unigram{}

// New builds a Unigram model. Pieces keep their given order, which fixes
// their ids.
func New(pieces []Piece, config Config) (*Unigram, error) {
	if len(pieces) == 0 {
		return nil, api.Errorf(api.ConfigError, "unigram vocabulary is empty")
	}
	if config.UnkID != nil && (*config.UnkID < 0 || *config.UnkID >= len(pieces)) {
		return nil, api.Errorf(api.ConfigError, "unk id %d is outside the vocabulary (%d pieces)", *config.UnkID, len(pieces))
	}
	u := &Unigram{
		config:   config,
		pieces:   pieces,
		vocab:    make(map[string]int, len(pieces)),
		minScore: math.Inf(1),
	}
	for id, piece := range pieces {
		if _, dup := u.vocab[piece.Token]; dup {
			return nil, api.Errorf(api.ConfigError, "duplicate piece %q in unigram vocabulary", piece.Token)
		}
		u.vocab[piece.Token] = id
		if piece.LogProb < u.minScore {
			u.minScore = piece.LogProb
		}
		if len(piece.Token) > u.maxPieceLen {
			u.maxPieceLen = len(piece.Token)
		}
	}
	return u, nil
}

// NewFromFile loads the unigram.json shape written by Save.
func NewFromFile(path string) (*Unigram, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, api.WrapError(api.LoadError, errors.Wrapf(err, "reading unigram vocabulary"))
	}
	var serialized struct {
		UnkID        *int              `json:"unk_id"`
		Vocab        [][2]json.RawMessage `json:"vocab"`
		ByteFallback bool              `json:"byte_fallback"`
	}
	if err := json.Unmarshal(data, &serialized); err != nil {
		return nil, api.WrapError(api.LoadError, err)
	}
	pieces := make([]Piece, len(serialized.Vocab))
	for i, entry := range serialized.Vocab {
		if err := json.Unmarshal(entry[0], &pieces[i].Token); err != nil {
			return nil, api.WrapError(api.LoadError, err)
		}
		if err := json.Unmarshal(entry[1], &pieces[i].LogProb); err != nil {
			return nil, api.WrapError(api.LoadError, err)
		}
	}
	return New(pieces, Config{UnkID: serialized.UnkID, ByteFallback: serialized.ByteFallback, FuseUnk: true})
}

// Pieces returns the vocabulary in id order. The caller must not mutate
// the returned slice.
func (u *Unigram) Pieces() []Piece { return u.pieces }

// UnkID returns the configured unknown piece id, if any.
func (u *Unigram) UnkID() *int { return u.config.UnkID }

// ByteFallback reports whether unknown characters fall back to byte
// pieces.
func (u *Unigram) ByteFallback() bool { return u.config.ByteFallback }

// latticeNode is one Viterbi backpointer: the edge ending at a byte
// position with the best accumulated score.
type latticeNode struct {
	score float64
	// start is the byte offset the winning edge begins at, -1 when the
	// position is unreachable.
	start int
	// unk marks a penalty edge covering a single unknown character.
	unk bool
}

// Tokenize implements models.Model. It runs a single Viterbi pass over
// the byte positions of sequence, considering every vocabulary piece that
// matches at each position plus a penalised single-character edge for
// unknown text.
func (u *Unigram) Tokenize(sequence string) ([]api.Token, error) {
	if sequence == "" {
		return nil, nil
	}

	unkScore := u.minScore - unkPenalty
	nodes := make([]latticeNode, len(sequence)+1)
	for i := range nodes {
		nodes[i] = latticeNode{score: math.Inf(-1), start: -1}
	}
	nodes[0] = latticeNode{score: 0, start: 0}

	for start := 0; start < len(sequence); start++ {
		if nodes[start].start < 0 {
			continue
		}
		base := nodes[start].score
		limit := start + u.maxPieceLen
		if limit > len(sequence) {
			limit = len(sequence)
		}
		matched := false
		for end := start + 1; end <= limit; end++ {
			id, ok := u.vocab[sequence[start:end]]
			if !ok {
				continue
			}
			matched = true
			score := base + u.pieces[id].LogProb
			if score > nodes[end].score {
				nodes[end] = latticeNode{score: score, start: start}
			}
		}
		// A penalty edge keeps the lattice connected over characters no
		// piece covers.
		if _, size := utf8.DecodeRuneInString(sequence[start:]); size > 0 {
			end := start + size
			score := base + unkScore
			if !matched && score > nodes[end].score {
				nodes[end] = latticeNode{score: score, start: start, unk: true}
			}
		}
	}

	if nodes[len(sequence)].start < 0 {
		return nil, api.Errorf(api.EncodingError, "no unigram segmentation covers %q", sequence)
	}

	// Walk the backpointers, then reverse.
	type edge struct {
		start, end int
		unk        bool
	}
	var edges []edge
	for pos := len(sequence); pos > 0; {
		node := nodes[pos]
		edges = append(edges, edge{start: node.start, end: pos, unk: node.unk})
		pos = node.start
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}

	tokens := make([]api.Token, 0, len(edges))
	for i := 0; i < len(edges); i++ {
		e := edges[i]
		piece := sequence[e.start:e.end]
		if !e.unk {
			tokens = append(tokens, api.Token{
				ID:      u.vocab[piece],
				Value:   piece,
				Offsets: api.Offsets{Start: e.start, End: e.end},
			})
			continue
		}
		if u.config.ByteFallback {
			byteTokens, ok := u.byteFallbackTokens(piece, e.start)
			if ok {
				tokens = append(tokens, byteTokens...)
				continue
			}
		}
		if u.config.UnkID == nil {
			return nil, api.Errorf(api.EncodingError, "unknown character %q and no unk piece configured", piece)
		}
		if u.config.FuseUnk {
			// Extend over the following unknown edges.
			end := e.end
			for i+1 < len(edges) && edges[i+1].unk {
				i++
				end = edges[i].end
			}
			piece = sequence[e.start:end]
			e.end = end
		}
		tokens = append(tokens, api.Token{
			ID:      *u.config.UnkID,
			Value:   piece,
			Offsets: api.Offsets{Start: e.start, End: e.end},
		})
	}
	return tokens, nil
}

// byteFallbackTokens maps every byte of piece to its <0xNN> vocabulary
// entry. It reports false when any byte piece is missing, in which case
// the caller falls back to the unk token.
func (u *Unigram) byteFallbackTokens(piece string, start int) ([]api.Token, bool) {
	tokens := make([]api.Token, 0, len(piece))
	for i := 0; i < len(piece); i++ {
		name := fmt.Sprintf("<0x%02X>", piece[i])
		id, ok := u.vocab[name]
		if !ok {
			return nil, false
		}
		tokens = append(tokens, api.Token{
			ID:      id,
			Value:   name,
			Offsets: api.Offsets{Start: start, End: start + len(piece)},
		})
	}
	return tokens, true
}

// TokenToID implements models.Model.
func (u *Unigram) TokenToID(token string) (int, bool) {
	id, ok := u.vocab[token]
	return id, ok
}

// IDToToken implements models.Model.
func (u *Unigram) IDToToken(id int) (string, bool) {
	if id < 0 || id >= len(u.pieces) {
		return "", false
	}
	return u.pieces[id].Token, true
}

// Vocab implements models.Model.
func (u *Unigram) Vocab() map[string]int {
	out := make(map[string]int, len(u.vocab))
	for k, v := range u.vocab {
		out[k] = v
	}
	return out
}

// VocabSize implements models.Model.
func (u *Unigram) VocabSize() int { return len(u.pieces) }

// Save writes unigram.json: the piece list in id order plus the unk id.
func (u *Unigram) Save(dir, prefix string, pretty bool) ([]string, error) {
	name := "unigram.json"
	if prefix != "" {
		name = prefix + "-" + name
	}
	path := filepath.Join(dir, name)

	vocab := make([][2]any, len(u.pieces))
	for i, piece := range u.pieces {
		vocab[i] = [2]any{piece.Token, piece.LogProb}
	}
	serialized := map[string]any{
		"unk_id":        u.config.UnkID,
		"vocab":         vocab,
		"byte_fallback": u.config.ByteFallback,
	}
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(serialized, "", "  ")
	} else {
		data, err = json.Marshal(serialized)
	}
	if err != nil {
		return nil, api.WrapError(api.SaveError, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, api.WrapError(api.SaveError, errors.Wrapf(err, "writing %q", path))
	}
	return []string{path}, nil
}
