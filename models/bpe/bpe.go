// Package bpe implements the byte-pair-encoding model: tokenization by
// iteratively applying ranked merge rules, and training by iterative
// most-frequent-pair merging over a word-frequency corpus.
package bpe

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/models"
)

// Pair is one merge rule: Left and Right combine into one token. Rules are
// ranked by their position in the merge list; lower rank applies first.
type Pair struct {
	Left  string
	Right string
}

type mergeInfo struct {
	rank   int
	merged string
}

// Config carries the optional knobs of a BPE model.
type Config struct {
	// Dropout in (0, 1] probabilistically skips merges while tokenizing,
	// the BPE-dropout regularization. Zero disables it.
	Dropout float64
	// DropoutSeed makes dropout reproducible. Unseeded dropout is not
	// required to be reproducible.
	DropoutSeed *int64
	// UnkToken substitutes for characters with no vocabulary entry.
	UnkToken string
	// FuseUnk collapses runs of unknown characters into one unk token.
	FuseUnk bool
	// ByteFallback emits <0xNN> tokens for unmappable bytes when the
	// vocabulary carries them.
	ByteFallback bool
	// ContinuingSubwordPrefix marks non-initial symbols (WordPiece-style
	// boundary marking, e.g. "##").
	ContinuingSubwordPrefix string
	// EndOfWordSuffix marks the final symbol of each word (e.g. "</w>").
	EndOfWordSuffix string
	// CacheCapacity bounds the word-to-tokens cache. Zero uses the default.
	CacheCapacity int
}

const defaultCacheCapacity = 10000

// BPE is a trained byte-pair-encoding model.
type BPE struct {
	config Config

	vocab  map[string]int
	vocabR map[int]string
	merges map[Pair]mergeInfo
	order  []Pair

	cache *lru.Cache

	// rng is the seeded dropout source, guarded by rngMu so concurrent
	// Tokenize calls stay safe. nil means unseeded dropout, which draws
	// from the global locked source instead.
	rngMu sync.Mutex
	rng   *rand.Rand
}

var _ models.Model = &BPE{}

// New builds a BPE model from an explicit vocabulary and ordered merge
// list. Every merge part and every merged result must resolve to a
// vocabulary entry.
func New(vocab map[string]int, merges []Pair, config Config) (*BPE, error) {
	if config.Dropout < 0 || config.Dropout > 1 {
		return nil, api.Errorf(api.ConfigError, "bpe dropout must be in [0, 1], got %v", config.Dropout)
	}
	b := &BPE{
		config: config,
		vocab:  make(map[string]int, len(vocab)),
		vocabR: make(map[int]string, len(vocab)),
		merges: make(map[Pair]mergeInfo, len(merges)),
		order:  append([]Pair(nil), merges...),
	}
	for token, id := range vocab {
		b.vocab[token] = id
		b.vocabR[id] = token
	}
	for rank, pair := range merges {
		if _, ok := b.vocab[pair.Left]; !ok {
			return nil, api.WrapError(api.ConfigError, errors.Errorf("merge %d refers to unknown token %q", rank, pair.Left))
		}
		if _, ok := b.vocab[pair.Right]; !ok {
			return nil, api.WrapError(api.ConfigError, errors.Errorf("merge %d refers to unknown token %q", rank, pair.Right))
		}
		merged := pair.Left + strings.TrimPrefix(pair.Right, config.ContinuingSubwordPrefix)
		if _, ok := b.vocab[merged]; !ok {
			return nil, api.WrapError(api.ConfigError, errors.Errorf("merge %d produces token %q missing from the vocabulary", rank, merged))
		}
		b.merges[pair] = mergeInfo{rank: rank, merged: merged}
	}
	capacity := config.CacheCapacity
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	cache, err := lru.New(capacity)
	if err != nil {
		return nil, api.WrapError(api.ConfigError, err)
	}
	b.cache = cache
	if config.Dropout > 0 && config.DropoutSeed != nil {
		b.rng = rand.New(rand.NewSource(*config.DropoutSeed))
	}
	return b, nil
}

// Merges returns the ordered merge list.
func (b *BPE) Merges() []Pair { return append([]Pair(nil), b.order...) }

// Options returns the model configuration.
func (b *BPE) Options() Config { return b.config }

// dropRoll returns one uniform draw for merge dropout.
func (b *BPE) dropRoll() float64 {
	if b.rng == nil {
		return rand.Float64()
	}
	b.rngMu.Lock()
	v := b.rng.Float64()
	b.rngMu.Unlock()
	return v
}

// symbol is one unit of the working sequence during tokenization.
type symbol struct {
	val        string
	start, end int
}

func (b *BPE) splitIntoSymbols(sequence string) []symbol {
	var symbols []symbol
	for i, r := range sequence {
		symbols = append(symbols, symbol{val: string(r), start: i, end: i + len(string(r))})
	}
	for i := range symbols {
		if i > 0 && b.config.ContinuingSubwordPrefix != "" {
			symbols[i].val = b.config.ContinuingSubwordPrefix + symbols[i].val
		}
		if i == len(symbols)-1 && b.config.EndOfWordSuffix != "" {
			symbols[i].val += b.config.EndOfWordSuffix
		}
	}
	return symbols
}

// Tokenize implements models.Model: applies the lowest-rank applicable
// merge until no merge applies, then maps symbols to ids.
func (b *BPE) Tokenize(sequence string) ([]api.Token, error) {
	if sequence == "" {
		return nil, nil
	}
	useCache := b.config.Dropout == 0
	if useCache {
		if cached, ok := b.cache.Get(sequence); ok {
			return append([]api.Token(nil), cached.([]api.Token)...), nil
		}
	}

	symbols := b.splitIntoSymbols(sequence)
	for len(symbols) > 1 {
		bestIdx := -1
		bestRank := -1
		for i := 0; i < len(symbols)-1; i++ {
			info, ok := b.merges[Pair{Left: symbols[i].val, Right: symbols[i+1].val}]
			if !ok {
				continue
			}
			if b.config.Dropout > 0 && b.dropRoll() < b.config.Dropout {
				continue
			}
			if bestRank == -1 || info.rank < bestRank {
				bestRank = info.rank
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			break
		}
		left, right := symbols[bestIdx], symbols[bestIdx+1]
		merged := b.merges[Pair{Left: left.val, Right: right.val}].merged
		symbols[bestIdx] = symbol{val: merged, start: left.start, end: right.end}
		symbols = append(symbols[:bestIdx+1], symbols[bestIdx+2:]...)
	}

	tokens, err := b.symbolsToTokens(symbols, sequence)
	if err != nil {
		return nil, err
	}
	if useCache {
		b.cache.Add(sequence, append([]api.Token(nil), tokens...))
	}
	return tokens, nil
}

func (b *BPE) symbolsToTokens(symbols []symbol, sequence string) ([]api.Token, error) {
	var tokens []api.Token
	unkID, hasUnk := -1, false
	if b.config.UnkToken != "" {
		unkID, hasUnk = b.vocab[b.config.UnkToken]
	}
	for _, sym := range symbols {
		if id, ok := b.vocab[sym.val]; ok {
			tokens = append(tokens, api.Token{ID: id, Value: sym.val, Offsets: api.Offsets{Start: sym.start, End: sym.end}})
			continue
		}
		if b.config.ByteFallback {
			if fallback, ok := b.byteFallbackTokens(sym, sequence); ok {
				tokens = append(tokens, fallback...)
				continue
			}
		}
		if !hasUnk {
			return nil, api.Errorf(api.EncodingError, "no entry for %q and no unk token configured", sym.val)
		}
		if b.config.FuseUnk && len(tokens) > 0 && tokens[len(tokens)-1].ID == unkID {
			tokens[len(tokens)-1].Offsets.End = sym.end
			continue
		}
		tokens = append(tokens, api.Token{ID: unkID, Value: b.config.UnkToken, Offsets: api.Offsets{Start: sym.start, End: sym.end}})
	}
	return tokens, nil
}

// byteFallbackTokens maps every byte of the symbol's source span to its
// <0xNN> vocabulary entry, when all of them exist.
func (b *BPE) byteFallbackTokens(sym symbol, sequence string) ([]api.Token, bool) {
	raw := sequence[sym.start:sym.end]
	out := make([]api.Token, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		name := fmt.Sprintf("<0x%02X>", raw[i])
		id, ok := b.vocab[name]
		if !ok {
			return nil, false
		}
		out = append(out, api.Token{ID: id, Value: name, Offsets: api.Offsets{Start: sym.start, End: sym.end}})
	}
	return out, true
}

// TokenToID implements models.Model.
func (b *BPE) TokenToID(token string) (int, bool) {
	id, ok := b.vocab[token]
	return id, ok
}

// IDToToken implements models.Model.
func (b *BPE) IDToToken(id int) (string, bool) {
	token, ok := b.vocabR[id]
	return token, ok
}

// Vocab implements models.Model.
func (b *BPE) Vocab() map[string]int {
	out := make(map[string]int, len(b.vocab))
	for k, v := range b.vocab {
		out[k] = v
	}
	return out
}

// VocabSize implements models.Model.
func (b *BPE) VocabSize() int { return len(b.vocab) }

// Save writes vocab.json and merges.txt, the canonical BPE shape.
func (b *BPE) Save(dir, prefix string, pretty bool) ([]string, error) {
	vocabName := "vocab.json"
	mergesName := "merges.txt"
	if prefix != "" {
		vocabName = prefix + "-" + vocabName
		mergesName = prefix + "-" + mergesName
	}
	vocabPath := filepath.Join(dir, vocabName)
	mergesPath := filepath.Join(dir, mergesName)

	if err := os.WriteFile(vocabPath, marshalVocab(b.vocab, pretty), 0o644); err != nil {
		return nil, api.WrapError(api.SaveError, errors.Wrapf(err, "writing %q", vocabPath))
	}

	var sb strings.Builder
	sb.WriteString("#version: 0.2\n")
	for _, pair := range b.order {
		sb.WriteString(pair.Left)
		sb.WriteByte(' ')
		sb.WriteString(pair.Right)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(mergesPath, []byte(sb.String()), 0o644); err != nil {
		return nil, api.WrapError(api.SaveError, errors.Wrapf(err, "writing %q", mergesPath))
	}
	return []string{vocabPath, mergesPath}, nil
}

// marshalVocab writes the vocabulary ordered by id so saving is
// bit-reproducible.
func marshalVocab(vocab map[string]int, pretty bool) []byte {
	type entry struct {
		token string
		id    int
	}
	entries := make([]entry, 0, len(vocab))
	for token, id := range vocab {
		entries = append(entries, entry{token, id})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	var sb strings.Builder
	sb.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			sb.WriteByte(',')
		}
		if pretty {
			sb.WriteString("\n  ")
		}
		sb.WriteString(quoteJSON(e.token))
		sb.WriteByte(':')
		if pretty {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d", e.id)
	}
	if pretty && len(entries) > 0 {
		sb.WriteByte('\n')
	}
	sb.WriteByte('}')
	return []byte(sb.String())
}

func quoteJSON(s string) string {
	quoted, _ := json.Marshal(s)
	return string(quoted)
}
