package bpe

import (
	"sort"
	"strings"
	"unicode/utf8"

	"k8s.io/klog/v2"

	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/models"
)

// TrainerConfig configures BPE training.
type TrainerConfig struct {
	// VocabSize is the target vocabulary size, alphabet and specials
	// included. Defaults to 30000.
	VocabSize int
	// MinFrequency is the minimum pair count for a merge to be considered.
	MinFrequency int
	// SpecialTokens receive the first ids, in order, regardless of corpus
	// frequency.
	SpecialTokens []api.AddedToken
	// LimitAlphabet caps the number of distinct initial characters kept,
	// most frequent first. Zero keeps all of them.
	LimitAlphabet int
	// InitialAlphabet forces characters into the alphabet even when the
	// corpus never contains them.
	InitialAlphabet []rune
	// MaxTokenLength skips merges whose result exceeds this many
	// characters. Zero disables the limit.
	MaxTokenLength int
	// Model carries the configuration of the trained model (unk token,
	// subword prefix, end-of-word suffix, ...).
	Model Config
}

// Trainer fits a BPE model by iterative most-frequent-pair merging.
// Tie-breaks are total-ordered (count, then pair lexicographically), so a
// fixed corpus and configuration reproduce the exact same merge list.
type Trainer struct {
	config TrainerConfig
}

var _ models.Trainer = &Trainer{}

// NewTrainer returns a trainer for the given configuration.
func NewTrainer(config TrainerConfig) *Trainer {
	if config.VocabSize <= 0 {
		config.VocabSize = 30000
	}
	return &Trainer{config: config}
}

// SpecialTokens implements models.Trainer.
func (t *Trainer) SpecialTokens() []api.AddedToken {
	return append([]api.AddedToken(nil), t.config.SpecialTokens...)
}

// Train implements models.Trainer.
func (t *Trainer) Train(words map[string]int) (models.Model, error) {
	return t.TrainModel(words)
}

// trainWord is one corpus word as its current symbol sequence.
type trainWord struct {
	syms []string
	freq int
}

// TrainModel runs the merge loop and returns the concrete model. The
// wordpiece trainer reuses this to build its vocabulary.
func (t *Trainer) TrainModel(words map[string]int) (*BPE, error) {
	if len(words) == 0 {
		return nil, api.Errorf(api.TrainingError, "empty training corpus")
	}
	cfg := t.config
	prefix := cfg.Model.ContinuingSubwordPrefix
	suffix := cfg.Model.EndOfWordSuffix

	wordList := make([]string, 0, len(words))
	for w := range words {
		wordList = append(wordList, w)
	}
	sort.Strings(wordList)

	vocab := make(map[string]int)
	addToken := func(token string) {
		if _, ok := vocab[token]; !ok {
			vocab[token] = len(vocab)
		}
	}
	for _, special := range cfg.SpecialTokens {
		addToken(special.Content)
	}
	for _, c := range t.alphabet(wordList, words) {
		addToken(string(c))
	}

	// Build the symbol sequences, registering marked variants as they
	// appear.
	tws := make([]trainWord, len(wordList))
	for i, w := range wordList {
		runes := []rune(w)
		syms := make([]string, len(runes))
		for j, r := range runes {
			s := string(r)
			if j > 0 && prefix != "" {
				s = prefix + s
			}
			if j == len(runes)-1 && suffix != "" {
				s += suffix
			}
			addToken(s)
			syms[j] = s
		}
		tws[i] = trainWord{syms: syms, freq: words[w]}
	}

	pairCounts := make(map[Pair]int)
	pairWords := make(map[Pair]map[int]struct{})
	adjust := func(idx, sign int) {
		w := &tws[idx]
		for j := 0; j+1 < len(w.syms); j++ {
			p := Pair{Left: w.syms[j], Right: w.syms[j+1]}
			pairCounts[p] += sign * w.freq
			if sign > 0 {
				set, ok := pairWords[p]
				if !ok {
					set = make(map[int]struct{})
					pairWords[p] = set
				}
				set[idx] = struct{}{}
			}
		}
	}
	for i := range tws {
		adjust(i, 1)
	}

	minFrequency := cfg.MinFrequency
	if minFrequency < 1 {
		minFrequency = 1
	}
	klog.V(1).Infof("bpe: training on %d distinct words, target vocab %d", len(wordList), cfg.VocabSize)

	oversized := make(map[Pair]bool)
	var merges []Pair
	for len(vocab) < cfg.VocabSize {
		best, count := selectBestPair(pairCounts, oversized)
		if count < minFrequency {
			break
		}
		merged := best.Left + strings.TrimPrefix(best.Right, prefix)
		if cfg.MaxTokenLength > 0 && utf8.RuneCountInString(strings.TrimSuffix(strings.TrimPrefix(merged, prefix), suffix)) > cfg.MaxTokenLength {
			oversized[best] = true
			continue
		}

		addToken(merged)
		merges = append(merges, best)

		affected := make([]int, 0, len(pairWords[best]))
		for idx := range pairWords[best] {
			affected = append(affected, idx)
		}
		sort.Ints(affected)
		for _, idx := range affected {
			adjust(idx, -1)
			tws[idx].syms = mergeSymbols(tws[idx].syms, best, merged)
			adjust(idx, 1)
		}
		delete(pairCounts, best)
		delete(pairWords, best)

		if len(merges)%1000 == 0 {
			klog.V(1).Infof("bpe: %d merges, vocab %d", len(merges), len(vocab))
		}
	}
	klog.V(1).Infof("bpe: done, %d merges, vocab %d", len(merges), len(vocab))

	return New(vocab, merges, cfg.Model)
}

// alphabet returns the kept initial characters, sorted, after applying the
// frequency cap.
func (t *Trainer) alphabet(wordList []string, words map[string]int) []rune {
	freq := make(map[rune]int)
	for _, w := range wordList {
		for _, r := range w {
			freq[r] += words[w]
		}
	}
	for _, r := range t.config.InitialAlphabet {
		if _, ok := freq[r]; !ok {
			freq[r] = int(^uint(0) >> 1)
		}
	}
	kept := make([]rune, 0, len(freq))
	for r := range freq {
		kept = append(kept, r)
	}
	if limit := t.config.LimitAlphabet; limit > 0 && len(kept) > limit {
		sort.Slice(kept, func(i, j int) bool {
			if freq[kept[i]] != freq[kept[j]] {
				return freq[kept[i]] > freq[kept[j]]
			}
			return kept[i] < kept[j]
		})
		kept = kept[:limit]
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i] < kept[j] })
	return kept
}

// selectBestPair picks the highest-count pair, breaking count ties by pair
// order (left, then right) so selection never depends on map iteration.
func selectBestPair(pairCounts map[Pair]int, skip map[Pair]bool) (Pair, int) {
	var best Pair
	bestCount := 0
	for p, c := range pairCounts {
		if c <= 0 || skip[p] {
			continue
		}
		if c > bestCount {
			best, bestCount = p, c
			continue
		}
		if c == bestCount && (p.Left < best.Left || (p.Left == best.Left && p.Right < best.Right)) {
			best = p
		}
	}
	return best, bestCount
}

// mergeSymbols replaces every occurrence of the pair in the symbol
// sequence.
func mergeSymbols(syms []string, pair Pair, merged string) []string {
	out := make([]string, 0, len(syms))
	for i := 0; i < len(syms); i++ {
		if i+1 < len(syms) && syms[i] == pair.Left && syms[i+1] == pair.Right {
			out = append(out, merged)
			i++
			continue
		}
		out = append(out, syms[i])
	}
	return out
}
