package unigram

import (
	"math"
	"sort"
	"unicode/utf8"

	"k8s.io/klog/v2"

	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/models"
)

// TrainerConfig controls the EM training run. Zero values select the
// defaults documented on each field.
type TrainerConfig struct {
	// VocabSize is the final vocabulary size, special tokens included.
	// Defaults to 8000.
	VocabSize int

	// ShrinkingFactor is the share of candidate pieces kept after each
	// EM round. Defaults to 0.75.
	ShrinkingFactor float64

	// SpecialTokens are placed at the start of the trained vocabulary.
	SpecialTokens []api.AddedToken

	// UnkToken, when non-empty, is added to the vocabulary and wired as
	// the model's unk piece.
	UnkToken string

	// MaxPieceLength caps candidate pieces, in characters. Defaults
	// to 16.
	MaxPieceLength int

	// SeedSize caps the initial candidate set. Defaults to 1000000.
	SeedSize int

	// SubIterations is how many E/M passes run between prunings.
	// Defaults to 2.
	SubIterations int
}

// Trainer learns a unigram vocabulary with expectation-maximisation:
// seed a large candidate set from corpus substrings, iterate E/M rounds,
// and prune the worst-scoring candidates until the target size is
// reached.
type Trainer struct {
	config TrainerConfig
}

var _ models.Trainer = &Trainer{}

// NewTrainer returns a Trainer with defaults applied over config.
func NewTrainer(config TrainerConfig) *Trainer {
	if config.VocabSize == 0 {
		config.VocabSize = 8000
	}
	if config.ShrinkingFactor == 0 {
		config.ShrinkingFactor = 0.75
	}
	if config.MaxPieceLength == 0 {
		config.MaxPieceLength = 16
	}
	if config.SeedSize == 0 {
		config.SeedSize = 1_000_000
	}
	if config.SubIterations == 0 {
		config.SubIterations = 2
	}
	return &Trainer{config: config}
}

// SpecialTokens implements models.Trainer.
func (t *Trainer) SpecialTokens() []api.AddedToken { return t.config.SpecialTokens }

// candidate is a piece being trained, scored in log space.
type candidate struct {
	token    string
	logProb  float64
	required bool
}

// Train implements models.Trainer.
func (t *Trainer) Train(words map[string]int) (models.Model, error) {
	if len(words) == 0 {
		return nil, api.Errorf(api.TrainingError, "no words to train on")
	}
	wordList := make([]string, 0, len(words))
	for word := range words {
		wordList = append(wordList, word)
	}
	sort.Strings(wordList)

	candidates := t.seed(wordList, words)
	klog.V(1).Infof("unigram trainer: %d seed pieces from %d words", len(candidates), len(words))

	reserved := len(t.config.SpecialTokens)
	if t.config.UnkToken != "" && !t.hasSpecial(t.config.UnkToken) {
		reserved++
	}
	desired := t.config.VocabSize - reserved
	if desired < 1 {
		return nil, api.Errorf(api.TrainingError, "vocab size %d leaves no room beyond the %d reserved tokens", t.config.VocabSize, reserved)
	}

	for round := 0; len(candidates) > desired; round++ {
		for sub := 0; sub < t.config.SubIterations; sub++ {
			candidates = t.emStep(candidates, wordList, words)
		}
		before := len(candidates)
		candidates = t.prune(candidates, desired)
		klog.V(1).Infof("unigram trainer: round %d pruned %d -> %d pieces", round, before, len(candidates))
		if len(candidates) == before {
			break
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].logProb != candidates[j].logProb {
			return candidates[i].logProb > candidates[j].logProb
		}
		return candidates[i].token < candidates[j].token
	})

	return t.finalize(candidates)
}

// seed enumerates substrings up to MaxPieceLength characters, weights
// them by frequency times length, and keeps the best SeedSize of them.
// Every single character of the corpus is kept unconditionally so the
// lattice always has full coverage.
func (t *Trainer) seed(wordList []string, words map[string]int) []candidate {
	pieceCounts := make(map[string]int)
	required := make(map[string]bool)
	for _, word := range wordList {
		freq := words[word]
		runes := []rune(word)
		for i := 0; i < len(runes); i++ {
			required[string(runes[i])] = true
			for length := 1; length <= t.config.MaxPieceLength && i+length <= len(runes); length++ {
				pieceCounts[string(runes[i:i+length])] += freq
			}
		}
	}

	type scored struct {
		token string
		score int
	}
	ranked := make([]scored, 0, len(pieceCounts))
	for token, count := range pieceCounts {
		if required[token] {
			continue
		}
		ranked = append(ranked, scored{token, count * utf8.RuneCountInString(token)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].token < ranked[j].token
	})

	requiredList := make([]string, 0, len(required))
	for token := range required {
		requiredList = append(requiredList, token)
	}
	sort.Strings(requiredList)

	total := 0.0
	for _, count := range pieceCounts {
		total += float64(count)
	}
	logTotal := math.Log(total)

	limit := t.config.SeedSize - len(requiredList)
	if limit < 0 {
		limit = 0
	}
	if limit > len(ranked) {
		limit = len(ranked)
	}
	candidates := make([]candidate, 0, len(requiredList)+limit)
	for _, token := range requiredList {
		candidates = append(candidates, candidate{
			token:    token,
			logProb:  math.Log(float64(pieceCounts[token])) - logTotal,
			required: true,
		})
	}
	for _, s := range ranked[:limit] {
		candidates = append(candidates, candidate{
			token:   s.token,
			logProb: math.Log(float64(pieceCounts[s.token])) - logTotal,
		})
	}
	return candidates
}

// emStep runs one expectation pass (forward-backward expected piece
// counts over every word lattice) and one maximisation pass (renormalise
// the counts into log probabilities). Pieces with no expected mass are
// dropped unless required.
func (t *Trainer) emStep(candidates []candidate, wordList []string, words map[string]int) []candidate {
	ids := make(map[string]int, len(candidates))
	maxLen := 0
	for i, c := range candidates {
		ids[c.token] = i
		if len(c.token) > maxLen {
			maxLen = len(c.token)
		}
	}

	expected := make([]float64, len(candidates))
	for _, word := range wordList {
		t.accumulate(word, float64(words[word]), candidates, ids, maxLen, expected)
	}

	total := 0.0
	for _, e := range expected {
		total += e
	}
	logTotal := math.Log(total)

	out := candidates[:0]
	for i, c := range candidates {
		if expected[i] <= 0 {
			if !c.required {
				continue
			}
			// Keep coverage pieces alive at the floor of the
			// distribution.
			c.logProb = math.Log(1e-10)
		} else {
			c.logProb = math.Log(expected[i]) - logTotal
		}
		out = append(out, c)
	}
	return out
}

// accumulate adds freq-weighted expected counts for one word. Alpha and
// beta are log-space forward and backward sums over byte positions; the
// expected count of an edge is exp(alpha[start]+score+beta[end]-Z).
func (t *Trainer) accumulate(word string, freq float64, candidates []candidate, ids map[string]int, maxLen int, expected []float64) {
	n := len(word)
	alpha := make([]float64, n+1)
	beta := make([]float64, n+1)
	for i := 1; i <= n; i++ {
		alpha[i] = math.Inf(-1)
	}
	for i := 0; i < n; i++ {
		beta[i] = math.Inf(-1)
	}

	for start := 0; start < n; start++ {
		if math.IsInf(alpha[start], -1) {
			continue
		}
		limit := start + maxLen
		if limit > n {
			limit = n
		}
		for end := start + 1; end <= limit; end++ {
			id, ok := ids[word[start:end]]
			if !ok {
				continue
			}
			alpha[end] = logSumExp(alpha[end], alpha[start]+candidates[id].logProb)
		}
	}
	z := alpha[n]
	if math.IsInf(z, -1) {
		return
	}
	for end := n; end > 0; end-- {
		if math.IsInf(beta[end], -1) {
			continue
		}
		low := end - maxLen
		if low < 0 {
			low = 0
		}
		for start := end - 1; start >= low; start-- {
			id, ok := ids[word[start:end]]
			if !ok {
				continue
			}
			beta[start] = logSumExp(beta[start], candidates[id].logProb+beta[end])
		}
	}

	for start := 0; start < n; start++ {
		if math.IsInf(alpha[start], -1) {
			continue
		}
		limit := start + maxLen
		if limit > n {
			limit = n
		}
		for end := start + 1; end <= limit; end++ {
			id, ok := ids[word[start:end]]
			if !ok || math.IsInf(beta[end], -1) {
				continue
			}
			expected[id] += freq * math.Exp(alpha[start]+candidates[id].logProb+beta[end]-z)
		}
	}
}

// prune keeps the required coverage pieces plus the best-scoring share
// of the rest, shrinking towards desired.
func (t *Trainer) prune(candidates []candidate, desired int) []candidate {
	var required, optional []candidate
	for _, c := range candidates {
		if c.required {
			required = append(required, c)
		} else {
			optional = append(optional, c)
		}
	}
	sort.Slice(optional, func(i, j int) bool {
		if optional[i].logProb != optional[j].logProb {
			return optional[i].logProb > optional[j].logProb
		}
		return optional[i].token < optional[j].token
	})

	keep := int(float64(len(candidates)) * t.config.ShrinkingFactor)
	if keep < desired {
		keep = desired
	}
	keep -= len(required)
	if keep < 0 {
		keep = 0
	}
	if keep > len(optional) {
		keep = len(optional)
	}
	return append(required, optional[:keep]...)
}

func (t *Trainer) hasSpecial(token string) bool {
	for _, special := range t.config.SpecialTokens {
		if special.Content == token {
			return true
		}
	}
	return false
}

// finalize assembles the model vocabulary: special tokens first, the unk
// token among them, then the trained pieces by descending probability.
func (t *Trainer) finalize(candidates []candidate) (*Unigram, error) {
	pieces := make([]Piece, 0, len(candidates)+len(t.config.SpecialTokens)+1)
	seen := make(map[string]bool)
	var unkID *int
	add := func(token string, logProb float64) {
		if seen[token] {
			return
		}
		seen[token] = true
		if token == t.config.UnkToken && unkID == nil {
			id := len(pieces)
			unkID = &id
		}
		pieces = append(pieces, Piece{Token: token, LogProb: logProb})
	}
	for _, special := range t.config.SpecialTokens {
		add(special.Content, 0)
	}
	if t.config.UnkToken != "" {
		add(t.config.UnkToken, 0)
	}
	for _, c := range candidates {
		add(c.token, c.logProb)
	}
	return New(pieces, Config{UnkID: unkID, FuseUnk: true})
}

// logSumExp returns log(exp(a)+exp(b)) without overflow.
func logSumExp(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a < b {
		a, b = b, a
	}
	return a + math.Log1p(math.Exp(b-a))
}
