// Package models defines the contracts shared by every subword algorithm:
// a Model maps between token strings and ids and tokenizes one pre-split
// sequence, a Trainer fits a Model to a word-frequency corpus. The concrete
// algorithms live in the bpe, unigram, wordpiece and wordlevel subpackages.
package models

import "github.com/gomlx/go-tokenizers/api"

// Model is a trained subword algorithm. A Model is always constructed
// already trained, either loaded from its serialized form or produced by a
// Trainer. Its state is owned by one tokenizer at a time and immutable
// except through retraining.
type Model interface {
	// Tokenize splits one pre-tokenized sequence into tokens with byte
	// offsets into the sequence.
	Tokenize(sequence string) ([]api.Token, error)
	// TokenToID looks a token up, reporting misses instead of failing.
	TokenToID(token string) (int, bool)
	// IDToToken is the reverse lookup.
	IDToToken(id int) (string, bool)
	// Vocab returns a copy of the token-to-id table.
	Vocab() map[string]int
	// VocabSize returns the number of entries in the vocabulary.
	VocabSize() int
	// Save writes the model's canonical on-disk files into dir, optionally
	// prefixing their names, and returns the written paths.
	Save(dir, prefix string, pretty bool) ([]string, error)
}

// Trainer fits a model to a frequency-weighted word list. Pre-tokenization
// has already happened: the keys are words, not sentences. For a fixed word
// list and configuration the result is bit-reproducible.
type Trainer interface {
	// Train builds a trained model from the word frequencies.
	Train(words map[string]int) (Model, error)
	// SpecialTokens lists the tokens guaranteed an id regardless of
	// frequency, in the order they were configured.
	SpecialTokens() []api.AddedToken
}
