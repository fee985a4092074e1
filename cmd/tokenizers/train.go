package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/corpus"
	"github.com/gomlx/go-tokenizers/decoders"
	"github.com/gomlx/go-tokenizers/models"
	"github.com/gomlx/go-tokenizers/models/bpe"
	"github.com/gomlx/go-tokenizers/models/unigram"
	"github.com/gomlx/go-tokenizers/models/wordlevel"
	"github.com/gomlx/go-tokenizers/models/wordpiece"
	"github.com/gomlx/go-tokenizers/normalizers"
	"github.com/gomlx/go-tokenizers/pretokenizers"
	"github.com/gomlx/go-tokenizers/tokenizer"
)

var (
	summaryBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2)
	summaryTitle = lipgloss.NewStyle().Bold(true)
	summaryKey   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train [corpus files...]",
		Short: "Train a tokenizer from text or parquet corpora",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runTrain,
	}
	cmd.Flags().String("model", "bpe", "model kind: bpe, wordpiece, unigram or wordlevel")
	cmd.Flags().Int("vocab-size", 0, "target vocabulary size (model-specific default when 0)")
	cmd.Flags().Int("min-frequency", 0, "drop words seen fewer times than this")
	cmd.Flags().StringSlice("special-tokens", nil, "special tokens to reserve ids for")
	cmd.Flags().String("output", "tokenizer.json", "where to write the trained tokenizer")
	cmd.Flags().Bool("pretty", true, "indent the saved configuration")
	cmd.Flags().String("parquet-column", "text", "column read from parquet corpora")
	return cmd
}

func runTrain(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("model")
	vocabSize, _ := cmd.Flags().GetInt("vocab-size")
	minFrequency, _ := cmd.Flags().GetInt("min-frequency")
	specialNames, _ := cmd.Flags().GetStringSlice("special-tokens")
	output, _ := cmd.Flags().GetString("output")
	pretty, _ := cmd.Flags().GetBool("pretty")
	parquetColumn, _ := cmd.Flags().GetString("parquet-column")

	specials := make([]api.AddedToken, len(specialNames))
	for i, name := range specialNames {
		specials[i] = api.NewSpecialToken(name)
	}

	tok, trainer, err := pipelineFor(kind, vocabSize, minFrequency, specials)
	if err != nil {
		return err
	}
	defer tok.Close()

	sources := make([]corpus.Source, 0, len(args))
	defer func() {
		for _, s := range sources {
			_ = s.Close()
		}
	}()
	for _, path := range args {
		var source corpus.Source
		if strings.HasSuffix(path, ".parquet") {
			source, err = corpus.NewParquetFile(path, parquetColumn)
		} else {
			source, err = corpus.NewTextFile(path)
		}
		if err != nil {
			return err
		}
		sources = append(sources, source)
	}

	start := time.Now()
	if err := tok.Train(cmd.Context(), trainer, sources...); err != nil {
		return err
	}
	if err := tok.Save(output, pretty); err != nil {
		return err
	}

	rows := []string{
		summaryTitle.Render("Training complete"),
		summaryKey.Render("model        ") + kind,
		summaryKey.Render("vocab size   ") + fmt.Sprint(tok.VocabSize(true)),
		summaryKey.Render("special toks ") + fmt.Sprint(len(specials)),
		summaryKey.Render("corpora      ") + fmt.Sprint(len(sources)),
		summaryKey.Render("elapsed      ") + time.Since(start).Round(time.Millisecond).String(),
		summaryKey.Render("written to   ") + output,
	}
	fmt.Fprintln(cmd.OutOrStdout(), summaryBox.Render(strings.Join(rows, "\n")))
	return nil
}

// pipelineFor assembles the standard pipeline and trainer for a model
// kind. The stages mirror the usual pairings: BERT-style normalization
// with WordPiece, metaspace with unigram, whitespace splitting with BPE
// and word-level.
func pipelineFor(kind string, vocabSize, minFrequency int, specials []api.AddedToken) (*tokenizer.Tokenizer, models.Trainer, error) {
	switch kind {
	case "bpe":
		trainer := bpe.NewTrainer(bpe.TrainerConfig{
			VocabSize:     vocabSize,
			MinFrequency:  minFrequency,
			SpecialTokens: specials,
		})
		tok := tokenizer.New(nil).
			WithPreTokenizer(pretokenizers.NewWhitespace()).
			WithDecoder(decoders.NewBPEDecoder(""))
		return tok, trainer, nil
	case "wordpiece":
		trainer := wordpiece.NewTrainer(wordpiece.TrainerConfig{
			VocabSize:     vocabSize,
			MinFrequency:  minFrequency,
			SpecialTokens: specials,
		})
		tok := tokenizer.New(nil).
			WithNormalizer(normalizers.NewBert()).
			WithPreTokenizer(pretokenizers.NewBert()).
			WithDecoder(decoders.NewWordPiece())
		return tok, trainer, nil
	case "unigram":
		trainer := unigram.NewTrainer(unigram.TrainerConfig{
			VocabSize:     vocabSize,
			SpecialTokens: specials,
			UnkToken:      "<unk>",
		})
		metaspace, err := pretokenizers.NewMetaspace(pretokenizers.DefaultMetaspaceReplacement, pretokenizers.PrependAlways, true)
		if err != nil {
			return nil, nil, err
		}
		tok := tokenizer.New(nil).
			WithPreTokenizer(metaspace).
			WithDecoder(decoders.NewMetaspace())
		return tok, trainer, nil
	case "wordlevel":
		trainer := wordlevel.NewTrainer(wordlevel.TrainerConfig{
			VocabSize:     vocabSize,
			MinFrequency:  minFrequency,
			SpecialTokens: specials,
			UnkToken:      "<unk>",
		})
		tok := tokenizer.New(nil).
			WithPreTokenizer(pretokenizers.NewWhitespace())
		return tok, trainer, nil
	}
	return nil, nil, fmt.Errorf("unknown model kind %q", kind)
}
