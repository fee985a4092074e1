package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gomlx/go-tokenizers/tokenizer"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Summarize a serialized tokenizer's pipeline",
		Args:  cobra.NoArgs,
		RunE:  runInspect,
	}
}

// stageType pulls the "type" tag out of one pipeline section.
func stageType(raw json.RawMessage) string {
	if raw == nil {
		return "(none)"
	}
	var tagged struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tagged); err != nil || tagged.Type == "" {
		return "(unknown)"
	}
	return tagged.Type
}

func runInspect(cmd *cobra.Command, _ []string) error {
	path := cfg.GetString("tokenizer")
	if path == "" {
		return fmt.Errorf("no tokenizer file given, use --tokenizer")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var sections struct {
		Version       string          `json:"version"`
		Normalizer    json.RawMessage `json:"normalizer"`
		PreTokenizer  json.RawMessage `json:"pre_tokenizer"`
		PostProcessor json.RawMessage `json:"post_processor"`
		Decoder       json.RawMessage `json:"decoder"`
		Model         json.RawMessage `json:"model"`
	}
	if err := json.Unmarshal(data, &sections); err != nil {
		return err
	}

	tok, err := tokenizer.FromBytes(data)
	if err != nil {
		return err
	}
	defer tok.Close()

	rows := []string{
		summaryTitle.Render(path),
		summaryKey.Render("version        ") + sections.Version,
		summaryKey.Render("model          ") + stageType(sections.Model),
		summaryKey.Render("normalizer     ") + stageType(sections.Normalizer),
		summaryKey.Render("pre-tokenizer  ") + stageType(sections.PreTokenizer),
		summaryKey.Render("post-processor ") + stageType(sections.PostProcessor),
		summaryKey.Render("decoder        ") + stageType(sections.Decoder),
		summaryKey.Render("vocab size     ") + fmt.Sprint(tok.VocabSize(true)),
		summaryKey.Render("added tokens   ") + fmt.Sprint(tok.Added().Len()),
	}
	fmt.Fprintln(cmd.OutOrStdout(), summaryBox.Render(strings.Join(rows, "\n")))
	return nil
}
