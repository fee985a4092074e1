package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gomlx/go-tokenizers/api"
	"github.com/gomlx/go-tokenizers/arena"
	"github.com/gomlx/go-tokenizers/tokenizer"
)

// tokenizerArena mirrors how embedders drive the library through opaque
// handles; the CLI exercises the same path.
var tokenizerArena = arena.New[*tokenizer.Tokenizer]()

func newEncodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode [text...]",
		Short: "Encode text with a trained tokenizer",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runEncode,
	}
	cmd.Flags().Bool("add-special", true, "wrap with the configured special tokens")
	cmd.Flags().String("pair", "", "second sequence, encoded as a pair with the first argument")
	return cmd
}

func runEncode(cmd *cobra.Command, args []string) error {
	path := cfg.GetString("tokenizer")
	if path == "" {
		return fmt.Errorf("no tokenizer file given, use --tokenizer")
	}
	addSpecial, _ := cmd.Flags().GetBool("add-special")
	pair, _ := cmd.Flags().GetString("pair")

	tok, err := tokenizer.FromFile(path)
	if err != nil {
		return err
	}
	handle := tokenizerArena.Register(tok)
	defer func() { _ = tokenizerArena.Release(handle) }()

	for _, text := range args {
		tok, err := tokenizerArena.Get(handle)
		if err != nil {
			return err
		}
		var encoding *api.Encoding
		if pair != "" {
			encoding, err = tok.EncodePair(text, pair, addSpecial)
		} else {
			encoding, err = tok.Encode(text, addSpecial)
		}
		if err != nil {
			return err
		}
		printEncoding(cmd, text, encoding)
	}
	return nil
}

func printEncoding(cmd *cobra.Command, text string, encoding *api.Encoding) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "input: %s\n", text)

	ids := make([]string, encoding.Len())
	for i, id := range encoding.IDs {
		ids[i] = fmt.Sprint(id)
	}
	fmt.Fprintf(out, "  ids:     %s\n", strings.Join(ids, " "))
	fmt.Fprintf(out, "  tokens:  %s\n", strings.Join(encoding.Tokens, " "))

	spans := make([]string, len(encoding.Offsets))
	for i, off := range encoding.Offsets {
		spans[i] = fmt.Sprintf("%d:%d", off.Start, off.End)
	}
	fmt.Fprintf(out, "  offsets: %s\n", strings.Join(spans, " "))
	if len(encoding.Overflowing) > 0 {
		fmt.Fprintf(out, "  overflow windows: %d\n", len(encoding.Overflowing))
	}
}
