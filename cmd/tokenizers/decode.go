package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gomlx/go-tokenizers/tokenizer"
)

func newDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode [ids...]",
		Short: "Decode token ids back to text",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDecode,
	}
	cmd.Flags().Bool("skip-special", true, "drop special tokens from the output")
	return cmd
}

func runDecode(cmd *cobra.Command, args []string) error {
	path := cfg.GetString("tokenizer")
	if path == "" {
		return fmt.Errorf("no tokenizer file given, use --tokenizer")
	}
	skipSpecial, _ := cmd.Flags().GetBool("skip-special")

	ids := make([]int, len(args))
	for i, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("bad token id %q: %w", arg, err)
		}
		ids[i] = id
	}

	tok, err := tokenizer.FromFile(path)
	if err != nil {
		return err
	}
	defer tok.Close()

	text, err := tok.Decode(ids, skipSpecial)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
