package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/szibis/spamsketch/internal/compression"
	"github.com/szibis/spamsketch/internal/corpus"
	"github.com/szibis/spamsketch/internal/logging"
)

func newGenerateCmd() *cobra.Command {
	opts := corpus.DefaultGenerateOptions()
	var level int
	cmd := &cobra.Command{
		Use:   "generate <output>",
		Short: "Write a synthetic labelled corpus",
		Long: `Write a deterministic synthetic corpus in the label<TAB>body format. The
output is compressed when its name ends in .gz or .zst.`,
		Example: `  spamsketch generate data/synthetic.txt.zst --emails 50000 --spam-ratio 0.3`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			emails, err := corpus.Generate(opts)
			if err != nil {
				return err
			}
			path := args[0]
			cfg := compression.Config{Type: compression.FromPath(path), Level: compression.Level(level)}
			if err := corpus.Write(path, emails, cfg); err != nil {
				return err
			}
			logging.Info("synthetic corpus written", logging.F(
				"path", path,
				"emails", len(emails),
				"compression", string(cfg.Type),
			))
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d emails to %s\n", len(emails), path)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&opts.Emails, "emails", "n", opts.Emails, "number of emails")
	f.Float64Var(&opts.SpamRatio, "spam-ratio", opts.SpamRatio, "share of spam emails")
	f.IntVar(&opts.Words, "words", opts.Words, "words per email")
	f.Float64Var(&opts.Shared, "shared", opts.Shared, "probability a word comes from the shared vocabulary")
	f.BoolVar(&opts.Rare, "rare", opts.Rare, "append a unique token to every email")
	f.Uint64Var(&opts.Seed, "seed", opts.Seed, "random seed")
	f.IntVar(&level, "level", 0, "compression level (0 default, 1 fastest, 9 best)")
	return cmd
}
