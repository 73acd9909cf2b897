package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"brainrotMarket/internal/catalog"
)

var seedDryRun bool

var seedCmd = &cobra.Command{
	Use:   "seed <catalog.yaml>",
	Short: "Upsert mutations, traits and items from a YAML catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "validate the file without writing")
}

func runSeed(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	seed, err := catalog.LoadSeed(f)
	if err != nil {
		return err
	}
	if seedDryRun {
		mutations, traits, items, err := seed.Build()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d mutations, %d traits, %d items\n",
			args[0], len(mutations), len(traits), len(items))
		return nil
	}

	ctx := cmd.Context()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	res, err := seed.Apply(ctx, e.store)
	if err != nil {
		e.logger.Error(ctx, err, "Catalog seed failed")
		return err
	}
	e.logger.Info(ctx, "Catalog seeded", map[string]interface{}{
		"file":      args[0],
		"mutations": res.Mutations,
		"traits":    res.Traits,
		"items":     res.Items,
	})
	return nil
}
