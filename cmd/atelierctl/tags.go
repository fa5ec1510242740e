// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/atelier/internal/bootstrap"
	"github.com/tomtom215/atelier/internal/catalog"
	"github.com/tomtom215/atelier/internal/embedding"
	"github.com/tomtom215/atelier/internal/logging"
)

func newTagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Tag maintenance",
	}

	consolidate := &cobra.Command{
		Use:   "consolidate",
		Short: "Write an alias CSV folding rare tags into similar common ones",
		Long: `Embeds every catalog tag with the configured provider. A tag used by
fewer than --min-count items is mapped to the most similar tag at or above
--min-count when their cosine similarity reaches --threshold.

Point catalog.aliases_path at the output to apply it.`,
		Args: cobra.NoArgs,
		RunE: runTagsConsolidate,
	}
	consolidate.Flags().Int("min-count", 5, "items a tag needs to be a root")
	consolidate.Flags().Float64("threshold", catalog.DefaultSynonymThreshold, "minimum cosine similarity")
	consolidate.Flags().String("out", "", "output CSV (default: stdout)")
	cmd.AddCommand(consolidate)
	return cmd
}

func runTagsConsolidate(cmd *cobra.Command, _ []string) error {
	minCount, _ := cmd.Flags().GetInt("min-count")      //nolint:errcheck // registered flag
	threshold, _ := cmd.Flags().GetFloat64("threshold") //nolint:errcheck // registered flag
	outPath, _ := cmd.Flags().GetString("out")          //nolint:errcheck // registered flag

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// Aliases are computed over raw tags.
	cfg.Catalog.AliasesPath = ""

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cat, err := bootstrap.LoadCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	e, closeEmbedder, err := bootstrap.BuildEmbedder(cfg, logging.Logger())
	if err != nil {
		return err
	}
	defer closeEmbedder()
	if e == nil {
		return errors.New("tags consolidate needs an embedding provider")
	}

	vectors, err := embedding.Lookup(ctx, e, cat.TagNames())
	if err != nil {
		return err
	}
	aliases, err := catalog.ConsolidateTags(ctx, cat.TagCounts(), vectors, catalog.ConsolidateOptions{
		MinCount:  minCount,
		Threshold: threshold,
	})
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if outPath != "" {
		f, err := os.Create(outPath) //nolint:gosec // operator-chosen output path
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }() //nolint:errcheck // closed explicitly below on success
		w = f
	}
	if err := catalog.WriteAliases(w, aliases); err != nil {
		return err
	}
	if f, ok := w.(*os.File); ok && outPath != "" {
		if err := f.Close(); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d tags folded\n", len(aliases), len(cat.TagNames()))
	return nil
}
