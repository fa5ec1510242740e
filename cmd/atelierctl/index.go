// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/atelier/internal/catalog"
	"github.com/tomtom215/atelier/internal/recommend/index"
)

// vectorRecord is one line of an index build input.
type vectorRecord struct {
	ID     int64     `json:"id"`
	Vector []float32 `json:"vector"`
}

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build and query flat vector indexes",
	}

	build := &cobra.Command{
		Use:   "build <vectors.jsonl> <out.idx>",
		Short: "Build an index from JSON lines of {\"id\": N, \"vector\": [...]}",
		Args:  cobra.ExactArgs(2),
		RunE:  runIndexBuild,
	}
	build.Flags().String("metric", "l2", "distance metric: l2 or ip")
	build.Flags().Bool("normalize", false, "L2-normalize vectors before indexing")
	cmd.AddCommand(build)

	search := &cobra.Command{
		Use:   "search <index.idx> <item-id>",
		Short: "Print the nearest neighbors of an indexed item",
		Args:  cobra.ExactArgs(2),
		RunE:  runIndexSearch,
	}
	search.Flags().Int("k", 10, "number of neighbors")
	search.Flags().Bool("titles", false, "resolve titles from the configured catalog")
	cmd.AddCommand(search)

	return cmd
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	metricName, _ := cmd.Flags().GetString("metric") //nolint:errcheck // registered flag
	normalize, _ := cmd.Flags().GetBool("normalize") //nolint:errcheck // registered flag

	metric, err := index.ParseMetric(metricName)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open vectors: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only file

	x, err := buildIndex(f, metric, normalize)
	if err != nil {
		return err
	}
	if err := x.SaveFile(args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d vectors of dimension %d (%s) into %s\n", x.Len(), x.Dim(), x.Metric(), args[1])
	return nil
}

// buildIndex reads vector records until EOF. The first record fixes the
// dimension.
func buildIndex(r io.Reader, metric index.Metric, normalize bool) (*index.FlatIndex, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	var x *index.FlatIndex
	for n := 1; ; n++ {
		var rec vectorRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("record %d: %w", n, err)
		}
		vec := rec.Vector
		if normalize {
			vec = index.Normalize(vec)
		}
		if x == nil {
			var err error
			if x, err = index.New(len(vec), metric); err != nil {
				return nil, fmt.Errorf("record %d: %w", n, err)
			}
		}
		if err := x.Add(rec.ID, vec); err != nil {
			return nil, fmt.Errorf("record %d: %w", n, err)
		}
	}
	if x == nil {
		return nil, errors.New("no vectors in input")
	}
	return x, nil
}

func runIndexSearch(cmd *cobra.Command, args []string) error {
	k, _ := cmd.Flags().GetInt("k")            //nolint:errcheck // registered flag
	titles, _ := cmd.Flags().GetBool("titles") //nolint:errcheck // registered flag

	var id int64
	if _, err := fmt.Sscan(args[1], &id); err != nil {
		return fmt.Errorf("invalid item id %q", args[1])
	}

	x, err := index.LoadFile(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var cat *catalog.Catalog
	if titles {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cat, err = catalog.Open(ctx, catalog.Source{
			Path:   cfg.Catalog.Path,
			Format: cfg.Catalog.Format,
			Query:  cfg.Catalog.Query,
		}, catalog.Files{}); err != nil {
			return err
		}
	}

	neighbors, err := x.SearchByID(ctx, id, k)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tITEM\tDISTANCE\tTITLE")
	for i, n := range neighbors {
		title := ""
		if cat != nil {
			title = cat.Title(n.ID)
		}
		fmt.Fprintf(tw, "%d\t%d\t%.6f\t%s\n", i+1, n.ID, n.Distance, title)
	}
	return tw.Flush()
}
