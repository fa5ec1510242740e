// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/atelier/internal/bootstrap"
	"github.com/tomtom215/atelier/internal/interactions"
	"github.com/tomtom215/atelier/internal/logging"
	"github.com/tomtom215/atelier/internal/recommend"
	"github.com/tomtom215/atelier/internal/recommend/channels"
)

func newRecommendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Simulate recommendation pages for one user",
		Long: `Builds an in-memory engine from the configured catalog and indexes,
replays an interaction log, then draws pages. With --click, the top items of
each page are recorded as interactions before the next page is drawn.

The log is a CSV of item_id[,timestamp] rows; timestamps are RFC 3339.`,
		Args: cobra.NoArgs,
		RunE: runRecommend,
	}
	cmd.Flags().String("user", "cli-user", "user ID")
	cmd.Flags().String("log", "", "interaction log CSV to replay first")
	cmd.Flags().Int("pages", 1, "number of pages to draw")
	cmd.Flags().Int("click", 0, "top items of each page to record as interactions")
	cmd.Flags().String("out", "", "directory for page-N.csv files (default: stdout)")
	cmd.Flags().StringSlice("artists", nil, "cold-start artist preferences")
	cmd.Flags().StringSlice("styles", nil, "cold-start style preferences")
	cmd.Flags().StringSlice("themes", nil, "cold-start theme preferences")
	cmd.Flags().StringSlice("movements", nil, "cold-start movement preferences")
	cmd.Flags().StringToString("survey", nil, "profile survey answers, type=tag")
	return cmd
}

//nolint:gocyclo // flag handling plus the simulation loop
func runRecommend(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	userID, _ := flags.GetString("user") //nolint:errcheck // registered flag
	logPath, _ := flags.GetString("log") //nolint:errcheck // registered flag
	pages, _ := flags.GetInt("pages")    //nolint:errcheck // registered flag
	clicks, _ := flags.GetInt("click")   //nolint:errcheck // registered flag
	outDir, _ := flags.GetString("out")  //nolint:errcheck // registered flag
	var prefs recommend.Preferences
	prefs.Artists, _ = flags.GetStringSlice("artists")     //nolint:errcheck // registered flag
	prefs.Styles, _ = flags.GetStringSlice("styles")       //nolint:errcheck // registered flag
	prefs.Themes, _ = flags.GetStringSlice("themes")       //nolint:errcheck // registered flag
	prefs.Movements, _ = flags.GetStringSlice("movements") //nolint:errcheck // registered flag
	prefs.Survey, _ = flags.GetStringToString("survey")    //nolint:errcheck // registered flag

	if pages < 1 {
		return errors.New("--pages must be at least 1")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.Logger()

	cat, err := bootstrap.LoadCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	embedder, closeEmbedder, err := bootstrap.BuildEmbedder(cfg, logger)
	if err != nil {
		return err
	}
	defer closeEmbedder()
	deps, err := bootstrap.BuildChannelDeps(ctx, cfg, cat, embedder, logger)
	if err != nil {
		return err
	}

	recCfg := cfg.ToRecommendConfig()
	engine, err := recommend.NewEngine(recCfg, channels.NewFactory(deps, recCfg), logger, recommend.WithItemLookup(cat))
	if err != nil {
		return err
	}

	if !prefs.IsZero() {
		if err := engine.SetPreferences(ctx, userID, prefs); err != nil {
			return fmt.Errorf("set preferences: %w", err)
		}
	}

	updated := false
	if logPath != "" {
		entries, err := readLogFile(logPath, time.Now())
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			if err := engine.RecordInteractions(ctx, userID, entries); err != nil {
				return fmt.Errorf("replay log: %w", err)
			}
			updated = true
		}
	}

	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o750); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for i := 0; i < pages; i++ {
		page, err := engine.Recommend(ctx, recommend.PageRequest{
			UserID:          userID,
			Timestamp:       time.Now(),
			BehaviorUpdated: updated,
			PageIndex:       i,
		})
		if err != nil {
			return fmt.Errorf("page %d: %w", i, err)
		}

		if err := writePage(out, outDir, page, cat); err != nil {
			return err
		}

		updated = false
		if picked := topItems(page, clicks); len(picked) > 0 {
			if err := engine.RecordInteractions(ctx, userID, picked); err != nil {
				return fmt.Errorf("record clicks: %w", err)
			}
			updated = true
		}
	}
	return nil
}

// writePage writes page-N.csv into dir, or to w when dir is empty.
func writePage(w io.Writer, dir string, page *recommend.Page, titles recommend.Titler) error {
	if dir == "" {
		fmt.Fprintf(w, "# page %d: %d items, cold_start=%t fallback=%t\n",
			page.PageIndex, len(page.Items), page.ColdStart, page.Fallback)
		return recommend.WriteCSV(w, page, titles)
	}

	path := filepath.Join(dir, fmt.Sprintf("page-%d.csv", page.PageIndex))
	f, err := os.Create(path) //nolint:gosec // operator-chosen output directory
	if err != nil {
		return err
	}
	if err := recommend.WriteCSV(f, page, titles); err != nil {
		_ = f.Close() //nolint:errcheck // write error takes precedence
		return err
	}
	return f.Close()
}

// topItems returns the first n page items as interactions.
func topItems(page *recommend.Page, n int) []interactions.Entry {
	if n <= 0 {
		return nil
	}
	n = min(n, len(page.Items))
	now := time.Now().UTC()
	out := make([]interactions.Entry, n)
	for i := range n {
		out[i] = interactions.Entry{ItemID: page.Items[i].ItemID, Timestamp: now}
	}
	return out
}

func readLogFile(path string, now time.Time) ([]interactions.Entry, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied log
	if err != nil {
		return nil, fmt.Errorf("open interaction log: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only file
	return parseLog(f, now)
}

// parseLog reads item_id[,timestamp] rows. A non-numeric first row is a
// header. Rows without a timestamp get now.
func parseLog(r io.Reader, now time.Time) ([]interactions.Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []interactions.Entry
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("interaction log line %d: %w", line, err)
		}
		if len(rec) == 0 || strings.TrimSpace(rec[0]) == "" {
			continue
		}

		id, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("interaction log line %d: invalid item id %q", line, rec[0])
		}

		ts := now
		if len(rec) > 1 && strings.TrimSpace(rec[1]) != "" {
			if ts, err = time.Parse(time.RFC3339, strings.TrimSpace(rec[1])); err != nil {
				return nil, fmt.Errorf("interaction log line %d: %w", line, err)
			}
		}
		out = append(out, interactions.Entry{ItemID: id, Timestamp: ts.UTC()})
	}
}
