// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package catalog

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2" // registers the duckdb database/sql driver
	"github.com/goccy/go-json"
)

// Source formats.
const (
	FormatJSON   = "json"
	FormatCSV    = "csv"
	FormatDuckDB = "duckdb"
)

// listSeparator separates values inside CSV and SQL list columns.
const listSeparator = "|"

// Source describes where items are loaded from.
type Source struct {
	// Path is the file (JSON, CSV) or DuckDB database path (":memory:" allowed).
	Path string

	// Format is json, csv or duckdb. Empty means detect from the file extension.
	Format string

	// Query is the SQL used for duckdb sources. It must return the columns
	// id, title, artist_display, tags and optionally styles, themes,
	// movements, image_url, description.
	Query string
}

// Load reads items from src.
//
//nolint:gocritic // hugeParam: Source is a small config value
func Load(ctx context.Context, src Source) ([]Item, error) {
	format := src.Format
	if format == "" {
		format = detectFormat(src.Path)
	}

	switch format {
	case FormatJSON:
		return LoadJSONFile(src.Path)
	case FormatCSV:
		return LoadCSVFile(src.Path)
	case FormatDuckDB:
		return LoadDuckDB(ctx, src.Path, src.Query)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}
}

func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON
	case ".csv":
		return FormatCSV
	case ".duckdb", ".db", ".parquet":
		return FormatDuckDB
	default:
		return ""
	}
}

// LoadJSONFile reads items from a JSON array or JSON lines file.
func LoadJSONFile(path string) ([]Item, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseJSON(data)
}

// ParseJSON decodes items from a JSON array or JSON lines document.
func ParseJSON(data []byte) ([]Item, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []Item{}, nil
	}

	if trimmed[0] == '[' {
		var items []Item
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode catalog array: %w", err)
		}
		return items, nil
	}

	var items []Item
	sc := bufio.NewScanner(bytes.NewReader(trimmed))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var it Item
		if err := json.Unmarshal(raw, &it); err != nil {
			return nil, fmt.Errorf("decode catalog line %d: %w", line, err)
		}
		items = append(items, it)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan catalog: %w", err)
	}
	return items, nil
}

// LoadCSVFile reads items from a CSV file with a header row.
func LoadCSVFile(path string) ([]Item, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only file

	return ParseCSV(f)
}

// ParseCSV reads items from CSV. Required columns: id. Recognized optional
// columns: title, artist_display, tags, styles, themes, movements,
// image_url, description. Unknown columns are ignored.
func ParseCSV(r io.Reader) ([]Item, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["id"]; !ok {
		return nil, errors.New("csv catalog has no id column")
	}

	var items []Item
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}

		get := func(name string) string {
			if i, ok := cols[name]; ok && i < len(rec) {
				return rec[i]
			}
			return ""
		}

		id, err := strconv.ParseInt(strings.TrimSpace(get("id")), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("csv row %d: invalid id %q", row, get("id"))
		}

		items = append(items, Item{
			ID:            id,
			Title:         get("title"),
			ArtistDisplay: get("artist_display"),
			Tags:          SplitList(get("tags")),
			Styles:        SplitList(get("styles")),
			Themes:        SplitList(get("themes")),
			Movements:     SplitList(get("movements")),
			ImageURL:      get("image_url"),
			Description:   get("description"),
		})
	}
	return items, nil
}

// SplitList parses a list cell. Both "a|b" and Python-style "['a', 'b']"
// are accepted.
func SplitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "[]" {
		return nil
	}

	sep := listSeparator
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = s[1 : len(s)-1]
		sep = ","
	}

	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `'"`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadDuckDB runs query against the DuckDB database at path and maps rows to
// items. List columns must be strings separated by "|"; use
// array_to_string(col, '|') for native list columns.
func LoadDuckDB(ctx context.Context, path, query string) ([]Item, error) {
	if query == "" {
		return nil, errors.New("duckdb catalog source requires a query")
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }() //nolint:errcheck // read-only use

	return LoadSQL(ctx, db, query)
}

// LoadSQL maps the rows of query to items by column name.
func LoadSQL(ctx context.Context, db *sql.DB, query string) ([]Item, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck // error surfaced by rows.Err

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("catalog columns: %w", err)
	}

	var items []Item
	for rows.Next() {
		vals := make([]sql.NullString, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}

		it, err := itemFromColumns(names, vals)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog rows: %w", err)
	}
	return items, nil
}

func itemFromColumns(names []string, vals []sql.NullString) (Item, error) {
	var it Item
	hasID := false
	for i, name := range names {
		v := vals[i].String
		switch strings.ToLower(name) {
		case "id":
			id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return Item{}, fmt.Errorf("invalid id %q: %w", v, err)
			}
			it.ID = id
			hasID = true
		case "title":
			it.Title = v
		case "artist_display":
			it.ArtistDisplay = v
		case "tags":
			it.Tags = SplitList(v)
		case "styles":
			it.Styles = SplitList(v)
		case "themes":
			it.Themes = SplitList(v)
		case "movements":
			it.Movements = SplitList(v)
		case "image_url":
			it.ImageURL = v
		case "description":
			it.Description = v
		}
	}
	if !hasID {
		return Item{}, errors.New("catalog query returned no id column")
	}
	return it, nil
}

// LoadAliases reads a two-column CSV (source,target) of tag aliases.
// A header row whose first cell is "source" is skipped.
func LoadAliases(path string) (map[string]string, error) {
	rows, err := readPairs(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r[0]] = r[1]
	}
	return out, nil
}

// LoadTagTypes reads a CSV of tag,count,type rows (count is ignored).
func LoadTagTypes(path string) (map[string]string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("open tag types: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only file

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read tag types: %w", err)
	}

	out := make(map[string]string, len(recs))
	for i, rec := range recs {
		if len(rec) < 3 || (i == 0 && strings.EqualFold(rec[0], "tag")) {
			continue
		}
		out[strings.TrimSpace(rec[0])] = strings.TrimSpace(rec[2])
	}
	return out, nil
}

func readPairs(path string) ([][2]string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only file

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	out := make([][2]string, 0, len(recs))
	for i, rec := range recs {
		if len(rec) < 2 || (i == 0 && strings.EqualFold(rec[0], "source")) {
			continue
		}
		out = append(out, [2]string{strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])})
	}
	return out, nil
}

// WriteAliases writes aliases as a source,target CSV sorted by source.
func WriteAliases(w io.Writer, aliases map[string]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"source", "target"}); err != nil {
		return err
	}
	for _, src := range sortedKeys(aliases) {
		if err := cw.Write([]string{src, aliases[src]}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
