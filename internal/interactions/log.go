// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

// Package interactions models a user's append-only interaction log.
//
// The log records (item, timestamp) pairs in arrival order. Channels consume
// the deduplicated view returned by Unique: one entry per item carrying its
// latest timestamp, most recent first.
package interactions

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Entry is a single interaction.
type Entry struct {
	ItemID    int64     `json:"item_id" validate:"gte=0"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is an append-only interaction log. It is not safe for concurrent use;
// the owning session serializes access.
type Log struct {
	entries []Entry
}

// NewLog creates a log holding entries in the given order.
func NewLog(entries ...Entry) *Log {
	return &Log{entries: append([]Entry(nil), entries...)}
}

// Append adds entries to the end of the log.
func (l *Log) Append(entries ...Entry) {
	l.entries = append(l.entries, entries...)
}

// Len returns the number of raw entries.
func (l *Log) Len() int { return len(l.entries) }

// Entries returns a copy of the raw entries in arrival order.
func (l *Log) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

// Unique returns one entry per item with its latest timestamp, ordered by
// timestamp descending. Equal timestamps are ordered by ascending item ID.
func (l *Log) Unique() []Entry {
	latest := make(map[int64]time.Time, len(l.entries))
	for _, e := range l.entries {
		if t, ok := latest[e.ItemID]; !ok || e.Timestamp.After(t) {
			latest[e.ItemID] = e.Timestamp
		}
	}

	out := make([]Entry, 0, len(latest))
	for id, ts := range latest {
		out = append(out, Entry{ItemID: id, Timestamp: ts})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out
}

// Recent returns the n most recent unique entries.
func (l *Log) Recent(n int) []Entry {
	u := l.Unique()
	if n >= 0 && n < len(u) {
		u = u[:n]
	}
	return u
}

// IDs extracts item IDs from entries, preserving order.
func IDs(entries []Entry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.ItemID
	}
	return out
}

// timeLayouts are the accepted textual timestamp formats.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339, "YYYY-MM-DD hh:mm:ss", a date, or Unix seconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ReadCSV parses a log with a header naming an item column (object_id,
// item_id or id) and a timestamp column.
func ReadCSV(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read log header: %w", err)
	}

	itemCol, tsCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "object_id", "item_id", "id":
			itemCol = i
		case "timestamp", "time", "ts":
			tsCol = i
		}
	}
	if itemCol < 0 || tsCol < 0 {
		return nil, errors.New("log needs an item id column and a timestamp column")
	}

	var out []Entry
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read log row %d: %w", row, err)
		}
		if itemCol >= len(rec) || tsCol >= len(rec) {
			return nil, fmt.Errorf("log row %d is short", row)
		}

		id, err := strconv.ParseInt(strings.TrimSpace(rec[itemCol]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("log row %d: invalid item id %q", row, rec[itemCol])
		}
		ts, err := ParseTimestamp(rec[tsCol])
		if err != nil {
			return nil, fmt.Errorf("log row %d: %w", row, err)
		}
		out = append(out, Entry{ItemID: id, Timestamp: ts})
	}
}
