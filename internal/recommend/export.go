// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package recommend

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Titler resolves item titles for export.
type Titler interface {
	Title(id int64) string
}

// CSVHeader is the header row written by WriteCSV.
var CSVHeader = []string{"rank", "item_id", "title", "channel", "label", "weight"}

// WriteCSV writes page rows as rank,item_id,title,channel,label,weight.
// titles may be nil.
func WriteCSV(w io.Writer, page *Page, titles Titler) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for i, it := range page.Items {
		title := ""
		if titles != nil {
			title = titles.Title(it.ItemID)
		}
		row := []string{
			strconv.Itoa(i + 1),
			strconv.FormatInt(it.ItemID, 10),
			title,
			it.Channel,
			it.Label,
			strconv.FormatFloat(it.Weight, 'g', 6, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
