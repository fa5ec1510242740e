// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package recommend

import (
	"bytes"
	"testing"
)

type titleMap map[int64]string

func (m titleMap) Title(id int64) string { return m[id] }

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	page := &Page{Items: []PageItem{
		{ItemID: 12, Label: "Image: 3", Channel: ChannelImage, Weight: 0.125},
		{ItemID: 7, Label: "Artist: Monet, Claude", Channel: ChannelArtist, Weight: 1},
	}}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, page, titleMap{12: "Water Lilies"}); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	want := "rank,item_id,title,channel,label,weight\n" +
		"1,12,Water Lilies,image,Image: 3,0.125\n" +
		"2,7,,artist,\"Artist: Monet, Claude\",1\n"
	if got := buf.String(); got != want {
		t.Errorf("WriteCSV() =\n%s\nwant\n%s", got, want)
	}
}

func TestWriteCSV_EmptyPage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteCSV(&buf, &Page{}, nil); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if got := buf.String(); got != "rank,item_id,title,channel,label,weight\n" {
		t.Errorf("WriteCSV() = %q, want header only", got)
	}
}
