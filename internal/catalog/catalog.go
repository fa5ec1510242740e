// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrUnknownItem is returned when an item ID is not in the catalog.
var ErrUnknownItem = errors.New("unknown item")

// Tag types. Facet lists on an Item determine the type of their tags unless
// an explicit type table overrides it.
const (
	TypeStyle    = "style"
	TypeTheme    = "theme"
	TypeMovement = "movement"
	TypeOther    = "other"
)

// Item is a single artwork.
type Item struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	ArtistDisplay string   `json:"artist_display"`
	Tags          []string `json:"tags"`
	Styles        []string `json:"styles,omitempty"`
	Themes        []string `json:"themes,omitempty"`
	Movements     []string `json:"movements,omitempty"`
	ImageURL      string   `json:"image_url,omitempty"`
	Description   string   `json:"description,omitempty"`
}

// Options tune catalog construction.
type Options struct {
	// Aliases rewrites tag names (source to target) in every tag and facet list.
	Aliases map[string]string

	// TagTypes overrides the type derived from item facets.
	TagTypes map[string]string
}

// Catalog is an immutable, indexed set of items.
type Catalog struct {
	items     []Item
	byID      map[int64]int
	ids       []int64
	byArtist  map[string][]int64
	artists   []string
	byTag     map[string][]int64
	tagCounts map[string]int
	tagTypes  map[string]string
	tags      []string
}

// New builds a catalog. Duplicate IDs are rejected.
//
//nolint:gocritic // hugeParam: opts is read once during construction
func New(items []Item, opts Options) (*Catalog, error) {
	c := &Catalog{
		items:     make([]Item, 0, len(items)),
		byID:      make(map[int64]int, len(items)),
		byArtist:  make(map[string][]int64),
		byTag:     make(map[string][]int64),
		tagCounts: make(map[string]int),
		tagTypes:  make(map[string]string),
	}

	for i := range items {
		it := normalizeItem(items[i], opts.Aliases)
		if _, dup := c.byID[it.ID]; dup {
			return nil, fmt.Errorf("duplicate item id %d", it.ID)
		}
		c.byID[it.ID] = len(c.items)
		c.items = append(c.items, it)
		c.ids = append(c.ids, it.ID)
		c.indexItem(&it)
	}

	for tag, typ := range opts.TagTypes {
		c.tagTypes[applyAlias(tag, opts.Aliases)] = typ
	}

	sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })
	for _, list := range c.byArtist {
		sortIDs(list)
	}
	for _, list := range c.byTag {
		sortIDs(list)
	}
	for artist := range c.byArtist {
		c.artists = append(c.artists, artist)
	}
	sort.Strings(c.artists)
	for tag := range c.tagCounts {
		c.tags = append(c.tags, tag)
	}
	sort.Strings(c.tags)

	return c, nil
}

// indexItem registers an item in the artist, tag and type lookups.
func (c *Catalog) indexItem(it *Item) {
	if it.ArtistDisplay != "" {
		c.byArtist[it.ArtistDisplay] = append(c.byArtist[it.ArtistDisplay], it.ID)
	}

	for _, tag := range it.Tags {
		c.byTag[tag] = append(c.byTag[tag], it.ID)
		c.tagCounts[tag]++
		if _, ok := c.tagTypes[tag]; !ok {
			c.tagTypes[tag] = TypeOther
		}
	}

	facets := []struct {
		typ  string
		tags []string
	}{
		{TypeStyle, it.Styles},
		{TypeTheme, it.Themes},
		{TypeMovement, it.Movements},
	}
	for _, f := range facets {
		for _, tag := range f.tags {
			if _, counted := c.tagCounts[tag]; counted && c.tagTypes[tag] == TypeOther {
				c.tagTypes[tag] = f.typ
			}
		}
	}
}

// normalizeItem trims strings, applies aliases and deduplicates tag lists.
//
//nolint:gocritic // hugeParam: item copied on purpose so callers keep their input
func normalizeItem(it Item, aliases map[string]string) Item {
	it.Title = strings.TrimSpace(it.Title)
	it.ArtistDisplay = strings.TrimSpace(it.ArtistDisplay)
	it.Tags = cleanList(it.Tags, aliases)
	it.Styles = cleanList(it.Styles, aliases)
	it.Themes = cleanList(it.Themes, aliases)
	it.Movements = cleanList(it.Movements, aliases)

	// Facet values are tags too.
	it.Tags = mergeUnique(it.Tags, it.Styles, it.Themes, it.Movements)
	return it
}

func cleanList(in []string, aliases map[string]string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = applyAlias(strings.TrimSpace(s), aliases)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func applyAlias(tag string, aliases map[string]string) string {
	if target, ok := aliases[tag]; ok && target != "" {
		return target
	}
	return tag
}

func mergeUnique(base []string, more ...[]string) []string {
	seen := make(map[string]struct{}, len(base))
	for _, s := range base {
		seen[s] = struct{}{}
	}
	for _, list := range more {
		for _, s := range list {
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				base = append(base, s)
			}
		}
	}
	return base
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// Len returns the number of items.
func (c *Catalog) Len() int { return len(c.items) }

// Items returns the normalized items in load order. The slice must not be
// modified.
func (c *Catalog) Items() []Item { return c.items }

// IDs returns all item IDs in ascending order. The slice must not be modified.
func (c *Catalog) IDs() []int64 { return c.ids }

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id int64) bool {
	_, ok := c.byID[id]
	return ok
}

// Item returns the item with the given ID.
func (c *Catalog) Item(id int64) (Item, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Title returns the title of id, or "" if unknown.
func (c *Catalog) Title(id int64) string {
	if i, ok := c.byID[id]; ok {
		return c.items[i].Title
	}
	return ""
}

// Artist returns the artist display name of id, or "" if unknown.
func (c *Catalog) Artist(id int64) string {
	if i, ok := c.byID[id]; ok {
		return c.items[i].ArtistDisplay
	}
	return ""
}

// Tags returns the tags of id. The slice must not be modified.
func (c *Catalog) Tags(id int64) []string {
	if i, ok := c.byID[id]; ok {
		return c.items[i].Tags
	}
	return nil
}

// Artists returns all artist display names, sorted.
func (c *Catalog) Artists() []string { return c.artists }

// ItemsByArtist returns the IDs of items by artist in ascending order.
// The slice must not be modified.
func (c *Catalog) ItemsByArtist(artist string) []int64 { return c.byArtist[artist] }

// ItemsWithTag returns the IDs of items carrying tag in ascending order.
// The slice must not be modified.
func (c *Catalog) ItemsWithTag(tag string) []int64 { return c.byTag[tag] }

// TagCount returns how many catalog items carry tag.
func (c *Catalog) TagCount(tag string) int { return c.tagCounts[tag] }

// TagType returns the type of tag, or "" if the tag is unknown.
func (c *Catalog) TagType(tag string) string { return c.tagTypes[tag] }

// TagNames returns every known tag, sorted.
func (c *Catalog) TagNames() []string { return c.tags }

// TagCounts returns a copy of the global tag counts.
func (c *Catalog) TagCounts() map[string]int {
	out := make(map[string]int, len(c.tagCounts))
	for k, v := range c.tagCounts {
		out[k] = v
	}
	return out
}

var parenthesized = regexp.MustCompile(`\s*\([^)]*\)`)

// CleanArtistName strips parenthesized qualifiers such as nationality and
// life dates: "Claude Monet (French, 1840-1926)" becomes "Claude Monet".
func CleanArtistName(name string) string {
	return strings.TrimSpace(parenthesized.ReplaceAllString(name, ""))
}
