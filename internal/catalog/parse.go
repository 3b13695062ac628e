// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package catalog

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/tomtom215/episodarr/internal/models"
)

// ErrNoEpisodeTable is returned when a page has no classified rows.
var ErrNoEpisodeTable = errors.New("no episode table found")

// parseEpisodes reads every table row with at least three cells
// (number, title, type). Rows with an unknown type label are skipped.
func parseEpisodes(r io.Reader) ([]models.CatalogEpisode, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out []models.CatalogEpisode
	var rows int
	walk(doc, func(n *html.Node) bool {
		if n.DataAtom != atom.Tr {
			return true
		}
		cells := childCells(n)
		if len(cells) < 3 {
			return false
		}
		rows++
		t, ok := models.ParseCatalogLabel(text(cells[2]))
		if !ok {
			return false
		}
		num, _ := strconv.Atoi(strings.TrimSpace(text(cells[0])))
		out = append(out, models.CatalogEpisode{
			Number: num,
			Title:  text(cells[1]),
			Type:   t,
		})
		return false
	})

	if rows == 0 {
		return nil, ErrNoEpisodeTable
	}
	return out, nil
}

// parseShowIndex collects every /shows/<slug> link.
func parseShowIndex(r io.Reader) ([]models.CatalogShow, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	seen := make(map[string]bool)
	var out []models.CatalogShow
	walk(doc, func(n *html.Node) bool {
		if n.DataAtom != atom.A {
			return true
		}
		slug := showSlug(attr(n, "href"))
		title := text(n)
		if slug == "" || title == "" || seen[slug] {
			return false
		}
		seen[slug] = true
		out = append(out, models.CatalogShow{Slug: slug, Title: title})
		return false
	})
	return out, nil
}

// showSlug extracts <slug> from "/shows/<slug>" or an absolute URL to it.
func showSlug(href string) string {
	i := strings.Index(href, "/shows/")
	if i < 0 {
		return ""
	}
	slug := strings.Trim(href[i+len("/shows/"):], "/")
	if slug == "" || strings.ContainsAny(slug, "/?#") {
		return ""
	}
	return slug
}

// walk visits n depth first; visit returns false to skip the children.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if n.Type == html.ElementNode && !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func childCells(tr *html.Node) []*html.Node {
	var cells []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Td {
			cells = append(cells, c)
		}
	}
	return cells
}

// text returns the node's text content with whitespace collapsed.
func text(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
