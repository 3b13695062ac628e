// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package models

import (
	"fmt"
	"strings"
)

// EpisodeType is the catalog classification of one episode.
type EpisodeType string

const (
	EpisodeTypeFiller     EpisodeType = "filler"
	EpisodeTypeMangaCanon EpisodeType = "manga"
	EpisodeTypeAnimeCanon EpisodeType = "anime"
	EpisodeTypeMixed      EpisodeType = "mixed"
)

// AllEpisodeTypes lists the types in the order they are processed and reported.
var AllEpisodeTypes = []EpisodeType{
	EpisodeTypeMangaCanon,
	EpisodeTypeFiller,
	EpisodeTypeMixed,
	EpisodeTypeAnimeCanon,
}

// ParseCatalogLabel maps the label printed in the catalog's type column
// ("FILLER", "Manga Canon", "MIXED CANON/FILLER", ...) to an EpisodeType.
func ParseCatalogLabel(label string) (EpisodeType, bool) {
	switch strings.ToUpper(strings.Join(strings.Fields(label), " ")) {
	case "FILLER":
		return EpisodeTypeFiller, true
	case "MANGA CANON":
		return EpisodeTypeMangaCanon, true
	case "ANIME CANON":
		return EpisodeTypeAnimeCanon, true
	case "MIXED CANON/FILLER", "MIXED CANON / FILLER":
		return EpisodeTypeMixed, true
	}
	return "", false
}

// ParseEpisodeType accepts the short form used in list names and URLs.
func ParseEpisodeType(s string) (EpisodeType, error) {
	switch t := EpisodeType(strings.ToLower(strings.TrimSpace(s))); t {
	case EpisodeTypeFiller, EpisodeTypeMangaCanon, EpisodeTypeAnimeCanon, EpisodeTypeMixed:
		return t, nil
	}
	if t, ok := ParseCatalogLabel(s); ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown episode type %q", s)
}

// CatalogLabel is the label the catalog prints for this type.
func (t EpisodeType) CatalogLabel() string {
	switch t {
	case EpisodeTypeFiller:
		return "FILLER"
	case EpisodeTypeMangaCanon:
		return "MANGA CANON"
	case EpisodeTypeAnimeCanon:
		return "ANIME CANON"
	case EpisodeTypeMixed:
		return "MIXED CANON/FILLER"
	}
	return strings.ToUpper(string(t))
}

// CollectionName is the Kometa collection that gathers every list of this type.
func (t EpisodeType) CollectionName() string {
	switch t {
	case EpisodeTypeFiller:
		return "Fillers"
	case EpisodeTypeMangaCanon:
		return "Manga Canon"
	case EpisodeTypeAnimeCanon:
		return "Anime Canon"
	case EpisodeTypeMixed:
		return "Mixed Canon/Filler"
	}
	return string(t)
}

// Valid reports whether t is one of the four known types.
func (t EpisodeType) Valid() bool {
	switch t {
	case EpisodeTypeFiller, EpisodeTypeMangaCanon, EpisodeTypeAnimeCanon, EpisodeTypeMixed:
		return true
	}
	return false
}

// CatalogEpisode is one classified episode from the catalog.
type CatalogEpisode struct {
	Number int         `json:"number"`
	Title  string      `json:"title"`
	Type   EpisodeType `json:"type"`
}

// TrackedEpisode is one episode of the tracking service's canonical sequence.
type TrackedEpisode struct {
	Season   int    `json:"season"`
	Number   int    `json:"number"`
	Title    string `json:"title"`
	RemoteID int64  `json:"remote_id"`
}

// Label renders the episode as S01E02 for logs and notifications.
func (e TrackedEpisode) Label() string {
	return fmt.Sprintf("S%02dE%02d %s", e.Season, e.Number, e.Title)
}

// ListName is the deterministic remote list name for a show slug and type.
func ListName(slug string, t EpisodeType) string {
	return slug + "_" + string(t)
}

// ParseListName splits a remote list name produced by ListName.
func ParseListName(name string) (slug string, t EpisodeType, ok bool) {
	i := strings.LastIndex(name, "_")
	if i <= 0 || i == len(name)-1 {
		return "", "", false
	}
	typ, err := ParseEpisodeType(name[i+1:])
	if err != nil {
		return "", "", false
	}
	return name[:i], typ, true
}
