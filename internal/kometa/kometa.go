// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

// Package kometa writes the Kometa collection and overlay YAML that turns the
// per-show remote lists into episode-level collections and poster banners.
//
// One collections file (anime_episode_type.yml) gathers every list of a type
// into a collection; four overlay files label the episodes of each type.
// Settings a user added to an existing collection are kept on rewrite, and
// existing overlay files are never overwritten.
package kometa

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/tomtom215/episodarr/internal/config"
	"github.com/tomtom215/episodarr/internal/logging"
	"github.com/tomtom215/episodarr/internal/models"
)

// CollectionsFile is the file name inside the collections directory.
const CollectionsFile = "anime_episode_type.yml"

type overlayDef struct {
	file  string
	key   string
	text  string
	label string
}

// overlays describes the banner file of each type.
var overlays = map[models.EpisodeType]overlayDef{
	models.EpisodeTypeFiller:     {"fillers.yml", "filler_overlay", "Filler", "Filler"},
	models.EpisodeTypeMangaCanon: {"manga_canon.yml", "manga_overlay", "Manga Canon", "MangaCanon"},
	models.EpisodeTypeAnimeCanon: {"anime_canon.yml", "anime_overlay", "Anime Canon", "AnimeCanon"},
	models.EpisodeTypeMixed:      {"mixed.yml", "mixed_overlay", "Mixed Canon/Filler", "Mixed"},
}

// collectionOrder is the order collections appear in the file.
var collectionOrder = []models.EpisodeType{
	models.EpisodeTypeFiller,
	models.EpisodeTypeMangaCanon,
	models.EpisodeTypeAnimeCanon,
	models.EpisodeTypeMixed,
}

// Result describes what Export wrote.
type Result struct {
	CollectionsPath string                     `json:"collections_path"`
	Changed         bool                       `json:"changed"`
	Lists           map[models.EpisodeType]int `json:"lists"`
	OverlaysWritten []string                   `json:"overlays_written"`
}

// Exporter writes Kometa files through an afero filesystem.
type Exporter struct {
	fs       afero.Fs
	cfg      config.KometaConfig
	username string
}

// NewExporter creates an Exporter. username is the tracking-service user
// the list URLs point at.
func NewExporter(fs afero.Fs, cfg config.KometaConfig, username string) *Exporter {
	return &Exporter{fs: fs, cfg: cfg, username: username}
}

// ListURL is the public URL of one remote list.
func (e *Exporter) ListURL(l models.RemoteList) string {
	slug := l.Slug
	if slug == "" {
		slug = l.Name
	}
	return fmt.Sprintf("https://trakt.tv/users/%s/lists/%s", e.username, slug)
}

// Export regenerates the collections file from lists. Without force the
// file is only rewritten when some collection's list set changed.
func (e *Exporter) Export(ctx context.Context, lists []models.RemoteList, force bool) (*Result, error) {
	log := logging.Ctx(ctx).With().Str("component", "kometa").Logger()
	path := filepath.Join(e.cfg.CollectionsDir, CollectionsFile)
	res := &Result{CollectionsPath: path, Lists: map[models.EpisodeType]int{}, OverlaysWritten: []string{}}

	urls := make(map[models.EpisodeType][]string, len(collectionOrder))
	for _, l := range lists {
		if !l.Type.Valid() {
			continue
		}
		urls[l.Type] = append(urls[l.Type], e.ListURL(l))
	}
	for t := range urls {
		slices.Sort(urls[t])
		urls[t] = slices.Compact(urls[t])
		res.Lists[t] = len(urls[t])
	}

	existing, err := e.readCollections(path)
	if err != nil {
		return nil, err
	}

	if !force && !changed(existing, urls) {
		log.Info().Msg("No changes in episode type collections")
	} else {
		if err := e.writeCollections(path, existing, urls); err != nil {
			return nil, err
		}
		res.Changed = true
		log.Info().Str("path", path).Msg("Collections file written")
	}

	written, err := e.writeOverlays()
	res.OverlaysWritten = written
	if err != nil {
		return res, err
	}
	return res, nil
}

type collectionsDoc struct {
	Collections map[string]map[string]any `yaml:"collections"`
}

func (e *Exporter) readCollections(path string) (map[string]map[string]any, error) {
	data, err := afero.ReadFile(e.fs, path)
	if err != nil {
		if exists, _ := afero.Exists(e.fs, path); !exists {
			return map[string]map[string]any{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc collectionsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Existing collections file is not valid YAML, replacing it")
		return map[string]map[string]any{}, nil
	}
	if doc.Collections == nil {
		doc.Collections = map[string]map[string]any{}
	}
	return doc.Collections, nil
}

// changed reports whether any collection's list set differs from the file.
func changed(existing map[string]map[string]any, urls map[models.EpisodeType][]string) bool {
	for _, t := range collectionOrder {
		col, ok := existing[t.CollectionName()]
		if !ok {
			return true
		}
		var have []string
		if raw, ok := col["trakt_list"].([]any); ok {
			for _, v := range raw {
				if s, ok := v.(string); ok {
					have = append(have, s)
				}
			}
		}
		slices.Sort(have)
		if !slices.Equal(slices.Compact(have), urls[t]) {
			return true
		}
	}
	return false
}

func defaultCollection(t models.EpisodeType) map[string]any {
	return map[string]any{
		"sync_mode":      "sync",
		"item_label":     overlays[t].label,
		"builder_level":  "episode",
		"cache_builders": 6,
	}
}

func (e *Exporter) writeCollections(path string, existing map[string]map[string]any, urls map[models.EpisodeType][]string) error {
	cols := &yaml.Node{Kind: yaml.MappingNode}
	for _, t := range collectionOrder {
		name := t.CollectionName()
		settings := defaultCollection(t)
		if prev, ok := existing[name]; ok {
			settings = make(map[string]any, len(prev)+1)
			for k, v := range prev {
				settings[k] = v
			}
		}
		list := urls[t]
		if list == nil {
			list = []string{}
		}
		settings["trakt_list"] = list

		var val yaml.Node
		if err := val.Encode(settings); err != nil {
			return fmt.Errorf("encode collection %s: %w", name, err)
		}
		cols.Content = append(cols.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: name}, &val)
	}
	root := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		{Kind: yaml.ScalarNode, Value: "collections"}, cols,
	}}
	return e.writeYAML(path, root)
}

type overlayFile struct {
	Overlays map[string]overlayEntry `yaml:"overlays"`
}

type overlayEntry struct {
	BuilderLevel string                       `yaml:"builder_level"`
	Overlay      overlaySpec                  `yaml:"overlay"`
	PlexSearch   map[string]map[string]string `yaml:"plex_search"`
}

type overlaySpec struct {
	Name                string `yaml:"name"`
	config.OverlayStyle `yaml:",inline"`
}

// writeOverlays creates missing overlay files and returns their paths.
func (e *Exporter) writeOverlays() ([]string, error) {
	written := []string{}
	for _, t := range collectionOrder {
		def := overlays[t]
		path := filepath.Join(e.cfg.OverlaysDir, def.file)
		if ok, err := afero.Exists(e.fs, path); err != nil {
			return written, err
		} else if ok {
			continue
		}
		doc := overlayFile{Overlays: map[string]overlayEntry{
			def.key: {
				BuilderLevel: "episode",
				Overlay:      overlaySpec{Name: "text(" + def.text + ")", OverlayStyle: e.cfg.Overlay},
				PlexSearch:   map[string]map[string]string{"all": {"episode_label": def.label}},
			},
		}}
		if err := e.writeYAML(path, doc); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// writeYAML encodes v and replaces path atomically.
func (e *Exporter) writeYAML(path string, v any) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return err
	}

	if err := e.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(e.fs, tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := e.fs.Rename(tmp, path); err != nil {
		_ = e.fs.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
