// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package store

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/episodarr/internal/models"
)

func overrideKey(slug, title string) string { return overridePrefix + slug + ":" + title }

func unresolvedKey(slug string, t models.EpisodeType, title string) string {
	return unresolvedPrefix + slug + ":" + string(t) + ":" + title
}

// GetOverride returns the override for (slug, catalog title).
func (s *Store) GetOverride(_ context.Context, slug, catalogTitle string) (*models.TitleOverride, error) {
	var o *models.TitleOverride
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		o, err = getJSON[models.TitleOverride](txn, overrideKey(slug, catalogTitle))
		return err
	})
	return o, err
}

// SetOverride stores o, superseding any previous value for the same key.
func (s *Store) SetOverride(_ context.Context, o *models.TitleOverride) error {
	o.UpdatedAt = s.now().UTC()
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, overrideKey(o.Slug, o.CatalogTitle), o)
	})
}

// DeleteOverride removes one override.
func (s *Store) DeleteOverride(_ context.Context, slug, catalogTitle string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return deleteKey(txn, overrideKey(slug, catalogTitle))
	})
}

// ListOverrides returns the overrides of one show.
func (s *Store) ListOverrides(_ context.Context, slug string) ([]models.TitleOverride, error) {
	return scan[models.TitleOverride](s.db, overridePrefix+slug+":")
}

// OverrideMap returns catalog title -> tracked title for one show, the form
// the matcher consumes.
func (s *Store) OverrideMap(ctx context.Context, slug string) (map[string]string, error) {
	list, err := s.ListOverrides(ctx, slug)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(list))
	for _, o := range list {
		out[o.CatalogTitle] = o.TrackedTitle
	}
	return out, nil
}

// RecordUnresolved upserts by (show, type, title): LastSeen is refreshed and
// FirstSeen is kept from the existing record.
func (s *Store) RecordUnresolved(_ context.Context, u *models.UnresolvedMatch) error {
	now := s.now().UTC()
	key := unresolvedKey(u.Slug, u.Type, u.CatalogTitle)
	return s.db.Update(func(txn *badger.Txn) error {
		existing, err := getJSON[models.UnresolvedMatch](txn, key)
		switch {
		case err == nil:
			u.FirstSeen = existing.FirstSeen
		case errors.Is(err, models.ErrNotFound):
			u.FirstSeen = now
		default:
			return err
		}
		u.LastSeen = now
		return setJSON(txn, key, u)
	})
}

// ResolveUnresolved removes the record for (show, type, title). Removing a
// record that does not exist is not an error.
func (s *Store) ResolveUnresolved(_ context.Context, slug string, t models.EpisodeType, title string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return deleteKey(txn, unresolvedKey(slug, t, title))
	})
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	return err
}

// ListUnresolved returns every unresolved record, ordered by show, type, title.
func (s *Store) ListUnresolved(_ context.Context) ([]models.UnresolvedMatch, error) {
	return scan[models.UnresolvedMatch](s.db, unresolvedPrefix)
}

// ListUnresolvedFor returns the unresolved records of one (show, type).
func (s *Store) ListUnresolvedFor(_ context.Context, slug string, t models.EpisodeType) ([]models.UnresolvedMatch, error) {
	return scan[models.UnresolvedMatch](s.db, unresolvedPrefix+slug+":"+string(t)+":")
}

// ListUnresolvedForShow returns the unresolved records of every type of one show.
func (s *Store) ListUnresolvedForShow(_ context.Context, slug string) ([]models.UnresolvedMatch, error) {
	return scan[models.UnresolvedMatch](s.db, unresolvedPrefix+slug+":")
}

// CountUnresolved counts unresolved records without decoding them.
func (s *Store) CountUnresolved(_ context.Context) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(unresolvedPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
