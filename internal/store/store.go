// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

// Package store is the durable mapping store, backed by BadgerDB.
//
// Logical tables share one keyspace, separated by prefix:
//
//	binding:<slug>                      models.ShowBinding
//	override:<slug>:<catalog title>     models.TitleOverride
//	unresolved:<slug>:<type>:<title>    models.UnresolvedMatch
//	list:<slug>:<type>                  models.RemoteList
//	run:<scope>                         models.RunRecord
//	report:<scope>                      models.RunReport (last finished)
//
// Values are JSON. Every mutation is a single Badger transaction and the
// database is opened with SyncWrites, so a write is durable when it returns.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/episodarr/internal/logging"
	"github.com/tomtom215/episodarr/internal/models"
)

const (
	bindingPrefix    = "binding:"
	overridePrefix   = "override:"
	unresolvedPrefix = "unresolved:"
	listPrefix       = "list:"
	runPrefix        = "run:"
	reportPrefix     = "report:"
)

// Store is the Badger-backed mapping store.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (or creates) the store in dir.
func Open(dir string, opts ...Option) (*Store, error) {
	bopts := badger.DefaultOptions(dir)
	bopts.SyncWrites = true
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	logging.Info().Str("path", dir).Msg("Mapping store opened")
	return s, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	return nil
}

// RunGC reclaims value log space. Safe to call periodically.
func (s *Store) RunGC() {
	for {
		if err := s.db.RunValueLogGC(0.5); err != nil {
			return
		}
	}
}

func getJSON[T any](txn *badger.Txn, key string) (*T, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	var v T
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &v)
	}); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &v, nil
}

func setJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := txn.Set([]byte(key), data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func deleteKey(txn *badger.Txn, key string) error {
	if _, err := txn.Get([]byte(key)); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return models.ErrNotFound
		}
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := txn.Delete([]byte(key)); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func scan[T any](db *badger.DB, prefix string) ([]T, error) {
	var out []T
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			var v T
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	return out, nil
}

func bindingKey(slug string) string { return bindingPrefix + slug }

// GetBinding returns the binding for slug or models.ErrNotFound.
func (s *Store) GetBinding(_ context.Context, slug string) (*models.ShowBinding, error) {
	var b *models.ShowBinding
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		b, err = getJSON[models.ShowBinding](txn, bindingKey(slug))
		return err
	})
	return b, err
}

// UpsertBinding creates or replaces a binding, preserving CreatedAt.
func (s *Store) UpsertBinding(_ context.Context, b *models.ShowBinding) error {
	now := s.now().UTC()
	return s.db.Update(func(txn *badger.Txn) error {
		existing, err := getJSON[models.ShowBinding](txn, bindingKey(b.Slug))
		switch {
		case err == nil:
			b.CreatedAt = existing.CreatedAt
		case errors.Is(err, models.ErrNotFound):
			b.CreatedAt = now
		default:
			return err
		}
		b.UpdatedAt = now
		return setJSON(txn, bindingKey(b.Slug), b)
	})
}

// SetScheduled flips the scheduled flag of an existing binding.
func (s *Store) SetScheduled(_ context.Context, slug string, scheduled bool) (*models.ShowBinding, error) {
	var out *models.ShowBinding
	err := s.db.Update(func(txn *badger.Txn) error {
		b, err := getJSON[models.ShowBinding](txn, bindingKey(slug))
		if err != nil {
			return err
		}
		b.Scheduled = scheduled
		b.UpdatedAt = s.now().UTC()
		out = b
		return setJSON(txn, bindingKey(slug), b)
	})
	return out, err
}

// RemoveBinding deletes a binding. Overrides and cached lists are kept so a
// re-added show picks them up again.
func (s *Store) RemoveBinding(_ context.Context, slug string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return deleteKey(txn, bindingKey(slug))
	})
}

// ListBindings returns every binding ordered by slug (Badger key order).
func (s *Store) ListBindings(_ context.Context) ([]models.ShowBinding, error) {
	return scan[models.ShowBinding](s.db, bindingPrefix)
}

// ScheduledBindings returns the bindings included in batch runs.
func (s *Store) ScheduledBindings(ctx context.Context) ([]models.ShowBinding, error) {
	all, err := s.ListBindings(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, b := range all {
		if b.Scheduled {
			out = append(out, b)
		}
	}
	return out, nil
}
