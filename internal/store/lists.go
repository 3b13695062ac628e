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

func listKey(slug string, t models.EpisodeType) string { return listPrefix + slug + ":" + string(t) }
func runKey(scope string) string                       { return runPrefix + scope }
func reportKey(scope string) string                    { return reportPrefix + scope }

// GetRemoteList returns the cached list for (show, type).
func (s *Store) GetRemoteList(_ context.Context, slug string, t models.EpisodeType) (*models.RemoteList, error) {
	var l *models.RemoteList
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		l, err = getJSON[models.RemoteList](txn, listKey(slug, t))
		return err
	})
	return l, err
}

// PutRemoteList writes the cache entry for (l.ShowSlug, l.Type).
func (s *Store) PutRemoteList(_ context.Context, l *models.RemoteList) error {
	l.UpdatedAt = s.now().UTC()
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, listKey(l.ShowSlug, l.Type), l)
	})
}

// DeleteRemoteList drops the cache entry only; the remote list is untouched.
func (s *Store) DeleteRemoteList(_ context.Context, slug string, t models.EpisodeType) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return deleteKey(txn, listKey(slug, t))
	})
}

// ListRemoteLists returns every cached list.
func (s *Store) ListRemoteLists(_ context.Context) ([]models.RemoteList, error) {
	return scan[models.RemoteList](s.db, listPrefix)
}

// MarkRunStarted persists the running flag for rec.Scope.
func (s *Store) MarkRunStarted(_ context.Context, rec *models.RunRecord) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, runKey(rec.Scope), rec)
	})
}

// MarkRunFinished clears the running flag. Clearing an absent flag is a no-op.
func (s *Store) MarkRunFinished(_ context.Context, scope string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return deleteKey(txn, runKey(scope))
	})
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	return err
}

// StaleRuns returns every persisted running flag. Called at startup, before
// any run begins, each one is a run that never finished.
func (s *Store) StaleRuns(_ context.Context) ([]models.RunRecord, error) {
	return scan[models.RunRecord](s.db, runPrefix)
}

// SaveReport keeps the last finished report of a scope.
func (s *Store) SaveReport(_ context.Context, scope string, r *models.RunReport) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, reportKey(scope), r)
	})
}

// LastReport returns the last finished report of a scope.
func (s *Store) LastReport(_ context.Context, scope string) (*models.RunReport, error) {
	var r *models.RunReport
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		r, err = getJSON[models.RunReport](txn, reportKey(scope))
		return err
	})
	return r, err
}
