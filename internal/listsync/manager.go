// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package listsync

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tomtom215/episodarr/internal/logging"
	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/trakt"
)

// ManagerRemote is the client surface needed to browse and delete lists.
type ManagerRemote interface {
	ListMyLists(ctx context.Context) ([]trakt.List, error)
	DeleteList(ctx context.Context, listID int64) error
}

// ManagerCache is the list cache surface needed by Manager.
type ManagerCache interface {
	GetRemoteList(ctx context.Context, slug string, t models.EpisodeType) (*models.RemoteList, error)
	DeleteRemoteList(ctx context.Context, slug string, t models.EpisodeType) error
}

// Manager handles explicit user actions on the lists this tool maintains.
// Reconciliation never deletes; only Manager.Delete does.
type Manager struct {
	remote ManagerRemote
	cache  ManagerCache
}

// NewManager creates a Manager.
func NewManager(remote ManagerRemote, cache ManagerCache) *Manager {
	return &Manager{remote: remote, cache: cache}
}

// Lists returns the user's remote lists whose names follow the
// <slug>_<type> convention, sorted by name. Other lists are ignored.
func (m *Manager) Lists(ctx context.Context) ([]models.RemoteList, error) {
	lists, err := m.remote.ListMyLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote lists: %w", err)
	}
	out := make([]models.RemoteList, 0, len(lists))
	for _, l := range lists {
		slug, t, ok := models.ParseListName(l.Name)
		if !ok {
			continue
		}
		out = append(out, models.RemoteList{
			RemoteID:    l.IDs.Trakt,
			Slug:        l.IDs.Slug,
			Name:        l.Name,
			ShowSlug:    slug,
			Type:        t,
			MemberCount: l.ItemCount,
			UpdatedAt:   l.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes the (slug, t) list from the remote service and drops the
// cache entry. It returns models.ErrNotFound when no such list exists.
func (m *Manager) Delete(ctx context.Context, slug string, t models.EpisodeType) (*models.RemoteList, error) {
	target, err := m.find(ctx, slug, t)
	if err != nil {
		return nil, err
	}

	if err := m.remote.DeleteList(ctx, target.RemoteID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("delete list %s: %w", target.Name, err)
	}
	if err := m.cache.DeleteRemoteList(ctx, slug, t); err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	logging.Ctx(ctx).Info().Str("list", target.Name).Int64("list_id", target.RemoteID).Msg("Deleted remote list")
	return target, nil
}

func (m *Manager) find(ctx context.Context, slug string, t models.EpisodeType) (*models.RemoteList, error) {
	cached, err := m.cache.GetRemoteList(ctx, slug, t)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("list cache: %w", err)
	}

	lists, err := m.Lists(ctx)
	if err != nil {
		return nil, err
	}
	name := models.ListName(slug, t)
	for i := range lists {
		if lists[i].Name == name {
			return &lists[i], nil
		}
	}
	return nil, fmt.Errorf("list %s: %w", name, models.ErrNotFound)
}
