// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package trakt

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// itemsPageSize is the page size used when reading list members.
const itemsPageSize = 1000

// List is a user list.
type List struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Privacy     string    `json:"privacy"`
	ItemCount   int       `json:"item_count"`
	UpdatedAt   time.Time `json:"updated_at"`
	IDs         IDs       `json:"ids"`
}

// AddResult is the service's answer to an add-items call.
type AddResult struct {
	Added    int
	Existing int
	// NotFound holds the ids the service did not recognise.
	NotFound []int64
}

type itemRef struct {
	IDs IDs `json:"ids"`
}

type addItemsRequest struct {
	Episodes []itemRef `json:"episodes"`
}

type countByKind struct {
	Episodes int `json:"episodes"`
}

type addItemsResponse struct {
	Added    countByKind `json:"added"`
	Existing countByKind `json:"existing"`
	NotFound struct {
		Episodes []itemRef `json:"episodes"`
	} `json:"not_found"`
}

type listItem struct {
	Type    string   `json:"type"`
	Episode *Episode `json:"episode,omitempty"`
}

func (c *Client) listPath(listID int64) string {
	return "/users/" + c.user() + "/lists/" + strconv.FormatInt(listID, 10)
}

// ListMyLists returns every list of the configured user.
func (c *Client) ListMyLists(ctx context.Context) ([]List, error) {
	var lists []List
	if _, err := c.do(ctx, requestConfig{
		operation: "list_lists",
		method:    http.MethodGet,
		path:      "/users/" + c.user() + "/lists",
		auth:      true,
	}, &lists); err != nil {
		return nil, err
	}
	return lists, nil
}

// CreateList creates a private list.
func (c *Client) CreateList(ctx context.Context, name, description string) (*List, error) {
	var l List
	if _, err := c.do(ctx, requestConfig{
		operation: "create_list",
		method:    http.MethodPost,
		path:      "/users/" + c.user() + "/lists",
		body: map[string]any{
			"name":            name,
			"description":     description,
			"privacy":         "private",
			"display_numbers": false,
			"allow_comments":  false,
		},
		auth:   true,
		expect: []int{http.StatusCreated, http.StatusOK},
	}, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// AddItemsToList adds episodes by remote id. Adding an id already on the
// list is counted as Existing, not an error.
func (c *Client) AddItemsToList(ctx context.Context, listID int64, ids []int64) (*AddResult, error) {
	req := addItemsRequest{Episodes: make([]itemRef, len(ids))}
	for i, id := range ids {
		req.Episodes[i] = itemRef{IDs: IDs{Trakt: id}}
	}

	var resp addItemsResponse
	if _, err := c.do(ctx, requestConfig{
		operation: "add_list_items",
		method:    http.MethodPost,
		path:      c.listPath(listID) + "/items",
		body:      req,
		auth:      true,
		expect:    []int{http.StatusCreated, http.StatusOK},
	}, &resp); err != nil {
		return nil, err
	}

	out := &AddResult{Added: resp.Added.Episodes, Existing: resp.Existing.Episodes}
	for _, nf := range resp.NotFound.Episodes {
		if nf.IDs.Trakt != 0 {
			out.NotFound = append(out.NotFound, nf.IDs.Trakt)
		}
	}
	return out, nil
}

// GetListEpisodeIDs returns the remote ids of every episode on the list.
func (c *Client) GetListEpisodeIDs(ctx context.Context, listID int64) (map[int64]struct{}, error) {
	ids := make(map[int64]struct{})
	for page := 1; ; page++ {
		var items []listItem
		resp, err := c.do(ctx, requestConfig{
			operation: "list_items",
			method:    http.MethodGet,
			path:      c.listPath(listID) + "/items/episode",
			query: url.Values{
				"page":  {strconv.Itoa(page)},
				"limit": {strconv.Itoa(itemsPageSize)},
			},
			auth: true,
		}, &items)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			if it.Episode != nil && it.Episode.IDs.Trakt != 0 {
				ids[it.Episode.IDs.Trakt] = struct{}{}
			}
		}
		if resp.pageCount <= page || len(items) == 0 {
			return ids, nil
		}
	}
}

// DeleteList removes a list and its items on the service.
func (c *Client) DeleteList(ctx context.Context, listID int64) error {
	_, err := c.do(ctx, requestConfig{
		operation: "delete_list",
		method:    http.MethodDelete,
		path:      c.listPath(listID),
		auth:      true,
		expect:    []int{http.StatusNoContent, http.StatusOK},
	}, nil)
	return err
}
