// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package trakt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/episodarr/internal/logging"
	"github.com/tomtom215/episodarr/internal/models"
)

// Device flow outcomes.
var (
	ErrDeviceCodeExpired = errors.New("device code expired, start again")
	ErrDeviceCodeUsed    = errors.New("device code already used")
	ErrDeviceDenied      = errors.New("user denied the authorization")
	ErrDeviceCodeInvalid = errors.New("invalid device code")
)

// DeviceCode is the response of /oauth/device/code.
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// UserProfile is the subset of /users/me used to confirm authentication.
type UserProfile struct {
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	VIP      bool   `json:"vip"`
	IDs      struct {
		Slug string `json:"slug"`
	} `json:"ids"`
}

// RequestDeviceCode starts the device-code flow.
func (c *Client) RequestDeviceCode(ctx context.Context) (*DeviceCode, error) {
	var dc DeviceCode
	_, err := c.do(ctx, requestConfig{
		operation: "device_code",
		method:    http.MethodPost,
		path:      "/oauth/device/code",
		body:      map[string]string{"client_id": c.cfg.ClientID},
	}, &dc)
	if err != nil {
		return nil, err
	}
	return &dc, nil
}

// PollDeviceToken polls until the user approves the code, the code expires,
// or ctx is done. On success the token is saved to the token store.
func (c *Client) PollDeviceToken(ctx context.Context, dc *DeviceCode) (*Token, error) {
	interval := time.Duration(dc.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	deadline := time.Now().Add(time.Duration(dc.ExpiresIn) * time.Second)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		tok, status, err := c.pollOnce(ctx, dc.DeviceCode)
		if err != nil {
			return nil, err
		}
		switch status {
		case http.StatusOK:
			if err := c.saveToken(tok); err != nil {
				return nil, err
			}
			logging.Info().Time("expires_at", tok.ExpiresAt()).Msg("Trakt device authorization complete")
			return tok, nil
		case http.StatusBadRequest:
			// Pending: the user has not entered the code yet.
		case http.StatusTooManyRequests:
			interval += time.Second
			ticker.Reset(interval)
		case http.StatusNotFound:
			return nil, ErrDeviceCodeInvalid
		case http.StatusConflict:
			return nil, ErrDeviceCodeUsed
		case http.StatusGone:
			return nil, ErrDeviceCodeExpired
		case http.StatusTeapot:
			return nil, ErrDeviceDenied
		}

		if dc.ExpiresIn > 0 && time.Now().After(deadline) {
			return nil, ErrDeviceCodeExpired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) pollOnce(ctx context.Context, deviceCode string) (*Token, int, error) {
	var tok Token
	resp, err := c.do(ctx, requestConfig{
		operation: "device_token",
		method:    http.MethodPost,
		path:      "/oauth/device/token",
		body: map[string]string{
			"code":          deviceCode,
			"client_id":     c.cfg.ClientID,
			"client_secret": c.cfg.ClientSecret,
		},
		expect: []int{
			http.StatusOK, http.StatusBadRequest, http.StatusNotFound, http.StatusConflict,
			http.StatusGone, http.StatusTeapot, http.StatusTooManyRequests,
		},
	}, &tok)
	if err != nil {
		return nil, 0, err
	}
	return &tok, resp.status, nil
}

// RefreshToken exchanges a refresh token for a new token pair and saves it.
// Concurrent callers share one request.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	v, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		var tok Token
		_, err := c.do(ctx, requestConfig{
			operation: "refresh_token",
			method:    http.MethodPost,
			path:      "/oauth/token",
			body: map[string]string{
				"refresh_token": refreshToken,
				"client_id":     c.cfg.ClientID,
				"client_secret": c.cfg.ClientSecret,
				"redirect_uri":  "urn:ietf:wg:oauth:2.0:oob",
				"grant_type":    "refresh_token",
			},
		}, &tok)
		if err != nil {
			var se *models.HTTPStatusError
			if errors.As(err, &se) && (se.StatusCode == http.StatusBadRequest || se.StatusCode == http.StatusUnauthorized) {
				return nil, fmt.Errorf("%w: refresh token rejected", models.ErrAuthExpired)
			}
			return nil, err
		}
		if err := c.saveToken(&tok); err != nil {
			return nil, err
		}
		return &tok, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Token), nil
}

func (c *Client) saveToken(tok *Token) error {
	if tok.CreatedAt == 0 {
		tok.CreatedAt = time.Now().Unix()
	}
	if c.tokens == nil {
		return nil
	}
	return c.tokens.Save(tok)
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*UserProfile, error) {
	var p UserProfile
	if _, err := c.do(ctx, requestConfig{
		operation: "users_me",
		method:    http.MethodGet,
		path:      "/users/me",
		auth:      true,
	}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Authenticated reports whether a token is stored.
func (c *Client) Authenticated() bool {
	if c.tokens == nil {
		return false
	}
	_, err := c.tokens.Load()
	return err == nil
}
