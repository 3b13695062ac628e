// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tomtom215/episodarr/internal/models"
)

// Validate checks that required configuration is present and consistent.
// Every returned error wraps models.ErrConfigInvalid.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateLogging,
		c.validateData,
		c.validateTrakt,
		c.validatePlex,
		c.validateCatalog,
		c.validateMatching,
		c.validateSync,
		c.validateScheduler,
		c.validateNotifications,
		c.validateSecurity,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return fmt.Errorf("%w: %w", models.ErrConfigInvalid, err)
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console", "auto":
		return nil
	}
	return fmt.Errorf("logging.format must be json, console or auto; got %q", c.Logging.Format)
}

func (c *Config) validateData() error {
	if strings.TrimSpace(c.Data.Dir) == "" {
		return fmt.Errorf("data.dir is required")
	}
	return nil
}

// validateTrakt only checks shape; credentials are checked when a remote
// call is first attempted so offline commands still work.
func (c *Config) validateTrakt() error {
	if err := validateHTTPURL(c.Trakt.BaseURL, "trakt.base_url"); err != nil {
		return err
	}
	if c.Trakt.ReadRequests <= 0 || c.Trakt.ReadWindow <= 0 || c.Trakt.ReadBurst <= 0 {
		return fmt.Errorf("trakt read limit must be positive (read_requests, read_window, read_burst)")
	}
	if c.Trakt.WritesPerSecond <= 0 || c.Trakt.WriteBurst <= 0 {
		return fmt.Errorf("trakt write limit must be positive (writes_per_second, write_burst)")
	}
	if c.Trakt.MaxAttempts < 1 || c.Trakt.MaxAttempts > 10 {
		return fmt.Errorf("trakt.max_attempts must be between 1 and 10, got %d", c.Trakt.MaxAttempts)
	}
	if c.Trakt.TransientMaxDelay > c.Trakt.RateLimitMaxDelay {
		return fmt.Errorf("trakt.transient_max_delay (%s) must not exceed trakt.rate_limit_max_delay (%s)",
			c.Trakt.TransientMaxDelay, c.Trakt.RateLimitMaxDelay)
	}
	return nil
}

// TraktCredentialsPresent reports whether the OAuth application is configured.
func (c *Config) TraktCredentialsPresent() bool {
	return c.Trakt.ClientID != "" && c.Trakt.ClientSecret != ""
}

func (c *Config) validatePlex() error {
	if !c.Plex.Enabled {
		return nil
	}
	if err := validateHTTPURL(c.Plex.URL, "plex.url"); err != nil {
		return err
	}
	if c.Plex.Token == "" {
		return fmt.Errorf("plex.token is required when plex.enabled=true")
	}
	if len(c.Plex.Libraries) == 0 {
		return fmt.Errorf("plex.libraries must name at least one library")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if err := validateHTTPURL(c.Catalog.BaseURL, "catalog.base_url"); err != nil {
		return err
	}
	if c.Catalog.RequestsPerSecond <= 0 || c.Catalog.Burst <= 0 {
		return fmt.Errorf("catalog.requests_per_second and catalog.burst must be positive")
	}
	if c.Catalog.CacheTTL < 0 || c.Catalog.CacheSize < 0 {
		return fmt.Errorf("catalog.cache_ttl and catalog.cache_size must not be negative")
	}
	return nil
}

func (c *Config) validateMatching() error {
	switch c.Matching.Mode {
	case "title", "hybrid":
	default:
		return fmt.Errorf("matching.mode must be title or hybrid, got %q", c.Matching.Mode)
	}
	if c.Matching.Threshold <= 0 || c.Matching.Threshold > 1 {
		return fmt.Errorf("matching.threshold must be in (0, 1], got %v", c.Matching.Threshold)
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.BatchSize < 1 || c.Sync.BatchSize > 100 {
		return fmt.Errorf("sync.batch_size must be between 1 and 100, got %d", c.Sync.BatchSize)
	}
	if c.Sync.Workers < 1 || c.Sync.Workers > 5 {
		return fmt.Errorf("sync.workers must be between 1 and 5, got %d", c.Sync.Workers)
	}
	if c.Sync.LockTimeout < time.Minute {
		return fmt.Errorf("sync.lock_timeout must be at least 1m, got %s", c.Sync.LockTimeout)
	}
	return nil
}

var clockPattern = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

var weekdayNames = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

func (c *Config) validateScheduler() error {
	s := c.Scheduler
	if !s.Enabled {
		return nil
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone %q: %w", s.Timezone, err)
	}
	switch s.Type {
	case "run":
		return nil
	case "hourly":
		if s.Minute < 0 || s.Minute > 59 {
			return fmt.Errorf("scheduler.minute must be between 0 and 59, got %d", s.Minute)
		}
		return nil
	case "daily":
		if len(s.Times) == 0 {
			return fmt.Errorf("scheduler.times must list at least one HH:MM for daily schedules")
		}
		for _, t := range s.Times {
			if !clockPattern.MatchString(t) {
				return fmt.Errorf("scheduler.times entry %q is not HH:MM", t)
			}
		}
		return nil
	case "weekly":
		if len(s.Days) == 0 {
			return fmt.Errorf("scheduler.days must list at least one weekday for weekly schedules")
		}
		for _, d := range s.Days {
			if !weekdayNames[strings.ToLower(d)] {
				return fmt.Errorf("scheduler.days entry %q is not a weekday", d)
			}
		}
		return c.validateScheduleTime()
	case "monthly":
		if len(s.Dates) == 0 {
			return fmt.Errorf("scheduler.dates must list at least one day of month for monthly schedules")
		}
		for _, d := range s.Dates {
			if d < 1 || d > 31 {
				return fmt.Errorf("scheduler.dates entry %d is out of range", d)
			}
		}
		return c.validateScheduleTime()
	case "cron":
		if len(strings.Fields(s.Cron)) != 5 {
			return fmt.Errorf("scheduler.cron must have 5 fields, got %q", s.Cron)
		}
		return nil
	}
	return fmt.Errorf("scheduler.type must be one of run, hourly, daily, weekly, monthly, cron; got %q", s.Type)
}

func (c *Config) validateScheduleTime() error {
	if !clockPattern.MatchString(c.Scheduler.Time) {
		return fmt.Errorf("scheduler.time %q is not HH:MM", c.Scheduler.Time)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	d := c.Notifications.Discord
	if !d.Enabled {
		return nil
	}
	u, err := url.Parse(d.WebhookURL)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("notifications.discord.webhook_url must be an https URL")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("security.rate_limit_reqs must be positive, got %d", c.Security.RateLimitReqs)
	}
	if c.Security.RateLimitWindow < time.Second {
		return fmt.Errorf("security.rate_limit_window must be at least 1s, got %s", c.Security.RateLimitWindow)
	}
	return nil
}

// validateHTTPURL requires an http(s) base URL with a host and no query.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %q", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}
	return nil
}
