// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package config

import (
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tomtom215/episodarr/internal/logging"
)

// Config is the complete application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Logging       LoggingConfig       `koanf:"logging"`
	Data          DataConfig          `koanf:"data"`
	Trakt         TraktConfig         `koanf:"trakt"`
	Plex          PlexConfig          `koanf:"plex"`
	Catalog       CatalogConfig       `koanf:"catalog"`
	Matching      MatchingConfig      `koanf:"matching"`
	Sync          SyncConfig          `koanf:"sync"`
	Scheduler     SchedulerConfig     `koanf:"scheduler"`
	Kometa        KometaConfig        `koanf:"kometa"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Security      SecurityConfig      `koanf:"security"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig mirrors logging.Config in koanf form.
type LoggingConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	Caller     bool   `koanf:"caller"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

// DataConfig locates persisted state.
type DataConfig struct {
	Dir string `koanf:"dir"`
}

// TraktConfig holds the tracking-service application and its outbound limits.
type TraktConfig struct {
	BaseURL      string        `koanf:"base_url"`
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	Username     string        `koanf:"username"`
	Timeout      time.Duration `koanf:"timeout"`

	// Token bucket for GET requests: ReadRequests per ReadWindow.
	ReadRequests int           `koanf:"read_requests"`
	ReadWindow   time.Duration `koanf:"read_window"`
	ReadBurst    int           `koanf:"read_burst"`

	WritesPerSecond float64 `koanf:"writes_per_second"`
	WriteBurst      int     `koanf:"write_burst"`

	MaxAttempts       uint          `koanf:"max_attempts"`
	RetryBaseDelay    time.Duration `koanf:"retry_base_delay"`
	RateLimitMaxDelay time.Duration `koanf:"rate_limit_max_delay"`
	TransientMaxDelay time.Duration `koanf:"transient_max_delay"`

	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`

	// RefreshWindow: tokens expiring sooner than this are refreshed before use.
	RefreshWindow time.Duration `koanf:"refresh_window"`
}

// PlexConfig is optional; without it orphan scans and TMDB lookups are skipped.
type PlexConfig struct {
	Enabled   bool          `koanf:"enabled"`
	URL       string        `koanf:"url"`
	Token     string        `koanf:"token"`
	Libraries []string      `koanf:"libraries"`
	Timeout   time.Duration `koanf:"timeout"`
}

// CatalogConfig paces the AnimeFillerList scraper.
type CatalogConfig struct {
	BaseURL           string        `koanf:"base_url"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
	Timeout           time.Duration `koanf:"timeout"`
	UserAgent         string        `koanf:"user_agent"`
	// CacheTTL keeps fetched catalog pages in memory; 0 disables caching.
	CacheTTL  time.Duration `koanf:"cache_ttl"`
	CacheSize int           `koanf:"cache_size"`
}

// MatchingConfig selects the title matching policy.
type MatchingConfig struct {
	// Mode is "title" or "hybrid" (title first, then ordinal position).
	Mode      string  `koanf:"mode"`
	Threshold float64 `koanf:"threshold"`
}

// SyncConfig controls list synchronization and batch runs.
type SyncConfig struct {
	BatchSize    int           `koanf:"batch_size"`
	BatchTimeout time.Duration `koanf:"batch_timeout"`
	Workers      int           `koanf:"workers"`
	LockTimeout  time.Duration `koanf:"lock_timeout"`
	DryRun       bool          `koanf:"dry_run"`
}

// SchedulerConfig describes when the batch run fires.
//
// Type is one of run, hourly, daily, weekly, monthly, cron.
type SchedulerConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Type     string   `koanf:"type"`
	Minute   int      `koanf:"minute"`
	Times    []string `koanf:"times"`
	Days     []string `koanf:"days"`
	Dates    []int    `koanf:"dates"`
	Time     string   `koanf:"time"`
	Cron     string   `koanf:"cron"`
	Timezone string   `koanf:"timezone"`
	DryRun   bool     `koanf:"dry_run"`
}

// KometaConfig controls the collection and overlay YAML export.
type KometaConfig struct {
	Enabled        bool         `koanf:"enabled"`
	CollectionsDir string       `koanf:"collections_dir"`
	OverlaysDir    string       `koanf:"overlays_dir"`
	Overlay        OverlayStyle `koanf:"overlay"`
}

// OverlayStyle is the text banner drawn on episode posters.
type OverlayStyle struct {
	HorizontalOffset int    `koanf:"horizontal_offset" yaml:"horizontal_offset"`
	HorizontalAlign  string `koanf:"horizontal_align" yaml:"horizontal_align"`
	VerticalOffset   int    `koanf:"vertical_offset" yaml:"vertical_offset"`
	VerticalAlign    string `koanf:"vertical_align" yaml:"vertical_align"`
	FontSize         int    `koanf:"font_size" yaml:"font_size"`
	Font             string `koanf:"font" yaml:"font"`
	BackWidth        int    `koanf:"back_width" yaml:"back_width"`
	BackHeight       int    `koanf:"back_height" yaml:"back_height"`
	BackColor        string `koanf:"back_color" yaml:"back_color"`
}

// NotificationsConfig holds outbound notification targets.
type NotificationsConfig struct {
	Discord DiscordConfig `koanf:"discord"`
}

// DiscordConfig configures the Discord webhook notifier.
type DiscordConfig struct {
	Enabled    bool          `koanf:"enabled"`
	WebhookURL string        `koanf:"webhook_url"`
	MinSpacing time.Duration `koanf:"min_spacing"`
}

// SecurityConfig protects the HTTP API and the stored token.
type SecurityConfig struct {
	APIKey            string        `koanf:"api_key"`
	TokenSecret       string        `koanf:"token_secret"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// ListenAddr returns host:port for the HTTP server.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// BadgerDir is the mapping store directory.
func (c *Config) BadgerDir() string { return filepath.Join(c.Data.Dir, "badger") }

// TokenPath is the Trakt token file.
func (c *Config) TokenPath() string { return filepath.Join(c.Data.Dir, "trakt_token.json") }

// LockPath is the process lock guarding the data directory.
func (c *Config) LockPath() string { return filepath.Join(c.Data.Dir, ".episodarr.lock") }

// LogConfig converts the logging section to logging.Config.
func (c *Config) LogConfig() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.Logging.Level
	lc.Format = c.Logging.Format
	lc.Caller = c.Logging.Caller
	lc.File = c.Logging.File
	if c.Logging.MaxSizeMB > 0 {
		lc.MaxSizeMB = c.Logging.MaxSizeMB
	}
	if c.Logging.MaxBackups > 0 {
		lc.MaxBackups = c.Logging.MaxBackups
	}
	if c.Logging.MaxAgeDays > 0 {
		lc.MaxAgeDays = c.Logging.MaxAgeDays
	}
	return lc
}
