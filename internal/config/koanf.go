// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"config/config.yaml",
	"/etc/episodarr/config.yaml",
	"/etc/episodarr/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with every default applied.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8585,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Data: DataConfig{
			Dir: "/data",
		},
		Trakt: TraktConfig{
			BaseURL:            "https://api.trakt.tv",
			Timeout:            30 * time.Second,
			ReadRequests:       1000,
			ReadWindow:         5 * time.Minute,
			ReadBurst:          20,
			WritesPerSecond:    1,
			WriteBurst:         1,
			MaxAttempts:        5,
			RetryBaseDelay:     time.Second,
			RateLimitMaxDelay:  60 * time.Second,
			TransientMaxDelay:  10 * time.Second,
			BreakerMaxFailures: 5,
			BreakerTimeout:     time.Minute,
			RefreshWindow:      time.Hour,
		},
		Plex: PlexConfig{
			Enabled:   false,
			Libraries: []string{"Anime"},
			Timeout:   30 * time.Second,
		},
		Catalog: CatalogConfig{
			BaseURL:           "https://www.animefillerlist.com",
			RequestsPerSecond: 0.5,
			Burst:             1,
			Timeout:           30 * time.Second,
			UserAgent:         "Episodarr/1.0 (+https://github.com/tomtom215/episodarr)",
			CacheTTL:          time.Hour,
			CacheSize:         256,
		},
		Matching: MatchingConfig{
			Mode:      "title",
			Threshold: 0.6,
		},
		Sync: SyncConfig{
			BatchSize:    100,
			BatchTimeout: 2 * time.Minute,
			Workers:      3,
			LockTimeout:  2 * time.Hour,
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Type:     "daily",
			Times:    []string{"03:00"},
			Time:     "03:00",
			Timezone: "UTC",
		},
		Kometa: KometaConfig{
			Enabled:        true,
			CollectionsDir: "/kometa/config/collections",
			OverlaysDir:    "/kometa/config/overlays",
			Overlay: OverlayStyle{
				HorizontalOffset: 0,
				HorizontalAlign:  "center",
				VerticalOffset:   0,
				VerticalAlign:    "top",
				FontSize:         75,
				Font:             "config/fonts/Juventus-Fans-Bold.ttf",
				BackWidth:        1920,
				BackHeight:       125,
				BackColor:        "#262626",
			},
		},
		Notifications: NotificationsConfig{
			Discord: DiscordConfig{
				MinSpacing: time.Second,
			},
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
	}
}

// Load reads defaults, the config file and the environment, then validates.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config file path. An empty path falls
// back to CONFIG_PATH and DefaultConfigPaths.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Defaults returns the default configuration without reading any source.
func Defaults() *Config {
	return defaultConfig()
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are split on commas when they arrive as a single env string.
var sliceConfigPaths = []string{
	"plex.libraries",
	"scheduler.times",
	"scheduler.days",
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"http_host":        "server.host",
	"http_port":        "server.port",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
	"log_file":   "logging.file",

	"data_dir": "data.dir",

	"trakt_base_url":      "trakt.base_url",
	"trakt_client_id":     "trakt.client_id",
	"trakt_client_secret": "trakt.client_secret",
	"trakt_username":      "trakt.username",
	"trakt_timeout":       "trakt.timeout",
	"trakt_max_attempts":  "trakt.max_attempts",

	"plex_enabled":   "plex.enabled",
	"plex_url":       "plex.url",
	"plex_token":     "plex.token",
	"plex_libraries": "plex.libraries",

	"catalog_base_url":            "catalog.base_url",
	"catalog_requests_per_second": "catalog.requests_per_second",
	"catalog_cache_ttl":           "catalog.cache_ttl",

	"match_mode":      "matching.mode",
	"match_threshold": "matching.threshold",

	"sync_batch_size":   "sync.batch_size",
	"sync_workers":      "sync.workers",
	"sync_lock_timeout": "sync.lock_timeout",
	"dry_run":           "sync.dry_run",

	"scheduler_enabled": "scheduler.enabled",
	"schedule_type":     "scheduler.type",
	"schedule_minute":   "scheduler.minute",
	"schedule_times":    "scheduler.times",
	"schedule_days":     "scheduler.days",
	"schedule_time":     "scheduler.time",
	"schedule_cron":     "scheduler.cron",
	"schedule_timezone": "scheduler.timezone",

	"kometa_enabled":         "kometa.enabled",
	"kometa_collections_dir": "kometa.collections_dir",
	"kometa_overlays_dir":    "kometa.overlays_dir",

	"discord_enabled":     "notifications.discord.enabled",
	"discord_webhook_url": "notifications.discord.webhook_url",

	"api_key":             "security.api_key",
	"token_secret":        "security.token_secret",
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
}

// envTransformFunc maps an environment key to its koanf path, or "" to skip it.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
