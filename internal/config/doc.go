// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

/*
Package config loads and validates Episodarr configuration.

# Configuration Sources

Values are layered with koanf, later sources winning:

 1. Defaults (defaultConfig, loaded through the structs provider)
 2. YAML file: CONFIG_PATH, or config.yaml / config.yml / /etc/episodarr/config.yaml
 3. Environment variables (explicit mapping table in koanf.go)

# Sections

  - server: HTTP listen address and timeouts
  - logging: level, format, optional rotated log file
  - data: data directory (Badger store, token file, process lock)
  - trakt: OAuth application, rate limits, retry policy, circuit breaker
  - plex: optional library used for orphan scans and show id resolution
  - catalog: AnimeFillerList scraper pacing
  - matching: title matching mode and fuzzy threshold
  - sync: batch size, worker count, run lock deadline
  - scheduler: when the batch run fires
  - kometa: collection and overlay YAML output
  - notifications: Discord webhook
  - security: API key, token encryption secret, CORS, HTTP rate limit

# Example

	server:
	  port: 8585
	trakt:
	  client_id: abc
	  client_secret: def
	  username: me
	scheduler:
	  type: daily
	  times: ["03:00"]

Trakt tokens are stored encrypted (AES-256-GCM, HKDF-SHA256 key) when
security.token_secret is set; see TokenEncryptor.
*/
package config
