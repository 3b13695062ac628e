// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/episodarr/internal/logging"
	"github.com/tomtom215/episodarr/internal/models"
	"github.com/tomtom215/episodarr/internal/validation"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// sanitizeLogValue escapes control characters so request data cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

func respondData(w http.ResponseWriter, status int, data interface{}, start time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", sanitizeLogValue(code)).Str("error", sanitizeLogValue(err.Error())).Msg("API error")
	}
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    &models.APIError{Code: code, Message: message},
	})
}

func respondAPIError(w http.ResponseWriter, status int, apiErr *models.APIError) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    apiErr,
	})
}

// respondErr maps an error kind to its HTTP status.
func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, models.ErrAlreadyRunning):
		respondError(w, http.StatusConflict, "ALREADY_RUNNING", err.Error(), nil)
	case errors.Is(err, models.ErrConfigInvalid):
		respondError(w, http.StatusBadRequest, "INVALID_CONFIGURATION", err.Error(), nil)
	case errors.Is(err, models.ErrAuthExpired):
		respondError(w, http.StatusBadGateway, "AUTH_EXPIRED", "Tracking service authorization expired; run episodarr auth", err)
	case errors.Is(err, models.ErrRateLimited):
		respondError(w, http.StatusServiceUnavailable, "RATE_LIMITED", "Remote service is rate limiting requests", err)
	case errors.Is(err, models.ErrTransientNetwork):
		respondError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Remote service unavailable", err)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
	}
}

// decodeAndValidate reads a JSON body into v and runs struct validation.
// It writes the error response and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Request body too large", nil)
		return false
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_JSON", "Request body is not valid JSON", nil)
			return false
		}
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		respondAPIError(w, http.StatusBadRequest, verr.ToAPIError())
		return false
	}
	return true
}
