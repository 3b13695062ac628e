// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package validation

import (
	"strings"
	"sync"
	"testing"

	"github.com/tomtom215/episodarr/internal/models"
)

func TestGetValidator_Singleton(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	results := make(chan interface{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- GetValidator()
		}()
	}
	wg.Wait()
	close(results)

	first := GetValidator()
	for v := range results {
		if v != first {
			t.Fatal("GetValidator returned different instances")
		}
	}
}

func TestIsSlug(t *testing.T) {
	t.Parallel()

	valid := []string{"naruto", "one-piece", "jujutsu-kaisen-2"}
	invalid := []string{"", "One-Piece", "one--piece", "-naruto", "naruto-", "one piece", "../etc"}
	for _, s := range valid {
		if !IsSlug(s) {
			t.Errorf("IsSlug(%q) = false", s)
		}
	}
	for _, s := range invalid {
		if IsSlug(s) {
			t.Errorf("IsSlug(%q) = true", s)
		}
	}
}

func TestValidateStruct_BindingRequest(t *testing.T) {
	t.Parallel()

	ok := models.BindingRequest{Slug: "one-piece", LibraryTitle: "One Piece"}
	if err := ValidateStruct(&ok); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	bad := models.BindingRequest{Slug: "One Piece"}
	verr := ValidateStruct(&bad)
	if verr == nil {
		t.Fatal("expected validation error")
	}
	if len(verr.Errors()) != 2 {
		t.Fatalf("expected 2 field errors, got %d: %v", len(verr.Errors()), verr)
	}

	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "Slug: Slug must be a lower-case catalog slug") {
		t.Errorf("message = %q", apiErr.Message)
	}
	if !strings.Contains(apiErr.Message, "LibraryTitle is required") {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestValidateStruct_OverrideRequest(t *testing.T) {
	t.Parallel()

	req := models.OverrideRequest{Type: "recap", CatalogTitle: "a", TrackedTitle: "b"}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected oneof failure")
	}
	apiErr := verr.ToAPIError()
	if apiErr.Details["tag"] != "oneof" {
		t.Errorf("details = %v", apiErr.Details)
	}
	if !strings.Contains(apiErr.Message, "must be one of: filler manga anime mixed") {
		t.Errorf("message = %q", apiErr.Message)
	}

	req.Type = ""
	if err := ValidateStruct(&req); err != nil {
		t.Errorf("empty type should be allowed: %v", err)
	}
}

func TestToAPIError_Empty(t *testing.T) {
	t.Parallel()

	apiErr := (&RequestValidationError{}).ToAPIError()
	if apiErr.Message != "Validation failed" {
		t.Errorf("message = %q", apiErr.Message)
	}
}
