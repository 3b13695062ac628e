// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package matcher

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// Latin letters that survive NFD decomposition.
	latinFold = strings.NewReplacer(
		"ø", "o", "đ", "d", "ł", "l", "æ", "ae", "œ", "oe", "þ", "th", "ı", "i",
	)

	// Apostrophes join words ("don't" -> "dont"); everything else separates.
	apostrophes = strings.NewReplacer("'", "", "’", "", "‘", "", "`", "")

	nxmMarker = regexp.MustCompile(`^\d+x\d+$`)
)

var leadingArticles = map[string]bool{"the": true, "a": true, "an": true}

var numericMarkers = map[string]bool{"episode": true, "ep": true, "part": true}

// Normalize folds case, strips accents, drops punctuation, collapses
// whitespace and removes one leading article.
//
//	Normalize("The Man-Eating Ghost!") == "man eating ghost"
//	Normalize("Pokémon, Go!") == "pokemon go"
func Normalize(title string) string {
	// Casers and transformers are stateful; build them per call.
	s := cases.Fold().String(title)
	tr := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(tr, s); err == nil {
		s = out
	}
	s = latinFold.Replace(s)
	s = apostrophes.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	if len(words) > 1 && leadingArticles[words[0]] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

// Tokens splits a normalized title into the set used for fuzzy scoring.
// Numbering words ("episode", "ep", "part"), bare numbers and NxM markers
// carry no identity and are dropped.
func Tokens(normalized string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		if numericMarkers[w] || isDigits(w) || nxmMarker.MatchString(w) {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
