package rag

import (
	"regexp"
	"strconv"

	"docintel/internal/retrieve"
)

// markerRe matches bracketed integer citation markers like "[3]". No
// third-party regex engine in the dependency set buys anything over the
// standard library for a pattern this small; see DESIGN.md.
var markerRe = regexp.MustCompile(`\[(\d+)\]`)

// Citation binds one unique marker found in generated text to the source it
// refers to.
type Citation struct {
	Marker     int     `json:"number"`
	ChunkID    int64   `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"document_filename"`
	Page       int     `json:"page_number,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
	Preview    string  `json:"content_preview"`
}

// Violation reports a citation marker whose integer falls outside the valid
// range [1, n].
type Violation struct {
	Marker   int `json:"marker"`
	Position int `json:"position"`
}

// extractMarkers returns the ordered list of integers appearing in [n]
// markers, duplicates included, in order of first character position.
func extractMarkers(text string) []int {
	matches := markerRe.FindAllStringSubmatch(text, -1)
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// validateMarkers reports every marker whose integer falls outside [1, n].
func validateMarkers(text string, n int) (bool, []Violation) {
	idx := markerRe.FindAllStringSubmatchIndex(text, -1)
	var violations []Violation
	for _, m := range idx {
		val, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		if val < 1 || val > n {
			violations = append(violations, Violation{Marker: val, Position: m[0]})
		}
	}
	return len(violations) == 0, violations
}

const previewLength = 240

// bindCitations returns one Citation per unique marker appearing in text, in
// first-appearance order, for markers that fall within [1, len(sources)].
// Out-of-range markers are silently skipped; callers get violations
// separately via validateMarkers.
func bindCitations(text string, sources []retrieve.EnrichedResult) []Citation {
	seen := map[int]bool{}
	var out []Citation
	for _, n := range extractMarkers(text) {
		if seen[n] {
			continue
		}
		seen[n] = true
		if n < 1 || n > len(sources) {
			continue
		}
		s := sources[n-1]
		preview := s.Content
		if len(preview) > previewLength {
			preview = preview[:previewLength]
		}
		out = append(out, Citation{
			Marker:     n,
			ChunkID:    s.ChunkID,
			DocumentID: s.DocumentID,
			Filename:   s.Filename,
			Page:       s.Page,
			ChunkIndex: s.ChunkIndex,
			Score:      s.Score,
			Preview:    preview,
		})
	}
	return out
}
