// Package cache provides a content-addressable store for generated workouts.
// Requests are reduced to a canonical fingerprint covering exactly the fields
// that influence generation output; presentation-only fields never change the
// key. The manager layers hit/miss accounting and in-flight lease
// deduplication over a pluggable backend (in-memory LRU or Redis).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ahrav/go-fitplan/internal/domain"
)

// CurrentFingerprintVersion tags the canonicalization format. Increment when
// the canonical payload changes shape so stale entries stop matching.
const CurrentFingerprintVersion = "v1.0"

// canonicalPayload is the stable form hashed into a fingerprint. It carries
// only generation-affecting inputs: two requests that differ solely in
// presentation fields (overrides used for prompt phrasing, profile history,
// preferences) collapse to the same key.
type canonicalPayload struct {
	Version      string   `json:"version"`
	WorkoutType  string   `json:"workout_type"`
	FitnessLevel string   `json:"fitness_level"`
	Focus        string   `json:"focus"`
	Duration     int      `json:"duration_minutes"`
	Energy       int      `json:"energy"`
	Equipment    []string `json:"equipment,omitempty"`
	FocusAreas   []string `json:"focus_areas,omitempty"`
	Soreness     []string `json:"soreness,omitempty"`
	Injuries     []string `json:"injuries,omitempty"`
}

// Fingerprint computes the deterministic SHA-256 hex key for a request.
// Equivalent requests produce identical keys regardless of field ordering,
// casing, or surrounding whitespace in list entries.
func Fingerprint(req *domain.GenerationRequest) (string, error) {
	if req == nil {
		return "", domain.ErrNilRequest
	}

	payload := canonicalPayload{
		Version:     CurrentFingerprintVersion,
		WorkoutType: string(req.WorkoutType),
	}

	if req.UserProfile != nil {
		payload.FitnessLevel = normalizeItem(req.UserProfile.FitnessLevel)
		payload.Injuries = normalizeList(req.UserProfile.Limitations.Injuries)
	}

	if focus := req.FocusData; focus != nil {
		payload.Focus = normalizeItem(focus.Focus.Canonical())
		if minutes, ok := focus.Duration.Canonical(); ok {
			payload.Duration = int(minutes)
		}
		payload.Energy = focus.Energy
		payload.Equipment = normalizeList(focus.Equipment.Canonical())
		payload.FocusAreas = normalizeList(focus.FocusAreas)
		payload.Soreness = canonicalSoreness(focus.Soreness)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal canonical payload: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// normalizeItem lowercases and trims one list entry or enum-ish value.
func normalizeItem(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeList trims, lowercases, dedupes, and sorts entries so input
// ordering cannot perturb the hash.
func normalizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		normalized := normalizeItem(item)
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// canonicalSoreness keeps only selected areas, encoded as "area:rating" and
// sorted. Deselected entries carry no signal for generation.
func canonicalSoreness(soreness map[string]domain.SorenessRating) []string {
	if len(soreness) == 0 {
		return nil
	}
	out := make([]string, 0, len(soreness))
	for area, rating := range soreness {
		if !rating.Selected {
			continue
		}
		out = append(out, fmt.Sprintf("%s:%d", normalizeItem(area), rating.Rating))
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
