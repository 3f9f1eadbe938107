// Package profile defines the durable cross-session user profile document
// and its merge/migration rules. The profile is a small, human-readable
// JSON file the user-profile subscriber updates opportunistically — it is
// advisory context fed back into future system prompts, never a source of
// truth the agent depends on for correctness.
package profile

import (
	"encoding/json"
	"time"
)

// CurrentVersion is the document version this package reads and writes.
const CurrentVersion = 2

// Environment captures inferred facts about the user's working environment.
type Environment struct {
	OS             string `json:"os,omitempty"`
	Shell          string `json:"shell,omitempty"`
	PackageManager string `json:"packageManager,omitempty"`
	NodeVersion    string `json:"nodeVersion,omitempty"`
}

// StableProfile is the accumulated, slowly-changing signal about a user.
type StableProfile struct {
	PreferredLanguage string      `json:"preferredLanguage,omitempty"`
	CodingLanguages   []string    `json:"codingLanguages,omitempty"`
	Environment       Environment `json:"environment,omitempty"`
	Preferences       []string    `json:"preferences,omitempty"`
	RecentFocus       string      `json:"recentFocus,omitempty"`
	LastWorkspace     string      `json:"lastWorkspace,omitempty"`
}

// Document is the on-disk v2 profile shape.
type Document struct {
	Version       int           `json:"version"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	StableProfile StableProfile `json:"stableProfile"`
}

// legacyDocument is the v1 shape this package migrates on read: a single
// freeform exit-focus note with no structured fields.
type legacyDocument struct {
	Focus     string    `json:"focus"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewDocument returns an empty v2 document stamped at updatedAt.
func NewDocument(updatedAt time.Time) Document {
	return Document{Version: CurrentVersion, UpdatedAt: updatedAt}
}

// MigrateLegacy converts a v1 document into a v2 one, keeping only its
// latest exit focus — v1 carried no other structured signal.
func MigrateLegacy(raw []byte) (Document, error) {
	var legacy legacyDocument
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return Document{}, err
	}
	doc := NewDocument(legacy.UpdatedAt)
	doc.StableProfile.RecentFocus = legacy.Focus
	return doc, nil
}

// Signals is one batch of heuristic observations the subscriber extracted
// from a user message or summary. Zero-value fields are "no opinion" and
// never overwrite an existing value during Merge.
type Signals struct {
	PreferredLanguage string
	CodingLanguages   []string
	Environment       Environment
	Preferences       []string
	RecentFocus       string
	LastWorkspace     string
}

// Merge folds s into base, returning the updated profile. Scalar fields are
// overwritten only when s supplies a non-empty value (last-observed wins);
// slice fields are unioned, preserving base's existing order and appending
// only values not already present.
func Merge(base StableProfile, s Signals) StableProfile {
	out := base
	if s.PreferredLanguage != "" {
		out.PreferredLanguage = s.PreferredLanguage
	}
	out.CodingLanguages = unionStrings(out.CodingLanguages, s.CodingLanguages)
	out.Preferences = unionStrings(out.Preferences, s.Preferences)
	if s.Environment.OS != "" {
		out.Environment.OS = s.Environment.OS
	}
	if s.Environment.Shell != "" {
		out.Environment.Shell = s.Environment.Shell
	}
	if s.Environment.PackageManager != "" {
		out.Environment.PackageManager = s.Environment.PackageManager
	}
	if s.Environment.NodeVersion != "" {
		out.Environment.NodeVersion = s.Environment.NodeVersion
	}
	if s.RecentFocus != "" {
		out.RecentFocus = s.RecentFocus
	}
	if s.LastWorkspace != "" {
		out.LastWorkspace = s.LastWorkspace
	}
	return out
}

func unionStrings(existing, add []string) []string {
	if len(add) == 0 {
		return existing
	}
	seen := make(map[string]bool, len(existing))
	for _, v := range existing {
		seen[v] = true
	}
	out := existing
	for _, v := range add {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
