package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// versionProbe reads just the version field to decide whether a stored
// document needs v1→v2 migration.
type versionProbe struct {
	Version int `json:"version"`
}

// Load reads the profile document at path, migrating a legacy v1 document
// in place (the caller is responsible for persisting the migrated result).
// A missing file returns a fresh empty v2 document, not an error.
func Load(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Document{Version: CurrentVersion}, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("read profile: %w", err)
	}

	var probe versionProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Document{}, fmt.Errorf("parse profile: %w", err)
	}
	if probe.Version >= CurrentVersion {
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return Document{}, fmt.Errorf("parse profile: %w", err)
		}
		return doc, nil
	}
	return MigrateLegacy(raw)
}

// Save atomically writes doc to path, creating parent directories as
// needed.
func Save(path string, doc Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".profile-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	tmpPath = ""
	return nil
}
