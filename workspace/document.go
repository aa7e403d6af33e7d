package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	// FormatVersion is written into every saved document.
	FormatVersion = 1
	// Extension is the conventional suffix for workspace files.
	Extension = ".cueforge"
)

var (
	// ErrLocked is returned by Open when another process holds the workspace.
	ErrLocked = errors.New("workspace is locked by another process")
	// ErrVersion is returned for documents written by a newer format.
	ErrVersion = errors.New("unsupported workspace version")
)

// Document is the on-disk envelope around a cue list. Cues are kept as raw
// JSON so the cue package stays the only owner of the cue format.
type Document struct {
	Version        int               `json:"version"`
	Name           string            `json:"name"`
	Cues           []json.RawMessage `json:"cues"`
	GroupExpansion map[string]bool   `json:"groupExpansion,omitempty"`
	StandByCueID   string            `json:"standByCueId,omitempty"`
	SavedAt        time.Time         `json:"savedAt"`
}

// New returns an empty document with the current version.
func New(name string) Document {
	return Document{
		Version: FormatVersion,
		Name:    name,
		Cues:    []json.RawMessage{},
	}
}

// Decode parses a document and checks its version.
func Decode(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to parse workspace: %w", err)
	}
	if doc.Version == 0 {
		doc.Version = FormatVersion
	}
	if doc.Version > FormatVersion {
		return Document{}, fmt.Errorf("%w: %d", ErrVersion, doc.Version)
	}
	if doc.Cues == nil {
		doc.Cues = []json.RawMessage{}
	}
	return doc, nil
}

// Encode writes a document as indented JSON.
func Encode(doc Document) ([]byte, error) {
	if doc.Version == 0 {
		doc.Version = FormatVersion
	}
	if doc.Cues == nil {
		doc.Cues = []json.RawMessage{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workspace: %w", err)
	}
	return data, nil
}

// TitleFor derives a display title from a workspace path.
func TitleFor(path string) string {
	if path == "" {
		return "Untitled"
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
