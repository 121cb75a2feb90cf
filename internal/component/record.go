// Package component defines the canonical component record and the
// normalizers that turn raw source payloads into records.
//
// A Record's identity (ID) is derived from provenance only: source kind,
// library, version, and component name. Its ContentHash covers the
// descriptive payload, so the indexer can detect unchanged re-submissions
// without comparing field by field.
package component

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	dexerrors "github.com/uidex/uidex/internal/errors"
)

// SourceKind identifies where a record was sourced from.
type SourceKind string

const (
	// SourceRegistry marks records normalized from npm registry data.
	SourceRegistry SourceKind = "registry"
	// SourceStorybook marks records normalized from storybook sites.
	SourceStorybook SourceKind = "storybook"
)

// Valid reports whether k is a known source kind.
func (k SourceKind) Valid() bool {
	return k == SourceRegistry || k == SourceStorybook
}

// Record is the canonical representation of one UI component.
type Record struct {
	// ID is the hex SHA-256 of (source kind, library, version, name).
	ID string `json:"id"`

	SourceKind SourceKind `json:"source_kind"`
	Library    string     `json:"library"`
	Name       string     `json:"name"`
	Version    string     `json:"version"`

	// Descriptive payload. Changing any of these changes ContentHash
	// but never ID.
	Description string   `json:"description,omitempty"`
	PropsSchema string   `json:"props_schema,omitempty"`
	Snippet     string   `json:"snippet,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Category    string   `json:"category,omitempty"`
	SourceURL   string   `json:"source_url,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`

	// ContentHash is the hex SHA-256 over the descriptive payload
	// fields in fixed order.
	ContentHash string `json:"content_hash"`

	// IndexedAt is set by the indexer on successful upsert.
	// It never participates in either hash.
	IndexedAt time.Time `json:"indexed_at,omitempty"`
}

// RecordID returns the deterministic identity hash for a component.
func RecordID(kind SourceKind, library, version, name string) string {
	return hashParts(string(kind), library, version, name)
}

// hashParts hashes parts joined by NUL so no field boundary ambiguity
// can produce colliding inputs.
func hashParts(parts ...string) string {
	h := sha256.New()
	for i, part := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// computeContentHash hashes the descriptive payload in fixed order.
// Slices are joined with a unit separator to stay order-sensitive
// but boundary-unambiguous.
func (r *Record) computeContentHash() string {
	return hashParts(
		r.Description,
		r.PropsSchema,
		r.Snippet,
		strings.Join(r.Tags, "\x1f"),
		r.Category,
		r.SourceURL,
		strings.Join(r.Keywords, "\x1f"),
	)
}

// Finalize computes ID and ContentHash from the current field values.
// Call after all descriptive fields are populated.
func (r *Record) Finalize() {
	r.ID = RecordID(r.SourceKind, r.Library, r.Version, r.Name)
	r.ContentHash = r.computeContentHash()
}

// Validate checks that the record carries a complete identity.
func (r *Record) Validate() error {
	switch {
	case !r.SourceKind.Valid():
		return dexerrors.ValidationError("record has unknown source kind: "+string(r.SourceKind), nil)
	case r.Library == "":
		return dexerrors.ValidationError("record is missing library", nil)
	case r.Name == "":
		return dexerrors.ValidationError("record is missing component name", nil)
	case r.Version == "":
		return dexerrors.ValidationError("record is missing version", nil)
	case r.ID == "":
		return dexerrors.ValidationError("record ID not computed, call Finalize", nil)
	}
	return nil
}

// maxSnippetLen bounds the snippet portion of the embedding text.
const maxSnippetLen = 500

// EmbeddingText builds the deterministic text that gets embedded for
// this record. Same record content always yields the same text.
func (r *Record) EmbeddingText() string {
	parts := make([]string, 0, 6)

	if r.Name != "" {
		parts = append(parts, "Component: "+r.Name)
	}
	if r.Description != "" {
		parts = append(parts, r.Description)
	}
	if r.Library != "" {
		parts = append(parts, "Library: "+r.Library)
	}
	if len(r.Keywords) > 0 {
		parts = append(parts, "Keywords: "+strings.Join(r.Keywords, ", "))
	}
	if r.PropsSchema != "" {
		parts = append(parts, "Props: "+r.PropsSchema)
	}
	if r.Snippet != "" {
		snippet := r.Snippet
		if len(snippet) > maxSnippetLen {
			snippet = snippet[:maxSnippetLen]
		}
		parts = append(parts, snippet)
	}

	return strings.Join(parts, " ")
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	clone := *r
	if r.Tags != nil {
		clone.Tags = append([]string(nil), r.Tags...)
	}
	if r.Keywords != nil {
		clone.Keywords = append([]string(nil), r.Keywords...)
	}
	return &clone
}
