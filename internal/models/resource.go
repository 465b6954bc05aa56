// ABOUTME: Canonical Notion resource shape shared by every backend tier
// ABOUTME: A Resource is a Page, Database, or Block distinguished by Kind
package models

import (
	"fmt"
	"strings"
	"time"
)

// ResourceKind distinguishes the CanonicalResource union members
type ResourceKind string

const (
	KindPage     ResourceKind = "page"
	KindDatabase ResourceKind = "database"
	KindBlock    ResourceKind = "block"
)

// ParseResourceKind accepts the user-facing names for view(type, id)
func ParseResourceKind(s string) (ResourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "page", "pages":
		return KindPage, nil
	case "database", "databases", "db":
		return KindDatabase, nil
	case "block", "blocks":
		return KindBlock, nil
	}
	return "", fmt.Errorf("unknown resource type %q", s)
}

// ParentRef points at the container of a page or block
type ParentRef struct {
	Type string `json:"type"` // database_id, page_id, block_id, workspace
	ID   string `json:"id,omitempty"`
}

// Resource is the CanonicalResource every backend produces.
// Page uses Title/URL/CreatedAt/EditedAt/Properties/Parent; Database uses
// Title/URL/Properties; Block uses BlockType/HasChildren/Parent/Payload.
type Resource struct {
	Kind        ResourceKind   `json:"kind"`
	ID          string         `json:"id"`
	Title       string         `json:"title,omitempty"`
	URL         string         `json:"url,omitempty"`
	CreatedAt   time.Time      `json:"created_at,omitempty"`
	EditedAt    time.Time      `json:"edited_at,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	Parent      *ParentRef     `json:"parent,omitempty"`
	BlockType   string         `json:"block_type,omitempty"`
	HasChildren bool           `json:"has_children,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	Archived    bool           `json:"archived,omitempty"`
}

// DisplayTitle returns the title or a placeholder for untitled resources
func (r Resource) DisplayTitle() string {
	if strings.TrimSpace(r.Title) != "" {
		return r.Title
	}
	if r.Kind == KindBlock && r.BlockType != "" {
		return r.BlockType + " block"
	}
	return "Untitled"
}
