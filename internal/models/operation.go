// ABOUTME: Logical workspace operations and their request/result shapes
// ABOUTME: Every backend tier consumes an Operation and returns a Result
package models

import (
	"errors"
	"strings"
)

// OpKind names a logical operation independent of the backend serving it
type OpKind string

const (
	OpSearch            OpKind = "search"
	OpViewPage          OpKind = "view_page"
	OpViewDatabase      OpKind = "view_database"
	OpViewBlockChildren OpKind = "view_block_children"
	OpCreatePage        OpKind = "create_page"
	OpUpdatePage        OpKind = "update_page"
)

// ViewOp maps a resource kind to the operation that reads it
func ViewOp(kind ResourceKind) OpKind {
	switch kind {
	case KindDatabase:
		return OpViewDatabase
	case KindBlock:
		return OpViewBlockChildren
	default:
		return OpViewPage
	}
}

// SearchFilter narrows a search to one object type
type SearchFilter struct {
	Object   string `json:"object,omitempty"` // "page" or "database"
	PageSize int    `json:"page_size,omitempty"`
}

// PageParent holds the candidate parents of a new page; at most one is used
type PageParent struct {
	DatabaseID string `json:"database_id,omitempty"`
	PageID     string `json:"page_id,omitempty"`
}

// CreatePageRequest is the canonical create-page input
type CreatePageRequest struct {
	Parent     PageParent       `json:"parent"`
	Title      string           `json:"title"`
	Properties map[string]any   `json:"properties,omitempty"`
	Children   []map[string]any `json:"children,omitempty"`
	// Extra carries backend-specific fields (icon, cover, ...). Fields the
	// target backend does not know are dropped during translation.
	Extra map[string]any `json:"extra,omitempty"`
}

// UpdatePageRequest is the canonical update-page input
type UpdatePageRequest struct {
	PageID     string         `json:"page_id"`
	Title      string         `json:"title,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Archived   *bool          `json:"archived,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// Operation is a tagged request: Kind selects which of the fields is meaningful
type Operation struct {
	Kind   OpKind             `json:"kind"`
	Query  string             `json:"query,omitempty"`
	Filter *SearchFilter      `json:"filter,omitempty"`
	ID     string             `json:"id,omitempty"`
	Create *CreatePageRequest `json:"create,omitempty"`
	Update *UpdatePageRequest `json:"update,omitempty"`
}

// Validate checks the fields the operation kind requires
func (op Operation) Validate() error {
	switch op.Kind {
	case OpSearch:
		return nil
	case OpViewPage, OpViewDatabase, OpViewBlockChildren:
		if strings.TrimSpace(op.ID) == "" {
			return errors.New("id is required")
		}
	case OpCreatePage:
		if op.Create == nil {
			return errors.New("create request is required")
		}
		if strings.TrimSpace(op.Create.Title) == "" {
			return errors.New("title is required")
		}
	case OpUpdatePage:
		if op.Update == nil || strings.TrimSpace(op.Update.PageID) == "" {
			return errors.New("page id is required")
		}
	default:
		return errors.New("unknown operation " + string(op.Kind))
	}
	return nil
}

// Result is what the fallback chain hands back, tagged with the serving tier
type Result struct {
	Op        OpKind      `json:"op"`
	Tier      BackendTier `json:"tier"`
	Resources []Resource  `json:"resources"`
	HasMore   bool        `json:"has_more,omitempty"`
	// Degraded is set when offline synthesis stood in for failed network tiers
	Degraded bool `json:"degraded,omitempty"`
}

// First returns the first resource, or false when the result is empty
func (r *Result) First() (Resource, bool) {
	if r == nil || len(r.Resources) == 0 {
		return Resource{}, false
	}
	return r.Resources[0], true
}
