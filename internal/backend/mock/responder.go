// ABOUTME: Offline synthesis of structurally valid, clearly labelled placeholder resources
// ABOUTME: Pure: the clock and random source are injected, nothing touches the network
package mock

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/harper/notion-copilot/internal/models"
)

// TitleSuffix marks every synthesized title
const TitleSuffix = " (Offline Mode)"

// IDPrefix starts every synthesized id
const IDPrefix = "mock_"

// SearchResultCount is the fixed size of an offline search
const SearchResultCount = 3

// Responder maps operations to placeholder results
type Responder struct {
	now  func() time.Time
	rand func() uint64
}

// NewResponder uses the wall clock and math/rand/v2
func NewResponder() *Responder {
	return &Responder{now: time.Now, rand: rand.Uint64}
}

// NewResponderWith injects the clock and random source
func NewResponderWith(now func() time.Time, random func() uint64) *Responder {
	return &Responder{now: now, rand: random}
}

// Respond synthesizes the result for op
func (r *Responder) Respond(op models.Operation) *models.Result {
	now := r.now().UTC()
	res := &models.Result{Op: op.Kind, Tier: models.TierOffline}

	switch op.Kind {
	case models.OpSearch:
		res.Resources = r.search(op, now)
	case models.OpViewPage:
		res.Resources = []models.Resource{r.page(now, "Page "+op.ID, map[string]any{"requested_id": op.ID}, nil)}
	case models.OpViewDatabase:
		db := r.page(now, "Database "+op.ID, map[string]any{"requested_id": op.ID}, nil)
		db.Kind = models.KindDatabase
		res.Resources = []models.Resource{db}
	case models.OpViewBlockChildren:
		res.Resources = []models.Resource{{
			Kind:      models.KindBlock,
			ID:        r.id(now),
			Title:     "Block content unavailable" + TitleSuffix,
			CreatedAt: now,
			EditedAt:  now,
			Parent:    &models.ParentRef{Type: "block_id", ID: op.ID},
			BlockType: "paragraph",
			Payload: map[string]any{
				"rich_text": []any{map[string]any{"plain_text": "Block content unavailable" + TitleSuffix}},
			},
			Properties: map[string]any{"requested_id": op.ID},
		}}
	case models.OpCreatePage:
		if op.Create != nil {
			res.Resources = []models.Resource{r.page(now, op.Create.Title, copyProps(op.Create.Properties), parentOf(op.Create.Parent))}
		}
	case models.OpUpdatePage:
		if op.Update != nil {
			title := op.Update.Title
			if title == "" {
				title = "Page " + op.Update.PageID
			}
			props := copyProps(op.Update.Properties)
			props["requested_id"] = op.Update.PageID
			page := r.page(now, title, props, nil)
			if op.Update.Archived != nil {
				page.Archived = *op.Update.Archived
			}
			res.Resources = []models.Resource{page}
		}
	}
	return res
}

func (r *Responder) search(op models.Operation, now time.Time) []models.Resource {
	kinds := []models.ResourceKind{models.KindPage, models.KindPage, models.KindDatabase}
	if op.Filter != nil {
		switch op.Filter.Object {
		case "page":
			kinds = []models.ResourceKind{models.KindPage, models.KindPage, models.KindPage}
		case "database":
			kinds = []models.ResourceKind{models.KindDatabase, models.KindDatabase, models.KindDatabase}
		}
	}

	out := make([]models.Resource, 0, SearchResultCount)
	for i, kind := range kinds {
		title := fmt.Sprintf("Sample %s %d", kind, i+1)
		if op.Query != "" {
			title = fmt.Sprintf("%q result %d", op.Query, i+1)
		}
		res := r.page(now, title, map[string]any{"query": op.Query}, nil)
		res.Kind = kind
		out = append(out, res)
	}
	return out
}

func (r *Responder) page(now time.Time, title string, props map[string]any, parent *models.ParentRef) models.Resource {
	if props == nil {
		props = map[string]any{}
	}
	props["offline"] = true
	id := r.id(now)
	if parent == nil {
		parent = &models.ParentRef{Type: "workspace"}
	}
	return models.Resource{
		Kind:       models.KindPage,
		ID:         id,
		Title:      title + TitleSuffix,
		URL:        "offline://" + id,
		CreatedAt:  now,
		EditedAt:   now,
		Properties: props,
		Parent:     parent,
	}
}

func (r *Responder) id(now time.Time) string {
	return IDPrefix + strconv.FormatInt(now.Unix(), 10) + "_" + strconv.FormatUint(r.rand()%(1<<40), 36)
}

func parentOf(p models.PageParent) *models.ParentRef {
	switch {
	case p.DatabaseID != "":
		return &models.ParentRef{Type: "database_id", ID: p.DatabaseID}
	case p.PageID != "":
		return &models.ParentRef{Type: "page_id", ID: p.PageID}
	}
	return &models.ParentRef{Type: "workspace"}
}

func copyProps(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Tier adapts a Responder to the fallback chain
type Tier struct {
	responder *Responder
}

func NewTier(r *Responder) *Tier {
	return &Tier{responder: r}
}

func (t *Tier) Name() models.BackendTier { return models.TierOffline }

func (t *Tier) Available() bool { return true }

func (t *Tier) Do(_ context.Context, op models.Operation) (*models.Result, error) {
	return t.responder.Respond(op), nil
}
