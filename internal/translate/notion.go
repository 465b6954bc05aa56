// ABOUTME: Parses Notion-shaped objects and lists into canonical Resources
// ABOUTME: Accepts both Notion REST shapes and MCP tool-result envelopes
package translate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harper/notion-copilot/internal/models"
)

// ParseResponse turns a backend response body into a Result for op
func ParseResponse(op models.Operation, raw []byte) (*models.Result, error) {
	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", op.Kind, err)
	}
	body, err := unwrapToolResult(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op.Kind, err)
	}

	res := &models.Result{Op: op.Kind}
	obj, ok := body.(map[string]any)
	switch {
	case !ok:
		if list, isList := body.([]any); isList {
			res.Resources = parseList(list)
			return res, nil
		}
		return nil, fmt.Errorf("%s: unexpected response %T", op.Kind, body)
	case obj["results"] != nil:
		list, _ := obj["results"].([]any)
		res.Resources = parseList(list)
		res.HasMore, _ = obj["has_more"].(bool)
	default:
		r, ok := ParseObject(obj)
		if !ok {
			return nil, fmt.Errorf("%s: response is not a page, database, or block", op.Kind)
		}
		res.Resources = []models.Resource{r}
	}
	return res, nil
}

// unwrapToolResult opens {content:[{type:"text", text:"<json>"}]} envelopes
func unwrapToolResult(body any) (any, error) {
	obj, ok := body.(map[string]any)
	if !ok {
		return body, nil
	}
	content, ok := obj["content"].([]any)
	if !ok {
		return body, nil
	}

	var text strings.Builder
	for _, c := range content {
		item, _ := c.(map[string]any)
		if item["type"] == "text" {
			s, _ := item["text"].(string)
			text.WriteString(s)
		}
	}
	if isErr, _ := obj["isError"].(bool); isErr {
		return nil, errors.New(strings.TrimSpace(text.String()))
	}

	var inner any
	if err := json.Unmarshal([]byte(text.String()), &inner); err != nil {
		return nil, fmt.Errorf("tool result is not JSON: %w", err)
	}
	return inner, nil
}

func parseList(list []any) []models.Resource {
	out := make([]models.Resource, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if r, ok := ParseObject(obj); ok {
			out = append(out, r)
		}
	}
	return out
}

// ParseObject converts one Notion page, database, or block object
func ParseObject(obj map[string]any) (models.Resource, bool) {
	kind := models.ResourceKind(str(obj["object"]))
	switch kind {
	case models.KindPage, models.KindDatabase, models.KindBlock:
	default:
		return models.Resource{}, false
	}

	r := models.Resource{
		Kind:      kind,
		ID:        str(obj["id"]),
		URL:       str(obj["url"]),
		CreatedAt: parseTime(obj["created_time"]),
		EditedAt:  parseTime(obj["last_edited_time"]),
		Parent:    parseParent(obj["parent"]),
	}
	r.Archived, _ = obj["archived"].(bool)

	switch kind {
	case models.KindPage:
		props, _ := obj["properties"].(map[string]any)
		r.Properties = props
		r.Title = TitleFromProperties(props)
	case models.KindDatabase:
		props, _ := obj["properties"].(map[string]any)
		r.Properties = props
		r.Title = richText(obj["title"])
	case models.KindBlock:
		r.BlockType = str(obj["type"])
		r.HasChildren, _ = obj["has_children"].(bool)
		r.Payload, _ = obj[r.BlockType].(map[string]any)
		if r.Payload != nil {
			r.Title = richText(r.Payload["rich_text"])
		}
	}
	return r, true
}

// TitleFromProperties finds the title in either backend's property shape:
// {"title": [rich text]} or {"<name>": {"type": "title", "title": [rich text]}}
func TitleFromProperties(props map[string]any) string {
	if props == nil {
		return ""
	}
	if list, ok := props["title"].([]any); ok {
		return richText(list)
	}
	if prop, ok := props["title"].(map[string]any); ok {
		if t := richText(prop["title"]); t != "" {
			return t
		}
	}
	for _, v := range props {
		prop, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if prop["type"] == "title" || prop["title"] != nil {
			if t := richText(prop["title"]); t != "" {
				return t
			}
		}
	}
	return ""
}

// richText concatenates a rich text array's plain text
func richText(v any) string {
	list, ok := v.([]any)
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, item := range list {
		rt, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if s, ok := rt["plain_text"].(string); ok {
			b.WriteString(s)
			continue
		}
		if text, ok := rt["text"].(map[string]any); ok {
			b.WriteString(str(text["content"]))
		}
	}
	return b.String()
}

func parseParent(v any) *models.ParentRef {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range []string{"database_id", "page_id", "block_id"} {
		if id := str(obj[key]); id != "" {
			return &models.ParentRef{Type: key, ID: id}
		}
	}
	if ws, _ := obj["workspace"].(bool); ws || obj["type"] == "workspace" {
		return &models.ParentRef{Type: "workspace"}
	}
	return nil
}

func parseTime(v any) time.Time {
	s := str(v)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
