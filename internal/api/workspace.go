// ABOUTME: Workspace endpoints: search, view, create page, update page
// ABOUTME: Responses are the canonical Result, tagged with the tier that served them
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/harper/notion-copilot/internal/models"
)

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter *models.SearchFilter
	object := q.Get("type")
	pageSize := 0
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "page_size must be a non-negative integer")
			return
		}
		pageSize = n
	}
	if object != "" && object != "page" && object != "database" {
		Error(w, http.StatusBadRequest, "type must be page or database")
		return
	}
	if object != "" || pageSize > 0 {
		filter = &models.SearchFilter{Object: object, PageSize: pageSize}
	}

	res, err := h.ws.Search(r.Context(), q.Get("q"), filter)
	if err != nil {
		h.fail(w, r, "search", err)
		return
	}
	JSON(w, http.StatusOK, res)
}

func (h *Handler) view(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseResourceKind(chi.URLParam(r, "kind"))
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.ws.View(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "view", err)
		return
	}
	JSON(w, http.StatusOK, res)
}

func (h *Handler) createPage(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePageRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		Error(w, http.StatusBadRequest, "title is required")
		return
	}

	res, err := h.ws.CreatePage(r.Context(), req)
	if err != nil {
		h.fail(w, r, "create_page", err)
		return
	}
	JSON(w, http.StatusCreated, res)
}

func (h *Handler) updatePage(w http.ResponseWriter, r *http.Request) {
	var req models.UpdatePageRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.PageID = chi.URLParam(r, "id")

	res, err := h.ws.UpdatePage(r.Context(), req)
	if err != nil {
		h.fail(w, r, "update_page", err)
		return
	}
	JSON(w, http.StatusOK, res)
}
