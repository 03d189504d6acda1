package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/service"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/tools"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

// filterPrefix marks keyword filters in the search query string, as in
// filter.filename=README.md.
const filterPrefix = "filter."

const maxToolBody = 1 << 20

// Reloader rebuilds and republishes the index.
type Reloader interface {
	Rebuild(ctx context.Context) (*index.Index, error)
}

type Handler struct {
	search   *service.Service
	tools    *tools.Registry
	reloader Reloader
	logger   *slog.Logger
}

// New builds the HTTP handlers. reg and reloader may be nil, in which case
// their endpoints report 503.
func New(svc *service.Service, reg *tools.Registry, reloader Reloader) *Handler {
	return &Handler{
		search:   svc,
		tools:    reg,
		reloader: reloader,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/search/explain", h.Explain)
	mux.HandleFunc("GET /api/v1/tools", h.ListTools)
	mux.HandleFunc("POST /api/v1/tools/{name}", h.CallTool)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/index", h.IndexStats)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := params.Get("q")
	if strings.TrimSpace(query) == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.search.DefaultLimit()
	if limitStr := params.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	var filters map[string]string
	for key, values := range params {
		field, ok := strings.CutPrefix(key, filterPrefix)
		if !ok || field == "" || len(values) == 0 {
			continue
		}
		if filters == nil {
			filters = make(map[string]string)
		}
		filters[field] = values[len(values)-1]
	}

	result, err := h.search.Search(r.Context(), service.Request{
		Query:   query,
		Limit:   limit,
		Filters: filters,
		Source:  "http",
	})
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// Explain breaks down the score of one document, selected by id, for q.
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query, id := params.Get("q"), params.Get("id")
	if strings.TrimSpace(query) == "" || id == "" {
		h.writeError(w, http.StatusBadRequest, "query parameters 'q' and 'id' are required")
		return
	}
	result, err := h.search.Explain(r.Context(), query, id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ListTools(w http.ResponseWriter, r *http.Request) {
	if h.tools == nil {
		h.writeError(w, http.StatusServiceUnavailable, "tools are disabled")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"tools": h.tools.List()})
}

func (h *Handler) CallTool(w http.ResponseWriter, r *http.Request) {
	if h.tools == nil {
		h.writeError(w, http.StatusServiceUnavailable, "tools are disabled")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxToolBody))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	name := r.PathValue("name")
	out, err := h.tools.Dispatch(r.Context(), name, body)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"tool": name, "result": out})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	c := h.search.Cache()
	if c == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, c.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	c := h.search.Cache()
	if c == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := c.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"ready":      h.search.Ready(),
		"generation": h.search.Generation(),
		"documents":  h.search.Documents(),
	})
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		h.writeError(w, http.StatusServiceUnavailable, "reload is disabled")
		return
	}
	idx, err := h.reloader.Rebuild(r.Context())
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "reloaded",
		"generation": idx.Fingerprint(),
		"documents":  idx.Len(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps err onto a status code. Internal failures are logged and
// reported without detail.
func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		h.writeError(w, status, "internal error")
		return
	}
	h.writeError(w, status, err.Error())
}
