package records

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/tenantguard/pkg/logger"
	"github.com/dmitrymomot/tenantguard/pkg/pg"
	"github.com/dmitrymomot/tenantguard/pkg/rls"
)

// Handler serves the records endpoints.
type Handler struct {
	store  *Store
	logger *slog.Logger
}

// NewHandler returns a Handler backed by store.
func NewHandler(store *Store, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{store: store, logger: log}
}

// Routes mounts the endpoints on a new router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.remove)
	return r
}

type listResponse struct {
	Data  []Record `json:"data"`
	Count int      `json:"count"`
}

type createRequest struct {
	Title string `json:"title"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.conn(w, r)
	if !ok {
		return
	}
	list, err := h.store.List(r.Context(), conn)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []Record{}
	}
	writeJSON(w, http.StatusOK, listResponse{Data: list, Count: len(list)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	conn, ok := h.conn(w, r)
	if !ok {
		return
	}
	rec, err := h.store.Get(r.Context(), conn, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}
	conn, ok := h.conn(w, r)
	if !ok {
		return
	}
	rec, err := h.store.Create(r.Context(), conn, req.Title)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	conn, ok := h.conn(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), conn, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// conn returns the request's tenant-bound connection. Handlers never fall back
// to the pool or to an unbound public connection: a query there would run
// without a tenant context.
func (h *Handler) conn(w http.ResponseWriter, r *http.Request) (rls.Conn, bool) {
	conn, ok := rls.ConnFromContext(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "records handler reached without a bound connection", logger.Path(r.URL.Path))
		writeError(w, http.StatusForbidden, "tenant_required", "tenant required for this resource")
		return nil, false
	}
	return conn, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "record not found")
	case errors.Is(err, ErrInvalidTitle):
		writeError(w, http.StatusBadRequest, "invalid_title", "title is required")
	case pg.IsRLSViolationError(err):
		h.logger.WarnContext(r.Context(), "write rejected by row-level security", logger.Error(err))
		writeError(w, http.StatusForbidden, "forbidden", "row belongs to another tenant")
	default:
		h.logger.ErrorContext(r.Context(), "records query failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}
