package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Togather-Foundation/events-api/internal/api/problem"
	"github.com/Togather-Foundation/events-api/internal/domain/events"
	"github.com/Togather-Foundation/events-api/internal/domain/ids"
	"github.com/rs/zerolog"
)

// EventsHandler serves the /events resource. Env controls whether error
// details reach clients; BaseURL builds the Location header on create.
type EventsHandler struct {
	Service *events.Service
	Env     string
	BaseURL string
}

// NewEventsHandler returns a handler backed by service.
func NewEventsHandler(service *events.Service, env string, baseURL string) *EventsHandler {
	return &EventsHandler{Service: service, Env: env, BaseURL: baseURL}
}

// List handles GET /events.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}

	items, err := h.Service.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Get handles GET /events/{id}.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}

	item, err := h.Service.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Create handles POST /events. The body must be a JSON object; its fields
// are stored as sent under a server generated id.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}

	input, err := readPatch(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.Service.Create(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if uri, err := ids.BuildCanonicalURI(h.BaseURL, "events", created.ID); err == nil {
		w.Header().Set("Location", uri)
	}
	writeJSON(w, http.StatusOK, created)
}

// Update handles PUT /events/{id} with a shallow merge of the body.
func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}

	patch, err := readPatch(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.Service.Update(r.Context(), pathParam(r, "id"), patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete always answers 200 with an empty body, whether or not the record
// existed.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}

	id := pathParam(r, "id")
	removed, err := h.Service.Delete(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !removed {
		zerolog.Ctx(r.Context()).Debug().Str("event_id", id).Msg("delete of unknown event")
	}
	w.WriteHeader(http.StatusOK)
}

func (h *EventsHandler) ready(w http.ResponseWriter, r *http.Request) bool {
	if h == nil || h.Service == nil {
		env := ""
		if h != nil {
			env = h.Env
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Server error", errors.New("events service not configured"), env)
		return false
	}
	return true
}

// writeError maps domain errors onto problem responses.
func (h *EventsHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	var inputErr events.InputError

	switch {
	case errors.As(err, &maxErr):
		problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypePayloadTooLarge, "Request body too large", err, h.Env,
			problem.WithDetail(fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)))
	case errors.As(err, &inputErr):
		opts := []problem.Option{problem.WithDetail(inputErr.Error())}
		if inputErr.Field != "" {
			opts = append(opts, problem.WithErrors(map[string]any{inputErr.Field: inputErr.Message}))
		}
		problem.Write(w, r, http.StatusBadRequest, problem.TypeInvalidInput, "Invalid request", err, h.Env, opts...)
	case errors.Is(err, events.ErrInvalidInput):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeInvalidInput, "Invalid request", err, h.Env)
	case errors.Is(err, events.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Event not found", err, h.Env,
			problem.WithDetail("no event with id "+pathParam(r, "id")))
	case errors.Is(err, events.ErrConflict):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Conflict", err, h.Env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Server error", err, h.Env)
	}
}

func readPatch(r *http.Request) (events.Patch, error) {
	if r.Body == nil {
		return events.ParsePatch(nil)
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return events.ParsePatch(data)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func pathParam(r *http.Request, key string) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.PathValue(key))
}
