// Package api provides an HTTP API for the contact registry.
// It exposes REST endpoints for contact CRUD and SSE for registry events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/rolodex/internal/cachemanager"
	"github.com/zjrosen/rolodex/internal/contacts/domain"
	"github.com/zjrosen/rolodex/internal/contacts/registry"
	"github.com/zjrosen/rolodex/internal/log"
	"github.com/zjrosen/rolodex/internal/pubsub"
	"github.com/zjrosen/rolodex/internal/tracing"
)

const (
	// HeaderRequestID carries the request id in both directions.
	HeaderRequestID = "X-Request-ID"
	// HeaderIdempotencyKey makes POST /contacts safe to retry.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplay is set to "true" when a cached result is returned.
	HeaderIdempotentReplay = "Idempotent-Replayed"

	maxBodyBytes             = 64 << 10
	defaultHeartbeatInterval = 30 * time.Second
)

// Handler provides HTTP endpoints for registry operations.
type Handler struct {
	registry    *registry.Registry
	events      pubsub.Subscriber[domain.Event]
	idempotency *cachemanager.IdempotentCall[string, domain.Contact]
	tracer      trace.Tracer
	heartbeat   time.Duration
}

// HandlerConfig configures the API handler.
type HandlerConfig struct {
	// Registry is the contact registry to expose (required).
	Registry *registry.Registry
	// Events feeds GET /events (optional). Without it the stream only sends heartbeats.
	Events pubsub.Subscriber[domain.Event]
	// Idempotency enables Idempotency-Key on POST /contacts (optional).
	Idempotency *cachemanager.IdempotentCall[string, domain.Contact]
	// Tracer creates request and registry spans (optional, defaults to no-op).
	Tracer trace.Tracer
	// HeartbeatInterval is the SSE keep-alive period (default 30s).
	HeartbeatInterval time.Duration
}

// NewHandler creates a new API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	return &Handler{
		registry:    cfg.Registry,
		events:      cfg.Events,
		idempotency: cfg.Idempotency,
		tracer:      tracer,
		heartbeat:   heartbeat,
	}
}

// Routes returns an http.Handler with all API routes registered.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	// Contact CRUD
	mux.HandleFunc("POST /contacts", h.Create)
	mux.HandleFunc("GET /contacts", h.List)
	mux.HandleFunc("GET /contacts/{id}", h.Get)
	mux.HandleFunc("PUT /contacts/{id}", h.Update)
	mux.HandleFunc("DELETE /contacts/{id}", h.Delete)

	// Event streaming
	mux.HandleFunc("GET /events", h.StreamEvents)

	// Health check
	mux.HandleFunc("GET /health", h.Health)

	return h.withRequestID(tracing.HTTPMiddleware(h.tracer)(mux))
}

// === Response Types ===

// ListContactsResponse is the response body for listing contacts.
type ListContactsResponse struct {
	Contacts []domain.ContactPayload `json:"contacts"`
	Total    int                     `json:"total"`
}

// HealthResponse is the response body for the health endpoint.
type HealthResponse struct {
	Status string    `json:"status"`
	Count  int       `json:"count"`
	NextID domain.ID `json:"nextId"`
}

// ErrorResponse is the response body for errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// === Handlers ===

// Create adds a contact.
// POST /contacts
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readContact(w, r)
	if !ok {
		return
	}

	add := func(ctx context.Context) (domain.Contact, error) {
		return h.traceContact(ctx, "add", func() (domain.Contact, error) {
			return h.registry.Add(req.Fields())
		})
	}

	var (
		c        domain.Contact
		replayed bool
		err      error
	)
	key := r.Header.Get(HeaderIdempotencyKey)
	if h.idempotency != nil && key != "" {
		c, replayed, err = h.idempotency.Do(r.Context(), key, add)
	} else {
		c, err = add(r.Context())
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "store_failed", "Failed to add contact", err.Error())
		return
	}

	if replayed {
		trace.SpanFromContext(r.Context()).AddEvent(tracing.EventIdempotentReplay,
			trace.WithAttributes(attribute.String(tracing.AttrIdempotencyKey, key)))
		w.Header().Set(HeaderIdempotentReplay, "true")
	}
	w.Header().Set("Location", "/contacts/"+c.ID.String())
	h.writeJSON(w, http.StatusCreated, domain.NewContactPayload(c))
}

// List returns every contact in slot order.
// GET /contacts
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	contacts := h.registry.List()
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int(tracing.AttrContactCount, len(contacts)))
	resp := ListContactsResponse{
		Contacts: make([]domain.ContactPayload, 0, len(contacts)),
		Total:    len(contacts),
	}
	for _, c := range contacts {
		resp.Contacts = append(resp.Contacts, domain.NewContactPayload(c))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Get returns a single contact.
// GET /contacts/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	c, err := h.registry.Get(id)
	if err != nil {
		h.writeRegistryError(w, err, "Failed to get contact")
		return
	}
	h.writeJSON(w, http.StatusOK, domain.NewContactPayload(c))
}

// Update replaces every field of a contact.
// PUT /contacts/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, ok := h.readContact(w, r)
	if !ok {
		return
	}

	c, err := h.traceContact(r.Context(), "update", func() (domain.Contact, error) {
		return h.registry.Update(id, req.Fields())
	})
	if err != nil {
		h.writeRegistryError(w, err, "Failed to update contact")
		return
	}
	h.writeJSON(w, http.StatusOK, domain.NewContactPayload(c))
}

// Delete removes a contact and reports which record, if any, took its slot.
// DELETE /contacts/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	_, span := h.tracer.Start(r.Context(), tracing.SpanPrefixRegistry+"delete",
		trace.WithAttributes(attribute.Int64(tracing.AttrContactID, int64(id))))
	res, err := h.registry.Delete(id)
	if err == nil {
		span.SetAttributes(attribute.Int64(tracing.AttrReplacedByID, int64(res.ReplacedByID)))
	}
	endSpan(span, err)
	if err != nil {
		h.writeRegistryError(w, err, "Failed to delete contact")
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// StreamEvents streams registry events via SSE.
// GET /events
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	var events <-chan pubsub.Event[domain.Event]
	if h.events != nil {
		events = h.events.Subscribe(r.Context())
	}
	h.streamEvents(w, r, events)
}

// Health reports liveness plus the registry size and id counter.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Count:  h.registry.Len(),
		NextID: h.registry.NextID(),
	})
}

// === Helpers ===

// withRequestID propagates or assigns X-Request-ID and logs each request.
func (h *Handler) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(tracing.ContextWithRequestID(r.Context(), id)))
		log.Debug(log.CatAPI, "Request handled",
			"method", r.Method, "path", r.URL.Path, "requestID", id, "duration", time.Since(start))
	})
}

// readContact reads and validates a contact body, writing the error response on failure.
func (h *Handler) readContact(w http.ResponseWriter, r *http.Request) (ContactRequest, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "Request body too large", err.Error())
		return ContactRequest{}, false
	}

	req, err := decodeContact(body)
	if err == nil {
		return req, true
	}

	var syntaxErr *syntaxError
	var validationErr *jsonschema.ValidationError
	switch {
	case errors.As(err, &syntaxErr):
		h.writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body", err.Error())
	case errors.As(err, &validationErr):
		trace.SpanFromContext(r.Context()).AddEvent(tracing.EventValidationFailed)
		h.writeError(w, http.StatusBadRequest, "validation_error", "Contact does not match schema", validationErr.Error())
	default:
		h.writeError(w, http.StatusBadRequest, "validation_error", "Invalid contact", err.Error())
	}
	return ContactRequest{}, false
}

// pathID parses the {id} path value, writing a 400 on failure.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (domain.ID, bool) {
	raw := r.PathValue("id")
	id, err := domain.ParseID(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "Contact id must be a non-negative integer", fmt.Sprintf("got %q", raw))
		return domain.NoID, false
	}
	return id, true
}

// traceContact runs a registry mutation inside a registry.<op> span.
func (h *Handler) traceContact(ctx context.Context, op string, fn func() (domain.Contact, error)) (domain.Contact, error) {
	_, span := h.tracer.Start(ctx, tracing.SpanPrefixRegistry+op)
	c, err := fn()
	if err == nil {
		span.SetAttributes(attribute.Int64(tracing.AttrContactID, int64(c.ID)))
	}
	endSpan(span, err)
	return c, err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (h *Handler) writeRegistryError(w http.ResponseWriter, err error, message string) {
	if domain.IsNotFound(err) {
		h.writeError(w, http.StatusNotFound, "not_found", "Contact not found", err.Error())
		return
	}
	if errors.Is(err, domain.ErrStoreConflict) {
		h.writeError(w, http.StatusConflict, "store_conflict", "Contacts changed on disk, retry", err.Error())
		return
	}
	h.writeError(w, http.StatusInternalServerError, "store_failed", message, err.Error())
}

func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request, events <-chan pubsub.Event[domain.Event]) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming_unsupported", "Streaming not supported", "")
		return
	}

	_, _ = fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}

			if event.Missed > 0 {
				_, _ = fmt.Fprintf(w, "event: missed\ndata: {\"count\":%d}\n\n", event.Missed)
			}

			data, err := json.Marshal(event.Payload)
			if err != nil {
				log.ErrorErr(log.CatAPI, "Failed to marshal event", err, "seq", event.Payload.Seq)
				continue
			}

			_, _ = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", event.Payload.Seq, event.Type, data)
			flusher.Flush()
		}
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.ErrorErr(log.CatAPI, "Failed to encode JSON response", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message, details string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}
