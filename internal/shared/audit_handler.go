package shared

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mrcaglayan/cariledger/internal/platform/httpx"
)

// AuditHandler exposes the audit timeline read API.
type AuditHandler struct {
	logger *slog.Logger
	audit  *AuditLogger
}

// NewAuditHandler builds an AuditHandler instance.
func NewAuditHandler(logger *slog.Logger, audit *AuditLogger) *AuditHandler {
	return &AuditHandler{logger: logger, audit: audit}
}

// MountRoutes registers the audit timeline route.
func (h *AuditHandler) MountRoutes(r chi.Router) {
	r.Get("/audit", h.list)
}

type auditEventResponse struct {
	ID           int64          `json:"id"`
	UserID       int64          `json:"user_id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Scope        string         `json:"scope,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

func (h *AuditHandler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor context")
		return
	}
	q := r.URL.Query()
	f := AuditFilter{
		TenantID:     actor.TenantID,
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
		Action:       q.Get("action"),
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.ProblemCode(w, http.StatusBadRequest, "VALIDATION", "from must be RFC3339")
			return
		}
		f.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.ProblemCode(w, http.StatusBadRequest, "VALIDATION", "to must be RFC3339")
			return
		}
		f.To = t
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			f.Limit = n
		}
	}
	events, err := h.audit.List(r.Context(), f)
	if err != nil {
		h.logger.Error("audit timeline query failed", slog.String("error", err.Error()))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "audit timeline unavailable")
		return
	}
	out := make([]auditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, auditEventResponse{
			ID:           e.ID,
			UserID:       e.UserID,
			Action:       e.Action,
			ResourceType: e.ResourceType,
			ResourceID:   e.ResourceID,
			Scope:        e.Scope,
			Payload:      e.Payload,
			OccurredAt:   e.OccurredAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"events": out})
}
