package document

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
	"github.com/mrcaglayan/cariledger/internal/platform/httpx"
	internalShared "github.com/mrcaglayan/cariledger/internal/shared"
)

// Handler exposes the document lifecycle over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/documents", h.list)
	r.Post("/documents", h.create)
	r.Get("/documents/{id}", h.show)
	r.Put("/documents/{id}", h.update)
	r.Post("/documents/{id}/post", h.post)
	r.Post("/documents/{id}/cancel", h.cancel)
	r.Post("/documents/{id}/reverse", h.reverse)
	r.Get("/documents/{id}/open-item", h.openItem)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := internalShared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor context")
		return
	}
	f := ListFilter{
		Direction: shared.Direction(r.URL.Query().Get("direction")),
		Status:    Status(r.URL.Query().Get("status")),
		Limit:     100,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			f.Limit = n
		}
	}
	docs, err := h.service.List(r.Context(), actor.TenantID, f)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentResponse(d))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"documents": out})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	actor, ok := internalShared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor context")
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "VALIDATION", "invalid document id")
		return
	}
	var (
		doc  Document
		item *OpenItem
	)
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		d, err := h.service.Get(gctx, actor.TenantID, id)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	g.Go(func() error {
		// Drafts have no open item yet.
		oi, err := h.service.GetOpenItem(gctx, actor.TenantID, id)
		if err != nil {
			if errors.Is(err, shared.ErrDocumentNotFound) {
				return nil
			}
			return err
		}
		item = &oi
		return nil
	})
	if err := g.Wait(); err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := map[string]any{"document": toDocumentResponse(doc)}
	if item != nil {
		resp["open_item"] = toOpenItemResponse(*item)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := internalShared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor context")
		return
	}
	var req CreateDocumentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "VALIDATION", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ProblemCode(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error())
		return
	}
	docDate, err := shared.ParseAccountingDate(req.DocumentDate)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var dueDate *time.Time
	if req.DueDate != "" {
		d, err := shared.ParseAccountingDate(req.DueDate)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		dueDate = &d
	}
	doc, err := h.service.CreateDraft(r.Context(), CreateDraftInput{
		TenantID:       actor.TenantID,
		LegalEntityID:  req.LegalEntityID,
		Direction:      shared.Direction(req.Direction),
		Type:           shared.DocumentType(req.Type),
		CounterpartyID: req.CounterpartyID,
		DocumentDate:   docDate,
		DueDate:        dueDate,
		Currency:       req.Currency,
		AmountTxn:      req.AmountTxn,
		FxRate:         req.FxRate,
		Description:    req.Description,
		UserID:         actor.UserID,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := internalShared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor context")
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "VALIDATION", "invalid document id")
		return
	}
	var req UpdateDocumentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "VALIDATION", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ProblemCode(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error())
		return
	}
	docDate, err := shared.ParseAccountingDate(req.DocumentDate)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var dueDate *time.Time
	if req.DueDate != "" {
		d, err := shared.ParseAccountingDate(req.DueDate)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		dueDate = &d
	}
	doc, err := h.service.UpdateDraft(r.Context(), UpdateDraftInput{
		TenantID:       actor.TenantID,
		DocumentID:     id,
		Direction:      shared.Direction(req.Direction),
		Type:           shared.DocumentType(req.Type),
		CounterpartyID: req.CounterpartyID,
		DocumentDate:   docDate,
		DueDate:        dueDate,
		Currency:       req.Currency,
		AmountTxn:      req.AmountTxn,
		Description:    req.Description,
		UserID:         actor.UserID,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	actor, ok := internalShared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor context")
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "VALIDATION", "invalid document id")
		return
	}
	var req PostDocumentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "VALIDATION", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ProblemCode(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error())
		return
	}
	result, err := h.service.Post(r.Context(), PostInput{
		TenantID:        actor.TenantID,
		DocumentID:      id,
		UserID:          actor.UserID,
		PreferredBookID: req.PreferredBookID,
		UseFxOverride:   req.UseFxOverride,
		OverrideReason:  req.OverrideReason,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"document":   toDocumentResponse(result.Document),
		"journal_no": result.Journal.JournalNo,
	})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := internalShared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor context")
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "VALIDATION", "invalid document id")
		return
	}
	if err := h.service.CancelDraft(r.Context(), actor.TenantID, id, actor.UserID); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": string(StatusCancelled)})
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	actor, ok := internalShared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor context")
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "VALIDATION", "invalid document id")
		return
	}
	var req ReverseDocumentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "VALIDATION", "malformed request body")
		return
	}
	var reversalDate *time.Time
	if req.ReversalDate != "" {
		d, err := shared.ParseAccountingDate(req.ReversalDate)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		reversalDate = &d
	}
	result, err := h.service.Reverse(r.Context(), ReverseInput{
		TenantID:     actor.TenantID,
		DocumentID:   id,
		UserID:       actor.UserID,
		Reason:       req.Reason,
		ReversalDate: reversalDate,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"reversal":   toDocumentResponse(result.Reversal),
		"journal_no": result.Journal.JournalNo,
	})
}

func (h *Handler) openItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := internalShared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor context")
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "VALIDATION", "invalid document id")
		return
	}
	oi, err := h.service.GetOpenItem(r.Context(), actor.TenantID, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOpenItemResponse(oi))
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var denied *internalShared.ScopeDeniedError
	if errors.As(err, &denied) {
		httpx.ProblemCode(w, http.StatusForbidden, "SCOPE_DENIED", denied.Error())
		return
	}
	status := shared.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("document request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	httpx.ProblemCode(w, status, shared.ErrorCode(err), err.Error())
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
