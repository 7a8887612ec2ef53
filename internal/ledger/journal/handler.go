package journal

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
	"github.com/mrcaglayan/cariledger/internal/platform/httpx"
	internalShared "github.com/mrcaglayan/cariledger/internal/shared"
)

// PostJournalRequest posts a manual N-line journal.
type PostJournalRequest struct {
	LegalEntityID   int64              `json:"legal_entity_id" validate:"required,gt=0"`
	PreferredBookID *int64             `json:"preferred_book_id,omitempty"`
	JournalDate     string             `json:"journal_date" validate:"required"`
	Memo            string             `json:"memo,omitempty" validate:"max=500"`
	SourceType      string             `json:"source_type,omitempty" validate:"max=50"`
	SourceID        string             `json:"source_id,omitempty"`
	Lines           []JournalLineInput `json:"lines" validate:"required,min=2,dive"`
}

// JournalLineInput is one requested debit or credit leg.
type JournalLineInput struct {
	AccountID    int64           `json:"account_id" validate:"required,gt=0"`
	AmountTxn    decimal.Decimal `json:"amount_txn"`
	DebitBase    decimal.Decimal `json:"debit_base"`
	CreditBase   decimal.Decimal `json:"credit_base"`
	Currency     string          `json:"currency" validate:"required,len=3"`
	SubledgerRef string          `json:"subledger_ref,omitempty" validate:"max=100"`
	Description  string          `json:"description,omitempty" validate:"max=500"`
}

// ReverseJournalRequest reverses a posted journal entry.
type ReverseJournalRequest struct {
	Reason       string `json:"reason,omitempty" validate:"max=500"`
	ReversalDate string `json:"reversal_date,omitempty"`
}

// EntryResponse is the JSON projection of a journal entry.
type EntryResponse struct {
	ID              int64           `json:"id"`
	LegalEntityID   int64           `json:"legal_entity_id"`
	BookID          int64           `json:"book_id"`
	FiscalPeriodID  int64           `json:"fiscal_period_id"`
	JournalNo       int64           `json:"journal_no"`
	JournalDate     string          `json:"journal_date"`
	SourceType      string          `json:"source_type"`
	SourceID        string          `json:"source_id"`
	Memo            string          `json:"memo,omitempty"`
	Status          string          `json:"status"`
	TotalDebit      decimal.Decimal `json:"total_debit"`
	TotalCredit     decimal.Decimal `json:"total_credit"`
	ReversalEntryID *int64          `json:"reversal_entry_id,omitempty"`
	ReverseReason   string          `json:"reverse_reason,omitempty"`
	PostedAt        time.Time       `json:"posted_at"`
	Lines           []LineResponse  `json:"lines,omitempty"`
}

// LineResponse is the JSON projection of a journal line.
type LineResponse struct {
	LineNo       int             `json:"line_no"`
	AccountID    int64           `json:"account_id"`
	AmountTxn    decimal.Decimal `json:"amount_txn"`
	DebitBase    decimal.Decimal `json:"debit_base"`
	CreditBase   decimal.Decimal `json:"credit_base"`
	Currency     string          `json:"currency"`
	SubledgerRef string          `json:"subledger_ref,omitempty"`
	Description  string          `json:"description,omitempty"`
}

func toEntryResponse(e Entry) EntryResponse {
	resp := EntryResponse{
		ID:              e.ID,
		LegalEntityID:   e.LegalEntityID,
		BookID:          e.BookID,
		FiscalPeriodID:  e.FiscalPeriodID,
		JournalNo:       e.JournalNo,
		JournalDate:     shared.FormatAccountingDate(e.JournalDate),
		SourceType:      e.SourceType,
		SourceID:        e.SourceID.String(),
		Memo:            e.Memo,
		Status:          string(e.Status),
		TotalDebit:      e.TotalDebit,
		TotalCredit:     e.TotalCredit,
		ReversalEntryID: e.ReversalEntryID,
		ReverseReason:   e.ReverseReason,
		PostedAt:        e.PostedAt,
	}
	for _, l := range e.Lines {
		resp.Lines = append(resp.Lines, LineResponse{
			LineNo:       l.LineNo,
			AccountID:    l.AccountID,
			AmountTxn:    l.AmountTxn,
			DebitBase:    l.DebitBase,
			CreditBase:   l.CreditBase,
			Currency:     l.Currency,
			SubledgerRef: l.SubledgerRef,
			Description:  l.Description,
		})
	}
	return resp
}

// Handler exposes manual journal operations over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers journal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/journals", h.list)
	r.Get("/journals/{id}", h.show)
	r.Post("/journals", h.post)
	r.Post("/journals/{id}/reverse", h.reverse)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := internalShared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor context")
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	entries, err := h.service.List(r.Context(), actor.TenantID, limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"journals": out})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	actor, ok := internalShared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor context")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "VALIDATION", "invalid entry id")
		return
	}
	entry, err := h.service.Get(r.Context(), actor.TenantID, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	actor, ok := internalShared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor context")
		return
	}
	var req PostJournalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "VALIDATION", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ProblemCode(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error())
		return
	}
	journalDate, err := shared.ParseAccountingDate(req.JournalDate)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	sourceID := uuid.Nil
	if req.SourceID != "" {
		sourceID, err = uuid.Parse(req.SourceID)
		if err != nil {
			httpx.ProblemCode(w, http.StatusUnprocessableEntity, "VALIDATION", "source_id must be a UUID")
			return
		}
	}
	lines := make([]LineInput, 0, len(req.Lines))
	for i, l := range req.Lines {
		lines = append(lines, LineInput{
			LineNo:       i + 1,
			AccountID:    l.AccountID,
			AmountTxn:    l.AmountTxn,
			DebitBase:    l.DebitBase,
			CreditBase:   l.CreditBase,
			Currency:     l.Currency,
			SubledgerRef: l.SubledgerRef,
			Description:  l.Description,
		})
	}
	entry, err := h.service.PostManual(r.Context(), PostManualInput{
		TenantID:        actor.TenantID,
		LegalEntityID:   req.LegalEntityID,
		PreferredBookID: req.PreferredBookID,
		JournalDate:     journalDate,
		Memo:            req.Memo,
		SourceType:      req.SourceType,
		SourceID:        sourceID,
		UserID:          actor.UserID,
		Lines:           lines,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	actor, ok := internalShared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor context")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "VALIDATION", "invalid entry id")
		return
	}
	var req ReverseJournalRequest
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
	reversal, err := h.service.ReverseManual(r.Context(), ReverseManualInput{
		TenantID:     actor.TenantID,
		EntryID:      id,
		UserID:       actor.UserID,
		Reason:       req.Reason,
		ReversalDate: reversalDate,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(reversal))
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var denied *internalShared.ScopeDeniedError
	if errors.As(err, &denied) {
		httpx.ProblemCode(w, http.StatusForbidden, "SCOPE_DENIED", denied.Error())
		return
	}
	status := shared.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("journal request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	httpx.ProblemCode(w, status, shared.ErrorCode(err), err.Error())
}
