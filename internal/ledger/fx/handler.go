package fx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mrcaglayan/cariledger/internal/ledger/shared"
	"github.com/mrcaglayan/cariledger/internal/platform/httpx"
	internalShared "github.com/mrcaglayan/cariledger/internal/shared"
)

// Handler exposes the rate lookup API.
type Handler struct {
	logger *slog.Logger
	rates  Repository
}

// NewHandler builds a Handler instance. rates may be a CachedRepository.
func NewHandler(logger *slog.Logger, rates Repository) *Handler {
	return &Handler{logger: logger, rates: rates}
}

// MountRoutes registers FX routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/fx-rates", h.lookup)
}

type rateResponse struct {
	RateDate     string `json:"rate_date"`
	FromCurrency string `json:"from_currency"`
	ToCurrency   string `json:"to_currency"`
	Rate         string `json:"rate"`
	IsLocked     bool   `json:"is_locked"`
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	actor, ok := internalShared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor context")
		return
	}
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if len(from) != 3 || len(to) != 3 {
		httpx.ProblemCode(w, http.StatusBadRequest, "VALIDATION", "from and to must be 3-letter currency codes")
		return
	}
	date, err := shared.ParseAccountingDate(q.Get("date"))
	if err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "VALIDATION", "date must be YYYY-MM-DD")
		return
	}
	rate, found, err := h.rates.LatestSpotRate(r.Context(), actor.TenantID, date, from, to)
	if err != nil {
		h.logger.Error("fx lookup failed", slog.String("error", err.Error()))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "rate lookup unavailable")
		return
	}
	if !found {
		httpx.ProblemCode(w, http.StatusNotFound, shared.ErrMissingFxRate.Code, "no rate for the pair on or before the date")
		return
	}
	httpx.JSON(w, http.StatusOK, rateResponse{
		RateDate:     shared.FormatAccountingDate(rate.RateDate),
		FromCurrency: rate.FromCurrency,
		ToCurrency:   rate.ToCurrency,
		Rate:         rate.Rate.String(),
		IsLocked:     rate.IsLocked,
	})
}
