/*
handlers.go - HTTP API handlers for the claim ledger

PURPOSE:
  Exposes the reconciled ledger over read-only REST endpoints. Handles query
  parsing, JSON serialization and error mapping; all data comes from the store.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid query parameter or path value
  - 404: Claim not found
  - 500: Store failure (details logged, not leaked)

SEE ALSO:
  - dto.go: Response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/claim-ledger/claims"
	"github.com/warp/claim-ledger/logger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the read side the API needs.
type Store interface {
	claims.ReadStore
	GetClaim(ctx context.Context, key claims.ClaimKey) (*claims.Claim, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store Store
	log   *zap.Logger
}

// NewHandler creates a handler. A nil logger discards output.
func NewHandler(store Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{store: store, log: log}
}

// =============================================================================
// CLAIM ENDPOINTS
// =============================================================================

// ListClaims handles GET /api/claims.
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := claims.ClaimFilter{Intervenor: q.Get("intervenor")}

	if s := q.Get("status"); s != "" {
		st, ok := claims.ParseStatus(s)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid status", nil)
			return
		}
		filter.Status = &st
	}
	if s := q.Get("open"); s != "" {
		open, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid open flag", err)
			return
		}
		filter.OpenOnly = open
	}

	list, err := h.store.ListClaims(r.Context(), filter)
	if err != nil {
		h.internalError(w, r, "failed to list claims", err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimDTOs(list))
}

// GetClaim handles GET /api/claims/{intervenor}/{date}.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	intervenor, err := url.PathUnescape(chi.URLParam(r, "intervenor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid intervenor", err)
		return
	}
	date, err := claims.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim date", err)
		return
	}

	key := claims.ClaimKey{Intervenor: claims.NormalizeIntervenor(intervenor), ClaimDate: date}
	c, err := h.store.GetClaim(r.Context(), key)
	if err != nil {
		h.internalError(w, r, "failed to get claim", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "claim not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toClaimDTO(*c))
}

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

// ListReports handles GET /api/reports.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.store.ListReports(r.Context())
	if err != nil {
		h.internalError(w, r, "failed to list reports", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTOs(reports))
}

// GetSummary handles GET /api/summary.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListClaims(r.Context(), claims.ClaimFilter{})
	if err != nil {
		h.internalError(w, r, "failed to list claims", err)
		return
	}
	reports, err := h.store.ListReports(r.Context())
	if err != nil {
		h.internalError(w, r, "failed to list reports", err)
		return
	}

	summary := Summarize(list)
	if n := len(reports); n > 0 {
		latest := reports[n-1].AsOf.String()
		summary.LatestReport = &latest
	}
	writeJSON(w, http.StatusOK, summary)
}

// Summarize computes status counts, the open amount and resolution durations.
func Summarize(list []claims.Claim) SummaryDTO {
	s := SummaryDTO{
		TotalClaims: len(list),
		ByStatus: map[string]int{
			string(claims.StatusPending):  0,
			string(claims.StatusAssigned): 0,
			string(claims.StatusClosed):   0,
		},
	}
	open := decimal.Zero
	var total, resolved, longest int
	for _, c := range list {
		s.ByStatus[string(c.Status)]++
		if c.IsOpen() {
			open = open.Add(c.Amount)
			continue
		}
		if c.DurationDays != nil {
			d := *c.DurationDays
			total += d
			if resolved == 0 || d > longest {
				longest = d
			}
			resolved++
		}
	}
	s.OpenAmount = open.StringFixed(2)
	if resolved > 0 {
		avg := float64(total) / float64(resolved)
		s.AvgDurationDays = &avg
		s.MaxDurationDays = &longest
	}
	return s
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, message string, err error) {
	h.log.Error(message,
		zap.String(logger.FieldRequestID, middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, message, nil)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
