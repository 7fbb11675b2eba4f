/*
dto.go - Data Transfer Objects for API responses

PURPOSE:
  Defines the JSON shapes served by the API so the domain types in claims/
  can change without breaking clients.

CONVENTIONS:
  - Dates are "YYYY-MM-DD" strings
  - Amounts are decimal strings ("12500.00"), never floats
  - Open claims omit resolution_date and duration_days

SEE ALSO:
  - handlers.go: Uses these types
  - claims/types.go: Domain types
*/
package api

import (
	"github.com/warp/claim-ledger/claims"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ClaimDTO represents a claim in API responses.
type ClaimDTO struct {
	Intervenor      string  `json:"intervenor"`
	ClaimDate       string  `json:"claim_date"`
	Proceeding      string  `json:"proceeding"`
	Amount          string  `json:"amount"`
	Status          string  `json:"status"`
	FirstReportDate string  `json:"first_report_date"`
	LastReportDate  string  `json:"last_report_date"`
	ResolutionDate  *string `json:"resolution_date,omitempty"`
	DurationDays    *int    `json:"duration_days,omitempty"`
}

// ReportDTO represents one ingested snapshot.
type ReportDTO struct {
	AsOf     string `json:"as_of"`
	RowCount int    `json:"row_count"`
	SourceID string `json:"source_id"`
}

// SummaryDTO aggregates the ledger.
type SummaryDTO struct {
	TotalClaims     int            `json:"total_claims"`
	ByStatus        map[string]int `json:"by_status"`
	OpenAmount      string         `json:"open_amount"`
	AvgDurationDays *float64       `json:"avg_duration_days,omitempty"`
	MaxDurationDays *int           `json:"max_duration_days,omitempty"`
	LatestReport    *string        `json:"latest_report,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toClaimDTO(c claims.Claim) ClaimDTO {
	dto := ClaimDTO{
		Intervenor:      c.Intervenor,
		ClaimDate:       c.ClaimDate.String(),
		Proceeding:      c.Proceeding,
		Amount:          c.Amount.StringFixed(2),
		Status:          string(c.Status),
		FirstReportDate: c.FirstReportDate.String(),
		LastReportDate:  c.LastReportDate.String(),
		DurationDays:    c.DurationDays,
	}
	if c.ResolutionDate != nil {
		s := c.ResolutionDate.String()
		dto.ResolutionDate = &s
	}
	return dto
}

func toClaimDTOs(cs []claims.Claim) []ClaimDTO {
	out := make([]ClaimDTO, 0, len(cs))
	for _, c := range cs {
		out = append(out, toClaimDTO(c))
	}
	return out
}

func toReportDTOs(rs []claims.Report) []ReportDTO {
	out := make([]ReportDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, ReportDTO{AsOf: r.AsOf.String(), RowCount: r.RowCount, SourceID: r.SourceID})
	}
	return out
}
