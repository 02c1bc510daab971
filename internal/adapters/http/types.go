package httpadapter

import (
	"breachx/internal/domain"
	"breachx/internal/ports"
)

type StoreReportRequest struct {
	Reporter       string `json:"reporter"`
	RepositoryID   string `json:"repository_id"`
	ReportLocation string `json:"report_location"`
}

// BadgeFields are the optional badge overrides; empty fields take the
// registry defaults.
type BadgeFields struct {
	Title      string `json:"title,omitempty"`
	Symbol     string `json:"symbol,omitempty"`
	ContentURI string `json:"content_uri,omitempty"`
}

func (b BadgeFields) spec() ports.BadgeSpec {
	return ports.BadgeSpec{Title: b.Title, Symbol: b.Symbol, ContentURI: b.ContentURI}
}

type IssueBadgeRequest struct {
	Reporter     string `json:"reporter"`
	RepositoryID string `json:"repository_id"`
	BadgeFields
}

type StoreBadgedReportRequest struct {
	Reporter       string `json:"reporter"`
	RepositoryID   string `json:"repository_id"`
	ReportLocation string `json:"report_location"`
	BadgeFields
}

type Report struct {
	Address        string  `json:"address"`
	RepositoryID   string  `json:"repository_id"`
	ReportLocation string  `json:"report_location"`
	Reporter       string  `json:"reporter"`
	CreatedAt      int64   `json:"created_at"`
	BadgeMint      *string `json:"badge_mint"`
	State          string  `json:"state"`
}

type Badge struct {
	Mint     string `json:"mint"`
	Holding  string `json:"holding"`
	Metadata string `json:"metadata"`
	Title    string `json:"title"`
	Symbol   string `json:"symbol"`
	URI      string `json:"uri"`
}

type BadgedReport struct {
	Report Report `json:"report"`
	Badge  Badge  `json:"badge"`
}

type ReportList struct {
	Reports []Report `json:"reports"`
}

type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ToReport converts a report to its wire form.
func ToReport(r domain.Report) Report {
	out := Report{
		Address:        r.Address.String(),
		RepositoryID:   r.RepositoryID,
		ReportLocation: r.ReportLocation,
		Reporter:       r.Reporter.String(),
		CreatedAt:      r.CreatedAt,
		State:          string(r.State()),
	}
	if r.BadgeMint != nil {
		m := r.BadgeMint.String()
		out.BadgeMint = &m
	}
	return out
}

func ToBadge(b domain.Badge) Badge {
	return Badge{
		Mint:     b.Mint.String(),
		Holding:  b.Holding.String(),
		Metadata: b.Metadata.String(),
		Title:    b.Title,
		Symbol:   b.Symbol,
		URI:      b.URI,
	}
}
