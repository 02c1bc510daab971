package badges

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"breachx/internal/domain"
	"breachx/internal/ports"
	"breachx/internal/programs/metadata"
)

const (
	DefaultSymbol = "BXSB"
	titlePrefix   = "Security Badge - "
	platform      = "BreachX"
)

// Defaults fills the parts of a badge the caller left empty.
type Defaults struct {
	Symbol string
	// BaseURL is the public root under which badge documents are served.
	BaseURL string
	// ImageURL is the badge artwork referenced from the document.
	ImageURL string
}

// Apply returns spec with empty fields replaced.
func (d Defaults) Apply(report domain.Report, spec ports.BadgeSpec) ports.BadgeSpec {
	if spec.Title == "" {
		spec.Title = truncate(titlePrefix+repoName(report.RepositoryID), metadata.MaxNameLen)
	}
	if spec.Symbol == "" {
		spec.Symbol = d.Symbol
		if spec.Symbol == "" {
			spec.Symbol = DefaultSymbol
		}
	}
	if spec.ContentURI == "" {
		spec.ContentURI = d.DocumentURL(report.Address)
	}
	return spec
}

// DocumentURL is where the off-chain document of the report's badge lives.
func (d Defaults) DocumentURL(report domain.Address) string {
	return strings.TrimRight(d.BaseURL, "/") + "/v1/reports/" + report.String() + "/badge.json"
}

// Validate reports whether the defaults fit the metadata record bounds for
// every report address.
func (d Defaults) Validate() error {
	if n := len(d.Symbol); n > metadata.MaxSymbolLen {
		return fmt.Errorf("badge symbol is %d bytes, limit %d", n, metadata.MaxSymbolLen)
	}
	if n := len(d.DocumentURL(widestAddress)); n > metadata.MaxURILen {
		return fmt.Errorf("badge document url is up to %d bytes, limit %d; shorten the base url", n, metadata.MaxURILen)
	}
	return nil
}

// widestAddress has the longest base58 rendering.
var widestAddress = domain.Address{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// Document builds the off-chain JSON description of a report's badge.
func (d Defaults) Document(report domain.Report, rec domain.MetadataRecord) domain.BadgeDocument {
	date := time.Unix(report.CreatedAt, 0).UTC().Format("2006-01-02")
	name := rec.Name
	if name == "" {
		name = platform + " " + titlePrefix + repoName(report.RepositoryID)
	}
	symbol := rec.Symbol
	if symbol == "" {
		symbol = DefaultSymbol
	}
	doc := domain.BadgeDocument{
		Name:   name,
		Symbol: symbol,
		Description: "Security verification badge for " + report.RepositoryID +
			". This token represents a verified security audit conducted on " + date + ".",
		Image: d.ImageURL,
		Attributes: []domain.BadgeAttribute{
			{TraitType: "Repository", Value: report.RepositoryID},
			{TraitType: "Audit Date", Value: date},
			{TraitType: "Badge Type", Value: "Security Verification"},
			{TraitType: "Platform", Value: platform},
		},
		Properties: domain.BadgeProperties{Category: "image", Files: []domain.BadgeFile{}},
	}
	if d.ImageURL != "" {
		doc.Properties.Files = append(doc.Properties.Files, domain.BadgeFile{URI: d.ImageURL, Type: "image/png"})
	}
	return doc
}

// repoName is the last path segment of a repository id.
func repoName(id string) string {
	if i := strings.LastIndexByte(id, '/'); i >= 0 && i < len(id)-1 {
		return id[i+1:]
	}
	return id
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
