package ports

import (
	"context"

	"breachx/internal/domain"
)

// Ledger allocates, reads and writes byte buffers at derived addresses.
type Ledger interface {
	// Allocate creates a zero-filled account of the given space owned by
	// program. Fails with domain.ErrAlreadyExists if the address is in use.
	Allocate(ctx context.Context, addr domain.Address, space int, program domain.Address) error
	Read(ctx context.Context, addr domain.Address) (acct domain.Account, found bool, err error)
	// Write stores data at the start of the account buffer. Fails with
	// domain.ErrCapacityExceeded if data does not fit the allocated space.
	Write(ctx context.Context, addr domain.Address, data []byte) error
	Owned(ctx context.Context, program domain.Address) ([]domain.Account, error)
}

// TokenIssuer creates mints and issues units into holding accounts.
type TokenIssuer interface {
	CreateMint(ctx context.Context, mint domain.Address, decimals uint8, authority domain.Address) error
	// MintTo issues amount units of mint into holding, the associated account
	// of owner, creating the holding account if needed.
	MintTo(ctx context.Context, mint, holding, owner, authority domain.Address, amount uint64) error
	Balance(ctx context.Context, holding domain.Address) (uint64, error)
	Supply(ctx context.Context, mint domain.Address) (uint64, error)
}

// MetadataRegistry attaches descriptive records to mints.
type MetadataRegistry interface {
	CreateRecord(ctx context.Context, addr domain.Address, rec domain.MetadataRecord) error
	Record(ctx context.Context, addr domain.Address) (rec domain.MetadataRecord, found bool, err error)
}

// Env is what a unit of work sees: every collaborator bound to the same
// transaction, plus a trusted clock reading taken when the unit began.
type Env struct {
	InvocationID string
	Now          int64
	Ledger       Ledger
	Tokens       TokenIssuer
	Metadata     MetadataRegistry
}

// Host executes units of work. All effects of fn commit together or not at
// all.
type Host interface {
	Execute(ctx context.Context, op string, fn func(ctx context.Context, env Env) error) error
}

// Registry is the externally callable surface.
type Registry interface {
	StoreReport(ctx context.Context, reporter domain.Address, repositoryID, reportLocation string) (domain.Report, error)
	IssueBadge(ctx context.Context, reporter domain.Address, repositoryID string, spec BadgeSpec) (domain.Report, domain.Badge, error)
	StoreReportAndIssueBadge(ctx context.Context, reporter domain.Address, repositoryID, reportLocation string, spec BadgeSpec) (domain.Report, domain.Badge, error)
	GetReport(ctx context.Context, reporter domain.Address, repositoryID string) (domain.Report, bool, error)
	GetReportAt(ctx context.Context, addr domain.Address) (domain.Report, bool, error)
	ListReports(ctx context.Context, reporter domain.Address) ([]domain.Report, error)
	BadgeDocument(ctx context.Context, addr domain.Address) (domain.BadgeDocument, error)
}

// BadgeSpec is the caller-supplied description of a badge. Empty fields are
// filled with registry defaults.
type BadgeSpec struct {
	Title      string
	Symbol     string
	ContentURI string
}
