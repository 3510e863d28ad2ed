package ports

import (
	"context"

	"riskcore/internal/domain"
)

// PairTx is the view of the durable store inside a per-(account, instrument)
// atomic scope. Every read made through it observes the same transactional
// snapshot the eventual write commits against, which is what makes the
// hedge check race-free.
type PairTx interface {
	// GetAccount retrieves an account by ID. Returns nil, nil if not found.
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	// UpdateAccountBalance sets the account balance.
	UpdateAccountBalance(ctx context.Context, id int64, balance float64) error
	// GetInstrument retrieves instrument reference data by symbol.
	// Returns nil, nil if not found.
	GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error)
	// FindLivePositions returns the OPEN/PARTIAL positions for the
	// (account, symbol) pair this scope is keyed on.
	FindLivePositions(ctx context.Context, accountID int64, symbol string) ([]*domain.Position, error)
	// CreatePosition inserts a new position and returns its assigned ID.
	CreatePosition(ctx context.Context, pos *domain.Position) (int64, error)
	// GetPosition retrieves a position by ID. Returns nil, nil if not found.
	GetPosition(ctx context.Context, id int64) (*domain.Position, error)
	// UpdatePosition persists the mutable fields of a position.
	UpdatePosition(ctx context.Context, pos *domain.Position) error
}

// Store is the durable storage boundary for accounts, instruments and
// positions.
type Store interface {
	// WithPair runs fn inside an atomic read-then-conditionally-write scope
	// keyed by (account, symbol). Scopes on the same pair serialize; scopes
	// on different pairs do not contend. fn returning an error rolls the
	// scope back.
	WithPair(ctx context.Context, accountID int64, symbol string, fn func(tx PairTx) error) error

	// GetAccount retrieves an account by ID. Returns nil, nil if not found.
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	// GetInstrument retrieves instrument reference data by symbol.
	// Returns nil, nil if not found.
	GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error)
	// GetPosition retrieves a position by ID. Returns nil, nil if not found.
	GetPosition(ctx context.Context, id int64) (*domain.Position, error)
	// FindAllLivePositions returns every OPEN/PARTIAL position across all
	// accounts, the working set of a monitor scan.
	FindAllLivePositions(ctx context.Context) ([]*domain.Position, error)
	// UpdateUnrealizedPNL stores the latest mark-to-market P&L for a
	// position without touching anything else.
	UpdateUnrealizedPNL(ctx context.Context, positionID int64, pnl float64) error
}
