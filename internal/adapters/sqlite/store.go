// Package sqlite implements the durable store port on SQLite. One file, WAL
// mode, and a striped per-(account, symbol) mutex providing the atomic
// read-then-conditionally-write scope the trading core commits through.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"riskcore/internal/domain"
	"riskcore/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store implements ports.Store.
type Store struct {
	db     *sql.DB
	logger ports.Logger

	// Per-(account, symbol) locks. SQLite serializes writes globally
	// anyway; these locks exist to make the read-then-write scope atomic
	// per pair without serializing unrelated pairs at the Go level.
	pairMu sync.Mutex
	pairs  map[pairKey]*sync.Mutex
}

type pairKey struct {
	accountID int64
	symbol    string
}

// Config holds configuration for the SQLite store.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// New creates a SQLite store, initializing the schema if needed.
func New(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite store")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/riskcore.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally, but the Go driver benefits
	// from limiting connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, logger: cfg.Logger, pairs: make(map[pairKey]*sync.Mutex)}
	if err := s.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite store initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite store ready", map[string]interface{}{"path": dbPath})
	return s, nil
}

func (s *Store) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		balance REAL NOT NULL,
		max_risk_per_trade REAL NOT NULL,
		is_demo INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS instruments (
		symbol TEXT PRIMARY KEY,
		min_stop_distance REAL NOT NULL,
		point_size REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		take_profit REAL DEFAULT NULL,
		size REAL NOT NULL,
		remaining_size REAL NOT NULL,
		risk_fraction REAL NOT NULL,
		status TEXT NOT NULL,
		hedge_disabled INTEGER NOT NULL DEFAULT 1,
		unrealized_pnl REAL DEFAULT 0,
		pnl REAL DEFAULT 0,
		close_price REAL DEFAULT NULL,
		close_reason TEXT DEFAULT NULL,
		opened_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP DEFAULT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_positions_status ON positions (status);
	CREATE INDEX IF NOT EXISTS idx_positions_pair ON positions (account_id, symbol, status);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		s.logger.Info(context.Background(), "Closing SQLite store")
		return s.db.Close()
	}
	return nil
}

// pairLock returns the mutex for a pair, creating it on first use. The map
// grows with the number of distinct (account, symbol) pairs ever touched
// and is never trimmed: a mutex cannot be evicted while another goroutine
// may hold it. One map entry per pair, so growth is bounded by the account
// and instrument population, not by traffic.
func (s *Store) pairLock(accountID int64, symbol string) *sync.Mutex {
	key := pairKey{accountID: accountID, symbol: strings.ToUpper(symbol)}
	s.pairMu.Lock()
	defer s.pairMu.Unlock()
	mu, ok := s.pairs[key]
	if !ok {
		mu = &sync.Mutex{}
		s.pairs[key] = mu
	}
	return mu
}

// WithPair runs fn inside the atomic scope for one (account, symbol) pair:
// the pair's mutex plus a SQL transaction. Scopes on different pairs do
// not contend on each other's locks.
func (s *Store) WithPair(ctx context.Context, accountID int64, symbol string, fn func(tx ports.PairTx) error) error {
	mu := s.pairLock(accountID, symbol)
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w: %w", ports.ErrStoreUnavailable, err)
	}
	if err := fn(&pairTx{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error(ctx, rbErr, "rollback failed", map[string]interface{}{
				"accountID": accountID, "symbol": symbol,
			})
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx, so pair-scope reads and
// plain reads share the same query code.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// pairTx implements ports.PairTx over an open transaction.
type pairTx struct {
	q queryer
}

func (t *pairTx) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	return getAccount(ctx, t.q, id)
}

func (t *pairTx) UpdateAccountBalance(ctx context.Context, id int64, balance float64) error {
	res, err := t.q.ExecContext(ctx, `UPDATE accounts SET balance = ? WHERE id = ?`, balance, id)
	if err != nil {
		return fmt.Errorf("failed to update balance of account %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for account %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("account %d not found for balance update: %w", id, ports.ErrNotFound)
	}
	return nil
}

func (t *pairTx) GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error) {
	return getInstrument(ctx, t.q, symbol)
}

func (t *pairTx) FindLivePositions(ctx context.Context, accountID int64, symbol string) ([]*domain.Position, error) {
	const query = selectPosition + `
	WHERE account_id = ? AND symbol = ? AND status IN (?, ?)`
	rows, err := t.q.QueryContext(ctx, query, accountID, strings.ToUpper(symbol), domain.StatusOpen, domain.StatusPartial)
	if err != nil {
		return nil, fmt.Errorf("failed to query live positions for account %d symbol %s: %w", accountID, symbol, err)
	}
	return collectPositions(rows)
}

func (t *pairTx) CreatePosition(ctx context.Context, pos *domain.Position) (int64, error) {
	const query = `
	INSERT INTO positions (account_id, symbol, side, entry_price, stop_loss, take_profit,
	                       size, remaining_size, risk_fraction, status, hedge_disabled, opened_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var takeProfit sql.NullFloat64
	if pos.TakeProfit > 0 {
		takeProfit = sql.NullFloat64{Float64: pos.TakeProfit, Valid: true}
	}

	result, err := t.q.ExecContext(ctx, query,
		pos.AccountID, strings.ToUpper(pos.Symbol), pos.Side, pos.EntryPrice, pos.StopLoss, takeProfit,
		pos.Size, pos.RemainingSize, pos.RiskFraction, pos.Status, pos.HedgeDisabled, pos.OpenedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert position for account %d: %w", pos.AccountID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for position: %w", err)
	}
	pos.ID = id
	return id, nil
}

func (t *pairTx) GetPosition(ctx context.Context, id int64) (*domain.Position, error) {
	return getPosition(ctx, t.q, id)
}

func (t *pairTx) UpdatePosition(ctx context.Context, pos *domain.Position) error {
	const query = `
	UPDATE positions
	SET remaining_size = ?, status = ?, unrealized_pnl = ?, pnl = ?,
	    close_price = ?, close_reason = ?, closed_at = ?
	WHERE id = ?`

	var closedAt sql.NullTime
	if !pos.ClosedAt.IsZero() {
		closedAt = sql.NullTime{Time: pos.ClosedAt, Valid: true}
	}
	var closeReason sql.NullString
	if pos.CloseReason != "" {
		closeReason = sql.NullString{String: string(pos.CloseReason), Valid: true}
	}
	var closePrice sql.NullFloat64
	if pos.ClosePrice > 0 {
		closePrice = sql.NullFloat64{Float64: pos.ClosePrice, Valid: true}
	}

	result, err := t.q.ExecContext(ctx, query,
		pos.RemainingSize, pos.Status, pos.UnrealizedPNL, pos.PNL,
		closePrice, closeReason, closedAt, pos.ID)
	if err != nil {
		return fmt.Errorf("failed to update position ID %d: %w", pos.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for position ID %d: %w", pos.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("position ID %d not found for update: %w", pos.ID, ports.ErrNotFound)
	}
	return nil
}

// --- Store-level reads (outside a pair scope) ---

func (s *Store) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	return getAccount(ctx, s.db, id)
}

func (s *Store) GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error) {
	return getInstrument(ctx, s.db, symbol)
}

func (s *Store) GetPosition(ctx context.Context, id int64) (*domain.Position, error) {
	return getPosition(ctx, s.db, id)
}

func (s *Store) FindAllLivePositions(ctx context.Context) ([]*domain.Position, error) {
	const query = selectPosition + `
	WHERE status IN (?, ?)
	ORDER BY opened_at ASC`
	rows, err := s.db.QueryContext(ctx, query, domain.StatusOpen, domain.StatusPartial)
	if err != nil {
		return nil, fmt.Errorf("failed to query live positions: %w", err)
	}
	return collectPositions(rows)
}

func (s *Store) UpdateUnrealizedPNL(ctx context.Context, positionID int64, pnl float64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE positions SET unrealized_pnl = ? WHERE id = ?`, pnl, positionID)
	if err != nil {
		return fmt.Errorf("failed to update unrealized PNL for position %d: %w", positionID, err)
	}
	return nil
}

// --- Seeding helpers (used by cmd/seed and tests) ---

// CreateAccount inserts an account and returns its assigned ID.
func (s *Store) CreateAccount(ctx context.Context, acc *domain.Account) (int64, error) {
	createdAt := acc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (balance, max_risk_per_trade, is_demo, created_at) VALUES (?, ?, ?, ?)`,
		acc.Balance, acc.MaxRiskPerTrade, acc.IsDemo, createdAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert account: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for account: %w", err)
	}
	acc.ID = id
	acc.CreatedAt = createdAt
	return id, nil
}

// UpsertInstrument inserts or replaces instrument reference data.
func (s *Store) UpsertInstrument(ctx context.Context, inst *domain.Instrument) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO instruments (symbol, min_stop_distance, point_size) VALUES (?, ?, ?)`,
		strings.ToUpper(inst.Symbol), inst.MinStopDistance, inst.PointSize)
	if err != nil {
		return fmt.Errorf("failed to upsert instrument %s: %w", inst.Symbol, err)
	}
	return nil
}

// --- Shared query helpers ---

const selectPosition = `
	SELECT id, account_id, symbol, side, entry_price, stop_loss, COALESCE(take_profit, 0),
	       size, remaining_size, risk_fraction, status, hedge_disabled,
	       COALESCE(unrealized_pnl, 0), COALESCE(pnl, 0), COALESCE(close_price, 0),
	       close_reason, opened_at, closed_at
	FROM positions`

func getAccount(ctx context.Context, q queryer, id int64) (*domain.Account, error) {
	const query = `SELECT id, balance, max_risk_per_trade, is_demo, created_at FROM accounts WHERE id = ?`
	acc := &domain.Account{}
	err := q.QueryRowContext(ctx, query, id).Scan(
		&acc.ID, &acc.Balance, &acc.MaxRiskPerTrade, &acc.IsDemo, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query account %d: %w", id, err)
	}
	return acc, nil
}

func getInstrument(ctx context.Context, q queryer, symbol string) (*domain.Instrument, error) {
	const query = `SELECT symbol, min_stop_distance, point_size FROM instruments WHERE symbol = ?`
	inst := &domain.Instrument{}
	err := q.QueryRowContext(ctx, query, strings.ToUpper(symbol)).Scan(
		&inst.Symbol, &inst.MinStopDistance, &inst.PointSize)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query instrument %s: %w", symbol, err)
	}
	return inst, nil
}

func getPosition(ctx context.Context, q queryer, id int64) (*domain.Position, error) {
	row := q.QueryRowContext(ctx, selectPosition+` WHERE id = ?`, id)
	pos, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query position %d: %w", id, err)
	}
	return pos, nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var (
		side        string
		status      string
		closeReason sql.NullString
		closedAt    sql.NullTime
	)
	err := s.Scan(
		&p.ID, &p.AccountID, &p.Symbol, &side, &p.EntryPrice, &p.StopLoss, &p.TakeProfit,
		&p.Size, &p.RemainingSize, &p.RiskFraction, &status, &p.HedgeDisabled,
		&p.UnrealizedPNL, &p.PNL, &p.ClosePrice,
		&closeReason, &p.OpenedAt, &closedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	p.Side = domain.Side(side)
	p.Status = domain.PositionStatus(status)
	if closeReason.Valid {
		p.CloseReason = domain.CloseReason(closeReason.String)
	}
	if closedAt.Valid {
		p.ClosedAt = closedAt.Time
	}
	return p, nil
}

func collectPositions(rows *sql.Rows) ([]*domain.Position, error) {
	defer rows.Close()
	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}
