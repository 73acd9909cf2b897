package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3" // SQLite driver

	"brainrotMarket/internal/domain"
	"brainrotMarket/internal/ports"
)

const defaultListLimit = 50

// Repository implements the catalog, trade, user and notification ports using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/brainrot_market.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single connection serializes writers, which also makes the
	// conditional trade update below race-free.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS brainrots (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		base_value REAL NOT NULL,
		rarity TEXT NOT NULL,
		demand TEXT NOT NULL,
		image_url TEXT NOT NULL DEFAULT '',
		allowed_mutation_ids TEXT NOT NULL DEFAULT '[]',
		allowed_trait_ids TEXT NOT NULL DEFAULT '[]',
		mutation_overrides TEXT NOT NULL DEFAULT '{}',
		trait_overrides TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS mutations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		multiplier REAL NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		color TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS traits (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		multiplier REAL NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		image_url TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		joiner_id TEXT NOT NULL DEFAULT '',
		offering_items TEXT NOT NULL,
		looking_for_items TEXT NOT NULL,
		offering_total REAL NOT NULL,
		looking_for_total REAL NOT NULL,
		value_difference REAL NOT NULL,
		result TEXT NOT NULL,
		result_percentage REAL NOT NULL,
		status TEXT NOT NULL,
		owner_accepted INTEGER NOT NULL DEFAULT 0,
		joiner_accepted INTEGER NOT NULL DEFAULT 0,
		fail_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		joined_at TIMESTAMP DEFAULT NULL,
		accepted_at TIMESTAMP DEFAULT NULL,
		completed_at TIMESTAMP DEFAULT NULL,
		failed_at TIMESTAMP DEFAULT NULL,
		expires_at TIMESTAMP NOT NULL,
		views INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		trades_posted INTEGER NOT NULL DEFAULT 0,
		trades_accepted INTEGER NOT NULL DEFAULT 0,
		trades_completed INTEGER NOT NULL DEFAULT 0,
		trades_failed INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		trade_id TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		read INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_status_created_at ON trades (status, created_at);
	CREATE INDEX IF NOT EXISTS idx_trades_owner_id ON trades (owner_id);
	CREATE INDEX IF NOT EXISTS idx_trades_joiner_id ON trades (joiner_id);
	CREATE INDEX IF NOT EXISTS idx_notifications_user_created_at ON notifications (user_id, created_at);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- TradeRepository Implementation ---

const tradeColumns = `
	id, owner_id, joiner_id, offering_items, looking_for_items,
	offering_total, looking_for_total, value_difference, result, result_percentage,
	status, owner_accepted, joiner_accepted, fail_reason,
	created_at, joined_at, accepted_at, completed_at, failed_at, expires_at,
	views, version`

// CreateTrade saves a new trade and returns its ID.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.Trade) (string, error) {
	offering, err := json.Marshal(trade.OfferingItems)
	if err != nil {
		return "", fmt.Errorf("failed to encode offering items for trade %s: %w", trade.ID, err)
	}
	lookingFor, err := json.Marshal(trade.LookingForItems)
	if err != nil {
		return "", fmt.Errorf("failed to encode looking-for items for trade %s: %w", trade.ID, err)
	}

	query := `INSERT INTO trades (` + tradeColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		trade.ID, trade.OwnerID, trade.JoinerID, string(offering), string(lookingFor),
		trade.OfferingTotal, trade.LookingForTotal, trade.ValueDifference, trade.Result, trade.ResultPercentage,
		trade.Status, trade.OwnerAccepted, trade.JoinerAccepted, trade.FailReason,
		trade.CreatedAt.UTC(), nullTime(trade.JoinedAt), nullTime(trade.AcceptedAt),
		nullTime(trade.CompletedAt), nullTime(trade.FailedAt), trade.ExpiresAt.UTC(),
		trade.Views, trade.Version)
	if err != nil {
		if isConstraintError(err) {
			return "", fmt.Errorf("trade %s: %w", trade.ID, ports.ErrDuplicateEntry)
		}
		return "", fmt.Errorf("failed to insert trade %s: %w: %w", trade.ID, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": trade.ID, "ownerID": trade.OwnerID})
	return trade.ID, nil
}

// GetTrade retrieves a trade by ID. Returns nil, nil if not found.
func (r *Repository) GetTrade(ctx context.Context, id string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	trade, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Trade not found by ID", map[string]interface{}{"tradeID": id})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query trade by ID %s: %w: %w", id, ports.ErrQueryFailed, err)
	}
	return trade, nil
}

// UpdateTrade applies patch if the stored status and version still match guard.
func (r *Repository) UpdateTrade(ctx context.Context, id string, guard ports.TradeGuard, patch ports.TradePatch) error {
	sets := make([]string, 0, 10)
	args := make([]interface{}, 0, 13)
	set := func(col string, v interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if patch.Status != nil {
		set("status", *patch.Status)
	}
	if patch.JoinerID != nil {
		set("joiner_id", *patch.JoinerID)
	}
	if patch.OwnerAccepted != nil {
		set("owner_accepted", *patch.OwnerAccepted)
	}
	if patch.JoinerAccepted != nil {
		set("joiner_accepted", *patch.JoinerAccepted)
	}
	if patch.FailReason != nil {
		set("fail_reason", *patch.FailReason)
	}
	if patch.JoinedAt != nil {
		set("joined_at", patch.JoinedAt.UTC())
	}
	if patch.AcceptedAt != nil {
		set("accepted_at", patch.AcceptedAt.UTC())
	}
	if patch.CompletedAt != nil {
		set("completed_at", patch.CompletedAt.UTC())
	}
	if patch.FailedAt != nil {
		set("failed_at", patch.FailedAt.UTC())
	}
	sets = append(sets, "version = version + 1")
	args = append(args, id, guard.Status, guard.Version)

	query := `UPDATE trades SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND status = ? AND version = ?`

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update trade %s: %w: %w", id, ports.ErrUpdateFailed, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for update trade %s: %w", id, err)
	}
	if rowsAffected == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM trades WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("trade %s not found for update: %w", id, ports.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check trade %s after update: %w", id, err)
		}
		return fmt.Errorf("trade %s no longer at %s/v%d: %w", id, guard.Status, guard.Version, ports.ErrConflict)
	}
	r.logger.Debug(ctx, "Trade updated", map[string]interface{}{"tradeID": id, "fromStatus": guard.Status, "fromVersion": guard.Version})
	return nil
}

// IncrementViews bumps the view counter without touching the version.
func (r *Repository) IncrementViews(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE trades SET views = views + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment views for trade %s: %w: %w", id, ports.ErrUpdateFailed, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for trade views %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("trade %s not found for view: %w", id, ports.ErrNotFound)
	}
	return nil
}

// ListTrades returns trades matching filter, newest first.
func (r *Repository) ListTrades(ctx context.Context, filter ports.TradeFilter) ([]*domain.Trade, error) {
	var where []string
	var args []interface{}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.ParticipantID != "" {
		where = append(where, "(owner_id = ? OR joiner_id = ?)")
		args = append(args, filter.ParticipantID, filter.ParticipantID)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `SELECT ` + tradeColumns + ` FROM trades`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during ListTrades: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var offering, lookingFor string
	var result, status, failReason string
	var joinedAt, acceptedAt, completedAt, failedAt sql.NullTime
	err := s.Scan(
		&t.ID, &t.OwnerID, &t.JoinerID, &offering, &lookingFor,
		&t.OfferingTotal, &t.LookingForTotal, &t.ValueDifference, &result, &t.ResultPercentage,
		&status, &t.OwnerAccepted, &t.JoinerAccepted, &failReason,
		&t.CreatedAt, &joinedAt, &acceptedAt, &completedAt, &failedAt, &t.ExpiresAt,
		&t.Views, &t.Version)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if err := json.Unmarshal([]byte(offering), &t.OfferingItems); err != nil {
		return nil, fmt.Errorf("failed to decode offering items of trade %s: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(lookingFor), &t.LookingForItems); err != nil {
		return nil, fmt.Errorf("failed to decode looking-for items of trade %s: %w", t.ID, err)
	}
	t.Result = domain.TradeResult(result)
	t.Status = domain.TradeStatus(status)
	t.FailReason = domain.FailReason(failReason)
	t.JoinedAt = timePtr(joinedAt)
	t.AcceptedAt = timePtr(acceptedAt)
	t.CompletedAt = timePtr(completedAt)
	t.FailedAt = timePtr(failedAt)
	t.CreatedAt = t.CreatedAt.UTC()
	t.ExpiresAt = t.ExpiresAt.UTC()
	return t, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// isConstraintError reports whether err is a primary key or unique violation.
func isConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
