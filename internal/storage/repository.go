package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"xarajat/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements core.ExpenseStore on a SQLite file.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ core.ExpenseStore = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations before the main connection opens
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection serializes writers; SQLite allows a single writer anyway
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping implements core.Pinger
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Create implements core.ExpenseStore
func (r *SQLiteRepository) Create(ctx context.Context, e core.Expense) (int64, error) {
	row, err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		UserID:      e.UserID,
		Amount:      e.Amount.String(),
		Category:    e.Category,
		Description: e.Description,
		CreatedAt:   e.CreatedAt.UTC().UnixNano(),
	})
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", row.ID,
		"user_id", row.UserID,
		"amount", row.Amount,
		"category", row.Category)

	return row.ID, nil
}

// ListByUser implements core.ExpenseStore
func (r *SQLiteRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]core.Expense, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.queries.ListExpensesByUser(ctx, userID, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list expenses by user: %w", err)
	}
	return toCore(rows)
}

// ListByUserInRange implements core.ExpenseStore
func (r *SQLiteRepository) ListByUserInRange(ctx context.Context, userID int64, start, end time.Time) ([]core.Expense, error) {
	rows, err := r.queries.ListExpensesByUserInRange(ctx, userID, start.UTC().UnixNano(), end.UTC().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("list expenses in range: %w", err)
	}
	return toCore(rows)
}

// FindByIDAndUser implements core.ExpenseStore
func (r *SQLiteRepository) FindByIDAndUser(ctx context.Context, id, userID int64) (core.Expense, error) {
	row, err := r.queries.GetExpenseByIDAndUser(ctx, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	return fromRow(row)
}

// Delete implements core.ExpenseStore
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	if err := r.queries.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	slog.DebugContext(ctx, "Expense deleted from SQLite", "id", id)
	return nil
}

// SumAndCountByUser implements core.ExpenseStore
func (r *SQLiteRepository) SumAndCountByUser(ctx context.Context, userID int64) (core.Totals, error) {
	amounts, err := r.queries.ListAmountsByUser(ctx, userID)
	if err != nil {
		return core.Totals{}, fmt.Errorf("sum expenses: %w", err)
	}

	totals := core.Totals{Sum: decimal.Zero}
	for _, a := range amounts {
		d, err := decimal.NewFromString(a)
		if err != nil {
			return core.Totals{}, fmt.Errorf("decode amount %q: %w", a, err)
		}
		totals.Sum = totals.Sum.Add(d)
		totals.Count++
	}
	return totals, nil
}

func fromRow(row Expense) (core.Expense, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("decode amount of expense %d: %w", row.ID, err)
	}
	return core.Expense{
		ID:          row.ID,
		UserID:      row.UserID,
		Amount:      amount,
		Category:    row.Category,
		Description: row.Description,
		CreatedAt:   time.Unix(0, row.CreatedAt).UTC(),
	}, nil
}

func toCore(rows []Expense) ([]core.Expense, error) {
	out := make([]core.Expense, 0, len(rows))
	for _, row := range rows {
		e, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
