package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the SQL statements for the expenses table.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Expense mirrors one row of the expenses table.
type Expense struct {
	ID          int64
	UserID      int64
	Amount      string
	Category    string
	Description string
	CreatedAt   int64 // unix nanoseconds, UTC
}

const expenseColumns = `id, user_id, amount, category, description, created_at`

const createExpense = `INSERT INTO expenses (user_id, amount, category, description, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + expenseColumns

type CreateExpenseParams struct {
	UserID      int64
	Amount      string
	Category    string
	Description string
	CreatedAt   int64
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (Expense, error) {
	row := q.db.QueryRowContext(ctx, createExpense,
		arg.UserID,
		arg.Amount,
		arg.Category,
		arg.Description,
		arg.CreatedAt,
	)
	var i Expense
	err := scanExpense(row, &i)
	return i, err
}

const listExpensesByUser = `SELECT ` + expenseColumns + `
FROM expenses
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`

func (q *Queries) ListExpensesByUser(ctx context.Context, userID int64, limit int64) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpensesByUser, userID, limit)
	if err != nil {
		return nil, err
	}
	return collectExpenses(rows)
}

const listExpensesByUserInRange = `SELECT ` + expenseColumns + `
FROM expenses
WHERE user_id = ? AND created_at >= ? AND created_at <= ?
ORDER BY created_at DESC, id DESC`

func (q *Queries) ListExpensesByUserInRange(ctx context.Context, userID, start, end int64) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpensesByUserInRange, userID, start, end)
	if err != nil {
		return nil, err
	}
	return collectExpenses(rows)
}

const getExpenseByIDAndUser = `SELECT ` + expenseColumns + `
FROM expenses
WHERE id = ? AND user_id = ?`

func (q *Queries) GetExpenseByIDAndUser(ctx context.Context, id, userID int64) (Expense, error) {
	row := q.db.QueryRowContext(ctx, getExpenseByIDAndUser, id, userID)
	var i Expense
	err := scanExpense(row, &i)
	return i, err
}

const deleteExpense = `DELETE FROM expenses WHERE id = ?`

func (q *Queries) DeleteExpense(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteExpense, id)
	return err
}

const listAmountsByUser = `SELECT amount FROM expenses WHERE user_id = ?`

// ListAmountsByUser returns the raw decimal text of every amount so the
// caller can sum exactly; SQLite's SUM would go through floating point.
func (q *Queries) ListAmountsByUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listAmountsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return nil, err
		}
		items = append(items, amount)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanExpense(s scanner, i *Expense) error {
	return s.Scan(
		&i.ID,
		&i.UserID,
		&i.Amount,
		&i.Category,
		&i.Description,
		&i.CreatedAt,
	)
}

func collectExpenses(rows *sql.Rows) ([]Expense, error) {
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		var i Expense
		if err := scanExpense(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
