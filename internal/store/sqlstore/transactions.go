package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goblin-dev/goblin/internal/model"
	"github.com/goblin-dev/goblin/internal/store"
)

// CreateTransaction inserts txn and sets its ID. A reused import hash fails
// with store.ErrDuplicate.
func (s *Store) CreateTransaction(ctx context.Context, txn *model.Transaction) (int64, error) {
	var hash sql.NullString
	if txn.ImportHash != "" {
		hash = sql.NullString{String: txn.ImportHash, Valid: true}
	}

	id, err := s.insert(ctx, `
		INSERT INTO transactions (
			account_id, category_id, date, payee, amount,
			balance_snapshot, status, is_reconciled, import_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.AccountID, nullInt64(txn.CategoryID), txn.Date, txn.Payee, txn.Amount,
		nullInt64(txn.BalanceSnapshot), txn.Status, txn.IsReconciled, hash)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("insert transaction %s: %w", txn.ImportHash, store.ErrDuplicate)
	}
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	txn.ID = id
	return id, nil
}

// ExistsByHash reports whether a transaction with the import hash is stored.
func (s *Store) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := s.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE import_hash = ?)`, hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query import hash: %w", err)
	}
	return exists, nil
}

// ListTransactions returns an account's transactions inside r, newest first.
func (s *Store) ListTransactions(ctx context.Context, accountID int64, r model.DateRange) ([]model.Transaction, error) {
	where, args := dateFilter("date", r, []any{accountID})
	rows, err := s.query(ctx, `
		SELECT id, account_id, category_id, date, payee, amount,
			   balance_snapshot, status, is_reconciled, COALESCE(import_hash, '')
		FROM transactions
		WHERE account_id = ?`+where+`
		ORDER BY date DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var categoryID, balance sql.NullInt64
		if err := rows.Scan(&t.ID, &t.AccountID, &categoryID, &t.Date, &t.Payee, &t.Amount,
			&balance, &t.Status, &t.IsReconciled, &t.ImportHash); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.CategoryID = int64Ptr(categoryID)
		t.BalanceSnapshot = int64Ptr(balance)
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// RecategorizeTransactions moves the transactions in ids to categoryID, or
// clears their category when it is nil. It returns the number of rows
// changed; ids that do not exist are skipped.
func (s *Store) RecategorizeTransactions(ctx context.Context, ids []int64, categoryID *int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var n int64
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		if categoryID != nil {
			var exists bool
			err := s.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM categories WHERE id = ?)`, *categoryID).Scan(&exists)
			if err != nil {
				return fmt.Errorf("query category: %w", err)
			}
			if !exists {
				return fmt.Errorf("category %d: %w", *categoryID, store.ErrNotFound)
			}
		}

		args := make([]any, 0, len(ids)+1)
		args = append(args, nullInt64(categoryID))
		for _, id := range ids {
			args = append(args, id)
		}
		res, err := s.exec(ctx, `UPDATE transactions SET category_id = ? WHERE id IN (`+placeholders(len(ids))+`)`, args...)
		if err != nil {
			return fmt.Errorf("update transaction category: %w", err)
		}
		n, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update transaction category: %w", err)
		}
		return nil
	})
	return n, err
}

// SpendingByCategory totals an account's expenses inside r per top-level
// category, most spent first. Subcategory spending rolls up into its parent.
func (s *Store) SpendingByCategory(ctx context.Context, accountID int64, r model.DateRange) ([]model.CategorySpending, error) {
	where, args := dateFilter("t.date", r, []any{model.UncategorizedName, accountID})
	rows, err := s.query(ctx, `
		SELECT COALESCE(p.name, c.name, ?) AS category, CAST(SUM(t.amount) AS BIGINT) AS total
		FROM transactions t
		LEFT JOIN categories c ON t.category_id = c.id
		LEFT JOIN categories p ON c.parent_id = p.id
		WHERE t.account_id = ? AND t.amount < 0`+where+`
		GROUP BY category
		ORDER BY total ASC, category`, args...)
	if err != nil {
		return nil, fmt.Errorf("query spending by category: %w", err)
	}
	defer rows.Close()

	var totals []model.CategorySpending
	for rows.Next() {
		var cs model.CategorySpending
		if err := rows.Scan(&cs.Category, &cs.Total); err != nil {
			return nil, fmt.Errorf("scan spending: %w", err)
		}
		totals = append(totals, cs)
	}
	return totals, rows.Err()
}

// dateFilter appends the bounds of r on column to a WHERE clause.
func dateFilter(column string, r model.DateRange, args []any) (string, []any) {
	var where string
	if r.From != "" {
		where += " AND " + column + " >= ?"
		args = append(args, r.From)
	}
	if r.To != "" {
		where += " AND " + column + " <= ?"
		args = append(args, r.To)
	}
	return where, args
}

// ExpensesByAccount returns the negative-amount transactions of an account,
// newest first.
func (s *Store) ExpensesByAccount(ctx context.Context, accountID int64) ([]model.Expense, error) {
	rows, err := s.query(ctx, `
		SELECT id, payee, amount, date
		FROM transactions
		WHERE account_id = ? AND amount < 0
		ORDER BY date DESC, id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []model.Expense
	for rows.Next() {
		var e model.Expense
		if err := rows.Scan(&e.ID, &e.Payee, &e.Amount, &e.Date); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// SumExpenses returns the absolute total of expenses booked on any of
// categoryIDs during month (YYYY-MM).
func (s *Store) SumExpenses(ctx context.Context, categoryIDs []int64, month string) (int64, error) {
	if len(categoryIDs) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(categoryIDs)+1)
	for _, id := range categoryIDs {
		args = append(args, id)
	}
	args = append(args, month+"-%")

	var total int64
	err := s.queryRow(ctx, `
		SELECT COALESCE(SUM(ABS(amount)), 0)
		FROM transactions
		WHERE category_id IN (`+placeholders(len(categoryIDs))+`)
		  AND amount < 0
		  AND date LIKE ?`, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum expenses: %w", err)
	}
	return total, nil
}
