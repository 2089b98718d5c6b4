package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goblin-dev/goblin/internal/model"
	"github.com/goblin-dev/goblin/internal/store"
)

// CreateAccount inserts a new account. An empty currency becomes DKK.
func (s *Store) CreateAccount(ctx context.Context, a *model.Account) (int64, error) {
	if a.Currency == "" {
		a.Currency = model.DefaultCurrency
	}
	id, err := s.insert(ctx, `INSERT INTO accounts (name, account_number, currency) VALUES (?, ?, ?)`,
		a.Name, a.AccountNumber, a.Currency)
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	a.ID = id
	return id, nil
}

// GetAccount returns a single account by ID
func (s *Store) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	var a model.Account
	err := s.queryRow(ctx, `SELECT id, name, account_number, currency FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.AccountNumber, &a.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}
	return &a, nil
}

// ListAccounts returns all accounts ordered by id.
func (s *Store) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.query(ctx, `SELECT id, name, account_number, currency FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.AccountNumber, &a.Currency); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
