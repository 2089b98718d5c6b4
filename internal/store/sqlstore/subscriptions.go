package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goblin-dev/goblin/internal/model"
	"github.com/goblin-dev/goblin/internal/store"
)

// SavedPatterns returns the (pattern, amount) keys of the account's active
// subscriptions.
func (s *Store) SavedPatterns(ctx context.Context, accountID int64) (map[model.PatternKey]bool, error) {
	rows, err := s.query(ctx, `
		SELECT payee_pattern, amount FROM subscriptions
		WHERE account_id = ? AND is_active = ?`, accountID, true)
	if err != nil {
		return nil, fmt.Errorf("query saved patterns: %w", err)
	}
	defer rows.Close()

	patterns := make(map[model.PatternKey]bool)
	for rows.Next() {
		var k model.PatternKey
		if err := rows.Scan(&k.Pattern, &k.Amount); err != nil {
			return nil, fmt.Errorf("scan saved pattern: %w", err)
		}
		patterns[k] = true
	}
	return patterns, rows.Err()
}

// SaveSubscription stores sub as active together with its transaction links.
func (s *Store) SaveSubscription(ctx context.Context, sub *model.Subscription) (int64, error) {
	var id int64
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		id, err = s.insert(ctx, `
			INSERT INTO subscriptions (
				account_id, payee_pattern, amount, frequency, last_charge_date,
				next_charge_date, is_active, category_id, confidence
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sub.AccountID, sub.PayeePattern, sub.Amount, string(sub.Frequency), sub.LastChargeDate,
			sub.NextChargeDate, true, nullInt64(sub.CategoryID), sub.Confidence)
		if err != nil {
			return fmt.Errorf("insert subscription: %w", err)
		}
		for _, txnID := range sub.TransactionIDs {
			if _, err := s.exec(ctx, `
				INSERT INTO subscription_transactions (subscription_id, transaction_id) VALUES (?, ?)`,
				id, txnID); err != nil {
				return fmt.Errorf("link transaction %d: %w", txnID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	sub.ID = id
	sub.IsActive = true
	return id, nil
}

// ListSubscriptions returns the account's active subscriptions ordered by next
// charge date; unknown dates sort last.
func (s *Store) ListSubscriptions(ctx context.Context, accountID int64) ([]model.Subscription, error) {
	rows, err := s.query(ctx, `
		SELECT id, account_id, payee_pattern, amount, frequency, last_charge_date,
			   next_charge_date, is_active, category_id, confidence
		FROM subscriptions
		WHERE account_id = ? AND is_active = ?
		ORDER BY next_charge_date = '', next_charge_date, id`, accountID, true)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}

	var subs []model.Subscription
	for rows.Next() {
		var sub model.Subscription
		var freq string
		var categoryID sql.NullInt64
		if err := rows.Scan(&sub.ID, &sub.AccountID, &sub.PayeePattern, &sub.Amount, &freq,
			&sub.LastChargeDate, &sub.NextChargeDate, &sub.IsActive, &categoryID, &sub.Confidence); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sub.Frequency = model.Frequency(freq)
		sub.CategoryID = int64Ptr(categoryID)
		subs = append(subs, sub)
	}
	// Rows must be closed before the link queries; SQLite runs on one connection.
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}

	for i := range subs {
		ids, err := s.subscriptionTransactions(ctx, subs[i].ID)
		if err != nil {
			return nil, err
		}
		subs[i].TransactionIDs = ids
	}
	return subs, nil
}

func (s *Store) subscriptionTransactions(ctx context.Context, subID int64) ([]int64, error) {
	rows, err := s.query(ctx, `
		SELECT transaction_id FROM subscription_transactions
		WHERE subscription_id = ?
		ORDER BY transaction_id`, subID)
	if err != nil {
		return nil, fmt.Errorf("query subscription links: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscription link: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DismissSubscription marks a subscription inactive. Dismissed patterns are
// detected again.
func (s *Store) DismissSubscription(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `UPDATE subscriptions SET is_active = ? WHERE id = ?`, false, id)
	if err != nil {
		return fmt.Errorf("dismiss subscription: %w", err)
	}
	return expectOne(res, "subscription", id)
}

// DeleteSubscription removes a subscription and its transaction links.
func (s *Store) DeleteSubscription(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return expectOne(res, "subscription", id)
}

// ClearSubscriptions deletes every subscription of an account and returns how
// many were removed.
func (s *Store) ClearSubscriptions(ctx context.Context, accountID int64) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM subscriptions WHERE account_id = ?`, accountID)
	if err != nil {
		return 0, fmt.Errorf("clear subscriptions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear subscriptions: %w", err)
	}
	return n, nil
}

func expectOne(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, store.ErrNotFound)
	}
	return nil
}
