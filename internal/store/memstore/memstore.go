// Package memstore is an in-memory goblin store for tests.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/goblin-dev/goblin/internal/model"
	"github.com/goblin-dev/goblin/internal/store"
)

// Store keeps every table in maps guarded by one RWMutex.
type Store struct {
	mu sync.RWMutex
	data
}

type data struct {
	nextID        int64
	accounts      map[int64]model.Account
	categories    map[int64]model.Category
	transactions  map[int64]model.Transaction
	hashes        map[string]int64
	subscriptions map[int64]model.Subscription
	imports       []model.ImportLog
}

// New returns an empty store.
func New() *Store {
	return &Store{data: data{
		accounts:      make(map[int64]model.Account),
		categories:    make(map[int64]model.Category),
		transactions:  make(map[int64]model.Transaction),
		hashes:        make(map[string]int64),
		subscriptions: make(map[int64]model.Subscription),
	}}
}

func (d *data) id() int64 {
	d.nextID++
	return d.nextID
}

// clone deep-copies the maps so a snapshot survives later writes.
func (d *data) clone() data {
	c := data{
		nextID:        d.nextID,
		accounts:      make(map[int64]model.Account, len(d.accounts)),
		categories:    make(map[int64]model.Category, len(d.categories)),
		transactions:  make(map[int64]model.Transaction, len(d.transactions)),
		hashes:        make(map[string]int64, len(d.hashes)),
		subscriptions: make(map[int64]model.Subscription, len(d.subscriptions)),
		imports:       slices.Clone(d.imports),
	}
	for k, v := range d.accounts {
		c.accounts[k] = v
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	for k, v := range d.transactions {
		c.transactions[k] = v
	}
	for k, v := range d.hashes {
		c.hashes[k] = v
	}
	for k, v := range d.subscriptions {
		v.TransactionIDs = slices.Clone(v.TransactionIDs)
		c.subscriptions[k] = v
	}
	return c
}

type txKey struct{}

// WithinTx snapshots the store and restores the snapshot if fn fails. Writes
// from other goroutines during fn are rolled back with it.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) CreateAccount(_ context.Context, a *model.Account) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Currency == "" {
		a.Currency = model.DefaultCurrency
	}
	a.ID = s.id()
	s.accounts[a.ID] = *a
	return a.ID, nil
}

func (s *Store) GetAccount(_ context.Context, id int64) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %d: %w", id, store.ErrNotFound)
	}
	return &a, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.accounts, func(a, b model.Account) int { return cmp.Compare(a.ID, b.ID) }), nil
}

func (s *Store) FindOrCreateCategory(_ context.Context, name string, parentID *int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.Name == name && equalPtr(c.ParentID, parentID) {
			return c.ID, nil
		}
	}
	if parentID != nil {
		if _, ok := s.categories[*parentID]; !ok {
			return 0, fmt.Errorf("parent category %d: %w", *parentID, store.ErrNotFound)
		}
	}
	c := model.Category{ID: s.id(), Name: name, ParentID: copyPtr(parentID)}
	s.categories[c.ID] = c
	return c.ID, nil
}

func (s *Store) ListCategories(_ context.Context) ([]model.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.categories, func(a, b model.Category) int {
		if (a.ParentID == nil) != (b.ParentID == nil) {
			if a.ParentID == nil {
				return -1
			}
			return 1
		}
		return cmp.Or(strings.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	}), nil
}

func (s *Store) ChildCategories(_ context.Context, parentID int64) ([]model.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var children []model.Category
	for _, c := range s.categories {
		if c.ParentID != nil && *c.ParentID == parentID {
			children = append(children, c)
		}
	}
	slices.SortFunc(children, func(a, b model.Category) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return children, nil
}

func (s *Store) CreateTransaction(_ context.Context, txn *model.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[txn.AccountID]; !ok {
		return 0, fmt.Errorf("account %d: %w", txn.AccountID, store.ErrNotFound)
	}
	if txn.ImportHash != "" {
		if _, dup := s.hashes[txn.ImportHash]; dup {
			return 0, fmt.Errorf("insert transaction %s: %w", txn.ImportHash, store.ErrDuplicate)
		}
	}
	txn.ID = s.id()
	stored := *txn
	stored.CategoryID = copyPtr(txn.CategoryID)
	stored.BalanceSnapshot = copyPtr(txn.BalanceSnapshot)
	s.transactions[txn.ID] = stored
	if txn.ImportHash != "" {
		s.hashes[txn.ImportHash] = txn.ID
	}
	return txn.ID, nil
}

func (s *Store) ExistsByHash(_ context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.hashes[hash]
	return ok, nil
}

func newestFirst(a, b model.Transaction) int {
	return cmp.Or(strings.Compare(b.Date, a.Date), cmp.Compare(b.ID, a.ID))
}

func (s *Store) ListTransactions(_ context.Context, accountID int64, r model.DateRange) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var txns []model.Transaction
	for _, t := range s.transactions {
		if t.AccountID == accountID && r.Contains(t.Date) {
			txns = append(txns, t)
		}
	}
	slices.SortFunc(txns, newestFirst)
	return txns, nil
}

func (s *Store) RecategorizeTransactions(_ context.Context, ids []int64, categoryID *int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if categoryID != nil {
		if _, ok := s.categories[*categoryID]; !ok {
			return 0, fmt.Errorf("category %d: %w", *categoryID, store.ErrNotFound)
		}
	}
	var n int64
	for _, id := range slices.Compact(slices.Sorted(slices.Values(ids))) {
		t, ok := s.transactions[id]
		if !ok {
			continue
		}
		t.CategoryID = copyPtr(categoryID)
		s.transactions[id] = t
		n++
	}
	return n, nil
}

func (s *Store) SpendingByCategory(_ context.Context, accountID int64, r model.DateRange) ([]model.CategorySpending, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totals := make(map[string]int64)
	for _, t := range s.transactions {
		if t.AccountID != accountID || t.Amount >= 0 || !r.Contains(t.Date) {
			continue
		}
		totals[s.topCategoryName(t.CategoryID)] += t.Amount
	}

	spending := make([]model.CategorySpending, 0, len(totals))
	for name, total := range totals {
		spending = append(spending, model.CategorySpending{Category: name, Total: total})
	}
	slices.SortFunc(spending, func(a, b model.CategorySpending) int {
		return cmp.Or(cmp.Compare(a.Total, b.Total), strings.Compare(a.Category, b.Category))
	})
	return spending, nil
}

// topCategoryName names the parent of a subcategory, or the category itself.
func (s *Store) topCategoryName(id *int64) string {
	if id == nil {
		return model.UncategorizedName
	}
	c, ok := s.categories[*id]
	if !ok {
		return model.UncategorizedName
	}
	if c.ParentID != nil {
		if p, ok := s.categories[*c.ParentID]; ok {
			return p.Name
		}
	}
	return c.Name
}

func (s *Store) ExpensesByAccount(ctx context.Context, accountID int64) ([]model.Expense, error) {
	txns, err := s.ListTransactions(ctx, accountID, model.DateRange{})
	if err != nil {
		return nil, err
	}
	var expenses []model.Expense
	for _, t := range txns {
		if t.Amount < 0 {
			expenses = append(expenses, model.Expense{ID: t.ID, Payee: t.Payee, Amount: t.Amount, Date: t.Date})
		}
	}
	return expenses, nil
}

func (s *Store) SumExpenses(_ context.Context, categoryIDs []int64, month string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, t := range s.transactions {
		if t.CategoryID == nil || t.Amount >= 0 || !strings.HasPrefix(t.Date, month+"-") {
			continue
		}
		if slices.Contains(categoryIDs, *t.CategoryID) {
			total -= t.Amount
		}
	}
	return total, nil
}

func (s *Store) SavedPatterns(_ context.Context, accountID int64) (map[model.PatternKey]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	patterns := make(map[model.PatternKey]bool)
	for _, sub := range s.subscriptions {
		if sub.AccountID == accountID && sub.IsActive {
			patterns[sub.Key()] = true
		}
	}
	return patterns, nil
}

func (s *Store) SaveSubscription(_ context.Context, sub *model.Subscription) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[sub.AccountID]; !ok {
		return 0, fmt.Errorf("account %d: %w", sub.AccountID, store.ErrNotFound)
	}
	for _, id := range sub.TransactionIDs {
		if _, ok := s.transactions[id]; !ok {
			return 0, fmt.Errorf("link transaction %d: %w", id, store.ErrNotFound)
		}
	}
	sub.ID = s.id()
	sub.IsActive = true
	stored := *sub
	stored.TransactionIDs = slices.Sorted(slices.Values(sub.TransactionIDs))
	stored.CategoryID = copyPtr(sub.CategoryID)
	s.subscriptions[sub.ID] = stored
	return sub.ID, nil
}

func (s *Store) ListSubscriptions(_ context.Context, accountID int64) ([]model.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var subs []model.Subscription
	for _, sub := range s.subscriptions {
		if sub.AccountID == accountID && sub.IsActive {
			sub.TransactionIDs = slices.Clone(sub.TransactionIDs)
			subs = append(subs, sub)
		}
	}
	slices.SortFunc(subs, func(a, b model.Subscription) int {
		if (a.NextChargeDate == "") != (b.NextChargeDate == "") {
			if a.NextChargeDate == "" {
				return 1
			}
			return -1
		}
		return cmp.Or(strings.Compare(a.NextChargeDate, b.NextChargeDate), cmp.Compare(a.ID, b.ID))
	})
	return subs, nil
}

func (s *Store) DismissSubscription(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[id]
	if !ok {
		return fmt.Errorf("subscription %d: %w", id, store.ErrNotFound)
	}
	sub.IsActive = false
	s.subscriptions[id] = sub
	return nil
}

func (s *Store) DeleteSubscription(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscriptions[id]; !ok {
		return fmt.Errorf("subscription %d: %w", id, store.ErrNotFound)
	}
	delete(s.subscriptions, id)
	return nil
}

func (s *Store) ClearSubscriptions(_ context.Context, accountID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sub := range s.subscriptions {
		if sub.AccountID == accountID {
			delete(s.subscriptions, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) LogImport(_ context.Context, entry *model.ImportLog) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.id()
	entry.ImportedAt = entry.ImportedAt.UTC()
	s.imports = append(s.imports, *entry)
	return entry.ID, nil
}

func (s *Store) ListImports(_ context.Context) ([]model.ImportLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := slices.Clone(s.imports)
	slices.SortFunc(entries, func(a, b model.ImportLog) int {
		return cmp.Or(b.ImportedAt.Compare(a.ImportedAt), cmp.Compare(b.ID, a.ID))
	})
	return entries, nil
}

func sortedValues[K comparable, V any](m map[K]V, compare func(a, b V) int) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	slices.SortFunc(out, compare)
	return out
}

func equalPtr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyPtr(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
