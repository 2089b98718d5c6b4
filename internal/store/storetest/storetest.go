// Package storetest checks that a store implementation behaves like every other.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goblin-dev/goblin/internal/model"
	"github.com/goblin-dev/goblin/internal/store"
)

// Store is the full method set shared by sqlstore and memstore.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateAccount(ctx context.Context, a *model.Account) (int64, error)
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)

	FindOrCreateCategory(ctx context.Context, name string, parentID *int64) (int64, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	ChildCategories(ctx context.Context, parentID int64) ([]model.Category, error)

	CreateTransaction(ctx context.Context, txn *model.Transaction) (int64, error)
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	ListTransactions(ctx context.Context, accountID int64, r model.DateRange) ([]model.Transaction, error)
	RecategorizeTransactions(ctx context.Context, ids []int64, categoryID *int64) (int64, error)
	SpendingByCategory(ctx context.Context, accountID int64, r model.DateRange) ([]model.CategorySpending, error)
	ExpensesByAccount(ctx context.Context, accountID int64) ([]model.Expense, error)
	SumExpenses(ctx context.Context, categoryIDs []int64, month string) (int64, error)

	SavedPatterns(ctx context.Context, accountID int64) (map[model.PatternKey]bool, error)
	SaveSubscription(ctx context.Context, sub *model.Subscription) (int64, error)
	ListSubscriptions(ctx context.Context, accountID int64) ([]model.Subscription, error)
	DismissSubscription(ctx context.Context, id int64) error
	DeleteSubscription(ctx context.Context, id int64) error
	ClearSubscriptions(ctx context.Context, accountID int64) (int64, error)

	LogImport(ctx context.Context, entry *model.ImportLog) (int64, error)
	ListImports(ctx context.Context) ([]model.ImportLog, error)
}

// Run exercises a fresh store from newStore in every subtest.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s Store)
	}{
		{"Accounts", testAccounts},
		{"Categories", testCategories},
		{"Transactions", testTransactions},
		{"TransactionsDateRange", testTransactionsDateRange},
		{"Recategorize", testRecategorize},
		{"SpendingByCategory", testSpendingByCategory},
		{"SumExpenses", testSumExpenses},
		{"Subscriptions", testSubscriptions},
		{"ImportLog", testImportLog},
		{"WithinTxRollback", testWithinTxRollback},
		{"WithinTxCommit", testWithinTxCommit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func ptr(v int64) *int64 { return &v }

func mustAccount(t *testing.T, s Store) int64 {
	t.Helper()
	id, err := s.CreateAccount(context.Background(), &model.Account{Name: "Lønkonto", AccountNumber: "1234-5678"})
	require.NoError(t, err)
	return id
}

func mustTxn(t *testing.T, s Store, txn model.Transaction) int64 {
	t.Helper()
	id, err := s.CreateTransaction(context.Background(), &txn)
	require.NoError(t, err)
	return id
}

func testAccounts(t *testing.T, s Store) {
	ctx := context.Background()

	a := &model.Account{Name: "Budget"}
	id, err := s.CreateAccount(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, id, a.ID)
	assert.Equal(t, "DKK", a.Currency)

	_, err = s.CreateAccount(ctx, &model.Account{Name: "Travel", Currency: "EUR"})
	require.NoError(t, err)

	got, err := s.GetAccount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Budget", got.Name)
	assert.Equal(t, "DKK", got.Currency)

	_, err = s.GetAccount(ctx, 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	all, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Budget", all[0].Name)
	assert.Equal(t, "EUR", all[1].Currency)
}

func testCategories(t *testing.T, s Store) {
	ctx := context.Background()

	food, err := s.FindOrCreateCategory(ctx, "Mad", nil)
	require.NoError(t, err)
	again, err := s.FindOrCreateCategory(ctx, "Mad", nil)
	require.NoError(t, err)
	assert.Equal(t, food, again)

	groceries, err := s.FindOrCreateCategory(ctx, "Dagligvarer", ptr(food))
	require.NoError(t, err)
	restaurant, err := s.FindOrCreateCategory(ctx, "Restaurant", ptr(food))
	require.NoError(t, err)
	assert.NotEqual(t, groceries, restaurant)

	// Same name under a different parent is a different category.
	home, err := s.FindOrCreateCategory(ctx, "Bolig", nil)
	require.NoError(t, err)
	homeGroceries, err := s.FindOrCreateCategory(ctx, "Dagligvarer", ptr(home))
	require.NoError(t, err)
	assert.NotEqual(t, groceries, homeGroceries)

	// A top-level category does not collide with a child of the same name.
	topGroceries, err := s.FindOrCreateCategory(ctx, "Dagligvarer", nil)
	require.NoError(t, err)
	assert.NotEqual(t, groceries, topGroceries)

	all, err := s.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, all, 6)
	for _, c := range all[:3] {
		assert.Nil(t, c.ParentID, "top-level categories come first")
	}
	assert.Equal(t, []string{"Bolig", "Dagligvarer", "Mad"}, []string{all[0].Name, all[1].Name, all[2].Name})

	children, err := s.ChildCategories(ctx, food)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "Dagligvarer", children[0].Name)
	assert.Equal(t, "Restaurant", children[1].Name)
	require.NotNil(t, children[0].ParentID)
	assert.Equal(t, food, *children[0].ParentID)
}

func testTransactions(t *testing.T, s Store) {
	ctx := context.Background()
	acct := mustAccount(t, s)
	cat, err := s.FindOrCreateCategory(ctx, "Underholdning", nil)
	require.NoError(t, err)

	exists, err := s.ExistsByHash(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, exists)

	txn := &model.Transaction{
		AccountID:       acct,
		CategoryID:      ptr(cat),
		Date:            "2025-01-05",
		Payee:           "Netflix",
		Amount:          -9900,
		BalanceSnapshot: ptr(1000000),
		Status:          "Udført",
		IsReconciled:    true,
		ImportHash:      "abc",
	}
	id, err := s.CreateTransaction(ctx, txn)
	require.NoError(t, err)
	assert.Equal(t, id, txn.ID)

	exists, err = s.ExistsByHash(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = s.CreateTransaction(ctx, &model.Transaction{AccountID: acct, Date: "2025-01-05", Payee: "x", Amount: -1, ImportHash: "abc"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	// Rows without a hash never collide.
	mustTxn(t, s, model.Transaction{AccountID: acct, Date: "2025-01-06", Payee: "Løn", Amount: 2500000})
	mustTxn(t, s, model.Transaction{AccountID: acct, Date: "2025-01-07", Payee: "Spotify", Amount: -9900})

	txns, err := s.ListTransactions(ctx, acct, model.DateRange{})
	require.NoError(t, err)
	require.Len(t, txns, 3)
	assert.Equal(t, "2025-01-07", txns[0].Date)
	last := txns[2]
	assert.Equal(t, "Netflix", last.Payee)
	require.NotNil(t, last.CategoryID)
	assert.Equal(t, cat, *last.CategoryID)
	require.NotNil(t, last.BalanceSnapshot)
	assert.Equal(t, int64(1000000), *last.BalanceSnapshot)
	assert.Equal(t, "Udført", last.Status)
	assert.True(t, last.IsReconciled)
	assert.Nil(t, txns[1].CategoryID)
	assert.Nil(t, txns[1].BalanceSnapshot)

	expenses, err := s.ExpensesByAccount(ctx, acct)
	require.NoError(t, err)
	require.Len(t, expenses, 2)
	assert.Equal(t, "Spotify", expenses[0].Payee)
	assert.Equal(t, model.Expense{ID: id, Payee: "Netflix", Amount: -9900, Date: "2025-01-05"}, expenses[1])

	other, err := s.ExpensesByAccount(ctx, acct+1000)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func testTransactionsDateRange(t *testing.T, s Store) {
	ctx := context.Background()
	acct := mustAccount(t, s)
	other := mustAccount(t, s)
	for _, d := range []string{"2025-01-31", "2025-02-01", "2025-02-14", "2025-02-28", "2025-03-01"} {
		mustTxn(t, s, model.Transaction{AccountID: acct, Date: d, Payee: "p " + d, Amount: -100})
	}
	mustTxn(t, s, model.Transaction{AccountID: other, Date: "2025-02-10", Payee: "elsewhere", Amount: -100})

	dates := func(r model.DateRange) []string {
		t.Helper()
		txns, err := s.ListTransactions(ctx, acct, r)
		require.NoError(t, err)
		var out []string
		for _, txn := range txns {
			out = append(out, txn.Date)
		}
		return out
	}

	assert.Equal(t, []string{"2025-02-28", "2025-02-14", "2025-02-01"},
		dates(model.DateRange{From: "2025-02-01", To: "2025-02-28"}), "bounds are inclusive")
	assert.Equal(t, []string{"2025-03-01", "2025-02-28"}, dates(model.DateRange{From: "2025-02-15"}))
	assert.Equal(t, []string{"2025-01-31"}, dates(model.DateRange{To: "2025-01-31"}))
	assert.Len(t, dates(model.DateRange{}), 5)
	assert.Empty(t, dates(model.DateRange{From: "2026-01-01"}))
}

func testRecategorize(t *testing.T, s Store) {
	ctx := context.Background()
	acct := mustAccount(t, s)
	food, err := s.FindOrCreateCategory(ctx, "Mad", nil)
	require.NoError(t, err)
	groceries, err := s.FindOrCreateCategory(ctx, "Dagligvarer", ptr(food))
	require.NoError(t, err)

	a := mustTxn(t, s, model.Transaction{AccountID: acct, Date: "2025-01-01", Payee: "Netto", Amount: -100})
	b := mustTxn(t, s, model.Transaction{AccountID: acct, Date: "2025-01-02", Payee: "Føtex", Amount: -200})
	c := mustTxn(t, s, model.Transaction{AccountID: acct, CategoryID: ptr(food), Date: "2025-01-03", Payee: "Cafe", Amount: -300})

	categoryOf := func(id int64) *int64 {
		t.Helper()
		txns, err := s.ListTransactions(ctx, acct, model.DateRange{})
		require.NoError(t, err)
		for _, txn := range txns {
			if txn.ID == id {
				return txn.CategoryID
			}
		}
		t.Fatalf("transaction %d not listed", id)
		return nil
	}

	// Single and batch updates share one call; unknown ids are skipped.
	n, err := s.RecategorizeTransactions(ctx, []int64{a, b, 9999}, ptr(groceries))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, ptr(groceries), categoryOf(a))
	assert.Equal(t, ptr(groceries), categoryOf(b))
	assert.Equal(t, ptr(food), categoryOf(c))

	n, err = s.RecategorizeTransactions(ctx, []int64{c}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Nil(t, categoryOf(c))

	_, err = s.RecategorizeTransactions(ctx, []int64{a}, ptr(9999))
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, ptr(groceries), categoryOf(a), "failed update leaves the row alone")

	n, err = s.RecategorizeTransactions(ctx, nil, ptr(food))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testSpendingByCategory(t *testing.T, s Store) {
	ctx := context.Background()
	acct := mustAccount(t, s)
	other := mustAccount(t, s)
	food, err := s.FindOrCreateCategory(ctx, "Mad", nil)
	require.NoError(t, err)
	groceries, err := s.FindOrCreateCategory(ctx, "Dagligvarer", ptr(food))
	require.NoError(t, err)
	fun, err := s.FindOrCreateCategory(ctx, "Underholdning", nil)
	require.NoError(t, err)

	mustTxn(t, s, model.Transaction{AccountID: acct, CategoryID: ptr(food), Date: "2025-02-01", Payee: "a", Amount: -1000})
	mustTxn(t, s, model.Transaction{AccountID: acct, CategoryID: ptr(groceries), Date: "2025-02-02", Payee: "b", Amount: -2500})
	mustTxn(t, s, model.Transaction{AccountID: acct, CategoryID: ptr(fun), Date: "2025-02-03", Payee: "c", Amount: -9900})
	mustTxn(t, s, model.Transaction{AccountID: acct, Date: "2025-02-04", Payee: "d", Amount: -50})
	mustTxn(t, s, model.Transaction{AccountID: acct, CategoryID: ptr(food), Date: "2025-02-05", Payee: "refund", Amount: 400})
	mustTxn(t, s, model.Transaction{AccountID: acct, CategoryID: ptr(food), Date: "2025-03-01", Payee: "later", Amount: -7000})
	mustTxn(t, s, model.Transaction{AccountID: other, CategoryID: ptr(food), Date: "2025-02-01", Payee: "x", Amount: -100000})

	got, err := s.SpendingByCategory(ctx, acct, model.DateRange{From: "2025-02-01", To: "2025-02-28"})
	require.NoError(t, err)
	assert.Equal(t, []model.CategorySpending{
		{Category: "Underholdning", Total: -9900},
		{Category: "Mad", Total: -3500},
		{Category: model.UncategorizedName, Total: -50},
	}, got)

	got, err = s.SpendingByCategory(ctx, acct, model.DateRange{})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, model.CategorySpending{Category: "Mad", Total: -10500}, got[0])

	got, err = s.SpendingByCategory(ctx, acct, model.DateRange{From: "2026-01-01"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testSumExpenses(t *testing.T, s Store) {
	ctx := context.Background()
	acct := mustAccount(t, s)
	food, err := s.FindOrCreateCategory(ctx, "Mad", nil)
	require.NoError(t, err)
	groceries, err := s.FindOrCreateCategory(ctx, "Dagligvarer", ptr(food))
	require.NoError(t, err)
	transport, err := s.FindOrCreateCategory(ctx, "Transport", nil)
	require.NoError(t, err)

	mustTxn(t, s, model.Transaction{AccountID: acct, CategoryID: ptr(food), Date: "2025-03-01", Payee: "a", Amount: -10000})
	mustTxn(t, s, model.Transaction{AccountID: acct, CategoryID: ptr(groceries), Date: "2025-03-15", Payee: "b", Amount: -2550})
	mustTxn(t, s, model.Transaction{AccountID: acct, CategoryID: ptr(groceries), Date: "2025-03-20", Payee: "refund", Amount: 500})
	mustTxn(t, s, model.Transaction{AccountID: acct, CategoryID: ptr(groceries), Date: "2025-04-01", Payee: "c", Amount: -700})
	mustTxn(t, s, model.Transaction{AccountID: acct, CategoryID: ptr(transport), Date: "2025-03-02", Payee: "d", Amount: -3000})
	mustTxn(t, s, model.Transaction{AccountID: acct, Date: "2025-03-02", Payee: "e", Amount: -99})

	total, err := s.SumExpenses(ctx, []int64{food, groceries}, "2025-03")
	require.NoError(t, err)
	assert.Equal(t, int64(12550), total)

	total, err = s.SumExpenses(ctx, []int64{transport}, "2025-03")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), total)

	total, err = s.SumExpenses(ctx, []int64{food}, "2025-05")
	require.NoError(t, err)
	assert.Zero(t, total)

	total, err = s.SumExpenses(ctx, nil, "2025-03")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func testSubscriptions(t *testing.T, s Store) {
	ctx := context.Background()
	acct := mustAccount(t, s)
	t1 := mustTxn(t, s, model.Transaction{AccountID: acct, Date: "2025-01-01", Payee: "Netflix", Amount: -9900})
	t2 := mustTxn(t, s, model.Transaction{AccountID: acct, Date: "2025-01-31", Payee: "Netflix", Amount: -9900})

	netflix := &model.Subscription{
		AccountID: acct, PayeePattern: "netflix", Amount: -9900, Frequency: model.FrequencyMonthly,
		LastChargeDate: "2025-01-31", NextChargeDate: "2025-03-02", Confidence: 1, TransactionIDs: []int64{t2, t1},
	}
	_, err := s.SaveSubscription(ctx, netflix)
	require.NoError(t, err)
	assert.True(t, netflix.IsActive)

	gym := &model.Subscription{
		AccountID: acct, PayeePattern: "fitness world", Amount: -29900, Frequency: model.FrequencyMonthly,
		LastChargeDate: "2025-01-20", NextChargeDate: "2025-02-19", Confidence: 0.8,
	}
	_, err = s.SaveSubscription(ctx, gym)
	require.NoError(t, err)

	unknown := &model.Subscription{
		AccountID: acct, PayeePattern: "aviser", Amount: -5000, Frequency: model.FrequencyWeekly,
		LastChargeDate: "2025-01-20", Confidence: 0.7,
	}
	_, err = s.SaveSubscription(ctx, unknown)
	require.NoError(t, err)

	subs, err := s.ListSubscriptions(ctx, acct)
	require.NoError(t, err)
	require.Len(t, subs, 3)
	assert.Equal(t, "fitness world", subs[0].PayeePattern)
	assert.Equal(t, "netflix", subs[1].PayeePattern)
	assert.Equal(t, "aviser", subs[2].PayeePattern, "unknown next date sorts last")
	assert.Equal(t, []int64{t1, t2}, subs[1].TransactionIDs)
	assert.Equal(t, model.FrequencyMonthly, subs[1].Frequency)
	assert.InDelta(t, 1.0, subs[1].Confidence, 1e-9)

	patterns, err := s.SavedPatterns(ctx, acct)
	require.NoError(t, err)
	assert.Len(t, patterns, 3)
	assert.True(t, patterns[model.PatternKey{Pattern: "netflix", Amount: -9900}])

	require.NoError(t, s.DismissSubscription(ctx, gym.ID))
	patterns, err = s.SavedPatterns(ctx, acct)
	require.NoError(t, err)
	assert.False(t, patterns[gym.Key()], "dismissed subscriptions no longer exclude")
	subs, err = s.ListSubscriptions(ctx, acct)
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	require.NoError(t, s.DeleteSubscription(ctx, unknown.ID))
	assert.ErrorIs(t, s.DeleteSubscription(ctx, unknown.ID), store.ErrNotFound)
	assert.ErrorIs(t, s.DismissSubscription(ctx, 9999), store.ErrNotFound)

	n, err := s.ClearSubscriptions(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "clear removes dismissed rows too")
	subs, err = s.ListSubscriptions(ctx, acct)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func testImportLog(t *testing.T, s Store) {
	ctx := context.Background()
	first := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	_, err := s.LogImport(ctx, &model.ImportLog{RunID: "r1", Filename: "jan.csv", ImportedAt: first, RecordsAdded: 12})
	require.NoError(t, err)
	_, err = s.LogImport(ctx, &model.ImportLog{RunID: "r2", Filename: "feb.csv", ImportedAt: first.Add(time.Hour), RecordsAdded: 0})
	require.NoError(t, err)

	entries, err := s.ListImports(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "feb.csv", entries[0].Filename)
	assert.Equal(t, "r1", entries[1].RunID)
	assert.Equal(t, 12, entries[1].RecordsAdded)
	assert.True(t, first.Equal(entries[1].ImportedAt))
}

func testWithinTxRollback(t *testing.T, s Store) {
	ctx := context.Background()
	acct := mustAccount(t, s)
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.CreateTransaction(ctx, &model.Transaction{AccountID: acct, Date: "2025-01-01", Payee: "a", Amount: -1, ImportHash: "h1"}); err != nil {
			return err
		}
		if _, err := s.FindOrCreateCategory(ctx, "Mad", nil); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	exists, err := s.ExistsByHash(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, exists)
	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func testWithinTxCommit(t *testing.T, s Store) {
	ctx := context.Background()
	acct := mustAccount(t, s)

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		// Nested units of work join the outer one.
		return s.WithinTx(ctx, func(ctx context.Context) error {
			_, err := s.CreateTransaction(ctx, &model.Transaction{AccountID: acct, Date: "2025-01-01", Payee: "a", Amount: -1, ImportHash: "h2"})
			return err
		})
	})
	require.NoError(t, err)

	exists, err := s.ExistsByHash(ctx, "h2")
	require.NoError(t, err)
	assert.True(t, exists)
}
