package model

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date format used for every stored date.
const DateLayout = "2006-01-02"

// Transaction is one persisted bank row. Amounts are minor currency units
// (øre); negative = expense, positive = income.
type Transaction struct {
	ID              int64
	AccountID       int64
	CategoryID      *int64
	Date            string // YYYY-MM-DD
	Payee           string
	Amount          int64
	BalanceSnapshot *int64
	Status          string // empty = none
	IsReconciled    bool
	ImportHash      string // empty = none; unique when set
}

// DateRange bounds a listing by inclusive YYYY-MM-DD dates. An empty end is open.
type DateRange struct {
	From string
	To   string
}

// Validate checks that both ends are calendar dates and From is not after To.
func (r DateRange) Validate() error {
	for _, d := range []string{r.From, r.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, d); err != nil {
			return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", d)
		}
	}
	if r.From != "" && r.To != "" && r.From > r.To {
		return fmt.Errorf("date range %s..%s is empty", r.From, r.To)
	}
	return nil
}

// Contains reports whether date falls inside the range.
func (r DateRange) Contains(date string) bool {
	return (r.From == "" || date >= r.From) && (r.To == "" || date <= r.To)
}

// UncategorizedName labels spending on transactions without a category.
const UncategorizedName = "Uncategorized"

// CategorySpending is the expense total of one top-level category. Total is
// negative, in minor units.
type CategorySpending struct {
	Category string
	Total    int64
}

// Expense is the projection of a negative-amount transaction used by detection.
type Expense struct {
	ID     int64
	Payee  string
	Amount int64
	Date   string
}

// ImportResult summarizes one ingestion run.
type ImportResult struct {
	TotalRows         int `json:"total_rows"`
	Imported          int `json:"imported"`
	SkippedDuplicates int `json:"skipped_duplicates"`
}

// ImportLog is the append-only record written after a successful run.
type ImportLog struct {
	ID           int64
	RunID        string
	Filename     string
	ImportedAt   time.Time
	RecordsAdded int
}
