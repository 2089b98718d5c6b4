package model

import (
	"fmt"
	"strings"
)

// Frequency is the recurrence label of a detected subscription.
type Frequency string

const (
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyYearly   Frequency = "yearly"
)

// Frequencies lists every label in classification order.
var Frequencies = []Frequency{FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly, FrequencyYearly}

// Days returns the fixed day offset used to predict the next charge and as the
// reference period for confidence scoring.
func (f Frequency) Days() int {
	switch f {
	case FrequencyWeekly:
		return 7
	case FrequencyBiweekly:
		return 14
	case FrequencyMonthly:
		return 30
	case FrequencyYearly:
		return 365
	default:
		return 0
	}
}

// Valid reports whether f is one of the known labels.
func (f Frequency) Valid() bool {
	return f.Days() > 0
}

// ParseFrequency converts a stored label back into a Frequency.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("unknown frequency %q", s)
	}
	return f, nil
}

// PatternKey identifies a pattern bucket: normalized payee plus exact amount.
type PatternKey struct {
	Pattern string
	Amount  int64
}

// Subscription is a recurring payment, either a transient detection candidate
// (ID == 0) or a saved row.
type Subscription struct {
	ID             int64
	AccountID      int64
	PayeePattern   string
	Amount         int64
	Frequency      Frequency
	LastChargeDate string
	NextChargeDate string // empty = unknown
	IsActive       bool
	CategoryID     *int64
	Confidence     float64
	TransactionIDs []int64
}

// Key returns the bucket key of the subscription.
func (s Subscription) Key() PatternKey {
	return PatternKey{Pattern: s.PayeePattern, Amount: s.Amount}
}
