// Package detect finds recurring payments in an account's expense history.
package detect

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/goblin-dev/goblin/internal/logger"
	"github.com/goblin-dev/goblin/internal/model"
)

const (
	DefaultMinConfidence  = 0.6
	DefaultMinOccurrences = 2
)

// Store supplies the history detection reads.
type Store interface {
	// ExpensesByAccount returns negative-amount transactions, newest first.
	ExpensesByAccount(ctx context.Context, accountID int64) ([]model.Expense, error)
	// SavedPatterns returns the keys of active saved subscriptions.
	SavedPatterns(ctx context.Context, accountID int64) (map[model.PatternKey]bool, error)
}

// Detector groups expenses by normalized payee and exact amount and reports
// the groups whose spacing matches a known frequency.
type Detector struct {
	store          Store
	MinConfidence  float64
	MinOccurrences int
}

// New returns a Detector with the default thresholds.
func New(store Store) *Detector {
	return &Detector{store: store, MinConfidence: DefaultMinConfidence, MinOccurrences: DefaultMinOccurrences}
}

type occurrence struct {
	id   int64
	date string
}

// Detect returns subscription candidates for accountID, highest confidence
// first. Patterns already saved as active subscriptions are skipped.
// Candidates are not persisted.
func (d *Detector) Detect(ctx context.Context, accountID int64) ([]model.Subscription, error) {
	log := logger.FromContext(ctx).With().Int64("account_id", accountID).Logger()

	saved, err := d.store.SavedPatterns(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("loading saved patterns: %w", err)
	}
	expenses, err := d.store.ExpensesByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("loading expenses: %w", err)
	}

	groups := make(map[model.PatternKey][]occurrence)
	for _, e := range expenses {
		key := model.PatternKey{Pattern: NormalizePayee(e.Payee), Amount: e.Amount}
		groups[key] = append(groups[key], occurrence{id: e.ID, date: e.Date})
	}

	minOccurrences := max(d.MinOccurrences, 2)
	var candidates []model.Subscription
	for key, occs := range groups {
		if saved[key] || len(occs) < minOccurrences {
			continue
		}

		slices.SortStableFunc(occs, func(a, b occurrence) int { return strings.Compare(a.date, b.date) })
		dates := make([]string, len(occs))
		ids := make([]int64, len(occs))
		for i, o := range occs {
			dates[i] = o.date
			ids[i] = o.id
		}

		freq, confidence, ok := Classify(Intervals(dates))
		if !ok || confidence < d.MinConfidence {
			continue
		}

		last := dates[len(dates)-1]
		candidates = append(candidates, model.Subscription{
			AccountID:      accountID,
			PayeePattern:   key.Pattern,
			Amount:         key.Amount,
			Frequency:      freq,
			LastChargeDate: last,
			NextChargeDate: PredictNext(last, freq),
			IsActive:       true,
			Confidence:     confidence,
			TransactionIDs: ids,
		})
	}

	slices.SortFunc(candidates, func(a, b model.Subscription) int {
		return cmp.Or(
			cmp.Compare(b.Confidence, a.Confidence),
			strings.Compare(a.PayeePattern, b.PayeePattern),
			cmp.Compare(a.Amount, b.Amount),
		)
	})

	log.Debug().
		Int("expenses", len(expenses)).
		Int("buckets", len(groups)).
		Int("excluded", len(saved)).
		Int("candidates", len(candidates)).
		Msg("detection finished")
	return candidates, nil
}

// NormalizePayee lowercases payee, drops everything but letters and
// whitespace, and keeps the first three words.
func NormalizePayee(payee string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, strings.ToLower(payee))

	words := strings.Fields(cleaned)
	if len(words) > 3 {
		words = words[:3]
	}
	return strings.Join(words, " ")
}

// Intervals returns the positive day gaps between consecutive dates, which
// must already be in ascending order. Pairs with an unparseable date are skipped.
func Intervals(dates []string) []int {
	var out []int
	for i := 1; i < len(dates); i++ {
		prev, err := time.Parse(model.DateLayout, dates[i-1])
		if err != nil {
			continue
		}
		curr, err := time.Parse(model.DateLayout, dates[i])
		if err != nil {
			continue
		}
		if days := int(curr.Sub(prev).Hours() / 24); days > 0 {
			out = append(out, days)
		}
	}
	return out
}

type band struct {
	freq   model.Frequency
	lo, hi float64
}

// Mean-interval bands, inclusive.
var bands = []band{
	{model.FrequencyMonthly, 25, 35},
	{model.FrequencyYearly, 355, 375},
	{model.FrequencyWeekly, 6, 8},
	{model.FrequencyBiweekly, 12, 16},
}

// Classify maps intervals to a frequency by their mean and scores how
// regular they are: 1 - stddev/period, clamped to [0, 1].
func Classify(intervals []int) (model.Frequency, float64, bool) {
	if len(intervals) == 0 {
		return "", 0, false
	}

	n := float64(len(intervals))
	var sum float64
	for _, v := range intervals {
		sum += float64(v)
	}
	mean := sum / n

	var variance float64
	for _, v := range intervals {
		d := float64(v) - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / n)

	for _, b := range bands {
		if mean < b.lo || mean > b.hi {
			continue
		}
		confidence := 1 - stddev/float64(b.freq.Days())
		return b.freq, min(max(confidence, 0), 1), true
	}
	return "", 0, false
}

// PredictNext adds the frequency's fixed day offset to date. It returns ""
// when date does not parse.
func PredictNext(date string, freq model.Frequency) string {
	t, err := time.Parse(model.DateLayout, date)
	if err != nil || !freq.Valid() {
		return ""
	}
	return t.AddDate(0, 0, freq.Days()).Format(model.DateLayout)
}
