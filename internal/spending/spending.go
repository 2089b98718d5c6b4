// Package spending totals expenses over category subtrees.
package spending

import (
	"context"
	"fmt"
	"regexp"
	"slices"

	"github.com/goblin-dev/goblin/internal/model"
	"github.com/goblin-dev/goblin/internal/store"
)

// DefaultDepth includes a category's direct children only.
const DefaultDepth = 1

// Store supplies categories and expense sums.
type Store interface {
	ListCategories(ctx context.Context) ([]model.Category, error)
	SumExpenses(ctx context.Context, categoryIDs []int64, month string) (int64, error)
}

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Descendants returns roots plus every category up to depth generations below
// them, sorted and without duplicates. Depth 0 is the roots alone and a
// negative depth is unlimited (bounded by store.MaxCategoryDepth).
func Descendants(categories []model.Category, roots []int64, depth int) []int64 {
	if depth < 0 || depth > store.MaxCategoryDepth {
		depth = store.MaxCategoryDepth
	}

	children := make(map[int64][]int64)
	for _, c := range categories {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}

	seen := make(map[int64]bool, len(roots))
	frontier := make([]int64, 0, len(roots))
	for _, id := range roots {
		if !seen[id] {
			seen[id] = true
			frontier = append(frontier, id)
		}
	}
	for level := 0; level < depth && len(frontier) > 0; level++ {
		var next []int64
		for _, id := range frontier {
			for _, child := range children[id] {
				if !seen[child] {
					seen[child] = true
					next = append(next, child)
				}
			}
		}
		frontier = next
	}

	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Calculator answers "how much went to these categories this month".
type Calculator struct {
	store Store
	Depth int
}

// NewCalculator returns a Calculator using DefaultDepth.
func NewCalculator(s Store) *Calculator {
	return &Calculator{store: s, Depth: DefaultDepth}
}

// Spent returns the absolute total of expenses in month (YYYY-MM) booked on
// roots or their descendants.
func (c *Calculator) Spent(ctx context.Context, month string, roots []int64) (int64, error) {
	if !monthPattern.MatchString(month) {
		return 0, fmt.Errorf("invalid month %q (want YYYY-MM)", month)
	}
	if len(roots) == 0 {
		return 0, nil
	}

	categories, err := c.store.ListCategories(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading categories: %w", err)
	}
	ids := Descendants(categories, roots, c.Depth)

	total, err := c.store.SumExpenses(ctx, ids, month)
	if err != nil {
		return 0, fmt.Errorf("summing expenses: %w", err)
	}
	return total, nil
}
