package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goblin-dev/goblin/internal/model"
	"github.com/goblin-dev/goblin/internal/store"
)

func newCategoriesCommand(a *app) *cobra.Command {
	var parent int64

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Print the category tree",
		Args:  cobra.NoArgs,
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if parent > 0 {
				children, err := a.store.ChildCategories(ctx, parent)
				if err != nil {
					return err
				}
				for _, c := range children {
					fmt.Fprintf(out, "%d\t%s\n", c.ID, c.Name)
				}
				return nil
			}

			all, err := a.store.ListCategories(ctx)
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Fprintln(out, "No categories.")
				return nil
			}
			printTree(out, all)
			return nil
		}),
	}

	cmd.Flags().Int64Var(&parent, "parent", 0, "only list the direct children of this category id")

	return cmd
}

// printTree writes categories indented under their parents. Input order is
// kept among siblings.
func printTree(w io.Writer, categories []model.Category) {
	children := make(map[int64][]model.Category)
	var roots []model.Category
	for _, c := range categories {
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], c)
	}

	var walk func(c model.Category, depth int)
	walk = func(c model.Category, depth int) {
		fmt.Fprintf(w, "%s%s (%d)\n", strings.Repeat("  ", depth), c.Name, c.ID)
		if depth >= store.MaxCategoryDepth {
			return
		}
		for _, child := range children[c.ID] {
			walk(child, depth+1)
		}
	}
	for _, r := range roots {
		walk(r, 0)
	}
}
