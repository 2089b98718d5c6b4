package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/goblin-dev/goblin/internal/importer"
	"github.com/goblin-dev/goblin/internal/logger"
	"github.com/goblin-dev/goblin/internal/model"
)

type importFlags struct {
	account int64
	atomic  bool
	strict  bool
	scan    bool
	json    bool
}

func newImportCommand(a *app) *cobra.Command {
	var f importFlags

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Import bank CSV exports into an account",
		Long: `Import bank CSV exports into an account.

Rows already imported (same date, payee, amount and balance) are skipped, so
re-importing an overlapping export is safe. With --scan every *.csv in the
configured import directory is imported and then moved to its processed/
subdirectory.`,
		RunE: a.withStore(func(cmd *cobra.Command, args []string) error {
			if f.scan == (len(args) > 0) {
				return errors.New("pass either files or --scan")
			}
			return a.runImport(cmd, args, f)
		}),
	}

	cmd.Flags().Int64Var(&f.account, "account", 0, "account id to import into (required)")
	cmd.Flags().BoolVar(&f.atomic, "atomic", false, "all-or-nothing: a failing row discards the whole file")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "reject rows whose field count differs from the header")
	cmd.Flags().BoolVar(&f.scan, "scan", false, "import every CSV waiting in the import directory")
	cmd.Flags().BoolVar(&f.json, "json", false, "print results as JSON lines")

	return cmd
}

func (a *app) runImport(cmd *cobra.Command, files []string, f importFlags) error {
	ctx := cmd.Context()
	if err := a.requireAccount(ctx, f.account); err != nil {
		return err
	}

	opts := importer.Options{
		Delimiters: a.cfg.DelimiterRunes(),
		Strict:     a.cfg.Import.Strict || f.strict,
		Atomic:     a.cfg.Import.Atomic || f.atomic,
	}
	in := importer.New(a.store, opts).WithRecorder(a.metrics)
	out := cmd.OutOrStdout()

	if !f.scan {
		for _, path := range files {
			res, err := in.ImportFile(ctx, path, f.account)
			if err != nil {
				return fmt.Errorf("importing %s: %w", path, err)
			}
			if err := printImportResult(out, path, res, f.json); err != nil {
				return err
			}
		}
		return nil
	}

	pending, err := importer.Scan(a.cfg.Import.Dir)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Fprintf(out, "No CSV files in %s.\n", a.cfg.Import.Dir)
		return nil
	}
	for _, file := range pending {
		res, err := in.ImportFile(ctx, file.Path, f.account)
		if err != nil {
			return fmt.Errorf("importing %s: %w", file.Name, err)
		}
		dst, err := importer.MarkProcessed(a.cfg.Import.Dir, file.Name)
		if err != nil {
			return err
		}
		log := logger.FromContext(ctx)
		log.Debug().Str("file", file.Name).Str("moved_to", dst).Msg("file processed")
		if err := printImportResult(out, file.Name, res, f.json); err != nil {
			return err
		}
	}
	return nil
}

func printImportResult(w io.Writer, name string, res model.ImportResult, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(struct {
			File string `json:"file"`
			model.ImportResult
		}{name, res})
	}
	_, err := fmt.Fprintf(w, "%s: %d rows, %d imported, %d duplicates skipped\n",
		name, res.TotalRows, res.Imported, res.SkippedDuplicates)
	return err
}
