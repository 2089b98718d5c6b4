package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goblin-dev/goblin/internal/logger"
	"github.com/goblin-dev/goblin/internal/model"
)

// Store persists what an import produces.
type Store interface {
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	CreateTransaction(ctx context.Context, txn *model.Transaction) (int64, error)
	FindOrCreateCategory(ctx context.Context, name string, parentID *int64) (int64, error)
	LogImport(ctx context.Context, entry *model.ImportLog) (int64, error)
}

// Transactor runs fn inside one unit of work that commits only if fn succeeds.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Recorder receives the outcome of every import run.
type Recorder interface {
	ObserveImport(result model.ImportResult, elapsed time.Duration, err error)
}

// DefaultDelimiters are tried in order until one yields a usable table.
var DefaultDelimiters = []rune{';', ','}

// Options tune how an Ingestor reads its input.
type Options struct {
	// Delimiters to attempt, in order. Empty means DefaultDelimiters.
	Delimiters []rune
	// Strict rejects rows whose field count differs from the header and
	// disables lazy quote handling.
	Strict bool
	// Atomic wraps the run in a single store transaction.
	Atomic bool
}

// Ingestor parses bank CSV exports and stores their rows idempotently.
type Ingestor struct {
	store    Store
	opts     Options
	recorder Recorder
	now      func() time.Time
}

// New returns an Ingestor writing to store.
func New(store Store, opts Options) *Ingestor {
	if len(opts.Delimiters) == 0 {
		opts.Delimiters = DefaultDelimiters
	}
	return &Ingestor{store: store, opts: opts, now: time.Now}
}

// WithRecorder attaches r to every subsequent run.
func (in *Ingestor) WithRecorder(r Recorder) *Ingestor {
	in.recorder = r
	return in
}

// ImportFile reads path and imports it into accountID.
func (in *Ingestor) ImportFile(ctx context.Context, path string, accountID int64) (model.ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.ImportResult{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return in.Import(ctx, data, accountID, filepath.Base(path))
}

// Import parses data and inserts every row not already stored. Rows are
// deduplicated by content hash, so importing the same export twice adds nothing.
// filename is recorded in the import log.
func (in *Ingestor) Import(ctx context.Context, data []byte, accountID int64, filename string) (model.ImportResult, error) {
	runID := uuid.NewString()
	ctx = logger.WithFields(ctx, map[string]any{"run_id": runID, "file": filename, "account_id": accountID})
	log := logger.FromContext(ctx)
	start := in.now()

	log.Info().Bool("atomic", in.opts.Atomic).Msg("import_started")

	var result model.ImportResult
	run := func(ctx context.Context) error {
		res, err := in.run(ctx, data, accountID)
		if err != nil {
			return err
		}
		entry := &model.ImportLog{RunID: runID, Filename: filename, ImportedAt: in.now().UTC(), RecordsAdded: res.Imported}
		if _, err := in.store.LogImport(ctx, entry); err != nil {
			return fmt.Errorf("%w: logging import: %w", ErrPersistence, err)
		}
		result = res
		return nil
	}

	var err error
	if in.opts.Atomic {
		tx, ok := in.store.(Transactor)
		if !ok {
			err = errors.New("store does not support atomic imports")
		} else {
			err = tx.WithinTx(ctx, run)
		}
	} else {
		err = run(ctx)
	}

	elapsed := in.now().Sub(start)
	if in.recorder != nil {
		in.recorder.ObserveImport(result, elapsed, err)
	}
	if err != nil {
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("import_failed")
		return model.ImportResult{}, err
	}

	log.Info().
		Int("total_rows", result.TotalRows).
		Int("imported", result.Imported).
		Int("skipped_duplicates", result.SkippedDuplicates).
		Dur("elapsed", elapsed).
		Msg("import_finished")
	return result, nil
}

// run decodes data and tries each delimiter in turn. Only header or syntax
// failures move on to the next delimiter; a bad value in a data row fails the
// run. When every attempt fails, the last attempt's error is returned.
func (in *Ingestor) run(ctx context.Context, data []byte, accountID int64) (model.ImportResult, error) {
	log := logger.FromContext(ctx)

	text, enc, err := Decode(data)
	if err != nil {
		return model.ImportResult{}, err
	}
	var lastErr error
	for _, delim := range in.opts.Delimiters {
		res, err := in.attempt(ctx, text, delim, accountID)
		if err == nil {
			log.Info().Str("encoding", string(enc)).Str("delimiter", string(delim)).Msg("input parsed")
			return res, nil
		}
		if !abandonsAttempt(err) {
			return model.ImportResult{}, err
		}
		log.Debug().Err(err).Str("delimiter", string(delim)).Msg("delimiter attempt abandoned")
		lastErr = err
	}
	return model.ImportResult{}, lastErr
}

func (in *Ingestor) attempt(ctx context.Context, text string, delim rune, accountID int64) (model.ImportResult, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.LazyQuotes = !in.opts.Strict
	r.FieldsPerRecord = -1
	if in.opts.Strict {
		r.FieldsPerRecord = 0
	}

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return model.ImportResult{}, &SyntaxError{Delimiter: delim, Err: errors.New("no header row")}
	}
	if err != nil {
		return model.ImportResult{}, &SyntaxError{Delimiter: delim, Err: err}
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	cols, err := MapColumns(header)
	if err != nil {
		return model.ImportResult{}, err
	}
	if err := cols.checkDistinct(); err != nil {
		return model.ImportResult{}, &SyntaxError{Delimiter: delim, Err: err}
	}

	var res model.ImportResult
	for row := 1; ; row++ {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.ImportResult{}, &SyntaxError{Delimiter: delim, Row: row, Err: err}
		}
		if err := ctx.Err(); err != nil {
			return model.ImportResult{}, err
		}

		res.TotalRows++
		if err := in.ingest(ctx, Record{Fields: fields, Columns: cols}, accountID, &res); err != nil {
			return model.ImportResult{}, fmt.Errorf("row %d: %w", row, err)
		}
	}
	return res, nil
}

func (in *Ingestor) ingest(ctx context.Context, rec Record, accountID int64, res *model.ImportResult) error {
	cols := rec.Columns

	date, err := ParseDate(rec.Get(cols.Date))
	if err != nil {
		return err
	}
	amount, err := ParseAmount(rec.Get(cols.Amount))
	if err != nil {
		return err
	}
	payee := rec.Get(cols.Payee)

	var balance *int64
	if raw, ok := rec.Optional(cols.Balance); ok {
		// An unreadable balance is dropped; it never fails the row.
		if b, err := ParseAmount(raw); err == nil {
			balance = &b
		}
	}

	hash := ImportHash(date, payee, amount, balance)
	exists, err := in.store.ExistsByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("%w: checking hash: %w", ErrPersistence, err)
	}
	if exists {
		res.SkippedDuplicates++
		return nil
	}

	categoryID, err := in.resolveCategory(ctx, rec)
	if err != nil {
		return err
	}

	txn := &model.Transaction{
		AccountID:       accountID,
		CategoryID:      categoryID,
		Date:            date,
		Payee:           payee,
		Amount:          amount,
		BalanceSnapshot: balance,
		Status:          rec.Get(cols.Status),
		IsReconciled:    ParseReconciled(rec.Get(cols.Reconciled)),
		ImportHash:      hash,
	}
	if _, err := in.store.CreateTransaction(ctx, txn); err != nil {
		return fmt.Errorf("%w: creating transaction: %w", ErrPersistence, err)
	}
	res.Imported++
	return nil
}

// resolveCategory returns the subcategory id when both levels are present,
// the top-level id when only the category is, and nil otherwise.
func (in *Ingestor) resolveCategory(ctx context.Context, rec Record) (*int64, error) {
	name, ok := rec.Optional(rec.Columns.Category)
	if !ok {
		return nil, nil
	}
	parentID, err := in.store.FindOrCreateCategory(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: category %q: %w", ErrPersistence, name, err)
	}

	sub, ok := rec.Optional(rec.Columns.Subcategory)
	if !ok {
		return &parentID, nil
	}
	childID, err := in.store.FindOrCreateCategory(ctx, sub, &parentID)
	if err != nil {
		return nil, fmt.Errorf("%w: subcategory %q: %w", ErrPersistence, sub, err)
	}
	return &childID, nil
}

// FileInfo describes a CSV file waiting in an import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// processedDir is the subdirectory imported files are moved into.
const processedDir = "processed"

// Scan returns the CSV files directly inside dir, sorted by name.
// A missing dir is not an error.
func Scan(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves dir/name into dir/processed/. An existing file of the
// same name is kept; the moved file gets a numeric suffix instead.
func MarkProcessed(dir, name string) (string, error) {
	dstDir := filepath.Join(dir, processedDir)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, name)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		if _, err := os.Stat(dst); os.IsNotExist(err) {
			break
		}
		dst = filepath.Join(dstDir, fmt.Sprintf("%s-%d%s", base, n, ext))
	}

	if err := os.Rename(filepath.Join(dir, name), dst); err != nil {
		return "", fmt.Errorf("moving %s to processed: %w", name, err)
	}
	return dst, nil
}
