package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goblin-dev/goblin/internal/model"
	"github.com/goblin-dev/goblin/internal/store"
	"github.com/goblin-dev/goblin/internal/store/memstore"
)

func newAccount(t *testing.T, s *memstore.Store) int64 {
	t.Helper()
	id, err := s.CreateAccount(context.Background(), &model.Account{Name: "Budget"})
	require.NoError(t, err)
	return id
}

func TestImportFile_Danish(t *testing.T) {
	s := memstore.New()
	acct := newAccount(t, s)
	ctx := context.Background()

	res, err := New(s, Options{}).ImportFile(ctx, "../../testdata/danske_bank.csv", acct)
	require.NoError(t, err)
	assert.Equal(t, model.ImportResult{TotalRows: 6, Imported: 6}, res)

	txns, err := s.ListTransactions(ctx, acct, model.DateRange{})
	require.NoError(t, err)
	require.Len(t, txns, 6)

	netflix := txns[0]
	assert.Equal(t, "2025-03-04", netflix.Date)
	assert.Equal(t, "Netflix.com 4471", netflix.Payee)
	assert.Equal(t, int64(-9900), netflix.Amount)
	require.NotNil(t, netflix.BalanceSnapshot)
	assert.Equal(t, int64(3437650), *netflix.BalanceSnapshot)
	assert.Equal(t, "Venter", netflix.Status)
	assert.False(t, netflix.IsReconciled)
	assert.Len(t, netflix.ImportHash, 64)

	salary := txns[3]
	assert.Equal(t, "Løn Januar", salary.Payee)
	assert.Equal(t, int64(2500000), salary.Amount)

	// Streaming under Underholdning is created once and shared by all three rows.
	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 6)
	assert.Equal(t, txns[0].CategoryID, txns[5].CategoryID)

	// A category without a subcategory lands on the top-level category.
	require.NotNil(t, salary.CategoryID)
	top, err := s.FindOrCreateCategory(ctx, "Indkomst", nil)
	require.NoError(t, err)
	assert.Equal(t, top, *salary.CategoryID)

	entries, err := s.ListImports(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "danske_bank.csv", entries[0].Filename)
	assert.Equal(t, 6, entries[0].RecordsAdded)
	assert.NotEmpty(t, entries[0].RunID)
}

func TestImport_Idempotent(t *testing.T) {
	s := memstore.New()
	acct := newAccount(t, s)
	ctx := context.Background()
	data, err := os.ReadFile("../../testdata/danske_bank.csv")
	require.NoError(t, err)

	in := New(s, Options{})
	_, err = in.Import(ctx, data, acct, "jan.csv")
	require.NoError(t, err)

	res, err := in.Import(ctx, data, acct, "jan.csv")
	require.NoError(t, err)
	assert.Equal(t, model.ImportResult{TotalRows: 6, Imported: 0, SkippedDuplicates: 6}, res)

	txns, err := s.ListTransactions(ctx, acct, model.DateRange{})
	require.NoError(t, err)
	assert.Len(t, txns, 6)

	entries, err := s.ListImports(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 0, entries[0].RecordsAdded)
	assert.Equal(t, 6, entries[1].RecordsAdded)
}

func TestImport_DuplicateRowsInOneFile(t *testing.T) {
	s := memstore.New()
	acct := newAccount(t, s)
	data := "Dato;Tekst;Beløb\n01-01-2025;Netflix;-99,00\n01-01-2025;Netflix;-99,00\n"

	res, err := New(s, Options{}).Import(context.Background(), []byte(data), acct, "dup.csv")
	require.NoError(t, err)
	assert.Equal(t, model.ImportResult{TotalRows: 2, Imported: 1, SkippedDuplicates: 1}, res)
}

func TestImportFile_CommaFallback(t *testing.T) {
	s := memstore.New()
	acct := newAccount(t, s)
	ctx := context.Background()

	res, err := New(s, Options{}).ImportFile(ctx, "../../testdata/english_comma.csv", acct)
	require.NoError(t, err)
	assert.Equal(t, model.ImportResult{TotalRows: 2, Imported: 2}, res)

	txns, err := s.ListTransactions(ctx, acct, model.DateRange{})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "Spotify AB", txns[0].Payee)
	assert.Equal(t, int64(-10900), txns[0].Amount)
	assert.Nil(t, txns[0].CategoryID, "empty category is absent")
	assert.Equal(t, "2025-01-05", txns[1].Date)
	require.NotNil(t, txns[1].BalanceSnapshot)
	assert.Equal(t, int64(185000), *txns[1].BalanceSnapshot)
}

func TestImport_MissingColumn(t *testing.T) {
	s := memstore.New()
	acct := newAccount(t, s)

	_, err := New(s, Options{}).Import(context.Background(), []byte("Foo;Bar\n1;2\n"), acct, "x.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumn)

	var mc *MissingColumnError
	require.True(t, errors.As(err, &mc))
	assert.Equal(t, "date", mc.Field)
	assert.Contains(t, err.Error(), "dato, date")

	entries, err := s.ListImports(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries, "failed runs are not logged")
}

func TestImport_EmptyInput(t *testing.T) {
	s := memstore.New()
	acct := newAccount(t, s)

	_, err := New(s, Options{}).Import(context.Background(), nil, acct, "empty.csv")
	assert.ErrorIs(t, err, ErrCSVSyntax)
}

func TestImport_HeaderOnly(t *testing.T) {
	s := memstore.New()
	acct := newAccount(t, s)

	res, err := New(s, Options{}).Import(context.Background(), []byte("Dato;Tekst;Beløb\n"), acct, "h.csv")
	require.NoError(t, err)
	assert.Equal(t, model.ImportResult{}, res)
}

const badSecondRow = "Dato;Tekst;Beløb\n01-01-2025;Netflix;-99,00\n2025-01-32;Spotify;-109,00\n"

func TestImport_InvalidDateAbortsRun(t *testing.T) {
	s := memstore.New()
	acct := newAccount(t, s)
	ctx := context.Background()

	_, err := New(s, Options{}).Import(ctx, []byte(badSecondRow), acct, "bad.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDate)
	assert.Contains(t, err.Error(), "row 2")

	// Rows before the failure stay committed.
	txns, err := s.ListTransactions(ctx, acct, model.DateRange{})
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestImport_AtomicRollsBack(t *testing.T) {
	s := memstore.New()
	acct := newAccount(t, s)
	ctx := context.Background()

	_, err := New(s, Options{Atomic: true}).Import(ctx, []byte(badSecondRow), acct, "bad.csv")
	assert.ErrorIs(t, err, ErrInvalidDate)

	txns, err := s.ListTransactions(ctx, acct, model.DateRange{})
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestImport_InvalidAmount(t *testing.T) {
	s := memstore.New()
	acct := newAccount(t, s)

	_, err := New(s, Options{}).Import(context.Background(), []byte("Dato;Tekst;Beløb\n01-01-2025;Netflix;gratis\n"), acct, "a.csv")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestImport_Windows1252(t *testing.T) {
	s := memstore.New()
	acct := newAccount(t, s)
	ctx := context.Background()

	data := []byte("Dato;Tekst;Bel\xf8b\n02-01-2025;K\xf8benhavns Kommune;-1.200,00\n")
	res, err := New(s, Options{}).Import(ctx, data, acct, "cp1252.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	txns, err := s.ListTransactions(ctx, acct, model.DateRange{})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "Københavns Kommune", txns[0].Payee)
	assert.Equal(t, int64(-120000), txns[0].Amount)
}

func TestImport_UnparseableBalanceIsAbsent(t *testing.T) {
	s := memstore.New()
	acct := newAccount(t, s)
	ctx := context.Background()

	data := "Dato;Tekst;Beløb;Saldo\n01-01-2025;Netflix;-99,00;n/a\n"
	_, err := New(s, Options{}).Import(ctx, []byte(data), acct, "b.csv")
	require.NoError(t, err)

	txns, err := s.ListTransactions(ctx, acct, model.DateRange{})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Nil(t, txns[0].BalanceSnapshot)
	assert.Equal(t, ImportHash("2025-01-01", "Netflix", -9900, nil), txns[0].ImportHash)
}

func TestImport_Strict(t *testing.T) {
	data := []byte("Dato;Tekst;Beløb\n01-01-2025;Netflix;-99,00;extra\n")

	s := memstore.New()
	acct := newAccount(t, s)
	_, err := New(s, Options{Strict: true}).Import(context.Background(), data, acct, "s.csv")
	assert.ErrorIs(t, err, ErrCSVSyntax)

	s = memstore.New()
	acct = newAccount(t, s)
	res, err := New(s, Options{}).Import(context.Background(), data, acct, "s.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
}

func TestImport_AtomicNeedsTransactor(t *testing.T) {
	_, err := New(plainStore{memstore.New()}, Options{Atomic: true}).Import(context.Background(), []byte("Dato;Tekst;Beløb\n"), 1, "x.csv")
	assert.ErrorContains(t, err, "atomic")
}

// plainStore hides WithinTx.
type plainStore struct{ s *memstore.Store }

func (p plainStore) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	return p.s.ExistsByHash(ctx, hash)
}

func (p plainStore) CreateTransaction(ctx context.Context, txn *model.Transaction) (int64, error) {
	return p.s.CreateTransaction(ctx, txn)
}

func (p plainStore) FindOrCreateCategory(ctx context.Context, name string, parentID *int64) (int64, error) {
	return p.s.FindOrCreateCategory(ctx, name, parentID)
}

func (p plainStore) LogImport(ctx context.Context, entry *model.ImportLog) (int64, error) {
	return p.s.LogImport(ctx, entry)
}

type failingStore struct{ plainStore }

func (failingStore) CreateTransaction(context.Context, *model.Transaction) (int64, error) {
	return 0, errors.New("disk full")
}

func TestImport_PersistenceError(t *testing.T) {
	s := memstore.New()
	acct := newAccount(t, s)

	_, err := New(failingStore{plainStore{s}}, Options{}).Import(context.Background(), []byte("Dato;Tekst;Beløb\n01-01-2025;Netflix;-99,00\n"), acct, "p.csv")
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorContains(t, err, "disk full")
}

// staleHashStore misses existing hashes, as a concurrent importer could.
type staleHashStore struct{ plainStore }

func (staleHashStore) ExistsByHash(context.Context, string) (bool, error) {
	return false, nil
}

func TestImport_StoreErrorsStayMatchable(t *testing.T) {
	s := memstore.New()
	acct := newAccount(t, s)
	data := []byte("Dato;Tekst;Beløb\n01-01-2025;Netflix;-99,00\n01-01-2025;Netflix;-99,00\n")

	_, err := New(staleHashStore{plainStore{s}}, Options{}).Import(context.Background(), data, acct, "d.csv")
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

type recorder struct {
	results []model.ImportResult
	errs    []error
}

func (r *recorder) ObserveImport(result model.ImportResult, _ time.Duration, err error) {
	r.results = append(r.results, result)
	r.errs = append(r.errs, err)
}

func TestImport_Recorder(t *testing.T) {
	s := memstore.New()
	acct := newAccount(t, s)
	rec := &recorder{}
	in := New(s, Options{}).WithRecorder(rec)

	_, err := in.Import(context.Background(), []byte("Dato;Tekst;Beløb\n01-01-2025;Netflix;-99,00\n"), acct, "r.csv")
	require.NoError(t, err)
	_, err = in.Import(context.Background(), []byte("nope"), acct, "r.csv")
	require.Error(t, err)

	require.Len(t, rec.results, 2)
	assert.Equal(t, 1, rec.results[0].Imported)
	assert.NoError(t, rec.errs[0])
	assert.Error(t, rec.errs[1])
}

func TestScan_FindsCSVs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bank.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "KONTO.CSV"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "KONTO.CSV", files[0].Name)
	assert.Equal(t, "bank.csv", files[1].Name)
	assert.Equal(t, int64(4), files[1].Size)
}

func TestScan_IgnoresProcessedDir(t *testing.T) {
	dir := t.TempDir()
	processed := filepath.Join(dir, "processed")
	require.NoError(t, os.MkdirAll(processed, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(processed, "old.csv"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "new.csv", files[0].Name)
}

func TestScan_MissingDir(t *testing.T) {
	files, err := Scan(filepath.Join(t.TempDir(), "import"))
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bank.csv"), []byte("data"), 0o644))

	dst, err := MarkProcessed(dir, "bank.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "processed", "bank.csv"), dst)

	_, err = os.Stat(filepath.Join(dir, "bank.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(dst)
	assert.NoError(t, err)
}

func TestMarkProcessed_KeepsEarlierFile(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bank.csv"), []byte("data"), 0o644))
		_, err := MarkProcessed(dir, "bank.csv")
		require.NoError(t, err)
	}

	_, err := os.Stat(filepath.Join(dir, "processed", "bank.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "processed", "bank-1.csv"))
	assert.NoError(t, err)
}
