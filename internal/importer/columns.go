package importer

import (
	"fmt"
	"strings"
)

// Field is a logical column of a bank export.
type Field string

const (
	FieldDate        Field = "date"
	FieldCategory    Field = "category"
	FieldSubcategory Field = "subcategory"
	FieldPayee       Field = "payee"
	FieldAmount      Field = "amount"
	FieldBalance     Field = "balance"
	FieldStatus      Field = "status"
	FieldReconciled  Field = "reconciled"
)

type fieldSpec struct {
	field    Field
	synonyms []string
	required bool
}

// Header substrings per field, Danish first. Matching is case-insensitive.
var fieldSpecs = []fieldSpec{
	{FieldDate, []string{"dato", "date"}, true},
	{FieldCategory, []string{"kategori", "category"}, false},
	{FieldSubcategory, []string{"underkategori", "subcategory"}, false},
	{FieldPayee, []string{"tekst", "text", "description", "payee"}, true},
	{FieldAmount, []string{"beløb", "belob", "bel", "amount"}, true},
	{FieldBalance, []string{"saldo", "balance"}, false},
	{FieldStatus, []string{"status"}, false},
	{FieldReconciled, []string{"afstemt", "reconciled"}, false},
}

// ColumnMap holds the input column index of every logical field; -1 = absent.
type ColumnMap struct {
	Date        int
	Category    int
	Subcategory int
	Payee       int
	Amount      int
	Balance     int
	Status      int
	Reconciled  int
}

func (m *ColumnMap) slot(f Field) *int {
	switch f {
	case FieldDate:
		return &m.Date
	case FieldCategory:
		return &m.Category
	case FieldSubcategory:
		return &m.Subcategory
	case FieldPayee:
		return &m.Payee
	case FieldAmount:
		return &m.Amount
	case FieldBalance:
		return &m.Balance
	case FieldStatus:
		return &m.Status
	case FieldReconciled:
		return &m.Reconciled
	}
	panic("unknown field " + string(f))
}

// Index returns the column of f, or -1.
func (m ColumnMap) Index(f Field) int {
	return *m.slot(f)
}

// MapColumns resolves every field against the header row. The first header
// containing any synonym wins. Missing date, payee or amount fails with a
// *MissingColumnError.
func MapColumns(headers []string) (ColumnMap, error) {
	var m ColumnMap
	for _, spec := range fieldSpecs {
		idx := findColumn(headers, spec.synonyms)
		if idx < 0 && spec.required {
			return ColumnMap{}, &MissingColumnError{
				Field:    string(spec.field),
				Synonyms: spec.synonyms,
				Headers:  headers,
			}
		}
		*m.slot(spec.field) = idx
	}
	return m, nil
}

func findColumn(headers, synonyms []string) int {
	for i, h := range headers {
		lower := strings.ToLower(h)
		for _, name := range synonyms {
			if strings.Contains(lower, name) {
				return i
			}
		}
	}
	return -1
}

// checkDistinct rejects headers where the mandatory fields share a column,
// which happens when the wrong delimiter leaves the whole header in one field.
func (m ColumnMap) checkDistinct() error {
	if m.Date == m.Payee || m.Date == m.Amount || m.Payee == m.Amount {
		return fmt.Errorf("date, payee and amount resolve to overlapping columns (%d, %d, %d)",
			m.Date, m.Payee, m.Amount)
	}
	return nil
}

// Record is one input row with the column map it is read through.
type Record struct {
	Fields  []string
	Columns ColumnMap
}

// Get returns the trimmed field at col, or "" when col is absent or the row is short.
func (r Record) Get(col int) string {
	if col < 0 || col >= len(r.Fields) {
		return ""
	}
	return strings.TrimSpace(r.Fields[col])
}

// Optional returns the field at col and whether it is present and non-empty.
func (r Record) Optional(col int) (string, bool) {
	v := r.Get(col)
	return v, v != ""
}
