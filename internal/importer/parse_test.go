package importer

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"15-03-2025", "2025-03-15"},
		{"1/2/2025", "2025-02-01"},
		{"31.12.2024", "2024-12-31"},
		{" 05-01-2025 ", "2025-01-05"},
		{"31-02-2025", "2025-02-31"},
		{"1-1-25", "0025-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, in := range []string{"", "  ", "2025-03", "13-13-2025", "00-01-2025", "32-01-2025", "aa-01-2025", "1--2025", "-1-01-2025", "01-01-2025-01"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseDate(in)
			assert.ErrorIs(t, err, ErrInvalidDate)
		})
	}
}

func TestParseDate_ErrorCarriesInput(t *testing.T) {
	_, err := ParseDate("13-13-2025")
	assert.ErrorContains(t, err, `"13-13-2025"`)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"-1.234,56", -123456},
		{"99,00", 9900},
		{"100", 10000},
		{"1.234", 123400},
		{" 12,3 ", 1230},
		{"0,005", 1},
		{"-0,005", -1},
		{"0,004", 0},
		{"-25.000,00", -2500000},
		{"92.233.720.368.547.758,07", math.MaxInt64},
		{"-92.233.720.368.547.758,07", -math.MaxInt64},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, in := range []string{
		"", "abc", "1,2,3", "kr 10",
		"99999999999999999999",
		"92.233.720.368.547.758,08",
		"-92.233.720.368.547.758,09",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseAmount(in)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestParseReconciled(t *testing.T) {
	for _, in := range []string{"Ja", "yes", "TRUE", "1", " ja "} {
		assert.True(t, ParseReconciled(in), in)
	}
	for _, in := range []string{"Nej", "no", "", "0", "y"} {
		assert.False(t, ParseReconciled(in), in)
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "-99.00", FormatAmount(-9900))
	assert.Equal(t, "0.05", FormatAmount(5))
	assert.Equal(t, "25000.00", FormatAmount(2500000))
}

func TestImportHash(t *testing.T) {
	balance := int64(1000000)
	base := ImportHash("2025-01-01", "Netflix", -9900, &balance)

	assert.Equal(t, base, ImportHash("2025-01-01", "Netflix", -9900, &balance))
	assert.Len(t, base, 64)
	assert.Regexp(t, "^[0-9a-f]+$", base)

	zero := int64(0)
	other := int64(1000001)
	variants := []string{
		ImportHash("2025-01-02", "Netflix", -9900, &balance),
		ImportHash("2025-01-01", "netflix", -9900, &balance),
		ImportHash("2025-01-01", "Netflix", -9901, &balance),
		ImportHash("2025-01-01", "Netflix", -9900, &other),
		ImportHash("2025-01-01", "Netflix", -9900, nil),
		ImportHash("2025-01-01", "Netflix", -9900, &zero),
	}
	seen := map[string]bool{base: true}
	for i, v := range variants {
		assert.False(t, seen[v], "variant %d collides", i)
		seen[v] = true
	}
}

func TestDecode(t *testing.T) {
	text, enc, err := Decode([]byte("\xef\xbb\xbfDato;Beløb"))
	require.NoError(t, err)
	assert.Equal(t, EncodingUTF8, enc)
	assert.Equal(t, "Dato;Beløb", text)

	text, enc, err = Decode([]byte("Dato;Bel\xf8b;\x80"))
	require.NoError(t, err)
	assert.Equal(t, EncodingWindows1252, enc)
	assert.Equal(t, "Dato;Beløb;€", text)
}

func TestMapColumns(t *testing.T) {
	m, err := MapColumns([]string{"Dato", "Kategori", "Underkategori", "Tekst", "Beløb", "Saldo", "Status", "Afstemt"})
	require.NoError(t, err)
	assert.Equal(t, ColumnMap{Date: 0, Category: 1, Subcategory: 2, Payee: 3, Amount: 4, Balance: 5, Status: 6, Reconciled: 7}, m)

	m, err = MapColumns([]string{"Posting Date", "Payee", "AMOUNT"})
	require.NoError(t, err)
	assert.Equal(t, 0, m.Index(FieldDate))
	assert.Equal(t, 1, m.Index(FieldPayee))
	assert.Equal(t, 2, m.Index(FieldAmount))
	assert.Equal(t, -1, m.Index(FieldCategory))
	assert.Equal(t, -1, m.Index(FieldBalance))
	assert.Equal(t, -1, m.Index(FieldReconciled))
}

func TestMapColumns_Missing(t *testing.T) {
	_, err := MapColumns([]string{"Dato", "Tekst", "Saldo"})
	require.Error(t, err)

	var mc *MissingColumnError
	require.True(t, errors.As(err, &mc))
	assert.Equal(t, "amount", mc.Field)
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "Dato | Tekst | Saldo")
}

func TestRecord(t *testing.T) {
	r := Record{Fields: []string{" a ", "", "c"}}
	assert.Equal(t, "a", r.Get(0))
	assert.Equal(t, "", r.Get(-1))
	assert.Equal(t, "", r.Get(9))

	_, ok := r.Optional(1)
	assert.False(t, ok)
	v, ok := r.Optional(2)
	assert.True(t, ok)
	assert.Equal(t, "c", v)
}

func TestSyntaxError(t *testing.T) {
	inner := errors.New("bare quote")
	err := error(&SyntaxError{Delimiter: ';', Row: 3, Err: inner})
	assert.ErrorIs(t, err, ErrCSVSyntax)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, `csv row 3 with delimiter ';': bare quote`, err.Error())
	assert.True(t, abandonsAttempt(err))
	assert.False(t, abandonsAttempt(ErrInvalidDate))
}
