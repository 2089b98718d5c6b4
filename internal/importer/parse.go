package importer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred        = decimal.NewFromInt(100)
	maxMinor       = decimal.NewFromInt(math.MaxInt64)
	dateSeparators = strings.NewReplacer("/", "-", ".", "-")
)

// ParseDate converts DD-MM-YYYY, DD/MM/YYYY or DD.MM.YYYY into YYYY-MM-DD.
// Day and month are range checked only; 31-02-2025 passes through.
func ParseDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDate)
	}

	parts := strings.Split(dateSeparators.Replace(s), "-")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}

	day, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return "", fmt.Errorf("%w: bad day in %q", ErrInvalidDate, raw)
	}
	month, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return "", fmt.Errorf("%w: bad month in %q", ErrInvalidDate, raw)
	}
	year, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return "", fmt.Errorf("%w: bad year in %q", ErrInvalidDate, raw)
	}

	if month < 1 || month > 12 {
		return "", fmt.Errorf("%w: month %d out of range in %q", ErrInvalidDate, month, raw)
	}
	if day < 1 || day > 31 {
		return "", fmt.Errorf("%w: day %d out of range in %q", ErrInvalidDate, day, raw)
	}

	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), nil
}

// ParseAmount converts a Danish-formatted amount ("-1.234,56") into minor units.
// Dots are thousand separators and the comma is the decimal mark; the value is
// rounded half away from zero to whole øre.
func ParseAmount(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	cleaned := strings.ReplaceAll(s, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	minor := d.Mul(hundred).Round(0)
	if minor.Abs().GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, raw)
	}
	return minor.IntPart(), nil
}

// ParseReconciled reports whether a reconciled-flag field means yes.
func ParseReconciled(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ja", "yes", "true", "1":
		return true
	default:
		return false
	}
}

// FormatAmount renders minor units as a major-unit string with two decimals.
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
