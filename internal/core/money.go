// Package core provides rupiah amount parsing and formatting.
//
// Amounts are whole rupiah held in an int64. Input is accepted the way a
// numeric keypad field produces it: every non-digit is dropped.
package core

import (
	"strconv"
	"strings"
)

// MaxAmount is the largest accepted amount (one quadrillion rupiah). It keeps
// sums over any realistic ledger inside int64.
const MaxAmount int64 = 1_000_000_000_000_000

// NormalizeAmountInput strips everything but digits and leading zeros.
// It returns the numeric string and its grouped display form; both are empty
// when no digit is present.
//
// Examples:
//
//	NormalizeAmountInput("Rp 1.500.000") -> "1500000", "1.500.000"
//	NormalizeAmountInput("007")          -> "7", "7"
func NormalizeAmountInput(input string) (numeric, display string) {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimLeft(b.String(), "0")
	if digits == "" && b.Len() > 0 {
		digits = "0"
	}
	if digits == "" {
		return "", ""
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return digits, digits
	}
	return digits, FormatRupiah(n)
}

// ParseAmount converts keypad input to a positive amount.
// Empty, zero and inputs above MaxAmount return ErrInvalidAmount.
func ParseAmount(input string) (int64, error) {
	numeric, _ := NormalizeAmountInput(input)
	if numeric == "" {
		return 0, ErrInvalidAmount
	}
	n, err := strconv.ParseInt(numeric, 10, 64)
	if err != nil || n <= 0 || n > MaxAmount {
		return 0, ErrInvalidAmount
	}
	return n, nil
}

// FormatRupiah groups thousands with dots, e.g. 1500000 -> "1.500.000".
func FormatRupiah(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
