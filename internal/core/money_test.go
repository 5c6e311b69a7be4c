package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 1, true},
		{"1.500.000", 1500000, true},
		{"Rp 25,000", 25000, true},
		{"007", 7, true},
		{"0", 0, false},
		{"000", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{"99999999999999999999", 0, false},
		{"1.000.000.000.000.000", MaxAmount, true},
		{"1.000.000.000.000.001", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			assert.NoError(t, err, tc.in)
			assert.Equal(t, tc.out, got, tc.in)
		} else {
			assert.ErrorIs(t, err, ErrInvalidAmount, tc.in)
		}
	}
}

func TestFormatRupiah(t *testing.T) {
	cases := map[int64]string{
		0:        "0",
		999:      "999",
		1000:     "1.000",
		25000:    "25.000",
		1500000:  "1.500.000",
		-200000:  "-200.000",
		12345678: "12.345.678",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatRupiah(in))
	}
}

func TestNormalizeAmountInput(t *testing.T) {
	numeric, display := NormalizeAmountInput("Rp 0001500")
	assert.Equal(t, "1500", numeric)
	assert.Equal(t, "1.500", display)

	numeric, display = NormalizeAmountInput("rp")
	assert.Empty(t, numeric)
	assert.Empty(t, display)
}
