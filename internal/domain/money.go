package domain

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Money is an amount in minor currency units (cents). All arithmetic stays
// in integers so the authorize -> capture -> refund chain never drifts.
type Money int64

// ErrInvalidMoney is returned when an amount cannot be parsed.
var ErrInvalidMoney = errors.New("invalid money amount")

// maxUnits bounds parsed amounts so that seat totals, percentages and
// ledger sums stay far inside int64.
const maxUnits = 1_000_000_000_000

// MaxMoney is the largest amount accepted from input.
const MaxMoney = Money(maxUnits * 100)

// NewMoney builds an amount from whole units and cents.
func NewMoney(units, cents int64) Money {
	return Money(units*100 + cents)
}

// Cents returns the raw minor-unit value.
func (m Money) Cents() int64 {
	return int64(m)
}

// Percent returns pct percent of m, rounded half away from zero.
// pct must be between 0 and 100.
func (m Money) Percent(pct int64) Money {
	whole, rem := int64(m)/100, int64(m)%100
	v := rem * pct
	if v < 0 {
		return Money(whole*pct - (-v+50)/100)
	}
	return Money(whole*pct + (v+50)/100)
}

// Times multiplies the amount by a seat count or other integer factor.
// ok is false when the product overflows.
func (m Money) Times(n int) (product Money, ok bool) {
	if m == 0 || n == 0 {
		return 0, true
	}
	p := int64(m) * int64(n)
	if p/int64(n) != int64(m) {
		return 0, false
	}
	return Money(p), true
}

// InRange reports whether m lies within ±MaxMoney.
func (m Money) InRange() bool {
	return m >= -MaxMoney && m <= MaxMoney
}

// String formats the amount with exactly two fractional digits.
func (m Money) String() string {
	v := int64(m)
	sign := ""
	u := uint64(v)
	if v < 0 {
		sign = "-"
		u = uint64(-(v + 1)) + 1
	}
	return fmt.Sprintf("%s%d.%02d", sign, u/100, u%100)
}

// ParseMoney parses a decimal string such as "40", "40.5" or "40.50".
// More than two fractional digits is rejected rather than rounded.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidMoney
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" && (!hasFrac || frac == "") {
		return 0, ErrInvalidMoney
	}
	if len(frac) > 2 || (hasFrac && frac == "") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}

	var units int64
	if whole != "" {
		u, err := strconv.ParseUint(whole, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
		}
		if u > maxUnits {
			return 0, fmt.Errorf("%w: %q exceeds %s", ErrInvalidMoney, s, MaxMoney)
		}
		units = int64(u)
	}

	var cents int64
	if frac != "" {
		for len(frac) < 2 {
			frac += "0"
		}
		c, err := strconv.ParseUint(frac, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
		}
		cents = int64(c)
	}

	m := NewMoney(units, cents)
	if m > MaxMoney {
		return 0, fmt.Errorf("%w: %q exceeds %s", ErrInvalidMoney, s, MaxMoney)
	}
	if neg {
		m = -m
	}
	return m, nil
}

// MarshalJSON encodes the amount as a two-decimal string, e.g. "40.00".
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

// UnmarshalJSON accepts either a quoted decimal string or a bare JSON number.
// Numbers are parsed from their literal text, never through float64.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if len(raw) >= 2 && raw[0] == '"' {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return ErrInvalidMoney
		}
		raw = unquoted
	}
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
