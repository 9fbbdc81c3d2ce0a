package booking

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in piasters, the hundredth part of a pound. Backend and
// fares file prices are decimal pounds; they are converted once on the way in
// so that cost arithmetic stays exact.
type Money int64

const piastersPerPound = 100

// Pounds returns n whole pounds.
func Pounds(n int64) Money {
	return Money(n * piastersPerPound)
}

// MoneyFromFloat converts a decimal pound amount, rounding to the nearest piaster.
func MoneyFromFloat(f float64) Money {
	return Money(math.Round(f * piastersPerPound))
}

// ParseMoney parses a decimal pound amount such as "45.5".
func ParseMoney(s string) (Money, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return MoneyFromFloat(f), nil
}

// Float returns the amount in pounds.
func (m Money) Float() float64 {
	return float64(m) / piastersPerPound
}

// String formats the amount in pounds: "91", "45.50".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign, v = "-", -v
	}
	whole, frac := v/piastersPerPound, v%piastersPerPound
	if frac == 0 {
		return sign + strconv.FormatInt(whole, 10)
	}
	return fmt.Sprintf("%s%d.%02d", sign, whole, frac)
}

// MarshalJSON writes the amount as a JSON number of pounds.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON reads a number of pounds. A quoted number is accepted too.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	v, err := ParseMoney(string(bytes.Trim(data, `"`)))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// UnmarshalYAML reads a number of pounds from fares.yaml.
func (m *Money) UnmarshalYAML(unmarshal func(any) error) error {
	var f float64
	if err := unmarshal(&f); err != nil {
		return err
	}
	*m = MoneyFromFloat(f)
	return nil
}
