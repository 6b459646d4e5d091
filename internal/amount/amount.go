// Package amount parses and formats token and XEC amounts.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// XECDecimals is the fixed precision of the native currency (1 XEC = 100 sats).
const XECDecimals = 2

// MaxTokenDecimals is the largest decimals value a token genesis may declare.
const MaxTokenDecimals = 9

var (
	// ErrEmpty is returned for an empty amount string.
	ErrEmpty = errors.New("amount is required")

	// ErrMalformed is returned when the amount is not a plain decimal number.
	ErrMalformed = errors.New("amount must be a decimal number like 1.23")

	// ErrNotPositive is returned for zero amounts.
	ErrNotPositive = errors.New("amount must be greater than zero")

	// ErrPrecision is returned when the amount has more fractional digits than allowed.
	ErrPrecision = errors.New("amount exceeds token decimal precision")

	// ErrDecimals is returned for an out-of-range decimals value.
	ErrDecimals = errors.New("invalid token decimals")
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ParseToken validates a token amount against the token's declared decimals
// and returns it in base units.
func ParseToken(s string, decimals int) (*big.Int, error) {
	if decimals < 0 || decimals > MaxTokenDecimals {
		return nil, fmt.Errorf("%w: %d", ErrDecimals, decimals)
	}
	d, err := parse(s)
	if err != nil {
		return nil, err
	}
	if !d.Equal(d.Truncate(int32(decimals))) {
		return nil, fmt.Errorf("%w (%d)", ErrPrecision, decimals)
	}
	return d.Shift(int32(decimals)).BigInt(), nil
}

// ParseXEC validates a native-currency amount and returns satoshis.
// Unlike tokens there is no per-asset precision lookup; the dust floor is
// enforced by the wallet at build time, not here.
func ParseXEC(s string) (int64, error) {
	d, err := parse(s)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(XECDecimals)) {
		return 0, fmt.Errorf("%w (%d)", ErrPrecision, XECDecimals)
	}
	sats := d.Shift(XECDecimals)
	if !sats.IsInteger() || sats.BigInt().BitLen() > 62 {
		return 0, ErrMalformed
	}
	return sats.IntPart(), nil
}

// FormatBaseUnits renders raw base units as a human-readable decimal,
// trimming trailing fractional zeros (123450 with 2 decimals is "1234.5").
func FormatBaseUnits(raw *big.Int, decimals int) string {
	if raw == nil {
		return "0"
	}
	if decimals <= 0 {
		return raw.String()
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).String()
}

// Normalize returns the canonical decimal form of s (leading and trailing zeros trimmed).
// Invalid input is returned unchanged.
func Normalize(s string) string {
	d, err := parse(s)
	if err != nil {
		return s
	}
	return d.String()
}

func parse(s string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(s)
	if clean == "" {
		return decimal.Zero, ErrEmpty
	}
	if !decimalPattern.MatchString(clean) {
		return decimal.Zero, ErrMalformed
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if d.Sign() <= 0 {
		return decimal.Zero, ErrNotPositive
	}
	return d, nil
}
