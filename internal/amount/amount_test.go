package amount

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		decimals int
		want     string
		wantErr  error
	}{
		{"integer zero decimals", "10", 0, "10", nil},
		{"fraction within precision", "1.5", 2, "150", nil},
		{"full precision", "0.01", 2, "1", nil},
		{"trailing zeros allowed", "1.50", 1, "15", nil},
		{"excess precision", "1.234", 2, "", ErrPrecision},
		{"fraction on zero decimals", "1.5", 0, "", ErrPrecision},
		{"zero", "0", 2, "", ErrNotPositive},
		{"zero fraction", "0.00", 2, "", ErrNotPositive},
		{"negative", "-1", 2, "", ErrMalformed},
		{"exponent", "1e3", 2, "", ErrMalformed},
		{"empty", "  ", 2, "", ErrEmpty},
		{"bad decimals", "1", 12, "", ErrDecimals},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseToken(tt.input, tt.decimals)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseXEC(t *testing.T) {
	sats, err := ParseXEC("5.46")
	require.NoError(t, err)
	assert.Equal(t, int64(546), sats)

	// No dust floor at validation time.
	sats, err = ParseXEC("0.01")
	require.NoError(t, err)
	assert.Equal(t, int64(1), sats)

	_, err = ParseXEC("1.001")
	assert.ErrorIs(t, err, ErrPrecision)
}

func TestFormatBaseUnits(t *testing.T) {
	assert.Equal(t, "1234.5", FormatBaseUnits(big.NewInt(123450), 2))
	assert.Equal(t, "1", FormatBaseUnits(big.NewInt(100), 2))
	assert.Equal(t, "0.001", FormatBaseUnits(big.NewInt(1), 3))
	assert.Equal(t, "42", FormatBaseUnits(big.NewInt(42), 0))
	assert.Equal(t, "0", FormatBaseUnits(nil, 4))
}

func TestParseToken_RoundTrip(t *testing.T) {
	raw, err := ParseToken("1234.5", 2)
	require.NoError(t, err)
	assert.Equal(t, "1234.5", FormatBaseUnits(raw, 2))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "10", Normalize("010"))
	assert.Equal(t, "1.5", Normalize("1.500"))
	assert.Equal(t, "abc", Normalize("abc"))
}
