package repository

import (
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "zero", value: "0"},
		{name: "small", value: "42"},
		{name: "one ether in wei", value: "1000000000000000000"},
		{name: "near numeric(78,0) ceiling", value: "115792089237316195423570985008687907853269984665640564039457584007913129639935"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := new(big.Int).SetString(tt.value, 10)
			require.True(t, ok)

			n := numericFromBig(v)
			got, err := bigFromNumeric(n)
			require.NoError(t, err)
			assert.Equal(t, 0, got.Cmp(v))
		})
	}
}

func TestBigFromNumeric_PositiveExponent(t *testing.T) {
	// Postgres compresses trailing zeros: 5000 arrives as 5 * 10^3.
	n := pgtype.Numeric{Int: big.NewInt(5), Exp: 3, Valid: true}
	got, err := bigFromNumeric(n)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Cmp(big.NewInt(5000)))
}

func TestBigFromNumeric_RejectsFraction(t *testing.T) {
	n := pgtype.Numeric{Int: big.NewInt(15), Exp: -1, Valid: true}
	_, err := bigFromNumeric(n)
	assert.Error(t, err)
}

func TestBigFromNumeric_NullIsZero(t *testing.T) {
	got, err := bigFromNumeric(pgtype.Numeric{})
	require.NoError(t, err)
	assert.Equal(t, 0, got.Sign())
}

func TestNumericFromBig_CopiesValue(t *testing.T) {
	v := big.NewInt(7)
	n := numericFromBig(v)
	v.SetInt64(99)
	assert.Equal(t, 0, n.Int.Cmp(big.NewInt(7)))
}
