package utils

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// RateScale is the fixed-point scale used for on-chain exchange rates (10^10).
var RateScale = big.NewInt(10_000_000_000)

// FormatPrice renders a decimal price string with a fixed number of places.
func FormatPrice(price string, places int32) (string, error) {
	d, err := parseDecimal(price)
	if err != nil {
		return "", err
	}
	return d.StringFixed(places), nil
}

// Ratio divides two decimal price strings and renders the quotient with a fixed number of places.
func Ratio(numerator, denominator string, places int32) (string, error) {
	n, err := parseDecimal(numerator)
	if err != nil {
		return "", err
	}
	d, err := parseDecimal(denominator)
	if err != nil {
		return "", err
	}
	if d.IsZero() {
		return "", errors.New("division by zero price")
	}
	return n.DivRound(d, places).StringFixed(places), nil
}

// ScaledRatio returns floor(numerator * RateScale / denominator).
func ScaledRatio(numerator, denominator *big.Int) (*big.Int, error) {
	if denominator.Sign() == 0 {
		return nil, errors.New("division by zero price")
	}
	out := new(big.Int).Mul(numerator, RateScale)
	return out.Quo(out, denominator), nil
}

// Unscale renders a RateScale fixed-point value as a plain decimal.
func Unscale(v *big.Int) string {
	return decimal.NewFromBigInt(v, -10).String()
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, errors.WithMessagef(err, "error parsing price %q", s)
	}
	return d, nil
}
