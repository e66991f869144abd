// Package pricing holds the pure arithmetic of the arbitrage loop: turning swap
// deltas into prices, estimating the spread yield and sizing the counter-asset leg.
package pricing

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// priceScale is the number of fractional digits kept when a rational price
// is converted to a decimal.
const priceScale = 18

var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// SwapAmounts are the raw magnitudes of one swap, oriented to the tracked asset
// ("other") and the base asset. Exactly one of in/out is non-zero per side.
type SwapAmounts struct {
	OtherIn       *big.Int
	OtherOut      *big.Int
	BaseIn        *big.Int
	BaseOut       *big.Int
	DecimalsOther uint8
	DecimalsBase  uint8
}

// ConvertToPrice returns the absolute other-per-base price and the signed other
// volume (positive when the asset went into the pool). A swap with no base
// movement has price zero.
func ConvertToPrice(amounts SwapAmounts) (price decimal.Decimal, volume decimal.Decimal) {
	other := Units(signedAmount(amounts.OtherIn, amounts.OtherOut), amounts.DecimalsOther)
	base := Units(signedAmount(amounts.BaseIn, amounts.BaseOut), amounts.DecimalsBase)
	if base.IsZero() {
		return decimal.Zero, other
	}
	return other.Div(base).Abs(), other
}

// PriceFromSqrtPriceX96 converts a v3 pool sqrt price into other-per-base units.
func PriceFromSqrtPriceX96(sqrtPriceX96 *big.Int, baseIsToken0 bool, decimalsBase, decimalsOther uint8) decimal.Decimal {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero
	}

	squared := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	var ratio *big.Rat
	if baseIsToken0 {
		ratio = new(big.Rat).SetFrac(squared, q192)
	} else {
		ratio = new(big.Rat).SetFrac(q192, squared)
	}

	exp := int64(decimalsBase) - int64(decimalsOther)
	if exp != 0 {
		abs := exp
		if abs < 0 {
			abs = -abs
		}
		scale := new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(abs), nil))
		if exp > 0 {
			ratio.Mul(ratio, scale)
		} else {
			ratio.Quo(ratio, scale)
		}
	}

	return decimal.RequireFromString(ratio.FloatString(priceScale))
}

// Units converts an integer amount in smallest units to a decimal amount.
func Units(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

func signedAmount(in, out *big.Int) *big.Int {
	if in != nil && in.Sign() != 0 {
		return new(big.Int).Set(in)
	}
	if out == nil {
		return new(big.Int)
	}
	return new(big.Int).Neg(out)
}
