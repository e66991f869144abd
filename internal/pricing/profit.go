package pricing

import (
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	one          = decimal.NewFromInt(1)
	bpsScale     = decimal.NewFromInt(10_000)
	feeTierScale = decimal.NewFromInt(100)
	// v2 pairs keep 997/1000 of every input.
	fixedFeeFactor = decimal.NewFromInt(997).Div(decimal.NewFromInt(1000))
)

// CalculateProfit returns the fractional yield of buying on the cheaper venue and
// selling on the dearer one, net of the v2 fixed fee and the v3 pool fee. Fee is in
// v3 fee-tier units (500 = 0.05%). The result is independent of argument order.
func CalculateProfit(price1, price2 decimal.Decimal, fee uint32) decimal.Decimal {
	if !price1.IsPositive() || !price2.IsPositive() {
		return one.Neg()
	}

	high, low := price1, price2
	if low.GreaterThan(high) {
		high, low = low, high
	}

	variableFactor := bpsScale.Sub(decimal.NewFromInt(int64(fee)).Div(feeTierScale)).Div(bpsScale)
	return high.Div(low).Mul(fixedFeeFactor).Mul(variableFactor).Sub(one)
}

// CalculateAmountOther sizes the counter-asset leg in smallest units, rounded to
// the nearest integer.
func CalculateAmountOther(price, funding decimal.Decimal, decimals uint8) *big.Int {
	return price.Mul(funding).Shift(int32(decimals)).Round(0).BigInt()
}
