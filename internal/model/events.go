package model

import "math/big"

// V2SwapEvent is a decoded pair Swap(sender, amount0In, amount1In, amount0Out, amount1Out, to).
type V2SwapEvent struct {
	Amount0In   *big.Int
	Amount1In   *big.Int
	Amount0Out  *big.Int
	Amount1Out  *big.Int
	BlockNumber uint64
	TxHash      string
}

// V3SwapEvent is a decoded pool Swap(sender, recipient, amount0, amount1, sqrtPriceX96, liquidity, tick).
type V3SwapEvent struct {
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int32
	BlockNumber  uint64
	TxHash       string
}
