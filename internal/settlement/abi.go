package settlement

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const paramsTuple = `{
  "components": [
    {"internalType": "address", "name": "otherToken", "type": "address"},
    {"internalType": "uint256", "name": "amountOtherMinimum", "type": "uint256"},
    {"internalType": "uint256", "name": "profitMinimum", "type": "uint256"},
    {"internalType": "uint24", "name": "fee", "type": "uint24"},
    {"internalType": "uint256", "name": "deadline", "type": "uint256"}
  ],
  "internalType": "struct Arbitrage.Params",
  "name": "params",
  "type": "tuple"
}`

const arbitrageABIJSON = `[
  {"inputs": [` + paramsTuple + `], "name": "sushiswapToUniswap", "outputs": [], "stateMutability": "payable", "type": "function"},
  {"inputs": [` + paramsTuple + `], "name": "uniswapToSushiswap", "outputs": [], "stateMutability": "payable", "type": "function"}
]`

var (
	arbitrageABIOnce sync.Once
	arbitrageABI     abi.ABI
	arbitrageABIErr  error
)

// ArbitrageABI returns the parsed settlement contract ABI.
func ArbitrageABI() (abi.ABI, error) {
	arbitrageABIOnce.Do(func() {
		arbitrageABI, arbitrageABIErr = abi.JSON(strings.NewReader(arbitrageABIJSON))
	})
	return arbitrageABI, arbitrageABIErr
}
