package gas

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dexArb/internal/chain"
)

// Tier names one of the four price levels an Oracle reports.
type Tier string

const (
	TierLow      Tier = "low"
	TierStandard Tier = "standard"
	TierFast     Tier = "fast"
	TierInstant  Tier = "instant"
)

// ParseTier accepts a tier name case-insensitively.
func ParseTier(value string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(value))); t {
	case TierLow, TierStandard, TierFast, TierInstant:
		return t, nil
	default:
		return "", fmt.Errorf("unknown gas tier %q", value)
	}
}

// Prices holds gas prices in gwei.
type Prices struct {
	Low      decimal.Decimal
	Standard decimal.Decimal
	Fast     decimal.Decimal
	Instant  decimal.Decimal
}

// Get returns the price for a tier.
func (p Prices) Get(tier Tier) (decimal.Decimal, error) {
	switch tier {
	case TierLow:
		return p.Low, nil
	case TierStandard:
		return p.Standard, nil
	case TierFast:
		return p.Fast, nil
	case TierInstant:
		return p.Instant, nil
	default:
		return decimal.Zero, fmt.Errorf("unknown gas tier %q", tier)
	}
}

// Oracle reports current gas prices.
type Oracle interface {
	GasPrices(ctx context.Context) (Prices, error)
}

// Reward percentiles backing low, standard, fast and instant.
var feeHistoryPercentiles = []float64{25, 50, 75, 95}

const defaultHistoryBlocks = 10

// RPCOracle derives tiers from eth_feeHistory: the next block's base fee plus the
// average priority fee at each percentile. It falls back to eth_gasPrice for every
// tier when fee history is unavailable.
type RPCOracle struct {
	source chain.FeeSource
	blocks uint64
	logger *zap.Logger
}

func NewRPCOracle(source chain.FeeSource, blocks uint64, logger *zap.Logger) *RPCOracle {
	if blocks == 0 {
		blocks = defaultHistoryBlocks
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RPCOracle{source: source, blocks: blocks, logger: logger}
}

func (o *RPCOracle) GasPrices(ctx context.Context) (Prices, error) {
	history, err := o.source.FeeHistory(ctx, o.blocks, feeHistoryPercentiles)
	if err == nil && history != nil && len(history.BaseFee) > 0 && len(history.Reward) > 0 {
		baseFee := history.BaseFee[len(history.BaseFee)-1]
		tips := averageRewards(history.Reward, len(feeHistoryPercentiles))
		if baseFee != nil && tips != nil {
			return Prices{
				Low:      weiToGwei(new(big.Int).Add(baseFee, tips[0])),
				Standard: weiToGwei(new(big.Int).Add(baseFee, tips[1])),
				Fast:     weiToGwei(new(big.Int).Add(baseFee, tips[2])),
				Instant:  weiToGwei(new(big.Int).Add(baseFee, tips[3])),
			}, nil
		}
	}
	if err != nil {
		o.logger.Debug("fee history unavailable, using gas price", zap.Error(err))
	}

	price, err := o.source.SuggestGasPrice(ctx)
	if err != nil {
		return Prices{}, fmt.Errorf("suggest gas price: %w", err)
	}
	gwei := weiToGwei(price)
	return Prices{Low: gwei, Standard: gwei, Fast: gwei, Instant: gwei}, nil
}

// averageRewards averages each percentile column over the blocks that report it.
func averageRewards(rewards [][]*big.Int, columns int) []*big.Int {
	sums := make([]*big.Int, columns)
	for i := range sums {
		sums[i] = new(big.Int)
	}
	rows := int64(0)
	for _, row := range rewards {
		if len(row) < columns {
			continue
		}
		for i := 0; i < columns; i++ {
			if row[i] != nil {
				sums[i].Add(sums[i], row[i])
			}
		}
		rows++
	}
	if rows == 0 {
		return nil
	}
	for i := range sums {
		sums[i].Quo(sums[i], big.NewInt(rows))
	}
	return sums
}

func weiToGwei(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -9)
}

// GweiToWei converts a gwei price to wei, truncating sub-wei fractions.
func GweiToWei(gwei decimal.Decimal) *big.Int {
	return gwei.Shift(9).Truncate(0).BigInt()
}
