package subscriber

import (
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dexArb/internal/dex"
	"dexArb/internal/model"
	"dexArb/internal/pricing"
)

// v2Handler converts pair swaps with the orientation fixed at subscription time.
func (s *Subscriber) v2Handler(pool model.VenuePool, symbol string, decimalsBase, decimalsOther uint8) func(types.Log) error {
	baseIsToken0 := pool.BaseIsToken0
	return func(l types.Log) error {
		ev, err := dex.DecodeV2Swap(l)
		if err != nil {
			return err
		}
		amounts := pricing.SwapAmounts{DecimalsOther: decimalsOther, DecimalsBase: decimalsBase}
		if baseIsToken0 {
			amounts.BaseIn, amounts.BaseOut = ev.Amount0In, ev.Amount0Out
			amounts.OtherIn, amounts.OtherOut = ev.Amount1In, ev.Amount1Out
		} else {
			amounts.OtherIn, amounts.OtherOut = ev.Amount0In, ev.Amount0Out
			amounts.BaseIn, amounts.BaseOut = ev.Amount1In, ev.Amount1Out
		}
		price, volume := pricing.ConvertToPrice(amounts)
		s.apply(pool, symbol, price, volume, ev.BlockNumber, ev.TxHash)
		return nil
	}
}

// v3Handler prices pool swaps from the post-swap sqrtPriceX96.
func (s *Subscriber) v3Handler(pool model.VenuePool, symbol string, decimalsBase, decimalsOther uint8) func(types.Log) error {
	baseIsToken0 := pool.BaseIsToken0
	return func(l types.Log) error {
		ev, err := dex.DecodeV3Swap(l)
		if err != nil {
			return err
		}
		price := pricing.PriceFromSqrtPriceX96(ev.SqrtPriceX96, baseIsToken0, decimalsBase, decimalsOther)
		otherDelta := ev.Amount0
		if baseIsToken0 {
			otherDelta = ev.Amount1
		}
		volume := pricing.Units(otherDelta, decimalsOther)
		s.apply(pool, symbol, price, volume, ev.BlockNumber, ev.TxHash)
		return nil
	}
}

// apply writes the event's price. A degenerate swap clears the venue entry, so the
// asset sits out of scans until a swap with a usable price arrives.
func (s *Subscriber) apply(pool model.VenuePool, symbol string, price, volume decimal.Decimal, block uint64, txHash string) {
	if !price.IsPositive() {
		s.state.ClearPrice(pool.Asset, pool.Venue)
		s.logger.Debug("degenerate swap, venue price cleared",
			zap.Uint64("block", block),
			zap.String("venue", string(pool.Venue)),
			zap.String("symbol", symbol),
			zap.String("tx", txHash),
		)
		return
	}
	s.state.SetPrice(pool.Asset, pool.Venue, model.VenuePriceEntry{
		Price:     price,
		Block:     block,
		UpdatedAt: s.now(),
	})
	s.metrics.RecordSwap(pool.Venue)
	s.logger.Debug("price update",
		zap.Uint64("block", block),
		zap.String("venue", string(pool.Venue)),
		zap.String("symbol", symbol),
		zap.String("price", price.String()),
		zap.String("volume", volume.String()),
		zap.String("tx", txHash),
	)
}
