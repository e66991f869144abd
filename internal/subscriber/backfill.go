package subscriber

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"dexArb/internal/chain"
)

const defaultBatchSize uint64 = 2000

// EnableBackfill replays the last cfg.BackfillBlocks of swaps for each pool once its
// live subscription is open and before any live event is consumed, so quiet pools
// have a price on the first scan.
func (s *Subscriber) EnableBackfill(history chain.LogFilterer) {
	s.history = history
}

// backfill feeds historical swaps of st through its handler in chain order. Later
// events overwrite earlier ones exactly as live events do. The returned position is
// the last log replayed, also on a partial failure.
func (s *Subscriber) backfill(ctx context.Context, st *stream) (logPosition, error) {
	var last logPosition
	if s.history == nil || s.cfg.BackfillBlocks == 0 {
		return last, nil
	}

	var latest uint64
	err := s.cfg.retry().do(ctx, func(ctx context.Context) error {
		var err error
		latest, err = s.history.LatestBlockNumber(ctx)
		if err != nil {
			st.log.Warn("latest block fetch failed", zap.Error(err))
		}
		return err
	})
	if err != nil {
		return last, fmt.Errorf("latest block: %w", err)
	}

	from := uint64(0)
	if latest >= s.cfg.BackfillBlocks {
		from = latest - s.cfg.BackfillBlocks + 1
	}
	batch := s.cfg.BatchSize
	if batch == 0 {
		batch = defaultBatchSize
	}
	ranges, err := SplitRange(from, latest, batch)
	if err != nil {
		return last, err
	}

	applied := 0
	for _, blockRange := range ranges {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		logs, err := s.filterLogsWithRetry(ctx, st, blockRange)
		if err != nil {
			return last, fmt.Errorf("filter logs: %w", err)
		}
		for _, l := range logs {
			if l.Removed {
				continue
			}
			last = positionOf(l)
			if err := st.handle(l); err != nil {
				st.log.Warn("swap event rejected", zap.String("tx", l.TxHash.Hex()), zap.Error(err))
				continue
			}
			applied++
		}
	}

	st.log.Info("backfill complete", zap.Uint64("from", from), zap.Uint64("to", latest), zap.Int("swaps", applied))
	return last, nil
}

func (s *Subscriber) filterLogsWithRetry(ctx context.Context, st *stream, r BlockRange) ([]types.Log, error) {
	query := st.query
	query.FromBlock = new(big.Int).SetUint64(r.From)
	query.ToBlock = new(big.Int).SetUint64(r.To)

	var logs []types.Log
	err := s.cfg.retry().do(ctx, func(ctx context.Context) error {
		var err error
		logs, err = s.history.FilterLogs(ctx, query)
		if err != nil {
			st.log.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", r.From), zap.Uint64("to", r.To))
		}
		return err
	})
	return logs, err
}
