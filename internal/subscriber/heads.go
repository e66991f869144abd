package subscriber

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"dexArb/internal/chain"
)

// WatchHeads streams new block numbers until ctx ends, resubscribing on failure.
// The returned channel is closed when the stream stops.
func WatchHeads(ctx context.Context, heads chain.HeadSubscriber, cfg Config, logger *zap.Logger) <-chan uint64 {
	if logger == nil {
		logger = zap.NewNop()
	}
	out := make(chan uint64, 16)
	go func() {
		defer close(out)
		for ctx.Err() == nil {
			ch := make(chan *types.Header, 16)
			var sub ethereum.Subscription
			err := cfg.retry().do(ctx, func(ctx context.Context) error {
				var err error
				sub, err = heads.SubscribeNewHead(ctx, ch)
				if err != nil {
					logger.Warn("subscribe heads failed", zap.Error(err))
				}
				return err
			})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error("head subscribe retries exhausted", zap.Error(err))
				backoff := cfg.RetryBackoff
				if backoff <= 0 {
					backoff = time.Second
				}
				if !sleep(ctx, backoff) {
					return
				}
				continue
			}
			if !forwardHeads(ctx, sub, ch, out, logger) {
				sub.Unsubscribe()
				return
			}
			sub.Unsubscribe()
		}
	}()
	return out
}

// forwardHeads returns true when the subscription failed and should be reopened.
func forwardHeads(ctx context.Context, sub ethereum.Subscription, in <-chan *types.Header, out chan<- uint64, logger *zap.Logger) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case err := <-sub.Err():
			logger.Warn("head subscription dropped", zap.Error(err))
			return true
		case h := <-in:
			if h == nil || h.Number == nil {
				continue
			}
			select {
			case out <- h.Number.Uint64():
			case <-ctx.Done():
				return false
			}
		}
	}
}
