package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"dexArb/internal/lock"
	"dexArb/internal/model"
)

// skipQueue bounds skipped blocks waiting to be journaled.
const skipQueue = 64

// Run starts a cycle for every block received on heads. A block that arrives while
// a cycle is in flight is dropped. Run returns when ctx ends or heads closes, after
// the in-flight cycle finishes.
func (e *Engine) Run(ctx context.Context, heads <-chan uint64) error {
	defer e.inflight.Wait()

	// Dropped blocks are journaled off the head loop so a slow journal never delays heads.
	skipped := make(chan uint64, skipQueue)
	defer close(skipped)
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		for block := range skipped {
			e.skip(ctx, block, "cycle in flight")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case block, ok := <-heads:
			if !ok {
				return nil
			}
			if !e.cycle.TryLock() {
				select {
				case skipped <- block:
				default:
					e.logger.Warn("skip journal backlog full", zap.Uint64("block", block))
				}
				continue
			}
			e.inflight.Add(1)
			go func() {
				defer e.inflight.Done()
				defer e.cycle.Unlock()
				e.runCycle(ctx, block)
			}()
		}
	}
}

// runCycle must be called with e.cycle held.
func (e *Engine) runCycle(ctx context.Context, block uint64) {
	if e.locker != nil {
		unlock, err := e.locker.Acquire(ctx, e.lockKey(), e.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, lock.ErrLockHeld) {
				e.skip(ctx, block, "funding lock held")
				return
			}
			e.logger.Error("acquire funding lock", zap.Uint64("block", block), zap.Error(err))
			return
		}
		defer unlock()
	}

	if e.cfg.SettleDelay > 0 {
		timer := time.NewTimer(e.cfg.SettleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	if _, err := e.decide(ctx, block); err != nil {
		if ctx.Err() != nil {
			return
		}
		e.logger.Error("decision cycle failed", zap.Uint64("block", block), zap.Error(err))
	}
}

func (e *Engine) skip(ctx context.Context, block uint64, reason string) {
	e.logger.Debug("block dropped", zap.Uint64("block", block), zap.String("reason", reason))
	e.record(ctx, Result{Block: block, Outcome: model.OutcomeSkipped}, nil)
}

func (e *Engine) lockKey() string {
	return "arb:" + e.funding.Address().Hex()
}
