package subscriber

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dexArb/internal/chain"
	"dexArb/internal/dex"
	"dexArb/internal/metrics"
	"dexArb/internal/model"
	"dexArb/internal/state"
)

// ErrPoolNotFound marks an asset that lacks a pool on one of the venues.
var ErrPoolNotFound = dex.ErrPoolNotFound

// PoolResolver resolves both venue pools for an asset.
type PoolResolver interface {
	Base() common.Address
	Resolve(ctx context.Context, asset common.Address) (model.VenuePool, model.VenuePool, error)
}

// Config holds resubscription settings.
type Config struct {
	MaxRetries     int
	RetryBackoff   time.Duration
	// MaxBackoff caps the doubling retry delay. Zero means 30s.
	MaxBackoff     time.Duration
	// Parallelism bounds concurrent asset resolution in SubscribeAll. Zero means 4.
	Parallelism    int
	// BackfillBlocks is how far back EnableBackfill replays swaps. Zero disables it.
	BackfillBlocks uint64
	BatchSize      uint64
}

// Subscriber keeps PriceState current from swap events on both venues.
type Subscriber struct {
	cfg      Config
	logs     chain.LogSubscriber
	history  chain.LogFilterer
	caller   chain.Caller
	resolver PoolResolver
	state    *state.PriceState
	tokens   *dex.TokenMetaCache
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	wg sync.WaitGroup
}

func New(cfg Config, logs chain.LogSubscriber, caller chain.Caller, resolver PoolResolver, priceState *state.PriceState, m *metrics.Metrics, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	return &Subscriber{
		cfg:      cfg,
		logs:     logs,
		caller:   caller,
		resolver: resolver,
		state:    priceState,
		tokens:   dex.NewTokenMetaCache(),
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// SubscribeAll subscribes every asset. Assets without pools are skipped.
// Watches keep running on ctx after SubscribeAll returns.
func (s *Subscriber) SubscribeAll(ctx context.Context, assets []common.Address) error {
	var g errgroup.Group
	g.SetLimit(s.cfg.Parallelism)
	for _, asset := range assets {
		asset := asset
		g.Go(func() error {
			err := s.SubscribeAsset(ctx, asset)
			if errors.Is(err, ErrPoolNotFound) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// SubscribeAsset resolves metadata and pools for one asset and starts one watch per venue.
func (s *Subscriber) SubscribeAsset(ctx context.Context, asset common.Address) error {
	base := s.resolver.Base()
	baseMeta, err := s.tokens.Lookup(ctx, s.caller, base, s.logger)
	if err != nil {
		return fmt.Errorf("base metadata: %w", err)
	}
	meta, err := s.tokens.Lookup(ctx, s.caller, asset, s.logger)
	if err != nil {
		return fmt.Errorf("asset metadata %s: %w", asset.Hex(), err)
	}
	s.state.SetMeta(asset, meta)

	v2, v3, err := s.resolver.Resolve(ctx, asset)
	if err != nil {
		if errors.Is(err, ErrPoolNotFound) {
			s.logger.Warn("asset skipped", zap.String("asset", asset.Hex()), zap.String("symbol", meta.Symbol), zap.Error(err))
		}
		return err
	}
	s.state.SetFeeV3(asset, v3.Fee)

	v2Topic, err := dex.V2SwapTopic()
	if err != nil {
		return err
	}
	v3Topic, err := dex.V3SwapTopic()
	if err != nil {
		return err
	}

	s.logger.Info("subscribing v2 pair",
		zap.String("pair", pairSymbol(v2.BaseIsToken0, baseMeta.Symbol, meta.Symbol)),
		zap.String("address", v2.Address.Hex()),
	)
	s.logger.Info("subscribing v3 pool",
		zap.String("pair", pairSymbol(v3.BaseIsToken0, baseMeta.Symbol, meta.Symbol)),
		zap.String("fee_percent", decimal.NewFromInt(int64(v3.Fee)).Shift(-4).String()),
		zap.String("address", v3.Address.Hex()),
	)

	streams := []*stream{
		s.newStream(v2, v2Topic, s.v2Handler(v2, meta.Symbol, baseMeta.Decimals, meta.Decimals)),
		s.newStream(v3, v3Topic, s.v3Handler(v3, meta.Symbol, baseMeta.Decimals, meta.Decimals)),
	}
	// Subscriptions open before the backfill so swaps mined during the replay are buffered.
	for _, st := range streams {
		if err := s.open(ctx, st); err != nil {
			if ctx.Err() != nil {
				s.closeAll(streams)
				return ctx.Err()
			}
			st.log.Error("subscribe retries exhausted", zap.Error(err))
		}
	}
	for _, st := range streams {
		last, err := s.backfill(ctx, st)
		if err != nil {
			if ctx.Err() != nil {
				s.closeAll(streams)
				return ctx.Err()
			}
			st.log.Warn("backfill failed", zap.Error(err))
		}
		st.after = last
	}

	for _, st := range streams {
		s.start(ctx, st)
	}
	return nil
}

// Wait blocks until every watch has stopped.
func (s *Subscriber) Wait() {
	s.wg.Wait()
}

func pairSymbol(baseIsToken0 bool, baseSymbol, otherSymbol string) string {
	if baseIsToken0 {
		return baseSymbol + "-" + otherSymbol
	}
	return otherSymbol + "-" + baseSymbol
}

// stream is the log feed of one pool. sub is nil while no subscription is open.
type stream struct {
	pool   model.VenuePool
	query  ethereum.FilterQuery
	handle func(types.Log) error
	log    *zap.Logger

	sub ethereum.Subscription
	ch  chan types.Log
	// after is the last log applied by backfill; buffered live logs up to it are skipped.
	after logPosition
}

type logPosition struct {
	block uint64
	index uint
	set   bool
}

func positionOf(l types.Log) logPosition {
	return logPosition{block: l.BlockNumber, index: l.Index, set: true}
}

// covers reports whether l is at or before p in chain order.
func (p logPosition) covers(l types.Log) bool {
	if !p.set {
		return false
	}
	return l.BlockNumber < p.block || (l.BlockNumber == p.block && l.Index <= p.index)
}

func (s *Subscriber) newStream(pool model.VenuePool, topic common.Hash, handle func(types.Log) error) *stream {
	return &stream{
		pool: pool,
		query: ethereum.FilterQuery{
			Addresses: []common.Address{pool.Address},
			Topics:    [][]common.Hash{{topic}},
		},
		handle: handle,
		log:    s.logger.With(zap.String("venue", string(pool.Venue)), zap.String("pool", pool.Address.Hex())),
	}
}

// open subscribes st with retries.
func (s *Subscriber) open(ctx context.Context, st *stream) error {
	ch := make(chan types.Log, 256)
	var sub ethereum.Subscription
	err := s.cfg.retry().do(ctx, func(ctx context.Context) error {
		var err error
		sub, err = s.logs.SubscribeFilterLogs(ctx, st.query, ch)
		if err != nil {
			st.log.Warn("subscribe failed", zap.Error(err))
		}
		return err
	})
	if err != nil {
		return err
	}
	st.sub, st.ch = sub, ch
	s.metrics.SubscriptionOpened()
	return nil
}

func (s *Subscriber) close(st *stream) {
	if st.sub == nil {
		return
	}
	st.sub.Unsubscribe()
	st.sub = nil
	s.metrics.SubscriptionClosed()
}

func (s *Subscriber) closeAll(streams []*stream) {
	for _, st := range streams {
		s.close(st)
	}
}

func (s *Subscriber) start(ctx context.Context, st *stream) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.watch(ctx, st)
	}()
}

// watch consumes st and resubscribes until ctx ends.
func (s *Subscriber) watch(ctx context.Context, st *stream) {
	defer s.close(st)
	for ctx.Err() == nil {
		if st.sub == nil {
			if err := s.open(ctx, st); err != nil {
				if ctx.Err() != nil {
					return
				}
				st.log.Error("subscribe retries exhausted", zap.Error(err))
				if !sleep(ctx, s.backoff()) {
					return
				}
				continue
			}
		}

		if !s.consume(ctx, st) {
			return
		}
		s.close(st)
		st.after = logPosition{}
	}
}

// consume drains st.ch until ctx ends (false) or the subscription fails (true).
func (s *Subscriber) consume(ctx context.Context, st *stream) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case err := <-st.sub.Err():
			st.log.Warn("subscription dropped", zap.Error(err))
			return true
		case l := <-st.ch:
			if l.Removed || st.after.covers(l) {
				continue
			}
			if err := st.handle(l); err != nil {
				st.log.Warn("swap event rejected", zap.String("tx", l.TxHash.Hex()), zap.Error(err))
			}
		}
	}
}

func (s *Subscriber) backoff() time.Duration {
	if s.cfg.RetryBackoff <= 0 {
		return time.Second
	}
	return s.cfg.RetryBackoff
}
