package engine

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dexArb/internal/gas"
	"dexArb/internal/lock"
	"dexArb/internal/metrics"
	"dexArb/internal/model"
	"dexArb/internal/pricing"
	"dexArb/internal/state"
	"dexArb/internal/storage"
)

// nativeDecimals is the precision of wei.
const nativeDecimals = 18

// PriceReader is the read side of the price table.
type PriceReader interface {
	Snapshot(asset common.Address) (state.Snapshot, bool)
}

// Settlement estimates and submits the two settlement entry points.
type Settlement interface {
	EstimateGas(ctx context.Context, direction model.Direction, req model.ExecutionRequest, value *big.Int) (uint64, error)
	Submit(ctx context.Context, direction model.Direction, req model.ExecutionRequest, value, gasPrice *big.Int, gasLimit uint64) (common.Hash, error)
}

// Funding is the identity that pays the attached value.
type Funding interface {
	Address() common.Address
	Balance(ctx context.Context) (*big.Int, error)
}

// Config holds decision settings.
type Config struct {
	// Assets is the scan order; ties go to the earlier asset.
	Assets []common.Address
	// FundingAmount is the attached value in base units.
	FundingAmount      decimal.Decimal
	BaseDecimals       uint8
	GasTier            gas.Tier
	GasLimitMultiplier decimal.Decimal
	Deadline           time.Duration
	SettleDelay        time.Duration
	LockTTL            time.Duration
	DryRun             bool
}

// Result describes how one cycle ended.
type Result struct {
	Block       uint64
	Outcome     model.Outcome
	Opportunity *model.Opportunity
	Direction   model.Direction
	AmountOther *big.Int
	GasCost     decimal.Decimal
	Expected    decimal.Decimal
	TxHash      common.Hash
}

// Engine picks the best spread on each block and settles it when it covers gas.
type Engine struct {
	cfg        Config
	prices     PriceReader
	settlement Settlement
	oracle     gas.Oracle
	funding    Funding

	journal storage.Storage
	locker  lock.Locker
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time

	cycle    sync.Mutex
	inflight sync.WaitGroup
}

type Option func(*Engine)

func WithJournal(s storage.Storage) Option { return func(e *Engine) { e.journal = s } }

func WithLocker(l lock.Locker) Option { return func(e *Engine) { e.locker = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithClock overrides time.Now for deadlines and journal timestamps.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func New(cfg Config, prices PriceReader, settlement Settlement, oracle gas.Oracle, funding Funding, opts ...Option) *Engine {
	if cfg.BaseDecimals == 0 {
		cfg.BaseDecimals = nativeDecimals
	}
	if cfg.GasTier == "" {
		cfg.GasTier = gas.TierFast
	}
	if !cfg.GasLimitMultiplier.IsPositive() {
		cfg.GasLimitMultiplier = decimal.RequireFromString("1.2")
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 60 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	e := &Engine{
		cfg:        cfg,
		prices:     prices,
		settlement: settlement,
		oracle:     oracle,
		funding:    funding,
		journal:    storage.Nop{},
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnBlock runs one decision cycle, waiting for any cycle already in flight.
// Economic rejections are reported through Result with a nil error.
func (e *Engine) OnBlock(ctx context.Context, block uint64) (Result, error) {
	e.cycle.Lock()
	defer e.cycle.Unlock()
	return e.decide(ctx, block)
}

func (e *Engine) decide(ctx context.Context, block uint64) (Result, error) {
	start := e.now()
	res, err := e.evaluate(ctx, block)
	if err != nil {
		res.Outcome = model.OutcomeFailed
	}
	e.metrics.ObserveCycle(e.now().Sub(start))
	e.record(ctx, res, err)
	return res, err
}

func (e *Engine) evaluate(ctx context.Context, block uint64) (Result, error) {
	res := Result{Block: block}
	log := e.logger.With(zap.Uint64("block", block))

	opp := e.best()
	if opp == nil {
		res.Outcome = model.OutcomeNoOpportunity
		log.Info("no opportunity")
		return res, nil
	}
	res.Opportunity = opp
	res.Direction = directionFor(opp.PriceV2, opp.PriceV3)
	log = log.With(
		zap.String("asset", opp.Asset.Address.Hex()),
		zap.String("symbol", opp.Asset.Symbol),
		zap.String("profit", opp.Profit.String()),
		zap.Stringer("direction", res.Direction),
	)
	log.Info("opportunity found", zap.String("price_v2", opp.PriceV2.String()), zap.String("price_v3", opp.PriceV3.String()))

	// Sized at the higher price while the gas gate below uses the linear profit estimate.
	res.AmountOther = pricing.CalculateAmountOther(decimal.Max(opp.PriceV2, opp.PriceV3), e.cfg.FundingAmount, opp.Asset.Decimals)
	fundingWei := e.cfg.FundingAmount.Shift(int32(e.cfg.BaseDecimals)).Truncate(0).BigInt()

	balance, err := e.funding.Balance(ctx)
	if err != nil {
		return res, fmt.Errorf("funding balance: %w", err)
	}
	if balance.Cmp(fundingWei) < 0 {
		res.Outcome = model.OutcomeInsufficientFunds
		log.Warn("insufficient funds", zap.String("balance_wei", balance.String()), zap.String("required_wei", fundingWei.String()))
		return res, nil
	}

	req := model.ExecutionRequest{
		OtherToken:         opp.Asset.Address,
		AmountOtherMinimum: res.AmountOther,
		ProfitMinimum:      new(big.Int),
		Fee:                opp.Fee,
		Deadline:           e.now().Add(e.cfg.Deadline).Unix(),
	}
	estimate, err := e.settlement.EstimateGas(ctx, res.Direction, req, fundingWei)
	if err != nil {
		return res, fmt.Errorf("estimate gas: %w", err)
	}

	prices, err := e.oracle.GasPrices(ctx)
	if err != nil {
		return res, fmt.Errorf("gas prices: %w", err)
	}
	tierGwei, err := prices.Get(e.cfg.GasTier)
	if err != nil {
		return res, fmt.Errorf("gas tier: %w", err)
	}
	gasPriceWei := gas.GweiToWei(tierGwei)
	gasCostWei := new(big.Int).Mul(gasPriceWei, new(big.Int).SetUint64(estimate))
	res.GasCost = decimal.NewFromBigInt(gasCostWei, -nativeDecimals)
	res.Expected = opp.Profit.Mul(e.cfg.FundingAmount)
	log = log.With(
		zap.String("gas_gwei", tierGwei.String()),
		zap.Uint64("gas_estimate", estimate),
		zap.String("gas_cost", res.GasCost.String()),
		zap.String("expected", res.Expected.String()),
	)

	if !res.Expected.GreaterThan(res.GasCost) {
		res.Outcome = model.OutcomeBelowGasCost
		log.Info("below gas cost, giving up")
		return res, nil
	}

	req.ProfitMinimum = gasCostWei
	gasLimit := decimal.NewFromInt(int64(estimate)).Mul(e.cfg.GasLimitMultiplier).Ceil().BigInt().Uint64()

	if e.cfg.DryRun {
		res.Outcome = model.OutcomeDryRun
		log.Info("dry run, not submitting", zap.Uint64("gas_limit", gasLimit))
		return res, nil
	}

	hash, err := e.settlement.Submit(ctx, res.Direction, req, fundingWei, gasPriceWei, gasLimit)
	if err != nil {
		return res, fmt.Errorf("submit %s: %w", res.Direction, err)
	}
	res.TxHash = hash
	res.Outcome = model.OutcomeExecuted
	log.Info("arbitrage submitted", zap.String("tx", hash.Hex()), zap.Uint64("gas_limit", gasLimit))
	return res, nil
}

// best is a linear scan with a running maximum starting at zero.
func (e *Engine) best() *model.Opportunity {
	var best *model.Opportunity
	maxProfit := decimal.Zero
	for _, asset := range e.cfg.Assets {
		snap, ok := e.prices.Snapshot(asset)
		if !ok || !snap.Complete() || !snap.HasMeta {
			continue
		}
		profit := pricing.CalculateProfit(snap.V2.Price, snap.V3.Price, snap.Fee)
		if !profit.GreaterThan(maxProfit) {
			continue
		}
		maxProfit = profit
		best = &model.Opportunity{
			Asset:   model.TrackedAsset{Address: asset, Symbol: snap.Meta.Symbol, Decimals: snap.Meta.Decimals},
			PriceV2: snap.V2.Price,
			PriceV3: snap.V3.Price,
			Fee:     snap.Fee,
			Profit:  profit,
		}
	}
	f, _ := maxProfit.Float64()
	e.metrics.RecordBestProfit(f)
	return best
}

// directionFor sells base where it buys the most of the other asset.
func directionFor(priceV2, priceV3 decimal.Decimal) model.Direction {
	if priceV2.GreaterThan(priceV3) {
		return model.DirectionV2ToV3
	}
	return model.DirectionV3ToV2
}

func (e *Engine) record(ctx context.Context, res Result, err error) {
	e.metrics.RecordDecision(res.Outcome)
	d := model.Decision{
		BlockNumber: res.Block,
		Outcome:     res.Outcome,
		DecidedAt:   e.now().UTC(),
	}
	if res.Opportunity != nil {
		d.Asset = res.Opportunity.Asset.Address.Hex()
		d.Symbol = res.Opportunity.Asset.Symbol
		d.Direction = res.Direction.String()
		d.Profit = res.Opportunity.Profit.String()
	}
	if res.AmountOther != nil {
		d.AmountOther = res.AmountOther.String()
	}
	if !res.GasCost.IsZero() {
		d.GasCost = res.GasCost.String()
		d.Expected = res.Expected.String()
	}
	if res.TxHash != (common.Hash{}) {
		d.TxHash = res.TxHash.Hex()
	}
	if err != nil {
		d.Error = err.Error()
	}
	if jerr := e.journal.PutDecisions(ctx, []model.Decision{d}); jerr != nil {
		e.logger.Warn("journal write failed", zap.Uint64("block", res.Block), zap.Error(jerr))
	}
}
