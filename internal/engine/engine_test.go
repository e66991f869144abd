package engine

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dexArb/internal/gas"
	"dexArb/internal/lock"
	"dexArb/internal/model"
	"dexArb/internal/state"
)

var (
	usdc    = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	dai     = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	funder  = common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
	txHash  = common.HexToHash("0xfeed")
	fixedTS = time.Unix(1_700_000_000, 0)
)

type estimateCall struct {
	direction model.Direction
	req       model.ExecutionRequest
	value     *big.Int
}

type submitCall struct {
	estimateCall
	gasPrice *big.Int
	gasLimit uint64
}

type fakeSettlement struct {
	mu          sync.Mutex
	estimate    uint64
	estimateErr error
	submitErr   error
	gate        chan struct{}
	entered     chan struct{}
	estimates   []estimateCall
	submits     []submitCall
}

func (f *fakeSettlement) EstimateGas(_ context.Context, d model.Direction, req model.ExecutionRequest, value *big.Int) (uint64, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimates = append(f.estimates, estimateCall{d, cloneReq(req), value})
	return f.estimate, f.estimateErr
}

func (f *fakeSettlement) Submit(_ context.Context, d model.Direction, req model.ExecutionRequest, value, gasPrice *big.Int, gasLimit uint64) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return common.Hash{}, f.submitErr
	}
	f.submits = append(f.submits, submitCall{estimateCall{d, cloneReq(req), value}, gasPrice, gasLimit})
	return txHash, nil
}

func (f *fakeSettlement) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.estimates), len(f.submits)
}

func cloneReq(req model.ExecutionRequest) model.ExecutionRequest {
	req.AmountOtherMinimum = new(big.Int).Set(req.AmountOtherMinimum)
	req.ProfitMinimum = new(big.Int).Set(req.ProfitMinimum)
	return req
}

type fakeOracle struct {
	prices gas.Prices
	err    error
	calls  int
}

func (f *fakeOracle) GasPrices(context.Context) (gas.Prices, error) {
	f.calls++
	return f.prices, f.err
}

type fakeFunding struct {
	balance *big.Int
	err     error
	calls   int
}

func (f *fakeFunding) Address() common.Address { return funder }

func (f *fakeFunding) Balance(context.Context) (*big.Int, error) {
	f.calls++
	return f.balance, f.err
}

type recordingJournal struct {
	mu        sync.Mutex
	decisions []model.Decision
}

func (r *recordingJournal) PutDecisions(_ context.Context, d []model.Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, d...)
	return nil
}

// stallingJournal holds skipped decisions until release closes.
type stallingJournal struct {
	recordingJournal
	release chan struct{}
}

func (s *stallingJournal) PutDecisions(ctx context.Context, d []model.Decision) error {
	if len(d) > 0 && d[0].Outcome == model.OutcomeSkipped {
		<-s.release
	}
	return s.recordingJournal.PutDecisions(ctx, d)
}

func (r *recordingJournal) all() []model.Decision {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Decision(nil), r.decisions...)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func populate(ps *state.PriceState, asset common.Address, symbol string, decimals uint8, v2, v3 string, fee uint32) {
	ps.SetMeta(asset, model.TokenMeta{Address: asset.Hex(), Symbol: symbol, Decimals: decimals})
	ps.SetPrice(asset, model.VenueV2, model.VenuePriceEntry{Price: dec(v2), Block: 1})
	ps.SetPrice(asset, model.VenueV3, model.VenuePriceEntry{Price: dec(v3), Block: 1})
	ps.SetFeeV3(asset, fee)
}

type fixture struct {
	state      *state.PriceState
	settlement *fakeSettlement
	oracle     *fakeOracle
	funding    *fakeFunding
	journal    *recordingJournal
	cfg        Config
}

func newFixture() *fixture {
	return &fixture{
		state:      state.NewPriceState(),
		settlement: &fakeSettlement{estimate: 250_000},
		oracle: &fakeOracle{prices: gas.Prices{
			Low: dec("10"), Standard: dec("20"), Fast: dec("30"), Instant: dec("40"),
		}},
		funding: &fakeFunding{balance: eth(20)},
		journal: &recordingJournal{},
		cfg: Config{
			Assets:        []common.Address{usdc, dai},
			FundingAmount: dec("10"),
		},
	}
}

func (f *fixture) engine(opts ...Option) *Engine {
	opts = append([]Option{
		WithJournal(f.journal),
		WithLogger(zap.NewNop()),
		WithClock(func() time.Time { return fixedTS }),
	}, opts...)
	return New(f.cfg, f.state, f.settlement, f.oracle, f.funding, opts...)
}

func TestOnBlockSelectsBestAssetAndSubmits(t *testing.T) {
	f := newFixture()
	populate(f.state, usdc, "USDC", 6, "5050.65", "5000.17", 500)
	populate(f.state, dai, "DAI", 18, "5020", "5000", 500)

	res, err := f.engine().OnBlock(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeExecuted, res.Outcome)
	require.NotNil(t, res.Opportunity)
	assert.Equal(t, usdc, res.Opportunity.Asset.Address)
	assert.Equal(t, model.DirectionV2ToV3, res.Direction)
	assert.Equal(t, txHash, res.TxHash)

	require.Len(t, f.settlement.estimates, 1)
	est := f.settlement.estimates[0]
	assert.Equal(t, model.DirectionV2ToV3, est.direction)
	assert.Equal(t, int64(0), est.req.ProfitMinimum.Int64())
	assert.Equal(t, eth(10).String(), est.value.String())

	require.Len(t, f.settlement.submits, 1)
	sub := f.settlement.submits[0]
	assert.Equal(t, model.DirectionV2ToV3, sub.direction)
	assert.Equal(t, usdc, sub.req.OtherToken)
	assert.Equal(t, "50506500000", sub.req.AmountOtherMinimum.String())
	assert.Equal(t, "7500000000000000", sub.req.ProfitMinimum.String())
	assert.Equal(t, uint32(500), sub.req.Fee)
	assert.Equal(t, fixedTS.Unix()+60, sub.req.Deadline)
	assert.Equal(t, eth(10).String(), sub.value.String())
	assert.Equal(t, "30000000000", sub.gasPrice.String())
	assert.Equal(t, uint64(300_000), sub.gasLimit)

	assert.True(t, res.GasCost.Equal(dec("0.0075")), res.GasCost.String())
	assert.True(t, res.Expected.GreaterThan(res.GasCost))

	decisions := f.journal.all()
	require.Len(t, decisions, 1)
	assert.Equal(t, model.OutcomeExecuted, decisions[0].Outcome)
	assert.Equal(t, "USDC", decisions[0].Symbol)
	assert.Equal(t, "v2_to_v3", decisions[0].Direction)
	assert.Equal(t, txHash.Hex(), decisions[0].TxHash)
	assert.Equal(t, uint64(42), decisions[0].BlockNumber)
}

func TestOnBlockDirectionFollowsCheaperVenue(t *testing.T) {
	f := newFixture()
	populate(f.state, usdc, "USDC", 6, "5000.17", "5050.65", 500)

	res, err := f.engine().OnBlock(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.DirectionV3ToV2, res.Direction)
	require.Len(t, f.settlement.submits, 1)
	assert.Equal(t, model.DirectionV3ToV2, f.settlement.submits[0].direction)
	assert.Equal(t, "50506500000", f.settlement.submits[0].req.AmountOtherMinimum.String())
}

func TestOnBlockGasGate(t *testing.T) {
	f := newFixture()
	f.settlement.estimate = 3_000_000
	populate(f.state, usdc, "USDC", 6, "5050.65", "5000.17", 500)

	res, err := f.engine().OnBlock(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeBelowGasCost, res.Outcome)
	assert.True(t, res.GasCost.Equal(dec("0.09")), res.GasCost.String())

	estimates, submits := f.settlement.counts()
	assert.Equal(t, 1, estimates)
	assert.Equal(t, 0, submits)
	assert.Equal(t, 1, f.oracle.calls)
}

func TestOnBlockGasGateIsStrict(t *testing.T) {
	f := newFixture()
	f.settlement.estimate = 1_000_000
	f.oracle.prices.Fast = dec("9940")
	// 2 * 0.997 - 1 = 0.994 per base unit, 9.94 over the funding amount.
	populate(f.state, usdc, "USDC", 6, "2", "1", 0)

	res, err := f.engine().OnBlock(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, res.Expected.Equal(dec("9.94")), res.Expected.String())
	assert.True(t, res.GasCost.Equal(res.Expected), res.GasCost.String())
	assert.Equal(t, model.OutcomeBelowGasCost, res.Outcome)

	_, submits := f.settlement.counts()
	assert.Equal(t, 0, submits)
	require.Len(t, f.journal.all(), 1)
	assert.Equal(t, model.OutcomeBelowGasCost, f.journal.all()[0].Outcome)
}

func TestOnBlockUnknownGasTier(t *testing.T) {
	f := newFixture()
	f.cfg.GasTier = gas.Tier("turbo")
	populate(f.state, usdc, "USDC", 6, "5050.65", "5000.17", 500)

	_, err := f.engine().OnBlock(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorContains(t, err, "gas tier")
	assert.ErrorContains(t, err, "turbo")
	_, submits := f.settlement.counts()
	assert.Equal(t, 0, submits)
}

func TestOnBlockNoOpportunity(t *testing.T) {
	f := newFixture()
	populate(f.state, usdc, "USDC", 6, "5000.17", "5010.65", 500)
	// dai lacks the fee and must be skipped.
	f.state.SetPrice(dai, model.VenueV2, model.VenuePriceEntry{Price: dec("6000")})
	f.state.SetPrice(dai, model.VenueV3, model.VenuePriceEntry{Price: dec("5000")})

	res, err := f.engine().OnBlock(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNoOpportunity, res.Outcome)
	assert.Nil(t, res.Opportunity)
	assert.Equal(t, 0, f.funding.calls)
	assert.Equal(t, 0, f.oracle.calls)
	estimates, submits := f.settlement.counts()
	assert.Zero(t, estimates+submits)

	decisions := f.journal.all()
	require.Len(t, decisions, 1)
	assert.Equal(t, model.OutcomeNoOpportunity, decisions[0].Outcome)
	assert.Empty(t, decisions[0].Asset)
}

func TestOnBlockTieKeepsFirstAsset(t *testing.T) {
	f := newFixture()
	populate(f.state, usdc, "USDC", 18, "5050.65", "5000.17", 500)
	populate(f.state, dai, "DAI", 18, "5050.65", "5000.17", 500)

	res, err := f.engine().OnBlock(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, usdc, res.Opportunity.Asset.Address)

	f.cfg.Assets = []common.Address{dai, usdc}
	res, err = f.engine().OnBlock(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, dai, res.Opportunity.Asset.Address)
}

func TestOnBlockInsufficientFunds(t *testing.T) {
	f := newFixture()
	f.funding.balance = eth(1)
	populate(f.state, usdc, "USDC", 6, "5050.65", "5000.17", 500)

	res, err := f.engine().OnBlock(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeInsufficientFunds, res.Outcome)
	estimates, submits := f.settlement.counts()
	assert.Zero(t, estimates+submits)
}

func TestOnBlockCollaboratorFailures(t *testing.T) {
	boom := errors.New("execution reverted")

	t.Run("estimate", func(t *testing.T) {
		f := newFixture()
		f.settlement.estimateErr = boom
		populate(f.state, usdc, "USDC", 6, "5050.65", "5000.17", 500)

		res, err := f.engine().OnBlock(context.Background(), 1)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, model.OutcomeFailed, res.Outcome)
		_, submits := f.settlement.counts()
		assert.Zero(t, submits)

		decisions := f.journal.all()
		require.Len(t, decisions, 1)
		assert.Equal(t, model.OutcomeFailed, decisions[0].Outcome)
		assert.Contains(t, decisions[0].Error, "estimate gas")
	})

	t.Run("submit", func(t *testing.T) {
		f := newFixture()
		f.settlement.submitErr = boom
		populate(f.state, usdc, "USDC", 6, "5050.65", "5000.17", 500)

		_, err := f.engine().OnBlock(context.Background(), 1)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("gas price", func(t *testing.T) {
		f := newFixture()
		f.oracle.err = boom
		populate(f.state, usdc, "USDC", 6, "5050.65", "5000.17", 500)

		_, err := f.engine().OnBlock(context.Background(), 1)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("balance", func(t *testing.T) {
		f := newFixture()
		f.funding.err = boom
		populate(f.state, usdc, "USDC", 6, "5050.65", "5000.17", 500)

		_, err := f.engine().OnBlock(context.Background(), 1)
		assert.ErrorIs(t, err, boom)
	})
}

func TestOnBlockIsIdempotent(t *testing.T) {
	f := newFixture()
	f.cfg.DryRun = true
	populate(f.state, usdc, "USDC", 6, "5050.65", "5000.17", 500)
	e := f.engine()

	first, err := e.OnBlock(context.Background(), 7)
	require.NoError(t, err)
	second, err := e.OnBlock(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, first.Outcome, second.Outcome)
	assert.Equal(t, first.Direction, second.Direction)
	assert.True(t, first.Opportunity.Profit.Equal(second.Opportunity.Profit))
	assert.Equal(t, first.AmountOther, second.AmountOther)
	require.Len(t, f.settlement.estimates, 2)
	assert.Equal(t, f.settlement.estimates[0], f.settlement.estimates[1])
}

func TestOnBlockDryRunNeverSubmits(t *testing.T) {
	f := newFixture()
	f.cfg.DryRun = true
	populate(f.state, usdc, "USDC", 6, "5050.65", "5000.17", 500)

	res, err := f.engine().OnBlock(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeDryRun, res.Outcome)
	estimates, submits := f.settlement.counts()
	assert.Equal(t, 1, estimates)
	assert.Equal(t, 0, submits)
}

func TestOnBlockUsesConfiguredGasTier(t *testing.T) {
	f := newFixture()
	f.cfg.GasTier = gas.TierInstant
	populate(f.state, usdc, "USDC", 6, "5050.65", "5000.17", 500)

	_, err := f.engine().OnBlock(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, f.settlement.submits, 1)
	assert.Equal(t, "40000000000", f.settlement.submits[0].gasPrice.String())
}

func TestRunDropsBlocksWhileCycleInFlight(t *testing.T) {
	f := newFixture()
	f.settlement.gate = make(chan struct{})
	f.settlement.entered = make(chan struct{}, 1)
	populate(f.state, usdc, "USDC", 6, "5050.65", "5000.17", 500)
	e := f.engine()

	heads := make(chan uint64)
	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background(), heads) }()

	heads <- 10
	<-f.settlement.entered
	heads <- 11

	require.Eventually(t, func() bool {
		for _, d := range f.journal.all() {
			if d.BlockNumber == 11 && d.Outcome == model.OutcomeSkipped {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	close(f.settlement.gate)
	close(heads)
	require.NoError(t, <-done)

	_, submits := f.settlement.counts()
	assert.Equal(t, 1, submits)
	outcomes := map[uint64]model.Outcome{}
	for _, d := range f.journal.all() {
		outcomes[d.BlockNumber] = d.Outcome
	}
	assert.Equal(t, model.OutcomeExecuted, outcomes[10])
	assert.Equal(t, model.OutcomeSkipped, outcomes[11])
}

func TestRunKeepsReadingHeadsWhileJournalStalls(t *testing.T) {
	f := newFixture()
	f.settlement.gate = make(chan struct{})
	f.settlement.entered = make(chan struct{}, 1)
	populate(f.state, usdc, "USDC", 6, "5050.65", "5000.17", 500)
	journal := &stallingJournal{release: make(chan struct{})}
	e := New(f.cfg, f.state, f.settlement, f.oracle, f.funding,
		WithJournal(journal), WithLogger(zap.NewNop()), WithClock(func() time.Time { return fixedTS }))

	heads := make(chan uint64)
	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background(), heads) }()

	heads <- 10
	<-f.settlement.entered
	for block := uint64(11); block <= 15; block++ {
		select {
		case heads <- block:
		case <-time.After(time.Second):
			t.Fatalf("head %d not read while the journal stalls", block)
		}
	}

	close(journal.release)
	close(f.settlement.gate)
	close(heads)
	require.NoError(t, <-done)

	outcomes := map[uint64]model.Outcome{}
	for _, d := range journal.all() {
		outcomes[d.BlockNumber] = d.Outcome
	}
	assert.Equal(t, model.OutcomeExecuted, outcomes[10])
	for block := uint64(11); block <= 15; block++ {
		assert.Equal(t, model.OutcomeSkipped, outcomes[block], "block %d", block)
	}
}

func TestRunSkipsWhenFundingLockHeld(t *testing.T) {
	f := newFixture()
	populate(f.state, usdc, "USDC", 6, "5050.65", "5000.17", 500)
	locker := lock.NewLocal()
	unlock, err := locker.Acquire(context.Background(), "arb:"+funder.Hex(), time.Minute)
	require.NoError(t, err)
	defer unlock()

	e := f.engine(WithLocker(locker))
	heads := make(chan uint64, 1)
	heads <- 5
	close(heads)
	require.NoError(t, e.Run(context.Background(), heads))

	decisions := f.journal.all()
	require.Len(t, decisions, 1)
	assert.Equal(t, model.OutcomeSkipped, decisions[0].Outcome)
	estimates, _ := f.settlement.counts()
	assert.Zero(t, estimates)
}
