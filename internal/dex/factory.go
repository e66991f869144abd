package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"dexArb/internal/chain"
	"dexArb/internal/model"
)

// ErrPoolNotFound is returned when a factory has no pair or pool for an asset.
var ErrPoolNotFound = errors.New("pool not found")

// DefaultFeeTiers is the v3 lookup order: 0.05% then 0.3%.
var DefaultFeeTiers = []uint32{500, 3000}

// Resolver finds the v2 pair and the v3 pool that quote an asset against the base asset.
type Resolver struct {
	caller    chain.Caller
	factoryV2 common.Address
	factoryV3 common.Address
	base      common.Address
	feeTiers  []uint32
}

type ResolverConfig struct {
	FactoryV2 common.Address
	FactoryV3 common.Address
	Base      common.Address
	FeeTiers  []uint32
}

func NewResolver(caller chain.Caller, cfg ResolverConfig) *Resolver {
	tiers := cfg.FeeTiers
	if len(tiers) == 0 {
		tiers = DefaultFeeTiers
	}
	return &Resolver{
		caller:    caller,
		factoryV2: cfg.FactoryV2,
		factoryV3: cfg.FactoryV3,
		base:      cfg.Base,
		feeTiers:  append([]uint32(nil), tiers...),
	}
}

// Base returns the base asset address.
func (r *Resolver) Base() common.Address {
	return r.base
}

// PairV2 returns the v2 pair address, or the zero address when none exists.
func (r *Resolver) PairV2(ctx context.Context, asset common.Address) (common.Address, error) {
	parsed, err := V2FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse v2 factory abi: %w", err)
	}
	values, err := callMethod(ctx, r.caller, r.factoryV2, parsed, "getPair", r.base, asset)
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(values[0])
}

// PoolV3 tries the configured fee tiers in order and returns the first existing pool.
// The zero address is returned when no tier has a pool.
func (r *Resolver) PoolV3(ctx context.Context, asset common.Address) (common.Address, uint32, error) {
	parsed, err := V3FactoryABI()
	if err != nil {
		return common.Address{}, 0, fmt.Errorf("parse v3 factory abi: %w", err)
	}
	for _, tier := range r.feeTiers {
		values, err := callMethod(ctx, r.caller, r.factoryV3, parsed, "getPool", r.base, asset, new(big.Int).SetUint64(uint64(tier)))
		if err != nil {
			return common.Address{}, 0, err
		}
		pool, err := asAddress(values[0])
		if err != nil {
			return common.Address{}, 0, err
		}
		if pool != (common.Address{}) {
			return pool, tier, nil
		}
	}
	return common.Address{}, 0, nil
}

// Resolve returns both venue pools with their orientation. The v3 fee is read from the pool.
func (r *Resolver) Resolve(ctx context.Context, asset common.Address) (model.VenuePool, model.VenuePool, error) {
	var v2, v3 model.VenuePool

	pair, err := r.PairV2(ctx, asset)
	if err != nil {
		return v2, v3, fmt.Errorf("get pair: %w", err)
	}
	if pair == (common.Address{}) {
		return v2, v3, fmt.Errorf("%w: v2 pair for %s", ErrPoolNotFound, asset.Hex())
	}
	pool, _, err := r.PoolV3(ctx, asset)
	if err != nil {
		return v2, v3, fmt.Errorf("get pool: %w", err)
	}
	if pool == (common.Address{}) {
		return v2, v3, fmt.Errorf("%w: v3 pool for %s", ErrPoolNotFound, asset.Hex())
	}

	pairABI, err := V2PairABI()
	if err != nil {
		return v2, v3, fmt.Errorf("parse pair abi: %w", err)
	}
	poolABI, err := V3PoolABI()
	if err != nil {
		return v2, v3, fmt.Errorf("parse pool abi: %w", err)
	}

	token0, err := r.readToken0(ctx, pair, pairABI)
	if err != nil {
		return v2, v3, fmt.Errorf("pair token0: %w", err)
	}
	v2 = model.VenuePool{
		Venue:        model.VenueV2,
		Asset:        asset,
		Address:      pair,
		Token0:       token0,
		BaseIsToken0: token0 == r.base,
	}

	token0, err = r.readToken0(ctx, pool, poolABI)
	if err != nil {
		return v2, v3, fmt.Errorf("pool token0: %w", err)
	}
	values, err := callMethod(ctx, r.caller, pool, poolABI, "fee")
	if err != nil {
		return v2, v3, fmt.Errorf("pool fee: %w", err)
	}
	fee, err := asBigInt(values[0])
	if err != nil {
		return v2, v3, fmt.Errorf("pool fee: %w", err)
	}
	v3 = model.VenuePool{
		Venue:        model.VenueV3,
		Asset:        asset,
		Address:      pool,
		Token0:       token0,
		Fee:          uint32(fee.Uint64()),
		BaseIsToken0: token0 == r.base,
	}
	return v2, v3, nil
}

func (r *Resolver) readToken0(ctx context.Context, address common.Address, parsed abi.ABI) (common.Address, error) {
	values, err := callMethod(ctx, r.caller, address, parsed, "token0")
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(values[0])
}
