package settlement

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dexArb/internal/chain"
	"dexArb/internal/model"
)

// Signer is the funding identity used for estimation and submission.
type Signer interface {
	Address() common.Address
	Sign(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Contract drives the two payable entry points of the settlement contract.
type Contract struct {
	address    common.Address
	chainID    *big.Int
	transactor chain.Transactor
	signer     Signer
}

func NewContract(address common.Address, chainID *big.Int, transactor chain.Transactor, signer Signer) *Contract {
	return &Contract{
		address:    address,
		chainID:    new(big.Int).Set(chainID),
		transactor: transactor,
		signer:     signer,
	}
}

// params mirrors the contract tuple; abi matches fields by camel-cased name.
type params struct {
	OtherToken         common.Address
	AmountOtherMinimum *big.Int
	ProfitMinimum      *big.Int
	Fee                *big.Int
	Deadline           *big.Int
}

// Method returns the entry point name for a direction.
func Method(direction model.Direction) (string, error) {
	switch direction {
	case model.DirectionV2ToV3:
		return "sushiswapToUniswap", nil
	case model.DirectionV3ToV2:
		return "uniswapToSushiswap", nil
	default:
		return "", fmt.Errorf("unknown direction %d", int(direction))
	}
}

// Calldata packs the entry point call for a direction.
func Calldata(direction model.Direction, req model.ExecutionRequest) ([]byte, error) {
	method, err := Method(direction)
	if err != nil {
		return nil, err
	}
	parsed, err := ArbitrageABI()
	if err != nil {
		return nil, fmt.Errorf("parse settlement abi: %w", err)
	}
	p := params{
		OtherToken:         req.OtherToken,
		AmountOtherMinimum: orZero(req.AmountOtherMinimum),
		ProfitMinimum:      orZero(req.ProfitMinimum),
		Fee:                new(big.Int).SetUint64(uint64(req.Fee)),
		Deadline:           big.NewInt(req.Deadline),
	}
	data, err := parsed.Pack(method, p)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}

// EstimateGas estimates the entry point call with value attached.
func (c *Contract) EstimateGas(ctx context.Context, direction model.Direction, req model.ExecutionRequest, value *big.Int) (uint64, error) {
	data, err := Calldata(direction, req)
	if err != nil {
		return 0, err
	}
	msg := ethereum.CallMsg{
		From:  c.signer.Address(),
		To:    &c.address,
		Value: orZero(value),
		Data:  data,
	}
	gas, err := c.transactor.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("estimate %s: %w", direction, err)
	}
	return gas, nil
}

// Submit signs and broadcasts a legacy transaction and returns its hash.
func (c *Contract) Submit(ctx context.Context, direction model.Direction, req model.ExecutionRequest, value, gasPrice *big.Int, gasLimit uint64) (common.Hash, error) {
	data, err := Calldata(direction, req)
	if err != nil {
		return common.Hash{}, err
	}
	nonce, err := c.transactor.PendingNonceAt(ctx, c.signer.Address())
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.address,
		Value:    orZero(value),
		Gas:      gasLimit,
		GasPrice: orZero(gasPrice),
		Data:     data,
	})
	signed, err := c.signer.Sign(tx, c.chainID)
	if err != nil {
		return common.Hash{}, err
	}
	if err := c.transactor.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send %s: %w", direction, err)
	}
	return signed.Hash(), nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
