package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Caller performs read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// LogSubscriber opens log subscriptions.
type LogSubscriber interface {
	SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

// LogFilterer reads historical logs.
type LogFilterer interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
}

// HeadSubscriber opens new-head subscriptions.
type HeadSubscriber interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
}

// Transactor estimates, prices and broadcasts transactions.
type Transactor interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// FeeSource exposes the gas pricing RPCs.
type FeeSource interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	FeeHistory(ctx context.Context, blockCount uint64, percentiles []float64) (*ethereum.FeeHistory, error)
}

// BalanceReader reads native balances.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
}

var (
	_ Caller         = (*Client)(nil)
	_ LogSubscriber  = (*Client)(nil)
	_ LogFilterer    = (*Client)(nil)
	_ HeadSubscriber = (*Client)(nil)
	_ Transactor     = (*Client)(nil)
	_ FeeSource      = (*Client)(nil)
	_ BalanceReader  = (*Client)(nil)
)
