package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dexArb/internal/model"
)

// V2SwapTopic returns the topic0 of the v2 pair Swap event.
func V2SwapTopic() (common.Hash, error) {
	parsed, err := V2PairABI()
	if err != nil {
		return common.Hash{}, err
	}
	return parsed.Events["Swap"].ID, nil
}

// V3SwapTopic returns the topic0 of the v3 pool Swap event.
func V3SwapTopic() (common.Hash, error) {
	parsed, err := V3PoolABI()
	if err != nil {
		return common.Hash{}, err
	}
	return parsed.Events["Swap"].ID, nil
}

// DecodeV2Swap decodes a v2 pair Swap log.
func DecodeV2Swap(log types.Log) (model.V2SwapEvent, error) {
	parsed, err := V2PairABI()
	if err != nil {
		return model.V2SwapEvent{}, fmt.Errorf("parse pair abi: %w", err)
	}
	values, err := unpackSwap(parsed.Events["Swap"], log)
	if err != nil {
		return model.V2SwapEvent{}, err
	}
	if len(values) != 4 {
		return model.V2SwapEvent{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amounts := make([]*big.Int, 4)
	for i, v := range values {
		n, err := asBigInt(v)
		if err != nil {
			return model.V2SwapEvent{}, err
		}
		amounts[i] = n
	}

	return model.V2SwapEvent{
		Amount0In:   amounts[0],
		Amount1In:   amounts[1],
		Amount0Out:  amounts[2],
		Amount1Out:  amounts[3],
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
	}, nil
}

// DecodeV3Swap decodes a v3 pool Swap log.
func DecodeV3Swap(log types.Log) (model.V3SwapEvent, error) {
	parsed, err := V3PoolABI()
	if err != nil {
		return model.V3SwapEvent{}, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := unpackSwap(parsed.Events["Swap"], log)
	if err != nil {
		return model.V3SwapEvent{}, err
	}
	if len(values) != 5 {
		return model.V3SwapEvent{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.V3SwapEvent{}, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.V3SwapEvent{}, err
	}
	sqrtPrice, err := asBigInt(values[2])
	if err != nil {
		return model.V3SwapEvent{}, err
	}
	liquidity, err := asBigInt(values[3])
	if err != nil {
		return model.V3SwapEvent{}, err
	}
	tickInt, err := asBigInt(values[4])
	if err != nil {
		return model.V3SwapEvent{}, err
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.V3SwapEvent{}, err
	}

	return model.V3SwapEvent{
		Amount0:      amount0,
		Amount1:      amount1,
		SqrtPriceX96: sqrtPrice,
		Liquidity:    liquidity,
		Tick:         tick,
		BlockNumber:  log.BlockNumber,
		TxHash:       log.TxHash.Hex(),
	}, nil
}

func unpackSwap(event abi.Event, log types.Log) ([]interface{}, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("log has no topics")
	}
	if log.Topics[0] != event.ID {
		return nil, fmt.Errorf("unexpected topic0: %s", log.Topics[0].Hex())
	}
	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
