package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Direction selects one of the two settlement entry points.
type Direction int

const (
	// DirectionV2ToV3 sells base on v2 and buys it back on v3. Taken when the v2 price is higher.
	DirectionV2ToV3 Direction = iota
	// DirectionV3ToV2 sells base on v3 and buys it back on v2.
	DirectionV3ToV2
)

func (d Direction) String() string {
	switch d {
	case DirectionV2ToV3:
		return "v2_to_v3"
	case DirectionV3ToV2:
		return "v3_to_v2"
	default:
		return "unknown"
	}
}

// ExecutionRequest mirrors the settlement contract's parameter tuple.
type ExecutionRequest struct {
	OtherToken         common.Address
	AmountOtherMinimum *big.Int
	ProfitMinimum      *big.Int
	Fee                uint32
	Deadline           int64
}
