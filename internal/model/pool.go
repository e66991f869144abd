package model

import "github.com/ethereum/go-ethereum/common"

// Venue identifies one of the two liquidity sources.
type Venue string

const (
	// VenueV2 is the constant-product venue with a fixed 0.3% fee.
	VenueV2 Venue = "v2"
	// VenueV3 is the concentrated-liquidity venue with per-pool fee tiers.
	VenueV3 Venue = "v3"
)

// VenuePool is a resolved pair (v2) or pool (v3) for a tracked asset.
type VenuePool struct {
	Venue        Venue          `json:"venue"`
	Asset        common.Address `json:"asset"`
	Address      common.Address `json:"address"`
	Token0       common.Address `json:"token0"`
	Fee          uint32         `json:"fee,omitempty"`
	BaseIsToken0 bool           `json:"base_is_token0"`
}
