package model

import "github.com/ethereum/go-ethereum/common"

// TrackedAsset is a non-base token eligible for arbitrage against the base asset.
type TrackedAsset struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// TokenMeta captures ERC20 metadata.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
}
