package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// VenuePriceEntry is the latest observation of one asset on one venue.
// Price is quoted as asset units per base unit and is never negative.
type VenuePriceEntry struct {
	Price     decimal.Decimal
	Block     uint64
	UpdatedAt time.Time
}

// Opportunity is a per-scan candidate with both venue prices and the v3 fee known.
type Opportunity struct {
	Asset   TrackedAsset
	PriceV2 decimal.Decimal
	PriceV3 decimal.Decimal
	Fee     uint32
	Profit  decimal.Decimal
}
