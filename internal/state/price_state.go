package state

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"dexArb/internal/model"
)

// PriceState is the in-memory table of the latest observations per tracked asset.
// Every lookup reports absence through its bool result; absent values are never zero.
type PriceState struct {
	mu   sync.RWMutex
	data map[common.Address]*assetState
}

type assetState struct {
	meta    *model.TokenMeta
	v2      *model.VenuePriceEntry
	v3      *model.VenuePriceEntry
	fee     uint32
	feeSeen bool
}

func NewPriceState() *PriceState {
	return &PriceState{data: make(map[common.Address]*assetState)}
}

// entry must be called with mu held for writing.
func (s *PriceState) entry(address common.Address) *assetState {
	st, ok := s.data[address]
	if !ok {
		st = &assetState{}
		s.data[address] = st
	}
	return st
}

// SetMeta caches symbol and decimals. The first write wins.
func (s *PriceState) SetMeta(address common.Address, meta model.TokenMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.entry(address)
	if st.meta != nil {
		return
	}
	st.meta = &meta
}

func (s *PriceState) Symbol(address common.Address) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[address]
	if !ok || st.meta == nil {
		return "", false
	}
	return st.meta.Symbol, true
}

func (s *PriceState) Decimals(address common.Address) (uint8, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[address]
	if !ok || st.meta == nil {
		return 0, false
	}
	return st.meta.Decimals, true
}

// SetPrice overwrites the venue observation for an asset.
func (s *PriceState) SetPrice(address common.Address, venue model.Venue, entry model.VenuePriceEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.entry(address)
	switch venue {
	case model.VenueV2:
		st.v2 = &entry
	case model.VenueV3:
		st.v3 = &entry
	}
}

// ClearPrice forgets the venue observation so scans skip the asset until the next swap.
func (s *PriceState) ClearPrice(address common.Address, venue model.Venue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.data[address]
	if !ok {
		return
	}
	switch venue {
	case model.VenueV2:
		st.v2 = nil
	case model.VenueV3:
		st.v3 = nil
	}
}

// Entry returns a copy of the latest observation for an asset on a venue.
func (s *PriceState) Entry(address common.Address, venue model.Venue) (model.VenuePriceEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[address]
	if !ok {
		return model.VenuePriceEntry{}, false
	}
	var e *model.VenuePriceEntry
	switch venue {
	case model.VenueV2:
		e = st.v2
	case model.VenueV3:
		e = st.v3
	}
	if e == nil {
		return model.VenuePriceEntry{}, false
	}
	return *e, true
}

func (s *PriceState) PriceV2(address common.Address) (decimal.Decimal, bool) {
	e, ok := s.Entry(address, model.VenueV2)
	return e.Price, ok
}

func (s *PriceState) PriceV3(address common.Address) (decimal.Decimal, bool) {
	e, ok := s.Entry(address, model.VenueV3)
	return e.Price, ok
}

// SetFeeV3 records the fee tier of the v3 pool backing an asset.
func (s *PriceState) SetFeeV3(address common.Address, fee uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.entry(address)
	st.fee = fee
	st.feeSeen = true
}

func (s *PriceState) FeeV3(address common.Address) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[address]
	if !ok || !st.feeSeen {
		return 0, false
	}
	return st.fee, true
}

// Snapshot is a view of one asset taken under a single read lock.
type Snapshot struct {
	Meta    model.TokenMeta
	V2      model.VenuePriceEntry
	V3      model.VenuePriceEntry
	Fee     uint32
	HasMeta bool
	HasV2   bool
	HasV3   bool
	HasFee  bool
}

// Complete reports whether both venue prices and the v3 fee are known.
func (s Snapshot) Complete() bool {
	return s.HasV2 && s.HasV3 && s.HasFee
}

// Snapshot copies everything known about an asset. ok is false when nothing is.
func (s *PriceState) Snapshot(address common.Address) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[address]
	if !ok {
		return Snapshot{}, false
	}
	var snap Snapshot
	if st.meta != nil {
		snap.Meta = *st.meta
		snap.HasMeta = true
	}
	if st.v2 != nil {
		snap.V2 = *st.v2
		snap.HasV2 = true
	}
	if st.v3 != nil {
		snap.V3 = *st.v3
		snap.HasV3 = true
	}
	snap.Fee = st.fee
	snap.HasFee = st.feeSeen
	return snap, true
}
