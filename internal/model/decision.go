package model

import "time"

// Outcome classifies how a decision cycle ended.
type Outcome string

const (
	OutcomeNoOpportunity     Outcome = "no_opportunity"
	OutcomeInsufficientFunds Outcome = "insufficient_funds"
	OutcomeBelowGasCost      Outcome = "below_gas_cost"
	OutcomeExecuted          Outcome = "executed"
	OutcomeDryRun            Outcome = "dry_run"
	OutcomeSkipped           Outcome = "skipped"
	OutcomeFailed            Outcome = "failed"
)

// Decision is the journal record written for every decision cycle.
// Decimal quantities are kept as strings to preserve precision across sinks.
type Decision struct {
	BlockNumber uint64    `json:"block_number"`
	Outcome     Outcome   `json:"outcome"`
	Asset       string    `json:"asset,omitempty"`
	Symbol      string    `json:"symbol,omitempty"`
	Direction   string    `json:"direction,omitempty"`
	Profit      string    `json:"profit,omitempty"`
	Expected    string    `json:"expected,omitempty"`
	GasCost     string    `json:"gas_cost,omitempty"`
	AmountOther string    `json:"amount_other,omitempty"`
	TxHash      string    `json:"tx_hash,omitempty"`
	Error       string    `json:"error,omitempty"`
	DecidedAt   time.Time `json:"decided_at"`
}
