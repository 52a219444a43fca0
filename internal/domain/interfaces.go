package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the application layer depends on them.

// SettlementFilter selects settlements for range queries. Environment is
// always required; Status and MerchantID narrow the set when non-empty.
type SettlementFilter struct {
	Environment Environment
	Status      SettlementStatus
	MerchantID  string
}

// SettlementStore is the durable, keyed store of settlement records.
// UpdateStatus is the sole path that may write a settlement's status.
type SettlementStore interface {
	InsertSettlement(ctx context.Context, s Settlement) error
	GetSettlement(ctx context.Context, id string) (*Settlement, error)

	// UpdateStatus is a compare-and-swap: it writes next (and note, when
	// non-empty) only if the record's current status equals expected, and
	// appends the audit entry in the same transaction. applied=false with a
	// nil error means the precondition failed and nothing was written.
	UpdateStatus(ctx context.Context, id string, expected, next SettlementStatus, note, actor string) (applied bool, err error)

	// ListSettlements returns one page ordered by created_at DESC, id DESC,
	// plus the total count of the filtered set.
	ListSettlements(ctx context.Context, f SettlementFilter, offset, limit int) ([]Settlement, int, error)

	// SumSettlements sums amounts over the merchant's settlements in the
	// given statuses, within one environment.
	SumSettlements(ctx context.Context, merchantID string, env Environment, statuses ...SettlementStatus) (decimal.Decimal, error)

	// AuditTrail returns the append-only transition log for a settlement,
	// oldest first.
	AuditTrail(ctx context.Context, settlementID string) ([]AuditEntry, error)
}

// TransactionSource is the read boundary to the external transaction ledger.
// The settlement core only ever sums success transactions through it.
type TransactionSource interface {
	SumCredits(ctx context.Context, merchantID string, env Environment) (decimal.Decimal, error)
	ListTransactions(ctx context.Context, merchantID string, env Environment, status TransactionStatus, offset, limit int) ([]Transaction, int, error)
}
