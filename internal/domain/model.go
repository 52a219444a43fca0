// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing
// except the decimal type used for money.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Environment ────────────────────────────────────────────────────────────

// Environment is the isolation partition every ledger record belongs to.
// No balance, settlement, or transaction is ever computed across environments.
type Environment string

const (
	EnvSandbox Environment = "sandbox"
	EnvLive    Environment = "live"
)

// Valid reports whether e is one of the two known environments.
func (e Environment) Valid() bool {
	return e == EnvSandbox || e == EnvLive
}

// ─── Transactions (external feed, read-only to the ledger) ──────────────────

// TransactionStatus is the finalized state a transaction arrives with.
type TransactionStatus string

const (
	TxSuccess TransactionStatus = "success"
	TxPending TransactionStatus = "pending"
	TxFailed  TransactionStatus = "failed"
)

// Transaction is a finalized payment supplied by the external transaction
// ledger. Only success transactions contribute to a merchant's credits.
type Transaction struct {
	ID          string            `json:"id"`
	MerchantID  string            `json:"merchant_id"`
	Environment Environment       `json:"environment"`
	Amount      decimal.Decimal   `json:"amount"`
	Status      TransactionStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ─── Settlements ────────────────────────────────────────────────────────────

// SettlementStatus is the lifecycle state of a withdrawal request.
//
//	pending --approve--> approved --markPaid--> paid     (terminal)
//	pending --reject---> rejected                        (terminal)
type SettlementStatus string

const (
	StatusPending  SettlementStatus = "pending"
	StatusApproved SettlementStatus = "approved"
	StatusRejected SettlementStatus = "rejected"
	StatusPaid     SettlementStatus = "paid"
)

// Valid reports whether s is a known settlement status.
func (s SettlementStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusPaid:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s SettlementStatus) Terminal() bool {
	return s == StatusRejected || s == StatusPaid
}

// Locked reports whether funds in this status are earmarked and therefore
// subtracted from the merchant's available balance. Funds are locked only
// while non-terminal; at rejected they are free again, at paid they have
// become debits.
func (s SettlementStatus) Locked() bool {
	return s == StatusPending || s == StatusApproved
}

// Settlement is a merchant's request to withdraw available funds.
// Records are the audit trail and are never deleted.
type Settlement struct {
	ID          string           `json:"id"`
	MerchantID  string           `json:"merchant_id"`
	Environment Environment      `json:"environment"`
	Amount      decimal.Decimal  `json:"amount"`
	Status      SettlementStatus `json:"status"`
	Note        string           `json:"note,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ─── Balance ────────────────────────────────────────────────────────────────

// Balance is derived per (merchant, environment); it is never stored.
// Identity: Available + Locked + TotalDebits == TotalCredits.
type Balance struct {
	TotalCredits     decimal.Decimal `json:"totalCredits"`
	TotalDebits      decimal.Decimal `json:"totalDebits"`
	LockedBalance    decimal.Decimal `json:"lockedBalance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
}

// ─── Audit trail ────────────────────────────────────────────────────────────

// AuditEntry is one immutable row in a settlement's transition history.
// The log is append-only; note mutations never touch it.
type AuditEntry struct {
	ID           int64            `json:"id"`
	SettlementID string           `json:"settlement_id"`
	FromStatus   SettlementStatus `json:"from_status"`
	ToStatus     SettlementStatus `json:"to_status"`
	Actor        string           `json:"actor"`
	At           time.Time        `json:"at"`
}
