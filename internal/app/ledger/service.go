// Package ledger implements the settlement core: the balance calculator, the
// settlement state machine, and the listing service. It is the only writer of
// settlement state and goes through the store's CAS primitive for every
// status change.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexapay/settled/internal/domain"
	"github.com/nexapay/settled/internal/infra/observability"
)

// DefaultPageSize matches the dashboard's fixed page length.
const DefaultPageSize = 10

// Service is the settlement ledger. Stateless apart from the per-merchant
// creation locks; safe for concurrent use.
type Service struct {
	store domain.SettlementStore
	txns  domain.TransactionSource

	// mu guards locks; each entry serializes every balance-affecting
	// operation for one (merchant, environment) pair: the
	// check-then-insert of a request, the status transitions, and the
	// balance derivation itself. Cross-merchant operations never contend.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates the ledger service over a settlement store and a transaction
// source.
func New(store domain.SettlementStore, txns domain.TransactionSource) *Service {
	return &Service{
		store: store,
		txns:  txns,
		locks: make(map[string]*sync.Mutex),
	}
}

// ─── Balance Calculator ─────────────────────────────────────────────────────

// ComputeBalance derives the merchant's balance for one environment from the
// transaction feed and the settlement history. Exact decimal arithmetic
// throughout. The derivation runs under the merchant lock so the three sums
// observe one consistent snapshot; a transition committing between them
// could otherwise leave a settlement counted in neither debits nor locked.
func (s *Service) ComputeBalance(ctx context.Context, merchantID string, env domain.Environment) (domain.Balance, error) {
	if merchantID == "" {
		return domain.Balance{}, domain.ErrInvalidMerchant
	}
	if !env.Valid() {
		return domain.Balance{}, domain.ErrInvalidEnvironment
	}

	lock := s.merchantLock(merchantID, env)
	lock.Lock()
	defer lock.Unlock()

	return s.computeBalanceLocked(ctx, merchantID, env)
}

// computeBalanceLocked is ComputeBalance without the locking; the caller
// must hold the merchant lock for the pair.
func (s *Service) computeBalanceLocked(ctx context.Context, merchantID string, env domain.Environment) (domain.Balance, error) {
	start := time.Now()
	defer func() {
		observability.BalanceComputeDuration.Observe(time.Since(start).Seconds())
	}()

	credits, err := s.txns.SumCredits(ctx, merchantID, env)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("sum credits: %w", err)
	}
	debits, err := s.store.SumSettlements(ctx, merchantID, env, domain.StatusPaid)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("sum debits: %w", err)
	}
	locked, err := s.store.SumSettlements(ctx, merchantID, env, domain.StatusPending, domain.StatusApproved)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("sum locked: %w", err)
	}

	return domain.Balance{
		TotalCredits:     credits,
		TotalDebits:      debits,
		LockedBalance:    locked,
		AvailableBalance: credits.Sub(debits).Sub(locked),
	}, nil
}

// ─── Settlement State Machine ───────────────────────────────────────────────

// Request validates and creates a withdrawal request in status pending.
// The balance check and the insert run under the merchant lock, so neither
// a concurrent request nor a concurrent transition can slip between the
// check and the insert and let the pair overdraw the available balance.
func (s *Service) Request(ctx context.Context, merchantID string, env domain.Environment, amount decimal.Decimal) (*domain.Settlement, error) {
	if merchantID == "" {
		return nil, domain.ErrInvalidMerchant
	}
	if !env.Valid() {
		return nil, domain.ErrInvalidEnvironment
	}
	if amount.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	lock := s.merchantLock(merchantID, env)
	lock.Lock()
	defer lock.Unlock()

	balance, err := s.computeBalanceLocked(ctx, merchantID, env)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(balance.AvailableBalance) {
		observability.InsufficientBalanceTotal.Inc()
		return nil, domain.ErrInsufficientBalance
	}

	now := time.Now().UTC()
	settlement := domain.Settlement{
		ID:          uuid.NewString(),
		MerchantID:  merchantID,
		Environment: env,
		Amount:      amount,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InsertSettlement(ctx, settlement); err != nil {
		return nil, err
	}

	observability.SettlementsCreatedTotal.Inc()
	return &settlement, nil
}

// Approve transitions pending → approved.
func (s *Service) Approve(ctx context.Context, id, adminID string) error {
	return s.transition(ctx, id, domain.StatusPending, domain.StatusApproved, "", adminID)
}

// Reject transitions pending → rejected, persisting the reason as the note.
func (s *Service) Reject(ctx context.Context, id, adminID, reason string) error {
	return s.transition(ctx, id, domain.StatusPending, domain.StatusRejected, reason, adminID)
}

// MarkPaid transitions approved → paid. Called by the payment execution
// collaborator once funds are actually disbursed; the external reference is
// recorded in the audit trail's actor field.
func (s *Service) MarkPaid(ctx context.Context, id, externalRef string) error {
	actor := "payment-executor"
	if externalRef != "" {
		actor = "payment-executor:" + externalRef
	}
	return s.transition(ctx, id, domain.StatusApproved, domain.StatusPaid, "", actor)
}

// transition applies one CAS edge of the lifecycle. Exactly one of any set
// of concurrent callers for the same record wins; the rest observe
// ErrInvalidTransition (or ErrNotFound for unknown ids). The CAS runs under
// the merchant lock of the record's pair so a commit can never interleave
// with a balance derivation for the same merchant.
func (s *Service) transition(ctx context.Context, id string, expected, next domain.SettlementStatus, note, actor string) error {
	if !domain.CanTransition(expected, next) {
		return domain.ErrInvalidTransition
	}

	// Merchant and environment are immutable once the record exists, so
	// resolving them before taking the lock is safe.
	current, err := s.store.GetSettlement(ctx, id)
	if err != nil {
		return err
	}

	lock := s.merchantLock(current.MerchantID, current.Environment)
	lock.Lock()
	defer lock.Unlock()

	applied, err := s.store.UpdateStatus(ctx, id, expected, next, note, actor)
	if err != nil {
		observability.TransitionsTotal.WithLabelValues(string(next), "error").Inc()
		return err
	}
	if !applied {
		// The record exists; the CAS lost to a stale status.
		observability.TransitionsTotal.WithLabelValues(string(next), "conflict").Inc()
		return domain.ErrInvalidTransition
	}

	observability.TransitionsTotal.WithLabelValues(string(next), "applied").Inc()
	return nil
}

// ─── Query/Listing Service ──────────────────────────────────────────────────

// Page is one page of settlement results.
type Page struct {
	Items      []domain.Settlement `json:"items"`
	TotalCount int                 `json:"total_count"`
	Page       int                 `json:"page"`
	LastPage   int                 `json:"last_page"`
}

// List returns one page of settlements matching the filter, newest first.
// page is 1-based; pageSize ≤ 0 selects the default of 10.
func (s *Service) List(ctx context.Context, f domain.SettlementFilter, page, pageSize int) (*Page, error) {
	if !f.Environment.Valid() {
		return nil, domain.ErrInvalidEnvironment
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("unknown settlement status %q", f.Status)
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	items, total, err := s.store.ListSettlements(ctx, f, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}

	lastPage := (total + pageSize - 1) / pageSize
	if lastPage < 1 {
		lastPage = 1
	}
	return &Page{Items: items, TotalCount: total, Page: page, LastPage: lastPage}, nil
}

// Get retrieves one settlement by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Settlement, error) {
	return s.store.GetSettlement(ctx, id)
}

// AuditTrail returns the append-only transition log for a settlement.
func (s *Service) AuditTrail(ctx context.Context, id string) ([]domain.AuditEntry, error) {
	if _, err := s.store.GetSettlement(ctx, id); err != nil {
		return nil, err
	}
	return s.store.AuditTrail(ctx, id)
}

// merchantLock returns the mutex serializing balance-affecting operations
// for one (merchant, environment) pair.
func (s *Service) merchantLock(merchantID string, env domain.Environment) *sync.Mutex {
	key := merchantID + "/" + string(env)
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}
