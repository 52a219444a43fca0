package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nexapay/settled/internal/domain"
)

// ─── Transaction Feed Operations ────────────────────────────────────────────
// Transactions arrive already finalized from the external ledger; this side
// only ingests and reads them. The feed may redeliver, so ingest is an
// idempotent upsert keyed by the transaction id.

// UpsertTransaction records a finalized transaction from the feed.
func (db *DB) UpsertTransaction(ctx context.Context, t domain.Transaction) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO transactions (id, merchant_id, environment, amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			merchant_id = excluded.merchant_id,
			environment = excluded.environment,
			amount      = excluded.amount,
			status      = excluded.status,
			created_at  = excluded.created_at
	`, t.ID, t.MerchantID, string(t.Environment), t.Amount.String(), string(t.Status), formatTime(t.CreatedAt))
	if err != nil {
		return storeErr("upsert transaction", err)
	}
	return nil
}

// SumCredits sums the success-transaction amounts for one merchant within
// one environment. Decimal strings are summed in Go for exactness.
func (db *DB) SumCredits(ctx context.Context, merchantID string, env domain.Environment) (decimal.Decimal, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT amount FROM transactions
		WHERE merchant_id = ? AND environment = ? AND status = ?
	`, merchantID, string(env), string(domain.TxSuccess))
	if err != nil {
		return decimal.Zero, storeErr("sum credits", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, storeErr("scan credit", err)
		}
		amt, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt amount %q: %w", raw, err)
		}
		sum = sum.Add(amt)
	}
	return sum, rows.Err()
}

// ListTransactions returns one page of the merchant's transactions, newest
// first, optionally narrowed to one status, plus the filtered count.
func (db *DB) ListTransactions(ctx context.Context, merchantID string, env domain.Environment, status domain.TransactionStatus, offset, limit int) ([]domain.Transaction, int, error) {
	clauses := []string{"merchant_id = ?", "environment = ?"}
	args := []interface{}{merchantID, string(env)}
	if status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(status))
	}
	where := " WHERE " + strings.Join(clauses, " AND ")

	var total int
	if err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, storeErr("count transactions", err)
	}

	rows, err := db.db.QueryContext(ctx, `
		SELECT id, merchant_id, environment, amount, status, created_at
		FROM transactions`+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, storeErr("list transactions", err)
	}
	defer rows.Close()

	var result []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var envStr, amount, statusStr, created string
		if err := rows.Scan(&t.ID, &t.MerchantID, &envStr, &amount, &statusStr, &created); err != nil {
			return nil, 0, storeErr("scan transaction", err)
		}
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, 0, fmt.Errorf("corrupt amount %q: %w", amount, err)
		}
		t.Environment = domain.Environment(envStr)
		t.Amount = amt
		t.Status = domain.TransactionStatus(statusStr)
		if t.CreatedAt, err = parseTime(created); err != nil {
			return nil, 0, err
		}
		result = append(result, t)
	}
	return result, total, rows.Err()
}
