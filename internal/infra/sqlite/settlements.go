package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexapay/settled/internal/domain"
)

// timeFormat is fixed-width UTC so that TEXT comparison orders by time.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeFormat) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt timestamp %q: %w", s, err)
	}
	return t, nil
}

// storeErr marks a driver failure as the retryable kind.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
}

// ─── Settlement Operations ──────────────────────────────────────────────────

// InsertSettlement writes a new settlement record and its creation audit
// entry in one transaction.
func (db *DB) InsertSettlement(ctx context.Context, s domain.Settlement) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin insert settlement", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO settlements (id, merchant_id, environment, amount, status, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.MerchantID, string(s.Environment), s.Amount.String(), string(s.Status),
		nullIfEmpty(s.Note), formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	if err != nil {
		return storeErr("insert settlement", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO settlement_audit (settlement_id, from_status, to_status, actor, at)
		VALUES (?, '', ?, ?, ?)
	`, s.ID, string(s.Status), s.MerchantID, formatTime(s.CreatedAt))
	if err != nil {
		return storeErr("insert settlement audit", err)
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit insert settlement", err)
	}
	return nil
}

// GetSettlement retrieves a settlement by id.
func (db *DB) GetSettlement(ctx context.Context, id string) (*domain.Settlement, error) {
	row := db.db.QueryRowContext(ctx, `
		SELECT id, merchant_id, environment, amount, status, note, created_at, updated_at
		FROM settlements WHERE id = ?
	`, id)
	s, err := scanSettlement(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get settlement", err)
	}
	return s, nil
}

// UpdateStatus applies the compare-and-swap status transition. The guarded
// UPDATE succeeds for exactly one of any set of concurrent callers; the audit
// entry commits atomically with the status write. applied=false with a nil
// error means the record was not in the expected status.
func (db *DB) UpdateStatus(ctx context.Context, id string, expected, next domain.SettlementStatus, note, actor string) (bool, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return false, storeErr("begin update status", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	var res sql.Result
	if note != "" {
		res, err = tx.ExecContext(ctx, `
			UPDATE settlements SET status = ?, note = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`, string(next), note, now, id, string(expected))
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE settlements SET status = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`, string(next), now, id, string(expected))
	}
	if err != nil {
		return false, storeErr("update status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("update status rows", err)
	}
	if n == 0 {
		// Precondition failed: either unknown id or stale status.
		// Nothing was written; the caller distinguishes via GetSettlement.
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO settlement_audit (settlement_id, from_status, to_status, actor, at)
		VALUES (?, ?, ?, ?, ?)
	`, id, string(expected), string(next), actor, now)
	if err != nil {
		return false, storeErr("insert audit", err)
	}

	if err := tx.Commit(); err != nil {
		return false, storeErr("commit update status", err)
	}
	return true, nil
}

// ListSettlements returns one page of the filtered set, newest first with id
// as the deterministic tie-break, plus the exact filtered count.
func (db *DB) ListSettlements(ctx context.Context, f domain.SettlementFilter, offset, limit int) ([]domain.Settlement, int, error) {
	where, args := settlementFilterSQL(f)

	var total int
	err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM settlements`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, storeErr("count settlements", err)
	}

	rows, err := db.db.QueryContext(ctx, `
		SELECT id, merchant_id, environment, amount, status, note, created_at, updated_at
		FROM settlements`+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, storeErr("list settlements", err)
	}
	defer rows.Close()

	var result []domain.Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, 0, storeErr("scan settlement", err)
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeErr("list settlements", err)
	}
	return result, total, nil
}

// SumSettlements sums amounts over the merchant's settlements in the given
// statuses within one environment. Amounts are decimal strings summed in Go.
func (db *DB) SumSettlements(ctx context.Context, merchantID string, env domain.Environment, statuses ...domain.SettlementStatus) (decimal.Decimal, error) {
	if len(statuses) == 0 {
		return decimal.Zero, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := []interface{}{merchantID, string(env)}
	for _, s := range statuses {
		args = append(args, string(s))
	}

	rows, err := db.db.QueryContext(ctx, `
		SELECT amount FROM settlements
		WHERE merchant_id = ? AND environment = ? AND status IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return decimal.Zero, storeErr("sum settlements", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, storeErr("scan amount", err)
		}
		amt, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt amount %q: %w", raw, err)
		}
		sum = sum.Add(amt)
	}
	return sum, rows.Err()
}

// AuditTrail returns the transition log for a settlement, oldest first.
func (db *DB) AuditTrail(ctx context.Context, settlementID string) ([]domain.AuditEntry, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, settlement_id, from_status, to_status, actor, at
		FROM settlement_audit WHERE settlement_id = ?
		ORDER BY id ASC
	`, settlementID)
	if err != nil {
		return nil, storeErr("audit trail", err)
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var from, to, at string
		if err := rows.Scan(&e.ID, &e.SettlementID, &from, &to, &e.Actor, &at); err != nil {
			return nil, storeErr("scan audit", err)
		}
		e.FromStatus = domain.SettlementStatus(from)
		e.ToStatus = domain.SettlementStatus(to)
		if e.At, err = parseTime(at); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// ─── Helpers ────────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSettlement(row rowScanner) (*domain.Settlement, error) {
	var s domain.Settlement
	var env, amount, status, created, updated string
	var note sql.NullString
	if err := row.Scan(&s.ID, &s.MerchantID, &env, &amount, &status, &note, &created, &updated); err != nil {
		return nil, err
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount %q: %w", amount, err)
	}
	s.Environment = domain.Environment(env)
	s.Amount = amt
	s.Status = domain.SettlementStatus(status)
	s.Note = note.String
	if s.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &s, nil
}

func settlementFilterSQL(f domain.SettlementFilter) (string, []interface{}) {
	clauses := []string{"environment = ?"}
	args := []interface{}{string(f.Environment)}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.MerchantID != "" {
		clauses = append(clauses, "merchant_id = ?")
		args = append(args, f.MerchantID)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
