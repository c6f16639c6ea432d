package sqlite

import (
	"context"
	"database/sql"
	"time"

	"registro/internal/core"
)

type queries struct {
	db *sql.DB
}

type entryRow struct {
	ID            string
	LedgerID      string
	Date          time.Time
	Type          string
	Amount        int64
	PaymentMethod string
	Category      string
	Memo          string
	RecordedBy    string
}

func (q *queries) insertLedger(ctx context.Context, id, label string) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO ledgers (id, label) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET label = excluded.label`,
		id, label)
	return err
}

func (q *queries) getLedger(ctx context.Context, id string) (label string, err error) {
	err = q.db.QueryRowContext(ctx,
		`SELECT label FROM ledgers WHERE id = ?`, id).Scan(&label)
	return label, err
}

func (q *queries) ledgerExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM ledgers WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (q *queries) getSeq(ctx context.Context, ledgerID string) (uint64, error) {
	var seq uint64
	err := q.db.QueryRowContext(ctx,
		`SELECT seq FROM ledgers WHERE id = ?`, ledgerID).Scan(&seq)
	return seq, err
}

// insertEntry persists the entry and bumps the ledger sequence counter in
// one transaction, returning the new sequence number.
func (q *queries) insertEntry(ctx context.Context, row entryRow) (uint64, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entries
		 (id, ledger_id, entry_date, entry_type, amount, category, payment_method, memo, recorded_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.LedgerID, row.Date.UTC().Format(time.RFC3339Nano), row.Type,
		row.Amount, row.Category, row.PaymentMethod, row.Memo, row.RecordedBy)
	if err != nil {
		return 0, err
	}

	var seq uint64
	err = tx.QueryRowContext(ctx,
		`UPDATE ledgers SET seq = seq + 1 WHERE id = ? RETURNING seq`,
		row.LedgerID).Scan(&seq)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return seq, nil
}

func (q *queries) listEntries(ctx context.Context, ledgerID string) ([]core.Entry, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, entry_date, entry_type, amount, category, payment_method, memo, recorded_by
		 FROM entries WHERE ledger_id = ? ORDER BY rowid`,
		ledgerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Entry
	for rows.Next() {
		var (
			e      core.Entry
			date   string
			kind   string
			amount int64
		)
		if err := rows.Scan(&e.ID, &date, &kind, &amount, &e.Category, &e.PaymentMethod, &e.Memo, &e.RecordedBy); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, date)
		if err != nil {
			return nil, err
		}
		e.Date = t
		e.Type = core.EntryType(kind)
		e.Amount = core.Money{Units: amount}
		out = append(out, e)
	}
	return out, rows.Err()
}
