// Package storage owns the two durable relations: the append-only entry
// history and the per-bucket totals. No other package writes either one.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"shifttally/internal/core"

	_ "modernc.org/sqlite"
)

// Repository is the SQLite-backed aggregate store. A single Repository
// owns one database handle; callers inject it where needed instead of
// sharing a process-wide connection.
type Repository struct {
	db      *sql.DB
	timeout time.Duration
}

// NewRepository opens (and if needed migrates) the database at dbPath.
// Transactions are opened with _txlock=immediate so concurrent writers
// for the same bucket serialize at BEGIN instead of failing mid-upsert,
// and busy_timeout bounds how long they queue.
func NewRepository(dbPath string, timeout time.Duration) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Repository{db: db, timeout: timeout}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// RecordEntry appends e to the history and accumulates it into its
// bucket as one transaction: both rows commit or neither does.
//
// The write context is detached from the caller's cancellation. A chat
// client that gives up mid-call must not leave a half-applied record;
// only the bounded timeout can abort the transaction, and a rollback
// then leaves no trace of either row.
func (r *Repository) RecordEntry(ctx context.Context, e core.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin record", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO history (chat_id, recorded_at, business_date, shift, currency, amount)
        VALUES (?, ?, ?, ?, ?, ?)`,
		e.ChatID,
		e.RecordedAt.UTC().Format(time.RFC3339Nano),
		e.BusinessDate.String(),
		string(e.Shift),
		string(e.Currency),
		e.Amount.String(),
	)
	if err != nil {
		return storageErr("append history", err)
	}

	// Insert-or-accumulate. Totals are exact decimal strings, so the
	// arithmetic happens here rather than in SQL; the immediate
	// transaction makes the read-modify-write safe.
	var (
		total    string
		invoices int64
	)
	row := tx.QueryRowContext(ctx, `
        SELECT total, invoices FROM totals
        WHERE chat_id = ? AND business_date = ? AND shift = ? AND currency = ?`,
		e.ChatID, e.BusinessDate.String(), string(e.Shift), string(e.Currency),
	)
	switch err := row.Scan(&total, &invoices); err {
	case sql.ErrNoRows:
		_, err2 := tx.ExecContext(ctx, `
            INSERT INTO totals (chat_id, business_date, shift, currency, total, invoices)
            VALUES (?, ?, ?, ?, ?, 1)`,
			e.ChatID, e.BusinessDate.String(), string(e.Shift), string(e.Currency), e.Amount.String(),
		)
		if err2 != nil {
			return storageErr("insert bucket", err2)
		}
	case nil:
		current, perr := decimal.NewFromString(total)
		if perr != nil {
			return storageErr("decode bucket total", perr)
		}
		_, err2 := tx.ExecContext(ctx, `
            UPDATE totals SET total = ?, invoices = ?
            WHERE chat_id = ? AND business_date = ? AND shift = ? AND currency = ?`,
			current.Add(e.Amount).String(), invoices+1,
			e.ChatID, e.BusinessDate.String(), string(e.Shift), string(e.Currency),
		)
		if err2 != nil {
			return storageErr("update bucket", err2)
		}
	default:
		return storageErr("read bucket", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit record", err)
	}

	slog.InfoContext(ctx, "Entry recorded",
		"chat_id", e.ChatID,
		"business_date", e.BusinessDate.String(),
		"shift", string(e.Shift),
		"currency", string(e.Currency),
		"amount", e.Amount.String())

	return nil
}

// QueryTotals returns the totals for one bucket key per currency, or,
// when shift is empty, for the whole business day folded across all
// three shifts. Both currencies are always present in the result;
// inactive ones report a zero bucket. Read-only: no rows are created.
func (r *Repository) QueryTotals(ctx context.Context, chatID int64, date core.Date, shift core.Shift) (core.Totals, error) {
	if shift != "" {
		if err := shift.Validate(); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		rows *sql.Rows
		err  error
	)
	if shift != "" {
		rows, err = r.db.QueryContext(ctx, `
            SELECT currency, total, invoices FROM totals
            WHERE chat_id = ? AND business_date = ? AND shift = ?`,
			chatID, date.String(), string(shift),
		)
	} else {
		rows, err = r.db.QueryContext(ctx, `
            SELECT currency, total, invoices FROM totals
            WHERE chat_id = ? AND business_date = ?`,
			chatID, date.String(),
		)
	}
	if err != nil {
		return nil, storageErr("query totals", err)
	}
	defer rows.Close()

	totals := core.NewTotals()
	for rows.Next() {
		var (
			currency string
			total    string
			invoices int64
		)
		if err := rows.Scan(&currency, &total, &invoices); err != nil {
			return nil, storageErr("scan totals", err)
		}
		c, cerr := core.ParseCurrency(currency)
		if cerr != nil {
			// The parser boundary rejects unknown codes before they are
			// written; a stray row means a corrupted database.
			return nil, storageErr("decode currency", fmt.Errorf("row currency %q: %w", currency, cerr))
		}
		amount, perr := decimal.NewFromString(total)
		if perr != nil {
			return nil, storageErr("decode total", perr)
		}
		bucket := totals[c]
		bucket.Total = bucket.Total.Add(amount)
		bucket.Invoices += invoices
		totals.Set(c, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate totals", err)
	}

	return totals, nil
}

// ListEntries returns the day's history in recorded order, across all
// shifts of the business date.
func (r *Repository) ListEntries(ctx context.Context, chatID int64, date core.Date) ([]core.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
        SELECT chat_id, recorded_at, business_date, shift, currency, amount
        FROM history
        WHERE chat_id = ? AND business_date = ?
        ORDER BY id`,
		chatID, date.String(),
	)
	if err != nil {
		return nil, storageErr("query history", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		var (
			e            core.Entry
			recordedAt   string
			businessDate string
			shift        string
			currency     string
			amount       string
		)
		if err := rows.Scan(&e.ChatID, &recordedAt, &businessDate, &shift, &currency, &amount); err != nil {
			return nil, storageErr("scan history", err)
		}
		if e.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt); err != nil {
			return nil, storageErr("decode recorded_at", err)
		}
		if e.BusinessDate, err = core.ParseDate(businessDate); err != nil {
			return nil, storageErr("decode business_date", err)
		}
		e.Shift = core.Shift(shift)
		if e.Currency, err = core.ParseCurrency(currency); err != nil {
			return nil, storageErr("decode currency", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, storageErr("decode amount", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate history", err)
	}

	return entries, nil
}
