package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-extract/constants"
)

// Entry is one processed source file.
type Entry struct {
	ContentHash   string
	SourcePath    string
	OutputPath    string
	Method        constants.Method
	InvoiceNumber string
	RunID         string
	ProcessedAt   time.Time
}

type LedgerRepository interface {
	Migrate(ctx context.Context) error
	// Lookup returns the entry for hash; found is false when it was never recorded.
	Lookup(ctx context.Context, hash string) (entry Entry, found bool, err error)
	Record(ctx context.Context, e Entry) error
	List(ctx context.Context) ([]Entry, error)
}

type ledgerRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewLedgerRepository(db *DB, logger *slog.Logger) LedgerRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ledgerRepo{
		db:     db,
		logger: logger,
	}
}

func (r *ledgerRepo) Migrate(ctx context.Context) error {
	ts := "TIMESTAMP"
	if r.db.Dialect == DialectPostgres {
		ts = "TIMESTAMPTZ"
	}
	ddl := `CREATE TABLE IF NOT EXISTS processed_files (
	content_hash   TEXT PRIMARY KEY,
	source_path    TEXT NOT NULL,
	output_path    TEXT NOT NULL,
	method         TEXT NOT NULL,
	invoice_number TEXT NOT NULL DEFAULT '',
	run_id         TEXT NOT NULL DEFAULT '',
	processed_at   ` + ts + ` NOT NULL
)`
	if _, err := r.db.SQL.ExecContext(ctx, ddl); err != nil {
		r.logger.Error("failed to migrate ledger", "error", err)
		return err
	}
	return nil
}

func (r *ledgerRepo) Lookup(ctx context.Context, hash string) (Entry, bool, error) {
	q := r.db.rebind(`SELECT content_hash, source_path, output_path, method, invoice_number, run_id, processed_at
FROM processed_files WHERE content_hash = ?`)
	var e Entry
	var method string
	err := r.db.SQL.QueryRowContext(ctx, q, hash).
		Scan(&e.ContentHash, &e.SourcePath, &e.OutputPath, &method, &e.InvoiceNumber, &e.RunID, &e.ProcessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		r.logger.Error("failed to look up ledger entry", "hash", hash, "error", err)
		return Entry{}, false, err
	}
	e.Method = constants.Method(method)
	return e, true, nil
}

func (r *ledgerRepo) Record(ctx context.Context, e Entry) error {
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now()
	}
	q := r.db.rebind(`INSERT INTO processed_files
	(content_hash, source_path, output_path, method, invoice_number, run_id, processed_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (content_hash) DO UPDATE SET
	source_path = excluded.source_path,
	output_path = excluded.output_path,
	method = excluded.method,
	invoice_number = excluded.invoice_number,
	run_id = excluded.run_id,
	processed_at = excluded.processed_at`)
	_, err := r.db.SQL.ExecContext(ctx, q,
		e.ContentHash, e.SourcePath, e.OutputPath, string(e.Method), e.InvoiceNumber, e.RunID, e.ProcessedAt.UTC())
	if err != nil {
		r.logger.Error("failed to record ledger entry", "hash", e.ContentHash, "source_path", e.SourcePath, "error", err)
		return err
	}
	return nil
}

func (r *ledgerRepo) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.SQL.QueryContext(ctx, `SELECT content_hash, source_path, output_path, method, invoice_number, run_id, processed_at
FROM processed_files ORDER BY processed_at, source_path`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		var method string
		if err := rows.Scan(&e.ContentHash, &e.SourcePath, &e.OutputPath, &method, &e.InvoiceNumber, &e.RunID, &e.ProcessedAt); err != nil {
			return nil, err
		}
		e.Method = constants.Method(method)
		out = append(out, e)
	}
	return out, rows.Err()
}
