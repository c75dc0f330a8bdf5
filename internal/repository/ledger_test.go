package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extract/constants"
)

func openTestLedger(t *testing.T) LedgerRepository {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Config{DSN: "sqlite:" + filepath.Join(t.TempDir(), "ledger.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	repo := NewLedgerRepository(db, nil)
	require.NoError(t, repo.Migrate(ctx))
	require.NoError(t, repo.Migrate(ctx)) // idempotent
	return repo
}

func TestLedger_RecordAndLookup(t *testing.T) {
	repo := openTestLedger(t)
	ctx := context.Background()

	_, found, err := repo.Lookup(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, found)

	at := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Record(ctx, Entry{
		ContentHash: "abc", SourcePath: "/in/a.pdf", OutputPath: "/out/a.json",
		Method: constants.MethodPDFText, InvoiceNumber: "INV-1", RunID: "r1", ProcessedAt: at,
	}))

	e, found, err := repo.Lookup(ctx, "abc")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "/out/a.json", e.OutputPath)
	assert.Equal(t, constants.MethodPDFText, e.Method)
	assert.True(t, at.Equal(e.ProcessedAt))

	// upsert on the same hash
	require.NoError(t, repo.Record(ctx, Entry{
		ContentHash: "abc", SourcePath: "/in/a-copy.pdf", OutputPath: "/out/b.json", Method: constants.MethodHosted,
	}))
	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "/in/a-copy.pdf", all[0].SourcePath)
	assert.Equal(t, constants.MethodHosted, all[0].Method)
}

func TestSplitDSN(t *testing.T) {
	cases := []struct {
		in, dialect, rest string
	}{
		{"postgres://u@h/db", DialectPostgres, "postgres://u@h/db"},
		{"postgresql://u@h/db", DialectPostgres, "postgresql://u@h/db"},
		{"sqlite:/tmp/x.db", DialectSQLite, "/tmp/x.db"},
		{"sqlite:///tmp/x.db", DialectSQLite, "/tmp/x.db"},
		{"ledger.db", DialectSQLite, "ledger.db"},
	}
	for _, c := range cases {
		d, r := splitDSN(c.in)
		assert.Equal(t, c.dialect, d, c.in)
		assert.Equal(t, c.rest, r, c.in)
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: DialectPostgres}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))
	lite := &DB{Dialect: DialectSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{}, nil)
	assert.Error(t, err)
}
