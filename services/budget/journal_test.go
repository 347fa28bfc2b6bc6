package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPostgresJournalRecordSpend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	journal := NewPostgresJournal(db, zap.NewNop())
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("inserts a spend row", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO spend_journal").
			WithArgs("acme", 0.42, at).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := journal.RecordSpend(context.Background(), "acme", 0.42, at)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps database failures", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO spend_journal").
			WithArgs("acme", 0.42, at).
			WillReturnError(errors.New("connection reset"))

		err := journal.RecordSpend(context.Background(), "acme", 0.42, at)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert spend record")
	})
}

func TestPostgresJournalPeriodSpend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	journal := NewPostgresJournal(db, zap.NewNop())
	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("sums committed spend", func(t *testing.T) {
		mock.ExpectQuery("SELECT COALESCE").
			WithArgs("acme", since).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(12.5))

		total, err := journal.PeriodSpend(context.Background(), "acme", since)
		require.NoError(t, err)
		assert.Equal(t, 12.5, total)
	})

	t.Run("empty period is zero", func(t *testing.T) {
		mock.ExpectQuery("SELECT COALESCE").
			WithArgs("ghost", since).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(0.0))

		total, err := journal.PeriodSpend(context.Background(), "ghost", since)
		require.NoError(t, err)
		assert.Equal(t, 0.0, total)
	})
}

func TestLedgerJournalsCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cfg := DefaultConfig()
	cfg.DefaultCeiling = 10
	l := NewLedger(cfg, nil, NewPostgresJournal(db, zap.NewNop()), zap.NewNop())

	t.Run("commit writes to the journal", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO spend_journal").
			WithArgs("acme", 1.5, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		res, err := l.Reserve("acme", 2)
		require.NoError(t, err)
		require.NoError(t, l.Commit(context.Background(), res.Token, 1.5))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("journal failure does not unwind the commit", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO spend_journal").
			WithArgs("acme", 2.0, sqlmock.AnyArg()).
			WillReturnError(errors.New("connection reset"))

		res, err := l.Reserve("acme", 2)
		require.NoError(t, err)
		require.NoError(t, l.Commit(context.Background(), res.Token, 2.0))
		assert.Equal(t, 3.5, l.SnapshotFor("acme").Committed)
	})
}
