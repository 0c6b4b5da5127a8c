package ledger

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"go.uber.org/zap"
)

var entryColumns = []string{"idx", "timestamp", "threat_id", "action", "actor", "data_hash", "prev_hash", "hash"}

func TestPostgresLedger_Append(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(appendLockKey).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT idx, hash FROM audit_ledger ORDER BY idx DESC LIMIT 1")).
		WillReturnRows(pgxmock.NewRows([]string{"idx", "hash"}).AddRow(0, GenesisHash))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_ledger")).
		WithArgs(1, pgxmock.AnyArg(), "THREAT-9", "submit", SystemActor, pgxmock.AnyArg(), GenesisHash, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

	l := NewPostgres(mock, zap.NewNop())
	e, err := l.Append(context.Background(), "THREAT-9", ActionSubmit, SystemActor, map[string]int{"risk": 80})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if e.Index != 1 || e.PrevHash != GenesisHash {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.Hash != hashEntry(e) {
		t.Error("entry hash does not match its fields")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresLedger_Verify(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 0, 0, 123000, time.UTC)
	e1 := &Entry{Index: 1, Timestamp: ts, ThreatID: "THREAT-1", Action: ActionAnalyze, Actor: SystemActor, DataHash: "ab", PrevHash: GenesisHash}
	e1.Hash = hashEntry(e1)

	rows := func(last *Entry) *pgxmock.Rows {
		return pgxmock.NewRows(entryColumns).
			AddRow(0, ts, "", "genesis", SystemActor, GenesisHash, GenesisHash, GenesisHash).
			AddRow(last.Index, last.Timestamp, last.ThreatID, string(last.Action), last.Actor, last.DataHash, last.PrevHash, last.Hash)
	}

	t.Run("intact", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		if err != nil {
			t.Fatal(err)
		}
		defer mock.Close()
		mock.ExpectQuery("FROM audit_ledger ORDER BY idx ASC").WillReturnRows(rows(e1))

		if err := NewPostgres(mock, zap.NewNop()).Verify(context.Background()); err != nil {
			t.Errorf("Verify: %v", err)
		}
	})

	t.Run("tampered", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		if err != nil {
			t.Fatal(err)
		}
		defer mock.Close()
		bad := *e1
		bad.Actor = "someone-else"
		mock.ExpectQuery("FROM audit_ledger ORDER BY idx ASC").WillReturnRows(rows(&bad))

		err = NewPostgres(mock, zap.NewNop()).Verify(context.Background())
		if err == nil || !strings.Contains(err.Error(), "invalid hash") {
			t.Errorf("expected invalid hash error, got %v", err)
		}
	})
}

func TestPostgresLedger_GetMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()
	mock.ExpectQuery("WHERE idx = ").WithArgs(42).WillReturnError(pgx.ErrNoRows)

	_, err = NewPostgres(mock, zap.NewNop()).Get(context.Background(), 42)
	if err == nil || !strings.Contains(err.Error(), ErrOutOfRange.Error()) {
		t.Errorf("expected out of range, got %v", err)
	}
}
