package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/regulations-assistant/internal/core/domain"
)

func newMockRepo(t *testing.T) (*ExchangeRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewExchangeRepository(db), mock
}

func sampleExchange() domain.Exchange {
	return domain.Exchange{
		ID:       "ex-1",
		UserID:   "u1",
		Question: "nghỉ phép được bao nhiêu ngày",
		Answer:   "12 ngày phép/năm",
		Sources: []map[string]string{
			{"doc_id": "noi_quy", "source_type": "entity"},
		},
		Degraded:  false,
		CreatedAt: time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
	}
}

func TestAppendExchange(t *testing.T) {
	repo, mock := newMockRepo(t)
	ex := sampleExchange()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO exchanges`)).
		WithArgs(ex.ID, ex.UserID, ex.Question, ex.Answer, sqlmock.AnyArg(), ex.Degraded, ex.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.AppendExchange(context.Background(), ex); err != nil {
		t.Fatalf("append exchange: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestListRecentExchanges(t *testing.T) {
	repo, mock := newMockRepo(t)
	ex := sampleExchange()

	rows := sqlmock.NewRows([]string{"id", "user_id", "question", "answer", "sources", "degraded", "created_at"}).
		AddRow(ex.ID, ex.UserID, ex.Question, ex.Answer, []byte(`[{"doc_id":"noi_quy"}]`), ex.Degraded, ex.CreatedAt)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, question, answer, sources, degraded, created_at`)).
		WithArgs("u1", 10).
		WillReturnRows(rows)

	got, err := repo.ListRecentExchanges(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("list exchanges: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("exchanges = %d", len(got))
	}
	if got[0].Sources[0]["doc_id"] != "noi_quy" {
		t.Errorf("sources = %v", got[0].Sources)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestListRecentExchangesDefaultLimit(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, question, answer, sources, degraded, created_at`)).
		WithArgs("u1", 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "question", "answer", "sources", "degraded", "created_at"}))

	got, err := repo.ListRecentExchanges(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("list exchanges: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("exchanges = %d", len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestEnsureSchemaAcquiresAdvisoryLock(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
		WithArgs(int64(2026083101)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS exchanges`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
