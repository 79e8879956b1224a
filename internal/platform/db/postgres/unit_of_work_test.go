package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestUnitOfWork_BeginIsIdempotentAndCommitCloses(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec("UPDATE employers").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	uow := NewUnitOfWork(mock, pgx.TxOptions{})
	ctx := context.Background()

	if err := uow.Begin(ctx); err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	if err := uow.Begin(ctx); err != nil {
		t.Fatalf("second Begin returned error: %v", err)
	}
	if !uow.InTransaction() {
		t.Fatalf("expected open transaction")
	}

	if _, err := uow.Exec(ctx, "UPDATE employers SET first_name = $1", "x"); err != nil {
		t.Fatalf("Exec returned error: %v", err)
	}

	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit returned error: %v", err)
	}
	if uow.InTransaction() {
		t.Fatalf("transaction must be closed after commit")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUnitOfWork_RollbackWithoutTransactionIsNoop(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	uow := NewUnitOfWork(mock, pgx.TxOptions{})
	if err := uow.Rollback(context.Background()); err != nil {
		t.Fatalf("Rollback returned error: %v", err)
	}
	if err := uow.Commit(context.Background()); !errors.Is(err, ErrNoTransaction) {
		t.Fatalf("expected ErrNoTransaction, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUnitOfWork_CommitFailureRollsBack(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	commitErr := errors.New("could not serialize access")
	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectCommit().WillReturnError(commitErr)
	mock.ExpectRollback()

	uow := NewUnitOfWork(mock, pgx.TxOptions{})
	ctx := context.Background()
	if err := uow.Begin(ctx); err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}

	if err := uow.Commit(ctx); !errors.Is(err, commitErr) {
		t.Fatalf("expected commit error, got %v", err)
	}
	if uow.InTransaction() {
		t.Fatalf("transaction must be discarded after failed commit")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUnitOfWork_RollbackAfterCancel(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectRollback()

	uow := NewUnitOfWork(mock, pgx.TxOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	if err := uow.Begin(ctx); err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	cancel()

	if err := uow.Rollback(ctx); err != nil {
		t.Fatalf("Rollback returned error: %v", err)
	}
	if uow.InTransaction() {
		t.Fatalf("transaction must be closed")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

type countingRepo struct {
	q Queryer
}

func TestRepository_BuildsOncePerUnitOfWork(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	builds := 0
	build := func(q Queryer) *countingRepo {
		builds++
		return &countingRepo{q: q}
	}

	uow := NewUnitOfWork(mock, pgx.TxOptions{})
	first := Repository(uow, build)
	second := Repository(uow, build)

	if first != second || builds != 1 {
		t.Fatalf("expected a single cached repository, builds=%d", builds)
	}
	if first.q != Queryer(uow) {
		t.Fatalf("repository must be bound to the unit of work")
	}

	other := NewUnitOfWork(mock, pgx.TxOptions{})
	if Repository(other, build) == first {
		t.Fatalf("repositories must not be shared across units of work")
	}
}
