package postgres

import (
	"github.com/jackc/pgx/v5"

	"github.com/ogurasousui/employer-onboarding/internal/core/employer"
	pgdb "github.com/ogurasousui/employer-onboarding/internal/platform/db/postgres"
)

// UnitOfWorkFactory は呼び出しごとに PostgreSQL の UnitOfWork を生成します。
type UnitOfWorkFactory struct {
	db   pgdb.DB
	opts pgx.TxOptions
}

var _ employer.UnitOfWorkFactory = (*UnitOfWorkFactory)(nil)

// NewUnitOfWorkFactory は UnitOfWorkFactory を生成します。
func NewUnitOfWorkFactory(db pgdb.DB) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{db: db, opts: pgx.TxOptions{AccessMode: pgx.ReadWrite}}
}

// New は新しい UnitOfWork を返します。
func (f *UnitOfWorkFactory) New() employer.UnitOfWork {
	return &unitOfWork{UnitOfWork: pgdb.NewUnitOfWork(f.db, f.opts)}
}

type unitOfWork struct {
	*pgdb.UnitOfWork
}

// Employers はこの UnitOfWork に束縛された社員リポジトリを返します。
func (u *unitOfWork) Employers() employer.Repository {
	return pgdb.Repository(u.UnitOfWork, func(q pgdb.Queryer) employer.Repository {
		return NewEmployerRepository(q)
	})
}
