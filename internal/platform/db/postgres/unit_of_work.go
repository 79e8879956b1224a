package postgres

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNoTransaction は開始されていないトランザクションをコミットしようとした場合のエラーです。
var ErrNoTransaction = errors.New("postgres: no open transaction")

// UnitOfWork は 1 回の呼び出しに閉じたトランザクションと、
// そのトランザクションに束縛されたリポジトリの登録簿を保持します。
//
// UnitOfWork 自身が Queryer を満たし、トランザクション中はトランザクションへ、
// それ以外はプールへクエリを委譲します。ゴルーチン間で共有してはいけません。
type UnitOfWork struct {
	db    DB
	opts  pgx.TxOptions
	tx    pgx.Tx
	repos map[reflect.Type]any
}

// NewUnitOfWork は UnitOfWork を生成します。
func NewUnitOfWork(db DB, opts pgx.TxOptions) *UnitOfWork {
	return &UnitOfWork{db: db, opts: opts, repos: make(map[reflect.Type]any)}
}

// Begin はトランザクションを開始します。既に開始済みの場合は何もしません。
func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return nil
	}
	tx, err := u.db.BeginTx(ctx, u.opts)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	u.tx = tx
	return nil
}

// Commit はトランザクションをコミットします。失敗時はロールバックし、いずれの場合もトランザクションを破棄します。
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return ErrNoTransaction
	}
	tx := u.tx
	u.tx = nil
	return commit(ctx, tx)
}

// Rollback はトランザクションを破棄します。開始されていない場合は何もしません。
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	tx := u.tx
	u.tx = nil
	return rollback(ctx, tx)
}

// InTransaction はトランザクション中かを返します。
func (u *UnitOfWork) InTransaction() bool {
	return u.tx != nil
}

func (u *UnitOfWork) executor() Queryer {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UnitOfWork) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return u.executor().Query(ctx, sql, args...)
}

func (u *UnitOfWork) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return u.executor().QueryRow(ctx, sql, args...)
}

func (u *UnitOfWork) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return u.executor().Exec(ctx, sql, args...)
}

// Repository は型 T のリポジトリを返します。初回のみ build で生成し、以降は同じインスタンスを返します。
// build には UnitOfWork 自身が Queryer として渡されます。
func Repository[T any](u *UnitOfWork, build func(Queryer) T) T {
	key := reflect.TypeOf((*T)(nil)).Elem()
	if repo, ok := u.repos[key]; ok {
		return repo.(T)
	}
	repo := build(u)
	u.repos[key] = repo
	return repo
}
