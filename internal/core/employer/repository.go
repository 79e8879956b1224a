package employer

import "context"

// Repository は社員永続化の抽象です。
// 見つからない場合は ErrEmployerNotFound を返します。
type Repository interface {
	FindByID(ctx context.Context, id string) (*Employer, error)
	FindByTaxDocument(ctx context.Context, taxDocument string) (*Employer, error)
	FindByExternalID(ctx context.Context, externalID string) (*Employer, error)
	List(ctx context.Context, filter ListFilter) ([]*Employer, int, error)
	Create(ctx context.Context, employer *Employer) (*Employer, error)
	Update(ctx context.Context, employer *Employer) (*Employer, error)
	Delete(ctx context.Context, id string) error
}

// ListFilter は一覧取得用フィルタです。
type ListFilter struct {
	Status *Status
	Limit  int
	Offset int
}

// UnitOfWork は 1 回の呼び出しに閉じたトランザクション境界です。
//
// Begin は既に開いている場合は何もしません。Commit は失敗時に自動でロールバックし、
// Commit と Rollback はどちらも成否にかかわらずトランザクションを破棄します。
// Rollback はトランザクションが無ければ何もしません。
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	InTransaction() bool
	Employers() Repository
}

// UnitOfWorkFactory は呼び出しごとに新しい UnitOfWork を生成します。
type UnitOfWorkFactory interface {
	New() UnitOfWork
}

// TransactionManager は読み取り専用経路のトランザクション制御です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}
