package employer

import "errors"

var (
	ErrInvalidRole              = errors.New("employer: invalid role")
	ErrInvalidStatus            = errors.New("employer: invalid status")
	ErrInvalidPageSize          = errors.New("employer: invalid page size")
	ErrInvalidPageNumber        = errors.New("employer: invalid page number")
	ErrEmployerNotFound         = errors.New("employer: not found")
	ErrManagerNotFound          = errors.New("employer: manager not found")
	ErrTaxDocumentAlreadyExists = errors.New("employer: tax document already exists")

	// ErrInternal は想定外の障害を呼び出し元に伝える不透明なエラーです。
	// 詳細はログにのみ出力します。
	ErrInternal = errors.New("employer: internal error")
)
