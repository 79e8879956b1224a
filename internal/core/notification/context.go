package notification

import "context"

type storeContextKey struct{}

// WithStore はコンテキストに Store を格納します。
func WithStore(ctx context.Context, store *Store) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, storeContextKey{}, store)
}

// Installed はコンテキストに Store が格納されているかを返します。
func Installed(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	store, ok := ctx.Value(storeContextKey{}).(*Store)
	return ok && store != nil
}

// FromContext はコンテキストに格納された Store を返します。
// 格納されていない場合はどこにも紐づかない空の Store を返し、書き込んだ通知は呼び出し元から読めません。
func FromContext(ctx context.Context) *Store {
	if ctx == nil {
		return NewStore()
	}
	if store, ok := ctx.Value(storeContextKey{}).(*Store); ok && store != nil {
		return store
	}
	return NewStore()
}
