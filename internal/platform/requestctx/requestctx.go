package requestctx

import "context"

type callerContextKey struct{}

type requestIDContextKey struct{}

// WithCaller は認証済み呼び出し元の外部 ID を context に格納します。
func WithCaller(ctx context.Context, externalID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callerContextKey{}, externalID)
}

// CallerFromContext は呼び出し元の外部 ID を返します。未設定なら空文字です。
func CallerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(callerContextKey{}).(string)
	return value
}

// WithRequestID はリクエスト ID を context に格納します。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext はリクエスト ID を返します。
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDContextKey{}).(string)
	return value
}
