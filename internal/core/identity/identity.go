package identity

import (
	"context"
	"strings"
)

// SignUp は外部 IdP にアカウントを作成するための一時的な入力です。
// Password は永続化もログ出力もしません。
type SignUp struct {
	Name     string
	Email    string
	Password string
}

// NewSignUp は氏名を連結して SignUp を組み立てます。
func NewSignUp(firstName, lastName, email, password string) SignUp {
	name := strings.TrimSpace(strings.TrimSpace(firstName) + " " + strings.TrimSpace(lastName))
	return SignUp{
		Name:     name,
		Email:    strings.TrimSpace(email),
		Password: password,
	}
}

// PasswordUpdate はパスワード変更の入力です。ID は employer の ID です。
type PasswordUpdate struct {
	ID       string
	Password string
}

// Profile は IdP から取得するプロフィール属性です。
type Profile struct {
	Picture string
	Email   string
	Name    string
}

// Provider は外部 IdP へのアカウント操作の抽象です。
//
// Provision は業務上の失敗時に空文字と nil を返します。
// それ以外のメソッドが返す error は想定外の障害として扱われます。
type Provider interface {
	Provision(ctx context.Context, in SignUp) (string, error)
	FetchProfile(ctx context.Context, externalID string) (Profile, error)
	UpdatePassword(ctx context.Context, externalID, password string) error
	Deprovision(ctx context.Context, externalID string) error
}
