package identity

import (
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/ogurasousui/employer-onboarding/internal/core/validation"
)

const minPasswordLength = 8

// 通知メッセージ
const (
	MessageEmailRequired       = "Email is required"
	MessageEmailInvalid        = "Email is not valid"
	MessagePasswordRequired    = "Password is required"
	MessageNameRequired        = "Name is required"
	MessageIDRequired          = "Id is required"
	MessagePasswordTooShort    = "Password must be at least 8 characters"
	MessagePasswordTooShortUpd = "Password must be at least 8 characters long"
	MessagePasswordUpper       = "Password must contain at least one uppercase letter"
	MessagePasswordLower       = "Password must contain at least one lowercase letter"
	MessagePasswordDigit       = "Password must contain at least one number"
	MessagePasswordSymbol      = "Password must contain at least one special character"
	MessageSignUpFailed        = "Signup Fail"
)

var (
	upperPattern  = regexp.MustCompile(`[A-Z]`)
	lowerPattern  = regexp.MustCompile(`[a-z]`)
	digitPattern  = regexp.MustCompile(`[0-9]`)
	symbolPattern = regexp.MustCompile(`[^a-zA-Z0-9]`)

	emailValidatorOnce sync.Once
	emailValidator     *validator.Validate
)

func validEmail(email string) bool {
	emailValidatorOnce.Do(func() {
		emailValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	return emailValidator.Var(email, "email") == nil
}

func notBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}

// NewSignUpValidator はサインアップ入力の検証器を生成します。
func NewSignUpValidator() *validation.Validator[SignUp] {
	v := validation.New(
		validation.Rule[SignUp]{
			Key: "email.required", Message: MessageEmailRequired,
			Check: validation.Must(func(in SignUp) bool { return notBlank(in.Email) }),
		},
		validation.Rule[SignUp]{
			Key: "email.valid", Message: MessageEmailInvalid,
			// 空の場合は required 側でのみ報告する
			Check: validation.Must(func(in SignUp) bool { return !notBlank(in.Email) || validEmail(in.Email) }),
		},
		validation.Rule[SignUp]{
			Key: "password.required", Message: MessagePasswordRequired,
			Check: validation.Must(func(in SignUp) bool { return in.Password != "" }),
		},
		validation.Rule[SignUp]{
			Key: "name.required", Message: MessageNameRequired,
			Check: validation.Must(func(in SignUp) bool { return notBlank(in.Name) }),
		},
	)
	v.Add(passwordStrengthRules(MessagePasswordTooShort, func(in SignUp) string { return in.Password })...)
	return v
}

// NewPasswordUpdateValidator はパスワード変更入力の検証器を生成します。
func NewPasswordUpdateValidator() *validation.Validator[PasswordUpdate] {
	v := validation.New(
		validation.Rule[PasswordUpdate]{
			Key: "password.required", Message: MessagePasswordRequired,
			Check: validation.Must(func(in PasswordUpdate) bool { return in.Password != "" }),
		},
	)
	v.Add(passwordStrengthRules(MessagePasswordTooShortUpd, func(in PasswordUpdate) string { return in.Password })...)
	v.Add(validation.Rule[PasswordUpdate]{
		Key: "id.required", Message: MessageIDRequired,
		Check: validation.Must(func(in PasswordUpdate) bool { return notBlank(in.ID) }),
	})
	return v
}

func passwordStrengthRules[T any](tooShort string, password func(T) string) []validation.Rule[T] {
	return []validation.Rule[T]{
		{
			Key: "password.length", Message: tooShort,
			Check: validation.Must(func(in T) bool { return len([]rune(password(in))) >= minPasswordLength }),
		},
		{
			Key: "password.uppercase", Message: MessagePasswordUpper,
			Check: validation.Must(func(in T) bool { return upperPattern.MatchString(password(in)) }),
		},
		{
			Key: "password.lowercase", Message: MessagePasswordLower,
			Check: validation.Must(func(in T) bool { return lowerPattern.MatchString(password(in)) }),
		},
		{
			Key: "password.digit", Message: MessagePasswordDigit,
			Check: validation.Must(func(in T) bool { return digitPattern.MatchString(password(in)) }),
		},
		{
			Key: "password.symbol", Message: MessagePasswordSymbol,
			Check: validation.Must(func(in T) bool { return symbolPattern.MatchString(password(in)) }),
		},
	}
}
