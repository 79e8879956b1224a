package employer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ogurasousui/employer-onboarding/internal/core/validation"
	"github.com/ogurasousui/employer-onboarding/internal/platform/requestctx"
)

const majorityAge = 18

// 通知メッセージ
const (
	MessageTaxDocumentRequired = "Tax document is required"
	MessageTaxDocumentUnique   = "Tax document must be unique"
	MessageFirstNameRequired   = "First name is required"
	MessageLastNameRequired    = "Last name is required"
	MessageBirthDateRequired   = "Birth date is required"
	MessageBirthDateValid      = "Birth date must be valid"
	MessageRoleHierarchy       = "Type level must be less than or equal to current employer's type"
	MessageAgeMajority         = "Age must be 18 or greater"
	MessageExternalIDRequired  = "External ID is required"
)

// Operation は検証対象の操作種別です。
type Operation int

const (
	OperationCreate Operation = iota
	OperationUpdate
)

// Lookup は検証規則が参照するストア照会です。
type Lookup interface {
	FindByTaxDocument(ctx context.Context, taxDocument string) (*Employer, error)
	FindByExternalID(ctx context.Context, externalID string) (*Employer, error)
}

var (
	minBirthDate = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	maxBirthDate = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// NewValidator は社員候補の検証器を生成します。
// 外部 ID は作成時にはプロビジョニング後に付与されるため、更新時のみ必須です。
func NewValidator(lookup Lookup, clock Clock, op Operation) *validation.Validator[*Employer] {
	if clock == nil {
		clock = realClock{}
	}

	v := validation.New(
		validation.Rule[*Employer]{
			Key: "tax_document.required", Message: MessageTaxDocumentRequired,
			Check: validation.Must(func(e *Employer) bool { return notBlank(e.TaxDocument) }),
		},
		validation.Rule[*Employer]{
			Key: "tax_document.unique", Message: MessageTaxDocumentUnique,
			Check: taxDocumentIsUnique(lookup),
		},
		validation.Rule[*Employer]{
			Key: "first_name.required", Message: MessageFirstNameRequired,
			Check: validation.Must(func(e *Employer) bool { return notBlank(e.FirstName) }),
		},
		validation.Rule[*Employer]{
			Key: "last_name.required", Message: MessageLastNameRequired,
			Check: validation.Must(func(e *Employer) bool { return notBlank(e.LastName) }),
		},
		validation.Rule[*Employer]{
			Key: "birth_date.required", Message: MessageBirthDateRequired,
			Check: validation.Must(func(e *Employer) bool { return !e.BirthDate.IsZero() }),
		},
		validation.Rule[*Employer]{
			Key: "birth_date.valid", Message: MessageBirthDateValid,
			Check: validation.Must(func(e *Employer) bool {
				birth := e.BirthDate.UTC()
				return birth.After(minBirthDate) && birth.Before(maxBirthDate) && !birth.After(clock.Now())
			}),
		},
		validation.Rule[*Employer]{
			Key: "role.hierarchy", Message: MessageRoleHierarchy,
			Check: roleWithinCallerCeiling(lookup),
		},
		validation.Rule[*Employer]{
			Key: "age.majority", Message: MessageAgeMajority,
			Check: validation.Must(func(e *Employer) bool { return e.Age(clock.Now()) >= majorityAge }),
		},
	)

	if op == OperationUpdate {
		v.Add(validation.Rule[*Employer]{
			Key: "external_id.required", Message: MessageExternalIDRequired,
			Check: validation.Must(func(e *Employer) bool { return notBlank(e.ExternalIDValue()) }),
		})
	}
	return v
}

func taxDocumentIsUnique(lookup Lookup) validation.CheckFunc[*Employer] {
	return func(ctx context.Context, e *Employer) (bool, error) {
		taxDocument := strings.TrimSpace(e.TaxDocument)
		if taxDocument == "" {
			return true, nil
		}

		found, err := lookup.FindByTaxDocument(ctx, taxDocument)
		if errors.Is(err, ErrEmployerNotFound) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return found == nil || (e.ID != "" && found.ID == e.ID), nil
	}
}

// 呼び出し元が特定できない場合や呼び出し元のレコードが無い場合は不合格とする
func roleWithinCallerCeiling(lookup Lookup) validation.CheckFunc[*Employer] {
	return func(ctx context.Context, e *Employer) (bool, error) {
		caller := strings.TrimSpace(requestctx.CallerFromContext(ctx))
		if caller == "" {
			return false, nil
		}

		current, err := lookup.FindByExternalID(ctx, caller)
		if errors.Is(err, ErrEmployerNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if current == nil {
			return false, nil
		}
		return e.Role <= current.Role, nil
	}
}

func notBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}
