package validation

import (
	"context"
	"fmt"
)

// CheckFunc は候補が規則を満たす場合に true を返します。
// error は規則の評価自体に失敗したことを表し、業務上の不合格とは区別されます。
type CheckFunc[T any] func(ctx context.Context, candidate T) (bool, error)

// Rule は検証規則 1 件です。
type Rule[T any] struct {
	Key     string
	Message string
	Check   CheckFunc[T]
}

// Failure は不合格となった規則です。
type Failure struct {
	Key     string
	Message string
}

// Result は検証結果です。
type Result struct {
	Failures []Failure
}

// Valid は不合格の規則が無い場合に true を返します。
func (r Result) Valid() bool {
	return len(r.Failures) == 0
}

// Messages は不合格メッセージを登録順に返します。
func (r Result) Messages() []string {
	out := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, f.Message)
	}
	return out
}

// Validator は登録順に規則を評価する検証器です。
type Validator[T any] struct {
	rules []Rule[T]
}

// New は Validator を生成します。
func New[T any](rules ...Rule[T]) *Validator[T] {
	v := &Validator[T]{}
	v.Add(rules...)
	return v
}

// Add は規則を末尾に登録します。
func (v *Validator[T]) Add(rules ...Rule[T]) *Validator[T] {
	for _, r := range rules {
		if r.Check == nil {
			continue
		}
		v.rules = append(v.rules, r)
	}
	return v
}

// Len は登録済みの規則数を返します。
func (v *Validator[T]) Len() int {
	return len(v.rules)
}

// Validate はすべての規則を評価し、不合格をすべて集約して返します。
// 最初の不合格で打ち切ることはありません。
func (v *Validator[T]) Validate(ctx context.Context, candidate T) (Result, error) {
	var result Result
	for _, r := range v.rules {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		ok, err := r.Check(ctx, candidate)
		if err != nil {
			return Result{}, fmt.Errorf("validation: rule %s: %w", r.Key, err)
		}
		if !ok {
			result.Failures = append(result.Failures, Failure{Key: r.Key, Message: r.Message})
		}
	}
	return result, nil
}

// Must は同期的な述語を CheckFunc に変換します。
func Must[T any](pred func(candidate T) bool) CheckFunc[T] {
	return func(_ context.Context, candidate T) (bool, error) {
		return pred(candidate), nil
	}
}
