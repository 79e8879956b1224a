package employer

import (
	"fmt"
	"strings"
	"time"
)

// Status は社員レコードの状態を表します。
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Role は社員の役割レベルです。値が大きいほど上位です。
type Role int

const (
	RoleEmployee Role = iota
	RoleDeveloper
	RoleTeamLead
	RoleManager
	RoleCfo
	RoleAdmin
)

var roleNames = [...]string{
	RoleEmployee:  "employee",
	RoleDeveloper: "developer",
	RoleTeamLead:  "team_lead",
	RoleManager:   "manager",
	RoleCfo:       "cfo",
	RoleAdmin:     "admin",
}

// Valid は定義済みの役割かを返します。
func (r Role) Valid() bool {
	return r >= RoleEmployee && r <= RoleAdmin
}

func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("role(%d)", int(r))
	}
	return roleNames[r]
}

// ParseRole は役割名を Role に変換します。大文字小文字と区切り文字の違いは無視します。
func ParseRole(raw string) (Role, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	if normalized == "teamlead" {
		normalized = "team_lead"
	}
	for i, name := range roleNames {
		if name == normalized {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("%q: %w", raw, ErrInvalidRole)
}

// Phone は社員の電話番号です。
type Phone struct {
	ID         string
	EmployerID string
	Number     string
}

// Employer は社員エンティティです。
// ID は永続化されるまで空です。
type Employer struct {
	ID          string
	FirstName   string
	LastName    string
	TaxDocument string
	Email       string
	BirthDate   time.Time
	Role        Role
	ManagerID   *string
	ExternalID  *string
	Avatar      *string
	Phones      []Phone
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// Age は now 時点の満年齢を返します。
func (e *Employer) Age(now time.Time) int {
	birth := e.BirthDate.UTC()
	now = now.UTC()

	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

// FullName は "名 姓" 形式の氏名を返します。
func (e *Employer) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// ExternalIDValue は外部 ID を返します。未設定なら空文字です。
func (e *Employer) ExternalIDValue() string {
	if e.ExternalID == nil {
		return ""
	}
	return *e.ExternalID
}

// Page は一覧取得の結果です。
type Page struct {
	Items      []*Employer
	TotalItems int
	PageNumber int
	PageSize   int
	TotalPages int
}

// NewPage は総件数からページ数を計算して Page を組み立てます。
func NewPage(items []*Employer, total, pageNumber, pageSize int) *Page {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return &Page{
		Items:      items,
		TotalItems: total,
		PageNumber: pageNumber,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func isValidStatus(status Status) bool {
	switch status {
	case StatusActive, StatusInactive:
		return true
	default:
		return false
	}
}
