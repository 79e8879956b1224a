package employer

import (
	"errors"
	"testing"
	"time"
)

func TestEmployer_Age(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		birth time.Time
		want  int
	}{
		{name: "birthday today", birth: time.Date(2007, time.June, 15, 0, 0, 0, 0, time.UTC), want: 18},
		{name: "birthday tomorrow", birth: time.Date(2007, time.June, 16, 0, 0, 0, 0, time.UTC), want: 17},
		{name: "birthday passed", birth: time.Date(2007, time.January, 1, 0, 0, 0, 0, time.UTC), want: 18},
		{name: "leap day before feb 28", birth: time.Date(2004, time.February, 29, 0, 0, 0, 0, time.UTC), want: 21},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := &Employer{BirthDate: tt.birth}
			if got := e.Age(now); got != tt.want {
				t.Fatalf("Age() = %d, want %d", got, tt.want)
			}
		})
	}

	leap := &Employer{BirthDate: time.Date(2004, time.February, 29, 0, 0, 0, 0, time.UTC)}
	if got := leap.Age(time.Date(2022, time.February, 28, 0, 0, 0, 0, time.UTC)); got != 17 {
		t.Fatalf("leap day birthday counted early: %d", got)
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	cases := map[string]Role{
		"employee":  RoleEmployee,
		"Developer": RoleDeveloper,
		"team-lead": RoleTeamLead,
		"TeamLead":  RoleTeamLead,
		" manager ": RoleManager,
		"CFO":       RoleCfo,
		"admin":     RoleAdmin,
	}
	for raw, want := range cases {
		got, err := ParseRole(raw)
		if err != nil {
			t.Fatalf("ParseRole(%q) error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseRole(%q) = %s, want %s", raw, got, want)
		}
	}

	if _, err := ParseRole("intern"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestRole_Ordering(t *testing.T) {
	t.Parallel()

	order := []Role{RoleEmployee, RoleDeveloper, RoleTeamLead, RoleManager, RoleCfo, RoleAdmin}
	for i := 1; i < len(order); i++ {
		if !(order[i-1] < order[i]) {
			t.Fatalf("%s must be below %s", order[i-1], order[i])
		}
	}
	if Role(42).Valid() {
		t.Fatalf("unexpected valid role")
	}
}

func TestNewPage(t *testing.T) {
	t.Parallel()

	if p := NewPage(nil, 21, 1, 10); p.TotalPages != 3 {
		t.Fatalf("expected 3 pages, got %d", p.TotalPages)
	}
	if p := NewPage(nil, 20, 1, 10); p.TotalPages != 2 {
		t.Fatalf("expected 2 pages, got %d", p.TotalPages)
	}
	if p := NewPage(nil, 5, 1, 0); p.TotalPages != 0 {
		t.Fatalf("expected 0 pages for zero size, got %d", p.TotalPages)
	}
}
