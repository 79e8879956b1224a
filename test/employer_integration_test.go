//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	repo "github.com/ogurasousui/employer-onboarding/internal/adapters/repository/postgres"
	"github.com/ogurasousui/employer-onboarding/internal/core/employer"
	"github.com/ogurasousui/employer-onboarding/internal/core/identity"
	"github.com/ogurasousui/employer-onboarding/internal/core/notification"
	"github.com/ogurasousui/employer-onboarding/internal/platform/config"
	pg "github.com/ogurasousui/employer-onboarding/internal/platform/db/postgres"
	"github.com/ogurasousui/employer-onboarding/internal/platform/requestctx"
)

const (
	migrationsDir = "../assets/migrations"
	callerID      = "auth0|integration-caller"
)

type stubProvider struct{}

func (stubProvider) Provision(_ context.Context, in identity.SignUp) (string, error) {
	return "auth0|" + in.Email, nil
}

func (stubProvider) FetchProfile(_ context.Context, externalID string) (identity.Profile, error) {
	return identity.Profile{Picture: "https://cdn.example.com/" + externalID}, nil
}

func (stubProvider) UpdatePassword(context.Context, string, string) error { return nil }

func (stubProvider) Deprovision(context.Context, string) error { return nil }

func TestEmployerWorkflowIntegration(t *testing.T) {
	cfg, err := config.Load(configPathFromEnv())
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if err := resetMigrations(cfg.Database.DSN(), migrationsDir); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	ctx := context.Background()
	pool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	reader := repo.NewEmployerRepository(pool)
	caller := callerID
	if _, err := reader.Create(ctx, &employer.Employer{
		ID:          "00000000-0000-4000-8000-000000000001",
		FirstName:   "Root",
		LastName:    "Admin",
		TaxDocument: "00000000000",
		Email:       "root@example.com",
		BirthDate:   time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
		Role:        employer.RoleAdmin,
		ExternalID:  &caller,
		Status:      employer.StatusActive,
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		t.Fatalf("failed to seed caller: %v", err)
	}

	svc := employer.NewService(
		repo.NewUnitOfWorkFactory(pool),
		reader,
		stubProvider{},
		employer.WithTransactionManager(pg.NewTransactionManager(pool)),
		employer.WithLogger(zap.NewNop()),
	)

	requestCtx := func() (context.Context, *notification.Store) {
		store := notification.NewStore()
		c := requestctx.WithCaller(ctx, callerID)
		return notification.WithStore(c, store), store
	}

	input := employer.CreateInput{
		FirstName:   "Ana",
		LastName:    "Silva",
		Email:       "ana@example.com",
		TaxDocument: "12345678900",
		BirthDate:   time.Date(1990, 4, 2, 0, 0, 0, 0, time.UTC),
		Role:        employer.RoleDeveloper,
		Phones:      []string{"+55 11 99999-0000", "+55 11 98888-0000"},
		Password:    "Secr3t!pw",
	}

	c, notes := requestCtx()
	created, err := svc.Create(c, input)
	if err != nil || created == nil {
		t.Fatalf("Create failed: %v %v", err, notes.Messages())
	}

	found, err := reader.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if found.ExternalIDValue() != "auth0|ana@example.com" || len(found.Phones) != 2 {
		t.Fatalf("unexpected stored employer %+v", found)
	}

	c, notes = requestCtx()
	duplicate := input
	duplicate.Email = "other@example.com"
	if result, err := svc.Create(c, duplicate); err != nil || result != nil {
		t.Fatalf("expected rejection, got %v %v", result, err)
	}
	if !contains(notes.Messages(), employer.MessageTaxDocumentUnique) {
		t.Fatalf("expected uniqueness notification, got %v", notes.Messages())
	}

	c, notes = requestCtx()
	updated, err := svc.Update(c, employer.UpdateInput{
		ID:          created.ID,
		FirstName:   "Ana",
		LastName:    "Souza",
		Email:       "ana@example.com",
		TaxDocument: "12345678900",
		BirthDate:   input.BirthDate,
		Role:        employer.RoleManager,
		Phones:      []string{"+55 11 97777-0000"},
	})
	if err != nil || updated == nil {
		t.Fatalf("Update failed: %v %v", err, notes.Messages())
	}

	found, err = reader.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if found.LastName != "Souza" || found.Role != employer.RoleManager || len(found.Phones) != 1 || found.UpdatedAt == nil {
		t.Fatalf("update not applied: %+v", found)
	}

	c, _ = requestCtx()
	page, err := svc.List(c, employer.ListInput{PageNumber: 1, PageSize: 1})
	if err != nil || page == nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.TotalItems != 2 || page.TotalPages != 2 || len(page.Items) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}

	c, notes = requestCtx()
	if result, err := svc.Delete(c, created.ID); err != nil || result == nil {
		t.Fatalf("Delete failed: %v %v", err, notes.Messages())
	}
	if _, err := reader.FindByID(ctx, created.ID); !errors.Is(err, employer.ErrEmployerNotFound) {
		t.Fatalf("expected ErrEmployerNotFound, got %v", err)
	}

	c, notes = requestCtx()
	if result, err := svc.Delete(c, created.ID); err != nil || result != nil {
		t.Fatalf("expected not-found rejection, got %v %v", result, err)
	}
	if !contains(notes.Messages(), employer.NotFoundMessage(created.ID)) {
		t.Fatalf("expected not-found notification, got %v", notes.Messages())
	}
}

func resetMigrations(dsn, dir string) error {
	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func configPathFromEnv() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "../assets/local.yaml"
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
