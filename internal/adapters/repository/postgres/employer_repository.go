package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ogurasousui/employer-onboarding/internal/core/employer"
	pgdb "github.com/ogurasousui/employer-onboarding/internal/platform/db/postgres"
)

const (
	employerUniqueViolationCode     = "23505"
	employerForeignKeyViolationCode = "23503"
	employerCheckViolationCode      = "23514"

	employerTaxDocumentConstraint = "employers_tax_document_key"
	employerManagerConstraint     = "employers_manager_id_fkey"
)

const employerColumns = `e.id,
               e.first_name,
               e.last_name,
               e.tax_document,
               e.email,
               e.birth_date,
               e.role,
               e.manager_id,
               e.external_id,
               e.avatar,
               e.status,
               e.created_at,
               e.updated_at`

// EmployerRepository は PostgreSQL を利用した社員永続化の実装です。
type EmployerRepository struct {
	db pgdb.Queryer
}

var _ employer.Repository = (*EmployerRepository)(nil)

// NewEmployerRepository は EmployerRepository を生成します。
// db には pgxpool.Pool または UnitOfWork を渡します。
func NewEmployerRepository(db pgdb.Queryer) *EmployerRepository {
	return &EmployerRepository{db: db}
}

// Create は社員と電話番号を登録します。
func (r *EmployerRepository) Create(ctx context.Context, e *employer.Employer) (*employer.Employer, error) {
	exec := pgdb.QueryerFromContext(ctx, r.db)
	row := exec.QueryRow(ctx, `
        INSERT INTO employers AS e (id, first_name, last_name, tax_document, email, birth_date, role,
                                    manager_id, external_id, avatar, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING `+employerColumns,
		e.ID,
		e.FirstName,
		e.LastName,
		e.TaxDocument,
		e.Email,
		dateOnly(e.BirthDate),
		int16(e.Role),
		e.ManagerID,
		e.ExternalID,
		e.Avatar,
		string(e.Status),
		e.CreatedAt,
		e.UpdatedAt,
	)

	created, err := scanEmployer(row)
	if err != nil {
		return nil, translateEmployerPgError(err)
	}

	phones, err := r.insertPhones(ctx, exec, created.ID, e.Phones)
	if err != nil {
		return nil, err
	}
	created.Phones = phones
	return created, nil
}

// Update は社員を更新し、電話番号を置き換えます。
func (r *EmployerRepository) Update(ctx context.Context, e *employer.Employer) (*employer.Employer, error) {
	exec := pgdb.QueryerFromContext(ctx, r.db)
	row := exec.QueryRow(ctx, `
        UPDATE employers AS e
           SET first_name = $1,
               last_name = $2,
               tax_document = $3,
               email = $4,
               birth_date = $5,
               role = $6,
               manager_id = $7,
               avatar = $8,
               status = $9,
               updated_at = $10
         WHERE e.id = $11
        RETURNING `+employerColumns,
		e.FirstName,
		e.LastName,
		e.TaxDocument,
		e.Email,
		dateOnly(e.BirthDate),
		int16(e.Role),
		e.ManagerID,
		e.Avatar,
		string(e.Status),
		e.UpdatedAt,
		e.ID,
	)

	updated, err := scanEmployer(row)
	if err != nil {
		return nil, translateEmployerPgError(err)
	}

	if _, err := exec.Exec(ctx, `DELETE FROM employer_phones WHERE employer_id = $1`, updated.ID); err != nil {
		return nil, translateEmployerPgError(err)
	}

	phones, err := r.insertPhones(ctx, exec, updated.ID, e.Phones)
	if err != nil {
		return nil, err
	}
	updated.Phones = phones
	return updated, nil
}

// Delete は社員を削除します。電話番号は外部キーの ON DELETE CASCADE で削除されます。
func (r *EmployerRepository) Delete(ctx context.Context, id string) error {
	exec := pgdb.QueryerFromContext(ctx, r.db)
	tag, err := exec.Exec(ctx, `DELETE FROM employers WHERE id = $1`, id)
	if err != nil {
		return translateEmployerPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return employer.ErrEmployerNotFound
	}
	return nil
}

// FindByID は ID で社員を取得します。
func (r *EmployerRepository) FindByID(ctx context.Context, id string) (*employer.Employer, error) {
	return r.findOne(ctx, "e.id = $1", id)
}

// FindByTaxDocument は納税者番号で社員を取得します。状態を問わず検索します。
func (r *EmployerRepository) FindByTaxDocument(ctx context.Context, taxDocument string) (*employer.Employer, error) {
	return r.findOne(ctx, "e.tax_document = $1", taxDocument)
}

// FindByExternalID は IdP の外部 ID で社員を取得します。
func (r *EmployerRepository) FindByExternalID(ctx context.Context, externalID string) (*employer.Employer, error) {
	return r.findOne(ctx, "e.external_id = $1", externalID)
}

func (r *EmployerRepository) findOne(ctx context.Context, condition string, arg any) (*employer.Employer, error) {
	exec := pgdb.QueryerFromContext(ctx, r.db)
	row := exec.QueryRow(ctx, `
        SELECT `+employerColumns+`
          FROM employers e
         WHERE `+condition+`
         LIMIT 1
    `, arg)

	found, err := scanEmployer(row)
	if err != nil {
		return nil, translateEmployerPgError(err)
	}

	phones, err := r.loadPhones(ctx, exec, []string{found.ID})
	if err != nil {
		return nil, err
	}
	found.Phones = phones[found.ID]
	return found, nil
}

// List は社員の一覧と、フィルタに一致する総件数を返します。
func (r *EmployerRepository) List(ctx context.Context, filter employer.ListFilter) ([]*employer.Employer, int, error) {
	if filter.Limit <= 0 {
		return nil, 0, employer.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, 0, employer.ErrInvalidPageNumber
	}

	args := make([]any, 0, 3)
	whereClause := ""
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		whereClause = " WHERE e.status = $" + strconv.Itoa(len(args))
	}

	exec := pgdb.QueryerFromContext(ctx, r.db)

	var total int64
	if err := exec.QueryRow(ctx, `SELECT COUNT(*) FROM employers e`+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, translateEmployerPgError(err)
	}
	if total == 0 {
		return []*employer.Employer{}, 0, nil
	}

	limitPlaceholder := "$" + strconv.Itoa(len(args)+1)
	args = append(args, filter.Limit)
	offsetPlaceholder := "$" + strconv.Itoa(len(args)+1)
	args = append(args, filter.Offset)

	rows, err := exec.Query(ctx, `
        SELECT `+employerColumns+`
          FROM employers e`+whereClause+`
         ORDER BY e.created_at DESC, e.id DESC
         LIMIT `+limitPlaceholder+`
        OFFSET `+offsetPlaceholder, args...)
	if err != nil {
		return nil, 0, translateEmployerPgError(err)
	}

	employers := make([]*employer.Employer, 0, filter.Limit)
	ids := make([]string, 0, filter.Limit)
	for rows.Next() {
		e, err := scanEmployer(rows)
		if err != nil {
			rows.Close()
			return nil, 0, translateEmployerPgError(err)
		}
		employers = append(employers, e)
		ids = append(ids, e.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, translateEmployerPgError(err)
	}

	if len(ids) > 0 {
		phones, err := r.loadPhones(ctx, exec, ids)
		if err != nil {
			return nil, 0, err
		}
		for _, e := range employers {
			e.Phones = phones[e.ID]
		}
	}

	return employers, int(total), nil
}

func (r *EmployerRepository) insertPhones(ctx context.Context, exec pgdb.Queryer, employerID string, phones []employer.Phone) ([]employer.Phone, error) {
	if len(phones) == 0 {
		return nil, nil
	}
	saved := make([]employer.Phone, 0, len(phones))
	for _, p := range phones {
		if _, err := exec.Exec(ctx, `
            INSERT INTO employer_phones (id, employer_id, number)
            VALUES ($1, $2, $3)
        `, p.ID, employerID, p.Number); err != nil {
			return nil, translateEmployerPgError(err)
		}
		saved = append(saved, employer.Phone{ID: p.ID, EmployerID: employerID, Number: p.Number})
	}
	return saved, nil
}

func (r *EmployerRepository) loadPhones(ctx context.Context, exec pgdb.Queryer, employerIDs []string) (map[string][]employer.Phone, error) {
	rows, err := exec.Query(ctx, `
        SELECT id, employer_id, number
          FROM employer_phones
         WHERE employer_id = ANY($1)
         ORDER BY employer_id, number, id
    `, employerIDs)
	if err != nil {
		return nil, translateEmployerPgError(err)
	}
	defer rows.Close()

	out := make(map[string][]employer.Phone, len(employerIDs))
	for rows.Next() {
		var p employer.Phone
		if err := rows.Scan(&p.ID, &p.EmployerID, &p.Number); err != nil {
			return nil, translateEmployerPgError(err)
		}
		out[p.EmployerID] = append(out[p.EmployerID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, translateEmployerPgError(err)
	}
	return out, nil
}

func scanEmployer(row pgx.Row) (*employer.Employer, error) {
	var (
		id          string
		firstName   string
		lastName    string
		taxDocument string
		email       string
		birthDate   time.Time
		role        int16
		managerID   sql.NullString
		externalID  sql.NullString
		avatar      sql.NullString
		status      string
		createdAt   time.Time
		updatedAt   sql.NullTime
	)

	if err := row.Scan(
		&id,
		&firstName,
		&lastName,
		&taxDocument,
		&email,
		&birthDate,
		&role,
		&managerID,
		&externalID,
		&avatar,
		&status,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, employer.ErrEmployerNotFound
		}
		return nil, err
	}

	e := &employer.Employer{
		ID:          id,
		FirstName:   firstName,
		LastName:    lastName,
		TaxDocument: taxDocument,
		Email:       email,
		BirthDate:   dateOnly(birthDate),
		Role:        employer.Role(role),
		ManagerID:   nullableString(managerID),
		ExternalID:  nullableString(externalID),
		Avatar:      nullableString(avatar),
		Status:      employer.Status(status),
		CreatedAt:   createdAt.UTC(),
	}
	if updatedAt.Valid {
		t := updatedAt.Time.UTC()
		e.UpdatedAt = &t
	}
	return e, nil
}

func translateEmployerPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return employer.ErrEmployerNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case employerUniqueViolationCode:
			if pgErr.ConstraintName == employerTaxDocumentConstraint || strings.Contains(pgErr.ConstraintName, "tax_document") {
				return employer.ErrTaxDocumentAlreadyExists
			}
			return err
		case employerForeignKeyViolationCode:
			if pgErr.ConstraintName == employerManagerConstraint {
				return employer.ErrManagerNotFound
			}
			return err
		case employerCheckViolationCode:
			switch {
			case strings.Contains(pgErr.ConstraintName, "role"):
				return employer.ErrInvalidRole
			case strings.Contains(pgErr.ConstraintName, "status"):
				return employer.ErrInvalidStatus
			}
		}
	}

	return err
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
