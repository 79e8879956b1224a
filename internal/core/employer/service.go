package employer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ogurasousui/employer-onboarding/internal/core/identity"
	"github.com/ogurasousui/employer-onboarding/internal/core/notification"
	"github.com/ogurasousui/employer-onboarding/internal/core/validation"
	"github.com/ogurasousui/employer-onboarding/internal/platform/logger"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// 成功メッセージ
const (
	MessageCreated         = "Employee created successfully."
	MessageUpdated         = "Employee updated successfully."
	MessageDeleted         = "Employee deleted successfully."
	MessagePasswordUpdated = "Password updated successfully."
	MessagePageSizeInvalid = "Page size must be between 1 and 100"
	MessagePageNumberRange = "Page number is out of range"
	MessageStatusInvalid   = "Status must be active or inactive"
	MessageRoleInvalid     = "Type level must be valid"
	MessageManagerInvalid  = "Manager ID must be valid"
)

// ワークフローの結果ラベル
const (
	outcomeSucceeded       = "succeeded"
	outcomeRejected        = "rejected"
	outcomeProvisionFailed = "provision_failed"
	outcomeNotFound        = "not_found"
	outcomeFaulted         = "faulted"
)

// NotFoundMessage は社員が見つからない場合の通知メッセージです。
func NotFoundMessage(id string) string {
	return fmt.Sprintf("Employee not found (Id: %s)", id)
}

// ManagerNotFoundMessage は上長が見つからない場合の通知メッセージです。
func ManagerNotFoundMessage(id string) string {
	return fmt.Sprintf("Manager not found (Id: %s)", id)
}

// UseCase は社員ワークフローの公開インターフェースです。
//
// 業務上の失敗は context の通知ストアに書き込まれ (nil, nil) が返ります。
// 呼び出し元は notification.WithStore でストアを格納しておく必要があります。
// 格納がない場合、通知は破棄され警告ログだけが残ります。
// 想定外の障害はロールバック後に ErrInternal（キャンセル時は context のエラー）を返します。
type UseCase interface {
	Create(ctx context.Context, in CreateInput) (*Result, error)
	Update(ctx context.Context, in UpdateInput) (*Result, error)
	Delete(ctx context.Context, id string) (*Result, error)
	Get(ctx context.Context, id string) (*Employer, error)
	List(ctx context.Context, in ListInput) (*Page, error)
	UpdatePassword(ctx context.Context, in UpdatePasswordInput) (*Result, error)
}

// CreateInput は社員作成時の入力です。
type CreateInput struct {
	FirstName   string
	LastName    string
	Email       string
	TaxDocument string
	BirthDate   time.Time
	Role        Role
	ManagerID   string
	Phones      []string
	Password    string
}

// UpdateInput は社員更新時の入力です。外部 ID と作成日時は変更できません。
type UpdateInput struct {
	ID          string
	FirstName   string
	LastName    string
	Email       string
	TaxDocument string
	BirthDate   time.Time
	Role        Role
	ManagerID   string
	Phones      []string
	Avatar      *string
}

// UpdatePasswordInput はパスワード変更時の入力です。
type UpdatePasswordInput struct {
	ID       string
	Password string
}

// ListInput は一覧取得時の入力です。
type ListInput struct {
	PageNumber int
	PageSize   int
	Status     *Status
}

// Result は成功時の応答です。
type Result struct {
	Message string
	ID      string
}

// Service は社員のオンボーディングと変更のワークフローをまとめます。
type Service struct {
	uow        UnitOfWorkFactory
	reader     Repository
	provider   identity.Provider
	tx         TransactionManager
	clock      Clock
	newID      func() string
	publisher  EventPublisher
	recorder   Recorder
	tracer     trace.Tracer
	log        *zap.Logger
	compensate bool

	signUpValidator   *validation.Validator[identity.SignUp]
	passwordValidator *validation.Validator[identity.PasswordUpdate]
}

// Option は Service の任意設定です。
type Option func(*Service)

func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithTransactionManager(tx TransactionManager) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
		}
	}
}

// WithIDGenerator は社員と電話番号の ID 生成関数を差し替えます。
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithCompensation はプロビジョニング後に作成が失敗した場合、
// 作成済みの外部アカウントを削除するかを設定します。既定は無効です。
func WithCompensation(enabled bool) Option {
	return func(s *Service) {
		s.compensate = enabled
	}
}

// NewService は Service を生成します。reader は読み取り専用経路で使います。
func NewService(uow UnitOfWorkFactory, reader Repository, provider identity.Provider, opts ...Option) *Service {
	s := &Service{
		uow:               uow,
		reader:            reader,
		provider:          provider,
		tx:                noopTransactionManager{},
		clock:             realClock{},
		newID:             uuid.NewString,
		publisher:         noopPublisher{},
		recorder:          noopRecorder{},
		tracer:            otel.Tracer("github.com/ogurasousui/employer-onboarding/internal/core/employer"),
		signUpValidator:   identity.NewSignUpValidator(),
		passwordValidator: identity.NewPasswordUpdateValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create は検証、IdP へのプロビジョニング、永続化の順に社員を作成します。
func (s *Service) Create(ctx context.Context, in CreateInput) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "employer.Create")
	defer span.End()

	log := s.logger(ctx).With(logger.Op("create"))
	notes := s.notes(ctx)
	uow := s.uow.New()

	log.Info("starting employer creation", zap.String("name", strings.TrimSpace(in.FirstName+" "+in.LastName)))

	candidate := s.buildCandidate(in)

	result, err := s.validateEmployer(ctx, uow.Employers(), candidate, OperationCreate)
	if err != nil {
		return s.fail(ctx, uow, "create", err)
	}
	if !result.Valid() {
		return s.reject(ctx, "create", result)
	}

	signUp := identity.NewSignUp(in.FirstName, in.LastName, in.Email, in.Password)
	signUpResult, err := s.signUpValidator.Validate(ctx, signUp)
	if err != nil {
		return s.fail(ctx, uow, "create", err)
	}
	if !signUpResult.Valid() {
		return s.reject(ctx, "create", signUpResult)
	}

	externalID, err := s.provision(ctx, signUp)
	if err != nil {
		return s.fail(ctx, uow, "create", err)
	}
	if externalID == "" {
		log.Warn("signup failed: provider returned no id")
		notes.Add(identity.MessageSignUpFailed)
		s.recorder.Observe("create", outcomeProvisionFailed)
		return nil, nil
	}
	log = log.With(logger.ExternalID(externalID))

	profile, err := s.provider.FetchProfile(ctx, externalID)
	if err != nil {
		return s.failAfterProvision(ctx, uow, externalID, err)
	}

	candidate.ExternalID = &externalID
	if picture := strings.TrimSpace(profile.Picture); picture != "" {
		candidate.Avatar = &picture
	}
	s.assignIdentifiers(candidate)
	candidate.Status = StatusActive
	candidate.CreatedAt = s.clock.Now()

	persistCtx, persistSpan := s.tracer.Start(ctx, "employer.Create.persist")
	created, err := s.persist(persistCtx, uow, func(repo Repository) (*Employer, error) {
		return repo.Create(persistCtx, candidate)
	})
	persistSpan.End()
	if err != nil {
		if s.notifyConflict(ctx, err, candidate) {
			s.rollback(ctx, uow)
			s.orphaned(ctx, externalID, err)
			s.recorder.Observe("create", outcomeRejected)
			return nil, nil
		}
		return s.failAfterProvision(ctx, uow, externalID, err)
	}

	log.Info("employer created", logger.EmployerID(created.ID))
	s.recorder.Observe("create", outcomeSucceeded)
	s.publish(ctx, EventCreated, created)
	span.SetAttributes(attribute.String("employer.id", created.ID))

	return &Result{Message: MessageCreated, ID: created.ID}, nil
}

// Update はトランザクション内で既存レコードを取得し、検証の上で更新します。
func (s *Service) Update(ctx context.Context, in UpdateInput) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "employer.Update")
	defer span.End()

	id := strings.TrimSpace(in.ID)
	log := s.logger(ctx).With(logger.Op("update"), logger.EmployerID(id))
	notes := s.notes(ctx)
	uow := s.uow.New()

	log.Info("starting employer update")

	if !isValidID(id) {
		notes.AddWithKey("id.valid", NotFoundMessage(in.ID))
		s.recorder.Observe("update", outcomeNotFound)
		return nil, nil
	}

	if err := uow.Begin(ctx); err != nil {
		return s.fail(ctx, uow, "update", err)
	}
	repo := uow.Employers()

	existing, err := repo.FindByID(ctx, id)
	if errors.Is(err, ErrEmployerNotFound) {
		log.Warn("employer not found")
		s.rollback(ctx, uow)
		notes.AddWithKey("id.exists", NotFoundMessage(id))
		s.recorder.Observe("update", outcomeNotFound)
		return nil, nil
	}
	if err != nil {
		return s.fail(ctx, uow, "update", err)
	}

	s.applyUpdate(existing, in)

	result, err := s.validateEmployer(ctx, repo, existing, OperationUpdate)
	if err != nil {
		return s.fail(ctx, uow, "update", err)
	}
	if !result.Valid() {
		s.rollback(ctx, uow)
		return s.reject(ctx, "update", result)
	}

	updated, err := repo.Update(ctx, existing)
	if err != nil {
		if s.notifyConflict(ctx, err, existing) {
			s.rollback(ctx, uow)
			s.recorder.Observe("update", outcomeRejected)
			return nil, nil
		}
		if errors.Is(err, ErrEmployerNotFound) {
			s.rollback(ctx, uow)
			notes.AddWithKey("id.exists", NotFoundMessage(id))
			s.recorder.Observe("update", outcomeNotFound)
			return nil, nil
		}
		return s.fail(ctx, uow, "update", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return s.fail(ctx, uow, "update", err)
	}

	log.Info("employer updated")
	s.recorder.Observe("update", outcomeSucceeded)
	s.publish(ctx, EventUpdated, updated)

	return &Result{Message: MessageUpdated, ID: id}, nil
}

// Delete は検証とプロビジョニングを行わずに社員を削除します。
func (s *Service) Delete(ctx context.Context, id string) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "employer.Delete")
	defer span.End()

	id = strings.TrimSpace(id)
	log := s.logger(ctx).With(logger.Op("delete"), logger.EmployerID(id))
	notes := s.notes(ctx)
	uow := s.uow.New()

	log.Info("starting employer deletion")

	if !isValidID(id) {
		notes.AddWithKey("id.valid", NotFoundMessage(id))
		s.recorder.Observe("delete", outcomeNotFound)
		return nil, nil
	}

	if err := uow.Begin(ctx); err != nil {
		return s.fail(ctx, uow, "delete", err)
	}

	err := uow.Employers().Delete(ctx, id)
	if errors.Is(err, ErrEmployerNotFound) {
		log.Warn("employer not found")
		s.rollback(ctx, uow)
		notes.AddWithKey("id.exists", NotFoundMessage(id))
		s.recorder.Observe("delete", outcomeNotFound)
		return nil, nil
	}
	if err != nil {
		return s.fail(ctx, uow, "delete", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return s.fail(ctx, uow, "delete", err)
	}

	log.Info("employer deleted")
	s.recorder.Observe("delete", outcomeSucceeded)
	s.publish(ctx, EventDeleted, &Employer{ID: id})

	return &Result{Message: MessageDeleted, ID: id}, nil
}

// Get は社員を取得します。見つからない場合や ID が不正な場合は (nil, nil) を返します。
func (s *Service) Get(ctx context.Context, id string) (*Employer, error) {
	ctx, span := s.tracer.Start(ctx, "employer.Get")
	defer span.End()

	id = strings.TrimSpace(id)
	if !isValidID(id) {
		return nil, nil
	}

	var found *Employer
	err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		result, err := s.reader.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		found = result
		return nil
	})
	if errors.Is(err, ErrEmployerNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.fault(ctx, "get", err)
	}
	return found, nil
}

// List は社員をページ単位で取得します。
func (s *Service) List(ctx context.Context, in ListInput) (*Page, error) {
	ctx, span := s.tracer.Start(ctx, "employer.List")
	defer span.End()

	notes := s.notes(ctx)

	pageNumber := in.PageNumber
	if pageNumber <= 0 {
		pageNumber = 1
	}

	pageSize := in.PageSize
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if pageSize < 0 || pageSize > maxPageSize {
		notes.AddWithKey("page_size.range", MessagePageSizeInvalid)
		return nil, nil
	}

	if pageNumber > math.MaxInt/pageSize {
		notes.AddWithKey("page_number.range", MessagePageNumberRange)
		return nil, nil
	}

	var status *Status
	if in.Status != nil {
		if !isValidStatus(*in.Status) {
			notes.AddWithKey("status.valid", MessageStatusInvalid)
			return nil, nil
		}
		v := *in.Status
		status = &v
	}

	var (
		items []*Employer
		total int
	)
	err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		result, count, err := s.reader.List(txCtx, ListFilter{
			Status: status,
			Limit:  pageSize,
			Offset: (pageNumber - 1) * pageSize,
		})
		if err != nil {
			return err
		}
		items = result
		total = count
		return nil
	})
	if err != nil {
		return nil, s.fault(ctx, "list", err)
	}

	return NewPage(items, total, pageNumber, pageSize), nil
}

// UpdatePassword は社員に紐づく IdP アカウントのパスワードを変更します。
func (s *Service) UpdatePassword(ctx context.Context, in UpdatePasswordInput) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "employer.UpdatePassword")
	defer span.End()

	id := strings.TrimSpace(in.ID)
	log := s.logger(ctx).With(logger.Op("update_password"), logger.EmployerID(id))
	notes := s.notes(ctx)

	result, err := s.passwordValidator.Validate(ctx, identity.PasswordUpdate{ID: id, Password: in.Password})
	if err != nil {
		return nil, s.fault(ctx, "update_password", err)
	}
	if !result.Valid() {
		return s.reject(ctx, "update_password", result)
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		notes.AddWithKey("id.exists", NotFoundMessage(id))
		s.recorder.Observe("update_password", outcomeNotFound)
		return nil, nil
	}

	externalID := existing.ExternalIDValue()
	if externalID == "" {
		notes.AddWithKey("external_id.required", MessageExternalIDRequired)
		s.recorder.Observe("update_password", outcomeRejected)
		return nil, nil
	}

	if err := s.provider.UpdatePassword(ctx, externalID, in.Password); err != nil {
		return nil, s.fault(ctx, "update_password", err)
	}

	log.Info("password updated", logger.ExternalID(externalID))
	s.recorder.Observe("update_password", outcomeSucceeded)
	return &Result{Message: MessagePasswordUpdated, ID: id}, nil
}

func (s *Service) buildCandidate(in CreateInput) *Employer {
	return &Employer{
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		Email:       strings.TrimSpace(in.Email),
		TaxDocument: strings.TrimSpace(in.TaxDocument),
		BirthDate:   normalizeDate(in.BirthDate),
		Role:        in.Role,
		ManagerID:   optionalString(in.ManagerID),
		Phones:      buildPhones(in.Phones),
	}
}

func (s *Service) applyUpdate(existing *Employer, in UpdateInput) {
	existing.FirstName = strings.TrimSpace(in.FirstName)
	existing.LastName = strings.TrimSpace(in.LastName)
	existing.Email = strings.TrimSpace(in.Email)
	existing.TaxDocument = strings.TrimSpace(in.TaxDocument)
	existing.BirthDate = normalizeDate(in.BirthDate)
	existing.Role = in.Role
	existing.ManagerID = optionalString(in.ManagerID)
	existing.Avatar = cloneString(in.Avatar)
	existing.Phones = buildPhones(in.Phones)
	s.assignIdentifiers(existing)

	now := s.clock.Now()
	existing.UpdatedAt = &now
}

func (s *Service) assignIdentifiers(e *Employer) {
	if e.ID == "" {
		e.ID = s.newID()
	}
	for i := range e.Phones {
		if e.Phones[i].ID == "" {
			e.Phones[i].ID = s.newID()
		}
		e.Phones[i].EmployerID = e.ID
	}
}

// validateEmployer は規則の検証に加えて、規則に含まれない入力形式の確認を行います。
func (s *Service) validateEmployer(ctx context.Context, lookup Lookup, candidate *Employer, op Operation) (validation.Result, error) {
	ctx, span := s.tracer.Start(ctx, "employer.validate")
	defer span.End()

	result, err := NewValidator(lookup, s.clock, op).Validate(ctx, candidate)
	if err != nil {
		return validation.Result{}, err
	}
	if !candidate.Role.Valid() {
		result.Failures = append(result.Failures, validation.Failure{Key: "role.valid", Message: MessageRoleInvalid})
	}
	if candidate.ManagerID != nil && !isValidID(*candidate.ManagerID) {
		result.Failures = append(result.Failures, validation.Failure{Key: "manager_id.valid", Message: MessageManagerInvalid})
	}
	return result, nil
}

func (s *Service) provision(ctx context.Context, signUp identity.SignUp) (string, error) {
	ctx, span := s.tracer.Start(ctx, "employer.provision")
	defer span.End()
	return s.provider.Provision(ctx, signUp)
}

func (s *Service) persist(ctx context.Context, uow UnitOfWork, write func(Repository) (*Employer, error)) (*Employer, error) {
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	saved, err := write(uow.Employers())
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	return saved, nil
}

// notifyConflict はストア制約違反を通知に変換できた場合に true を返します。
func (s *Service) notifyConflict(ctx context.Context, err error, candidate *Employer) bool {
	notes := notification.FromContext(ctx)
	switch {
	case errors.Is(err, ErrTaxDocumentAlreadyExists):
		notes.AddWithKey("tax_document.unique", MessageTaxDocumentUnique)
		return true
	case errors.Is(err, ErrManagerNotFound):
		managerID := ""
		if candidate.ManagerID != nil {
			managerID = *candidate.ManagerID
		}
		notes.AddWithKey("manager_id.exists", ManagerNotFoundMessage(managerID))
		return true
	default:
		return false
	}
}

func (s *Service) notes(ctx context.Context) *notification.Store {
	if !notification.Installed(ctx) {
		s.logger(ctx).Warn("notification store missing from context, rejections will be dropped")
	}
	return notification.FromContext(ctx)
}

func (s *Service) reject(ctx context.Context, op string, result validation.Result) (*Result, error) {
	s.logger(ctx).Warn("employer validation failed", logger.Op(op), logger.Messages(result.Messages()))
	notification.FromContext(ctx).AddFailures(result)
	s.recorder.Observe(op, outcomeRejected)
	return nil, nil
}

func (s *Service) failAfterProvision(ctx context.Context, uow UnitOfWork, externalID string, err error) (*Result, error) {
	s.rollback(ctx, uow)
	s.orphaned(ctx, externalID, err)
	return nil, s.fault(ctx, "create", err)
}

func (s *Service) fail(ctx context.Context, uow UnitOfWork, op string, err error) (*Result, error) {
	s.rollback(ctx, uow)
	return nil, s.fault(ctx, op, err)
}

// fault は障害を記録し、呼び出し元に返すエラーを決定します。
func (s *Service) fault(ctx context.Context, op string, err error) error {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, op+" faulted")

	s.logger(ctx).Error("employer workflow faulted", logger.Op(op), logger.Err(err))
	s.recorder.Observe(op, outcomeFaulted)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return ErrInternal
}

// rollback は context がキャンセル済みでもロールバックを実行します。
func (s *Service) rollback(ctx context.Context, uow UnitOfWork) {
	if !uow.InTransaction() {
		return
	}
	if err := uow.Rollback(context.WithoutCancel(ctx)); err != nil {
		s.logger(ctx).Error("rollback failed", logger.Err(err))
	}
}

// orphaned はプロビジョニング済みの外部アカウントが残ったことを記録します。
func (s *Service) orphaned(ctx context.Context, externalID string, cause error) {
	log := s.logger(ctx).With(logger.ExternalID(externalID))
	if !s.compensate {
		log.Warn("external account left without employer record", logger.Err(cause))
		return
	}
	if err := s.provider.Deprovision(context.WithoutCancel(ctx), externalID); err != nil {
		log.Error("deprovision of orphaned external account failed", logger.Err(err))
		return
	}
	log.Info("orphaned external account deprovisioned")
}

func (s *Service) publish(ctx context.Context, eventType EventType, e *Employer) {
	event := Event{
		Type:       eventType,
		EmployerID: e.ID,
		ExternalID: e.ExternalIDValue(),
		OccurredAt: s.clock.Now(),
	}
	if eventType != EventDeleted {
		event.Role = e.Role.String()
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger(ctx).Warn("event publish failed", zap.String("event", string(eventType)), logger.Err(err))
	}
}

func (s *Service) logger(ctx context.Context) *zap.Logger {
	return logger.From(ctx, s.log)
}

func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func optionalString(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func buildPhones(numbers []string) []Phone {
	if len(numbers) == 0 {
		return nil
	}
	phones := make([]Phone, 0, len(numbers))
	for _, n := range numbers {
		number := strings.TrimSpace(n)
		if number == "" {
			continue
		}
		phones = append(phones, Phone{Number: number})
	}
	return phones
}

func normalizeDate(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
