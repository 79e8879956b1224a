package employer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ogurasousui/employer-onboarding/internal/core/identity"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

type sequenceIDs struct {
	mu  sync.Mutex
	seq int
}

func (g *sequenceIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", g.seq)
}

// fakeStore はコミット済みの行と操作回数を保持します。
type fakeStore struct {
	mu   sync.Mutex
	rows map[string]*Employer

	begins    int
	commits   int
	rollbacks int
	inserts   int
	updates   int
	deletes   int

	lookupErr error
	createErr error
	updateErr error
	commitErr error
	beginErr  error
}

func newFakeStore(seed ...*Employer) *fakeStore {
	s := &fakeStore{rows: make(map[string]*Employer)}
	for _, e := range seed {
		s.rows[e.ID] = cloneEmployer(e)
	}
	return s
}

func (s *fakeStore) New() UnitOfWork {
	return &fakeUnitOfWork{store: s}
}

// snapshot はコミット済みの行のコピーを返します。
func (s *fakeStore) snapshot() map[string]Employer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Employer, len(s.rows))
	for id, e := range s.rows {
		out[id] = *cloneEmployer(e)
	}
	return out
}

func (s *fakeStore) get(id string) *Employer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneEmployer(s.rows[id])
}

type fakeUnitOfWork struct {
	store  *fakeStore
	staged map[string]*Employer
}

func (u *fakeUnitOfWork) Begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.staged != nil {
		return nil
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	if u.store.beginErr != nil {
		return u.store.beginErr
	}
	u.store.begins++
	u.staged = make(map[string]*Employer, len(u.store.rows))
	for id, e := range u.store.rows {
		u.staged[id] = cloneEmployer(e)
	}
	return nil
}

func (u *fakeUnitOfWork) Commit(ctx context.Context) error {
	if u.staged == nil {
		return errors.New("commit without transaction")
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	if u.store.commitErr != nil {
		u.store.rollbacks++
		u.staged = nil
		return u.store.commitErr
	}
	u.store.commits++
	u.store.rows = u.staged
	u.staged = nil
	return nil
}

func (u *fakeUnitOfWork) Rollback(context.Context) error {
	if u.staged == nil {
		return nil
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	u.store.rollbacks++
	u.staged = nil
	return nil
}

func (u *fakeUnitOfWork) InTransaction() bool {
	return u.staged != nil
}

func (u *fakeUnitOfWork) Employers() Repository {
	return &fakeRepo{uow: u, store: u.store}
}

// fakeRepo はトランザクション中は staged を、それ以外はコミット済みの行を参照します。
type fakeRepo struct {
	uow   *fakeUnitOfWork
	store *fakeStore
}

func (r *fakeRepo) view() map[string]*Employer {
	if r.uow != nil && r.uow.staged != nil {
		return r.uow.staged
	}
	return r.store.rows
}

func (r *fakeRepo) FindByID(ctx context.Context, id string) (*Employer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e, ok := r.view()[id]
	if !ok {
		return nil, ErrEmployerNotFound
	}
	return cloneEmployer(e), nil
}

func (r *fakeRepo) FindByTaxDocument(ctx context.Context, taxDocument string) (*Employer, error) {
	return r.findBy(ctx, func(e *Employer) bool { return e.TaxDocument == taxDocument })
}

func (r *fakeRepo) FindByExternalID(ctx context.Context, externalID string) (*Employer, error) {
	return r.findBy(ctx, func(e *Employer) bool { return e.ExternalIDValue() == externalID })
}

func (r *fakeRepo) findBy(ctx context.Context, match func(*Employer) bool) (*Employer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.lookupErr != nil {
		return nil, r.store.lookupErr
	}
	for _, e := range r.view() {
		if match(e) {
			return cloneEmployer(e), nil
		}
	}
	return nil, ErrEmployerNotFound
}

func (r *fakeRepo) List(ctx context.Context, filter ListFilter) ([]*Employer, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var all []*Employer
	for _, e := range r.view() {
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		all = append(all, cloneEmployer(e))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	total := len(all)
	if filter.Offset >= total {
		return []*Employer{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return all[filter.Offset:end], total, nil
}

func (r *fakeRepo) Create(ctx context.Context, e *Employer) (*Employer, error) {
	if err := r.requireTx(ctx); err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.createErr != nil {
		return nil, r.store.createErr
	}
	for _, existing := range r.uow.staged {
		if existing.TaxDocument == e.TaxDocument {
			return nil, ErrTaxDocumentAlreadyExists
		}
	}
	r.store.inserts++
	r.uow.staged[e.ID] = cloneEmployer(e)
	return cloneEmployer(e), nil
}

func (r *fakeRepo) Update(ctx context.Context, e *Employer) (*Employer, error) {
	if err := r.requireTx(ctx); err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.updateErr != nil {
		return nil, r.store.updateErr
	}
	if _, ok := r.uow.staged[e.ID]; !ok {
		return nil, ErrEmployerNotFound
	}
	r.store.updates++
	r.uow.staged[e.ID] = cloneEmployer(e)
	return cloneEmployer(e), nil
}

func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	if err := r.requireTx(ctx); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.uow.staged[id]; !ok {
		return ErrEmployerNotFound
	}
	r.store.deletes++
	delete(r.uow.staged, id)
	return nil
}

func (r *fakeRepo) requireTx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.uow == nil || r.uow.staged == nil {
		return errors.New("write outside transaction")
	}
	return nil
}

type fakeProvider struct {
	mu sync.Mutex

	externalID   string
	provisionErr error
	profile      identity.Profile
	profileErr   error
	passwordErr  error

	provisioned   []identity.SignUp
	passwordCalls []string
	deprovisioned []string
}

func (p *fakeProvider) Provision(_ context.Context, in identity.SignUp) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.provisioned = append(p.provisioned, in)
	return p.externalID, p.provisionErr
}

func (p *fakeProvider) FetchProfile(context.Context, string) (identity.Profile, error) {
	return p.profile, p.profileErr
}

func (p *fakeProvider) UpdatePassword(_ context.Context, externalID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passwordCalls = append(p.passwordCalls, externalID)
	return p.passwordErr
}

func (p *fakeProvider) Deprovision(_ context.Context, externalID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deprovisioned = append(p.deprovisioned, externalID)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) Observe(operation, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[operation+"/"+outcome]++
}

func (r *countingRecorder) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}

// cloneEmployer はフェイクストアが保持する行を呼び出し側と共有しないための複製です。
func cloneEmployer(e *Employer) *Employer {
	if e == nil {
		return nil
	}
	c := *e
	c.ManagerID = cloneString(e.ManagerID)
	c.ExternalID = cloneString(e.ExternalID)
	c.Avatar = cloneString(e.Avatar)
	if e.UpdatedAt != nil {
		updated := *e.UpdatedAt
		c.UpdatedAt = &updated
	}
	if e.Phones != nil {
		c.Phones = make([]Phone, len(e.Phones))
		copy(c.Phones, e.Phones)
	}
	return &c
}
