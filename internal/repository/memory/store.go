// Package memory is an in-process implementation of the domain repositories.
// It backs STORE_DRIVER=memory and the service and handler tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/laala/laala-api/internal/domain"
)

type docKey struct {
	collection string
	id         string
}

type state struct {
	users         map[string]*domain.User
	coManagers    map[string]*domain.CoManager
	requests      map[string]*domain.AccountRequest
	documents     map[docKey]*domain.Document
	notifications map[string]*domain.Notification
	audit         []*domain.AuditEntry
	outbox        map[string]*domain.OutboxMessage
}

func newState() state {
	return state{
		users:         map[string]*domain.User{},
		coManagers:    map[string]*domain.CoManager{},
		requests:      map[string]*domain.AccountRequest{},
		documents:     map[docKey]*domain.Document{},
		notifications: map[string]*domain.Notification{},
		outbox:        map[string]*domain.OutboxMessage{},
	}
}

// clone copies the maps. Records are stored as private copies and replaced
// on write, so sharing pointers between snapshots is safe.
func (s state) clone() state {
	out := newState()
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.coManagers {
		out.coManagers[k] = v
	}
	for k, v := range s.requests {
		out.requests[k] = v
	}
	for k, v := range s.documents {
		out.documents[k] = v
	}
	for k, v := range s.notifications {
		out.notifications[k] = v
	}
	out.audit = append([]*domain.AuditEntry(nil), s.audit...)
	for k, v := range s.outbox {
		out.outbox[k] = v
	}
	return out
}

// Store holds every collection behind one mutex.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data state
	now  func() time.Time
	last time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{data: newState(), now: time.Now}
}

// WithinTx serializes transactions and restores the pre-transaction
// snapshot when fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

type txKey struct{}

// SetClock replaces the time source. Used by retention tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	s.last = time.Time{}
}

// tick returns a strictly increasing timestamp so creation order is total.
// Callers hold s.mu.
func (s *Store) tick() time.Time {
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// Users returns the user repository view
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// CoManagers returns the co-manager repository view
func (s *Store) CoManagers() *CoManagerRepository { return &CoManagerRepository{s: s} }

// AccountRequests returns the account request repository view
func (s *Store) AccountRequests() *AccountRequestRepository { return &AccountRequestRepository{s: s} }

// Documents returns the document repository view
func (s *Store) Documents() *DocumentRepository { return &DocumentRepository{s: s} }

// Notifications returns the notification repository view
func (s *Store) Notifications() *NotificationRepository { return &NotificationRepository{s: s} }

// Audit returns the audit repository view
func (s *Store) Audit() *AuditRepository { return &AuditRepository{s: s} }

// Outbox returns the email outbox repository view
func (s *Store) Outbox() *OutboxRepository { return &OutboxRepository{s: s} }

// UserRepository implements domain.UserRepository
type UserRepository struct{ s *Store }

func copyUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.data.users {
		if u.Email == user.Email {
			return domain.ErrConflict("an account already exists for %s", user.Email)
		}
	}
	if _, ok := r.s.data.users[user.ID]; ok {
		return domain.ErrConflict("user %s already exists", user.ID)
	}
	now := r.s.tick()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.data.users[user.ID] = copyUser(user)
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, domain.ErrNotFound("user %s not found", id)
	}
	return copyUser(u), nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.data.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, domain.ErrNotFound("user %s not found", email)
}

func (r *UserRepository) Update(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.users[user.ID]; !ok {
		return domain.ErrNotFound("user %s not found", user.ID)
	}
	user.UpdatedAt = r.s.tick()
	r.s.data.users[user.ID] = copyUser(user)
	return nil
}

// CoManagerRepository implements domain.CoManagerRepository
type CoManagerRepository struct{ s *Store }

func copyCoManager(cm *domain.CoManager) *domain.CoManager {
	c := *cm
	c.Permissions = cm.Permissions.Clone()
	return &c
}

func (r *CoManagerRepository) Create(_ context.Context, cm *domain.CoManager) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.coManagers {
		if existing.Email == cm.Email {
			return domain.ErrConflict("a co-manager already exists for %s", cm.Email)
		}
	}
	now := r.s.tick()
	cm.CreatedAt, cm.UpdatedAt = now, now
	r.s.data.coManagers[cm.ID] = copyCoManager(cm)
	return nil
}

func (r *CoManagerRepository) GetByID(_ context.Context, id string) (*domain.CoManager, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	cm, ok := r.s.data.coManagers[id]
	if !ok {
		return nil, domain.ErrNotFound("co-manager %s not found", id)
	}
	return copyCoManager(cm), nil
}

func (r *CoManagerRepository) GetByEmail(_ context.Context, email string) (*domain.CoManager, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, cm := range r.s.data.coManagers {
		if cm.Email == email {
			return copyCoManager(cm), nil
		}
	}
	return nil, domain.ErrNotFound("co-manager %s not found", email)
}

func (r *CoManagerRepository) ListByOwner(_ context.Context, proprietaireID string) ([]*domain.CoManager, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*domain.CoManager{}
	for _, cm := range r.s.data.coManagers {
		if cm.ProprietaireID == proprietaireID {
			out = append(out, copyCoManager(cm))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *CoManagerRepository) Update(_ context.Context, cm *domain.CoManager) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.coManagers[cm.ID]; !ok {
		return domain.ErrNotFound("co-manager %s not found", cm.ID)
	}
	for id, existing := range r.s.data.coManagers {
		if id != cm.ID && existing.Email == cm.Email {
			return domain.ErrConflict("a co-manager already exists for %s", cm.Email)
		}
	}
	cm.UpdatedAt = r.s.tick()
	r.s.data.coManagers[cm.ID] = copyCoManager(cm)
	return nil
}

func (r *CoManagerRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.coManagers[id]; !ok {
		return domain.ErrNotFound("co-manager %s not found", id)
	}
	delete(r.s.data.coManagers, id)
	return nil
}
