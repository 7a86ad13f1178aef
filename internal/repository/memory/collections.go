package memory

import (
	"context"
	"sort"
	"time"

	"github.com/laala/laala-api/internal/domain"
)

// AccountRequestRepository implements domain.AccountRequestRepository
type AccountRequestRepository struct{ s *Store }

func copyRequest(req *domain.AccountRequest) *domain.AccountRequest {
	c := *req
	if req.ProcessedAt != nil {
		t := *req.ProcessedAt
		c.ProcessedAt = &t
	}
	return &c
}

func (r *AccountRequestRepository) Create(_ context.Context, req *domain.AccountRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.requests {
		if existing.Email == req.Email && existing.Status == domain.RequestPending {
			return domain.ErrConflict("a request is already pending for %s", req.Email)
		}
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = r.s.tick()
	}
	r.s.data.requests[req.ID] = copyRequest(req)
	return nil
}

func (r *AccountRequestRepository) GetByID(_ context.Context, id string) (*domain.AccountRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	req, ok := r.s.data.requests[id]
	if !ok {
		return nil, domain.ErrNotFound("account request %s not found", id)
	}
	return copyRequest(req), nil
}

func (r *AccountRequestRepository) FindPendingByEmail(_ context.Context, email string) (*domain.AccountRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, req := range r.s.data.requests {
		if req.Email == email && req.Status == domain.RequestPending {
			return copyRequest(req), nil
		}
	}
	return nil, domain.ErrNotFound("no pending request for %s", email)
}

func (r *AccountRequestRepository) FindAwaitingFirstLogin(_ context.Context, email string) (*domain.AccountRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var found *domain.AccountRequest
	for _, req := range r.s.data.requests {
		if req.Email != email || req.Status != domain.RequestApproved || !req.IsFirstLogin || !req.HasTemporaryPassword() {
			continue
		}
		if found == nil || (req.ProcessedAt != nil && found.ProcessedAt != nil && req.ProcessedAt.After(*found.ProcessedAt)) {
			found = req
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound("no approved request awaiting first login for %s", email)
	}
	return copyRequest(found), nil
}

func (r *AccountRequestRepository) List(_ context.Context, status domain.AccountRequestStatus) ([]*domain.AccountRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*domain.AccountRequest{}
	for _, req := range r.s.data.requests {
		if status == "" || req.Status == status {
			out = append(out, copyRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (r *AccountRequestRepository) TransitionFromPending(_ context.Context, req *domain.AccountRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.data.requests[req.ID]
	if !ok {
		return domain.ErrNotFound("account request %s not found", req.ID)
	}
	if stored.Status != domain.RequestPending {
		return domain.ErrConflict("account request %s was already processed", req.ID)
	}
	r.s.data.requests[req.ID] = copyRequest(req)
	return nil
}

func (r *AccountRequestRepository) Update(_ context.Context, req *domain.AccountRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.requests[req.ID]; !ok {
		return domain.ErrNotFound("account request %s not found", req.ID)
	}
	r.s.data.requests[req.ID] = copyRequest(req)
	return nil
}

// DocumentRepository implements domain.DocumentRepository
type DocumentRepository struct{ s *Store }

func copyDocument(doc *domain.Document) *domain.Document {
	c := *doc
	c.Data = make(map[string]interface{}, len(doc.Data))
	for k, v := range doc.Data {
		c.Data[k] = v
	}
	return &c
}

func matches(doc *domain.Document, filter domain.DataFilter) bool {
	if filter.Field == "" || filter.Value == "" {
		return false
	}
	if filter.Field == domain.OwnerField {
		return doc.IDCreateur == filter.Value
	}
	v, ok := doc.Data[filter.Field].(string)
	return ok && v == filter.Value
}

func (r *DocumentRepository) List(_ context.Context, collection string, filter domain.DataFilter) ([]*domain.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*domain.Document{}
	for k, doc := range r.s.data.documents {
		if k.collection == collection && matches(doc, filter) {
			out = append(out, copyDocument(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *DocumentRepository) Get(_ context.Context, collection, id string, filter domain.DataFilter) (*domain.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	doc, ok := r.s.data.documents[docKey{collection, id}]
	if !ok || !matches(doc, filter) {
		return nil, domain.ErrNotFound("%s %s not found", collection, id)
	}
	return copyDocument(doc), nil
}

func (r *DocumentRepository) Create(_ context.Context, doc *domain.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := docKey{doc.Collection, doc.ID}
	if _, ok := r.s.data.documents[key]; ok {
		return domain.ErrConflict("%s %s already exists", doc.Collection, doc.ID)
	}
	now := r.s.tick()
	doc.CreatedAt, doc.UpdatedAt = now, now
	r.s.data.documents[key] = copyDocument(doc)
	return nil
}

func (r *DocumentRepository) Update(_ context.Context, doc *domain.Document, filter domain.DataFilter) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := docKey{doc.Collection, doc.ID}
	stored, ok := r.s.data.documents[key]
	if !ok || !matches(stored, filter) {
		return domain.ErrNotFound("%s %s not found", doc.Collection, doc.ID)
	}
	updated := copyDocument(stored)
	updated.Data = copyDocument(doc).Data
	updated.UpdatedAt = r.s.tick()
	r.s.data.documents[key] = updated
	doc.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *DocumentRepository) Delete(_ context.Context, collection, id string, filter domain.DataFilter) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := docKey{collection, id}
	stored, ok := r.s.data.documents[key]
	if !ok || !matches(stored, filter) {
		return domain.ErrNotFound("%s %s not found", collection, id)
	}
	delete(r.s.data.documents, key)
	return nil
}

// NotificationRepository implements domain.NotificationRepository
type NotificationRepository struct{ s *Store }

func copyNotification(n *domain.Notification) *domain.Notification {
	c := *n
	if n.ReadAt != nil {
		t := *n.ReadAt
		c.ReadAt = &t
	}
	return &c
}

func (r *NotificationRepository) Create(_ context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n.CreatedAt = r.s.tick()
	r.s.data.notifications[n.ID] = copyNotification(n)
	return nil
}

func (r *NotificationRepository) ListByRecipient(_ context.Context, recipientID string, unreadOnly bool) ([]*domain.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*domain.Notification{}
	for _, n := range r.s.data.notifications {
		if n.RecipientID == recipientID && (!unreadOnly || !n.Read) {
			out = append(out, copyNotification(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *NotificationRepository) MarkRead(_ context.Context, recipientID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.data.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return domain.ErrNotFound("notification %s not found", id)
	}
	if n.Read {
		return nil
	}
	c := copyNotification(n)
	now := r.s.tick()
	c.Read, c.ReadAt = true, &now
	r.s.data.notifications[id] = c
	return nil
}

func (r *NotificationRepository) MarkAllRead(_ context.Context, recipientID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	now := r.s.tick()
	for id, n := range r.s.data.notifications {
		if n.RecipientID == recipientID && !n.Read {
			c := copyNotification(n)
			readAt := now
			c.Read, c.ReadAt = true, &readAt
			r.s.data.notifications[id] = c
			count++
		}
	}
	return count, nil
}

func (r *NotificationRepository) Delete(_ context.Context, recipientID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.data.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return domain.ErrNotFound("notification %s not found", id)
	}
	delete(r.s.data.notifications, id)
	return nil
}

func (r *NotificationRepository) PurgeRead(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for id, n := range r.s.data.notifications {
		if n.Read && n.ReadAt != nil && n.ReadAt.Before(before) {
			delete(r.s.data.notifications, id)
			count++
		}
	}
	return count, nil
}

// AuditRepository implements domain.AuditRepository
type AuditRepository struct{ s *Store }

func (r *AuditRepository) Append(_ context.Context, entry *domain.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *entry
	r.s.data.audit = append(r.s.data.audit, &c)
	return nil
}

func (r *AuditRepository) ListByPrincipal(_ context.Context, principalID string, limit int) ([]*domain.AuditEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*domain.AuditEntry{}
	for i := len(r.s.data.audit) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if e := r.s.data.audit[i]; e.ActingForPrincipalID == principalID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

// OutboxRepository implements domain.OutboxRepository
type OutboxRepository struct{ s *Store }

func copyMessage(m *domain.OutboxMessage) *domain.OutboxMessage {
	c := *m
	return &c
}

func (r *OutboxRepository) Enqueue(_ context.Context, msg *domain.OutboxMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msg.Status = domain.OutboxPending
	msg.CreatedAt = r.s.tick()
	r.s.data.outbox[msg.ID] = copyMessage(msg)
	return nil
}

func (r *OutboxRepository) ClaimPending(_ context.Context, limit int, staleAfter time.Duration) ([]*domain.OutboxMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	var candidates []*domain.OutboxMessage
	for _, m := range r.s.data.outbox {
		stale := m.Status == domain.OutboxSending && m.ClaimedAt != nil && now.Sub(*m.ClaimedAt) > staleAfter
		if m.Status == domain.OutboxPending || stale {
			candidates = append(candidates, m)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].CreatedAt.Before(candidates[j].CreatedAt) })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]*domain.OutboxMessage, 0, len(candidates))
	for _, m := range candidates {
		c := copyMessage(m)
		claimed := now
		c.Status, c.ClaimedAt = domain.OutboxSending, &claimed
		r.s.data.outbox[c.ID] = c
		out = append(out, copyMessage(c))
	}
	return out, nil
}

// Messages returns a snapshot of every queued message, oldest first.
func (r *OutboxRepository) Messages() []*domain.OutboxMessage {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*domain.OutboxMessage, 0, len(r.s.data.outbox))
	for _, m := range r.s.data.outbox {
		out = append(out, copyMessage(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *OutboxRepository) MarkSent(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.data.outbox[id]
	if !ok {
		return domain.ErrNotFound("email %s not found", id)
	}
	c := copyMessage(m)
	sentAt := r.s.now()
	c.Status, c.SentAt, c.LastError = domain.OutboxSent, &sentAt, ""
	c.Attempts++
	r.s.data.outbox[id] = c
	return nil
}

func (r *OutboxRepository) MarkFailed(_ context.Context, id string, cause string, maxAttempts int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.data.outbox[id]
	if !ok {
		return domain.ErrNotFound("email %s not found", id)
	}
	c := copyMessage(m)
	c.Attempts++
	c.LastError = cause
	c.ClaimedAt = nil
	c.Status = domain.OutboxPending
	if c.Attempts >= maxAttempts {
		c.Status = domain.OutboxFailed
	}
	r.s.data.outbox[id] = c
	return nil
}

func (r *OutboxRepository) PurgeSent(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for id, m := range r.s.data.outbox {
		if m.Status == domain.OutboxSent && m.SentAt != nil && m.SentAt.Before(before) {
			delete(r.s.data.outbox, id)
			count++
		}
	}
	return count, nil
}
