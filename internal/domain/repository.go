package domain

import (
	"context"
	"time"
)

// UserRepository defines data access for principals.
// Get methods return a *NotFoundError when nothing matches.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
}

// CoManagerRepository defines data access for co-manager records
type CoManagerRepository interface {
	Create(ctx context.Context, cm *CoManager) error
	GetByID(ctx context.Context, id string) (*CoManager, error)
	GetByEmail(ctx context.Context, email string) (*CoManager, error)
	ListByOwner(ctx context.Context, proprietaireID string) ([]*CoManager, error)
	Update(ctx context.Context, cm *CoManager) error
	Delete(ctx context.Context, id string) error
}

// AccountRequestRepository defines data access for account requests.
// Create returns a *ConflictError when a pending request already exists for
// the email. TransitionFromPending only writes when the stored status is
// still pending and returns a *ConflictError otherwise.
type AccountRequestRepository interface {
	Create(ctx context.Context, req *AccountRequest) error
	GetByID(ctx context.Context, id string) (*AccountRequest, error)
	FindPendingByEmail(ctx context.Context, email string) (*AccountRequest, error)
	FindAwaitingFirstLogin(ctx context.Context, email string) (*AccountRequest, error)
	List(ctx context.Context, status AccountRequestStatus) ([]*AccountRequest, error)
	TransitionFromPending(ctx context.Context, req *AccountRequest) error
	Update(ctx context.Context, req *AccountRequest) error
}

// DocumentRepository is the document store accessor for owned collections.
// Every read and write is constrained by filter; a document outside the
// filter behaves as missing.
type DocumentRepository interface {
	List(ctx context.Context, collection string, filter DataFilter) ([]*Document, error)
	Get(ctx context.Context, collection, id string, filter DataFilter) (*Document, error)
	Create(ctx context.Context, doc *Document) error
	Update(ctx context.Context, doc *Document, filter DataFilter) error
	Delete(ctx context.Context, collection, id string, filter DataFilter) error
}

// NotificationRepository defines data access for inbox entries
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]*Notification, error)
	MarkRead(ctx context.Context, recipientID, id string) error
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	Delete(ctx context.Context, recipientID, id string) error
	PurgeRead(ctx context.Context, before time.Time) (int64, error)
}

// AuditRepository persists co-manager audit entries
type AuditRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error
	ListByPrincipal(ctx context.Context, principalID string, limit int) ([]*AuditEntry, error)
}

// OutboxRepository stores emails awaiting delivery.
// ClaimPending moves up to limit deliverable messages to sending and returns
// them; messages stuck in sending longer than staleAfter are reclaimed.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg *OutboxMessage) error
	ClaimPending(ctx context.Context, limit int, staleAfter time.Duration) ([]*OutboxMessage, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause string, maxAttempts int) error
	PurgeSent(ctx context.Context, before time.Time) (int64, error)
}

// TxRunner runs fn inside a single store transaction. Repositories called
// with the ctx passed to fn participate in that transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
