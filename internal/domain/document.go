package domain

import "time"

// Document is a principal-owned record in a named collection (laalas,
// contenus, communications, campaigns, retraits).
type Document struct {
	ID         string                 `json:"id"`
	Collection string                 `json:"-"`
	IDCreateur string                 `json:"idCreateur"`
	Data       map[string]interface{} `json:"data"`
	CreatedBy  string                 `json:"createdBy"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
}

// Notification is an in-app inbox entry.
type Notification struct {
	ID          string     `json:"id"`
	RecipientID string     `json:"recipientId"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Read        bool       `json:"read"`
	CreatedAt   time.Time  `json:"createdAt"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
}

// Notification types emitted by the services.
const (
	NotificationCoManagerCreated = "co_gestionnaire_created"
	NotificationAccountApproved  = "account_approved"
	NotificationPasswordChanged  = "password_changed"
)

// AuditEntry records one successful co-manager action.
type AuditEntry struct {
	ID                   string    `json:"id"`
	ActorID              string    `json:"actorId"`
	ActorName            string    `json:"actorName"`
	Action               Action    `json:"action"`
	Resource             Resource  `json:"resource"`
	ResourceID           string    `json:"resourceId,omitempty"`
	ActingForPrincipalID string    `json:"actingForPrincipalId"`
	RequestID            string    `json:"requestId,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
}

// OutboxStatus tracks delivery of a queued email.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSending OutboxStatus = "sending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
)

// OutboxMessage is an email committed together with the state change it
// announces and delivered later by the dispatcher.
type OutboxMessage struct {
	ID        string       `json:"id"`
	Kind      string       `json:"kind"`
	Recipient string       `json:"recipient"`
	Subject   string       `json:"subject"`
	Body      string       `json:"body"`
	Status    OutboxStatus `json:"status"`
	Attempts  int          `json:"attempts"`
	LastError string       `json:"lastError,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	ClaimedAt *time.Time   `json:"claimedAt,omitempty"`
	SentAt    *time.Time   `json:"sentAt,omitempty"`
}
