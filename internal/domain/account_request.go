package domain

import "time"

// AccountRequestStatus is the state of a self-service account request.
// pending is the only non-terminal state.
type AccountRequestStatus string

const (
	RequestPending  AccountRequestStatus = "pending"
	RequestApproved AccountRequestStatus = "approved"
	RequestRejected AccountRequestStatus = "rejected"
)

// ParseAccountRequestStatus validates a status filter value.
func ParseAccountRequestStatus(s string) (AccountRequestStatus, error) {
	switch st := AccountRequestStatus(s); st {
	case RequestPending, RequestApproved, RequestRejected:
		return st, nil
	}
	return "", ErrValidation("status %q must be one of pending, approved, rejected", s)
}

// AccountRequest is a queued request for platform credentials.
type AccountRequest struct {
	ID                    string               `json:"id"`
	Email                 string               `json:"email"`
	Status                AccountRequestStatus `json:"status"`
	AdminComment          string               `json:"adminComment,omitempty"`
	TemporaryPasswordHash string               `json:"-"`
	IsFirstLogin          bool                 `json:"isFirstLogin"`
	RequestedAt           time.Time            `json:"requestedAt"`
	ProcessedAt           *time.Time           `json:"processedAt,omitempty"`
	ProcessedBy           string               `json:"processedBy,omitempty"`
	UserID                string               `json:"userId,omitempty"`
}

// HasTemporaryPassword reports whether a temporary password is still
// waiting to be exchanged.
func (r *AccountRequest) HasTemporaryPassword() bool {
	return r.TemporaryPasswordHash != ""
}
