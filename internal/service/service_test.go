package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/notify"
	"github.com/laala/laala-api/internal/repository/memory"
	"github.com/laala/laala-api/internal/security/auth"
)

type fixture struct {
	store         *memory.Store
	tokens        *auth.TokenManager
	auth          *AuthService
	notifications *NotificationService
	requests      *AccountRequestService
	coManagers    *CoManagerService
	documents     *DocumentService
	profiles      *ProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	tokens, err := auth.NewTokenManager("test-secret", "laala-test", time.Hour)
	require.NoError(t, err)

	notifications := NewNotificationService(store.Notifications(), nil)
	authSvc := NewAuthService(store.Users(), store.CoManagers(), tokens, notifications, nil)
	composer := notify.NewComposer("https://dashboard.test")

	return &fixture{
		store:         store,
		tokens:        tokens,
		auth:          authSvc,
		notifications: notifications,
		requests: NewAccountRequestService(AccountRequestDeps{
			Requests:      store.AccountRequests(),
			Users:         store.Users(),
			CoManagers:    store.CoManagers(),
			Outbox:        store.Outbox(),
			Tx:            store,
			Composer:      composer,
			Auth:          authSvc,
			Notifications: notifications,
		}, nil),
		coManagers: NewCoManagerService(store.CoManagers(), store.Users(), store.AccountRequests(), store.Outbox(), store,
			composer, notifications, nil),
		documents: NewDocumentService(store.Documents(), map[domain.Resource]string{
			domain.ResourceLaalas:         "laalas",
			domain.ResourceContenus:       "contenus",
			domain.ResourceCommunications: "messages",
			domain.ResourceCampaigns:      "campaigns",
		}, "retraits", nil),
		profiles: NewProfileService(store.Users(), nil),
	}
}

// seedUser stores an active principal with password
func (f *fixture) seedUser(t *testing.T, id, email, password string, role domain.UserRole) *domain.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	u := &domain.User{
		ID:           id,
		Email:        email,
		DisplayName:  "User " + id,
		PasswordHash: hash,
		Role:         role,
		Status:       domain.UserActive,
	}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u
}

func requireErrorType[T error](t *testing.T, err error) {
	t.Helper()
	var target T
	require.Truef(t, errors.As(err, &target), "expected %T, got %v", target, err)
}
