package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/security/auth"
)

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "p-1", "creator@example.com", "correct-horse", domain.RoleCreator)

	result, err := f.auth.Login(ctx, " Creator@Example.com ", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.Equal(t, auth.KindPrincipal, result.Kind)
	assert.Equal(t, "p-1", result.SubjectID)
	assert.Equal(t, 3600, result.ExpiresIn)

	id, err := f.tokens.Verify(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, "creator@example.com", id.Email)
	assert.Equal(t, string(domain.RoleCreator), id.Role)

	_, err = f.auth.Login(ctx, "creator@example.com", "wrong-password")
	requireErrorType[*domain.AuthenticationError](t, err)

	_, err = f.auth.Login(ctx, "nobody@example.com", "whatever-pass")
	requireErrorType[*domain.AuthenticationError](t, err)

	_, err = f.auth.Login(ctx, "", "")
	requireErrorType[*domain.ValidationError](t, err)
}

func TestLoginDisabledUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "p-1", "creator@example.com", "correct-horse", domain.RoleCreator)
	u.Status = domain.UserDisabled
	require.NoError(t, f.store.Users().Update(ctx, u))

	_, err := f.auth.Login(ctx, "creator@example.com", "correct-horse")
	requireErrorType[*domain.AccessDeniedError](t, err)
}

func TestLoginCoManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "p-1", "owner@example.com", "owner-password", domain.RoleCreator)

	cm, err := f.coManagers.Create(ctx, "p-1", validCoManagerInput("alice@example.com"))
	require.NoError(t, err)

	result, err := f.auth.Login(ctx, "alice@example.com", "alice-password")
	require.NoError(t, err)
	assert.Equal(t, auth.KindCoManager, result.Kind)
	assert.Equal(t, cm.ID, result.SubjectID)
	assert.True(t, result.MustChangePassword)

	suspended := "suspendu"
	_, err = f.coManagers.Update(ctx, "p-1", cm.ID, UpdateCoManagerInput{Status: &suspended})
	require.NoError(t, err)

	_, err = f.auth.Login(ctx, "alice@example.com", "alice-password")
	requireErrorType[*domain.AccessDeniedError](t, err)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "p-1", "creator@example.com", "old-password", domain.RoleCreator)

	err := f.auth.ChangePassword(ctx, "p-1", "not-the-password", "new-password")
	requireErrorType[*domain.AuthenticationError](t, err)

	err = f.auth.ChangePassword(ctx, "p-1", "old-password", "short")
	requireErrorType[*domain.ValidationError](t, err)

	require.NoError(t, f.auth.ChangePassword(ctx, "p-1", "old-password", "new-password"))

	_, err = f.auth.Login(ctx, "creator@example.com", "old-password")
	requireErrorType[*domain.AuthenticationError](t, err)
	_, err = f.auth.Login(ctx, "creator@example.com", "new-password")
	require.NoError(t, err)

	inbox, err := f.notifications.List(ctx, "p-1", false)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, domain.NotificationPasswordChanged, inbox[0].Type)
}
