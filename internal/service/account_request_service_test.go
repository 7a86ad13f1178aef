package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/notify"
)

func TestAccountRequestApprovalAndFirstLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.requests.Submit(ctx, "New.Creator@Example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, req.Status)
	assert.Equal(t, "new.creator@example.com", req.Email)

	_, err = f.requests.Submit(ctx, "new.creator@example.com")
	requireErrorType[*domain.ConflictError](t, err)

	result, err := f.requests.Process(ctx, "admin-1", ProcessInput{RequestID: req.ID, Action: ActionApprove})
	require.NoError(t, err)
	assert.Len(t, result.TemporaryPassword, 12)
	assert.Equal(t, domain.RequestApproved, result.Request.Status)
	assert.True(t, result.Request.HasTemporaryPassword())
	assert.Equal(t, "admin-1", result.Request.ProcessedBy)

	stored, err := f.requests.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.TemporaryPasswordHash, result.TemporaryPassword)

	user, err := f.store.Users().GetByEmail(ctx, "new.creator@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.UserFirstLogin, user.Status)
	assert.Equal(t, stored.UserID, user.ID)

	msgs := f.store.Outbox().Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.KindAccountApproved, msgs[0].Kind)
	assert.Contains(t, msgs[0].Body, result.TemporaryPassword)

	_, err = f.requests.Approve(ctx, "admin-1", req.ID, "", "")
	requireErrorType[*domain.ConflictError](t, err)

	_, err = f.auth.Login(ctx, "new.creator@example.com", result.TemporaryPassword)
	requireErrorType[*domain.AccessDeniedError](t, err)

	_, err = f.requests.LoginTemporary(ctx, "new.creator@example.com", "wrong-temp-pw", "my-new-password")
	requireErrorType[*domain.AuthenticationError](t, err)

	session, err := f.requests.LoginTemporary(ctx, "new.creator@example.com", result.TemporaryPassword, "my-new-password")
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.SubjectID)

	stored, err = f.requests.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasTemporaryPassword())
	assert.False(t, stored.IsFirstLogin)

	_, err = f.requests.LoginTemporary(ctx, "new.creator@example.com", result.TemporaryPassword, "another-password")
	requireErrorType[*domain.ConflictError](t, err)

	_, err = f.auth.Login(ctx, "new.creator@example.com", "my-new-password")
	require.NoError(t, err)

	_, err = f.requests.Submit(ctx, "new.creator@example.com")
	requireErrorType[*domain.ConflictError](t, err)
}

func TestAccountRequestExplicitTemporaryPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.requests.Submit(ctx, "bob@example.com")
	require.NoError(t, err)

	_, err = f.requests.Approve(ctx, "admin-1", req.ID, "", "short")
	requireErrorType[*domain.ValidationError](t, err)

	result, err := f.requests.Approve(ctx, "admin-1", req.ID, "Bienvenue", "chosen-by-admin")
	require.NoError(t, err)
	assert.Equal(t, "chosen-by-admin", result.TemporaryPassword)
	assert.Equal(t, "Bienvenue", result.Request.AdminComment)
}

func TestAccountRequestRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.requests.Submit(ctx, "carol@example.com")
	require.NoError(t, err)

	_, err = f.requests.Process(ctx, "admin-1", ProcessInput{RequestID: req.ID, Action: ActionReject})
	requireErrorType[*domain.ValidationError](t, err)

	result, err := f.requests.Process(ctx, "admin-1", ProcessInput{
		RequestID: req.ID, Action: ActionReject, Comment: "profil incomplet",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestRejected, result.Request.Status)
	assert.Empty(t, result.TemporaryPassword)

	_, err = f.requests.Approve(ctx, "admin-1", req.ID, "", "")
	requireErrorType[*domain.ConflictError](t, err)

	_, err = f.store.Users().GetByEmail(ctx, "carol@example.com")
	assert.True(t, domain.IsNotFound(err))

	msgs := f.store.Outbox().Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.KindAccountRejected, msgs[0].Kind)
	assert.Contains(t, msgs[0].Body, "profil incomplet")

	// a rejected email may apply again
	_, err = f.requests.Submit(ctx, "carol@example.com")
	require.NoError(t, err)
}

func TestAccountRequestProcessValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.requests.Process(ctx, "admin-1", ProcessInput{Action: ActionApprove})
	requireErrorType[*domain.ValidationError](t, err)

	_, err = f.requests.Process(ctx, "admin-1", ProcessInput{RequestID: "x", Action: "archive"})
	requireErrorType[*domain.ValidationError](t, err)

	_, err = f.requests.Process(ctx, "admin-1", ProcessInput{RequestID: "missing", Action: ActionApprove})
	requireErrorType[*domain.NotFoundError](t, err)

	_, err = f.requests.Submit(ctx, "not-an-email")
	requireErrorType[*domain.ValidationError](t, err)
}

func TestAccountRequestSubmitConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "p-1", "owner@example.com", "owner-password", domain.RoleCreator)
	_, err := f.coManagers.Create(ctx, "p-1", validCoManagerInput("alice@example.com"))
	require.NoError(t, err)

	_, err = f.requests.Submit(ctx, "owner@example.com")
	requireErrorType[*domain.ConflictError](t, err)
	_, err = f.requests.Submit(ctx, "alice@example.com")
	requireErrorType[*domain.ConflictError](t, err)
}

func TestAccountRequestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.requests.Submit(ctx, "a@example.com")
	require.NoError(t, err)
	_, err = f.requests.Submit(ctx, "b@example.com")
	require.NoError(t, err)
	_, err = f.requests.Reject(ctx, "admin-1", a.ID, "non")
	require.NoError(t, err)

	all, err := f.requests.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := f.requests.List(ctx, "pending")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b@example.com", pending[0].Email)

	_, err = f.requests.List(ctx, "archived")
	requireErrorType[*domain.ValidationError](t, err)
}

func TestApproveRefusesEmailHeldByCoManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.requests.Submit(ctx, "bob@example.com")
	require.NoError(t, err)

	// written straight to the store, as a concurrent create would
	perms := domain.Permissions{}
	perms.Grant(domain.ResourceLaalas, domain.ActionRead)
	require.NoError(t, f.store.CoManagers().Create(ctx, &domain.CoManager{
		ID: "cm-bob", Nom: "Bob", Email: "bob@example.com", Telephone: "1", Pays: "CI", Ville: "Abidjan",
		AccessLevel: domain.AccessView, Status: domain.CoManagerActive, Permissions: perms, ProprietaireID: "p-1",
	}))

	_, err = f.requests.Approve(ctx, "admin-1", req.ID, "", "")
	requireErrorType[*domain.ConflictError](t, err)

	got, err := f.requests.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, got.Status)
	_, err = f.store.Users().GetByEmail(ctx, "bob@example.com")
	assert.True(t, domain.IsNotFound(err))
	assert.Empty(t, f.store.Outbox().Messages())
}

func TestSecondRejectionKeepsFirstDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.requests.Submit(ctx, "carol@example.com")
	require.NoError(t, err)

	_, err = f.requests.Reject(ctx, "admin-1", req.ID, "duplicate")
	require.NoError(t, err)

	_, err = f.requests.Process(ctx, "admin-2", ProcessInput{
		RequestID: req.ID, Action: ActionReject, Comment: "second look",
	})
	requireErrorType[*domain.ConflictError](t, err)

	stored, err := f.requests.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestRejected, stored.Status)
	assert.Equal(t, "duplicate", stored.AdminComment)
	assert.Equal(t, "admin-1", stored.ProcessedBy)
	require.NotNil(t, stored.ProcessedAt)

	assert.Len(t, f.store.Outbox().Messages(), 1)
}
