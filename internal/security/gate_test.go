package security

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/repository/memory"
	"github.com/laala/laala-api/internal/security/auth"
)

type stubVerifier map[string]*auth.Identity

func (s stubVerifier) Verify(_ context.Context, token string) (*auth.Identity, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return nil, errors.New("bad signature")
}

type failingCoManagers struct{ domain.CoManagerRepository }

func (failingCoManagers) GetByEmail(context.Context, string) (*domain.CoManager, error) {
	return nil, errors.New("connection refused")
}

func newCoManager(t *testing.T, store *memory.Store, email string, status domain.CoManagerStatus, grants map[domain.Resource][]domain.Action) {
	t.Helper()
	perms := domain.Permissions{}
	for r, acts := range grants {
		for _, a := range acts {
			perms.Grant(r, a)
		}
	}
	require.NoError(t, store.CoManagers().Create(context.Background(), &domain.CoManager{
		ID: "cm-" + email, Nom: "Diallo", Email: email, Telephone: "1", Pays: "SN", Ville: "Dakar",
		AccessLevel: domain.AccessView, Status: status, Permissions: perms, ProprietaireID: "p-1",
	}))
}

func setup(t *testing.T) (*Gate, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	newCoManager(t, store, "alice@example.com", domain.CoManagerActive, map[domain.Resource][]domain.Action{
		domain.ResourceLaalas: {domain.ActionRead},
	})
	newCoManager(t, store, "sus@example.com", domain.CoManagerSuspended, map[domain.Resource][]domain.Action{
		domain.ResourceLaalas: {domain.ActionRead},
	})

	verifier := stubVerifier{
		"principal": {Subject: "p-1", Email: "owner@example.com", Kind: auth.KindPrincipal},
		"alice":     {Subject: "cm-alice@example.com", Email: "Alice@example.com", Kind: auth.KindCoManager},
		"suspended": {Subject: "cm-sus@example.com", Email: "sus@example.com"},
		"admin":     {Subject: "a-1", Email: "root@laala.app"},
		"removed":   {Subject: "cm-gone", Email: "gone@example.com", Kind: auth.KindCoManager},
	}
	isAdmin := func(email string) bool { return email == "root@laala.app" }
	return NewGate(verifier, NewResolver(store.CoManagers(), isAdmin, nil), nil), store
}

func TestAuthenticateStates(t *testing.T) {
	gate, store := setup(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantReason string
	}{
		{name: "no header", header: "", wantStatus: http.StatusUnauthorized, wantReason: "missing token"},
		{name: "wrong scheme", header: "Basic principal", wantStatus: http.StatusUnauthorized, wantReason: "missing token"},
		{name: "unverifiable", header: "Bearer forged", wantStatus: http.StatusUnauthorized, wantReason: "invalid token"},
		{name: "suspended co-manager", header: "Bearer suspended", wantStatus: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ac, denial := gate.Authenticate(ctx, tt.header)
			assert.Nil(t, ac)
			require.NotNil(t, denial)
			assert.Equal(t, tt.wantStatus, denial.Status)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, denial.Reason)
			}
		})
	}

	t.Run("store failure fails closed", func(t *testing.T) {
		broken := NewGate(stubVerifier{"alice": {Subject: "x", Email: "alice@example.com"}},
			NewResolver(failingCoManagers{store.CoManagers()}, nil, nil), nil)
		ac, denial := broken.Authenticate(ctx, "Bearer alice")
		assert.Nil(t, ac)
		require.NotNil(t, denial)
		assert.Equal(t, http.StatusInternalServerError, denial.Status)
		assert.Equal(t, "internal error", denial.Reason)
	})
}

func TestPrincipalContext(t *testing.T) {
	gate, _ := setup(t)

	ac, denial := gate.Authenticate(context.Background(), "Bearer principal")
	require.Nil(t, denial)
	assert.False(t, ac.IsCoGestionnaire)
	assert.Equal(t, "p-1", ac.ProprietaireID)
	assert.True(t, ac.Permissions.Empty())
	assert.False(t, ac.IsAdmin)

	for _, r := range domain.Resources() {
		for _, a := range domain.Actions() {
			assert.Nil(t, gate.Authorize(ac, r, a), "%s/%s", r, a)
		}
	}
	assert.Equal(t, domain.DataFilter{Field: "idCreateur", Value: "p-1"}, ac.DataFilter())
	assert.Nil(t, RequirePrincipal(ac))
	assert.NotNil(t, RequireAdmin(ac))
}

func TestCoManagerContext(t *testing.T) {
	gate, _ := setup(t)

	ac, denial := gate.Authenticate(context.Background(), "Bearer alice")
	require.Nil(t, denial)
	assert.True(t, ac.IsCoGestionnaire)
	assert.Equal(t, "p-1", ac.ProprietaireID)
	assert.Equal(t, "cm-alice@example.com", ac.ActorID())
	assert.Equal(t, domain.DataFilter{Field: "idCreateur", Value: "p-1"}, ac.DataFilter())

	assert.Nil(t, gate.Authorize(ac, domain.ResourceLaalas, domain.ActionRead))

	d := gate.Authorize(ac, domain.ResourceLaalas, domain.ActionDelete)
	require.NotNil(t, d)
	assert.Equal(t, http.StatusForbidden, d.Status)
	assert.Contains(t, d.Reason, "delete")
	assert.Contains(t, d.Reason, "laalas")

	d = gate.Authorize(ac, domain.ResourceCampaigns, domain.ActionRead)
	require.NotNil(t, d)
	assert.Equal(t, http.StatusForbidden, d.Status)

	assert.NotNil(t, RequirePrincipal(ac))
	assert.NotNil(t, RequireAdmin(ac))
	assert.Nil(t, RequireCoManager(ac))
}

func TestAdminContext(t *testing.T) {
	gate, _ := setup(t)

	ac, denial := gate.Authenticate(context.Background(), "Bearer admin")
	require.Nil(t, denial)
	assert.True(t, ac.IsAdmin)
	assert.Nil(t, RequireAdmin(ac))

	ac = &AuthContext{Identity: &auth.Identity{Subject: "a-2", Email: "x@example.com", Role: "admin"}, IsAdmin: true}
	assert.Nil(t, RequireAdmin(ac))
}

func TestDeletedCoManagerIsDenied(t *testing.T) {
	gate, _ := setup(t)

	ac, denial := gate.Authenticate(context.Background(), "Bearer removed")
	assert.Nil(t, ac)
	require.NotNil(t, denial)
	assert.Equal(t, http.StatusForbidden, denial.Status)
	assert.Contains(t, denial.Reason, "no longer exists")
}
