package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/featureflags"
	"github.com/laala/laala-api/internal/notify"
	"github.com/laala/laala-api/internal/repository/memory"
	"github.com/laala/laala-api/internal/security"
	"github.com/laala/laala-api/internal/security/audit"
	"github.com/laala/laala-api/internal/security/auth"
	"github.com/laala/laala-api/internal/service"
	"github.com/laala/laala-api/pkg/config"
)

type testServer struct {
	handler http.Handler
	store   *memory.Store
	tokens  *auth.TokenManager
}

func newTestServer(t *testing.T, features map[string]bool) *testServer {
	t.Helper()

	store := memory.NewStore()
	tokens, err := auth.NewTokenManager("handler-test-secret", "laala-test", time.Hour)
	require.NoError(t, err)

	notifications := service.NewNotificationService(store.Notifications(), nil)
	authSvc := service.NewAuthService(store.Users(), store.CoManagers(), tokens, notifications, nil)
	composer := notify.NewComposer("https://dashboard.test")
	svc := Services{
		Auth: authSvc,
		Requests: service.NewAccountRequestService(service.AccountRequestDeps{
			Requests:      store.AccountRequests(),
			Users:         store.Users(),
			CoManagers:    store.CoManagers(),
			Outbox:        store.Outbox(),
			Tx:            store,
			Composer:      composer,
			Auth:          authSvc,
			Notifications: notifications,
		}, nil),
		CoManagers: service.NewCoManagerService(store.CoManagers(), store.Users(), store.AccountRequests(), store.Outbox(), store,
			composer, notifications, nil),
		Documents: service.NewDocumentService(store.Documents(), map[domain.Resource]string{
			domain.ResourceLaalas:         "laalas",
			domain.ResourceContenus:       "contenus",
			domain.ResourceCommunications: "messages",
			domain.ResourceCampaigns:      "campaigns",
		}, "retraits", nil),
		Profiles:      service.NewProfileService(store.Users(), nil),
		Notifications: notifications,
	}

	isAdmin := func(email string) bool { return email == "ops@laala.app" }
	rc := RouterConfig{
		Gate:  security.NewGate(tokens, security.NewResolver(store.CoManagers(), isAdmin, nil), nil),
		Audit: audit.NewLogger(store.Audit(), nil),
		Flags: featureflags.New(features),
	}
	return &testServer{handler: NewRouter(rc, svc, nil), store: store, tokens: tokens}
}

func (s *testServer) seedPrincipal(t *testing.T, id, email, password string, role domain.UserRole) string {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, s.store.Users().Create(context.Background(), &domain.User{
		ID: id, Email: email, DisplayName: "User " + id, PasswordHash: hash, Role: role, Status: domain.UserActive,
	}))
	token, err := s.tokens.GenerateToken(auth.Identity{
		Subject: id, Email: email, Role: string(role), Kind: auth.KindPrincipal,
	})
	require.NoError(t, err)
	return token
}

type envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Requests json.RawMessage `json:"requests"`
	Message  string          `json:"message"`
	Error    string          `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func allFeatures() map[string]bool {
	return map[string]bool{
		config.FeatureAccountRequests: true,
		config.FeatureCampaigns:       true,
		config.FeatureRetraits:        true,
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, allFeatures())

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready"`)
}

func TestAuthenticationFailures(t *testing.T) {
	s := newTestServer(t, allFeatures())

	code, env := s.do(t, http.MethodGet, "/api/laalas", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "missing token", env.Error)
	assert.False(t, env.Success)

	code, env = s.do(t, http.MethodGet, "/api/laalas", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid token", env.Error)
}

func TestAccountRequestFlowOverHTTP(t *testing.T) {
	s := newTestServer(t, allFeatures())
	adminToken := s.seedPrincipal(t, "admin-1", "ops@laala.app", "admin-password", domain.RoleCreator)
	creatorToken := s.seedPrincipal(t, "p-1", "creator@example.com", "creator-password", domain.RoleCreator)

	code, env := s.do(t, http.MethodPost, "/api/auth/request-account", "", map[string]string{"email": "new@example.com"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	created := decode[AccountRequestView](t, env.Data)
	assert.Equal(t, "pending", created.Status)

	code, _ = s.do(t, http.MethodPost, "/api/auth/request-account", "", map[string]string{"email": "new@example.com"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodGet, "/api/account-requests", creatorToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(t, http.MethodGet, "/api/account-requests?status=pending", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	listed := decode[[]AccountRequestView](t, env.Requests)
	require.Len(t, listed, 1)
	assert.False(t, listed[0].HasTemporaryPassword)

	code, env = s.do(t, http.MethodPut, "/api/admin/account-requests", adminToken, map[string]string{
		"requestId": created.ID, "action": "approve",
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	processed := decode[ProcessResponse](t, env.Data)
	assert.True(t, processed.Request.HasTemporaryPassword)
	require.NotEmpty(t, processed.TemporaryPassword)

	code, _ = s.do(t, http.MethodPut, "/api/admin/account-requests", adminToken, map[string]string{
		"requestId": created.ID, "action": "reject", "comment": "trop tard",
	})
	assert.Equal(t, http.StatusConflict, code)

	code, env = s.do(t, http.MethodPost, "/api/auth/login-temporary", "", map[string]string{
		"email": "new@example.com", "temporaryPassword": processed.TemporaryPassword, "newPassword": "definitive-pass",
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	session := decode[service.LoginResult](t, env.Data)

	code, env = s.do(t, http.MethodGet, "/api/me/context", session.Token, nil)
	require.Equal(t, http.StatusOK, code)
	view := decode[ContextView](t, env.Data)
	assert.Equal(t, auth.KindPrincipal, view.Kind)
	assert.Equal(t, session.SubjectID, view.ProprietaireID)
	assert.Equal(t, "idCreateur", view.DataFilter.Field)
}

func TestCoManagerFlowOverHTTP(t *testing.T) {
	s := newTestServer(t, allFeatures())
	ownerToken := s.seedPrincipal(t, "p-1", "owner@example.com", "owner-password", domain.RoleCreator)
	otherToken := s.seedPrincipal(t, "p-2", "other@example.com", "other-password", domain.RoleCreator)

	code, env := s.do(t, http.MethodPost, "/api/co-gestionnaires", ownerToken, map[string]interface{}{
		"nom": "Kouassi", "prenom": "Alice", "email": "alice@example.com", "telephone": "+2250700000000",
		"pays": "CI", "ville": "Abidjan", "accessLevel": "Ajouter", "password": "alice-password",
		"permissions": []map[string]interface{}{{"resource": "laalas", "actions": []string{"read", "create"}}},
	})
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, env = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "alice-password",
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	cmSession := decode[service.LoginResult](t, env.Data)
	assert.Equal(t, auth.KindCoManager, cmSession.Kind)
	assert.True(t, cmSession.MustChangePassword)

	code, env = s.do(t, http.MethodPost, "/api/laalas", cmSession.Token, map[string]string{"nom": "Concert", "type": "public"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	doc := decode[domain.Document](t, env.Data)
	assert.Equal(t, "p-1", doc.IDCreateur)
	assert.Equal(t, cmSession.SubjectID, doc.CreatedBy)

	code, env = s.do(t, http.MethodDelete, "/api/laalas/"+doc.ID, cmSession.Token, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "permission denied: delete on laalas", env.Error)

	code, _ = s.do(t, http.MethodGet, "/api/contenus", cmSession.Token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodGet, "/api/profile", cmSession.Token, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(t, http.MethodGet, "/api/co-gestionnaires", cmSession.Token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodGet, "/api/laalas/"+doc.ID, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = s.do(t, http.MethodGet, "/api/laalas/"+doc.ID, ownerToken, nil)
	require.Equal(t, http.StatusOK, code, env.Error)

	// the failed delete is not audited, the create is
	code, env = s.do(t, http.MethodGet, "/api/audit-logs", ownerToken, nil)
	require.Equal(t, http.StatusOK, code)
	entries := decode[[]domain.AuditEntry](t, env.Data)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActionCreate, entries[0].Action)
	assert.Equal(t, doc.ID, entries[0].ResourceID)
	assert.Equal(t, "Alice Kouassi", entries[0].ActorName)

	code, env = s.do(t, http.MethodPut, "/api/co-gestionnaires/me/password", cmSession.Token, map[string]string{
		"currentPassword": "alice-password", "newPassword": "alice-new-pass",
	})
	require.Equal(t, http.StatusOK, code, env.Error)

	code, _ = s.do(t, http.MethodPut, "/api/co-gestionnaires/me/password", ownerToken, map[string]string{
		"currentPassword": "owner-password", "newPassword": "owner-new-pass",
	})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(t, http.MethodGet, "/api/co-gestionnaires", ownerToken, nil)
	require.Equal(t, http.StatusOK, code)
	list := decode[[]domain.CoManager](t, env.Data)
	require.Len(t, list, 1)

	code, _ = s.do(t, http.MethodPut, "/api/co-gestionnaires/"+list[0].ID, ownerToken, map[string]string{"statut": "suspendu"})
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(t, http.MethodGet, "/api/laalas", cmSession.Token, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Contains(t, env.Error, "suspendu")
}

func TestDisabledFeatureReturnsGone(t *testing.T) {
	features := allFeatures()
	features[config.FeatureCampaigns] = false
	features[config.FeatureAccountRequests] = false
	s := newTestServer(t, features)
	token := s.seedPrincipal(t, "p-1", "creator@example.com", "creator-password", domain.RoleCreator)

	code, env := s.do(t, http.MethodGet, "/api/campaigns", token, nil)
	assert.Equal(t, http.StatusGone, code)
	assert.Equal(t, "feature campaigns is disabled", env.Error)

	code, _ = s.do(t, http.MethodPost, "/api/auth/request-account", "", map[string]string{"email": "x@example.com"})
	assert.Equal(t, http.StatusGone, code)

	code, _ = s.do(t, http.MethodGet, "/api/laalas", token, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestRejectsNonJSONBodies(t *testing.T) {
	s := newTestServer(t, allFeatures())
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("email=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	code, env := s.do(t, http.MethodGet, "/api/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
}

func TestNotificationInboxOverHTTP(t *testing.T) {
	s := newTestServer(t, allFeatures())
	ownerToken := s.seedPrincipal(t, "p-1", "owner@example.com", "owner-password", domain.RoleCreator)
	otherToken := s.seedPrincipal(t, "p-2", "other@example.com", "other-password", domain.RoleCreator)

	code, env := s.do(t, http.MethodPost, "/api/co-gestionnaires", ownerToken, map[string]interface{}{
		"nom": "Kouassi", "email": "alice@example.com", "telephone": "+2250700000000",
		"pays": "CI", "ville": "Abidjan", "accessLevel": "consulter", "password": "alice-password",
		"permissions": []map[string]interface{}{{"resource": "laalas", "actions": []string{"read"}}},
	})
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, env = s.do(t, http.MethodGet, "/api/notifications?unread=true", ownerToken, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	inbox := decode[[]domain.Notification](t, env.Data)
	require.Len(t, inbox, 1)
	assert.Equal(t, domain.NotificationCoManagerCreated, inbox[0].Type)

	// another principal cannot touch it
	code, _ = s.do(t, http.MethodPut, "/api/notifications/"+inbox[0].ID, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = s.do(t, http.MethodPut, "/api/notifications/"+inbox[0].ID, ownerToken, nil)
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = s.do(t, http.MethodGet, "/api/notifications?unread=true", ownerToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]domain.Notification](t, env.Data))

	code, env = s.do(t, http.MethodPut, "/api/notifications", ownerToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]int64{"updated": 0}, decode[map[string]int64](t, env.Data))

	code, _ = s.do(t, http.MethodDelete, "/api/notifications/"+inbox[0].ID, ownerToken, nil)
	assert.Equal(t, http.StatusOK, code)
	code, env = s.do(t, http.MethodGet, "/api/notifications", ownerToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]domain.Notification](t, env.Data))
}

func TestDeletedCoManagerSessionIsRevoked(t *testing.T) {
	s := newTestServer(t, allFeatures())
	ownerToken := s.seedPrincipal(t, "p-1", "owner@example.com", "owner-password", domain.RoleCreator)

	code, env := s.do(t, http.MethodPost, "/api/co-gestionnaires", ownerToken, map[string]interface{}{
		"nom": "Kouassi", "email": "alice@example.com", "telephone": "+2250700000000",
		"pays": "CI", "ville": "Abidjan", "accessLevel": "gerer", "password": "alice-password",
		"permissions": []map[string]interface{}{{"resource": "laalas", "actions": []string{"read", "create"}}},
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	cm := decode[domain.CoManager](t, env.Data)

	code, env = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "alice-password",
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	session := decode[service.LoginResult](t, env.Data)

	code, env = s.do(t, http.MethodDelete, "/api/co-gestionnaires/"+cm.ID, ownerToken, nil)
	require.Equal(t, http.StatusOK, code, env.Error)

	// the old token must not fall back to a principal of its own
	code, env = s.do(t, http.MethodGet, "/api/me/context", session.Token, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Contains(t, env.Error, "no longer exists")

	code, _ = s.do(t, http.MethodPost, "/api/co-gestionnaires", session.Token, map[string]interface{}{
		"nom": "Mallory", "email": "mallory@example.com", "telephone": "1", "pays": "CI", "ville": "Abidjan",
		"accessLevel": "gerer", "password": "mallory-password",
		"permissions": []map[string]interface{}{{"resource": "laalas", "actions": []string{"read"}}},
	})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodPost, "/api/laalas", session.Token, map[string]string{"nom": "Concert", "type": "public"})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestPendingRequestEmailCannotBecomeCoManager(t *testing.T) {
	s := newTestServer(t, allFeatures())
	ownerToken := s.seedPrincipal(t, "p-1", "owner@example.com", "owner-password", domain.RoleCreator)

	code, env := s.do(t, http.MethodPost, "/api/auth/request-account", "", map[string]string{"email": "bob@example.com"})
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, env = s.do(t, http.MethodPost, "/api/co-gestionnaires", ownerToken, map[string]interface{}{
		"nom": "Yao", "prenom": "Bob", "email": "bob@example.com", "telephone": "+2250700000000",
		"pays": "CI", "ville": "Abidjan", "accessLevel": "consulter", "password": "bob-password",
		"permissions": []map[string]interface{}{{"resource": "laalas", "actions": []string{"read"}}},
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, env.Error, "pending account request")
}

func TestDoubleRejectionOverHTTP(t *testing.T) {
	s := newTestServer(t, allFeatures())
	adminToken := s.seedPrincipal(t, "admin-1", "ops@laala.app", "admin-password", domain.RoleCreator)

	code, env := s.do(t, http.MethodPost, "/api/auth/request-account", "", map[string]string{"email": "carol@example.com"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	created := decode[AccountRequestView](t, env.Data)

	reject := map[string]string{"requestId": created.ID, "action": "reject", "comment": "duplicate"}
	code, env = s.do(t, http.MethodPut, "/api/admin/account-requests", adminToken, reject)
	require.Equal(t, http.StatusOK, code, env.Error)

	reject["comment"] = "again"
	code, _ = s.do(t, http.MethodPut, "/api/admin/account-requests", adminToken, reject)
	assert.Equal(t, http.StatusConflict, code)

	code, env = s.do(t, http.MethodGet, "/api/account-requests/"+created.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	got := decode[AccountRequestView](t, env.Data)
	assert.Equal(t, "rejected", got.Status)
	assert.Equal(t, "duplicate", got.AdminComment)
}

func TestExternalPrincipalIsProvisionedOnFirstRequest(t *testing.T) {
	s := newTestServer(t, allFeatures())
	// identity minted elsewhere: no users row, no kind claim
	token, err := s.tokens.GenerateToken(auth.Identity{Subject: "oidc|42", Email: "dana@example.com", Name: "Dana"})
	require.NoError(t, err)

	code, env := s.do(t, http.MethodPost, "/api/co-gestionnaires", token, map[string]interface{}{
		"nom": "Kone", "prenom": "Eli", "email": "eli@example.com", "telephone": "+2250700000000",
		"pays": "CI", "ville": "Abidjan", "accessLevel": "consulter", "password": "eli-password",
		"permissions": []map[string]interface{}{{"resource": "laalas", "actions": []string{"read"}}},
	})
	require.Equal(t, http.StatusCreated, code, env.Error)

	owner, err := s.store.Users().GetByID(context.Background(), "oidc|42")
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", owner.Email)

	code, env = s.do(t, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	profile := decode[domain.User](t, env.Data)
	assert.Equal(t, "Dana", profile.DisplayName)
}
