package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePermissions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      []ResourcePermission
		wantErr bool
		check   func(t *testing.T, p Permissions)
	}{
		{
			name: "single grant",
			in:   []ResourcePermission{{Resource: "laalas", Actions: []string{"read"}}},
			check: func(t *testing.T, p Permissions) {
				assert.True(t, p.Allows(ResourceLaalas, ActionRead))
				assert.False(t, p.Allows(ResourceLaalas, ActionDelete))
				assert.False(t, p.Allows(ResourceContenus, ActionRead))
			},
		},
		{
			name: "duplicate resources merge",
			in: []ResourcePermission{
				{Resource: "campaigns", Actions: []string{"read"}},
				{Resource: "campaigns", Actions: []string{"update"}},
			},
			check: func(t *testing.T, p Permissions) {
				assert.True(t, p.Allows(ResourceCampaigns, ActionRead))
				assert.True(t, p.Allows(ResourceCampaigns, ActionUpdate))
			},
		},
		{
			name:    "unknown resource",
			in:      []ResourcePermission{{Resource: "earnings", Actions: []string{"read"}}},
			wantErr: true,
		},
		{
			name:    "unknown action",
			in:      []ResourcePermission{{Resource: "laalas", Actions: []string{"publish"}}},
			wantErr: true,
		},
		{
			name: "empty list is empty set",
			in:   nil,
			check: func(t *testing.T, p Permissions) {
				assert.True(t, p.Empty())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParsePermissions(tt.in)
			if tt.wantErr {
				var ve *ValidationError
				require.True(t, errors.As(err, &ve), "expected validation error, got %v", err)
				return
			}
			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}

func TestPermissionsJSONRoundTrip(t *testing.T) {
	p := Permissions{}
	p.Grant(ResourceContenus, ActionUpdate)
	p.Grant(ResourceContenus, ActionCreate)
	p.Grant(ResourceLaalas, ActionRead)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"contenus":["create","update"],"laalas":["read"]}`, string(raw))

	var back Permissions
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, p.List(), back.List())

	assert.Error(t, json.Unmarshal([]byte(`{"profile":["read"]}`), &back))
}

func TestOwnerFilter(t *testing.T) {
	assert.Equal(t, DataFilter{Field: "idCreateur", Value: "p-1"}, OwnerFilter("p-1"))
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"bob@example.com", "a.b+c@sub.example.org"} {
		assert.NoError(t, ValidateEmail(ok), ok)
	}
	for _, bad := range []string{"", "bob", "bob@", "Bob <bob@example.com>", "bob@localhost"} {
		assert.Error(t, ValidateEmail(bad), bad)
	}
}

func TestCoManagerValidate(t *testing.T) {
	valid := func() *CoManager {
		p := Permissions{}
		p.Grant(ResourceLaalas, ActionRead)
		return &CoManager{
			Nom: "Kouassi", Email: "alice@example.com", Telephone: "+2250700000000",
			Pays: "CI", Ville: "Abidjan", AccessLevel: AccessView, Status: CoManagerActive,
			Permissions: p, ProprietaireID: "p-1",
		}
	}

	require.NoError(t, valid().Validate())

	cm := valid()
	cm.Permissions = Permissions{}
	assert.ErrorContains(t, cm.Validate(), "permissions")

	cm = valid()
	cm.Telephone = " "
	assert.ErrorContains(t, cm.Validate(), "telephone")

	cm = valid()
	cm.AccessLevel = "owner"
	assert.ErrorContains(t, cm.Validate(), "accessLevel")

	assert.True(t, CoManagerPending.CanAct())
	assert.False(t, CoManagerSuspended.CanAct())
}
