package audit

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/repository/memory"
)

func TestRecordLogsAndPersists(t *testing.T) {
	var buf bytes.Buffer
	store := memory.NewStore()
	al := NewLogger(store.Audit(), slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx := context.Background()

	require.NoError(t, al.Record(ctx, &domain.AuditEntry{
		ActorID: "cm-1", ActorName: "Awa Diallo", Action: domain.ActionUpdate,
		Resource: domain.ResourceLaalas, ResourceID: "l-9", ActingForPrincipalID: "p-1",
	}))

	assert.Contains(t, buf.String(), `"actor_name":"Awa Diallo"`)
	assert.Contains(t, buf.String(), `"acting_for_principal_id":"p-1"`)

	entries, err := al.List(ctx, "p-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, "l-9", entries[0].ResourceID)

	other, err := al.List(ctx, "p-2", 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}
