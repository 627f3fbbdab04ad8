package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/proposal-approval/internal/domain/entity"
	"github.com/garyjia/proposal-approval/internal/domain/event"
)

func TestOutboxRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	proposals := NewProposalRepository(db, zap.NewNop())
	repo := NewOutboxRepository(db, zap.NewNop())

	p := newProposal("A", "alex", "10")
	require.NoError(t, proposals.Create(ctx, p))

	base := ts("2026-01-01T00:00:00Z")
	var ids []string
	for i, typ := range []event.Type{event.TypeProposalSubmitted, event.TypeStepApproved, event.TypeProposalApproved} {
		msg := &entity.OutboxMessage{
			ID:         uuid.NewString(),
			ProposalID: p.ID,
			EventType:  typ,
			Payload:    `{"type":"` + string(typ) + `"}`,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Append(ctx, msg))
		ids = append(ids, msg.ID)
	}

	pending, err := repo.FetchPending(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, ids[0], pending[0].ID, "oldest first")

	require.NoError(t, repo.MarkPublished(ctx, ids[0], time.Now()))
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.MarkFailed(ctx, ids[1], strings.Repeat("x", 2000)))
	}

	pending, err = repo.FetchPending(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1, "published and exhausted messages are skipped")
	assert.Equal(t, ids[2], pending[0].ID)

	pending, err = repo.FetchPending(ctx, 10, 5)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 3, pending[0].Attempts)
	assert.Len(t, pending[0].LastError, maxErrorLength)

	n, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
