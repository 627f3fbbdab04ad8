package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/proposal-approval/internal/domain/entity"
	"github.com/garyjia/proposal-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/proposal-approval/pkg/database"
)

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "repo.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 4,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).Run(context.Background()))
	return sqlite.NewDB(db.DB, logger, sqlite.WithReader(db.Reader))
}

func newProposal(title, applicant, amount string) *entity.Proposal {
	return &entity.Proposal{
		Title:         title,
		ApplicantName: applicant,
		Amount:        decimal.RequireFromString(amount),
		Description:   "description of " + title,
		Status:        entity.ProposalStatusDraft,
	}
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
