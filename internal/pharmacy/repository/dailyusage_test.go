package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pharmaflow/pharmacy-backend/internal/pharmacy/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addUsage(t *testing.T, ctx context.Context, repo *repository.DailyUsageRepository, identity repository.BatchIdentity, date time.Time, delta int) int {
	t.Helper()
	var total int
	err := suite.DB.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		total, err = repo.AddTx(ctx, tx, identity, date, delta)
		return err
	})
	require.NoError(t, err)
	return total
}

func TestDailyUsageRepository_Add_AccumulatesSameDay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	suite.TruncateAll(t, ctx)

	repo := repository.NewDailyUsageRepository(suite.DB)
	day := dateOf(2026, time.January, 10)

	assert.Equal(t, 50, addUsage(t, ctx, repo, calpolIdentity(), day, 50))
	assert.Equal(t, 80, addUsage(t, ctx, repo, calpolIdentity(), day, 30))

	records, err := repo.ListMonth(ctx, 2026, time.January)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 80, records[0].Quantity)
	assert.Equal(t, day, records[0].UsageDate)
}

func TestDailyUsageRepository_Add_SeparateDaysSeparateRows(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	suite.TruncateAll(t, ctx)

	repo := repository.NewDailyUsageRepository(suite.DB)

	addUsage(t, ctx, repo, calpolIdentity(), dateOf(2026, time.January, 10), 50)
	addUsage(t, ctx, repo, calpolIdentity(), dateOf(2026, time.January, 11), 20)

	records, err := repo.ListMonth(ctx, 2026, time.January)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDailyUsageRepository_ListMonth_ExcludesNeighbours(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	suite.TruncateAll(t, ctx)

	repo := repository.NewDailyUsageRepository(suite.DB)

	addUsage(t, ctx, repo, calpolIdentity(), dateOf(2026, time.January, 31), 10)
	addUsage(t, ctx, repo, calpolIdentity(), dateOf(2026, time.February, 1), 20)
	addUsage(t, ctx, repo, calpolIdentity(), dateOf(2026, time.February, 28), 30)
	addUsage(t, ctx, repo, calpolIdentity(), dateOf(2026, time.March, 1), 40)

	records, err := repo.ListMonth(ctx, 2026, time.February)
	require.NoError(t, err)
	require.Len(t, records, 2)

	total := 0
	for _, r := range records {
		total += r.Quantity
	}
	assert.Equal(t, 50, total)
}
