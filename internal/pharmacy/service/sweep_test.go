package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pharmaflow/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmaflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/pharmaflow/pharmacy-backend/pkg/database"
	"github.com/pharmaflow/pharmacy-backend/pkg/errors"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
	"github.com/pharmaflow/pharmacy-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSweepService(t *testing.T) (*service.SweepService, *testutil.MockDB) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	log := logger.New("test", "test")
	db := database.NewFromSqlx(mockDB.DB, log)

	svc := service.NewSweepService(
		db,
		repository.NewStockRepository(db),
		repository.NewExpiryRegisterRepository(db),
		repository.NewStockHistoryRepository(db),
		nil,
		log,
	)
	return svc, mockDB
}

func TestSweepService_SweepExpiring_FlagsCandidates(t *testing.T) {
	svc, mockDB := newSweepService(t)
	identity := calpolIdentity()
	identity.ExpiryDate = dateOf(2026, time.February, 15)

	mockDB.ExpectQuery("SELECT * FROM pharmacy_stock").
		WillReturnRows(stockRow("batch-1", identity, 35, 200))

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("DELETE FROM pharmacy_stock WHERE id = $1 RETURNING *").
		WithArgs("batch-1").
		WillReturnRows(stockRow("batch-1", identity, 35, 200))
	mockDB.ExpectQuery("INSERT INTO pharmacy_expiry_register (").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mockDB.ExpectCommit()

	result, err := svc.SweepExpiring(context.Background(), dateOf(2026, time.January, 18))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Flagged)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, dateOf(2026, time.January, 1), result.WindowFrom)
	assert.Equal(t, dateOf(2026, time.March, 1), result.WindowUntil)

	mockDB.ExpectationsWereMet(t)
}

func TestSweepService_SweepExpiring_SkipsAlreadyClaimedBatch(t *testing.T) {
	svc, mockDB := newSweepService(t)
	identity := calpolIdentity()
	identity.ExpiryDate = dateOf(2026, time.February, 15)

	mockDB.ExpectQuery("SELECT * FROM pharmacy_stock").
		WillReturnRows(stockRow("batch-1", identity, 35, 200))

	// A concurrent sweep deleted the batch between candidate listing and
	// the claim: the DELETE finds nothing and the batch is skipped.
	mockDB.ExpectBegin()
	mockDB.ExpectQuery("DELETE FROM pharmacy_stock WHERE id = $1 RETURNING *").
		WithArgs("batch-1").
		WillReturnRows(testutil.MockRows(testutil.StockColumns()...))
	mockDB.ExpectRollback()

	result, err := svc.SweepExpiring(context.Background(), dateOf(2026, time.January, 18))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Flagged)
	assert.Equal(t, 0, result.Failed)

	mockDB.ExpectationsWereMet(t)
}

func TestSweepService_SweepExpiring_RegisterFailureRestoresBatch(t *testing.T) {
	svc, mockDB := newSweepService(t)
	identity := calpolIdentity()
	identity.ExpiryDate = dateOf(2026, time.February, 15)

	mockDB.ExpectQuery("SELECT * FROM pharmacy_stock").
		WillReturnRows(stockRow("batch-1", identity, 35, 200))

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("DELETE FROM pharmacy_stock WHERE id = $1 RETURNING *").
		WithArgs("batch-1").
		WillReturnRows(stockRow("batch-1", identity, 35, 200))
	mockDB.ExpectQuery("INSERT INTO pharmacy_expiry_register (").
		WillReturnError(errors.Internal("boom"))
	mockDB.ExpectRollback()

	result, err := svc.SweepExpiring(context.Background(), dateOf(2026, time.January, 18))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Flagged)
	assert.Equal(t, 1, result.Failed)

	mockDB.ExpectationsWereMet(t)
}

func TestSweepService_ArchiveExhausted(t *testing.T) {
	svc, mockDB := newSweepService(t)

	mockDB.ExpectBegin()
	mockDB.ExpectExec("WITH exhausted AS (").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mockDB.ExpectCommit()

	archived, err := svc.ArchiveExhausted(context.Background(), dateOf(2026, time.February, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(3), archived)

	mockDB.ExpectationsWereMet(t)
}

func TestSweepService_MarkRemoved_RequiresDate(t *testing.T) {
	svc, mockDB := newSweepService(t)

	_, err := svc.MarkRemoved(context.Background(), "entry-1", time.Time{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	mockDB.ExpectationsWereMet(t)
}
