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

func strPtr(s string) *string {
	return &s
}

func dateOf(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func newStockService(t *testing.T) (*service.StockService, *testutil.MockDB) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	log := logger.New("test", "test")
	db := database.NewFromSqlx(mockDB.DB, log)

	svc := service.NewStockService(
		db,
		repository.NewStockRepository(db),
		repository.NewStockHistoryRepository(db),
		repository.NewConsumptionRepository(db),
		repository.NewDailyUsageRepository(db),
		repository.NewMedicineRepository(db),
		nil, // no event publisher in unit tests
		log,
	)
	return svc, mockDB
}

func calpolIdentity() repository.BatchIdentity {
	return repository.BatchIdentity{
		MedicineForm: repository.FormTablet,
		BrandName:    "Calpol",
		ChemicalName: strPtr("Paracetamol"),
		DoseVolume:   strPtr("500mg"),
		ExpiryDate:   dateOf(2026, time.March, 1),
	}
}

func stockRow(id string, identity repository.BatchIdentity, quantity, total int) *sqlmock.Rows {
	now := time.Now()
	return testutil.MockRows(testutil.StockColumns()...).AddRow(
		id, identity.MedicineForm, identity.BrandName, identity.ChemicalName,
		identity.DoseVolume, identity.ExpiryDate, quantity, total,
		dateOf(2026, time.January, 5), now, now,
	)
}

func TestStockService_Receive_RejectsInvalidInput(t *testing.T) {
	svc, mockDB := newStockService(t)

	cases := []struct {
		name  string
		req   service.ReceiveRequest
		field string
	}{
		{
			name: "zero quantity",
			req: service.ReceiveRequest{
				Identity:     calpolIdentity(),
				Quantity:     0,
				ReceivedDate: dateOf(2026, time.January, 5),
			},
			field: "quantity",
		},
		{
			name: "negative quantity",
			req: service.ReceiveRequest{
				Identity:     calpolIdentity(),
				Quantity:     -5,
				ReceivedDate: dateOf(2026, time.January, 5),
			},
			field: "quantity",
		},
		{
			name: "missing brand",
			req: service.ReceiveRequest{
				Identity: repository.BatchIdentity{
					MedicineForm: repository.FormTablet,
					ExpiryDate:   dateOf(2026, time.March, 1),
				},
				Quantity:     10,
				ReceivedDate: dateOf(2026, time.January, 5),
			},
			field: "brand_name",
		},
		{
			name: "unknown form",
			req: service.ReceiveRequest{
				Identity: repository.BatchIdentity{
					MedicineForm: "Gas",
					BrandName:    "Calpol",
					ExpiryDate:   dateOf(2026, time.March, 1),
				},
				Quantity:     10,
				ReceivedDate: dateOf(2026, time.January, 5),
			},
			field: "medicine_form",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Receive(context.Background(), tc.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))

			var appErr *errors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Contains(t, appErr.Details, tc.field)
		})
	}

	// No database traffic for rejected input.
	mockDB.ExpectationsWereMet(t)
}

func TestStockService_Receive_CommitsAllThreeWrites(t *testing.T) {
	svc, mockDB := newStockService(t)
	identity := calpolIdentity()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO pharmacy_stock (").
		WillReturnRows(stockRow("batch-1", identity, 200, 200))
	mockDB.ExpectQuery("INSERT INTO pharmacy_stock_history (").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mockDB.ExpectQuery("INSERT INTO pharmacy_medicines (").
		WillReturnRows(testutil.MockRows("id", "created_at").AddRow("med-1", time.Now()))
	mockDB.ExpectCommit()

	batch, err := svc.Receive(context.Background(), service.ReceiveRequest{
		Identity:     identity,
		Quantity:     200,
		ReceivedDate: dateOf(2026, time.January, 5),
	})
	require.NoError(t, err)
	assert.Equal(t, 200, batch.Quantity)
	assert.Equal(t, 200, batch.TotalQuantity)

	mockDB.ExpectationsWereMet(t)
}

func TestStockService_Receive_RollsBackWhenLedgerFails(t *testing.T) {
	svc, mockDB := newStockService(t)
	identity := calpolIdentity()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO pharmacy_stock (").
		WillReturnRows(stockRow("batch-1", identity, 200, 200))
	mockDB.ExpectQuery("INSERT INTO pharmacy_stock_history (").
		WillReturnError(assertAnError())
	mockDB.ExpectRollback()

	_, err := svc.Receive(context.Background(), service.ReceiveRequest{
		Identity:     identity,
		Quantity:     200,
		ReceivedDate: dateOf(2026, time.January, 5),
	})
	require.Error(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestStockService_RecordConsumption_CommitsDecrementLogAndAggregate(t *testing.T) {
	svc, mockDB := newStockService(t)
	identity := calpolIdentity()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM pharmacy_stock WHERE brand_name = $1").
		WillReturnRows(stockRow("batch-1", identity, 200, 200))
	mockDB.ExpectExec("UPDATE pharmacy_stock SET quantity = quantity - $2").
		WithArgs("batch-1", 50).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("INSERT INTO pharmacy_consumptions (").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mockDB.ExpectQuery("INSERT INTO pharmacy_daily_usage (").
		WillReturnRows(testutil.MockRows("quantity").AddRow(50))
	mockDB.ExpectCommit()

	result, err := svc.RecordConsumption(context.Background(), service.ConsumptionRequest{
		Kind:     repository.KindWard,
		Filter:   repository.FilterFor(identity),
		Quantity: 50,
		Date:     dateOf(2026, time.January, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, 150, result.Remaining)
	assert.Equal(t, 50, result.DayTotal)
	assert.Equal(t, repository.KindWard, result.Event.Kind)
	assert.Equal(t, identity.ExpiryDate, result.Event.ExpiryDate)

	mockDB.ExpectationsWereMet(t)
}

func TestStockService_RecordConsumption_InsufficientStockRollsBack(t *testing.T) {
	svc, mockDB := newStockService(t)
	identity := calpolIdentity()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM pharmacy_stock WHERE brand_name = $1").
		WillReturnRows(stockRow("batch-1", identity, 120, 200))
	mockDB.ExpectRollback()

	_, err := svc.RecordConsumption(context.Background(), service.ConsumptionRequest{
		Kind:     repository.KindWard,
		Filter:   repository.FilterFor(identity),
		Quantity: 200,
		Date:     dateOf(2026, time.January, 10),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	available, ok := errors.AvailableStock(err)
	require.True(t, ok)
	assert.Equal(t, 120, available)

	mockDB.ExpectationsWereMet(t)
}

func TestStockService_RecordConsumption_AggregateFailureRollsBackDecrement(t *testing.T) {
	svc, mockDB := newStockService(t)
	identity := calpolIdentity()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("SELECT * FROM pharmacy_stock WHERE brand_name = $1").
		WillReturnRows(stockRow("batch-1", identity, 200, 200))
	mockDB.ExpectExec("UPDATE pharmacy_stock SET quantity = quantity - $2").
		WithArgs("batch-1", 50).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery("INSERT INTO pharmacy_consumptions (").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mockDB.ExpectQuery("INSERT INTO pharmacy_daily_usage (").
		WillReturnError(assertAnError())
	mockDB.ExpectRollback()

	_, err := svc.RecordConsumption(context.Background(), service.ConsumptionRequest{
		Kind:     repository.KindWard,
		Filter:   repository.FilterFor(identity),
		Quantity: 50,
		Date:     dateOf(2026, time.January, 10),
	})
	require.Error(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestStockService_RecordConsumption_DiscardRequiresReason(t *testing.T) {
	svc, mockDB := newStockService(t)

	_, err := svc.RecordConsumption(context.Background(), service.ConsumptionRequest{
		Kind:     repository.KindDiscard,
		Filter:   repository.FilterFor(calpolIdentity()),
		Quantity: 10,
		Date:     dateOf(2026, time.January, 10),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Details, "reason")

	mockDB.ExpectationsWereMet(t)
}

func TestStockService_RecordConsumption_RejectsUnknownKind(t *testing.T) {
	svc, mockDB := newStockService(t)

	_, err := svc.RecordConsumption(context.Background(), service.ConsumptionRequest{
		Kind:     "donation",
		Filter:   repository.FilterFor(calpolIdentity()),
		Quantity: 10,
		Date:     dateOf(2026, time.January, 10),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	mockDB.ExpectationsWereMet(t)
}

func assertAnError() error {
	return errors.Internal("boom")
}
