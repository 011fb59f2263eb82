package batchrepo_test

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dairystock/internal/domain"
	apperror "dairystock/internal/errors"
	"dairystock/internal/pkg/database"
	"dairystock/internal/pkg/logger"
	"dairystock/internal/repository/batchrepo"
)

// Os testes deste pacote precisam de um PostgreSQL real:
// TEST_DATABASE_URL=postgres://... go test ./internal/repository/batchrepo/
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL não definido; pulando testes de integração do ledger PostgreSQL.")
	}

	db, err := database.NewPostgresDB(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	goose.SetLogger(goose.NopLogger())
	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.Up(db, "../../../sql"))
	return db
}

func createProduct(t *testing.T, db *sql.DB) string {
	t.Helper()
	id := uuid.New().String()
	_, err := db.Exec(`INSERT INTO products (id, sku, name, unit) VALUES ($1, $2, $3, 'L')`, id, "SKU-"+id[:8], "Leite integral")
	require.NoError(t, err)
	return id
}

func qty(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestBatchRepository_ReceiveAndFindFIFO(t *testing.T) {
	db := setupDB(t)
	repo := batchrepo.NewBatchRepository(db, 5*time.Second, logger.NewNop())
	ctx := context.Background()
	productID := createProduct(t, db)
	day1 := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)

	newer, err := repo.ReceiveBatch(ctx, domain.StockBatch{ProductID: productID, QuantityReceived: qty(5), ReceivedAt: day1.AddDate(0, 0, 1)})
	require.NoError(t, err)
	older, err := repo.ReceiveBatch(ctx, domain.StockBatch{ProductID: productID, QuantityReceived: qty(5), ReceivedAt: day1})
	require.NoError(t, err)
	tie, err := repo.ReceiveBatch(ctx, domain.StockBatch{ProductID: productID, QuantityReceived: qty(2), ReceivedAt: day1})
	require.NoError(t, err)

	assert.True(t, older.Remaining.Equal(qty(5)))

	batches, err := repo.FindAvailableBatches(ctx, productID)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, []string{older.ID, tie.ID, newer.ID}, []string{batches[0].ID, batches[1].ID, batches[2].ID})
}

func TestBatchRepository_ReceiveUnknownProduct(t *testing.T) {
	db := setupDB(t)
	repo := batchrepo.NewBatchRepository(db, 5*time.Second, logger.NewNop())

	_, err := repo.ReceiveBatch(context.Background(), domain.StockBatch{ProductID: uuid.New().String(), QuantityReceived: qty(1)})
	assert.IsType(t, &apperror.ValidationError{}, err)
}

func TestBatchRepository_RollbackLeavesBatchesUntouched(t *testing.T) {
	db := setupDB(t)
	repo := batchrepo.NewBatchRepository(db, 5*time.Second, logger.NewNop())
	ctx := context.Background()
	productID := createProduct(t, db)

	b, err := repo.ReceiveBatch(ctx, domain.StockBatch{ProductID: productID, QuantityReceived: qty(8)})
	require.NoError(t, err)

	err = repo.WithinTx(ctx, func(tx domain.LedgerTx) error {
		require.NoError(t, tx.DecrementRemaining(ctx, b.ID, qty(3)))
		return tx.DecrementRemaining(ctx, b.ID, qty(6)) // só restam 5
	})
	assert.IsType(t, &apperror.ConflictError{}, err)

	after, err := repo.FindBatchByID(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, after.Remaining.Equal(qty(8)))
}

func TestBatchRepository_ConcurrentDecrementsNeverOverdraw(t *testing.T) {
	db := setupDB(t)
	repo := batchrepo.NewBatchRepository(db, 5*time.Second, logger.NewNop())
	ctx := context.Background()
	productID := createProduct(t, db)

	b, err := repo.ReceiveBatch(ctx, domain.StockBatch{ProductID: productID, QuantityReceived: qty(5)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.WithinTx(ctx, func(tx domain.LedgerTx) error {
				batches, err := tx.FindAvailableBatches(ctx, productID)
				if err != nil {
					return err
				}
				if len(batches) == 0 || batches[0].Remaining.LessThan(qty(3)) {
					return apperror.NewInsufficientStockError(productID, qty(3), qty(3))
				}
				return tx.DecrementRemaining(ctx, batches[0].ID, qty(3))
			})
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)

	after, err := repo.FindBatchByID(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, after.Remaining.Equal(qty(2)))
}

func TestBatchRepository_RecordConsumptions(t *testing.T) {
	db := setupDB(t)
	repo := batchrepo.NewBatchRepository(db, 5*time.Second, logger.NewNop())
	ctx := context.Background()
	productID := createProduct(t, db)
	reference := "PED-" + uuid.New().String()

	b, err := repo.ReceiveBatch(ctx, domain.StockBatch{ProductID: productID, QuantityReceived: qty(4)})
	require.NoError(t, err)

	plan := []domain.Consumption{{BatchID: b.ID, ProductID: productID, Qty: qty(4)}}
	require.NoError(t, repo.WithinTx(ctx, func(tx domain.LedgerTx) error {
		if err := tx.DecrementRemaining(ctx, b.ID, qty(4)); err != nil {
			return err
		}
		return tx.RecordConsumptions(ctx, reference, plan)
	}))

	records, err := repo.FindConsumptions(ctx, reference)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, b.ID, records[0].BatchID)
	assert.True(t, records[0].Qty.Equal(qty(4)))

	err = repo.WithinTx(ctx, func(tx domain.LedgerTx) error {
		return tx.RecordConsumptions(ctx, reference, plan)
	})
	assert.IsType(t, &apperror.ValidationError{}, err)
}

// TestBatchRepository_RejectsQuantityBeyondColumnScale recusa valores que NUMERIC(20,4) arredondaria.
func TestBatchRepository_RejectsQuantityBeyondColumnScale(t *testing.T) {
	db := setupDB(t)
	repo := batchrepo.NewBatchRepository(db, 5*time.Second, logger.NewNop())
	productID := createProduct(t, db)

	_, err := repo.ReceiveBatch(context.Background(), domain.StockBatch{ProductID: productID, QuantityReceived: decimal.RequireFromString("1.00005")})
	assert.IsType(t, &apperror.ValidationError{}, err)

	b, err := repo.ReceiveBatch(context.Background(), domain.StockBatch{ProductID: productID, QuantityReceived: decimal.RequireFromString("1.0001")})
	require.NoError(t, err)

	err = repo.WithinTx(context.Background(), func(tx domain.LedgerTx) error {
		return tx.DecrementRemaining(context.Background(), b.ID, decimal.RequireFromString("0.00004"))
	})
	assert.IsType(t, &apperror.ValidationError{}, err)

	stored, err := repo.FindBatchByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.True(t, stored.Remaining.Equal(decimal.RequireFromString("1.0001")))
}
