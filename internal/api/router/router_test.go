package router_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dairystock/internal/api/allocation"
	"dairystock/internal/api/product"
	"dairystock/internal/api/router"
	"dairystock/internal/api/stock"
	"dairystock/internal/domain"
	"dairystock/internal/pkg/logger"
	"dairystock/internal/pkg/metrics"
	"dairystock/internal/repository/memoryrepo"
	"dairystock/internal/service/allocationservice"
	"dairystock/internal/service/productservice"
	"dairystock/internal/service/stockservice"
)

func newServer(t *testing.T) http.Handler {
	t.Helper()
	log := logger.NewNop()
	m := metrics.New("dairystock_test")
	ledger := memoryrepo.NewLedger()

	productSvc := productservice.NewService(memoryrepo.NewProductRepository(), log)
	stockSvc := stockservice.NewService(ledger, productSvc, nil, time.Minute, m, log)
	allocationSvc := allocationservice.NewService(ledger, productSvc, stockSvc, allocationservice.Options{MaxRetries: 2}, m, log)

	return router.NewRouter(router.Handlers{
		Product:    product.NewHandler(productSvc, log),
		Stock:      stock.NewHandler(stockSvc, log),
		Allocation: allocation.NewHandler(allocationSvc, stockSvc, log),
	}, m, router.RateLimit{}, log)
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createProduct(t *testing.T, h http.Handler, sku string) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/v1/products", map[string]string{"sku": sku, "name": "Leite integral 1L", "unit": "L"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p domain.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p.ID
}

func receiveBatch(t *testing.T, h http.Handler, productID, quantity string, receivedAt time.Time) domain.StockBatch {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/v1/batches", map[string]interface{}{
		"product_id":  productID,
		"quantity":    quantity,
		"received_at": receivedAt,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var b domain.StockBatch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	return b
}

func TestPing(t *testing.T) {
	rec := do(t, newServer(t), http.MethodGet, "/ping", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestAllocationFlow(t *testing.T) {
	h := newServer(t)
	day1 := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)

	productID := createProduct(t, h, "LT-INT-1L")
	older := receiveBatch(t, h, productID, "5", day1)
	newer := receiveBatch(t, h, productID, "5", day1.AddDate(0, 0, 1))

	rec := do(t, h, http.MethodPost, "/v1/allocations", map[string]interface{}{
		"reference": "PED-100",
		"lines":     []map[string]string{{"product_id": productID, "quantity": "7"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result domain.OrderAllocation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Consumptions, 2)
	assert.Equal(t, older.ID, result.Consumptions[0].BatchID)
	assert.True(t, result.Consumptions[0].Qty.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, newer.ID, result.Consumptions[1].BatchID)
	assert.True(t, result.Consumptions[1].Qty.Equal(decimal.NewFromInt(2)))

	rec = do(t, h, http.MethodGet, "/v1/products/"+productID+"/stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary domain.StockSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.True(t, summary.Available.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, 1, summary.BatchCount)

	rec = do(t, h, http.MethodGet, "/v1/products/"+productID+"/batches", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var batches []domain.StockBatch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batches))
	require.Len(t, batches, 1)
	assert.Equal(t, newer.ID, batches[0].ID)

	rec = do(t, h, http.MethodGet, "/v1/allocations/PED-100", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []domain.ConsumptionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Len(t, records, 2)

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dairystock_test_allocations_total")
}

func TestAllocation_InsufficientStock(t *testing.T) {
	h := newServer(t)
	productID := createProduct(t, h, "QJ-MINAS")
	receiveBatch(t, h, productID, "8", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	rec := do(t, h, http.MethodPost, "/v1/allocations", map[string]interface{}{
		"lines": []map[string]string{{"product_id": productID, "quantity": "10"}},
	})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body domain.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INSUFFICIENT_STOCK", body.Category)
	assert.Equal(t, productID, body.ProductID)
	assert.Equal(t, "2", body.Shortage)
}

func TestAllocation_UnknownProductIsBadRequest(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodPost, "/v1/allocations", map[string]interface{}{
		"lines": []map[string]string{{"product_id": "fantasma", "quantity": "1"}},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAllocation_MalformedPayload(t *testing.T) {
	h := newServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/allocations", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProduct_NotFound(t *testing.T) {
	rec := do(t, newServer(t), http.MethodGet, "/v1/products/nao-existe", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConsumptions_UnknownReference(t *testing.T) {
	rec := do(t, newServer(t), http.MethodGet, "/v1/allocations/PED-404", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
