package router

import (
	"net/http"
	"time"

	"dairystock/internal/api/allocation"
	"dairystock/internal/api/product"
	"dairystock/internal/api/stock"
	"dairystock/internal/pkg/cache"
	"dairystock/internal/pkg/logger"
	"dairystock/internal/pkg/metrics"
	"dairystock/internal/pkg/middleware"
)

// Handlers agrupa os Handlers já inicializados por injeção de dependências.
type Handlers struct {
	Product    *product.Handler
	Stock      *stock.Handler
	Allocation *allocation.Handler
}

// RateLimit configura o limitador global. Sem Client o limitador fica desligado.
type RateLimit struct {
	Client      cache.Client
	MaxRequests int
	Period      time.Duration
}

// NewRouter configura e retorna o roteador HTTP principal.
func NewRouter(h Handlers, m *metrics.Metrics, rl RateLimit, log logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check e métricas
	mux.HandleFunc("GET /ping", PingHandler)
	mux.Handle("GET /metrics", m.Handler())

	// Produtos
	mux.HandleFunc("POST /v1/products", h.Product.CreateProductHandler)
	mux.HandleFunc("GET /v1/products/{id}", h.Product.GetProductByIDHandler)

	// Lotes e saldo
	mux.HandleFunc("POST /v1/batches", h.Stock.ReceiveBatchHandler)
	mux.HandleFunc("GET /v1/products/{id}/batches", h.Stock.ListBatchesHandler)
	mux.HandleFunc("GET /v1/products/{id}/stock", h.Stock.StockSummaryHandler)

	// Alocação FIFO
	mux.HandleFunc("POST /v1/allocations", h.Allocation.AllocateOrderHandler)
	mux.HandleFunc("GET /v1/allocations/{reference}", h.Allocation.ListConsumptionsHandler)

	if rl.Client == nil || rl.MaxRequests <= 0 {
		log.Warn("Rate limit desativado (Redis indisponível ou limite zerado).", nil)
		return mux
	}
	return middleware.RateLimiter(rl.Client, rl.MaxRequests, rl.Period, log)(mux)
}

// PingHandler é uma função utilitária para o health check.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
