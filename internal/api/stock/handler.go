package stock

import (
	"context"
	"net/http"

	"dairystock/internal/api/response"
	"dairystock/internal/domain"
	"dairystock/internal/pkg/logger"
)

// StockService define o contrato que o Handler espera da camada de Serviço.
type StockService interface {
	ReceiveStock(ctx context.Context, req domain.ReceiveBatchRequest) (domain.StockBatch, error)
	ListAvailableBatches(ctx context.Context, productID string) ([]domain.StockBatch, error)
	GetStockSummary(ctx context.Context, productID string) (domain.StockSummary, error)
}

// Handler agrupa todos os métodos de Handler de estoque.
type Handler struct {
	Service StockService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc StockService, log logger.Logger) *Handler {
	return &Handler{
		Service: svc,
		Logger:  log,
	}
}

// ReceiveBatchHandler lida com a requisição POST /v1/batches (entrada de mercadoria).
func (h *Handler) ReceiveBatchHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ReceiveBatchRequest
	if err := response.Decode(r, &req); err != nil {
		response.Send(w, r, h.Logger, nil, err, http.StatusBadRequest)
		return
	}

	batch, err := h.Service.ReceiveStock(r.Context(), req)
	response.Send(w, r, h.Logger, batch, err, http.StatusCreated)
}

// ListBatchesHandler lida com a requisição GET /v1/products/{id}/batches.
func (h *Handler) ListBatchesHandler(w http.ResponseWriter, r *http.Request) {
	batches, err := h.Service.ListAvailableBatches(r.Context(), r.PathValue("id"))
	response.Send(w, r, h.Logger, batches, err, http.StatusOK)
}

// StockSummaryHandler lida com a requisição GET /v1/products/{id}/stock.
func (h *Handler) StockSummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.GetStockSummary(r.Context(), r.PathValue("id"))
	response.Send(w, r, h.Logger, summary, err, http.StatusOK)
}
