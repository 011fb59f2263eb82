package allocation

import (
	"context"
	"net/http"

	"dairystock/internal/api/response"
	"dairystock/internal/domain"
	"dairystock/internal/pkg/logger"
)

// AllocationService define o contrato de alocação FIFO esperado pelo Handler.
type AllocationService interface {
	AllocateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderAllocation, error)
}

// ConsumptionReader lê o log de consumo de um pedido.
type ConsumptionReader interface {
	ListConsumptions(ctx context.Context, reference string) ([]domain.ConsumptionRecord, error)
}

// Handler agrupa os endpoints de alocação.
type Handler struct {
	Service      AllocationService
	Consumptions ConsumptionReader
	Logger       logger.Logger
}

// NewHandler cria uma nova instância do Handler.
func NewHandler(svc AllocationService, consumptions ConsumptionReader, log logger.Logger) *Handler {
	return &Handler{
		Service:      svc,
		Consumptions: consumptions,
		Logger:       log,
	}
}

// AllocateOrderHandler lida com a requisição POST /v1/allocations.
// Todas as linhas são alocadas juntas; falta de estoque em qualquer linha responde 422.
func (h *Handler) AllocateOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderRequest
	if err := response.Decode(r, &req); err != nil {
		response.Send(w, r, h.Logger, nil, err, http.StatusBadRequest)
		return
	}

	allocation, err := h.Service.AllocateOrder(r.Context(), req)
	response.Send(w, r, h.Logger, allocation, err, http.StatusCreated)
}

// ListConsumptionsHandler lida com a requisição GET /v1/allocations/{reference}.
func (h *Handler) ListConsumptionsHandler(w http.ResponseWriter, r *http.Request) {
	records, err := h.Consumptions.ListConsumptions(r.Context(), r.PathValue("reference"))
	response.Send(w, r, h.Logger, records, err, http.StatusOK)
}
