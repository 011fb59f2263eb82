package product

import (
	"context"
	"net/http"

	"dairystock/internal/api/response"
	"dairystock/internal/domain"
	apperror "dairystock/internal/errors"
	"dairystock/internal/pkg/logger"
)

// ProductService define o contrato que o Handler espera da camada de Serviço.
type ProductService interface {
	CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	GetProductByID(ctx context.Context, id string) (domain.Product, error)
}

// Handler agrupa todos os métodos de Handler do produto.
type Handler struct {
	Service ProductService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc ProductService, log logger.Logger) *Handler {
	return &Handler{
		Service: svc,
		Logger:  log,
	}
}

// createProductRequest é o payload aceito em POST /v1/products.
type createProductRequest struct {
	SKU  string `json:"sku"`
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// CreateProductHandler lida com a requisição POST /v1/products.
func (h *Handler) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := response.Decode(r, &req); err != nil {
		response.Send(w, r, h.Logger, nil, err, http.StatusBadRequest)
		return
	}

	created, err := h.Service.CreateProduct(r.Context(), domain.Product{SKU: req.SKU, Name: req.Name, Unit: req.Unit})
	response.Send(w, r, h.Logger, created, err, http.StatusCreated)
}

// GetProductByIDHandler lida com a requisição GET /v1/products/{id}.
func (h *Handler) GetProductByIDHandler(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")
	if productID == "" {
		response.Send(w, r, h.Logger, nil, apperror.NewValidationError("ID do produto é obrigatório."), http.StatusOK)
		return
	}

	product, err := h.Service.GetProductByID(r.Context(), productID)
	response.Send(w, r, h.Logger, product, err, http.StatusOK)
}
