package productservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dairystock/internal/domain"
	apperror "dairystock/internal/errors"
	"dairystock/internal/pkg/logger"
)

// ProductRepository define o contrato que este Serviço espera da camada de Persistência.
type ProductRepository interface {
	Save(ctx context.Context, product domain.Product) (domain.Product, error)
	FindByID(ctx context.Context, id string) (domain.Product, error)
}

// Service implementa o catálogo mínimo de produtos.
type Service struct {
	repo   ProductRepository
	logger logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Produto.
func NewService(repo ProductRepository, logger logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CreateProduct valida e cadastra um produto.
func (s *Service) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	product.SKU = strings.TrimSpace(product.SKU)
	if product.Name == "" || product.SKU == "" {
		return domain.Product{}, apperror.NewValidationError("Nome e SKU são obrigatórios para o produto.")
	}
	if product.Unit == "" {
		product.Unit = "un"
	}

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	product.IsActive = true
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	created, err := s.repo.Save(ctx, product)
	if err != nil {
		s.logger.Error("Falha ao salvar produto no repositório.", err)
		return domain.Product{}, err
	}

	s.logger.Info("Produto cadastrado.", map[string]interface{}{"product_id": created.ID, "sku": created.SKU})
	return created, nil
}

// GetProductByID busca um produto.
func (s *Service) GetProductByID(ctx context.Context, id string) (domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Product{}, apperror.NewValidationError("O ID do produto é obrigatório.")
	}

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if _, ok := err.(apperror.AppError); ok {
			return domain.Product{}, err
		}
		return domain.Product{}, apperror.NewInternalError(fmt.Sprintf("Falha ao buscar produto %s.", id), err)
	}
	return product, nil
}
