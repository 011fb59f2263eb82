package memoryrepo

import (
	"context"
	"fmt"
	"sync"

	"dairystock/internal/domain"
	"dairystock/internal/errors"
)

// ProductRepository guarda o catálogo em memória (STORAGE_DRIVER=memory).
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

// NewProductRepository cria um catálogo vazio.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{products: make(map[string]domain.Product)}
}

// Save persiste um novo produto. O SKU é único.
func (r *ProductRepository) Save(ctx context.Context, product domain.Product) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.products {
		if p.SKU == product.SKU {
			return domain.Product{}, errors.NewValidationError(fmt.Sprintf("SKU %s já cadastrado.", product.SKU))
		}
	}
	r.products[product.ID] = product
	return product, nil
}

// FindByID busca um produto pelo ID.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return domain.Product{}, errors.NewNotFoundError(fmt.Sprintf("Produto com ID %s não existe.", id))
	}
	return p, nil
}
