package domain

import (
	"time"
)

// Product representa um item do catálogo cujo estoque é controlado por lotes
// (e.g., leite integral, queijo minas, iogurte).
type Product struct {
	ID        string    `json:"id" db:"id"`
	SKU       string    `json:"sku" db:"sku"`   // Stock Keeping Unit (código único de produto)
	Name      string    `json:"name" db:"name"`
	Unit      string    `json:"unit" db:"unit"` // Ex: "L", "kg", "un"
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
