package productrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"dairystock/internal/domain"
	"dairystock/internal/errors"
	"dairystock/internal/pkg/cache"
	"dairystock/internal/pkg/database"
	"dairystock/internal/pkg/logger"
)

// Define a chave de cache para produtos.
const productCacheKey = "product:%s"

// ProductRepository persiste o catálogo no PostgreSQL, com leitura Cache-Aside no Redis.
type ProductRepository struct {
	DB        *sqlx.DB
	Cache     cache.Client // Pode ser nil: leitura direta no DB
	DBTimeout time.Duration
	CacheTTL  time.Duration
	logger    logger.Logger
}

// NewProductRepository cria e retorna uma nova instância do Repositório.
func NewProductRepository(db *sql.DB, cacheClient cache.Client, dbTimeout, cacheTTL time.Duration, logger logger.Logger) *ProductRepository {
	return &ProductRepository{
		DB:        database.NewSQLX(db),
		Cache:     cacheClient,
		DBTimeout: dbTimeout,
		CacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// Save persiste um novo Produto.
func (r *ProductRepository) Save(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const productSQL = `
        INSERT INTO products (id, sku, name, unit, is_active, created_at, updated_at)
        VALUES (:id, :sku, :name, :unit, :is_active, :created_at, :updated_at)`

	if _, err := r.DB.NamedExecContext(ctxTimeout, productSQL, product); err != nil {
		if database.ErrorCode(err) == database.CodeUniqueViolation {
			return domain.Product{}, errors.NewValidationError(fmt.Sprintf("SKU %s já cadastrado.", product.SKU))
		}
		r.logger.Error("Falha ao inserir produto no DB.", err)
		return domain.Product{}, errors.NewDBError("Falha ao inserir produto", err)
	}

	return product, nil
}

// FindByID busca um produto pelo ID, utilizando a estratégia Cache-Aside.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	key := fmt.Sprintf(productCacheKey, id)
	var product domain.Product

	// --- 1. Cache-Aside (READ) ---
	if r.Cache != nil {
		cachedData, err := r.Cache.Get(ctxTimeout, key)
		if err == nil {
			if json.Unmarshal([]byte(cachedData), &product) == nil {
				return product, nil
			}
			r.logger.Warn("Produto em cache corrompido, lendo do DB.", map[string]interface{}{"product_id": id})
		} else if err != cache.ErrCacheMiss {
			r.logger.Warn("Falha ao ler produto do cache.", map[string]interface{}{"product_id": id, "error": err.Error()})
		}
	}

	// --- 2. Busca no Banco de Dados ---
	productSQL := `
		SELECT id, sku, name, unit, is_active, created_at, updated_at
		FROM products
		WHERE id = $1`

	err := r.DB.GetContext(ctxTimeout, &product, productSQL, id)
	if err == sql.ErrNoRows {
		return domain.Product{}, errors.NewNotFoundError(fmt.Sprintf("Produto com ID %s não existe na base de dados.", id))
	}
	if err != nil {
		return domain.Product{}, errors.NewDBError("Falha ao buscar produto no DB", err)
	}

	// --- 3. Cache-Aside (WRITE) ---
	if r.Cache != nil {
		if productJSON, marshalErr := json.Marshal(product); marshalErr == nil {
			if setErr := r.Cache.Set(ctxTimeout, key, productJSON, r.CacheTTL); setErr != nil {
				r.logger.Warn("Falha ao gravar produto no cache.", map[string]interface{}{"product_id": id, "error": setErr.Error()})
			}
		}
	}

	return product, nil
}
