package stockservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dairystock/internal/domain"
	apperror "dairystock/internal/errors"
	"dairystock/internal/pkg/cache"
	"dairystock/internal/pkg/logger"
	"dairystock/internal/pkg/metrics"
)

const stockSummaryCacheKey = "stock-summary:%s"

// StockLedger define o que o Serviço de Estoque espera do ledger de lotes.
type StockLedger interface {
	ReceiveBatch(ctx context.Context, batch domain.StockBatch) (domain.StockBatch, error)
	FindAvailableBatches(ctx context.Context, productID string) ([]domain.StockBatch, error)
	FindConsumptions(ctx context.Context, reference string) ([]domain.ConsumptionRecord, error)
}

// ProductCatalog resolve se um produto existe.
type ProductCatalog interface {
	GetProductByID(ctx context.Context, id string) (domain.Product, error)
}

// Service cuida da entrada de mercadoria e das consultas de estoque por lote.
type Service struct {
	ledger     StockLedger
	catalog    ProductCatalog
	cache      cache.Client // nil desativa o cache do resumo
	summaryTTL time.Duration
	metrics    *metrics.Metrics
	logger     logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Estoque.
func NewService(ledger StockLedger, catalog ProductCatalog, cacheClient cache.Client, summaryTTL time.Duration, m *metrics.Metrics, logger logger.Logger) *Service {
	return &Service{
		ledger:     ledger,
		catalog:    catalog,
		cache:      cacheClient,
		summaryTTL: summaryTTL,
		metrics:    m,
		logger:     logger,
	}
}

// ReceiveStock registra um novo lote (entrada de mercadoria) com remaining = quantidade recebida.
func (s *Service) ReceiveStock(ctx context.Context, req domain.ReceiveBatchRequest) (domain.StockBatch, error) {
	s.logger.Debug("Iniciando recebimento de lote no serviço.", map[string]interface{}{
		"product_id": req.ProductID,
		"quantity":   req.Quantity.String(),
	})

	if !req.Quantity.IsPositive() {
		return domain.StockBatch{}, apperror.NewValidationError("A quantidade recebida deve ser positiva.")
	}
	if err := domain.ValidateQuantity(req.Quantity); err != nil {
		return domain.StockBatch{}, err
	}
	if req.ExpiryDate != nil && !req.ReceivedAt.IsZero() && req.ExpiryDate.Before(req.ReceivedAt) {
		return domain.StockBatch{}, apperror.NewValidationError("A data de validade não pode ser anterior ao recebimento.")
	}
	if err := s.ensureProduct(ctx, req.ProductID); err != nil {
		var notFound *apperror.NotFoundError
		if errors.As(err, &notFound) {
			return domain.StockBatch{}, apperror.WrapValidationError(fmt.Sprintf("Produto %s não existe.", req.ProductID), err)
		}
		return domain.StockBatch{}, err
	}

	batch, err := s.ledger.ReceiveBatch(ctx, domain.StockBatch{
		ProductID:        req.ProductID,
		QuantityReceived: req.Quantity,
		ReceivedAt:       req.ReceivedAt,
		ExpiryDate:       req.ExpiryDate,
	})
	if err != nil {
		s.logger.Error("Falha ao registrar lote no ledger.", err)
		var appErr apperror.AppError
		if errors.As(err, &appErr) {
			return domain.StockBatch{}, err
		}
		return domain.StockBatch{}, apperror.NewInternalError("Falha interna ao registrar lote.", err)
	}

	s.metrics.BatchesReceived.Inc()
	s.InvalidateSummary(ctx, batch.ProductID)

	s.logger.Info("Lote recebido com sucesso.", map[string]interface{}{
		"batch_id":    batch.ID,
		"product_id":  batch.ProductID,
		"quantity":    batch.QuantityReceived.String(),
		"received_at": batch.ReceivedAt,
	})
	return batch, nil
}

// ListAvailableBatches retorna os lotes com saldo do produto, em ordem FIFO (estado confirmado).
func (s *Service) ListAvailableBatches(ctx context.Context, productID string) ([]domain.StockBatch, error) {
	if err := s.ensureProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.ledger.FindAvailableBatches(ctx, productID)
}

// GetStockSummary retorna o saldo agregado do produto, usando Cache-Aside no Redis.
func (s *Service) GetStockSummary(ctx context.Context, productID string) (domain.StockSummary, error) {
	if err := s.ensureProduct(ctx, productID); err != nil {
		return domain.StockSummary{}, err
	}

	key := fmt.Sprintf(stockSummaryCacheKey, productID)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err == nil {
			var summary domain.StockSummary
			if json.Unmarshal([]byte(cached), &summary) == nil {
				return summary, nil
			}
		} else if err != cache.ErrCacheMiss {
			s.logger.Warn("Falha ao ler resumo de estoque do cache.", map[string]interface{}{"product_id": productID, "error": err.Error()})
		}
	}

	batches, err := s.ledger.FindAvailableBatches(ctx, productID)
	if err != nil {
		return domain.StockSummary{}, err
	}
	summary := domain.SummarizeBatches(productID, batches)

	if s.cache != nil {
		if payload, marshalErr := json.Marshal(summary); marshalErr == nil {
			if setErr := s.cache.Set(ctx, key, payload, s.summaryTTL); setErr != nil {
				s.logger.Warn("Falha ao gravar resumo de estoque no cache.", map[string]interface{}{"product_id": productID, "error": setErr.Error()})
			}
		}
	}
	return summary, nil
}

// InvalidateSummary descarta os resumos em cache dos produtos informados.
func (s *Service) InvalidateSummary(ctx context.Context, productIDs ...string) {
	if s.cache == nil || len(productIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, fmt.Sprintf(stockSummaryCacheKey, id))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("Falha ao invalidar resumo de estoque.", map[string]interface{}{"product_ids": productIDs, "error": err.Error()})
	}
}

// ListConsumptions retorna o log de consumo gravado para um pedido.
func (s *Service) ListConsumptions(ctx context.Context, reference string) ([]domain.ConsumptionRecord, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, apperror.NewValidationError("A referência do pedido é obrigatória.")
	}
	records, err := s.ledger.FindConsumptions(ctx, reference)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperror.NewNotFoundError(fmt.Sprintf("Nenhum consumo registrado para a referência %s.", reference))
	}
	return records, nil
}

// ensureProduct confirma que o produto existe no catálogo (NotFoundError caso contrário).
func (s *Service) ensureProduct(ctx context.Context, productID string) error {
	if strings.TrimSpace(productID) == "" {
		return apperror.NewValidationError("O ID do produto é obrigatório.")
	}
	_, err := s.catalog.GetProductByID(ctx, productID)
	return err
}
