package allocationservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dairystock/internal/domain"
	apperror "dairystock/internal/errors"
	"dairystock/internal/pkg/logger"
	"dairystock/internal/pkg/metrics"
)

const (
	operationAllocate      = "allocate"
	operationAllocateOrder = "allocate_order"

	defaultRetryBase = 10 * time.Millisecond
)

// ProductCatalog resolve se um produto existe.
type ProductCatalog interface {
	GetProductByID(ctx context.Context, id string) (domain.Product, error)
}

// SummaryInvalidator descarta resumos de estoque em cache depois de um commit.
type SummaryInvalidator interface {
	InvalidateSummary(ctx context.Context, productIDs ...string)
}

// Options controla as novas tentativas em caso de conflito de transação.
type Options struct {
	MaxRetries uint64
	RetryBase  time.Duration
}

// Service é o alocador FIFO: consome os lotes do mais antigo para o mais novo.
type Service struct {
	ledger      domain.BatchLedger
	catalog     ProductCatalog
	invalidator SummaryInvalidator // Pode ser nil
	opts        Options
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	logger      logger.Logger
}

// NewService cria e retorna uma nova instância do Alocador.
func NewService(ledger domain.BatchLedger, catalog ProductCatalog, invalidator SummaryInvalidator, opts Options, m *metrics.Metrics, logger logger.Logger) *Service {
	if opts.RetryBase <= 0 {
		opts.RetryBase = defaultRetryBase
	}
	return &Service{
		ledger:      ledger,
		catalog:     catalog,
		invalidator: invalidator,
		opts:        opts,
		metrics:     m,
		tracer:      otel.Tracer("dairystock/allocationservice"),
		logger:      logger,
	}
}

// Allocate consome quantity do produto numa unidade de trabalho própria e retorna o plano.
// quantity <= 0 retorna um plano vazio sem abrir transação.
func (s *Service) Allocate(ctx context.Context, productID string, quantity decimal.Decimal) (domain.Plan, error) {
	if !quantity.IsPositive() {
		return domain.Plan{}, nil
	}

	result, err := s.allocate(ctx, operationAllocate, domain.OrderRequest{
		Lines: []domain.AllocationLine{{ProductID: productID, Quantity: quantity}},
	})
	if err != nil {
		return nil, err
	}
	return domain.Plan(result.Consumptions), nil
}

// AllocateOrder aloca todas as linhas numa única unidade de trabalho, na ordem recebida.
// Se qualquer linha falhar, nenhuma baixa é aplicada.
func (s *Service) AllocateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderAllocation, error) {
	req.Reference = strings.TrimSpace(req.Reference)
	return s.allocate(ctx, operationAllocateOrder, req)
}

func (s *Service) allocate(ctx context.Context, operation string, req domain.OrderRequest) (domain.OrderAllocation, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "allocationservice."+operation, trace.WithAttributes(
		attribute.String("order.reference", req.Reference),
		attribute.Int("order.lines", len(req.Lines)),
	))
	defer span.End()

	result, err := s.run(ctx, req)

	s.metrics.AllocationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	s.metrics.AllocationsTotal.WithLabelValues(operation, resultLabel(err)).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logAllocationFailure(req, err)
		return domain.OrderAllocation{}, err
	}

	span.SetAttributes(attribute.Int("allocation.consumptions", len(result.Consumptions)))
	s.logger.Info("Alocação FIFO confirmada.", map[string]interface{}{
		"operation":    operation,
		"reference":    req.Reference,
		"consumptions": len(result.Consumptions),
	})
	return result, nil
}

// run valida o pedido, executa a transação com novas tentativas e invalida os resumos afetados.
func (s *Service) run(ctx context.Context, req domain.OrderRequest) (domain.OrderAllocation, error) {
	lines := make([]domain.AllocationLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		if !line.Quantity.IsPositive() {
			continue
		}
		if err := domain.ValidateQuantity(line.Quantity); err != nil {
			return domain.OrderAllocation{}, err
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return domain.OrderAllocation{Reference: req.Reference, Consumptions: []domain.Consumption{}, AllocatedAt: time.Now().UTC()}, nil
	}

	if err := s.validateProducts(ctx, lines); err != nil {
		return domain.OrderAllocation{}, err
	}

	var consumptions []domain.Consumption
	attempt := 0
	backoff := retry.WithMaxRetries(s.opts.MaxRetries, retry.NewExponential(s.opts.RetryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			s.metrics.AllocationRetries.Inc()
			s.logger.Warn("Conflito na alocação, repetindo a transação.", map[string]interface{}{
				"reference": req.Reference,
				"attempt":   attempt,
			})
		}

		consumptions = nil
		err := s.ledger.WithinTx(ctx, func(tx domain.LedgerTx) error {
			for _, line := range lines {
				plan, err := allocateLine(ctx, tx, line)
				if err != nil {
					return err
				}
				consumptions = append(consumptions, plan...)
			}
			if req.Reference != "" {
				return tx.RecordConsumptions(ctx, req.Reference, consumptions)
			}
			return nil
		})

		var conflict *apperror.ConflictError
		if errors.As(err, &conflict) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return domain.OrderAllocation{}, err
	}

	s.invalidate(ctx, lines)
	return domain.OrderAllocation{
		Reference:    req.Reference,
		Consumptions: consumptions,
		AllocatedAt:  time.Now().UTC(),
	}, nil
}

// allocateLine percorre os lotes disponíveis em ordem FIFO e baixa o necessário.
func allocateLine(ctx context.Context, tx domain.LedgerTx, line domain.AllocationLine) (domain.Plan, error) {
	batches, err := tx.FindAvailableBatches(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}

	plan := make(domain.Plan, 0, len(batches))
	needed := line.Quantity
	for _, batch := range batches {
		if !needed.IsPositive() {
			break
		}
		take := decimal.Min(batch.Remaining, needed)
		if !take.IsPositive() {
			continue
		}
		if err := tx.DecrementRemaining(ctx, batch.ID, take); err != nil {
			return nil, err
		}
		plan = append(plan, domain.Consumption{BatchID: batch.ID, ProductID: line.ProductID, Qty: take})
		needed = needed.Sub(take)
	}

	if needed.IsPositive() {
		return nil, apperror.NewInsufficientStockError(line.ProductID, line.Quantity, needed)
	}
	return plan, nil
}

// validateProducts recusa linhas de produtos inexistentes antes de abrir a transação.
func (s *Service) validateProducts(ctx context.Context, lines []domain.AllocationLine) error {
	seen := make(map[string]bool, len(lines))
	for _, line := range lines {
		if seen[line.ProductID] {
			continue
		}
		seen[line.ProductID] = true

		if strings.TrimSpace(line.ProductID) == "" {
			return apperror.NewValidationError("O ID do produto é obrigatório em todas as linhas.")
		}
		if _, err := s.catalog.GetProductByID(ctx, line.ProductID); err != nil {
			var notFound *apperror.NotFoundError
			if errors.As(err, &notFound) {
				return apperror.WrapValidationError(fmt.Sprintf("Produto %s não existe.", line.ProductID), err)
			}
			return err
		}
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, lines []domain.AllocationLine) {
	if s.invalidator == nil {
		return
	}
	ids := make([]string, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	for _, line := range lines {
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			ids = append(ids, line.ProductID)
		}
	}
	s.invalidator.InvalidateSummary(ctx, ids...)
}

func (s *Service) logAllocationFailure(req domain.OrderRequest, err error) {
	var (
		insufficient *apperror.InsufficientStockError
		validation   *apperror.ValidationError
	)
	switch {
	case errors.As(err, &insufficient):
		s.logger.Info("Alocação recusada por falta de estoque.", map[string]interface{}{
			"reference":  req.Reference,
			"product_id": insufficient.ProductID,
			"shortage":   insufficient.Shortage.String(),
		})
	case errors.As(err, &validation):
		s.logger.Debug("Pedido de alocação inválido.", map[string]interface{}{
			"reference": req.Reference,
			"error":     err.Error(),
		})
	default:
		s.logger.Error("Falha na alocação FIFO.", err)
	}
}

func resultLabel(err error) string {
	var (
		insufficient *apperror.InsufficientStockError
		conflict     *apperror.ConflictError
		validation   *apperror.ValidationError
	)
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.As(err, &insufficient):
		return metrics.ResultInsufficient
	case errors.As(err, &conflict):
		return metrics.ResultConflict
	case errors.As(err, &validation):
		return metrics.ResultInvalid
	default:
		return metrics.ResultError
	}
}
