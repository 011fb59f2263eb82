package memoryrepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dairystock/internal/domain"
	"dairystock/internal/errors"
)

// Ledger é o ledger de lotes em memória.
// Uma unidade de trabalho por vez (single-writer): WithinTx segura writeMu do início ao commit,
// e as escritas ficam num staging descartado em caso de erro.
type Ledger struct {
	writeMu sync.Mutex

	mu           sync.RWMutex
	batches      map[string]domain.StockBatch
	consumptions []domain.ConsumptionRecord
	seq          int64

	now func() time.Time
}

// NewLedger cria um ledger vazio.
func NewLedger() *Ledger {
	return &Ledger{
		batches: make(map[string]domain.StockBatch),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ReceiveBatch insere um lote novo com Remaining = QuantityReceived.
func (l *Ledger) ReceiveBatch(ctx context.Context, batch domain.StockBatch) (domain.StockBatch, error) {
	if !batch.QuantityReceived.IsPositive() {
		return domain.StockBatch{}, errors.NewValidationError("A quantidade recebida deve ser positiva.")
	}
	if err := domain.ValidateQuantity(batch.QuantityReceived); err != nil {
		return domain.StockBatch{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}
	if _, exists := l.batches[batch.ID]; exists {
		return domain.StockBatch{}, errors.NewValidationError(fmt.Sprintf("Lote %s já existe.", batch.ID))
	}

	now := l.now()
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = now
	}
	l.seq++
	batch.Seq = l.seq
	batch.Remaining = batch.QuantityReceived
	batch.Version = 1
	batch.CreatedAt = now
	batch.UpdatedAt = now

	l.batches[batch.ID] = batch
	return batch, nil
}

// FindAvailableBatches lê apenas o estado confirmado.
func (l *Ledger) FindAvailableBatches(ctx context.Context, productID string) ([]domain.StockBatch, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.available(productID, nil), nil
}

// FindBatchByID busca um lote pelo ID no estado confirmado.
func (l *Ledger) FindBatchByID(ctx context.Context, batchID string) (domain.StockBatch, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	b, ok := l.batches[batchID]
	if !ok {
		return domain.StockBatch{}, errors.NewNotFoundError(fmt.Sprintf("Lote %s não existe.", batchID))
	}
	return b, nil
}

// FindConsumptions retorna o log de consumo de um pedido, na ordem das linhas.
func (l *Ledger) FindConsumptions(ctx context.Context, reference string) ([]domain.ConsumptionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.ConsumptionRecord, 0)
	for _, c := range l.consumptions {
		if c.Reference == reference {
			out = append(out, c)
		}
	}
	return out, nil
}

// WithinTx executa fn numa unidade de trabalho. Nada do staging chega ao ledger se fn falhar,
// entrar em pânico ou se o contexto expirar antes do commit.
func (l *Ledger) WithinTx(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return errors.NewInternalError("Transação cancelada antes de iniciar.", err)
	}

	tx := &memTx{ledger: l, staged: make(map[string]domain.StockBatch)}
	if err := fn(tx); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return errors.NewInternalError("Transação abortada por timeout.", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for id, b := range tx.staged {
		l.batches[id] = b
	}
	l.consumptions = append(l.consumptions, tx.consumptions...)
	return nil
}

// available monta a lista FIFO de um produto, aplicando o staging quando houver.
// Chamador deve segurar mu.
func (l *Ledger) available(productID string, staged map[string]domain.StockBatch) []domain.StockBatch {
	out := make([]domain.StockBatch, 0)
	for id, b := range l.batches {
		if b.ProductID != productID {
			continue
		}
		if s, ok := staged[id]; ok {
			b = s
		}
		if b.Remaining.IsPositive() {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConsumedBefore(out[j]) })
	return out
}

// memTx é a visão transacional do Ledger.
type memTx struct {
	ledger       *Ledger
	staged       map[string]domain.StockBatch
	consumptions []domain.ConsumptionRecord
}

func (t *memTx) FindAvailableBatches(ctx context.Context, productID string) ([]domain.StockBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewInternalError("Leitura de lotes cancelada.", err)
	}
	t.ledger.mu.RLock()
	defer t.ledger.mu.RUnlock()
	return t.ledger.available(productID, t.staged), nil
}

func (t *memTx) DecrementRemaining(ctx context.Context, batchID string, amount decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return errors.NewInternalError("Baixa de lote cancelada.", err)
	}
	if !amount.IsPositive() {
		return errors.NewValidationError("A quantidade a baixar deve ser positiva.")
	}
	if err := domain.ValidateQuantity(amount); err != nil {
		return err
	}

	b, ok := t.staged[batchID]
	if !ok {
		t.ledger.mu.RLock()
		b, ok = t.ledger.batches[batchID]
		t.ledger.mu.RUnlock()
	}
	if !ok {
		return errors.NewNotFoundError(fmt.Sprintf("Lote %s não existe.", batchID))
	}

	if amount.GreaterThan(b.Remaining) {
		return errors.NewConflictError(fmt.Sprintf("Lote %s tem %s disponível, baixa de %s recusada.", batchID, b.Remaining, amount))
	}

	b.Remaining = b.Remaining.Sub(amount)
	b.Version++
	b.UpdatedAt = t.ledger.now()
	t.staged[batchID] = b
	return nil
}

func (t *memTx) RecordConsumptions(ctx context.Context, reference string, consumptions []domain.Consumption) error {
	if reference == "" {
		return errors.NewValidationError("A referência do pedido é obrigatória para registrar consumo.")
	}

	t.ledger.mu.RLock()
	for _, c := range t.ledger.consumptions {
		if c.Reference == reference {
			t.ledger.mu.RUnlock()
			return errors.NewValidationError(fmt.Sprintf("A referência %s já possui consumo registrado.", reference))
		}
	}
	t.ledger.mu.RUnlock()

	now := t.ledger.now()
	for i, c := range consumptions {
		t.consumptions = append(t.consumptions, domain.ConsumptionRecord{
			ID:         uuid.New().String(),
			Reference:  reference,
			LineNo:     i + 1,
			BatchID:    c.BatchID,
			ProductID:  c.ProductID,
			Qty:        c.Qty,
			ConsumedAt: now,
		})
	}
	return nil
}
