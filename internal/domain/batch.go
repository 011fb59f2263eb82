package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// StockBatch é um recebimento discreto de estoque de um produto (a Entidade do ledger).
// Só Remaining muda depois da criação; lotes esgotados ficam com Remaining = 0 e nunca são apagados.
type StockBatch struct {
	ID               string          `json:"id" db:"id"`
	ProductID        string          `json:"product_id" db:"product_id"`
	QuantityReceived decimal.Decimal `json:"quantity_received" db:"quantity_received"`
	Remaining        decimal.Decimal `json:"remaining" db:"remaining"`
	ReceivedAt       time.Time       `json:"received_at" db:"received_at"`
	ExpiryDate       *time.Time      `json:"expiry_date,omitempty" db:"expiry_date"` // Informativo, não participa da alocação
	Seq              int64           `json:"seq" db:"seq"`                           // Ordem de inserção, desempate do FIFO
	Version          int             `json:"version" db:"version"`                   // Para Controle de Concorrência Otimista (OCC)
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// ConsumedBefore reporta se o lote sai antes de other na ordem FIFO.
func (b StockBatch) ConsumedBefore(other StockBatch) bool {
	if !b.ReceivedAt.Equal(other.ReceivedAt) {
		return b.ReceivedAt.Before(other.ReceivedAt)
	}
	return b.Seq < other.Seq
}

// ReceiveBatchRequest é o payload de entrada de mercadoria (recebimento de um lote).
type ReceiveBatchRequest struct {
	ProductID  string          `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	ReceivedAt time.Time       `json:"received_at"` // Zero = agora
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
}

// Consumption é o quanto uma chamada de alocação tirou de um lote.
type Consumption struct {
	BatchID   string          `json:"batch_id" db:"batch_id"`
	ProductID string          `json:"product_id" db:"product_id"`
	Qty       decimal.Decimal `json:"qty" db:"qty"`
}

// Plan é o plano de consumo de uma linha, na ordem em que os lotes foram usados.
type Plan []Consumption

// Total soma as quantidades do plano.
func (p Plan) Total() decimal.Decimal {
	total := decimal.Zero
	for _, c := range p {
		total = total.Add(c.Qty)
	}
	return total
}

// AllocationLine é uma linha de pedido: produto e quantidade.
type AllocationLine struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// OrderRequest agrupa as linhas que devem ser alocadas de forma atômica.
// Com Reference preenchida, o plano combinado é gravado no log de consumo.
type OrderRequest struct {
	Reference string           `json:"reference,omitempty"`
	Lines     []AllocationLine `json:"lines"`
}

// OrderAllocation é o resultado confirmado de um AllocateOrder.
type OrderAllocation struct {
	Reference    string        `json:"reference,omitempty"`
	Consumptions []Consumption `json:"consumptions"`
	AllocatedAt  time.Time     `json:"allocated_at"`
}

// Total soma as quantidades consumidas de um produto na alocação.
func (a OrderAllocation) Total(productID string) decimal.Decimal {
	total := decimal.Zero
	for _, c := range a.Consumptions {
		if c.ProductID == productID {
			total = total.Add(c.Qty)
		}
	}
	return total
}

// ConsumptionRecord é um consumo persistido e anexado ao pedido (Reference) que o gerou.
type ConsumptionRecord struct {
	ID         string          `json:"id" db:"id"`
	Reference  string          `json:"reference" db:"reference"`
	LineNo     int             `json:"line_no" db:"line_no"`
	BatchID    string          `json:"batch_id" db:"batch_id"`
	ProductID  string          `json:"product_id" db:"product_id"`
	Qty        decimal.Decimal `json:"qty" db:"qty"`
	ConsumedAt time.Time       `json:"consumed_at" db:"consumed_at"`
}

// StockSummary é a visão agregada do estoque disponível de um produto.
type StockSummary struct {
	ProductID        string          `json:"product_id"`
	Available        decimal.Decimal `json:"available"`
	BatchCount       int             `json:"batch_count"`
	OldestReceivedAt *time.Time      `json:"oldest_received_at,omitempty"`
}

// SummarizeBatches calcula o resumo a partir dos lotes disponíveis já ordenados.
func SummarizeBatches(productID string, batches []StockBatch) StockSummary {
	summary := StockSummary{ProductID: productID, Available: decimal.Zero}
	for _, b := range batches {
		summary.Available = summary.Available.Add(b.Remaining)
		summary.BatchCount++
	}
	if len(batches) > 0 {
		oldest := batches[0].ReceivedAt
		summary.OldestReceivedAt = &oldest
	}
	return summary
}

// --- Interfaces de Contrato do Ledger ---

// LedgerTx é a visão do ledger dentro de uma unidade de trabalho.
// Leituras enxergam as escritas já feitas pela própria transação.
type LedgerTx interface {
	// FindAvailableBatches retorna os lotes com Remaining > 0, do mais antigo para o mais novo.
	FindAvailableBatches(ctx context.Context, productID string) ([]StockBatch, error)
	// DecrementRemaining falha sem alterar nada se amount > Remaining.
	DecrementRemaining(ctx context.Context, batchID string, amount decimal.Decimal) error
	// RecordConsumptions anexa o plano ao pedido identificado por reference.
	RecordConsumptions(ctx context.Context, reference string, consumptions []Consumption) error
}

// BatchLedger é o registro durável de lotes.
type BatchLedger interface {
	// ReceiveBatch cria o lote com Remaining = QuantityReceived (somente inserção).
	ReceiveBatch(ctx context.Context, batch StockBatch) (StockBatch, error)
	// FindAvailableBatches lê o estado confirmado, fora de qualquer transação.
	FindAvailableBatches(ctx context.Context, productID string) ([]StockBatch, error)
	FindBatchByID(ctx context.Context, batchID string) (StockBatch, error)
	FindConsumptions(ctx context.Context, reference string) ([]ConsumptionRecord, error)
	// WithinTx executa fn em uma unidade de trabalho atômica: commit se fn retornar nil,
	// rollback em qualquer outro caso.
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
}
