package batchrepo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"dairystock/internal/domain"
	"dairystock/internal/errors"
	"dairystock/internal/pkg/database"
	"dairystock/internal/pkg/logger"
)

const batchColumns = `id, product_id, quantity_received, remaining, received_at, expiry_date, seq, version, created_at, updated_at`

// BatchRepository implementa domain.BatchLedger sobre o PostgreSQL.
type BatchRepository struct {
	DB        *sqlx.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewBatchRepository cria e retorna uma nova instância do Repositório de Lotes.
func NewBatchRepository(db *sql.DB, dbTimeout time.Duration, logger logger.Logger) *BatchRepository {
	return &BatchRepository{
		DB:        database.NewSQLX(db),
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

// ReceiveBatch insere o lote (somente inserção) com remaining = quantity_received.
func (r *BatchRepository) ReceiveBatch(ctx context.Context, batch domain.StockBatch) (domain.StockBatch, error) {
	r.logger.Debug("Inserindo lote no repositório.", map[string]interface{}{"product_id": batch.ProductID, "quantity": batch.QuantityReceived.String()})

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	if err := domain.ValidateQuantity(batch.QuantityReceived); err != nil {
		return domain.StockBatch{}, err
	}
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = now
	}

	query := `
        INSERT INTO stock_batches (id, product_id, quantity_received, remaining, received_at, expiry_date, version, created_at, updated_at)
        VALUES ($1, $2, $3, $3, $4, $5, 1, $6, $6)
        RETURNING ` + batchColumns

	var created domain.StockBatch
	err := r.DB.QueryRowxContext(ctxTimeout, query,
		batch.ID, batch.ProductID, batch.QuantityReceived, batch.ReceivedAt, batch.ExpiryDate, now,
	).StructScan(&created)
	if err != nil {
		return domain.StockBatch{}, r.translate("Falha ao inserir lote", err)
	}

	r.logger.Info("Lote registrado no ledger.", map[string]interface{}{"batch_id": created.ID, "product_id": created.ProductID, "seq": created.Seq})
	return created, nil
}

// FindAvailableBatches lê os lotes confirmados com saldo, em ordem FIFO.
func (r *BatchRepository) FindAvailableBatches(ctx context.Context, productID string) ([]domain.StockBatch, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        SELECT ` + batchColumns + `
        FROM stock_batches
        WHERE product_id = $1 AND remaining > 0
        ORDER BY received_at ASC, seq ASC`

	batches := make([]domain.StockBatch, 0)
	if err := r.DB.SelectContext(ctxTimeout, &batches, query, productID); err != nil {
		return nil, r.translate("Falha ao buscar lotes disponíveis", err)
	}
	return batches, nil
}

// FindBatchByID busca um lote pelo ID.
func (r *BatchRepository) FindBatchByID(ctx context.Context, batchID string) (domain.StockBatch, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	var b domain.StockBatch
	err := r.DB.GetContext(ctxTimeout, &b, `SELECT `+batchColumns+` FROM stock_batches WHERE id = $1`, batchID)
	if err == sql.ErrNoRows {
		return domain.StockBatch{}, errors.NewNotFoundError(fmt.Sprintf("Lote %s não existe.", batchID))
	}
	if err != nil {
		return domain.StockBatch{}, r.translate("Falha ao buscar lote", err)
	}
	return b, nil
}

// FindConsumptions lê o log de consumo de um pedido.
func (r *BatchRepository) FindConsumptions(ctx context.Context, reference string) ([]domain.ConsumptionRecord, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        SELECT id, reference, line_no, batch_id, product_id, qty, consumed_at
        FROM stock_consumptions
        WHERE reference = $1
        ORDER BY line_no ASC`

	records := make([]domain.ConsumptionRecord, 0)
	if err := r.DB.SelectContext(ctxTimeout, &records, query, reference); err != nil {
		return nil, r.translate("Falha ao buscar consumo do pedido", err)
	}
	return records, nil
}

// WithinTx abre uma transação READ COMMITTED; os lotes lidos dentro dela ficam bloqueados (FOR UPDATE)
// até o commit ou rollback, então duas alocações sobre o mesmo lote se serializam.
func (r *BatchRepository) WithinTx(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTxx(ctxTimeout, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		r.logger.Error("Falha ao iniciar transação do ledger.", err)
		return r.translate("Falha ao iniciar transação", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&ledgerTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			r.logger.Error("Falha ao fazer rollback da transação do ledger.", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Falha ao commitar transação do ledger.", err)
		return r.translate("Falha ao commitar transação", err)
	}
	return nil
}

// translate converte erros do driver em erros de aplicação.
func (r *BatchRepository) translate(msg string, err error) error {
	return translateError(msg, err)
}

func translateError(msg string, err error) error {
	if _, ok := err.(errors.AppError); ok {
		return err
	}
	if database.IsRetryable(err) {
		return errors.WrapConflictError(msg+": escrita concorrente, tente novamente.", err)
	}
	switch database.ErrorCode(err) {
	case database.CodeCheckViolation:
		return errors.WrapValidationError(msg+": quantidade fora dos limites do lote.", err)
	case database.CodeForeignKeyViolation:
		return errors.WrapValidationError(msg+": produto inexistente.", err)
	case database.CodeUniqueViolation:
		return errors.WrapValidationError(msg+": registro duplicado.", err)
	}
	return errors.NewDBError(msg, err)
}

// ledgerTx implementa domain.LedgerTx sobre uma *sqlx.Tx.
type ledgerTx struct {
	tx *sqlx.Tx
}

// FindAvailableBatches bloqueia as linhas lidas. Linhas zeradas por outra transação enquanto
// esperávamos o lock são reavaliadas pelo PostgreSQL e saem do resultado.
func (t *ledgerTx) FindAvailableBatches(ctx context.Context, productID string) ([]domain.StockBatch, error) {
	query := `
        SELECT ` + batchColumns + `
        FROM stock_batches
        WHERE product_id = $1 AND remaining > 0
        ORDER BY received_at ASC, seq ASC
        FOR UPDATE`

	batches := make([]domain.StockBatch, 0)
	if err := t.tx.SelectContext(ctx, &batches, query, productID); err != nil {
		return nil, translateError("Falha ao bloquear lotes disponíveis", err)
	}
	return batches, nil
}

// DecrementRemaining aplica a baixa apenas se houver saldo suficiente (guarda no próprio UPDATE).
func (t *ledgerTx) DecrementRemaining(ctx context.Context, batchID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.NewValidationError("A quantidade a baixar deve ser positiva.")
	}
	if err := domain.ValidateQuantity(amount); err != nil {
		return err
	}

	query := `
        UPDATE stock_batches
        SET remaining = remaining - $1, version = version + 1, updated_at = $2
        WHERE id = $3 AND remaining >= $1`

	result, err := t.tx.ExecContext(ctx, query, amount, time.Now().UTC(), batchID)
	if err != nil {
		return translateError("Falha ao baixar lote", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return translateError("Falha ao verificar linhas afetadas", err)
	}
	if rowsAffected == 0 {
		return errors.NewConflictError(fmt.Sprintf("Lote %s sem saldo para baixa de %s.", batchID, amount))
	}
	return nil
}

// RecordConsumptions grava o plano no log de consumo do pedido.
func (t *ledgerTx) RecordConsumptions(ctx context.Context, reference string, consumptions []domain.Consumption) error {
	if reference == "" {
		return errors.NewValidationError("A referência do pedido é obrigatória para registrar consumo.")
	}

	query := `
        INSERT INTO stock_consumptions (id, reference, line_no, batch_id, product_id, qty, consumed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

	now := time.Now().UTC()
	for i, c := range consumptions {
		if _, err := t.tx.ExecContext(ctx, query, uuid.New().String(), reference, i+1, c.BatchID, c.ProductID, c.Qty, now); err != nil {
			return translateError("Falha ao registrar consumo", err)
		}
	}
	return nil
}
