package domain

import (
	"fmt"

	"github.com/shopspring/decimal"

	apperror "dairystock/internal/errors"
)

// QuantityScale é o número de casas decimais guardado pelo ledger (NUMERIC(20,4)).
const QuantityScale = 4

// maxQuantity é o primeiro valor que não cabe em NUMERIC(20,4).
var maxQuantity = decimal.New(1, 20-QuantityScale)

// ValidateQuantity recusa quantidades que o ledger não consegue guardar sem arredondar.
// O sinal não é verificado aqui.
func ValidateQuantity(q decimal.Decimal) error {
	if !q.Equal(q.Truncate(QuantityScale)) {
		return apperror.NewValidationError(fmt.Sprintf("A quantidade %s tem mais de %d casas decimais.", q, QuantityScale))
	}
	if q.Abs().GreaterThanOrEqual(maxQuantity) {
		return apperror.NewValidationError(fmt.Sprintf("A quantidade %s excede o limite de %s.", q, maxQuantity))
	}
	return nil
}
