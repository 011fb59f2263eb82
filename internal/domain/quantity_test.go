package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"dairystock/internal/domain"
	apperror "dairystock/internal/errors"
)

func TestValidateQuantity(t *testing.T) {
	cases := []struct {
		in    string
		valid bool
	}{
		{"1", true},
		{"1.0001", true},
		{"1.00010", true}, // zeros à direita não contam
		{"9999999999999999.9999", true},
		{"1.00005", false},
		{"0.00004", false},
		{"10000000000000000", false},
		{"-10000000000000000", false},
	}

	for _, c := range cases {
		err := domain.ValidateQuantity(decimal.RequireFromString(c.in))
		if c.valid {
			assert.NoError(t, err, c.in)
		} else {
			assert.IsType(t, &apperror.ValidationError{}, err, c.in)
		}
	}
}
