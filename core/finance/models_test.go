package finance

import (
	"math"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teachhub/backend/core"
)

const classID = "6f1d3a52-2b7e-4c4b-9d55-0a4a3e1f2b10"

func TestNewFeeStructure_Validate(t *testing.T) {
	validate := validator.New()
	due := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	fees := func(amounts ...int64) NewFeeStructure {
		nf := NewFeeStructure{ClassID: classID, Term: "Term 1", DueDate: due}
		for _, a := range amounts {
			nf.Items = append(nf.Items, FeeItem{Name: "Item", Amount: a})
		}
		return nf
	}

	tests := []struct {
		name      string
		nf        NewFeeStructure
		wantErr   bool
		wantTotal bool
	}{
		{name: "ok", nf: fees(1500000, 350000)},
		{name: "total at the limit", nf: fees(MaxAmount-1, 1)},
		{name: "item above the limit", nf: fees(MaxAmount + 1), wantErr: true},
		{name: "huge item", nf: fees(math.MaxInt64), wantErr: true},
		{name: "total above the limit", nf: fees(MaxAmount, 1), wantErr: true, wantTotal: true},
		{name: "many large items", nf: fees(MaxAmount, MaxAmount, MaxAmount), wantErr: true, wantTotal: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.nf.Validate(validate)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var vErr *core.ValidationError
			if tc.wantTotal {
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, []core.FieldError{{Field: "items", Error: errTotalTooLarge}}, vErr.Fields)
			} else {
				assert.IsType(t, validator.ValidationErrors{}, err)
			}
		})
	}
}

func TestNewCharge_NewPayment_maxAmount(t *testing.T) {
	validate := validator.New()
	due := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	nc := NewCharge{StudentID: classID, Term: "Term 1", Description: "Trip", Amount: MaxAmount, DueDate: due}
	assert.NoError(t, nc.Validate(validate))
	nc.Amount = MaxAmount + 1
	assert.Error(t, nc.Validate(validate))

	np := NewPayment{StudentID: classID, Amount: math.MaxInt64, Method: MethodCash, Reference: "r1"}
	require.NoError(t, validate.RegisterValidation(paymentMethodTag, func(fl validator.FieldLevel) bool { return true }))
	assert.Error(t, np.Validate(validate))
	np.Amount = MaxAmount
	assert.NoError(t, np.Validate(validate))
}
