package finance

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day, hour int) time.Time {
	return time.Date(2025, 1, day, hour, 0, 0, 0, time.UTC)
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{amount: 0, want: "KES 0.00"},
		{amount: 5, want: "KES 0.05"},
		{amount: 123450, want: "KES 1,234.50"},
		{amount: 100000000, want: "KES 1,000,000.00"},
		{amount: -2550, want: "KES -25.50"},
		{amount: math.MaxInt64, want: "KES 92,233,720,368,547,758.07"},
		{amount: math.MinInt64, want: "KES -92,233,720,368,547,758.08"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, FormatAmount(tc.amount, "KES"))
	}
}

func TestFeeStructure_Total(t *testing.T) {
	fs := FeeStructure{Items: []FeeItem{{Name: "Tuition", Amount: 1500000}, {Name: "Lunch", Amount: 350000}}}
	assert.Equal(t, int64(1850000), fs.Total())
	assert.Zero(t, FeeStructure{}.Total())
}

func TestBuildStatement(t *testing.T) {
	charges := []Charge{
		{ID: "c1", Description: "Fees T1", Amount: 10000, CreatedAt: at(1, 8)},
		{ID: "c2", Description: "Trip", Amount: 2000, CreatedAt: at(10, 9)},
	}
	payments := []Payment{
		{ID: "p1", Method: MethodMpesa, Reference: "QAB1", Amount: 4000, PaidAt: at(5, 10)},
		{ID: "p2", Method: MethodCash, Reference: "R2", Amount: 1000, PaidAt: at(10, 9)}, // same time as c2
		{ID: "p3", Method: MethodBank, Reference: "B3", Amount: 500, PaidAt: at(20, 9)},
	}

	t.Run("full range", func(t *testing.T) {
		st := BuildStatement(charges, payments, time.Time{}, time.Time{})
		assert.Zero(t, st.OpeningBalance)
		require.Len(t, st.Entries, 5)

		ids := make([]string, 0, len(st.Entries))
		balances := make([]int64, 0, len(st.Entries))
		for _, e := range st.Entries {
			ids = append(ids, e.ID)
			balances = append(balances, e.Balance)
		}
		assert.Equal(t, []string{"c1", "p1", "c2", "p2", "p3"}, ids)
		assert.Equal(t, []int64{10000, 6000, 8000, 7000, 6500}, balances)
		assert.Equal(t, int64(6500), st.ClosingBalance)
		assert.Equal(t, "Payment MPESA QAB1", st.Entries[1].Description)
		assert.Equal(t, int64(4000), st.Entries[1].Credit)
	})

	t.Run("bounded range", func(t *testing.T) {
		st := BuildStatement(charges, payments, at(6, 0), at(15, 0))
		assert.Equal(t, int64(6000), st.OpeningBalance)
		require.Len(t, st.Entries, 2)
		assert.Equal(t, "c2", st.Entries[0].ID)
		assert.Equal(t, "p2", st.Entries[1].ID)
		assert.Equal(t, int64(7000), st.ClosingBalance)
	})

	t.Run("no entries", func(t *testing.T) {
		st := BuildStatement(nil, nil, time.Time{}, time.Time{})
		assert.NotNil(t, st.Entries)
		assert.Empty(t, st.Entries)
		assert.Zero(t, st.ClosingBalance)
	})

	t.Run("credit balance", func(t *testing.T) {
		st := BuildStatement(nil, payments[:1], time.Time{}, time.Time{})
		assert.Equal(t, int64(-4000), st.ClosingBalance)
	})
}
