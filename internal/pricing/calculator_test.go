package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printledger/internal/errs"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		in       Input
		subtotal int64
		discount int64
		final    int64
		units    int64
	}{
		{
			name: "color job with 10 percent tier",
			in: Input{
				Pages: 100, Copies: 1,
				BasePrice:       decimal.NewFromInt(1000),
				ColorMultiplier: decimal.RequireFromString("1.5"),
				DiscountPercent: decimal.RequireFromString("0.10"),
			},
			subtotal: 150000, discount: 15000, final: 135000, units: 100,
		},
		{
			name: "no discount",
			in: Input{
				Pages: 3, Copies: 2,
				BasePrice:       decimal.NewFromInt(500),
				ColorMultiplier: decimal.NewFromInt(1),
			},
			subtotal: 3000, discount: 0, final: 3000, units: 6,
		},
		{
			name: "half unit rounds up only at the end",
			in: Input{
				Pages: 3, Copies: 1,
				BasePrice:       decimal.RequireFromString("0.5"),
				ColorMultiplier: decimal.NewFromInt(1),
			},
			subtotal: 2, discount: 0, final: 2, units: 3,
		},
		{
			name: "fractional discount keeps integer identity",
			in: Input{
				Pages: 7, Copies: 1,
				BasePrice:       decimal.NewFromInt(333),
				ColorMultiplier: decimal.RequireFromString("1.5"),
				DiscountPercent: decimal.RequireFromString("0.125"),
			},
			// 7*333*1.5 = 3496.5 -> 3497; final exact 3059.4375 -> 3059
			subtotal: 3497, discount: 438, final: 3059, units: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Calculate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.units, q.TotalUnits)
			assert.Equal(t, tt.subtotal, q.Subtotal)
			assert.Equal(t, tt.discount, q.DiscountAmount)
			assert.Equal(t, tt.final, q.FinalPrice)
			assert.Equal(t, q.Subtotal-q.DiscountAmount, q.FinalPrice)
		})
	}
}

func TestCalculateIsDeterministic(t *testing.T) {
	in := Input{
		Pages: 41, Copies: 3,
		BasePrice:       decimal.RequireFromString("987.65"),
		ColorMultiplier: decimal.RequireFromString("1.5"),
		DiscountPercent: decimal.RequireFromString("0.2"),
	}
	first, err := Calculate(in)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Calculate(in)
		require.NoError(t, err)
		assert.Equal(t, first.FinalPrice, again.FinalPrice)
		assert.Equal(t, first.Subtotal, again.Subtotal)
	}
}

func TestCalculateRejectsInvalidInput(t *testing.T) {
	base := Input{
		Pages: 1, Copies: 1,
		BasePrice:       decimal.NewFromInt(1000),
		ColorMultiplier: decimal.NewFromInt(1),
	}

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"zero pages", func(in *Input) { in.Pages = 0 }},
		{"negative copies", func(in *Input) { in.Copies = -2 }},
		{"zero base price", func(in *Input) { in.BasePrice = decimal.Zero }},
		{"negative multiplier", func(in *Input) { in.ColorMultiplier = decimal.NewFromInt(-1) }},
		{"discount of 100 percent", func(in *Input) { in.DiscountPercent = decimal.NewFromInt(1) }},
		{"negative discount", func(in *Input) { in.DiscountPercent = decimal.RequireFromString("-0.1") }},
		{"units wrap to zero", func(in *Input) { in.Pages, in.Copies = 1<<62, 4 }},
		{"units wrap negative", func(in *Input) { in.Pages, in.Copies = 1<<62, 2 }},
		{"units square overflow", func(in *Input) { in.Pages, in.Copies = 3037000500, 3037000500 }},
		{"subtotal beyond int64", func(in *Input) { in.Pages, in.Copies = 1<<40, 1<<20 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := Calculate(in)
			require.Error(t, err)
			assert.True(t, errs.IsValidation(err))
		})
	}
}

func TestCalculateLargestUnits(t *testing.T) {
	q, err := Calculate(Input{
		Pages: 1 << 31, Copies: 1 << 31,
		BasePrice:       decimal.NewFromInt(1),
		ColorMultiplier: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1)<<62, q.TotalUnits)
	assert.Equal(t, int64(1)<<62, q.FinalPrice)
}
