package deal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var thresholds = Thresholds{
	Percent:  15,
	Absolute: map[string]int{"avito": 6000, "kufar": 200},
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name        string
		price       int
		median      float64
		source      string
		wantGood    bool
		wantSavings float64
		wantPercent float64
	}{
		{"percent rule fires", 8000, 10000, "avito", true, 2000, 20},
		{"exactly at percent threshold", 8500, 10000, "avito", true, 1500, 15},
		{"below both thresholds", 9600, 10000, "avito", false, 400, 4},
		{"absolute rule fires under percent", 93000, 100000, "avito", true, 7000, 7},
		{"kufar absolute floor", 9750, 10000, "kufar", true, 250, 2.5},
		{"kufar below absolute floor", 9850, 10000, "kufar", false, 150, 1.5},
		{"price equals median", 10000, 10000, "avito", false, 0, 0},
		{"price above median", 11000, 10000, "avito", false, -1000, -10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(tt.price, tt.median, tt.source, thresholds)
			assert.Equal(t, tt.wantGood, res.Good)
			assert.InDelta(t, tt.wantSavings, res.SavingsAmount, 0.001)
			assert.InDelta(t, tt.wantPercent, res.SavingsPercent, 0.001)
		})
	}
}

func TestEvaluateColdStart(t *testing.T) {
	// No baseline yet: never a deal, even at a giveaway price.
	res := Evaluate(100, 0, "avito", thresholds)
	assert.False(t, res.Good)
	assert.Zero(t, res.SavingsAmount)
	assert.Zero(t, res.SavingsPercent)
}

func TestEvaluateUnknownSourceUsesPercentOnly(t *testing.T) {
	// A source without an absolute floor still qualifies via percent.
	res := Evaluate(8000, 10000, "other", thresholds)
	assert.True(t, res.Good)

	// Big absolute savings alone are not enough without a configured floor.
	res = Evaluate(95000, 100000, "other", thresholds)
	assert.False(t, res.Good)
}
