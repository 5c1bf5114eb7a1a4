package tolerance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name       string
		accuracy   float64
		adminTol   float64
		wantFinal  float64
		wantGPSTol float64
	}{
		{"both zero hits floor", 0, 0, 10, 10},
		{"accuracy drives tolerance", 60, 0, 30, 30},
		{"admin tolerance wins", 20, 100, 100, 10},
		{"ceiling applies", 400, 0, 150, 200},
		{"admin above ceiling is capped", 0, 500, 150, 10},
		{"floor beats small accuracy", 4, 0, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.accuracy, tt.adminTol)
			assert.Equal(t, tt.wantFinal, got.FinalToleranceMeters)
			assert.Equal(t, tt.wantGPSTol, got.GPSDerivedToleranceMeters)
		})
	}
}

func TestCalculateBounds(t *testing.T) {
	for _, accuracy := range []float64{0, 1, 10, 50, 123, 1000, 1e6} {
		for _, admin := range []float64{0, 5, 30, 149, 150, 151, 9999} {
			got := Calculate(accuracy, admin)
			assert.GreaterOrEqual(t, got.FinalToleranceMeters, MinToleranceMeters)
			assert.LessOrEqual(t, got.FinalToleranceMeters, MaxToleranceMeters)
		}
	}
}

func TestCalculateMonotonic(t *testing.T) {
	prev := 0.0
	for _, accuracy := range []float64{0, 10, 25, 50, 100, 200, 300, 500} {
		got := Calculate(accuracy, 0)
		assert.GreaterOrEqual(t, got.FinalToleranceMeters, prev,
			"final tolerance must not decrease as accuracy grows")
		prev = got.FinalToleranceMeters
	}

	prev = 0.0
	for _, admin := range []float64{0, 20, 60, 120, 150, 200} {
		got := Calculate(0, admin)
		assert.GreaterOrEqual(t, got.FinalToleranceMeters, prev,
			"final tolerance must not decrease as admin tolerance grows")
		prev = got.FinalToleranceMeters
	}
}
