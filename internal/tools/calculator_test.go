package tools

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	for expr, want := range map[string]float64{
		"1+2":           3,
		"2+3*4":         14,
		"(2+3)*4":       20,
		"10/4":          2.5,
		"7//2":          3,
		"-7//2":         -4,
		"2**3":          8,
		"2**3**2":       512,
		"-2**2":         -4,
		"-(1+2)":        -3,
		" 1.5 * 2 ":     3,
		"what is 6*7?":  42,
		"1-2-3":         -4,
		"+5":            5,
		"100/10/5":      2,
		"3*(2+(1-4))/2": -1.5,
	} {
		t.Run(expr, func(t *testing.T) {
			got, err := Calculate(expr)
			require.NoError(t, err)
			require.InDelta(t, want, got, 1e-9)
		})
	}
}

func TestCalculateErrors(t *testing.T) {
	for _, expr := range []string{
		"",
		"1+",
		"(1+2",
		"1/0",
		"1,2",
		"1..2",
		"abc",
		"1)",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := Calculate(expr)
			require.ErrorIs(t, err, ErrInvalidExpression)
			require.Contains(t, err.Error(), expr)
		})
	}
}
