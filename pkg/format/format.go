// Package format holds the number formatting applied when values leave the
// process. Internal computations keep full precision.
package format

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round2 rounds v half away from zero to two decimal places.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// PadNumber left-pads a single-digit numeric string with a zero ("1" -> "01").
// Anything else, including nil, passes through unchanged.
func PadNumber(v *string) *string {
	if v == nil || len(*v) != 1 || (*v)[0] < '0' || (*v)[0] > '9' {
		return v
	}
	padded := "0" + *v
	return &padded
}
