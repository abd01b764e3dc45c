package util

import (
	"fmt"
	"math"
)

func FormatValueFactor(value float64, unit string) string {
	absValue := math.Abs(value)
	switch {
	case absValue >= 1:
		return fmt.Sprintf("%.3f %s", value, unit)
	case absValue >= 1e-3:
		return fmt.Sprintf("%.3f m%s", value*1e3, unit)
	case absValue >= 1e-6:
		return fmt.Sprintf("%.3f u%s", value*1e6, unit)
	case absValue >= 1e-9:
		return fmt.Sprintf("%.3f n%s", value*1e9, unit)
	case absValue >= 1e-12:
		return fmt.Sprintf("%.3f p%s", value*1e12, unit)
	default:
		return fmt.Sprintf("%.3e %s", value, unit)
	}
}

// FormatDuration renders a simulation time in the largest unit that
// keeps the value above 1.0, for step/Tmax log lines.
func FormatDuration(t float64) string {
	switch {
	case t >= 1:
		return fmt.Sprintf("%7.3f s ", t)
	case t >= 1e-3:
		return fmt.Sprintf("%7.3f ms", t*1e3)
	case t >= 1e-6:
		return fmt.Sprintf("%7.3f us", t*1e6)
	default:
		return fmt.Sprintf("%7.3f ns", t*1e9)
	}
}
