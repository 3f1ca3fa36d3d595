package correlation

import (
	"math"
	"time"
)

// simpleReturns computes rₜ = (pₜ − pₜ₋₁)/pₜ₋₁ over history restricted to
// the trailing windowDays, per spec §4.5's "Returns" rule.
func simpleReturns(history []PricePoint, windowDays int) []float64 {
	windowed := windowPoints(history, windowDays)
	if len(windowed) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(windowed)-1)
	for i := 1; i < len(windowed); i++ {
		prev := windowed[i-1].Price
		if prev == 0 {
			continue
		}
		returns = append(returns, (windowed[i].Price-prev)/prev)
	}
	return returns
}

func windowPoints(history []PricePoint, windowDays int) []PricePoint {
	if windowDays <= 0 || len(history) == 0 {
		return history
	}
	cutoff := history[len(history)-1].ObservedAt.Add(-time.Duration(windowDays) * 24 * time.Hour)
	start := 0
	for i, p := range history {
		if !p.ObservedAt.Before(cutoff) {
			start = i
			break
		}
	}
	return history[start:]
}

// alignReturns truncates two return series to their common length,
// taking the most recent overlapping observations.
func alignReturns(a, b []float64) ([]float64, []float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	return a[len(a)-n:], b[len(b)-n:]
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

// annualizedVolatility scales a daily-return standard deviation to an
// annualized figure assuming 252 trading days.
func annualizedVolatility(dailyReturns []float64) float64 {
	return stdDev(dailyReturns) * math.Sqrt(252)
}
