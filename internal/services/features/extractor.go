package features

import "math"

// SimpleReturns computes r_i = (p_i - p_{i-1}) / p_{i-1}.
// It returns a slice of length len(prices)-1, or nil if insufficient data.
// A non-positive previous price yields a zero return for that step.
func SimpleReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if prev <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (prices[i]-prev)/prev)
	}
	return out
}

func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev is the population standard deviation (divides by n).
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := Mean(xs)
	sum2 := 0.0
	for _, x := range xs {
		d := x - mean
		sum2 += d * d
	}
	return math.Sqrt(sum2 / float64(len(xs)))
}

// ReturnVolatility is the population stdev of simple returns over prices.
func ReturnVolatility(prices []float64) float64 {
	return StdDev(SimpleReturns(prices))
}

// Trend is the relative change from the first to the last price.
func Trend(prices []float64) float64 {
	if len(prices) < 2 || prices[0] == 0 {
		return 0
	}
	return (prices[len(prices)-1] - prices[0]) / prices[0]
}

// Sign returns +1 for positive x and -1 otherwise.
func Sign(x float64) float64 {
	if x > 0 {
		return 1
	}
	return -1
}

// Clamp bounds x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
