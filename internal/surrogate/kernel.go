package surrogate

import "math"

var sqrt5 = math.Sqrt(5)

// matern52 is the Matérn kernel with nu = 5/2 and unit signal variance
func matern52(a, b []float64, lengthScale float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	r := math.Sqrt(sum) / lengthScale
	return (1 + sqrt5*r + 5.0/3.0*r*r) * math.Exp(-sqrt5*r)
}

// lengthScaleGrid returns n log-spaced values in [lo, hi]
func lengthScaleGrid(lo, hi float64, n int) []float64 {
	if n < 2 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (math.Log(hi) - math.Log(lo)) / float64(n-1)
	for i := range out {
		out[i] = math.Exp(math.Log(lo) + float64(i)*step)
	}
	return out
}
