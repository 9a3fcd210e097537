package reduction

import "gonum.org/v1/gonum/mat"

// moorePenrosePinv computes the Moore-Penrose pseudoinverse of a square
// dense matrix via SVD, the fallback path for a singular Y_EE in Ward
// reduction (§9 Open Question: degenerate external sets with no internal
// coupling still need a usable, if approximate, equivalent rather than an
// aborted reduction).
func moorePenrosePinv(dense [][]float64, n int) [][]float64 {
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, dense[i][j])
		}
	}

	var svd mat.SVD
	ok := svd.Factorize(a, mat.SVDFull)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	if !ok {
		return out
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	values := svd.Values(nil)

	const tol = 1e-10
	var pinv mat.Dense
	pinv.ReuseAs(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var sum float64
			for k := 0; k < n; k++ {
				if values[k] < tol {
					continue
				}
				sum += v.At(i, k) * (1 / values[k]) * u.At(j, k)
			}
			pinv.Set(i, j, sum)
		}
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out[i][j] = pinv.At(i, j)
		}
	}
	return out
}
