package calibration

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// invert returns the inverse of the square matrix m using Gauss-Jordan
// elimination with partial pivoting.
//
// The system is equilibrated to a unit diagonal first so eps is compared
// against pivots of comparable scale whatever units the samples are in.
// When a pivot falls below eps the diagonal pseudo-inverse of m is
// returned together with ErrSingularSystem.
func invert(m mat.Matrix, eps float64) (*mat.Dense, error) {
	n, c := m.Dims()
	if n != c {
		return nil, fmt.Errorf("invert %dx%d: matrix not square", n, c)
	}

	scale := make([]float64, n)
	for i := range scale {
		scale[i] = 1
		if d := m.At(i, i); d > 0 && !math.IsInf(d, 0) {
			scale[i] = 1 / math.Sqrt(d)
		}
	}

	aug := mat.NewDense(n, 2*n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			aug.Set(i, j, scale[i]*m.At(i, j)*scale[j])
		}
		aug.Set(i, n+i, 1)
	}

	for col := 0; col < n; col++ {
		pivot, best := col, math.Abs(aug.At(col, col))
		for r := col + 1; r < n; r++ {
			if v := math.Abs(aug.At(r, col)); v > best {
				pivot, best = r, v
			}
		}
		if !(best >= eps) {
			return pseudoInverse(m, eps), fmt.Errorf("pivot %d magnitude %.3g: %w", col, best, ErrSingularSystem)
		}
		if pivot != col {
			a, b := aug.RawRowView(col), aug.RawRowView(pivot)
			for k := range a {
				a[k], b[k] = b[k], a[k]
			}
		}

		row := aug.RawRowView(col)
		floats.Scale(1/row[col], row)
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			other := aug.RawRowView(r)
			if f := other[col]; f != 0 {
				floats.AddScaled(other, -f, row)
			}
		}
	}

	inv := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			inv.Set(i, j, scale[i]*aug.At(i, n+j)*scale[j])
		}
	}
	return inv, nil
}

// pseudoInverse inverts only the diagonal of m. Diagonal entries below eps
// map to zero, so the result is always finite.
func pseudoInverse(m mat.Matrix, eps float64) *mat.Dense {
	n, _ := m.Dims()
	inv := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d := m.At(i, i)
		if math.Abs(d) >= eps && !math.IsInf(d, 0) {
			inv.Set(i, i, 1/d)
		}
	}
	return inv
}
