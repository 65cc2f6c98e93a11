package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Frame is an ordered set of equal-length indicator columns, one row per bar.
// Leading rows of rolling-window columns hold NaN until the window fills.
type Frame struct {
	Names []string
	Index map[string]int
	Cols  [][]float64
	rows  int
}

func newFrame(rows int) *Frame {
	return &Frame{Index: make(map[string]int), rows: rows}
}

func (f *Frame) add(name string, col []float64) {
	if len(col) != f.rows {
		panic(fmt.Sprintf("features: column %s has %d rows, frame has %d", name, len(col), f.rows))
	}
	f.Index[name] = len(f.Names)
	f.Names = append(f.Names, name)
	f.Cols = append(f.Cols, col)
}

// NumRows returns the number of bar rows in the frame.
func (f *Frame) NumRows() int { return f.rows }

// Col returns the named column, or nil when absent.
func (f *Frame) Col(name string) []float64 {
	i, ok := f.Index[name]
	if !ok {
		return nil
	}
	return f.Cols[i]
}

// DropNonFinite returns the indices of rows whose every column is finite.
func (f *Frame) DropNonFinite() []int {
	var kept []int
	for r := 0; r < f.rows; r++ {
		if f.rowFinite(r, f.Cols) {
			kept = append(kept, r)
		}
	}
	return kept
}

func (f *Frame) rowFinite(r int, cols [][]float64) bool {
	for _, col := range cols {
		v := col[r]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Matrix selects the xCols feature columns and the yCol target, drops every
// row holding a non-finite value in any selected column, and returns the
// design matrix, the target column vector, and the surviving row indices.
func (f *Frame) Matrix(xCols []string, yCol string) (*mat.Dense, *mat.Dense, []int, error) {
	selected := make([][]float64, 0, len(xCols)+1)
	for _, name := range xCols {
		col := f.Col(name)
		if col == nil {
			return nil, nil, nil, fmt.Errorf("features: unknown column %q", name)
		}
		selected = append(selected, col)
	}
	target := f.Col(yCol)
	if target == nil {
		return nil, nil, nil, fmt.Errorf("features: unknown target column %q", yCol)
	}
	selected = append(selected, target)

	var kept []int
	for r := 0; r < f.rows; r++ {
		if f.rowFinite(r, selected) {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return nil, nil, nil, fmt.Errorf("features: no rows survive after dropping non-finite values")
	}

	x := mat.NewDense(len(kept), len(xCols), nil)
	y := mat.NewDense(len(kept), 1, nil)
	for i, r := range kept {
		for j := range xCols {
			x.Set(i, j, selected[j][r])
		}
		y.Set(i, 0, target[r])
	}
	return x, y, kept, nil
}
