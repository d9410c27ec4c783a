package tracker

import (
	"errors"
)

// lapjvLarge is larger than any reduced cost the solver works with
const lapjvLarge = 1000000.0

// lapjv solves the dense square Linear Assignment Problem with the
// Jonker-Volgenant algorithm.  On return x[i] is the column assigned to row i
// and y[j] the row assigned to column j.
func lapjv(cost [][]float64, x, y []int) error {

	n := len(cost)
	freeRows := make([]int, n)
	v := make([]float64, n)

	nFree := columnReduction(n, cost, freeRows, x, y, v)

	for i := 0; nFree > 0 && i < 2; i++ {
		nFree = augmentingRowReduction(n, cost, nFree, freeRows, x, y, v)
	}

	if nFree > 0 {
		return augment(n, cost, nFree, freeRows, x, y, v)
	}

	return nil
}

// columnReduction performs column reduction and reduction transfer, it
// returns the number of rows left unassigned
func columnReduction(n int, cost [][]float64, freeRows, x, y []int, v []float64) int {

	unique := make([]bool, n)

	for i := 0; i < n; i++ {
		x[i] = -1
		v[i] = lapjvLarge
		y[i] = 0
		unique[i] = true
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if c := cost[i][j]; c < v[j] {
				v[j] = c
				y[j] = i
			}
		}
	}

	for j := n - 1; j >= 0; j-- {
		i := y[j]

		if x[i] < 0 {
			x[i] = j
		} else {
			unique[i] = false
			y[j] = -1
		}
	}

	nFree := 0

	for i := 0; i < n; i++ {

		if x[i] < 0 {
			freeRows[nFree] = i
			nFree++
			continue
		}

		if !unique[i] {
			continue
		}

		j := x[i]
		minVal := lapjvLarge

		for j2 := 0; j2 < n; j2++ {
			if j2 == j {
				continue
			}

			if c := cost[i][j2] - v[j2]; c < minVal {
				minVal = c
			}
		}

		v[j] -= minVal
	}

	return nFree
}

// augmentingRowReduction tries to assign the free rows by lowering column
// prices, it returns the number of rows still free
func augmentingRowReduction(n int, cost [][]float64, nFree int, freeRows,
	x, y []int, v []float64) int {

	current := 0
	newFree := 0
	rrCnt := 0

	for current < nFree {

		rrCnt++
		freeI := freeRows[current]
		current++

		// lowest and second lowest reduced cost in the row
		j1 := 0
		v1 := cost[freeI][0] - v[0]
		j2 := -1
		v2 := lapjvLarge

		for j := 1; j < n; j++ {
			c := cost[freeI][j] - v[j]

			if c >= v2 {
				continue
			}

			if c >= v1 {
				v2 = c
				j2 = j
			} else {
				v2 = v1
				v1 = c
				j2 = j1
				j1 = j
			}
		}

		i0 := y[j1]
		v1New := v[j1] - (v2 - v1)
		v1Lowers := v1New < v[j1]

		if rrCnt < current*n {
			if v1Lowers {
				v[j1] = v1New
			} else if i0 >= 0 && j2 >= 0 {
				j1 = j2
				i0 = y[j2]
			}

			if i0 >= 0 {
				if v1Lowers {
					current--
					freeRows[current] = i0
				} else {
					freeRows[newFree] = i0
					newFree++
				}
			}

		} else if i0 >= 0 {
			freeRows[newFree] = i0
			newFree++
		}

		x[freeI] = j1
		y[j1] = freeI
	}

	return newFree
}

// findMin moves the columns with the minimum d[j] to the front of the todo
// part of cols and returns the end of that group
func findMin(n, lo int, d []float64, cols []int) int {

	hi := lo + 1
	mind := d[cols[lo]]

	for k := hi; k < n; k++ {

		j := cols[k]

		if d[j] > mind {
			continue
		}

		if d[j] < mind {
			hi = lo
			mind = d[j]
		}

		cols[k] = cols[hi]
		cols[hi] = j
		hi++
	}

	return hi
}

// scan lowers d of the todo columns through the columns in the scan list,
// it returns an unassigned column reached at minimum distance or -1
func scan(n int, cost [][]float64, lo, hi *int, d []float64,
	cols, pred, y []int, v []float64) int {

	for *lo != *hi {

		j := cols[*lo]
		*lo++
		i := y[j]
		mind := d[j]
		h := cost[i][j] - v[j] - mind

		for k := *hi; k < n; k++ {
			j = cols[k]
			red := cost[i][j] - v[j] - h

			if red >= d[j] {
				continue
			}

			d[j] = red
			pred[j] = i

			if red == mind {
				if y[j] < 0 {
					return j
				}

				cols[k] = cols[*hi]
				cols[*hi] = j
				*hi++
			}
		}
	}

	return -1
}

// shortestPath runs one Dijkstra style search from startI for an augmenting
// path, it returns the free column ending the path
func shortestPath(n int, cost [][]float64, startI int, y []int, v []float64,
	pred []int) int {

	lo, hi := 0, 0
	finalJ := -1
	nReady := 0
	cols := make([]int, n)
	d := make([]float64, n)

	for j := 0; j < n; j++ {
		cols[j] = j
		pred[j] = startI
		d[j] = cost[startI][j] - v[j]
	}

	for finalJ == -1 {

		if lo == hi {
			nReady = lo
			hi = findMin(n, lo, d, cols)

			for k := lo; k < hi; k++ {
				if j := cols[k]; y[j] < 0 {
					finalJ = j
				}
			}
		}

		if finalJ == -1 {
			finalJ = scan(n, cost, &lo, &hi, d, cols, pred, y, v)
		}
	}

	mind := d[cols[lo]]

	for k := 0; k < nReady; k++ {
		j := cols[k]
		v[j] += d[j] - mind
	}

	return finalJ
}

// augment assigns each remaining free row along its shortest augmenting path
func augment(n int, cost [][]float64, nFree int, freeRows,
	x, y []int, v []float64) error {

	pred := make([]int, n)

	for _, freeI := range freeRows[:nFree] {

		j := shortestPath(n, cost, freeI, y, v, pred)

		if j < 0 || j >= n {
			return errors.New("no augmenting path found")
		}

		i := -1

		for k := 0; i != freeI; k++ {

			if k >= n {
				return errors.New("augmenting path does not terminate")
			}

			i = pred[j]
			y[j] = i
			j, x[i] = x[i], j
		}
	}

	return nil
}

// linearAssignment finds the minimum cost matching of rows to cols columns.
// Leaving a row or column unmatched costs limit/2, so pairs costing more than
// limit are never matched.  Unmatched indices are returned in ascending
// order.
func linearAssignment(cost [][]float64, cols int, limit float64) (matches [][2]int,
	unRows, unCols []int, err error) {

	rows := len(cost)

	if rows == 0 || cols == 0 {
		for i := 0; i < rows; i++ {
			unRows = append(unRows, i)
		}

		for j := 0; j < cols; j++ {
			unCols = append(unCols, j)
		}

		return nil, unRows, unCols, nil
	}

	// extend to a square matrix with a dummy column per row and a dummy row
	// per column
	n := rows + cols
	ext := make([][]float64, n)

	for i := range ext {
		ext[i] = make([]float64, n)

		for j := range ext[i] {
			switch {
			case i < rows && j < cols:
				ext[i][j] = cost[i][j]
			case i >= rows && j >= cols:
				ext[i][j] = 0
			default:
				ext[i][j] = limit / 2
			}
		}
	}

	x := make([]int, n)
	y := make([]int, n)

	if err := lapjv(ext, x, y); err != nil {
		return nil, nil, nil, err
	}

	used := make([]bool, cols)

	for i := 0; i < rows; i++ {
		j := x[i]

		if j >= 0 && j < cols && cost[i][j] <= limit {
			matches = append(matches, [2]int{i, j})
			used[j] = true
		} else {
			unRows = append(unRows, i)
		}
	}

	for j, ok := range used {
		if !ok {
			unCols = append(unCols, j)
		}
	}

	return matches, unRows, unCols, nil
}
