package correlate

import (
	"math"
	"sort"
)

// tie records a pair that was accepted while an equally ranked rival for
// one of its sides was still free.
type tie struct {
	winner candidate
	rival  candidate
}

// outranks orders candidates best first: confidence, then similarity, then
// distance, then input order of A and B.
func outranks(x, y candidate) bool {
	if x.confidence != y.confidence {
		return x.confidence > y.confidence
	}
	if x.similarity != y.similarity {
		return x.similarity > y.similarity
	}
	if !sameDistance(x.distance, y.distance) {
		if math.IsNaN(x.distance) {
			return false
		}
		if math.IsNaN(y.distance) {
			return true
		}
		return x.distance < y.distance
	}
	if x.ai != y.ai {
		return x.ai < y.ai
	}
	return x.bj < y.bj
}

func sameRank(x, y candidate) bool {
	return x.confidence == y.confidence && x.similarity == y.similarity && sameDistance(x.distance, y.distance)
}

func sameDistance(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

// assignGreedy is the single-threaded reducer over a stage's score table:
// best pair first, skipping pairs whose A or B is already taken.
func assignGreedy(cands []candidate) ([]candidate, []tie) {
	sorted := make([]candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool { return outranks(sorted[i], sorted[j]) })

	usedA := make(map[int]bool)
	usedB := make(map[int]bool)
	var accepted []candidate
	var ties []tie

	for i, c := range sorted {
		if usedA[c.ai] || usedB[c.bj] {
			continue
		}
		for k := i + 1; k < len(sorted) && sameRank(sorted[k], c); k++ {
			o := sorted[k]
			if (o.ai == c.ai && !usedB[o.bj]) || (o.bj == c.bj && !usedA[o.ai]) {
				ties = append(ties, tie{winner: c, rival: o})
				break
			}
		}
		usedA[c.ai] = true
		usedB[c.bj] = true
		accepted = append(accepted, c)
	}
	return accepted, ties
}

// edgeWeight is what the optimal assignment maximises. Similarity only
// separates pairs of equal confidence.
func edgeWeight(c candidate) float64 {
	return c.confidence + 1e-3*c.similarity
}

// assignOptimal picks the set of pairs with the largest total weight
// (Hungarian algorithm on the candidates' bipartite graph).
func assignOptimal(cands []candidate) []candidate {
	if len(cands) == 0 {
		return nil
	}

	rowOf := make(map[int]int)
	colOf := make(map[int]int)
	var rows, cols []int
	for _, c := range cands {
		if _, ok := rowOf[c.ai]; !ok {
			rowOf[c.ai] = len(rows)
			rows = append(rows, c.ai)
		}
		if _, ok := colOf[c.bj]; !ok {
			colOf[c.bj] = len(cols)
			cols = append(cols, c.bj)
		}
	}

	const noEdge = 2.0
	n := max(len(rows), len(cols))
	cost := make([][]float64, n)
	edge := make([][]int, n)
	for i := range cost {
		cost[i] = make([]float64, n)
		edge[i] = make([]int, n)
		for j := range cost[i] {
			cost[i][j] = noEdge
			edge[i][j] = -1
		}
	}
	for k, c := range cands {
		i, j := rowOf[c.ai], colOf[c.bj]
		if w := noEdge - edgeWeight(c); w < cost[i][j] {
			cost[i][j] = w
			edge[i][j] = k
		}
	}

	var accepted []candidate
	for i, j := range hungarian(cost) {
		if j >= 0 && edge[i][j] >= 0 {
			accepted = append(accepted, cands[edge[i][j]])
		}
	}
	sort.SliceStable(accepted, func(x, y int) bool {
		return accepted[x].ai < accepted[y].ai
	})
	return accepted
}

// hungarian solves the square assignment problem minimising total cost and
// returns the column assigned to each row.
func hungarian(cost [][]float64) []int {
	n := len(cost)
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1)
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}
		for {
			used[j0] = true
			i0, delta, j1 := p[j0], math.Inf(1), 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				if cur := cost[i0-1][j-1] - u[i0] - v[j]; cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	assignment := make([]int, n)
	for i := range assignment {
		assignment[i] = -1
	}
	for j := 1; j <= n; j++ {
		if p[j] != 0 {
			assignment[p[j]-1] = j - 1
		}
	}
	return assignment
}
