package catboost

// ObliviousTree applies Features[l] <= Borders[l] at every node of level l.
// Leaf index bit l is set when the row goes right at level l.
type ObliviousTree struct {
	Features []int
	Borders  []float64
	Leaves   []float64
}

// LeafIndex returns the leaf reached by x.
func (t *ObliviousTree) LeafIndex(x []float64) int {
	idx := 0
	for l, f := range t.Features {
		if x[f] > t.Borders[l] {
			idx |= 1 << l
		}
	}
	return idx
}

// PredictRow returns the leaf value for x.
func (t *ObliviousTree) PredictRow(x []float64) float64 {
	return t.Leaves[t.LeafIndex(x)]
}

// Depth returns the number of levels.
func (t *ObliviousTree) Depth() int {
	return len(t.Features)
}

type treeGrower struct {
	bins      [][]int // bins[i][f]
	borders   [][]float64
	depth     int
	l2        float64
	lr        float64
	nFeatures int
}

// grow builds one oblivious tree on the residuals.
// Each level picks the split maximising sum over leaves of G²/(n+λ).
func (g *treeGrower) grow(residual []float64) *ObliviousTree {
	n := len(residual)
	leafOf := make([]int, n)
	t := &ObliviousTree{}

	for level := 0; level < g.depth; level++ {
		nLeaves := 1 << level
		bestScore, bestFeature, bestBin := 0.0, -1, 0

		for f := 0; f < g.nFeatures; f++ {
			nBins := len(g.borders[f]) + 1
			if nBins < 2 {
				continue
			}
			// hist[leaf*nBins+bin]
			sums := make([]float64, nLeaves*nBins)
			counts := make([]float64, nLeaves*nBins)
			for i := 0; i < n; i++ {
				k := leafOf[i]*nBins + g.bins[i][f]
				sums[k] += residual[i]
				counts[k]++
			}
			totalSum := make([]float64, nLeaves)
			totalCount := make([]float64, nLeaves)
			for leaf := 0; leaf < nLeaves; leaf++ {
				for b := 0; b < nBins; b++ {
					totalSum[leaf] += sums[leaf*nBins+b]
					totalCount[leaf] += counts[leaf*nBins+b]
				}
			}

			leftSum := make([]float64, nLeaves)
			leftCount := make([]float64, nLeaves)
			for b := 0; b < nBins-1; b++ {
				var score float64
				for leaf := 0; leaf < nLeaves; leaf++ {
					leftSum[leaf] += sums[leaf*nBins+b]
					leftCount[leaf] += counts[leaf*nBins+b]
					rs := totalSum[leaf] - leftSum[leaf]
					rc := totalCount[leaf] - leftCount[leaf]
					score += g.leafScore(leftSum[leaf], leftCount[leaf]) + g.leafScore(rs, rc)
				}
				if bestFeature < 0 || score > bestScore {
					bestScore, bestFeature, bestBin = score, f, b
				}
			}
		}
		if bestFeature < 0 {
			break
		}

		t.Features = append(t.Features, bestFeature)
		t.Borders = append(t.Borders, g.borders[bestFeature][bestBin])
		for i := 0; i < n; i++ {
			if g.bins[i][bestFeature] > bestBin {
				leafOf[i] |= 1 << level
			}
		}
	}

	nLeaves := 1 << len(t.Features)
	sums := make([]float64, nLeaves)
	counts := make([]float64, nLeaves)
	for i, leaf := range leafOf {
		sums[leaf] += residual[i]
		counts[leaf]++
	}
	t.Leaves = make([]float64, nLeaves)
	for leaf := range t.Leaves {
		if counts[leaf]+g.l2 > 0 {
			t.Leaves[leaf] = g.lr * sums[leaf] / (counts[leaf] + g.l2)
		}
	}
	return t
}

func (g *treeGrower) leafScore(sum, count float64) float64 {
	if count+g.l2 == 0 {
		return 0
	}
	return sum * sum / (count + g.l2)
}
