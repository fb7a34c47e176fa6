package lightgbm

import (
	"sort"
)

// BinMapper maps raw feature values to histogram bins.
// Bounds[f][b] is the inclusive upper bound of bin b of feature f; values
// above the last bound fall into the final bin.
type BinMapper struct {
	Bounds [][]float64
}

// NewBinMapper builds bins for every column of rows.
func NewBinMapper(rows [][]float64, maxBin int) *BinMapper {
	nFeatures := len(rows[0])
	bm := &BinMapper{Bounds: make([][]float64, nFeatures)}
	values := make([]float64, len(rows))
	for f := 0; f < nFeatures; f++ {
		for i, row := range rows {
			values[i] = row[f]
		}
		bm.Bounds[f] = findBinBoundaries(values, maxBin)
	}
	return bm
}

// findBinBoundaries は分割候補の境界を返す。
// 異なる値が maxBin 以下なら値ごとに 1 ビン、それ以外は等頻度で区切る。
func findBinBoundaries(values []float64, maxBin int) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	unique := make([]float64, 0, len(sorted))
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			unique = append(unique, v)
		}
	}

	if len(unique) <= maxBin {
		bounds := make([]float64, 0, len(unique))
		for i := 1; i < len(unique); i++ {
			bounds = append(bounds, (unique[i-1]+unique[i])/2)
		}
		return bounds
	}

	bounds := make([]float64, 0, maxBin)
	for b := 1; b < maxBin; b++ {
		pos := b * len(sorted) / maxBin
		if pos <= 0 || pos >= len(sorted) {
			continue
		}
		lo, hi := sorted[pos-1], sorted[pos]
		if lo == hi {
			// 同値の塊を分断しないよう、次の異なる値までずらす
			j := sort.SearchFloat64s(unique, hi)
			if j+1 >= len(unique) {
				continue
			}
			lo, hi = unique[j], unique[j+1]
		}
		cut := (lo + hi) / 2
		if len(bounds) == 0 || cut > bounds[len(bounds)-1] {
			bounds = append(bounds, cut)
		}
	}
	return bounds
}

// NumBins returns the number of bins of feature f.
func (bm *BinMapper) NumBins(f int) int {
	return len(bm.Bounds[f]) + 1
}

// Bin returns the bin index of v for feature f.
func (bm *BinMapper) Bin(f int, v float64) int {
	return sort.SearchFloat64s(bm.Bounds[f], v)
}

// Transform bins every row.
func (bm *BinMapper) Transform(rows [][]float64) [][]int {
	out := make([][]int, len(rows))
	for i, row := range rows {
		binned := make([]int, len(row))
		for f, v := range row {
			binned[f] = bm.Bin(f, v)
		}
		out[i] = binned
	}
	return out
}

// HistogramBin accumulates gradient statistics for one bin.
type HistogramBin struct {
	SumGradients float64
	SumHessians  float64
	Count        int
}

// Histogram holds the bins of every feature for one leaf.
type Histogram [][]HistogramBin

// BuildHistogram accumulates grad and hess of the rows in idx.
func BuildHistogram(binned [][]int, idx []int, grad, hess []float64, nBins []int) Histogram {
	hist := make(Histogram, len(nBins))
	for f, n := range nBins {
		hist[f] = make([]HistogramBin, n)
	}
	for _, i := range idx {
		g, h := grad[i], hess[i]
		for f, b := range binned[i] {
			bin := &hist[f][b]
			bin.SumGradients += g
			bin.SumHessians += h
			bin.Count++
		}
	}
	return hist
}

// Subtract returns h - sibling, the histogram of the other child.
func (h Histogram) Subtract(sibling Histogram) Histogram {
	out := make(Histogram, len(h))
	for f := range h {
		out[f] = make([]HistogramBin, len(h[f]))
		for b := range h[f] {
			out[f][b] = HistogramBin{
				SumGradients: h[f][b].SumGradients - sibling[f][b].SumGradients,
				SumHessians:  h[f][b].SumHessians - sibling[f][b].SumHessians,
				Count:        h[f][b].Count - sibling[f][b].Count,
			}
		}
	}
	return out
}
