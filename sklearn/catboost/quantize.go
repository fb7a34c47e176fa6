package catboost

import (
	"sort"
)

// quantileBorders returns up to borderCount ascending split borders for values.
// Borders sit halfway between neighbouring distinct values.
func quantileBorders(values []float64, borderCount int) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	distinct := make([]float64, 0, len(sorted))
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			distinct = append(distinct, v)
		}
	}
	if len(distinct) < 2 {
		return nil
	}
	if len(distinct)-1 <= borderCount {
		borders := make([]float64, len(distinct)-1)
		for i := range borders {
			borders[i] = (distinct[i] + distinct[i+1]) / 2
		}
		return borders
	}

	borders := make([]float64, 0, borderCount)
	for k := 1; k <= borderCount; k++ {
		q := sorted[k*(len(sorted)-1)/(borderCount+1)]
		j := sort.SearchFloat64s(distinct, q)
		if j+1 >= len(distinct) {
			break
		}
		b := (distinct[j] + distinct[j+1]) / 2
		if len(borders) == 0 || b > borders[len(borders)-1] {
			borders = append(borders, b)
		}
	}
	return borders
}

// quantize maps v to the number of borders strictly below it, so
// bin <= k  <=>  v <= borders[k].
func quantize(borders []float64, v float64) int {
	return sort.SearchFloat64s(borders, v)
}
