package catboost

import (
	"math/rand/v2"
)

// CTRStat is the running target sum and count for one category value.
type CTRStat struct {
	Sum   float64
	Count float64
}

// CTRTable encodes one categorical column as a smoothed target mean.
type CTRTable struct {
	Feature int
	Prior   float64
	Stats   map[float64]CTRStat
}

// encode returns (sum + prior) / (count + 1).
func (t *CTRTable) encode(stat CTRStat) float64 {
	return (stat.Sum + t.Prior) / (stat.Count + 1)
}

// Value encodes a category with the statistics of the whole training set.
// Unseen categories get the prior.
func (t *CTRTable) Value(category float64) float64 {
	return t.encode(t.Stats[category])
}

// orderedTargetStatistics replaces column f with ordered target statistics:
// each row only sees the targets of rows before it in a random permutation,
// which keeps its own target out of its encoding.
func orderedTargetStatistics(rows [][]float64, y []float64, f int, prior float64, rng *rand.Rand) *CTRTable {
	table := &CTRTable{Feature: f, Prior: prior, Stats: make(map[float64]CTRStat)}
	for _, i := range rng.Perm(len(rows)) {
		category := rows[i][f]
		stat := table.Stats[category]
		rows[i][f] = table.encode(stat)
		stat.Sum += y[i]
		stat.Count++
		table.Stats[category] = stat
	}
	return table
}
