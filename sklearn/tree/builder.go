package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

// Criterion は分割品質の評価関数
type Criterion string

const (
	SquaredError  Criterion = "squared_error"
	FriedmanMSE   Criterion = "friedman_mse"
	AbsoluteError Criterion = "absolute_error"
	Poisson       Criterion = "poisson"
)

// ParseCriterion は文字列から Criterion を得る
func ParseCriterion(s string) (Criterion, error) {
	switch c := Criterion(s); c {
	case SquaredError, FriedmanMSE, AbsoluteError, Poisson:
		return c, nil
	}
	return "", errors.NewValidationError("criterion",
		"must be one of squared_error, friedman_mse, absolute_error, poisson", s)
}

// Config は木の成長を制御する
type Config struct {
	Criterion       Criterion
	MaxDepth        int // 0 以下は無制限
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 以下は全特徴量
}

// Node は平坦化された木のノード。Feature が -1 なら葉。
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Samples   int
}

// Tree は学習済みの回帰木。gob で保存できるようノードはスライスで保持する。
type Tree struct {
	Nodes []Node
}

// PredictRow は 1 サンプルの予測値を返す
func (t *Tree) PredictRow(x []float64) float64 {
	return t.Nodes[t.Apply(x)].Value
}

// Apply はサンプルが到達する葉のノード番号を返す
func (t *Tree) Apply(x []float64) int {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return i
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth は木の深さを返す（根のみなら 0）
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}

// Leaves は葉の数を返す
func (t *Tree) Leaves() int {
	count := 0
	for _, n := range t.Nodes {
		if n.Feature < 0 {
			count++
		}
	}
	return count
}

// Build は rows[idx] と y[idx] から回帰木を成長させる。
// idx は重複を含んでもよい（ブートストラップ標本）。rng は MaxFeatures が
// 特徴量数より小さい場合のみ使用する。
func Build(rows [][]float64, y []float64, idx []int, cfg Config, rng *rand.Rand) (*Tree, error) {
	if len(idx) == 0 || len(rows) == 0 {
		return nil, errors.ErrEmptyData
	}
	if cfg.Criterion == "" {
		cfg.Criterion = SquaredError
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	if cfg.MinSamplesLeaf < 1 {
		cfg.MinSamplesLeaf = 1
	}
	if cfg.Criterion == Poisson {
		var sum float64
		for _, i := range idx {
			if y[i] < 0 {
				return nil, errors.NewValueError("tree.Build", "some value(s) of y are negative which is not allowed for Poisson regression")
			}
			sum += y[i]
		}
		if sum <= 0 {
			return nil, errors.NewValueError("tree.Build", "sum of y is not positive which is necessary for Poisson regression")
		}
	}

	b := &builder{
		rows:      rows,
		y:         y,
		cfg:       cfg,
		rng:       rng,
		nFeatures: len(rows[0]),
	}
	b.grow(append([]int(nil), idx...), 0)
	return &Tree{Nodes: b.nodes}, nil
}

type builder struct {
	rows      [][]float64
	y         []float64
	cfg       Config
	rng       *rand.Rand
	nFeatures int
	nodes     []Node

	pairs []xy
}

type xy struct {
	x, y float64
}

type split struct {
	feature   int
	threshold float64
	proxy     float64
}

func (b *builder) grow(idx []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Value: b.leafValue(idx), Samples: len(idx)})

	if !b.splittable(idx, depth) {
		return id
	}
	s, ok := b.bestSplit(idx)
	if !ok {
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.rows[i][s.feature] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id].Feature = s.feature
	b.nodes[id].Threshold = s.threshold
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

func (b *builder) splittable(idx []int, depth int) bool {
	if b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth {
		return false
	}
	if len(idx) < b.cfg.MinSamplesSplit || len(idx) < 2*b.cfg.MinSamplesLeaf {
		return false
	}
	first := b.y[idx[0]]
	for _, i := range idx[1:] {
		if b.y[i] != first {
			return true
		}
	}
	return false
}

func (b *builder) candidateFeatures() []int {
	features := make([]int, b.nFeatures)
	for j := range features {
		features[j] = j
	}
	if b.cfg.MaxFeatures <= 0 || b.cfg.MaxFeatures >= b.nFeatures || b.rng == nil {
		return features
	}
	b.rng.Shuffle(len(features), func(i, j int) { features[i], features[j] = features[j], features[i] })
	return features[:b.cfg.MaxFeatures]
}

func (b *builder) bestSplit(idx []int) (split, bool) {
	best := split{proxy: math.Inf(-1)}
	found := false
	n := len(idx)
	minLeaf := b.cfg.MinSamplesLeaf

	for _, f := range b.candidateFeatures() {
		pairs := b.sortedPairs(idx, f)
		if pairs[0].x == pairs[n-1].x {
			continue
		}

		var total float64
		for _, p := range pairs {
			total += p.y
		}

		var sumL float64
		for pos := 1; pos < n; pos++ {
			sumL += pairs[pos-1].y
			if pos < minLeaf || n-pos < minLeaf {
				continue
			}
			if pairs[pos-1].x == pairs[pos].x {
				continue
			}
			proxy, ok := b.proxy(pairs, pos, sumL, total-sumL)
			if !ok || !(proxy > best.proxy) {
				continue
			}
			threshold := (pairs[pos-1].x + pairs[pos].x) / 2
			if threshold == pairs[pos].x {
				threshold = pairs[pos-1].x
			}
			best = split{feature: f, threshold: threshold, proxy: proxy}
			found = true
		}
	}
	return best, found
}

func (b *builder) sortedPairs(idx []int, f int) []xy {
	if cap(b.pairs) < len(idx) {
		b.pairs = make([]xy, len(idx))
	}
	pairs := b.pairs[:len(idx)]
	for k, i := range idx {
		pairs[k] = xy{x: b.rows[i][f], y: b.y[i]}
	}
	sort.SliceStable(pairs, func(a, c int) bool { return pairs[a].x < pairs[c].x })
	return pairs
}

// proxy は分割後の不純度減少に単調な代理値（大きいほど良い）を返す
func (b *builder) proxy(pairs []xy, pos int, sumL, sumR float64) (float64, bool) {
	nL := float64(pos)
	nR := float64(len(pairs) - pos)
	switch b.cfg.Criterion {
	case FriedmanMSE:
		diff := sumL/nL - sumR/nR
		return nL * nR * diff * diff / (nL + nR), true
	case Poisson:
		if sumL <= 0 || sumR <= 0 {
			return 0, false
		}
		return sumL*math.Log(sumL/nL) + sumR*math.Log(sumR/nR), true
	case AbsoluteError:
		return -(absDeviation(pairs[:pos]) + absDeviation(pairs[pos:])), true
	default:
		return sumL*sumL/nL + sumR*sumR/nR, true
	}
}

func (b *builder) leafValue(idx []int) float64 {
	if b.cfg.Criterion == AbsoluteError {
		values := make([]float64, len(idx))
		for k, i := range idx {
			values[k] = b.y[i]
		}
		sort.Float64s(values)
		return median(values)
	}
	var sum float64
	for _, i := range idx {
		sum += b.y[i]
	}
	return sum / float64(len(idx))
}

func absDeviation(pairs []xy) float64 {
	values := make([]float64, len(pairs))
	for k, p := range pairs {
		values[k] = p.y
	}
	sort.Float64s(values)
	m := median(values)
	var dev float64
	for _, v := range values {
		dev += math.Abs(v - m)
	}
	return dev
}

// median expects sorted input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
