package lightgbm

import (
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/studentperf/sklearn/tree"
)

// TrainingParams controls the growth of a single leaf-wise tree.
type TrainingParams struct {
	NumLeaves       int
	MaxDepth        int // -1 は無制限
	MinChildSamples int
	MinChildWeight  float64
	RegLambda       float64
	LearningRate    float64
	ColsampleBytree float64
}

// SplitInfo describes the best split found for a leaf.
type SplitInfo struct {
	Feature int
	Bin     int
	Gain    float64
	Found   bool
}

type leaf struct {
	node  int
	idx   []int
	hist  Histogram
	depth int
	sumG  float64
	sumH  float64
	split SplitInfo
}

// Trainer grows leaf-wise trees on a binned dataset.
type Trainer struct {
	params TrainingParams
	bins   *BinMapper
	binned [][]int
	nBins  []int
	rng    *rand.Rand

	// 特徴量ごとの分割回数とゲインの累計
	splitCount []float64
	splitGain  []float64
}

// NewTrainer bins rows once; every tree reuses the binned view.
func NewTrainer(rows [][]float64, maxBin int, params TrainingParams, rng *rand.Rand) *Trainer {
	bm := NewBinMapper(rows, maxBin)
	nBins := make([]int, len(bm.Bounds))
	for f := range nBins {
		nBins[f] = bm.NumBins(f)
	}
	return &Trainer{
		params:     params,
		bins:       bm,
		binned:     bm.Transform(rows),
		nBins:      nBins,
		rng:        rng,
		splitCount: make([]float64, len(nBins)),
		splitGain:  make([]float64, len(nBins)),
	}
}

// Grow builds one tree on the given gradients and hessians.
// Leaf values already include the learning rate.
func (t *Trainer) Grow(grad, hess []float64) *tree.Tree {
	features := t.sampleFeatures()

	all := make([]int, len(t.binned))
	for i := range all {
		all[i] = i
	}
	out := &tree.Tree{Nodes: []tree.Node{{Feature: -1, Samples: len(all)}}}

	root := t.newLeaf(0, all, BuildHistogram(t.binned, all, grad, hess, t.nBins), 0, features)
	leaves := []*leaf{root}

	for len(leaves) < t.params.NumLeaves {
		best := -1
		for i, l := range leaves {
			if l.split.Found && (best < 0 || l.split.Gain > leaves[best].split.Gain) {
				best = i
			}
		}
		if best < 0 {
			break
		}

		parent := leaves[best]
		f, b := parent.split.Feature, parent.split.Bin
		var leftIdx, rightIdx []int
		for _, i := range parent.idx {
			if t.binned[i][f] <= b {
				leftIdx = append(leftIdx, i)
			} else {
				rightIdx = append(rightIdx, i)
			}
		}

		// 小さい方の子だけヒストグラムを構築し、もう一方は親から引く
		var leftHist, rightHist Histogram
		if len(leftIdx) <= len(rightIdx) {
			leftHist = BuildHistogram(t.binned, leftIdx, grad, hess, t.nBins)
			rightHist = parent.hist.Subtract(leftHist)
		} else {
			rightHist = BuildHistogram(t.binned, rightIdx, grad, hess, t.nBins)
			leftHist = parent.hist.Subtract(rightHist)
		}

		leftNode := len(out.Nodes)
		out.Nodes = append(out.Nodes,
			tree.Node{Feature: -1, Samples: len(leftIdx)},
			tree.Node{Feature: -1, Samples: len(rightIdx)},
		)
		n := &out.Nodes[parent.node]
		n.Feature = f
		n.Threshold = t.bins.Bounds[f][b]
		n.Left = leftNode
		n.Right = leftNode + 1

		t.splitCount[f]++
		t.splitGain[f] += parent.split.Gain

		left := t.newLeaf(leftNode, leftIdx, leftHist, parent.depth+1, features)
		right := t.newLeaf(leftNode+1, rightIdx, rightHist, parent.depth+1, features)
		leaves[best] = left
		leaves = append(leaves, right)
	}

	for _, l := range leaves {
		out.Nodes[l.node].Value = t.leafOutput(l.sumG, l.sumH)
	}
	return out
}

func (t *Trainer) newLeaf(node int, idx []int, hist Histogram, depth int, features []int) *leaf {
	l := &leaf{node: node, idx: idx, hist: hist, depth: depth}
	// 合計はどの特徴量のヒストグラムからでも得られる
	for _, bin := range hist[0] {
		l.sumG += bin.SumGradients
		l.sumH += bin.SumHessians
	}
	if t.params.MaxDepth > 0 && depth >= t.params.MaxDepth {
		return l
	}
	if len(idx) < 2*t.params.MinChildSamples {
		return l
	}
	l.split = t.findBestSplit(l, features)
	return l
}

// findBestSplit scans every candidate feature's histogram left to right.
// Ties keep the first (lowest feature, lowest bin) candidate.
func (t *Trainer) findBestSplit(l *leaf, features []int) SplitInfo {
	best := SplitInfo{Feature: -1}
	parentScore := t.score(l.sumG, l.sumH)
	n := len(l.idx)

	for _, f := range features {
		var gl, hl float64
		var nl int
		bins := l.hist[f]
		for b := 0; b < len(bins)-1; b++ {
			gl += bins[b].SumGradients
			hl += bins[b].SumHessians
			nl += bins[b].Count
			nr := n - nl
			if nl < t.params.MinChildSamples {
				continue
			}
			if nr < t.params.MinChildSamples {
				break
			}
			gr, hr := l.sumG-gl, l.sumH-hl
			if hl < t.params.MinChildWeight || hr < t.params.MinChildWeight {
				continue
			}
			gain := t.score(gl, hl) + t.score(gr, hr) - parentScore
			if gain > 0 && (!best.Found || gain > best.Gain) {
				best = SplitInfo{Feature: f, Bin: b, Gain: gain, Found: true}
			}
		}
	}
	return best
}

// score is G²/(H+λ).
func (t *Trainer) score(g, h float64) float64 {
	return g * g / (h + t.params.RegLambda)
}

// leafOutput is -G/(H+λ) scaled by the learning rate.
func (t *Trainer) leafOutput(g, h float64) float64 {
	if h+t.params.RegLambda == 0 {
		return 0
	}
	return -g / (h + t.params.RegLambda) * t.params.LearningRate
}

func (t *Trainer) sampleFeatures() []int {
	nFeatures := len(t.nBins)
	all := make([]int, nFeatures)
	for i := range all {
		all[i] = i
	}
	if t.params.ColsampleBytree >= 1 || t.rng == nil {
		return all
	}
	k := int(t.params.ColsampleBytree * float64(nFeatures))
	if k < 1 {
		k = 1
	}
	t.rng.Shuffle(nFeatures, func(a, b int) { all[a], all[b] = all[b], all[a] })
	picked := all[:k]
	// 走査順を固定してタイブレークを決定的にする
	sort.Ints(picked)
	return picked
}
