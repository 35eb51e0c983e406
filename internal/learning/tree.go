package learning

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
)

// treeNode is one node of a fitted tree. Leaves have Feature == -1.
type treeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

// DecisionTree is a CART regression tree minimizing squared error.
type DecisionTree struct {
	MaxDepth       int        `json:"max_depth"`
	MinSamplesLeaf int        `json:"min_samples_leaf"`
	MaxFeatures    float64    `json:"max_features,omitempty"`
	Seed           uint64     `json:"seed,omitempty"`
	Nodes          []treeNode `json:"nodes"`
}

// NewDecisionTree creates an untrained tree that considers every feature at each split.
func NewDecisionTree(maxDepth, minSamplesLeaf int, seed uint64) *DecisionTree {
	return &DecisionTree{MaxDepth: maxDepth, MinSamplesLeaf: minSamplesLeaf, Seed: seed}
}

func (t *DecisionTree) Algorithm() string { return AlgorithmTree }

// Fit grows the tree on every row of x.
func (t *DecisionTree) Fit(ctx context.Context, x [][]float64, y []float64) error {
	if err := checkTrainingSet(x, y); err != nil {
		return err
	}
	rows := make([]int, len(x))
	for i := range rows {
		rows[i] = i
	}
	return t.fitRows(ctx, x, y, rows, rand.New(rand.NewPCG(t.Seed, 0x7265)))
}

// Predict walks the tree to a leaf.
func (t *DecisionTree) Predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t *DecisionTree) validate(width int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	for i, n := range t.Nodes {
		if n.Feature < 0 {
			continue
		}
		if n.Feature >= width {
			return fmt.Errorf("node %d splits on feature %d, vector has %d", i, n.Feature, width)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

// fitRows grows the tree on the given rows, which may repeat (bootstrap).
func (t *DecisionTree) fitRows(ctx context.Context, x [][]float64, y []float64, rows []int, rng *rand.Rand) error {
	p := len(x[0])
	k := p
	if t.MaxFeatures > 0 && t.MaxFeatures < 1 {
		k = max(1, int(t.MaxFeatures*float64(p)))
	}

	// Presort the rows once per feature; splits partition these lists stably.
	sorted := make([][]int, p)
	for f := 0; f < p; f++ {
		s := slices.Clone(rows)
		slices.SortStableFunc(s, func(a, b int) int {
			switch {
			case x[a][f] < x[b][f]:
				return -1
			case x[a][f] > x[b][f]:
				return 1
			}
			return 0
		})
		sorted[f] = s
	}

	b := &treeBuilder{
		ctx:      ctx,
		x:        x,
		y:        y,
		maxDepth: max(1, t.MaxDepth),
		minLeaf:  max(1, t.MinSamplesLeaf),
		k:        k,
		rng:      rng,
		goLeft:   make([]bool, len(x)),
	}
	b.build(sorted, 0)
	if b.err != nil {
		return b.err
	}
	t.Nodes = b.nodes
	return nil
}

type treeBuilder struct {
	ctx      context.Context
	x        [][]float64
	y        []float64
	maxDepth int
	minLeaf  int
	k        int
	rng      *rand.Rand
	goLeft   []bool
	nodes    []treeNode
	err      error
}

type split struct {
	feature   int
	threshold float64
	score     float64
}

func (b *treeBuilder) build(sorted [][]int, depth int) int {
	rows := sorted[0]
	n := len(rows)
	var sum float64
	for _, r := range rows {
		sum += b.y[r]
	}

	idx := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{Feature: -1, Value: sum / float64(n)})

	if depth >= b.maxDepth || n < 2*b.minLeaf || b.err != nil {
		return idx
	}
	if err := b.ctx.Err(); err != nil {
		b.err = err
		return idx
	}

	best, ok := b.bestSplit(sorted, sum)
	if !ok {
		return idx
	}

	for _, r := range sorted[best.feature] {
		b.goLeft[r] = b.x[r][best.feature] <= best.threshold
	}
	left := make([][]int, len(sorted))
	right := make([][]int, len(sorted))
	for f, list := range sorted {
		l := make([]int, 0, n/2)
		rt := make([]int, 0, n/2)
		for _, r := range list {
			if b.goLeft[r] {
				l = append(l, r)
			} else {
				rt = append(rt, r)
			}
		}
		left[f], right[f] = l, rt
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[idx] = treeNode{Feature: best.feature, Threshold: best.threshold, Left: l, Right: r, Value: sum / float64(n)}
	return idx
}

// bestSplit maximizes sumL²/nL + sumR²/nR, which minimizes the children's squared error.
func (b *treeBuilder) bestSplit(sorted [][]int, total float64) (split, bool) {
	p := len(sorted)
	candidates := make([]int, p)
	for i := range candidates {
		candidates[i] = i
	}
	if b.k < p {
		b.rng.Shuffle(p, func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
		candidates = candidates[:b.k]
	}

	n := len(sorted[0])
	parent := total * total / float64(n)
	best := split{feature: -1, score: parent + 1e-9*max(1, parent)}

	for _, f := range candidates {
		list := sorted[f]
		var leftSum float64
		for i := 0; i < n-1; i++ {
			leftSum += b.y[list[i]]
			nl := i + 1
			nr := n - nl
			if nl < b.minLeaf {
				continue
			}
			if nr < b.minLeaf {
				break
			}
			a, c := b.x[list[i]][f], b.x[list[i+1]][f]
			if a >= c {
				continue
			}
			rightSum := total - leftSum
			score := leftSum*leftSum/float64(nl) + rightSum*rightSum/float64(nr)
			if score > best.score {
				threshold := a + (c-a)/2
				if threshold >= c {
					threshold = a
				}
				best = split{feature: f, threshold: threshold, score: score}
			}
		}
	}
	return best, best.feature >= 0
}
