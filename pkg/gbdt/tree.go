package gbdt

import (
	"math"
	"sort"
)

// Node is one node of a flat tree. Leaves have Left == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int32
	Right     int32
	Value     float64
}

// Tree is a regression tree stored as a flat node slice; Nodes[0] is the root.
type Tree struct {
	Nodes []Node
}

func (t *Tree) predict(x []float64) float64 {
	i := int32(0)
	for {
		n := &t.Nodes[i]
		if n.Left < 0 {
			return n.Value
		}
		// NaN compares false and follows the right branch.
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t *Tree) numLeaves() int {
	c := 0
	for _, n := range t.Nodes {
		if n.Left < 0 {
			c++
		}
	}
	return c
}

type histBin struct {
	g, h float64
	n    int
}

type candidate struct {
	feature int
	bin     int
	gain    float64
	leftG   float64
	leftH   float64
	leftN   int
}

type leafState struct {
	node int32
	rows []int
	g, h float64
	best candidate
}

// grower builds one tree on the binned data from the current gradients.
type grower struct {
	data    *binnedData
	p       Params
	grad    []float64
	hess    []float64
	workers int
}

func thresholdL1(g, l1 float64) float64 {
	a := math.Abs(g) - l1
	if a <= 0 {
		return 0
	}
	return math.Copysign(a, g)
}

func (gr *grower) score(g, h float64) float64 {
	t := thresholdL1(g, gr.p.LambdaL1)
	return t * t / (h + gr.p.LambdaL2)
}

func (gr *grower) output(g, h float64) float64 {
	return -thresholdL1(g, gr.p.LambdaL1) / (h + gr.p.LambdaL2)
}

// findSplit evaluates every feature histogram of the leaf and stores the best
// candidate in l.best. best.feature is -1 when nothing satisfies the constraints.
func (gr *grower) findSplit(l *leafState) {
	nf := len(gr.data.bins)
	perFeature := make([]candidate, nf)
	parent := gr.score(l.g, l.h)

	forEach(nf, gr.workers, func(f int) {
		perFeature[f] = candidate{feature: -1}
		nb := gr.data.mappers[f].numBins()
		if nb < 2 {
			return
		}
		hist := make([]histBin, nb)
		col := gr.data.bins[f]
		for _, r := range l.rows {
			b := &hist[col[r]]
			b.g += gr.grad[r]
			b.h += gr.hess[r]
			b.n++
		}

		var lg, lh float64
		ln := 0
		best := candidate{feature: -1, gain: math.Inf(-1)}
		for b := 0; b < nb-1; b++ {
			lg += hist[b].g
			lh += hist[b].h
			ln += hist[b].n
			rn := len(l.rows) - ln
			if ln < gr.p.MinChildSamples || lh < gr.p.MinSumHessian {
				continue
			}
			if rn < gr.p.MinChildSamples {
				break
			}
			rg, rh := l.g-lg, l.h-lh
			if rh < gr.p.MinSumHessian {
				continue
			}
			gain := gr.score(lg, lh) + gr.score(rg, rh) - parent
			if gain > best.gain {
				best = candidate{feature: f, bin: b, gain: gain, leftG: lg, leftH: lh, leftN: ln}
			}
		}
		perFeature[f] = best
	})

	l.best = candidate{feature: -1}
	for _, c := range perFeature {
		if c.feature < 0 || c.gain <= gr.p.MinSplitGain || c.gain <= 0 {
			continue
		}
		if l.best.feature < 0 || c.gain > l.best.gain {
			l.best = c
		}
	}
}

// grow builds a tree leaf-wise and returns it together with the final leaves,
// whose rows partition rows.
func (gr *grower) grow(rows []int, importance []float64) (*Tree, []*leafState) {
	t := &Tree{Nodes: []Node{{Left: -1, Right: -1}}}
	root := &leafState{node: 0, rows: rows}
	for _, r := range rows {
		root.g += gr.grad[r]
		root.h += gr.hess[r]
	}
	gr.findSplit(root)
	leaves := []*leafState{root}

	for len(leaves) < gr.p.NumLeaves {
		pick := -1
		for i, l := range leaves {
			if l.best.feature < 0 {
				continue
			}
			if pick < 0 || l.best.gain > leaves[pick].best.gain {
				pick = i
			}
		}
		if pick < 0 {
			break
		}
		l := leaves[pick]
		c := l.best
		col := gr.data.bins[c.feature]

		left := make([]int, 0, c.leftN)
		right := make([]int, 0, len(l.rows)-c.leftN)
		for _, r := range l.rows {
			if int(col[r]) <= c.bin {
				left = append(left, r)
			} else {
				right = append(right, r)
			}
		}

		li := int32(len(t.Nodes))
		t.Nodes = append(t.Nodes, Node{Left: -1, Right: -1}, Node{Left: -1, Right: -1})
		t.Nodes[l.node] = Node{
			Feature:   c.feature,
			Threshold: gr.data.mappers[c.feature].upper[c.bin],
			Left:      li,
			Right:     li + 1,
		}
		importance[c.feature] += c.gain

		ls := &leafState{node: li, rows: left, g: c.leftG, h: c.leftH}
		rs := &leafState{node: li + 1, rows: right, g: l.g - c.leftG, h: l.h - c.leftH}
		gr.findSplit(ls)
		gr.findSplit(rs)
		leaves[pick] = ls
		leaves = append(leaves, rs)
	}

	sort.Slice(leaves, func(a, b int) bool { return leaves[a].node < leaves[b].node })
	return t, leaves
}
