package models

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/aouyang1/go-salinity/floatsunrolled"
	mat_ "github.com/aouyang1/go-salinity/mat"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultMaxDepth        = 6
	DefaultLearningRate    = 0.05
	DefaultNEstimators     = 300
	DefaultSubsample       = 1.0
	DefaultColsampleByTree = 1.0
	DefaultL2              = 1.0
	DefaultMinChildWeight  = 1.0
	DefaultSeed            = 42
	DefaultParallelization = 4

	// parallel split search only pays off above this many node rows
	minParallelRows = 512
)

var (
	ErrInvalidMaxDepth        = errors.New("max depth must be positive")
	ErrInvalidLearningRate    = errors.New("learning rate must be in (0, 1]")
	ErrInvalidNEstimators     = errors.New("number of estimators must be positive")
	ErrInvalidSubsample       = errors.New("subsample must be in (0, 1]")
	ErrInvalidColsample       = errors.New("column subsample must be in (0, 1]")
	ErrNegativeL2             = errors.New("negative l2 regularization")
	ErrNegativeMinChildWeight = errors.New("negative minimum child weight")
	ErrInvalidMaxBins         = errors.New("max bins must be between 2 and 65536")
)

// GBTOptions configures gradient boosted regression trees with a squared error objective
type GBTOptions struct {
	MaxDepth        int     `json:"max_depth"`
	LearningRate    float64 `json:"learning_rate"`
	NEstimators     int     `json:"n_estimators"`
	Subsample       float64 `json:"subsample"`
	ColsampleByTree float64 `json:"colsample_bytree"`

	// Lambda is the L2 penalty on leaf weights
	Lambda float64 `json:"lambda"`

	// MinChildWeight is the smallest hessian sum a child may hold, the row count under
	// squared error
	MinChildWeight float64 `json:"min_child_weight"`

	MaxBins int    `json:"max_bins"`
	Seed    uint64 `json:"seed"`

	// Parallelization sets how many features are scanned for splits concurrently
	Parallelization int `json:"-"`
}

// NewDefaultGBTOptions returns a default set of boosting options
func NewDefaultGBTOptions() *GBTOptions {
	return &GBTOptions{
		MaxDepth:        DefaultMaxDepth,
		LearningRate:    DefaultLearningRate,
		NEstimators:     DefaultNEstimators,
		Subsample:       DefaultSubsample,
		ColsampleByTree: DefaultColsampleByTree,
		Lambda:          DefaultL2,
		MinChildWeight:  DefaultMinChildWeight,
		MaxBins:         DefaultMaxBins,
		Seed:            DefaultSeed,
		Parallelization: DefaultParallelization,
	}
}

// Validate runs basic validation on boosting options
func (g *GBTOptions) Validate() (*GBTOptions, error) {
	if g == nil {
		return NewDefaultGBTOptions(), nil
	}
	if g.MaxDepth < 1 {
		return nil, ErrInvalidMaxDepth
	}
	if g.LearningRate <= 0 || g.LearningRate > 1 {
		return nil, ErrInvalidLearningRate
	}
	if g.NEstimators < 1 {
		return nil, ErrInvalidNEstimators
	}
	if g.Subsample <= 0 || g.Subsample > 1 {
		return nil, ErrInvalidSubsample
	}
	if g.ColsampleByTree <= 0 || g.ColsampleByTree > 1 {
		return nil, ErrInvalidColsample
	}
	if g.Lambda < 0 {
		return nil, ErrNegativeL2
	}
	if g.MinChildWeight < 0 {
		return nil, ErrNegativeMinChildWeight
	}
	opt := *g
	if opt.MaxBins == 0 {
		opt.MaxBins = DefaultMaxBins
	}
	if opt.MaxBins < 2 || opt.MaxBins > 65536 {
		return nil, ErrInvalidMaxBins
	}
	if opt.Parallelization < 1 {
		opt.Parallelization = 1
	}
	return &opt, nil
}

// GradientBoostedTrees fits an additive ensemble of depth limited regression trees, each tree
// fit to the residuals of the ensemble before it
type GradientBoostedTrees struct {
	opt *GBTOptions

	nFeatures int
	baseScore float64
	trees     []Tree
}

// NewGradientBoostedTrees initializes an unfitted ensemble
func NewGradientBoostedTrees(opt *GBTOptions) (*GradientBoostedTrees, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &GradientBoostedTrees{
		opt: opt,
	}, nil
}

// GBTModel is the serializable state of a fitted ensemble
type GBTModel struct {
	Options   *GBTOptions `json:"options"`
	NFeatures int         `json:"n_features"`
	BaseScore float64     `json:"base_score"`
	Trees     []Tree      `json:"trees"`
}

// NewGradientBoostedTreesFromModel restores a fitted ensemble
func NewGradientBoostedTreesFromModel(model GBTModel) (*GradientBoostedTrees, error) {
	g, err := NewGradientBoostedTrees(model.Options)
	if err != nil {
		return nil, err
	}
	g.nFeatures = model.NFeatures
	g.baseScore = model.BaseScore
	g.trees = model.Trees
	return g, nil
}

// Model returns the serializable state of the ensemble
func (g *GradientBoostedTrees) Model() GBTModel {
	opt := *g.opt
	return GBTModel{
		Options:   &opt,
		NFeatures: g.nFeatures,
		BaseScore: g.baseScore,
		Trees:     g.trees,
	}
}

// Options returns a copy of the boosting options
func (g *GradientBoostedTrees) Options() GBTOptions {
	return *g.opt
}

// NumTrees returns the number of fitted trees
func (g *GradientBoostedTrees) NumTrees() int {
	return len(g.trees)
}

// Fit the ensemble to the training data
func (g *GradientBoostedTrees) Fit(x, y mat.Matrix) error {
	if g.opt == nil {
		return ErrNoOptions
	}
	if x == nil {
		return ErrNoTrainingMatrix
	}
	if y == nil {
		return ErrNoTargetMatrix
	}
	m, n := x.Dims()
	if m == 0 {
		return ErrEmptyTrainingSet
	}
	ym, _ := y.Dims()
	if ym != m {
		return fmt.Errorf("training data has %d rows and target has %d row, %w", m, ym, ErrTargetLenMismatch)
	}

	cols := mat_.Columns(x)
	target := mat_.Vector(y)

	b := newBinner(cols, g.opt.MaxBins)
	binned := b.binColumns(cols)

	g.nFeatures = n
	g.baseScore = floats.Sum(target) / float64(m)
	g.trees = make([]Tree, 0, g.opt.NEstimators)

	rng := rand.New(rand.NewPCG(g.opt.Seed, g.opt.Seed))

	pred := make([]float64, m)
	for i := range pred {
		pred[i] = g.baseScore
	}
	grad := make([]float64, m)
	hess := make([]float64, m)
	for i := range hess {
		hess[i] = 1
	}
	row := make([]float64, n)
	delta := make([]float64, m)

	for round := 0; round < g.opt.NEstimators; round++ {
		floatsunrolled.SubTo(grad, pred, target)

		tb := &treeBuilder{
			opt:      g.opt,
			binner:   b,
			binned:   binned,
			grad:     grad,
			hess:     hess,
			features: sampleIndices(rng, n, g.opt.ColsampleByTree),
		}
		tree := tb.build(sampleIndices(rng, m, g.opt.Subsample))
		g.trees = append(g.trees, tree)

		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				row[j] = cols[j][i]
			}
			delta[i] = tree.predict(row)
		}
		floatsunrolled.Add(pred, delta)
	}
	slog.Debug("fit gradient boosted trees", "rows", m, "features", n, "trees", len(g.trees), "max_depth", g.opt.MaxDepth)
	return nil
}

// sampleIndices draws round(frac*n) indices without replacement, at least one, in ascending
// order. frac of 1 returns every index.
func sampleIndices(rng *rand.Rand, n int, frac float64) []int {
	if frac >= 1 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	k := max(1, int(frac*float64(n)+0.5))
	idx := rng.Perm(n)[:k]
	slices.Sort(idx)
	return idx
}

type treeBuilder struct {
	opt      *GBTOptions
	binner   *binner
	binned   [][]uint16
	grad     []float64
	hess     []float64
	features []int
	nodes    []Node
}

func (tb *treeBuilder) build(rows []int) Tree {
	tb.grow(rows, 0)
	return Tree{Nodes: tb.nodes}
}

// grow appends the subtree over rows and returns its root index
func (tb *treeBuilder) grow(rows []int, depth int) int {
	var total gradStat
	for _, r := range rows {
		total.g += tb.grad[r]
		total.h += tb.hess[r]
	}

	idx := len(tb.nodes)
	tb.nodes = append(tb.nodes, Node{
		Leaf:  true,
		Value: tb.opt.LearningRate * total.weight(tb.opt.Lambda),
	})
	if depth >= tb.opt.MaxDepth || len(rows) < 2 {
		return idx
	}

	best := tb.findSplit(rows, total)
	if !best.valid {
		return idx
	}

	bins := tb.binned[best.feature]
	var left, right []int
	for _, r := range rows {
		if int(bins[r]) <= best.bin {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	l := tb.grow(left, depth+1)
	r := tb.grow(right, depth+1)
	tb.nodes[idx] = Node{
		Feature:   best.feature,
		Threshold: tb.binner.thresholds[best.feature][best.bin],
		Left:      l,
		Right:     r,
	}
	return idx
}

// findSplit scans the sampled features for the highest gain split. Ties go to the lower
// feature index so concurrent scans stay deterministic.
func (tb *treeBuilder) findSplit(rows []int, total gradStat) split {
	results := make([]split, len(tb.features))
	scan := func(k int) {
		f := tb.features[k]
		results[k] = bestSplit(f, tb.binned[f], tb.binner.numBins(f), rows, tb.grad, tb.hess, total, tb.opt.Lambda, tb.opt.MinChildWeight)
	}

	if tb.opt.Parallelization <= 1 || len(rows) < minParallelRows {
		for k := range tb.features {
			scan(k)
		}
	} else {
		sem := make(chan struct{}, tb.opt.Parallelization)
		var wg sync.WaitGroup
		for k := range tb.features {
			sem <- struct{}{}
			wg.Add(1)
			go func(k int) {
				defer func() {
					wg.Done()
					<-sem
				}()
				scan(k)
			}(k)
		}
		wg.Wait()
	}

	var best split
	for _, s := range results {
		if s.valid && (!best.valid || s.gain > best.gain) {
			best = s
		}
	}
	return best
}

// Predict sums the base score and every tree output for each row
func (g *GradientBoostedTrees) Predict(x mat.Matrix) ([]float64, error) {
	if g.opt == nil {
		return nil, ErrNoOptions
	}
	if x == nil {
		return nil, ErrNoDesignMatrix
	}
	if g.trees == nil {
		return nil, ErrNotFitted
	}
	m, n := x.Dims()
	if n != g.nFeatures {
		return nil, fmt.Errorf("got %d features in design matrix, but expected %d, %w", n, g.nFeatures, ErrFeatureLenMismatch)
	}

	res := make([]float64, m)
	row := make([]float64, n)
	for i := 0; i < m; i++ {
		mat.Row(row, i, x)
		sum := g.baseScore
		for _, t := range g.trees {
			sum += t.predict(row)
		}
		res[i] = sum
	}
	return res, nil
}

// Score computes the coefficient of determination of the prediction
func (g *GradientBoostedTrees) Score(x, y mat.Matrix) (float64, error) {
	return score(g, x, y)
}
