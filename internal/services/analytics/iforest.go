package analytics

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"FinScan/internal/domain/models"
	domsvc "FinScan/internal/domain/service"
	"FinScan/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const eulerGamma = 0.5772156649015329

// IsolationForest is an ensemble of random isolation trees. Rows that
// isolate in fewer splits score closer to 1.
type IsolationForest struct {
	trees      int
	sampleSize int
	workers    int
	log        *logger.Logger
}

type ForestOption func(*IsolationForest)

func WithTrees(n int) ForestOption {
	return func(f *IsolationForest) {
		if n > 0 {
			f.trees = n
		}
	}
}

func WithSampleSize(n int) ForestOption {
	return func(f *IsolationForest) {
		if n > 1 {
			f.sampleSize = n
		}
	}
}

// WithWorkers bounds how many trees are grown concurrently.
func WithWorkers(n int) ForestOption {
	return func(f *IsolationForest) {
		if n > 0 {
			f.workers = n
		}
	}
}

func WithForestLogger(l *logger.Logger) ForestOption {
	return func(f *IsolationForest) { f.log = l }
}

func NewIsolationForest(opts ...ForestOption) *IsolationForest {
	f := &IsolationForest{trees: 100, sampleSize: 256, workers: 4, log: logger.Nop()}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *IsolationForest) Name() string { return "iforest" }

func (f *IsolationForest) Describe() string {
	return fmt.Sprintf("iforest trees=%d sample_size=%d", f.trees, f.sampleSize)
}

// Score fits a fresh forest on matrix and labels every row.
func (f *IsolationForest) Score(ctx context.Context, matrix [][]float64, p domsvc.ScoreParams) ([]models.Label, error) {
	if err := validateParams(p); err != nil {
		return nil, err
	}
	if len(matrix) < 2 {
		return make([]models.Label, len(matrix)), nil
	}
	scores, err := f.Scores(ctx, matrix, p.Seed)
	if err != nil {
		return nil, err
	}
	return labelByContamination(scores, p.Contamination), nil
}

// Scores fits the forest and returns the anomaly score of every row in (0,1].
func (f *IsolationForest) Scores(ctx context.Context, matrix [][]float64, seed int64) ([]float64, error) {
	start := time.Now()
	n := len(matrix)
	psi := f.sampleSize
	if psi > n {
		psi = n
	}
	limit := int(math.Ceil(math.Log2(float64(psi))))

	// per-tree seeds are drawn from one master stream
	master := rand.New(rand.NewSource(seed))
	seeds := make([]int64, f.trees)
	for t := range seeds {
		seeds[t] = master.Int63()
	}

	trees := make([]*isoNode, f.trees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for t := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seeds[t]))
			idx := rng.Perm(n)[:psi]
			trees[t] = grow(matrix, idx, 0, limit, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	norm := averagePathLength(psi)
	scores := make([]float64, n)
	for i, row := range matrix {
		var sum float64
		for _, tree := range trees {
			sum += tree.pathLength(row, 0)
		}
		scores[i] = math.Pow(2, -(sum/float64(len(trees)))/norm)
	}

	f.log.Debug("isolation forest fitted",
		logger.Int("rows", n),
		logger.Int("trees", len(trees)),
		logger.Int("sample_size", psi),
		logger.Duration("took", time.Since(start)),
	)
	return scores, nil
}

type isoNode struct {
	feature     int
	split       float64
	left, right *isoNode
	size        int // rows reaching a leaf
}

func (n *isoNode) leaf() bool { return n.left == nil }

func (n *isoNode) pathLength(row []float64, depth int) float64 {
	if n.leaf() {
		return float64(depth) + averagePathLength(n.size)
	}
	if row[n.feature] < n.split {
		return n.left.pathLength(row, depth+1)
	}
	return n.right.pathLength(row, depth+1)
}

func grow(matrix [][]float64, idx []int, depth, limit int, rng *rand.Rand) *isoNode {
	if depth >= limit || len(idx) <= 1 {
		return &isoNode{size: len(idx)}
	}

	// only features with spread can split
	cols := len(matrix[idx[0]])
	var candidates []int
	lo := make([]float64, cols)
	hi := make([]float64, cols)
	for j := 0; j < cols; j++ {
		lo[j], hi[j] = math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			v := matrix[i][j]
			lo[j] = math.Min(lo[j], v)
			hi[j] = math.Max(hi[j], v)
		}
		if hi[j] > lo[j] {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return &isoNode{size: len(idx)}
	}

	feature := candidates[rng.Intn(len(candidates))]
	split := lo[feature] + rng.Float64()*(hi[feature]-lo[feature])

	var left, right []int
	for _, i := range idx {
		if matrix[i][feature] < split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &isoNode{
		feature: feature,
		split:   split,
		left:    grow(matrix, left, depth+1, limit, rng),
		right:   grow(matrix, right, depth+1, limit, rng),
	}
}

// averagePathLength is c(n), the mean path length of an unsuccessful search
// in a binary search tree of n nodes.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		fn := float64(n)
		return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
	}
}

var _ domsvc.Scorer = (*IsolationForest)(nil)
