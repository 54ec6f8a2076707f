package surrogate

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/copyleftdev/optilab/internal/optimization"
)

// KNN predicts the inverse-distance weighted mean of the values of the k
// nearest training points. When some of those neighbors coincide with the
// query, the prediction is the plain mean of their values.
type KNN struct {
	k      int
	data   trainingSet
	calls  int
	logger *zap.Logger
}

// NewKNN creates an untrained KNN surrogate using k neighbors.
func NewKNN(k int, opts ...Option) (*KNN, error) {
	if k < 1 {
		return nil, invalid("knn", "number of neighbors must be positive, got %d", k)
	}
	o := buildOptions("knn", opts)
	return &KNN{k: k, logger: o.logger}, nil
}

// Name returns KNN<k>.
func (s *KNN) Name() string { return fmt.Sprintf("KNN%d", s.k) }

// Ready reports whether Train succeeded at least once.
func (s *KNN) Ready() bool { return s.data.xs != nil }

// Calls returns the number of successful predictions.
func (s *KNN) Calls() int { return s.calls }

// MinTrainSize returns k.
func (s *KNN) MinTrainSize(int) int { return s.k }

// Hyperparameters returns the neighbor count.
func (s *KNN) Hyperparameters() map[string]any {
	return map[string]any{"num_neighbors": s.k}
}

// Train stores the training set. At least k points are required.
func (s *KNN) Train(train optimization.PointList) error {
	data, err := newTrainingSet("knn", train, s.k)
	if err != nil {
		return err
	}
	s.data = data
	s.logger.Debug("trained", zap.Int("points", len(data.xs)), zap.Int("dim", data.dim))
	return nil
}

// Predict estimates the value at p.
func (s *KNN) Predict(p optimization.Point) (optimization.Point, error) {
	if err := s.data.checkQuery("knn", p); err != nil {
		return optimization.Point{}, err
	}

	neighbors := nearest(s.data.xs, p.X, s.k, euclidean)

	var y float64
	if neighbors[0].dist == 0 {
		sum, n := 0.0, 0
		for _, nb := range neighbors {
			if nb.dist != 0 {
				break
			}
			sum += s.data.ys[nb.index]
			n++
		}
		y = sum / float64(n)
	} else {
		num, den := 0.0, 0.0
		for _, nb := range neighbors {
			w := 1 / nb.dist
			num += w * s.data.ys[nb.index]
			den += w
		}
		y = num / den
	}

	s.calls++
	return estimate(p, y), nil
}

type neighbor struct {
	index int
	dist  float64
}

// nearest returns the k training points closest to x, ordered by distance.
// Ties keep training order.
func nearest(xs [][]float64, x []float64, k int, dist func(a, b []float64) float64) []neighbor {
	all := make([]neighbor, len(xs))
	for i, xi := range xs {
		all[i] = neighbor{index: i, dist: dist(xi, x)}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].dist < all[j].dist })
	return all[:min(k, len(all))]
}

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
