// Package elbow chooses a cluster count by knee detection on a score curve.
package elbow

import (
	"context"
	"math"
	"strconv"

	"github.com/rs/zerolog"

	"segweaver/internal/cluster"
	"segweaver/internal/core"
	"segweaver/internal/table"
)

// DefaultTolerance is the smallest normalised chord distance accepted as a
// knee.
const DefaultTolerance = 0.02

// Options configures SelectBestK.
type Options struct {
	Cluster cluster.Options
	// Tolerance is the minimum knee distance on the unit-square normalised
	// curve. Curves whose best point is no farther than this have no elbow.
	Tolerance float64
}

// DefaultOptions returns the default cluster options and DefaultTolerance.
func DefaultOptions() Options {
	return Options{Cluster: cluster.DefaultOptions(), Tolerance: DefaultTolerance}
}

// Point is one evaluated cluster count.
type Point struct {
	K     int
	Score float64
	// Distance is the signed, normalised distance from the chord on the
	// elbow side. It is zero for the two end points.
	Distance float64
}

// Result is the outcome of SelectBestK.
type Result struct {
	K      int
	Score  float64
	Metric cluster.Metric
	Curve  []Point
}

// SelectBestK fits algorithm for every k in ks, scores each fit with metric
// and returns the k at the knee of the resulting curve.
//
// ks must hold at least three strictly ascending values, starting no lower
// than metric.MinK() and ending no higher than the number of rows.
//
// The curve is normalised to the unit square and every interior point is
// measured against the chord joining the first and last points. The knee is
// the point farthest from the chord on the side where improvement flattens:
// below it for lower-is-better metrics, above it for higher-is-better ones.
// Ties resolve to the smallest k. When no point is farther than
// opts.Tolerance, or the curve is flat, SelectBestK fails with
// core.ErrNoElbowFound and returns the evaluated curve alongside the error.
func SelectBestK(ctx context.Context, x [][]float64, algorithm cluster.Algorithm, metric cluster.Metric, ks []int, opts Options) (*Result, error) {
	const op = "select_best_k"
	if err := algorithm.Validate(); err != nil {
		return nil, err
	}
	if _, err := cluster.ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	if err := validateRange(ks, metric.MinK(), len(x)); err != nil {
		return nil, err
	}
	if opts.Tolerance < 0 {
		return nil, core.Errorf(core.ErrInvalidParameter, op, "tolerance=%g must be >= 0", opts.Tolerance)
	}

	logger := zerolog.Ctx(ctx)
	res := &Result{Metric: metric, Curve: make([]Point, len(ks))}
	for i, k := range ks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := cluster.Fit(x, algorithm, k, opts.Cluster)
		if err != nil {
			return nil, err
		}
		score, err := metric.Score(x, m.Labels, k)
		if err != nil {
			return nil, err
		}
		logger.Debug().Str("algorithm", string(algorithm)).Str("metric", string(metric)).
			Int("k", k).Float64("score", score).Msg("scored candidate")
		res.Curve[i] = Point{K: k, Score: score}
	}

	best, ok := knee(res.Curve, metric.HigherIsBetter(), opts.Tolerance)
	if !ok {
		return res, core.Errorf(core.ErrNoElbowFound, op, "%s curve over k=%d..%d has no knee above tolerance %g", metric, ks[0], ks[len(ks)-1], opts.Tolerance)
	}
	res.K, res.Score = res.Curve[best].K, res.Curve[best].Score
	return res, nil
}

func validateRange(ks []int, minK, rows int) error {
	const op = "k_range"
	if len(ks) < 3 {
		return core.Errorf(core.ErrInvalidParameter, op, "need at least 3 values, got %v", ks)
	}
	if ks[0] < minK {
		return core.Errorf(core.ErrInvalidParameter, op, "k=%d below minimum %d", ks[0], minK)
	}
	for i := 1; i < len(ks); i++ {
		if ks[i] <= ks[i-1] {
			return core.Errorf(core.ErrInvalidParameter, op, "values must be strictly ascending, got %v", ks)
		}
	}
	if last := ks[len(ks)-1]; last > rows {
		return core.Errorf(core.ErrInvalidParameter, op, "k=%d exceeds %d rows", last, rows)
	}
	return nil
}

// knee fills in Point.Distance and returns the index of the knee.
func knee(curve []Point, higherIsBetter bool, tolerance float64) (int, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range curve {
		lo, hi = math.Min(lo, p.Score), math.Max(hi, p.Score)
	}
	if !(hi > lo) {
		return 0, false
	}
	first, last := curve[0], curve[len(curve)-1]
	xspan := float64(last.K - first.K)
	y0 := (first.Score - lo) / (hi - lo)
	y1 := (last.Score - lo) / (hi - lo)
	slope := y1 - y0
	norm := math.Sqrt(1 + slope*slope)

	best, bestD := -1, math.Inf(-1)
	for i := 1; i < len(curve)-1; i++ {
		xn := float64(curve[i].K-first.K) / xspan
		yn := (curve[i].Score - lo) / (hi - lo)
		d := (y0 + slope*xn - yn) / norm
		if higherIsBetter {
			d = -d
		}
		curve[i].Distance = d
		if d > bestD {
			best, bestD = i, d
		}
	}
	if bestD <= tolerance {
		return 0, false
	}
	return best, true
}

// Frame metadata keys written by CurveFrame.
const (
	MetaBestK     = "k_best"
	MetaBestScore = "score_best"
	MetaMetric    = "metric"
)

// CurveFrame encodes r as columns k, score, distance with the selection in
// metadata.
func CurveFrame(r *Result) (*table.Frame, error) {
	ks := make([]float64, len(r.Curve))
	scores := make([]float64, len(r.Curve))
	dists := make([]float64, len(r.Curve))
	for i, p := range r.Curve {
		ks[i], scores[i], dists[i] = float64(p.K), p.Score, p.Distance
	}
	f, err := table.New(
		table.NumericColumn("k", ks),
		table.NumericColumn("score", scores),
		table.NumericColumn("distance", dists),
	)
	if err != nil {
		return nil, err
	}
	return f.WithMeta(MetaBestK, strconv.Itoa(r.K)).
		WithMeta(MetaBestScore, strconv.FormatFloat(r.Score, 'g', -1, 64)).
		WithMeta(MetaMetric, string(r.Metric)), nil
}

// FromCurveFrame decodes a frame written by CurveFrame.
func FromCurveFrame(f *table.Frame) (*Result, error) {
	const op = "curve"
	k, err := strconv.Atoi(f.Meta[MetaBestK])
	if err != nil {
		return nil, core.Errorf(core.ErrShapeMismatch, op, "k_best=%q: %v", f.Meta[MetaBestK], err)
	}
	score, err := strconv.ParseFloat(f.Meta[MetaBestScore], 64)
	if err != nil {
		return nil, core.Errorf(core.ErrShapeMismatch, op, "score_best=%q: %v", f.Meta[MetaBestScore], err)
	}
	rows, err := f.Matrix("k", "score", "distance")
	if err != nil {
		return nil, err
	}
	r := &Result{K: k, Score: score, Metric: cluster.Metric(f.Meta[MetaMetric]), Curve: make([]Point, len(rows))}
	for i, row := range rows {
		r.Curve[i] = Point{K: int(row[0]), Score: row[1], Distance: row[2]}
	}
	return r, nil
}
