// Package projection maps high-dimensional embeddings to 2D coordinates with
// exact t-SNE.
package projection

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"

	"github.com/hupe1980/vecgo/distance"

	"github.com/kozaktomas/artmap/internal/constants"
)

// Point is a projected coordinate.
type Point struct {
	X float64
	Y float64
}

// Options controls the optimisation. Zero values select the defaults.
type Options struct {
	Perplexity        float64 // upper bound, the effective value is min(Perplexity, n-1)
	Iterations        int
	LearningRate      float64 // 0 selects max(n/early_exaggeration/4, 50)
	EarlyExaggeration float64
	ExaggerationIters int
	Seed              int64
}

func DefaultOptions(seed int64) Options {
	return Options{
		Perplexity:        constants.DefaultPerplexity,
		Iterations:        constants.TSNEIterations,
		EarlyExaggeration: 12,
		ExaggerationIters: 250,
		Seed:              seed,
	}
}

// ErrDimensionMismatch is returned when input vectors differ in length.
var ErrDimensionMismatch = errors.New("vectors have different dimensions")

const (
	minProbability  = 1e-12
	minGain         = 0.01
	perplexityTol   = 1e-5
	perplexitySteps = 100
)

// EffectivePerplexity returns min(maxPerplexity, n-1), or 0 when fewer than
// two points exist.
func EffectivePerplexity(maxPerplexity float64, n int) float64 {
	if n < 2 {
		return 0
	}
	return math.Min(maxPerplexity, float64(n-1))
}

// TSNE embeds data into two dimensions. Fewer than two points, or a
// non-positive effective perplexity, produce all-zero coordinates. The result
// is a deterministic function of data and opts.Seed.
func TSNE(ctx context.Context, data [][]float32, opts Options) ([]Point, error) {
	n := len(data)
	out := make([]Point, n)
	if n == 0 {
		return out, nil
	}
	dim := len(data[0])
	for _, v := range data {
		if len(v) != dim {
			return nil, ErrDimensionMismatch
		}
	}

	opts = withDefaults(opts)
	perplexity := EffectivePerplexity(opts.Perplexity, n)
	if perplexity <= 0 {
		return out, nil
	}

	p := jointProbabilities(pairwiseSquared(data), perplexity)
	y, err := optimize(ctx, p, n, opts)
	if err != nil {
		return nil, err
	}
	for i := range n {
		out[i] = Point{X: y[2*i], Y: y[2*i+1]}
	}
	return out, nil
}

func withDefaults(opts Options) Options {
	def := DefaultOptions(opts.Seed)
	if opts.Perplexity <= 0 {
		opts.Perplexity = def.Perplexity
	}
	if opts.Iterations <= 0 {
		opts.Iterations = def.Iterations
	}
	if opts.EarlyExaggeration <= 0 {
		opts.EarlyExaggeration = def.EarlyExaggeration
	}
	if opts.ExaggerationIters <= 0 {
		opts.ExaggerationIters = def.ExaggerationIters
	}
	return opts
}

// pairwiseSquared returns the n x n matrix of squared Euclidean distances,
// row-major.
func pairwiseSquared(data [][]float32) []float64 {
	n := len(data)
	d := make([]float64, n*n)
	for i := range n {
		for j := i + 1; j < n; j++ {
			v := float64(distance.SquaredL2(data[i], data[j]))
			d[i*n+j] = v
			d[j*n+i] = v
		}
	}
	return d
}

// jointProbabilities computes the symmetric affinity matrix P. Each row's
// Gaussian bandwidth is found by binary search so that its entropy matches
// log(perplexity).
func jointProbabilities(d []float64, perplexity float64) []float64 {
	n := int(math.Sqrt(float64(len(d))))
	target := math.Log(perplexity)
	cond := make([]float64, n*n)
	row := make([]float64, n)

	for i := range n {
		beta := 1.0
		betaMin, betaMax := math.Inf(-1), math.Inf(1)
		for range perplexitySteps {
			var sum, dotSum float64
			for j := range n {
				if j == i {
					row[j] = 0
					continue
				}
				row[j] = math.Exp(-d[i*n+j] * beta)
				sum += row[j]
				dotSum += d[i*n+j] * row[j]
			}
			if sum == 0 {
				sum = minProbability
			}
			entropy := math.Log(sum) + beta*dotSum/sum
			for j := range n {
				row[j] /= sum
			}

			diff := entropy - target
			if math.Abs(diff) < perplexityTol {
				break
			}
			if diff > 0 {
				betaMin = beta
				if math.IsInf(betaMax, 1) {
					beta *= 2
				} else {
					beta = (beta + betaMax) / 2
				}
			} else {
				betaMax = beta
				if math.IsInf(betaMin, -1) {
					beta /= 2
				} else {
					beta = (beta + betaMin) / 2
				}
			}
		}
		copy(cond[i*n:(i+1)*n], row)
	}

	p := make([]float64, n*n)
	scale := 1 / (2 * float64(n))
	for i := range n {
		for j := range n {
			if i == j {
				continue
			}
			p[i*n+j] = math.Max((cond[i*n+j]+cond[j*n+i])*scale, minProbability)
		}
	}
	return p
}

// optimize runs gradient descent with momentum and per-parameter gains on the
// Kullback-Leibler divergence between P and the Student-t affinities of Y.
func optimize(ctx context.Context, p []float64, n int, opts Options) ([]float64, error) {
	rng := rand.New(rand.NewPCG(uint64(opts.Seed), uint64(opts.Seed)^0x5851f42d4c957f2d))
	y := make([]float64, 2*n)
	for i := range y {
		y[i] = rng.NormFloat64() * 1e-4
	}

	lr := opts.LearningRate
	if lr <= 0 {
		lr = math.Max(float64(n)/opts.EarlyExaggeration/4, 50)
	}

	update := make([]float64, 2*n)
	gains := make([]float64, 2*n)
	for i := range gains {
		gains[i] = 1
	}
	num := make([]float64, n*n)
	grad := make([]float64, 2*n)

	for iter := range opts.Iterations {
		if iter%50 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		exaggeration, momentum := 1.0, 0.8
		if iter < opts.ExaggerationIters {
			exaggeration, momentum = opts.EarlyExaggeration, 0.5
		}

		var sumNum float64
		for i := range n {
			for j := i + 1; j < n; j++ {
				dx := y[2*i] - y[2*j]
				dy := y[2*i+1] - y[2*j+1]
				v := 1 / (1 + dx*dx + dy*dy)
				num[i*n+j] = v
				num[j*n+i] = v
				sumNum += 2 * v
			}
		}
		if sumNum == 0 {
			sumNum = minProbability
		}

		for i := range n {
			var gx, gy float64
			for j := range n {
				if i == j {
					continue
				}
				q := math.Max(num[i*n+j]/sumNum, minProbability)
				mult := (exaggeration*p[i*n+j] - q) * num[i*n+j]
				gx += mult * (y[2*i] - y[2*j])
				gy += mult * (y[2*i+1] - y[2*j+1])
			}
			grad[2*i] = 4 * gx
			grad[2*i+1] = 4 * gy
		}

		for k := range y {
			if (grad[k] > 0) != (update[k] > 0) {
				gains[k] += 0.2
			} else {
				gains[k] *= 0.8
			}
			gains[k] = math.Max(gains[k], minGain)
			update[k] = momentum*update[k] - lr*gains[k]*grad[k]
			y[k] += update[k]
		}

		var mx, my float64
		for i := range n {
			mx += y[2*i]
			my += y[2*i+1]
		}
		mx /= float64(n)
		my /= float64(n)
		for i := range n {
			y[2*i] -= mx
			y[2*i+1] -= my
		}
	}
	return y, nil
}
