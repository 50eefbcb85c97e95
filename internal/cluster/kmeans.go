// Package cluster groups embeddings with k-means so the scatterplot can be
// coloured by visual similarity instead of by author.
package cluster

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"

	"github.com/hupe1980/vecgo/distance"
)

// ErrDimensionMismatch is returned when input vectors differ in length.
var ErrDimensionMismatch = errors.New("vectors have different dimensions")

// KMeans assigns each vector to one of k clusters with Lloyd's algorithm
// after k-means++ seeding. k is capped at len(vectors). Cluster ids are
// 0-based and numbered in order of first appearance in the input, so the
// result does not depend on centroid order. The assignment is deterministic
// for a given seed.
func KMeans(ctx context.Context, vectors [][]float32, k int, seed int64, maxIter int) ([]int, error) {
	n := len(vectors)
	if n == 0 {
		return nil, nil
	}
	dim := len(vectors[0])
	for _, v := range vectors {
		if len(v) != dim {
			return nil, ErrDimensionMismatch
		}
	}
	k = max(1, min(k, n))

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0xda942042e4dd58b5))
	centroids := seedCentroids(vectors, k, rng)

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}
	counts := make([]int, k)
	sums := make([][]float64, k)
	for j := range sums {
		sums[j] = make([]float64, dim)
	}

	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		changed := false

		// Assignment step
		for i, vec := range vectors {
			best := nearestCentroid(vec, centroids)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		// Update step
		for j := range k {
			counts[j] = 0
			clear(sums[j])
		}
		for i, vec := range vectors {
			c := assignments[i]
			for d, x := range vec {
				sums[c][d] += float64(x)
			}
			counts[c]++
		}
		for j := range k {
			if counts[j] == 0 {
				// Re-seed an empty cluster with the point farthest from its centroid.
				copy(centroids[j], vectors[farthestPoint(vectors, assignments, centroids)])
				continue
			}
			scale := 1 / float64(counts[j])
			for d := range dim {
				centroids[j][d] = float32(sums[j][d] * scale)
			}
		}
	}

	return relabel(assignments), nil
}

// seedCentroids picks k initial centroids with k-means++: the first uniformly,
// each further one with probability proportional to its squared distance to
// the nearest centroid chosen so far.
func seedCentroids(vectors [][]float32, k int, rng *rand.Rand) [][]float32 {
	n := len(vectors)
	centroids := make([][]float32, 0, k)
	first := vectors[rng.IntN(n)]
	centroids = append(centroids, append([]float32(nil), first...))

	dist := make([]float64, n)
	for i, v := range vectors {
		dist[i] = float64(distance.SquaredL2(v, first))
	}

	for len(centroids) < k {
		var total float64
		for _, d := range dist {
			total += d
		}

		next := 0
		if total == 0 {
			// All remaining points coincide with a centroid.
			next = rng.IntN(n)
		} else {
			r := rng.Float64() * total
			for i, d := range dist {
				r -= d
				if r <= 0 {
					next = i
					break
				}
				next = i
			}
		}

		c := append([]float32(nil), vectors[next]...)
		centroids = append(centroids, c)
		for i, v := range vectors {
			dist[i] = math.Min(dist[i], float64(distance.SquaredL2(v, c)))
		}
	}
	return centroids
}

// nearestCentroid returns the index of the closest centroid; ties go to the
// lower index.
func nearestCentroid(vec []float32, centroids [][]float32) int {
	best := 0
	minDist := float32(math.MaxFloat32)
	for j, c := range centroids {
		if d := distance.SquaredL2(vec, c); d < minDist {
			minDist = d
			best = j
		}
	}
	return best
}

func farthestPoint(vectors [][]float32, assignments []int, centroids [][]float32) int {
	far, farDist := 0, float32(-1)
	for i, v := range vectors {
		if d := distance.SquaredL2(v, centroids[assignments[i]]); d > farDist {
			far, farDist = i, d
		}
	}
	return far
}

// relabel renumbers cluster ids in order of first appearance.
func relabel(assignments []int) []int {
	mapping := make(map[int]int)
	out := make([]int, len(assignments))
	for i, c := range assignments {
		id, ok := mapping[c]
		if !ok {
			id = len(mapping)
			mapping[c] = id
		}
		out[i] = id
	}
	return out
}
