// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Similarity constants
const (
	// DefaultNeighbors is the number of nearest images returned for a query,
	// the query image itself included
	DefaultNeighbors = 6

	// MaxNeighbors caps the k a client may request
	MaxNeighbors = 100
)

// Indexing constants
const (
	// DefaultSamplesPerLabel is the number of images drawn per author
	DefaultSamplesPerLabel = 28

	// DefaultSeed seeds sampling, projection and clustering
	DefaultSeed = 42

	// DefaultPerplexity is the upper bound for the t-SNE perplexity; the
	// effective value is min(DefaultPerplexity, n-1)
	DefaultPerplexity = 30

	// TSNEIterations is the number of gradient descent steps of the projection
	TSNEIterations = 1000

	// KMeansIterations bounds Lloyd's algorithm when assigning cluster ids
	KMeansIterations = 100
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel extraction workers
	WorkerPoolSize = 1

	// MaxImageSize is the maximum dimension (width or height) for images sent
	// to the embedding server
	MaxImageSize = 1920
)

// ImageExtensions lists the lowercase file extensions the scanner accepts.
var ImageExtensions = []string{".png", ".jpg", ".jpeg"}
