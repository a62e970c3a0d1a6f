// Package metric provides the distance kernels used by the vector index.
package metric

import "github.com/viant/vec/search"

// DistanceFunction enumerates the supported distance metrics.
type DistanceFunction string

const (
	DistanceFunctionCosine    DistanceFunction = "cosine"
	DistanceFunctionEuclidean DistanceFunction = "euclidean"
)

// DistanceFunc computes the distance between two vectors. Precomputed
// magnitudes are passed alongside so callers that cache norms avoid
// recomputing them; metrics that have no use for magnitudes ignore them.
type DistanceFunc func(a, b []float32, ma, mb float32) float32

// Function resolves the callable distance implementation, or nil for an
// unknown metric.
func (d DistanceFunction) Function() DistanceFunc {
	switch d {
	case DistanceFunctionCosine:
		return CosineDistance
	case DistanceFunctionEuclidean:
		return EuclideanDistance
	default:
		return nil
	}
}

// Magnitude returns the Euclidean norm of v.
func Magnitude(v []float32) float32 {
	return search.Float32s(v).Magnitude()
}

// CosineDistance returns the cosine distance (1 - cosine similarity).
// A magnitude of zero is treated as "not cached" and recomputed; if a side
// is genuinely a zero vector the similarity is undefined and the maximum
// distance of 1 is returned instead of dividing by zero.
func CosineDistance(a, b []float32, ma, mb float32) float32 {
	if ma == 0 {
		ma = Magnitude(a)
	}
	if mb == 0 {
		mb = Magnitude(b)
	}
	if ma == 0 || mb == 0 {
		return 1
	}
	// On non-arm64 builds the library exports this kernel only under the
	// Neon-suffixed name; the arm64 build spells it CosineDistanceWithMagnitude.
	return search.Float32s(a).CosineDistanceWithMagnitudesNeon(b, ma, mb)
}

// EuclideanDistance returns the L2 distance between a and b.
func EuclideanDistance(a, b []float32, _, _ float32) float32 {
	return search.Float32s(a).EuclideanDistance(b)
}
