package index

import "math"

// Entry is one non-zero coordinate of a sparse vector.
type Entry struct {
	Dim    int
	Weight float64
}

// Vector is a sparse vector whose entries are sorted by ascending Dim with
// no duplicates.
type Vector []Entry

// Norm returns the Euclidean length of v.
func (v Vector) Norm() float64 {
	sum := 0.0
	for _, e := range v {
		sum += e.Weight * e.Weight
	}
	return math.Sqrt(sum)
}

// Normalize scales v in place to unit length. A zero vector is left as is.
func (v Vector) Normalize() Vector {
	norm := v.Norm()
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i].Weight /= norm
	}
	return v
}

// Dot returns the inner product of two sorted sparse vectors.
func Dot(a, b Vector) float64 {
	sum := 0.0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Dim < b[j].Dim:
			i++
		case a[i].Dim > b[j].Dim:
			j++
		default:
			sum += a[i].Weight * b[j].Weight
			i++
			j++
		}
	}
	return sum
}
