package faceindex

// Resolver turns a raw face embedding into an optional identity by querying
// the index for the k nearest neighbors and applying a distance cutoff.
type Resolver struct {
	index *Index
	k     int
}

// NewResolver creates a resolver over the given index. Each query fetches
// the k nearest candidates and keeps the best one within the cutoff; k
// below 1 is treated as 1.
func NewResolver(index *Index, k int) *Resolver {
	if k < 1 {
		k = 1
	}
	return &Resolver{index: index, k: k}
}

// Resolve returns the identity of the nearest registered face when its
// squared L2 distance is within threshold. An empty index or a distance
// above the cutoff is a valid "unknown" outcome, not an error.
func (r *Resolver) Resolve(embedding []float32, threshold float64) (string, bool) {
	candidates, err := r.index.Search(embedding, r.k)
	if err != nil {
		// Malformed embeddings and an empty index both degrade to
		// unknown; the caller treats every frame-level failure the
		// same way.
		return "", false
	}
	if len(candidates) == 0 {
		return "", false
	}

	// Candidates come back ordered by ascending distance, so the first
	// one decides.
	best := candidates[0]
	if best.Distance > threshold {
		return "", false
	}
	return best.IdentityID, true
}
