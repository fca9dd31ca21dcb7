// Package faceindex stores face embeddings in an approximate
// nearest-neighbor index and resolves embeddings to registered identities.
package faceindex

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// Dimension is the fixed face embedding dimension (buffalo_l/ResNet100).
const Dimension = 512

const hnswMaxNeighbors = 16

var (
	// ErrEmptyIndex is returned by Search when no vectors have been added.
	ErrEmptyIndex = errors.New("face index is empty")
	// ErrDimensionMismatch is returned when a vector does not have Dimension elements.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Candidate is a single nearest-neighbor search result.
type Candidate struct {
	IdentityID string
	Ordinal    int
	Distance   float64 // squared L2 against the raw query vector
}

// Index wraps an HNSW graph over face embeddings. Graph keys are insertion
// ordinals; a parallel id list maps each ordinal back to the identity that
// registered the vector. The same identity may appear more than once, which
// improves recall on re-registration.
type Index struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[int]
	ids   []string
	path  string // snapshot path, empty for in-memory only
}

// New creates a face index, loading a prior snapshot from path when one
// exists. An empty path keeps the index in memory only.
func New(path string) (*Index, error) {
	idx := &Index{
		graph: newGraph(),
		path:  path,
	}
	if path == "" {
		return idx, nil
	}
	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

func newGraph() *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance
	return g
}

// idsPath returns the identity list artifact stored alongside the graph.
func (idx *Index) idsPath() string {
	return idx.path + ".ids"
}

func (idx *Index) load() error {
	if _, err := os.Stat(idx.path); os.IsNotExist(err) {
		return nil // no snapshot yet, start empty
	}

	f, err := os.Open(idx.path)
	if err != nil {
		return fmt.Errorf("opening face index snapshot: %w", err)
	}
	defer f.Close()

	if err := idx.graph.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("importing face index graph: %w", err)
	}

	data, err := os.ReadFile(idx.idsPath())
	if err != nil {
		return fmt.Errorf("reading face id list: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("parsing face id list: %w", err)
	}
	if len(ids) != idx.graph.Len() {
		return fmt.Errorf("face index snapshot corrupt: %d ids for %d vectors", len(ids), idx.graph.Len())
	}
	idx.ids = ids
	return nil
}

// Add appends vectors and their parallel identity ids, then writes a
// snapshot. The in-memory index stays authoritative when the snapshot
// write fails; the error is logged and the next mutation retries.
func (idx *Index) Add(vectors [][]float32, ids []string) error {
	if len(vectors) != len(ids) {
		return fmt.Errorf("%d vectors for %d ids: %w", len(vectors), len(ids), ErrDimensionMismatch)
	}
	for _, v := range vectors {
		if len(v) != Dimension {
			return fmt.Errorf("got %d, want %d: %w", len(v), Dimension, ErrDimensionMismatch)
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i, v := range vectors {
		ordinal := len(idx.ids)
		idx.graph.Add(hnsw.MakeNode(ordinal, v))
		idx.ids = append(idx.ids, ids[i])
	}

	if err := idx.saveLocked(); err != nil {
		log.Printf("face index snapshot failed (in-memory index still valid): %v", err)
	}
	return nil
}

// Search returns up to k nearest entries ordered by ascending squared L2
// distance. Returns ErrEmptyIndex when nothing has been added yet.
func (idx *Index) Search(query []float32, k int) ([]Candidate, error) {
	if len(query) != Dimension {
		return nil, fmt.Errorf("got %d, want %d: %w", len(query), Dimension, ErrDimensionMismatch)
	}
	if k <= 0 {
		return nil, fmt.Errorf("invalid k %d", k)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.ids) == 0 {
		return nil, ErrEmptyIndex
	}

	neighbors := idx.graph.Search(query, k)
	candidates := make([]Candidate, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Key < 0 || n.Key >= len(idx.ids) {
			continue
		}
		candidates = append(candidates, Candidate{
			IdentityID: idx.ids[n.Key],
			Ordinal:    n.Key,
			// Recompute squared L2 from the node vector so reported
			// distances match the FAISS-style threshold scale.
			Distance: SquaredL2(query, n.Value),
		})
	}
	return candidates, nil
}

// Count returns the number of stored vectors.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.ids)
}

// Save writes the current snapshot to disk. Called on shutdown; Add also
// snapshots after every mutation.
func (idx *Index) Save() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.saveLocked()
}

func (idx *Index) saveLocked() error {
	if idx.path == "" {
		return nil // in-memory only
	}

	if err := os.MkdirAll(filepath.Dir(idx.path), 0o750); err != nil {
		return fmt.Errorf("creating face index directory: %w", err)
	}

	f, err := os.Create(idx.path)
	if err != nil {
		return fmt.Errorf("creating face index snapshot: %w", err)
	}
	if err := idx.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("exporting face index graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing face index snapshot: %w", err)
	}

	data, err := json.Marshal(idx.ids)
	if err != nil {
		return fmt.Errorf("encoding face id list: %w", err)
	}
	if err := os.WriteFile(idx.idsPath(), data, 0o600); err != nil {
		return fmt.Errorf("writing face id list: %w", err)
	}
	return nil
}

// SquaredL2 computes the squared Euclidean distance between two vectors.
func SquaredL2(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
