package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// HNSWIndexMetadata is written next to an exported index.
type HNSWIndexMetadata struct {
	IdentityCount int       `json:"identity_count"`
	BuildTime     time.Time `json:"build_time"`
	Version       int       `json:"version"` // For future compatibility
}

const hnswMetadataVersion = 1

// SimilarIdentity is a neighbour found in the signature index.
type SimilarIdentity struct {
	IdentityID  string  `json:"identity_id"`
	Correlation float64 `json:"correlation"`
}

// SignatureIndex is an in-memory HNSW graph over mean-centered face signatures.
// Cosine similarity of centered signatures equals their correlation, so the
// nearest neighbours are the most correlated identities.
type SignatureIndex struct {
	graph   *hnsw.Graph[string]
	vectors map[string][]float32 // centered signature per identity
	dirty   bool                 // graph holds replaced or removed vectors and must be rebuilt
	mu      sync.RWMutex
}

// NewSignatureIndex creates an empty index.
func NewSignatureIndex() *SignatureIndex {
	return &SignatureIndex{
		vectors: make(map[string][]float32),
	}
}

func newSignatureGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// Build replaces the index contents with the cached signatures of identities.
// Identities without a signature are left out.
func (x *SignatureIndex) Build(identities []StoredIdentity) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.vectors = make(map[string][]float32, len(identities))
	for _, id := range identities {
		if v := centered(id.Signature); v != nil {
			x.vectors[id.ID] = v
		}
	}
	x.rebuildLocked()
}

// rebuildLocked adds vectors in sorted key order so builds are reproducible.
func (x *SignatureIndex) rebuildLocked() {
	x.dirty = false
	if len(x.vectors) == 0 {
		x.graph = nil
		return
	}

	keys := make([]string, 0, len(x.vectors))
	for k := range x.vectors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	g := newSignatureGraph()
	for _, k := range keys {
		g.Add(hnsw.MakeNode(k, x.vectors[k]))
	}
	x.graph = g
}

// Upsert adds or replaces the signature of an identity.
func (x *SignatureIndex) Upsert(id string, signature []float32) {
	x.mu.Lock()
	defer x.mu.Unlock()

	v := centered(signature)
	if v == nil {
		x.removeLocked(id)
		return
	}

	if _, exists := x.vectors[id]; exists {
		x.dirty = true
	} else if !x.dirty {
		if x.graph == nil {
			x.graph = newSignatureGraph()
		}
		x.graph.Add(hnsw.MakeNode(id, v))
	}
	x.vectors[id] = v
}

// Remove drops an identity from the index.
func (x *SignatureIndex) Remove(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.removeLocked(id)
}

func (x *SignatureIndex) removeLocked(id string) {
	if _, ok := x.vectors[id]; ok {
		delete(x.vectors, id)
		x.dirty = true
	}
}

// Nearest returns up to k identities most correlated with signature, best first,
// skipping the identity exclude.
func (x *SignatureIndex) Nearest(signature []float32, k int, exclude string) []SimilarIdentity {
	query := centered(signature)
	if query == nil || k <= 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dirty {
		x.rebuildLocked()
	}
	if x.graph == nil {
		return nil
	}

	neighbors := x.graph.Search(query, (k+1)*HNSWSearchMultiplier)
	out := make([]SimilarIdentity, 0, k)
	for _, n := range neighbors {
		if n.Key == exclude {
			continue
		}
		if _, ok := x.vectors[n.Key]; !ok {
			continue
		}
		out = append(out, SimilarIdentity{
			IdentityID:  n.Key,
			Correlation: 1 - CosineDistance(query, n.Value),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Correlation > out[j].Correlation })
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// Count returns the number of indexed identities.
func (x *SignatureIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// SaveWithMetadata exports the graph to path and its metadata to path.meta.
// An empty index removes both files.
func (x *SignatureIndex) SaveWithMetadata(path string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dirty {
		x.rebuildLocked()
	}
	if x.graph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	defer f.Close()

	if err := x.graph.Export(f); err != nil {
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}

	metaData, err := json.Marshal(HNSWIndexMetadata{
		IdentityCount: len(x.vectors),
		BuildTime:     time.Now(),
		Version:       hnswMetadataVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// LoadHNSWMetadata loads metadata from a separate .meta file.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}

// LoadWithMetadata replaces the index with the graph saved at path when it is
// still fresh for identities, and reports whether it did. A missing or stale
// index file leaves the index untouched and returns false with no error.
func (x *SignatureIndex) LoadWithMetadata(path string, identities []StoredIdentity) (bool, error) {
	metadata, err := LoadHNSWMetadata(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	vectors := make(map[string][]float32, len(identities))
	var lastUpdate time.Time
	for _, id := range identities {
		if v := centered(id.Signature); v != nil {
			vectors[id.ID] = v
			if id.UpdatedAt.After(lastUpdate) {
				lastUpdate = id.UpdatedAt
			}
		}
	}
	if metadata.Version != hnswMetadataVersion ||
		metadata.IdentityCount != len(vectors) ||
		metadata.BuildTime.Before(lastUpdate) {
		return false, nil
	}
	if len(vectors) == 0 {
		return false, nil
	}

	saved, err := hnsw.LoadSavedGraph[string](path)
	if err != nil {
		return false, fmt.Errorf("failed to load HNSW index: %w", err)
	}
	if saved.Len() != len(vectors) {
		return false, nil
	}
	for id, v := range vectors {
		stored, ok := saved.Lookup(id)
		if !ok || !slices.Equal([]float32(stored), v) {
			return false, nil
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.graph = saved.Graph
	x.vectors = vectors
	x.dirty = false
	return true, nil
}
