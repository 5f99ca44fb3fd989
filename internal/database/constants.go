package database

// HNSW index parameters for 256-bucket face signatures
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// to ensure we have enough after filtering removed identities.
	HNSWSearchMultiplier = 3
)

// DefaultRecognitionLogLimit is the page size for recognition log listings.
const DefaultRecognitionLogLimit = 50
