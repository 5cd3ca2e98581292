// Package embedding provides vector embedding generation for subtitle
// retrieval.
//
// The package contains a deterministic in-process embedder used as a
// fallback, plus HTTP clients for model-backed inference services. All
// implementations share the Embedder interface and support batch operations
// natively.
package embedding

import "context"

// Role distinguishes query text from passage text for asymmetric embedding
// models. Instruction-tuned encoders (e5 family) expect a role prefix on the
// input; symmetric models ignore the role.
type Role int

const (
	// RoleQuery marks text used to search the index.
	RoleQuery Role = iota
	// RolePassage marks text stored in the index.
	RolePassage
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleQuery:
		return "query"
	case RolePassage:
		return "passage"
	default:
		return "unknown"
	}
}

// e5Prefix returns the instruction prefix for e5-style models.
func (r Role) e5Prefix() string {
	switch r {
	case RoleQuery:
		return "query: "
	case RolePassage:
		return "passage: "
	default:
		return ""
	}
}

// Embedder generates vector embeddings for text.
//
// Implementations can use different providers (HTTP inference services, the
// deterministic hash embedder) while maintaining a consistent interface.
// For single text, pass a slice with one element.
type Embedder interface {
	// Generate creates embeddings for the given texts under the given role.
	//
	// The result has one vector per input text, in input order. Inputs that
	// are empty after trimming yield a nil vector at their index rather than
	// a call to the model.
	Generate(ctx context.Context, texts []string, role Role) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings produced by this
	// embedder.
	Dimensions() int

	// Model returns the model identifier used by this embedder.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// Cache provides content-addressed caching for embeddings.
//
// Implementations should use a hash of the text content as the key to enable
// deduplication and fast lookups.
type Cache interface {
	// Get retrieves a cached embedding for the given content hash.
	// Returns an error if the embedding is not found.
	Get(ctx context.Context, contentHash string) ([]float32, error)

	// Put stores an embedding in the cache with the given content hash.
	Put(ctx context.Context, contentHash string, embedding []float32) error
}
