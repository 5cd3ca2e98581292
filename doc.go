// Package easylish provides a semantic retrieval engine for subtitle lines.
//
// Given a free-form (often cross-lingual) query, the engine finds the
// subtitle line whose meaning is closest and returns enough metadata to seek
// a video player to that exact moment: video id, episode, sequence position,
// and start/end timestamps in milliseconds.
//
// # Architecture
//
// The engine is built from small packages, leaves first:
//
//	┌─────────────────────────────────────┐
//	│        search.Engine                │  Lifecycle, single-flight init,
//	│  (backend selection, calibration)   │  confidence + post-processing
//	└──────────────────┬──────────────────┘
//	                   │ one of three backends
//	     ┌─────────────┼──────────────────┐
//	     ↓             ↓                  ↓
//	┌─────────┐  ┌────────────┐  ┌───────────────┐
//	│  local  │  │   direct   │  │   delegated   │
//	│ (index) │  │ (embedding │  │   (remote     │
//	│         │  │ + vectordb)│  │    client)    │
//	└─────────┘  └────────────┘  └───────────────┘
//
// Backends conform to one contract and are chosen once at construction time:
//
//   - local: embed in process (embedding.HashEmbedder or a model-backed
//     provider), index and query with the in-memory index.Memory store.
//   - direct: embed via the inference-service client, store and query via
//     the vector-database client, both driven from this process.
//   - delegated: push raw entries to a separate retrieval service
//     (remote.Client) which owns embedding, storage, and query end to end.
//
// Raw similarity scores differ by backend (cosine in [-1,1] for local hash
// vectors, database-reported similarity in [0,1] for normalized model
// embeddings). The engine normalizes both into a calibrated confidence in
// [0,1], penalizes low-information matches, deduplicates by source video,
// and truncates to the caller's requested count.
//
// # Packages
//
// Core:
//   - subtitle: the immutable subtitle entry record and text normalization
//   - embedding: embedding providers (deterministic hash fallback, TEI,
//     OpenAI-compatible) and vector math
//   - index: brute-force in-memory vector index for the local backend
//   - vectordb: vector-database (Qdrant) HTTP client
//   - remote: delegated retrieval-service HTTP client
//   - search: retrieval orchestrator, confidence calibration, post-processing
//
// Infrastructure:
//   - config: configuration loading and validation
//   - errors: structured error classification and wrapping
//   - health: health status reporting
//   - metric: Prometheus metrics registry
//   - pkg/retry: exponential backoff retry policies
//
// Subtitle parsing, HTTP route handling, and the web UI live outside this
// module; they interact with it only through search.Engine and the client
// contracts in vectordb and remote.
package easylish
