// Package plagio provides shared error, logging, metrics, and hot-swap
// primitives used across the near-duplicate retrieval packages: text
// (normalization/tokenization), shingle (K-gram hashing), codec (the CSR
// index file format), builder (offline index construction), engine
// (single-shard load/search), and aggregator (multi-shard fan-out).
//
// A typical program builds shards offline with builder, serves queries by
// loading one or more shards with engine, and fans queries out across
// shards with aggregator. This package itself holds no domain logic; it
// exists so the four domain packages share one error taxonomy, one
// logging shape, and one metrics interface instead of each inventing its
// own.
package plagio
