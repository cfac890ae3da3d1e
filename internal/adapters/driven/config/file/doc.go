// Package file provides the TOML configuration store.
//
// Keys use dot notation ("retrieval.top_k") and map to TOML tables.
// CONVORAG_* environment variables override file values.
package file
