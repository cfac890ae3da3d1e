// Package flat provides an exact inner-product vector index.
//
// Every query scans all rows, so results are exact and deterministic: scores
// are sorted in descending order and ties keep ascending row order. With
// unit-length vectors the inner product is the cosine similarity.
//
// The index serialises to a compact little-endian binary format:
//
//	magic "CVIX" | version u16 | reserved u16 | dim u32 | rows u32 | rows*dim float32
package flat
