// Package domain defines the core entities of the conversation retrieval
// subsystem.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: Ingested text owned by one conversation
//   - Chunk: A document-local text segment
//   - ChunkRecord: A chunk placed in the conversation-wide sequence
//   - ConversationIndex: The persisted, immutable index of one conversation
//   - SearchHit: An expanded retrieval result
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
