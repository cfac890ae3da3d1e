// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - DocumentStore: Source of conversation documents
//   - EmbeddingService: Maps text to unit-length vectors
//   - VectorIndexFactory: Builds and decodes exact vector indexes
//   - IndexStore: Persists conversation indexes as one atomic artifact
//   - PostProcessorPipeline: Turns a document into chunks
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
//   - SchedulerStore: Task state for the stale-index scheduler
//   - DocumentSource: Watched document locations such as a directory
//   - NormaliserRegistry: Text extraction for files read by a DocumentSource
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
