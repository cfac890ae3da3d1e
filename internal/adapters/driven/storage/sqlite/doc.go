// Package sqlite provides a SQLite-based implementation of the document,
// index and scheduler store ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. All stores share one database file:
//
//   - DocumentStore: conversation documents and change tracking
//   - IndexStore: conversation indexes (manifest, chunk rows, vector blob)
//   - SchedulerStore: scheduled task state and run history
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Applied versions are recorded in schema_migrations.
//
// # Atomicity
//
// IndexStore.Save replaces an index inside one transaction, and Load reads
// inside one transaction, so readers never see a half written index.
package sqlite
