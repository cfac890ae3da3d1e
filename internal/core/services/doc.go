// Package services implements the driving port interfaces.
// Services hold the retrieval logic and orchestrate calls to driven
// ports: document stores, embedding providers, vector indexes and
// index stores.
//
// Services depend only on ports, never on concrete adapters.
package services
