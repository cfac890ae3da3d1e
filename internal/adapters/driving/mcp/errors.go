// Package mcp provides an MCP (Model Context Protocol) server adapter for
// convorag. It lets AI assistants query conversation indexes and read the
// documents behind them.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")

// ErrIndexerUnavailable is returned by rebuild_index when no index builder is wired.
var ErrIndexerUnavailable = errors.New("mcp: index rebuilds are not enabled")
