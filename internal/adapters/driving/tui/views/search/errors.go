package search

import "errors"

// ErrNoRetrievalService is returned when a query runs without a retrieval service.
var ErrNoRetrievalService = errors.New("retrieval service not available")
