// Package connectors holds document sources that feed conversations from
// outside the document store. Each connector implements
// driven.DocumentSource.
//
//   - filesystem: a local directory tree, watched with fsnotify
package connectors
