// Package objectstore persists conversation indexes as immutable, versioned
// objects in a Bucket: a local directory or an S3 compatible object store.
//
// Layout, where <conv> is the base64url encoded conversation ID:
//
//	<conv>/CURRENT                    name of the live version
//	<conv>/<version>/manifest.json
//	<conv>/<version>/chunks.json
//	<conv>/<version>/index.vec
//
// A save writes a complete new version directory first and then swaps the
// CURRENT pointer, so readers see either the old or the new index. The
// previous version is kept so a reader that resolved CURRENT just before a
// swap can still finish; older versions are pruned.
package objectstore
