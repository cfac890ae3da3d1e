// Package normalisers turns the bytes of a file into the plain text stored
// as a conversation document. Each subpackage handles one family of MIME
// types; the Registry picks the highest-priority match.
package normalisers
