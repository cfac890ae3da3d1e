package domain

// ChangeType represents the type of document change.
type ChangeType int

const (
	// ChangeCreated indicates a new document.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a modified document.
	ChangeUpdated

	// ChangeDeleted indicates a removed document.
	ChangeDeleted
)

// String returns the lowercase name of the change.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// DocumentChange is a change observed by a document source such as a
// watched directory. Deletions carry only the document ID and
// conversation.
type DocumentChange struct {
	// Type is the kind of change.
	Type ChangeType

	// Document is the affected document.
	Document Document

	// URI is where the change was observed, for example a file path.
	URI string
}

// SyncResult summarises one mirror of a document source.
type SyncResult struct {
	// ConversationID is the conversation that was synced.
	ConversationID string

	// Stored is the number of documents created or changed.
	Stored int

	// Unchanged is the number of documents already up to date.
	Unchanged int

	// Removed is the number of documents deleted by pruning.
	Removed int
}

// Changed reports whether the sync modified the document store.
func (r SyncResult) Changed() bool {
	return r.Stored > 0 || r.Removed > 0
}
