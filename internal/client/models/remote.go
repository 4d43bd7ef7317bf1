package models

// AssetRef points at an attachable file in the client asset file system.
type AssetRef struct {
	Path     string
	Checksum string
}

// RemoteRecord is the wire representation of a Record. A nil value in
// Fields is an explicit null that clears the remote field.
type RemoteRecord struct {
	ID           string
	Type         string
	Fields       map[string]any
	Asset        *AssetRef
	VersionToken []byte
}

// FetchResult is one page of remote changes since a cursor.
type FetchResult struct {
	Changed    []RemoteRecord
	Deleted    []string
	Cursor     []byte
	MoreComing bool
}

// FailedSave reports a save the remote store rejected. ServerRecord is
// set on conflicts and carries the current server version.
type FailedSave struct {
	ID           string
	Err          error
	ServerRecord *RemoteRecord
}

// FailedDelete reports a delete the remote store rejected.
type FailedDelete struct {
	ID  string
	Err error
}

// SendResult is the outcome of one batch of saves and deletes.
type SendResult struct {
	Saved         []RemoteRecord
	Deleted       []string
	FailedSaves   []FailedSave
	FailedDeletes []FailedDelete
}
