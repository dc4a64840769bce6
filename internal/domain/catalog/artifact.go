package catalog

import "context"

// DocumentWriter streams product records into one export document
type DocumentWriter interface {
	Write(record *ProductRecord) error
	// Close finishes the document; the artifact is complete afterwards
	Close() error
	Path() string
}

// ArtifactStore creates and removes export artifacts on local disk
type ArtifactStore interface {
	Create(contentType ContentType, connectionID int64) (DocumentWriter, error)
	Remove(path string) error
}

// Archiver keeps a copy of an uploaded artifact
type Archiver interface {
	Archive(ctx context.Context, contentType ContentType, connectionID int64, path string) error
}
