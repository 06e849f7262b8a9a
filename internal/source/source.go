// Package source lists, downloads and archives documents waiting in an inbox folder.
package source

import "context"

// File is a candidate document in the inbox.
type File struct {
	ID       string
	Name     string
	MimeType string
}

type Source interface {
	// List returns the supported documents currently in the inbox.
	List(ctx context.Context) ([]File, error)
	Download(ctx context.Context, f File) ([]byte, error)
	// Archive moves f out of the inbox into the processed location.
	Archive(ctx context.Context, f File) error
}

// Watcher is implemented by sources that can signal new inbox activity between polls.
type Watcher interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}
