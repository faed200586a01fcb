package ports

import (
	"context"
	"io"
)

// Document is an uploaded file handed to an indexer.
type Document struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// DocumentIndexer splits a document into retrievable chunks and returns their count.
type DocumentIndexer interface {
	Index(ctx context.Context, doc Document) (int, error)
}
