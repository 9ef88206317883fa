package loader

import (
	"context"
	"io"
)

// Loader fetches a raw document (YAML rules or a line list) from a source.
type Loader interface {
	Load(context.Context) (io.Reader, error)
	Close() error
}

// Lister is implemented by loaders whose source is natively a list of items.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}
