package loader

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/mitchellh/go-homedir"
)

type fileLoader struct {
	filename string
}

// FileLoader loads data from a local file, '~' is expanded to the home directory.
func FileLoader(filename string) Loader {
	if v, err := homedir.Expand(filename); err == nil {
		filename = v
	}
	return &fileLoader{
		filename: filename,
	}
}

func (l *fileLoader) Load(ctx context.Context) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.filename)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func (l *fileLoader) Close() error {
	return nil
}
