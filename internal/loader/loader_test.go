package loader

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- target: steam\n"), 0o644))

	l := FileLoader(path)
	defer l.Close()

	r, err := l.Load(context.Background())
	require.NoError(t, err)
	b, _ := io.ReadAll(r)
	assert.Equal(t, "- target: steam\n", string(b))

	_, err = FileLoader(filepath.Join(t.TempDir(), "missing")).Load(context.Background())
	assert.Error(t, err)
}

func TestHTTPLoader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "secret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("rules"))
	}))
	defer srv.Close()

	l := HTTPLoader(srv.URL, HeaderHTTPLoaderOption(http.Header{"X-Token": []string{"secret"}}))
	r, err := l.Load(context.Background())
	require.NoError(t, err)
	b, _ := io.ReadAll(r)
	assert.Equal(t, "rules", string(b))

	_, err = HTTPLoader(srv.URL).Load(context.Background())
	assert.ErrorContains(t, err, "403")
}
