package service

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService(t *testing.T) {
	s, err := NewService("tcp", "127.0.0.1:0", PathOption("/m"), BasicAuthOption("prom", "secret"))
	require.NoError(t, err)
	go s.Serve()
	defer s.Close()

	url := "http://" + s.Addr().String() + "/m"

	resp, err := http.Get(url)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, url, nil)
	req.SetBasicAuth("prom", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
