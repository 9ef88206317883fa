package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventKey(t *testing.T) {
	ev := Event{RemoteHost: "API.Example.com.", RemotePort: 443, LocalPort: 50123}
	k, err := ev.Key()
	require.NoError(t, err)
	assert.Equal(t, Key{RemoteHost: "api.example.com", RemotePort: 443, LocalPort: 50123, Direction: Outbound}, k)
	assert.Equal(t, "outbound api.example.com:443 local:50123", k.String())
}

func TestEventKeyFromURL(t *testing.T) {
	ev := Event{URL: "https://cdn.example.com/a.bin", Direction: Outbound}
	k, err := ev.Key()
	require.NoError(t, err)
	assert.Equal(t, "cdn.example.com", k.RemoteHost)
	assert.Equal(t, 443, k.RemotePort)

	ev = Event{URL: "http://[::1]:8080/"}
	k, err = ev.Key()
	require.NoError(t, err)
	assert.Equal(t, "::1", k.RemoteHost)
	assert.Equal(t, 8080, k.RemotePort)
}

func TestEventKeyInvalid(t *testing.T) {
	tests := []Event{
		{},
		{RemoteHost: "example.com"},
		{RemoteHost: "example.com", RemotePort: 70000},
		{RemoteHost: "example.com", RemotePort: 80, LocalPort: -1},
		{RemoteHost: "example.com", RemotePort: 80, Direction: "sideways"},
		{URL: "::not a url"},
	}
	for _, ev := range tests {
		_, err := ev.Key()
		assert.ErrorIs(t, err, ErrInvalidEndpoint, "%+v", ev)
	}
}

func TestParseEndpoint(t *testing.T) {
	host, port, err := ParseEndpoint("10.0.0.1:53")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", host)
	assert.Equal(t, 53, port)

	host, port, err = ParseEndpoint("[fe80::1]:443")
	require.NoError(t, err)
	assert.Equal(t, "fe80::1", host)
	assert.Equal(t, 443, port)

	for _, s := range []string{"", "example.com", "example.com:http", ":80", "a:0"} {
		_, _, err := ParseEndpoint(s)
		assert.ErrorIs(t, err, ErrInvalidEndpoint, s)
	}
}
