// Package auth authenticates control API clients.
package auth

import (
	"context"
	"crypto/subtle"

	"github.com/go-gost/core/auth"
)

// authenticator is an Authenticator that authenticates client by key-value pairs.
type authenticator struct {
	kvs map[string]string
}

// NewAuthenticator creates an Authenticator that authenticates client by pre-defined user mapping.
// An empty mapping accepts every client.
func NewAuthenticator(kvs map[string]string) auth.Authenticator {
	return &authenticator{
		kvs: kvs,
	}
}

// Authenticate checks the validity of the provided user-password pair.
func (au *authenticator) Authenticate(ctx context.Context, user, password string, opts ...auth.Option) (string, bool) {
	if au == nil || len(au.kvs) == 0 {
		return "", true
	}

	v, ok := au.kvs[user]
	if !ok {
		return "", false
	}
	return user, subtle.ConstantTimeCompare([]byte(v), []byte(password)) == 1
}
