package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	_, ok := NewAuthenticator(nil).Authenticate(ctx, "", "")
	assert.True(t, ok)

	au := NewAuthenticator(map[string]string{"admin": "secret"})
	id, ok := au.Authenticate(ctx, "admin", "secret")
	assert.True(t, ok)
	assert.Equal(t, "admin", id)

	_, ok = au.Authenticate(ctx, "admin", "wrong")
	assert.False(t, ok)
	_, ok = au.Authenticate(ctx, "root", "secret")
	assert.False(t, ok)
}
