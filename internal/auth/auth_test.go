// internal/auth/auth_test.go
package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	Init()

	userID := uuid.New().String()
	token, err := CreateJWT(userID)
	require.NoError(t, err)

	sub, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, userID, sub)
}

func TestJWTRejectsForeignKey(t *testing.T) {
	Init()
	token, err := CreateJWT(uuid.New().String())
	require.NoError(t, err)

	// A restart rotates the key pair; old tokens stop verifying.
	Init()
	_, err = AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestJWTRejectsGarbage(t *testing.T) {
	Init()
	_, err := AuthenticateJWT("not-a-token")
	assert.Error(t, err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := CreateHash("correct horse battery staple", Params)
	require.NoError(t, err)
	assert.NotContains(t, hash, "correct horse")

	ok, err := ComparePasswordAndHash("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ComparePasswordAndHash("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}
