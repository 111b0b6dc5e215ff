package ownersig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignVerify(t *testing.T) {
	secret := []byte("test-secret")

	sig := Sign(secret, 99)
	assert.Len(t, sig, 64, "hex-encoded SHA-256 digest")
	assert.True(t, Verify(secret, 99, sig))
}

func TestVerify_WrongOwner(t *testing.T) {
	secret := []byte("test-secret")
	assert.False(t, Verify(secret, 99, Sign(secret, 100)))
}

func TestVerify_WrongSecret(t *testing.T) {
	sig := Sign([]byte("secret-a"), 99)
	assert.False(t, Verify([]byte("secret-b"), 99, sig))
}

func TestVerify_Degenerate(t *testing.T) {
	assert.False(t, Verify([]byte("s"), 1, ""))
	assert.False(t, Verify(nil, 1, Sign([]byte("s"), 1)))
	assert.False(t, Verify([]byte("s"), 1, "not-hex-not-even-right-length"))
}

func TestSign_Deterministic(t *testing.T) {
	secret := []byte("test-secret")
	assert.Equal(t, Sign(secret, 42), Sign(secret, 42))
	assert.NotEqual(t, Sign(secret, 42), Sign(secret, 43))
}
