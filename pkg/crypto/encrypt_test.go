package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestEncryptStringRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	sealed, err := enc.EncryptString("+256771234567")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "771234567")

	plain, err := enc.DecryptString(sealed)
	require.NoError(t, err)
	assert.Equal(t, "+256771234567", plain)
}

func TestDecryptStringPassesThroughPlainValues(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	plain, err := enc.DecryptString("+256771234567")
	require.NoError(t, err)
	assert.Equal(t, "+256771234567", plain)

	empty, err := enc.EncryptString("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDecryptRejectsForeignKey(t *testing.T) {
	a, err := NewEncryptor(testKey)
	require.NoError(t, err)
	b, err := NewEncryptor("fedcba9876543210fedcba9876543210")
	require.NoError(t, err)

	sealed, err := a.EncryptString("secret")
	require.NoError(t, err)
	_, err = b.DecryptString(sealed)
	assert.Error(t, err)
}

func TestNewEncryptorKeyLength(t *testing.T) {
	_, err := NewEncryptor("short")
	assert.Error(t, err)
}
