package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecretKey = "verysecretkey-must-be-32-bytes!!"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	encryptor, err := NewGCMEncryptor(testSecretKey)
	require.NoError(t, err)

	encrypted, err := encryptor.Encrypt("token-value")
	require.NoError(t, err)
	assert.NotEqual(t, "token-value", encrypted)

	decrypted, err := encryptor.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "token-value", decrypted)
}

func TestEncryptIsNotDeterministic(t *testing.T) {
	encryptor, err := NewGCMEncryptor(testSecretKey)
	require.NoError(t, err)

	first, err := encryptor.Encrypt("token-value")
	require.NoError(t, err)
	second, err := encryptor.Encrypt("token-value")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestDecryptGarbageFails(t *testing.T) {
	encryptor, err := NewGCMEncryptor(testSecretKey)
	require.NoError(t, err)

	_, err = encryptor.Decrypt("bm90LXJlYWxseS1lbmNyeXB0ZWQ=")

	assert.Error(t, err)
}

func TestInvalidKeyLength(t *testing.T) {
	_, err := NewGCMEncryptor("too-short")

	assert.Error(t, err)
}
