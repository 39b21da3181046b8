package db

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// GCMEncryptor encrypts token values before they are written to Redis. The
// random nonce is prepended to the ciphertext and the whole blob is base64
// encoded so it survives the text-based hash serialization.
type GCMEncryptor struct {
	cipher cipher.AEAD
}

func (g GCMEncryptor) Encrypt(val string) (string, error) {
	nonce := make([]byte, g.cipher.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := g.cipher.Seal(nonce, nonce, []byte(val), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (g GCMEncryptor) Decrypt(val string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(val)
	if err != nil {
		return "", err
	}
	nonceSize := g.cipher.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("encrypted value is too short to contain a nonce")
	}
	res, err := g.cipher.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", err
	}
	return string(res), nil
}

func NewGCMEncryptor(secret string) (GCMEncryptor, error) {
	block, err := aes.NewCipher([]byte(secret))
	if err != nil {
		return GCMEncryptor{}, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return GCMEncryptor{}, err
	}
	return GCMEncryptor{aesgcm}, nil
}
