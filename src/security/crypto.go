package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// Broker credentials and the day's access token are stored sealed with
// a key supplied via the environment, never in plain text.

const nonceSize = 24

func sealKey() (*[32]byte, error) {
	config := GetConfig()
	if config.CredentialsKey == "" {
		return nil, errors.New("BROKER_CREDENTIALS_KEY not set")
	}

	raw, err := base64.StdEncoding.DecodeString(config.CredentialsKey)
	if err != nil {
		return nil, fmt.Errorf("decode credentials key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("credentials key must be 32 bytes, got %d", len(raw))
	}

	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

// EncryptString seals a secret for storage, returning base64.
func EncryptString(plain string) (string, error) {
	key, err := sealKey()
	if err != nil {
		return "", err
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plain), &nonce, key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString opens a secret sealed by EncryptString.
func DecryptString(encoded string) (string, error) {
	key, err := sealKey()
	if err != nil {
		return "", err
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode sealed secret: %w", err)
	}
	if len(sealed) < nonceSize {
		return "", errors.New("sealed secret too short")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, key)
	if !ok {
		return "", errors.New("failed to open sealed secret")
	}
	return string(plain), nil
}
