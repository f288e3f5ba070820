// Package secrets encrypts vendor credentials at rest using fernet tokens.
package secrets

import (
	"fmt"

	"github.com/fernet/fernet-go"

	"github.com/investoscope/investoscope-backend/internal/apperrors"
)

// Codec encrypts and decrypts short secret strings with a fernet key.
// The zero-value Codec (no key) refuses both operations, so encrypted
// credential storage degrades cleanly when FERNET_KEY is unset.
type Codec struct {
	keys []*fernet.Key
}

// NewCodec parses a base64 fernet key. An empty key yields a disabled codec.
func NewCodec(key string) (*Codec, error) {
	if key == "" {
		return &Codec{}, nil
	}
	keys, err := fernet.DecodeKeys(key)
	if err != nil {
		return nil, fmt.Errorf("failed to decode fernet key: %w", err)
	}
	return &Codec{keys: keys}, nil
}

// Enabled reports whether a key is configured.
func (c *Codec) Enabled() bool {
	return len(c.keys) > 0
}

// Encrypt seals a plaintext secret into a fernet token.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	if !c.Enabled() {
		return "", apperrors.ErrSecretsNotConfigured
	}
	token, err := fernet.EncryptAndSign([]byte(plaintext), c.keys[0])
	if err != nil {
		return "", fmt.Errorf("failed to encrypt secret: %w", err)
	}
	return string(token), nil
}

// Decrypt opens a fernet token. Tokens do not expire (TTL 0): vendor keys
// are rotated by overwriting, not by aging out.
func (c *Codec) Decrypt(token string) (string, error) {
	if !c.Enabled() {
		return "", apperrors.ErrSecretsNotConfigured
	}
	plaintext := fernet.VerifyAndDecrypt([]byte(token), 0, c.keys)
	if plaintext == nil {
		return "", fmt.Errorf("failed to decrypt secret: invalid token")
	}
	return string(plaintext), nil
}
