package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
)

// Service encrypts and decrypts OAuth tokens with a server-held secret.
// AES-256-GCM gives authenticated encryption, so a tampered blob fails to
// decrypt instead of yielding garbage.
type Service struct {
	key []byte
}

// New creates a cipher service from the configured secret. The secret is
// hashed to a fixed-size key so operators can use any passphrase length.
func New(secret string) (*Service, error) {
	if secret == "" {
		return nil, goerr.Wrap(types.ErrConfiguration, "encryption secret is empty")
	}
	key := sha256.Sum256([]byte(secret))
	return &Service{key: key[:]}, nil
}

// Encrypt encrypts plaintext into a base64 blob with a fresh random nonce
func (s *Service) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create cipher")
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create GCM")
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", goerr.Wrap(err, "failed to generate nonce")
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt decrypts a blob produced by Encrypt. Malformed input and failed
// authentication both surface as types.ErrDecryption.
func (s *Service) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", goerr.Wrap(types.ErrDecryption, "malformed ciphertext encoding")
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create cipher")
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create GCM")
	}

	if len(raw) < gcm.NonceSize() {
		return "", goerr.Wrap(types.ErrDecryption, "ciphertext too short")
	}

	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", goerr.Wrap(types.ErrDecryption, "authentication failed")
	}

	return string(plaintext), nil
}
