package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/scrypt"
)

const (
	cipherSaltSize  = 16
	cipherNonceSize = 12
	cipherKeySize   = 32
)

// scrypt parameters; interactive-grade since decryption happens on every
// token issuance.
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// KeyCipher encrypts private key material at rest with AES-256-GCM. The
// AES key is derived from a deployment-wide passphrase via scrypt with a
// fresh salt per ciphertext.
type KeyCipher struct {
	passphrase []byte
}

// NewKeyCipher creates a cipher from the deployment passphrase.
func NewKeyCipher(passphrase string) (*KeyCipher, error) {
	if passphrase == "" {
		return nil, ErrCipherFailed(errors.New("empty passphrase"))
	}
	return &KeyCipher{passphrase: []byte(passphrase)}, nil
}

// Encrypt seals plaintext and returns base64(salt || nonce || ciphertext).
func (c *KeyCipher) Encrypt(plaintext []byte) (string, error) {
	salt := make([]byte, cipherSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", ErrCipherFailed(err)
	}

	gcm, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, cipherNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", ErrCipherFailed(err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (c *KeyCipher) Decrypt(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrCipherFailed(err)
	}
	if len(raw) < cipherSaltSize+cipherNonceSize+1 {
		return nil, ErrCipherFailed(errors.New("ciphertext too short"))
	}

	salt := raw[:cipherSaltSize]
	nonce := raw[cipherSaltSize : cipherSaltSize+cipherNonceSize]
	sealed := raw[cipherSaltSize+cipherNonceSize:]

	gcm, err := c.aead(salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrCipherFailed(err)
	}
	return plaintext, nil
}

func (c *KeyCipher) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(c.passphrase, salt, scryptN, scryptR, scryptP, cipherKeySize)
	if err != nil {
		return nil, ErrCipherFailed(err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrCipherFailed(err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrCipherFailed(err)
	}
	return gcm, nil
}
