package cryptox

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// Algorithm identifies an asymmetric signing algorithm.
type Algorithm string

const (
	// AlgorithmRS256 is RSA-2048 with PKCS#1 v1.5 over SHA-256.
	AlgorithmRS256 Algorithm = "RS256"
	// AlgorithmES256 is ECDSA P-256 over SHA-256, ASN.1 encoded signatures.
	AlgorithmES256 Algorithm = "ES256"
)

// ParseAlgorithm validates an algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AlgorithmRS256, AlgorithmES256:
		return Algorithm(s), nil
	default:
		return "", ErrUnsupportedAlg(s)
	}
}

// KeyPair holds a freshly generated key pair, PEM encoded. The private half
// must be encrypted before persistence.
type KeyPair struct {
	Algorithm  Algorithm
	PublicPEM  string
	PrivatePEM string
}

const rsaKeyBits = 2048

// GenerateKeyPair generates a key pair for the given algorithm.
func GenerateKeyPair(alg Algorithm) (*KeyPair, error) {
	var priv crypto.Signer
	var err error

	switch alg {
	case AlgorithmRS256:
		priv, err = rsa.GenerateKey(rand.Reader, rsaKeyBits)
	case AlgorithmES256:
		priv, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	default:
		return nil, ErrUnsupportedAlg(string(alg))
	}
	if err != nil {
		return nil, ErrKeyGeneration(err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, ErrKeyGeneration(err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(priv.Public())
	if err != nil {
		return nil, ErrKeyGeneration(err)
	}

	return &KeyPair{
		Algorithm:  alg,
		PublicPEM:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})),
		PrivatePEM: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})),
	}, nil
}

// Sign signs payload with a PEM-encoded private key.
func Sign(privatePEM string, alg Algorithm, payload []byte) ([]byte, error) {
	key, err := parsePrivateKey(privatePEM)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(payload)

	switch alg {
	case AlgorithmRS256:
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, ErrInvalidKey(fmt.Errorf("key type %T does not match %s", key, alg))
		}
		return rsa.SignPKCS1v15(rand.Reader, rsaKey, crypto.SHA256, digest[:])
	case AlgorithmES256:
		ecKey, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, ErrInvalidKey(fmt.Errorf("key type %T does not match %s", key, alg))
		}
		return ecdsa.SignASN1(rand.Reader, ecKey, digest[:])
	default:
		return nil, ErrUnsupportedAlg(string(alg))
	}
}

// Verify verifies a signature over payload with a PEM-encoded public key.
func Verify(publicPEM string, alg Algorithm, payload, signature []byte) error {
	key, err := parsePublicKey(publicPEM)
	if err != nil {
		return err
	}

	digest := sha256.Sum256(payload)

	switch alg {
	case AlgorithmRS256:
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return ErrInvalidKey(fmt.Errorf("key type %T does not match %s", key, alg))
		}
		if err := rsa.VerifyPKCS1v15(rsaKey, crypto.SHA256, digest[:], signature); err != nil {
			return ErrSignatureInvalid()
		}
		return nil
	case AlgorithmES256:
		ecKey, ok := key.(*ecdsa.PublicKey)
		if !ok {
			return ErrInvalidKey(fmt.Errorf("key type %T does not match %s", key, alg))
		}
		if !ecdsa.VerifyASN1(ecKey, digest[:], signature) {
			return ErrSignatureInvalid()
		}
		return nil
	default:
		return ErrUnsupportedAlg(string(alg))
	}
}

func parsePrivateKey(pemStr string) (crypto.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, ErrInvalidKey(errors.New("no PEM block found"))
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, ErrInvalidKey(err)
	}
	return key, nil
}

func parsePublicKey(pemStr string) (crypto.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, ErrInvalidKey(errors.New("no PEM block found"))
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, ErrInvalidKey(err)
	}
	return key, nil
}
