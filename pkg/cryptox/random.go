package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

// TokenSecret returns a URL-safe random secret of n bytes of entropy.
func TokenSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", ErrKeyGeneration(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NumericCode generates a zero-padded random numeric code of the given
// length, suitable for out-of-band one-time codes.
func NumericCode(length int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", ErrKeyGeneration(err)
	}
	return fmt.Sprintf(fmt.Sprintf("%%0%dd", length), n), nil
}

const backupCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// BackupCode generates a single-use recovery code of the form XXXXX-XXXXX.
func BackupCode() (string, error) {
	left, err := randomGroup(5)
	if err != nil {
		return "", err
	}
	right, err := randomGroup(5)
	if err != nil {
		return "", err
	}
	return left + "-" + right, nil
}

func randomGroup(n int) (string, error) {
	out := make([]byte, n)
	alphabetLen := big.NewInt(int64(len(backupCodeAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", ErrKeyGeneration(err)
		}
		out[i] = backupCodeAlphabet[idx.Int64()]
	}
	return string(out), nil
}
