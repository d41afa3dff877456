package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BearerClaims is the client-facing half of a token: a JWT that transports
// the opaque secret plus enough identity for consumers to display, without
// being trusted on its own. Validation always goes back to the stored
// record.
type BearerClaims struct {
	ConsumerName string `json:"cnm"`
	Secret       string `json:"sec"`
	jwt.RegisteredClaims
}

// BearerCodec encodes and decodes bearer strings. The HMAC secret only
// guards transport integrity; trust comes from the stored record and the
// provider signature.
type BearerCodec struct {
	secret []byte
	issuer string
}

// NewBearerCodec creates a codec with the given HMAC secret and issuer
// name. Bearers from a different issuer do not decode.
func NewBearerCodec(secret, issuer string) *BearerCodec {
	return &BearerCodec{secret: []byte(secret), issuer: issuer}
}

// Encode wraps an issued token and its raw secret into a bearer string.
func (c *BearerCodec) Encode(t *Token, rawSecret, consumerName string) (string, error) {
	claims := BearerClaims{
		ConsumerName: consumerName,
		Secret:       rawSecret,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   t.UserID.String(),
			ID:        t.ID.String(),
			IssuedAt:  jwt.NewNumericDate(t.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(t.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", ErrIssuanceBlocked(err)
	}
	return signed, nil
}

// Decode parses and integrity-checks a bearer string. Malformed, tampered,
// and expired bearers all come back as the same invalid-token error.
func (c *BearerCodec) Decode(bearer string) (*BearerClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	claims := &BearerClaims{}
	parsed, err := jwt.ParseWithClaims(bearer, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken()
		}
		return c.secret, nil
	}, opts...)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenExpired()
	}
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken()
	}
	if claims.Secret == "" {
		return nil, ErrInvalidToken()
	}
	return claims, nil
}
