package utils // package utils provides helpers for secrets, tokens and signatures

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // body digests for webhook signatures
	"encoding/hex"  // hex encoding of tokens and digests
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// ErrBadSignature is returned when a webhook signature does not match the
// delivered body or cannot be parsed.
var ErrBadSignature = errors.New("invalid webhook signature")

// RandomToken returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.  Sessions use 32 bytes (64 hex
// characters); verification links use the same size.
func RandomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// webhookClaims binds a JWT to exactly one request body.
type webhookClaims struct {
	BodySHA256 string `json:"body_sha256"`
	jwt.RegisteredClaims
}

// SignWebhook returns an HS256 token whose body_sha256 claim is the digest
// of body.  The token expires after ttl so a captured delivery cannot be
// replayed indefinitely.
func SignWebhook(secret string, body []byte, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := webhookClaims{
		BodySHA256: bodyDigest(body),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyWebhook checks that token was signed with secret, has not expired and
// carries the digest of body.
func VerifyWebhook(secret, token string, body []byte) error {
	var claims webhookClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil || !parsed.Valid {
		return ErrBadSignature
	}
	if claims.BodySHA256 != bodyDigest(body) {
		return ErrBadSignature
	}
	return nil
}

func bodyDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
