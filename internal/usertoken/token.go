// Package usertoken issues and verifies the signed, time-limited bearer
// tokens handed out at login. Tokens are HS256 JWTs carrying the user id
// as subject; verification failure means "no credential", never an error
// surfaced to the client.
package usertoken

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultIssuer = "resolvd"
	defaultTTL    = 7 * 24 * time.Hour
)

var errEmptySecret = errors.New("usertoken: signing secret is required")

// Codec signs and verifies bearer tokens with a shared HMAC secret.
type Codec struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// New builds a Codec. TTL of zero falls back to seven days.
func New(secret string, ttl time.Duration) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errEmptySecret
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Codec{
		secret: []byte(secret),
		issuer: defaultIssuer,
		ttl:    ttl,
	}, nil
}

// Issue signs a token whose subject is the user id.
func (c *Codec) Issue(userID string) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    c.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	})
	return token.SignedString(c.secret)
}

// Verify validates signature, issuer and expiry, returning the subject.
func (c *Codec) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return c.secret, nil
		},
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}
