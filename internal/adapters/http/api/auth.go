package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	errNoToken      = errors.New("missing bearer token")
	errNoSubject    = errors.New("token has no subject")
	errSigningAlg   = errors.New("unexpected signing method")
	errInvalidToken = errors.New("invalid token")
)

// Authenticator verifies HS256 bearer tokens. The subject claim is the identity.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator returns an Authenticator for secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Subject returns the verified subject of the request's bearer token.
func (a *Authenticator) Subject(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", errNoToken
	}

	token, err := a.parser.ParseWithClaims(strings.TrimSpace(raw), &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errSigningAlg
		}
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", errInvalidToken, err)
	}
	if !token.Valid {
		return "", errInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("%w: %w", errInvalidToken, err)
	}
	if strings.TrimSpace(sub) == "" {
		return "", errNoSubject
	}
	return sub, nil
}
