package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the validity window for issued tokens.
const DefaultTokenTTL = time.Hour

// SigningKeySize is the byte length of a generated HMAC signing key.
const SigningKeySize = 32

// GenerateSigningKey returns a fresh random HMAC key. Used at startup
// when no key is configured; tokens signed with a generated key do not
// survive a process restart.
func GenerateSigningKey() ([]byte, error) {
	key := make([]byte, SigningKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	return key, nil
}

// TokenService issues and verifies compact HMAC-signed tokens carrying a
// subject and an expiry. The signing key is fixed for the process
// lifetime and read-only after construction, so Issue and Verify are safe
// for unbounded concurrent use without locking. There is no revocation
// list: expiry and account deactivation are the only lifecycle ends.
type TokenService struct {
	key []byte
	ttl time.Duration
}

// NewTokenService creates a token service with the given signing key and
// token lifetime. A zero ttl selects DefaultTokenTTL.
func NewTokenService(key []byte, ttl time.Duration) (*TokenService, error) {
	if len(key) == 0 {
		return nil, errors.New("token service requires a signing key")
	}
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	// Keep a private copy so callers cannot mutate the key afterwards.
	k := make([]byte, len(key))
	copy(k, key)
	return &TokenService{key: k, ttl: ttl}, nil
}

// Issue creates a signed token asserting that the identity's username was
// authenticated at issuance time.
func (s *TokenService) Issue(id *Identity) (string, error) {
	if id == nil || id.Username == "" {
		return "", errors.New("cannot issue token without a subject")
	}

	now := time.Now()
	claims := jwtlib.RegisteredClaims{
		Subject:   id.Username,
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(s.ttl)),
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify decodes the token, recomputes the signature over the decoded
// claims, and returns the subject when the signature matches, the input
// is well-formed, and the token has not expired. Every failure mode maps
// to ErrInvalidToken so callers cannot probe why a token was rejected.
func (s *TokenService) Verify(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", ErrInvalidToken
	}

	token, err := jwtlib.ParseWithClaims(tokenStr, &jwtlib.RegisteredClaims{},
		func(t *jwtlib.Token) (any, error) {
			if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.key, nil
		},
		jwtlib.WithValidMethods([]string{"HS256"}),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwtlib.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
