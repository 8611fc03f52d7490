package host

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the payload of a session token. Subject holds the user
// name and Database the target the token is good for; "*" allows any.
type SessionClaims struct {
	Database string `json:"db"`
	jwt.RegisteredClaims
}

// IssueToken signs a token that lets user open sessions on database until ttl
// has passed.
func IssueToken(secret []byte, user, database string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := SessionClaims{
		Database: database,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

func parseToken(secret []byte, tokenString string) (*SessionClaims, error) {
	var claims SessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	return &claims, nil
}

// looksLikeToken reports whether credential has the three dot-separated parts
// of a compact JWT.
func looksLikeToken(credential string) bool {
	return strings.Count(credential, ".") == 2 && strings.HasPrefix(credential, "ey")
}

// authenticate checks credential as a session token when a secret is
// configured and it looks like one, otherwise as a password.
func (e *Engine) authenticate(target, user, credential string) error {
	if len(e.opts.TokenSecret) > 0 && looksLikeToken(credential) {
		claims, err := parseToken(e.opts.TokenSecret, credential)
		if err != nil {
			return fmt.Errorf("token rejected: %w", err)
		}
		if claims.Subject != user {
			return fmt.Errorf("token was issued to %q", claims.Subject)
		}
		if claims.Database != "*" && claims.Database != target {
			return fmt.Errorf("token is not valid for %q", target)
		}
		return nil
	}
	if e.opts.Users == nil {
		return nil
	}
	pw, ok := e.opts.Users[user]
	if !ok || subtle.ConstantTimeCompare([]byte(pw), []byte(credential)) != 1 {
		return fmt.Errorf("invalid user or password")
	}
	return nil
}

// minSecretLen is the shortest signing key accepted for HS256.
const minSecretLen = 32

// LoadTokenSecret reads the signing key at path, creating a random one if the
// file does not exist. Existing keys shorter than 32 bytes are rejected.
func LoadTokenSecret(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		key = make([]byte, minSecretLen)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate random token secret: %w", err)
		}
		if err := os.WriteFile(path, key, 0600); err != nil {
			return nil, fmt.Errorf("failed to write token secret: %w", err)
		}
		return key, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token secret: %w", err)
	}
	if len(key) < minSecretLen {
		return nil, fmt.Errorf("token secret in %s is %d bytes, need at least %d", path, len(key), minSecretLen)
	}
	return key, nil
}
