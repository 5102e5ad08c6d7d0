// Package jwt implements HMAC-SHA256 signed tokens (RFC 7519) for
// locally minted credentials: service-to-service calls and test tokens
// that must verify without a round trip to the identity provider.
package jwt

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMissingSigningKey = errors.New("jwt: missing signing key")
	ErrInvalidToken      = errors.New("jwt: invalid token")
	ErrInvalidSignature  = errors.New("jwt: invalid signature")
	ErrExpiredToken      = errors.New("jwt: token is expired")
	ErrUnexpectedAlg     = errors.New("jwt: unexpected signing algorithm")
)

const (
	headerType = "JWT"
	headerAlg  = "HS256"
)

type header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
}

// Claims is the claim set carried by locally signed tokens: the
// registered temporal claims plus the email custom claim the identity
// layer reads alongside the subject.
type Claims struct {
	Subject   string `json:"sub,omitempty"`
	Email     string `json:"email,omitempty"`
	Issuer    string `json:"iss,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	NotBefore int64  `json:"nbf,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
}

// Valid checks the temporal claims. Zero values are treated as unset
// per RFC 7519.
func (c Claims) Valid() error {
	now := time.Now().Unix()
	if c.ExpiresAt > 0 && now > c.ExpiresAt {
		return ErrExpiredToken
	}
	if c.NotBefore > 0 && now < c.NotBefore {
		return ErrInvalidToken
	}
	return nil
}

// Service signs and verifies tokens with a symmetric key. The key is
// held in memory only and should be at least 32 bytes.
type Service struct {
	signingKey []byte
}

// New creates a token service from the configured secret.
func New(signingKey string) (*Service, error) {
	if signingKey == "" {
		return nil, ErrMissingSigningKey
	}
	return &Service{signingKey: []byte(signingKey)}, nil
}

// Generate returns a signed token carrying the given claims.
func (s *Service) Generate(claims Claims) (string, error) {
	headerJSON, err := json.Marshal(header{Type: headerType, Algorithm: headerAlg})
	if err != nil {
		return "", fmt.Errorf("jwt: marshal header: %w", err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("jwt: marshal claims: %w", err)
	}

	payload := b64encode(headerJSON) + "." + b64encode(claimsJSON)
	return payload + "." + s.sign(payload), nil
}

// Parse verifies the token's signature, algorithm, and temporal claims,
// and returns the decoded claim set.
func (s *Service) Parse(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, ErrInvalidToken
	}

	// Signature first, before trusting anything inside the token.
	payload := parts[0] + "." + parts[1]
	expected := s.sign(payload)
	if subtle.ConstantTimeCompare([]byte(parts[2]), []byte(expected)) != 1 {
		return Claims{}, ErrInvalidSignature
	}

	headerJSON, err := b64decode(parts[0])
	if err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}
	var h header
	if err := json.Unmarshal(headerJSON, &h); err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}
	// Reject anything but HS256 to prevent algorithm confusion.
	if h.Algorithm != headerAlg {
		return Claims{}, ErrUnexpectedAlg
	}

	claimsJSON, err := b64decode(parts[1])
	if err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}
	var claims Claims
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}

	if err := claims.Valid(); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

func (s *Service) sign(payload string) string {
	h := hmac.New(sha256.New, s.signingKey)
	h.Write([]byte(payload))
	return b64encode(h.Sum(nil))
}

// JWT uses unpadded base64url per RFC 7515.
func b64encode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func b64decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
