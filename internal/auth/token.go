// Package auth issues and validates the session tokens handed out after a
// password or face login.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when token validation fails
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when token is expired
	ErrExpiredToken = errors.New("token expired")
	// ErrInvalidClaims is returned when claims are invalid
	ErrInvalidClaims = errors.New("invalid claims")
)

// Method records how the user proved their identity.
type Method string

const (
	MethodPassword Method = "password"
	MethodFace     Method = "face"
)

// Claims are the JWT claims of a login session.
type Claims struct {
	Username string `json:"username"`
	Method   Method `json:"method"`

	// Confidence is set for face logins only.
	Confidence *float64 `json:"confidence,omitempty"`


	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 session tokens.
type TokenService struct {
	secretKey []byte
	issuer    string
	expiresIn time.Duration
}

func NewTokenService(secretKey, issuer string, expiresIn time.Duration) *TokenService {
	return &TokenService{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		expiresIn: expiresIn,
	}
}

// Issue signs a token for username. confidence is nil for password logins.
func (s *TokenService) Issue(username string, method Method, confidence *float64) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.expiresIn)

	claims := Claims{
		Username:   username,
		Method:     method,
		Confidence: confidence,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate parses a token and checks its signature, issuer and expiry.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(s.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Username == "" {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}
