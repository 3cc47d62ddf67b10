package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthService issues and validates the operator's bearer tokens. There is a
// single operator credential, configured through the environment; no user
// database exists.
type AuthService struct {
	operatorEmail string
	passwordHash  string
	jwtSecret     []byte
	jwtExpiry     time.Duration
}

func NewAuthService(email, passwordHash, secret string, expiryHours int) *AuthService {
	if expiryHours <= 0 {
		expiryHours = 24
	}
	return &AuthService{
		operatorEmail: email,
		passwordHash:  passwordHash,
		jwtSecret:     []byte(secret),
		jwtExpiry:     time.Duration(expiryHours) * time.Hour,
	}
}

// Enabled reports whether an operator credential is configured.
func (s *AuthService) Enabled() bool {
	return s.operatorEmail != "" && s.passwordHash != "" && len(s.jwtSecret) > 0
}

// Login verifies the operator credential and returns a signed token.
func (s *AuthService) Login(email, password string) (string, error) {
	if !s.Enabled() {
		return "", errors.New("operator auth is not configured")
	}
	if email != s.operatorEmail {
		return "", errors.New("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"role":  "operator",
		"exp":   time.Now().Add(s.jwtExpiry).Unix(),
		"iat":   time.Now().Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken verifies a token and returns its claims.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}
