// Package auth issues and validates the JWTs protecting the admin
// surface. There is a single operator identity configured at deploy
// time; the service has no user store.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/david/rfp-harvester/internal/config"
)

var ErrInvalidCreds = errors.New("invalid credentials")

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service struct {
	operatorEmail string
	passwordHash  string
	secret        []byte
}

// NewService builds the auth service from server config. An empty
// jwt_secret gets an ephemeral random one, which invalidates tokens
// across restarts but keeps the admin surface usable in development.
func NewService(cfg config.ServerConfig) (*Service, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate fallback JWT secret: %w", err)
		}
		secret = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("[Auth] jwt_secret is not set; using ephemeral in-memory secret")
	}
	return &Service{
		operatorEmail: cfg.OperatorEmail,
		passwordHash:  cfg.OperatorPasswordHash,
		secret:        []byte(secret),
	}, nil
}

// Login checks the operator credentials and returns a signed token.
func (s *Service) Login(req LoginRequest) (*AuthResponse, error) {
	if s.operatorEmail == "" || s.passwordHash == "" {
		return nil, fmt.Errorf("operator credentials not configured")
	}
	emailMatch := subtle.ConstantTimeCompare([]byte(req.Email), []byte(s.operatorEmail)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(req.Password))
	if !emailMatch || passErr != nil {
		return nil, ErrInvalidCreds
	}

	expires := time.Now().Add(24 * time.Hour)
	claims := jwt.MapClaims{
		"sub": s.operatorEmail,
		"iat": time.Now().Unix(),
		"exp": expires.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}
	return &AuthResponse{Token: token, ExpiresAt: expires}, nil
}

// Validate parses a bearer token and returns its subject.
func (s *Service) Validate(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid or expired token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("invalid token subject")
	}
	return sub, nil
}
