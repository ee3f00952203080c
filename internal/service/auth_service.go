package service

import (
	"crypto/subtle"
	"time"

	"github.com/SergeiKhy/linkgate/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	adminSubject    = "admin"
	tokenIssuer     = "linkgate"
	defaultTokenTTL = 12 * time.Hour
)

// AuthService выдаёт и проверяет токены администратора
type AuthService interface {
	Login(password string) (*models.AdminToken, error)
	// Verify возвращает subject валидного токена
	Verify(token string) (string, error)
}

type authService struct {
	password []byte
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// AuthOption настройка AuthService
type AuthOption func(*authService)

// WithAuthClock подменяет источник времени для выдачи и проверки токенов
func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *authService) { s.now = now }
}

func NewAuthService(password, secret string, ttl time.Duration, opts ...AuthOption) AuthService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	s := &authService{
		password: []byte(password),
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *authService) Login(password string) (*models.AdminToken, error) {
	if len(s.password) == 0 || subtle.ConstantTimeCompare([]byte(password), s.password) != 1 {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := &jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    tokenIssuer,
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	return &models.AdminToken{Token: signed, ExpiresAt: expiresAt.UTC()}, nil
}

func (s *authService) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithSubject(adminSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
