package service

import (
	"errors"
	"fmt"
)

// ErrValidation оборачивает все ошибки валидации входных данных
var ErrValidation = errors.New("validation error")

// Ошибки валидации
var (
	ErrInvalidURL       = fmt.Errorf("%w: destination must be an absolute http(s) URL", ErrValidation)
	ErrInvalidID        = fmt.Errorf("%w: link id must be 2-64 characters of letters, digits, '-' or '_'", ErrValidation)
	ErrInvalidTitle     = fmt.Errorf("%w: title is required and must be at most 200 characters", ErrValidation)
	ErrInvalidPlacement = fmt.Errorf("%w: placement is required and must be at most 64 characters", ErrValidation)
	ErrInvalidAdCode    = fmt.Errorf("%w: ad code is required", ErrValidation)
)

// Ошибки реестров и конечного автомата сессий
var (
	ErrLinkNotFound    = errors.New("link not found or inactive")
	ErrLinkExists      = errors.New("link id already exists")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrStepsIncomplete = errors.New("verification steps incomplete")
	ErrLinkMissing     = errors.New("link no longer exists")
)

// Ошибки аутентификации администратора
var (
	ErrInvalidCredentials = errors.New("invalid admin password")
	ErrInvalidToken       = errors.New("invalid or expired admin token")
)
