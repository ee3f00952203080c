package models

import "time"

// AdminToken токен доступа к админ-API
type AdminToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
