package models

import (
	"time"
)

// Link защищённая ссылка: публичный идентификатор -> целевой URL
type Link struct {
	ID          string    `json:"id"`
	OriginalURL string    `json:"originalUrl"`
	Title       string    `json:"title"`
	Views       int64     `json:"views"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CreateLinkInput struct {
	ID          *string
	OriginalURL string
	Title       string
	Active      *bool
}
