package models

import (
	"time"
)

// EventKind тип события воронки
type EventKind string

const (
	EventSessionStarted EventKind = "session_started"
	EventStepVerified   EventKind = "step_verified"
	EventURLDisclosed   EventKind = "url_disclosed"
)

// FunnelEvent событие, которое асинхронно пишется в хранилище
type FunnelEvent struct {
	ID         int64     `json:"id"`
	Kind       EventKind `json:"kind"`
	LinkID     string    `json:"linkId"`
	SessionID  string    `json:"sessionId"`
	Step       int       `json:"step,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// LinkStats агрегированная статистика воронки по ссылке
type LinkStats struct {
	LinkID          string `json:"linkId"`
	Views           int64  `json:"views"`
	SessionsStarted int64  `json:"sessionsStarted"`
	StepsVerified   int64  `json:"stepsVerified"`
	URLsDisclosed   int64  `json:"urlsDisclosed"`
}

// Visitor данные запроса посетителя для событий воронки
type Visitor struct {
	IPAddress string
	UserAgent string
}
