package models

import (
	"slices"
	"time"
)

// Шаги воронки
const (
	StepInit   = 1
	StepScroll = 2
	StepDelay  = 3
)

// RequiredSteps шаги, без которых целевой URL не раскрывается
var RequiredSteps = []int{StepScroll, StepDelay}

// Session прохождение воронки одним посетителем
type Session struct {
	ID            string    `json:"id"`
	LinkID        string    `json:"linkId"`
	Step          int       `json:"step"`
	VerifiedSteps []int     `json:"verifiedSteps"`
	ExpiresAt     time.Time `json:"expiresAt"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ExpiredAt сообщает, истекла ли сессия к моменту now.
// Сессия ещё действительна ровно в момент ExpiresAt.
func (s *Session) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

func (s *Session) HasVerified(step int) bool {
	return slices.Contains(s.VerifiedSteps, step)
}

// Complete сообщает, пройдены ли все обязательные шаги
func (s *Session) Complete() bool {
	for _, step := range RequiredSteps {
		if !s.HasVerified(step) {
			return false
		}
	}
	return true
}
