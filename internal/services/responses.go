package services

import (
	"time"

	"conntree/internal/domain"
)

type ImportResult struct {
	Dir      string
	Sessions []domain.PuttySessionInfo
	Skipped  []string
	Duration time.Duration
}

type SessionEventType string

const (
	SessionOpened   SessionEventType = "opened"
	SessionClosed   SessionEventType = "closed"
	SessionSwitched SessionEventType = "switched"
)

type SessionEvent struct {
	Type       SessionEventType
	NodeID     string
	Name       string
	Open       int
	ErrMessage string
}
