package model

import "time"

// FlowEvent is one journal row: a state transition of the login flow.
// Tokens and OTP codes are never stored.
type FlowEvent struct {
	ID           int64        `gorm:"primaryKey"`
	SupervisorID string       `gorm:"size:128;index"`
	FromState    SessionState `gorm:"size:32;not null"`
	ToState      SessionState `gorm:"size:32;not null"`
	Event        string       `gorm:"size:64;not null"`
	Outcome      string       `gorm:"size:128"`
	CreatedAt    time.Time    `gorm:"not null;index"`
}
