package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthEventType names an authentication operation.
type AuthEventType string

const (
	AuthEventSignup AuthEventType = "signup"
	AuthEventLogin  AuthEventType = "login"
	AuthEventLogout AuthEventType = "logout"
)

// AuthOutcome is the result of an authentication operation.
type AuthOutcome string

const (
	AuthOutcomeSuccess AuthOutcome = "success"
	AuthOutcomeFailure AuthOutcome = "failure"
)

// AuthEvent is an audit record of one authentication attempt.
// Passwords and hashes are never stored here.
type AuthEvent struct {
	ID        uuid.UUID     `json:"id" gorm:"type:char(36);primaryKey"`
	Event     AuthEventType `json:"event" gorm:"type:varchar(16);not null;index"`
	Outcome   AuthOutcome   `json:"outcome" gorm:"type:varchar(16);not null;index"`
	Email     string        `json:"email" gorm:"size:255;index"`
	Reason    string        `json:"reason,omitempty" gorm:"size:255"`
	IP        string        `json:"ip,omitempty" gorm:"size:64"`
	CreatedAt time.Time     `json:"created_at"`
}

// BeforeCreate sets UUID before creating the record.
func (e *AuthEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
