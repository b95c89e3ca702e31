package model

import (
	"time"

	"github.com/google/uuid"
)

// Visibility controls who may see a session.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilitySecret  Visibility = "secret"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilitySecret:
		return true
	}
	return false
}

// Session is a conversation owned by one user. ExternalID is the only
// identifier ever exposed to callers.
type Session struct {
	ID         uint       `gorm:"primaryKey"`
	ExternalID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	Visibility Visibility `gorm:"type:varchar(16);not null;default:public"`
	CreatedAt  time.Time  `gorm:"not null"`
	UpdatedAt  time.Time  `gorm:"not null;index"`
	OwnerID    uint       `gorm:"not null;index"`
	Owner      *User      `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
}

func (Session) TableName() string {
	return "sessions"
}

// CreateSessionRequest is the body of POST /v1/sessions.
type CreateSessionRequest struct {
	Identifier string     `json:"identifier" validate:"required,max=64"`
	Platform   Platform   `json:"platform,omitempty" validate:"omitempty,oneof=discord local"`
	Visibility Visibility `json:"visibility,omitempty" validate:"omitempty,oneof=public private secret"`
}

// SessionResponse is the outward view of a session.
type SessionResponse struct {
	UUID      uuid.UUID `json:"uuid"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Owner     string    `json:"owner"`
}

// NewSessionResponse maps a session and its owner name to a response.
func NewSessionResponse(s *Session, owner string) SessionResponse {
	return SessionResponse{
		UUID:      s.ExternalID,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Owner:     owner,
	}
}
