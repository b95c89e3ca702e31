package model

import (
	"time"
)

// Message is one immutable turn in a session. Ordering inside a session is
// CreatedAt ascending with ID breaking ties.
type Message struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"not null;index"`
	Content   string    `gorm:"type:text;not null"`
	UserID    uint      `gorm:"not null;index"`
	SessionID uint      `gorm:"not null;index"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Session   *Session  `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`

	// ReplyID is set on assistant replies written through the reply queue.
	// A message whose ReplyID is already stored is not written again.
	ReplyID *string `gorm:"size:64;uniqueIndex"`
}

func (Message) TableName() string {
	return "messages"
}

// MessageResponse is the outward view of a message.
type MessageResponse struct {
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessageResponse maps a message with a preloaded author.
func NewMessageResponse(m *Message) MessageResponse {
	resp := MessageResponse{
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if m.User != nil {
		resp.Name = m.User.Name
	}
	return resp
}

// AddMessageRequest is the body of POST /v1/sessions/{uuid}/messages.
type AddMessageRequest struct {
	Message  ChatMessage `json:"message" validate:"required"`
	Platform Platform    `json:"platform,omitempty" validate:"omitempty,oneof=discord local"`
}
