package model

import (
	"github.com/google/uuid"
)

// Platform is the chat platform a sender identifier belongs to.
type Platform string

const (
	PlatformDiscord Platform = "discord"
	PlatformLocal   Platform = "local"
)

// Interface selects the response style of the assistant.
type Interface string

const (
	InterfaceText  Interface = "text"
	InterfaceVoice Interface = "voice"
)

// ChatMessage identifies the sender and the text they sent.
type ChatMessage struct {
	Identifier string `json:"identifier" validate:"required,max=64"`
	Content    string `json:"content" validate:"required"`
}

// ContextMessage is extra caller-provided context for a single turn.
type ContextMessage struct {
	Content string `json:"content"`
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Message     ChatMessage      `json:"message" validate:"required"`
	Interface   Interface        `json:"interface,omitempty" validate:"omitempty,oneof=text voice"`
	Platform    Platform         `json:"platform,omitempty" validate:"omitempty,oneof=discord local"`
	Session     uuid.UUID        `json:"session"`
	Attachments []string         `json:"attachments,omitempty"`
	Context     []ContextMessage `json:"context,omitempty"`
}
