// Package model defines the persisted entities and API payloads of the chat backend.
package model

// Role distinguishes human users from the assistant persona.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// User is a participant in sessions. DiscordID is the external-platform
// identifier and is unique when set.
type User struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	Role            Role    `gorm:"type:varchar(16);not null;default:user;index" json:"role"`
	Name            string  `gorm:"not null" json:"name"`
	DiscordID       *string `gorm:"uniqueIndex" json:"discord_id,omitempty"`
	DiscordUsername *string `json:"discord_username,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// UserUpdate carries a partial update; nil fields are left untouched.
type UserUpdate struct {
	Name            *string `json:"name,omitempty" validate:"omitempty,min=1,max=128"`
	Role            *Role   `json:"role,omitempty" validate:"omitempty,oneof=user assistant"`
	DiscordID       *string `json:"discord_id,omitempty" validate:"omitempty,min=1,max=64"`
	DiscordUsername *string `json:"discord_username,omitempty" validate:"omitempty,max=128"`
}

// Empty reports whether the update changes nothing.
func (u UserUpdate) Empty() bool {
	return u.Name == nil && u.Role == nil && u.DiscordID == nil && u.DiscordUsername == nil
}

// CreateUserRequest is the body of POST /v1/users.
type CreateUserRequest struct {
	Name            string  `json:"name" validate:"required,min=1,max=128"`
	Role            Role    `json:"role,omitempty" validate:"omitempty,oneof=user assistant"`
	DiscordID       *string `json:"discord_id,omitempty" validate:"omitempty,min=1,max=64"`
	DiscordUsername *string `json:"discord_username,omitempty" validate:"omitempty,max=128"`
}

// UserResponse is the outward view of a user.
type UserResponse struct {
	ID              uint    `json:"id"`
	Name            string  `json:"name"`
	Role            Role    `json:"role"`
	DiscordID       *string `json:"discord_id,omitempty"`
	DiscordUsername *string `json:"discord_username,omitempty"`
}

// NewUserResponse maps a user to its response.
func NewUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:              u.ID,
		Name:            u.Name,
		Role:            u.Role,
		DiscordID:       u.DiscordID,
		DiscordUsername: u.DiscordUsername,
	}
}
