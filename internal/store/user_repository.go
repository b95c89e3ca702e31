package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yae-assistant/yae/internal/model"
)

// UserRepository persists users.
type UserRepository struct {
	db *gorm.DB
}

// ByID returns the user with the given id or ErrNotFound.
func (r *UserRepository) ByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// ByDiscord returns the user holding the external-platform identifier.
func (r *UserRepository) ByDiscord(ctx context.Context, discordID string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("discord_id = ?", discordID).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// ByRole returns the oldest user holding role.
func (r *UserRepository) ByRole(ctx context.Context, role model.Role) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("role = ?", role).Order("id ASC").First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// All returns every user ordered by id.
func (r *UserRepository) All(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Create inserts user and assigns its id. A duplicate DiscordID yields ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if user.DiscordID != nil {
			if err := ensureDiscordFree(tx, *user.DiscordID, 0); err != nil {
				return err
			}
		}
		if err := tx.Omit(clause.Associations).Create(user).Error; err != nil {
			return translate(err)
		}
		return nil
	})
}

// Update applies the non-nil fields of upd to the user with the given id.
func (r *UserRepository) Update(ctx context.Context, id uint, upd model.UserUpdate) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			return translate(err)
		}

		if upd.Name != nil {
			user.Name = *upd.Name
		}
		if upd.Role != nil {
			user.Role = *upd.Role
		}
		if upd.DiscordID != nil {
			if err := ensureDiscordFree(tx, *upd.DiscordID, id); err != nil {
				return err
			}
			user.DiscordID = upd.DiscordID
		}
		if upd.DiscordUsername != nil {
			user.DiscordUsername = upd.DiscordUsername
		}

		if err := tx.Omit(clause.Associations).Save(&user).Error; err != nil {
			return translate(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Delete removes the user and, through cascading foreign keys, every
// session and message they own. It reports whether a user was removed.
func (r *UserRepository) Delete(ctx context.Context, id uint) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&model.User{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete user: %w", result.Error)
		}
		deleted = result.RowsAffected > 0
		return nil
	})
	return deleted, err
}

func ensureDiscordFree(tx *gorm.DB, discordID string, owner uint) error {
	var count int64
	query := tx.Model(&model.User{}).Where("discord_id = ?", discordID)
	if owner != 0 {
		query = query.Where("id <> ?", owner)
	}
	if err := query.Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check discord id: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: discord id %q already registered", ErrConflict, discordID)
	}
	return nil
}
