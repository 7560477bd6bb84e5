// Package members provides database operations for library members.
//
// # Usage
//
//	repo := members.NewRepository(db)
//	member, err := repo.GetByEmail(ctx, "reader@example.com")
package members

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/apperr"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/entities"
)

var (
	ErrMemberNotFound = apperr.New(apperr.NotFound, "member not found")
	ErrEmailTaken     = apperr.New(apperr.Conflict, "email already registered")
	ErrNotFirst       = apperr.New(apperr.Conflict, "members already registered")
)

// Repository handles all member database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new members repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a member. The email column is unique; a duplicate returns
// ErrEmailTaken.
func (r *Repository) Create(ctx context.Context, member *entities.Member) error {
	err := r.db.WithContext(ctx).Create(member).Error
	if database.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

// GetByID retrieves a member by ID.
func (r *Repository) GetByID(ctx context.Context, id uint) (*entities.Member, error) {
	var member entities.Member
	err := r.db.WithContext(ctx).First(&member, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &member, nil
}

// GetByEmail retrieves a member by exact email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*entities.Member, error) {
	var member entities.Member
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member by email: %w", err)
	}
	return &member, nil
}

// CreateFirst inserts member only while the table is empty and returns
// ErrNotFirst otherwise. The emptiness check and the insert run in one
// transaction; on postgres the table is locked against concurrent inserts
// for its duration.
func (r *Repository) CreateFirst(ctx context.Context, member *entities.Member) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("LOCK TABLE members IN SHARE ROW EXCLUSIVE MODE").Error; err != nil {
				return err
			}
		}

		var count int64
		if err := tx.Model(&entities.Member{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrNotFirst
		}
		return tx.Create(member).Error
	})
	if errors.Is(err, ErrNotFirst) {
		return err
	}
	if database.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create first member: %w", err)
	}
	return nil
}

// Exists reports whether a member with id exists.
func (r *Repository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Member{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check member: %w", err)
	}
	return count > 0, nil
}
