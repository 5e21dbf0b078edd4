package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/devarsh10/userbase/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sentinel errors returned by the user store. Compare with errors.Is.
var (
	// ErrUserNotFound is returned when no user matches the given email.
	ErrUserNotFound = errors.New("repositories: user not found")

	// ErrDuplicateEmail is returned when an insert would violate the
	// unique index on email. The database constraint is the authoritative
	// guard; any handler-level existence check is advisory only.
	ErrDuplicateEmail = errors.New("repositories: email already registered")

	// ErrImageAlreadySet is returned by SetImagePath when the user already
	// has an image. The image path transitions nil -> set exactly once.
	ErrImageAlreadySet = errors.New("repositories: user already has an image")
)

// UserStore is the persistence boundary for user records. The gorm-backed
// implementation is installed by ConnectDatabase; tests substitute their own.
type UserStore interface {
	// FindAll returns every user. The password hash is not selected.
	FindAll(ctx context.Context) ([]models.User, error)
	// FindByEmail returns the user with the given (lowercased) email,
	// including the password hash, or ErrUserNotFound.
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// Create inserts a new user. Returns ErrDuplicateEmail if the email
	// unique constraint rejects the insert.
	Create(ctx context.Context, user *models.User) error
	// Save persists modified fields of an existing user.
	Save(ctx context.Context, user *models.User) error
	// SetImagePath sets the image path in a single conditional update,
	// guarded by image_path IS NULL. Returns ErrImageAlreadySet if the
	// guard fails, so concurrent uploads cannot both win.
	SetImagePath(ctx context.Context, id uuid.UUID, path string) error
	// Delete removes the user permanently. Returns ErrUserNotFound if no
	// row was deleted.
	Delete(ctx context.Context, user *models.User) error
}

var Users UserStore

type gormUserStore struct {
	db *gorm.DB
}

func (s *gormUserStore) FindAll(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Select("id", "full_name", "email", "image_path", "created_at", "updated_at").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	return users, nil
}

func (s *gormUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrUserNotFound
	default:
		return nil, fmt.Errorf("find user by email: %w", err)
	}
}

func (s *gormUserStore) Create(ctx context.Context, user *models.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateEmail
	default:
		return fmt.Errorf("create user: %w", err)
	}
}

func (s *gormUserStore) Save(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *gormUserStore) SetImagePath(ctx context.Context, id uuid.UUID, path string) error {
	res := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND image_path IS NULL", id).
		Update("image_path", path)
	if res.Error != nil {
		return fmt.Errorf("set image path: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrImageAlreadySet
	}
	return nil
}

func (s *gormUserStore) Delete(ctx context.Context, user *models.User) error {
	res := s.db.WithContext(ctx).Delete(user)
	if res.Error != nil {
		return fmt.Errorf("delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
