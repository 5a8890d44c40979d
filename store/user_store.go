package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/dopemusic/dopesite/models"
	"github.com/dopemusic/dopesite/utils"
)

// dummyHash is compared against when the username is unknown so both failure
// paths cost one bcrypt comparison.
var dummyHash = func() string {
	h, err := utils.HashPassword("dopesite-dummy-password")
	if err != nil {
		panic(err)
	}
	return h
}()

// UserStore holds operator credentials.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore creates a UserStore backed by db.
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// Verify reports whether password matches the stored hash of username.
// Unknown users and wrong passwords both yield false.
func (s *UserStore) Verify(ctx context.Context, username, password string) (models.User, bool) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		utils.CheckPassword(dummyHash, password)
		return models.User{}, false
	}
	if !utils.CheckPassword(user.PasswordHash, password) {
		return models.User{}, false
	}
	return user, true
}

// Create registers a new user with a bcrypt-hashed password.
func (s *UserStore) Create(ctx context.Context, username, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	var empty []string
	if username == "" {
		empty = append(empty, "username")
	}
	if password == "" {
		empty = append(empty, "password")
	}
	if len(empty) > 0 {
		return models.User{}, &ValidationError{Fields: empty}
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{Username: username, PasswordHash: hash}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrUserExists
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			return models.User{}, err
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// List returns all users ordered by id.
func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
