package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/dopemusic/dopesite/models"
)

// MaxTitleLength is the longest title, in characters, a post may carry.
const MaxTitleLength = 100

// PostInput carries the editable fields of a post.
type PostInput struct {
	Title string
	Text  string
	// ImageFilename is the asset reference to store; nil clears it.
	ImageFilename *string
	AuthorID      uint
	// ExpectedVersion, when non-zero, makes Update fail with ErrStaleEdit on mismatch.
	ExpectedVersion uint
}

// PostStore persists posts.
type PostStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPostStore creates a PostStore backed by db.
func NewPostStore(db *gorm.DB) *PostStore {
	return &PostStore{db: db, now: time.Now}
}

// ListAll returns every post, newest first. Posts created at the same instant
// are ordered by id, highest first.
func (s *PostStore) ListAll(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// Get loads a single post.
func (s *PostStore) Get(ctx context.Context, id uint) (models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Post{}, ErrPostNotFound
		}
		return models.Post{}, fmt.Errorf("load post %d: %w", id, err)
	}
	return post, nil
}

// Create validates and stores a new post stamped with the current UTC time.
func (s *PostStore) Create(ctx context.Context, in PostInput) (models.Post, error) {
	title, text, err := validate(in)
	if err != nil {
		return models.Post{}, err
	}

	now := s.now().UTC()
	post := models.Post{
		Title:         title,
		Text:          text,
		ImageFilename: normalizeRef(in.ImageFilename),
		AuthorID:      in.AuthorID,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&post).Error
	})
	if err != nil {
		return models.Post{}, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

// Update overwrites title, text and image reference of a post and returns the
// stored result. CreatedAt is never modified.
func (s *PostStore) Update(ctx context.Context, id uint, in PostInput) (models.Post, error) {
	title, text, err := validate(in)
	if err != nil {
		return models.Post{}, err
	}

	var updated models.Post
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Post
		if err := tx.First(&current, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return err
		}
		if in.ExpectedVersion != 0 && in.ExpectedVersion != current.Version {
			return ErrStaleEdit
		}

		q := tx.Model(&models.Post{}).Where("id = ?", id)
		if in.ExpectedVersion != 0 {
			q = q.Where("version = ?", in.ExpectedVersion)
		}
		res := q.Updates(map[string]interface{}{
			"title":          title,
			"text":           text,
			"image_filename": normalizeRef(in.ImageFilename),
			"version":        gorm.Expr("version + 1"),
			"updated_at":     s.now().UTC(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleEdit
		}
		return tx.First(&updated, id).Error
	})
	if err != nil {
		if errors.Is(err, ErrPostNotFound) || errors.Is(err, ErrStaleEdit) {
			return models.Post{}, err
		}
		return models.Post{}, fmt.Errorf("update post %d: %w", id, err)
	}
	return updated, nil
}

// Delete removes a post permanently. beforeCommit, when given, runs inside the
// transaction after the row is deleted; returning an error rolls the deletion back.
func (s *PostStore) Delete(ctx context.Context, id uint, beforeCommit func(models.Post) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.First(&post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return err
		}
		if err := tx.Delete(&models.Post{}, id).Error; err != nil {
			return err
		}
		if beforeCommit != nil {
			return beforeCommit(post)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPostNotFound) {
			return err
		}
		return fmt.Errorf("delete post %d: %w", id, err)
	}
	return nil
}

// ImageRefs returns every image reference currently held by a post.
func (s *PostStore) ImageRefs(ctx context.Context) ([]string, error) {
	var refs []string
	err := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("image_filename IS NOT NULL AND image_filename <> ''").
		Pluck("image_filename", &refs).Error
	if err != nil {
		return nil, fmt.Errorf("list image refs: %w", err)
	}
	return refs, nil
}

// ValidatePost reports the error Create and Update would return for in.
func ValidatePost(in PostInput) error {
	_, _, err := validate(in)
	return err
}

func validate(in PostInput) (string, string, error) {
	title := strings.TrimSpace(in.Title)
	text := strings.TrimSpace(in.Text)
	var empty []string
	if title == "" {
		empty = append(empty, "title")
	}
	if text == "" {
		empty = append(empty, "text")
	}
	if len(empty) > 0 {
		return "", "", &ValidationError{Fields: empty}
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", "", &ValidationError{TooLong: []string{"title"}}
	}
	return title, text, nil
}

func normalizeRef(ref *string) *string {
	if ref == nil || *ref == "" {
		return nil
	}
	v := *ref
	return &v
}
