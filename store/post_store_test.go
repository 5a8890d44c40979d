package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dopemusic/dopesite/config"
	"github.com/dopemusic/dopesite/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.InitDatabase(config.AppConfig{
		DBDriver: "sqlite",
		DBPath:   filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	}, models.All()...)
	require.NoError(t, err)
	return db
}

func strPtr(s string) *string { return &s }

func countPosts(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Post{}).Count(&n).Error)
	return n
}

func TestPostStore_CreateStampsUTC(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := NewPostStore(db)
	local := time.Date(2024, 5, 1, 15, 4, 5, 0, time.FixedZone("MSK", 3*3600))
	s.now = func() time.Time { return local }

	post, err := s.Create(ctx, PostInput{Title: "Drop 1", Text: "New release"})
	require.NoError(t, err)

	assert.NotZero(t, post.ID)
	assert.Equal(t, "Drop 1", post.Title)
	assert.Nil(t, post.ImageFilename)
	assert.Equal(t, time.UTC, post.CreatedAt.Location())
	assert.True(t, post.CreatedAt.Equal(local))

	stored, err := s.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, stored.CreatedAt.Equal(local))
	assert.Equal(t, uint(1), stored.Version)
}

func TestPostStore_CreateRejectsEmptyFields(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := NewPostStore(db)

	cases := []PostInput{
		{Title: "", Text: "body"},
		{Title: "title", Text: ""},
		{Title: "   ", Text: "\n\t"},
	}
	for _, in := range cases {
		_, err := s.Create(ctx, in)
		assert.True(t, IsValidation(err), "expected validation error for %+v", in)
	}
	assert.EqualValues(t, 0, countPosts(t, db))
}

func TestPostStore_TitleLengthIsBounded(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := NewPostStore(db)

	// the bound counts characters, not bytes
	longest := strings.Repeat("é", MaxTitleLength)
	post, err := s.Create(ctx, PostInput{Title: "  " + longest + "  ", Text: "body"})
	require.NoError(t, err)
	assert.Equal(t, longest, post.Title)

	_, err = s.Create(ctx, PostInput{Title: longest + "x", Text: "body"})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Equal(t, []string{"title"}, ve.TooLong)
	assert.Empty(t, ve.Fields)

	_, err = s.Update(ctx, post.ID, PostInput{Title: strings.Repeat("t", 300), Text: "body"})
	assert.True(t, IsValidation(err))
	assert.EqualValues(t, 1, countPosts(t, db))

	stored, err := s.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, longest, stored.Title)
}

func TestPostStore_CreateTrimsAndAssignsUniqueIDs(t *testing.T) {
	ctx := context.Background()
	s := NewPostStore(newTestDB(t))

	a, err := s.Create(ctx, PostInput{Title: "  A ", Text: " one ", ImageFilename: strPtr("x_a.png")})
	require.NoError(t, err)
	b, err := s.Create(ctx, PostInput{Title: "B", Text: "two", ImageFilename: strPtr("")})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "A", a.Title)
	assert.Equal(t, "one", a.Text)
	assert.Equal(t, "x_a.png", a.Image())
	assert.False(t, b.HasImage())
}

func TestPostStore_ListAllNewestFirstWithIDTieBreak(t *testing.T) {
	ctx := context.Background()
	s := NewPostStore(newTestDB(t))
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	at := func(d time.Duration) { s.now = func() time.Time { return base.Add(d) } }

	at(0)
	oldest, err := s.Create(ctx, PostInput{Title: "oldest", Text: "t"})
	require.NoError(t, err)
	at(time.Hour)
	tieLow, err := s.Create(ctx, PostInput{Title: "tie-low", Text: "t"})
	require.NoError(t, err)
	tieHigh, err := s.Create(ctx, PostInput{Title: "tie-high", Text: "t"})
	require.NoError(t, err)
	at(30 * time.Minute)
	middle, err := s.Create(ctx, PostInput{Title: "middle", Text: "t"})
	require.NoError(t, err)

	posts, err := s.ListAll(ctx)
	require.NoError(t, err)
	var ids []uint
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []uint{tieHigh.ID, tieLow.ID, middle.ID, oldest.ID}, ids)
}

func TestPostStore_GetNotFound(t *testing.T) {
	_, err := NewPostStore(newTestDB(t)).Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestPostStore_UpdateKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := NewPostStore(newTestDB(t))
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return created }
	post, err := s.Create(ctx, PostInput{Title: "t", Text: "b", ImageFilename: strPtr("old.png")})
	require.NoError(t, err)

	s.now = func() time.Time { return created.Add(48 * time.Hour) }
	updated, err := s.Update(ctx, post.ID, PostInput{Title: "t2", Text: "b2"})
	require.NoError(t, err)

	assert.Equal(t, "t2", updated.Title)
	assert.Equal(t, "b2", updated.Text)
	assert.Nil(t, updated.ImageFilename)
	assert.True(t, updated.CreatedAt.Equal(created))
	assert.Equal(t, uint(2), updated.Version)
}

func TestPostStore_UpdateValidationLeavesRowUntouched(t *testing.T) {
	ctx := context.Background()
	s := NewPostStore(newTestDB(t))
	post, err := s.Create(ctx, PostInput{Title: "keep", Text: "me"})
	require.NoError(t, err)

	_, err = s.Update(ctx, post.ID, PostInput{Title: "", Text: "changed"})
	assert.True(t, IsValidation(err))

	stored, err := s.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep", stored.Title)
	assert.Equal(t, "me", stored.Text)
	assert.Equal(t, uint(1), stored.Version)
}

func TestPostStore_UpdateMissing(t *testing.T) {
	_, err := NewPostStore(newTestDB(t)).Update(context.Background(), 9, PostInput{Title: "a", Text: "b"})
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestPostStore_UpdateStaleVersion(t *testing.T) {
	ctx := context.Background()
	s := NewPostStore(newTestDB(t))
	post, err := s.Create(ctx, PostInput{Title: "a", Text: "b"})
	require.NoError(t, err)

	_, err = s.Update(ctx, post.ID, PostInput{Title: "first", Text: "b", ExpectedVersion: 1})
	require.NoError(t, err)

	_, err = s.Update(ctx, post.ID, PostInput{Title: "second", Text: "b", ExpectedVersion: 1})
	assert.ErrorIs(t, err, ErrStaleEdit)

	// last-write-wins when no version is supplied
	updated, err := s.Update(ctx, post.ID, PostInput{Title: "third", Text: "b"})
	require.NoError(t, err)
	assert.Equal(t, "third", updated.Title)
}

func TestPostStore_Delete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := NewPostStore(db)
	post, err := s.Create(ctx, PostInput{Title: "a", Text: "b", ImageFilename: strPtr("img.png")})
	require.NoError(t, err)

	var seen models.Post
	require.NoError(t, s.Delete(ctx, post.ID, func(p models.Post) error {
		seen = p
		return nil
	}))
	assert.Equal(t, "img.png", seen.Image())

	_, err = s.Get(ctx, post.ID)
	assert.ErrorIs(t, err, ErrPostNotFound)
	assert.ErrorIs(t, s.Delete(ctx, post.ID, nil), ErrPostNotFound)
}

func TestPostStore_DeleteRollsBackOnHookError(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := NewPostStore(db)
	post, err := s.Create(ctx, PostInput{Title: "a", Text: "b"})
	require.NoError(t, err)

	err = s.Delete(ctx, post.ID, func(models.Post) error { return assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)
	assert.EqualValues(t, 1, countPosts(t, db))
}

func TestPostStore_ImageRefs(t *testing.T) {
	ctx := context.Background()
	s := NewPostStore(newTestDB(t))
	_, err := s.Create(ctx, PostInput{Title: "a", Text: "b", ImageFilename: strPtr("one.png")})
	require.NoError(t, err)
	_, err = s.Create(ctx, PostInput{Title: "a", Text: "b"})
	require.NoError(t, err)

	refs, err := s.ImageRefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"one.png"}, refs)
}
