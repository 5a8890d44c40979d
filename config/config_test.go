package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("SECRET_KEY", "")

	c, err := loadFrom(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "8080", c.AppPort)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, "dope_music.db", c.DBPath)
	assert.Equal(t, filepath.Join("static", "uploads"), c.UploadDir)
	assert.Equal(t, 16, c.MaxUploadMB)
	assert.Equal(t, "Europe/Moscow", c.DisplayTimezone)
	assert.Equal(t, PolicyAnyUser, c.PostEditPolicy)
	assert.Equal(t, ConflictLastWriteWins, c.EditConflictPolicy)
	assert.Equal(t, InsecureSecretKey, c.SecretKey)
	assert.True(t, c.InsecureSecret)
}

func TestLoadFrom_GroupedFile(t *testing.T) {
	t.Setenv("SECRET_KEY", "")
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
  "app": {"AppPort": "9000", "SecretKey": "from-file", "RateLimitPerMinute": 3},
  "database": {"DBDriver": "mysql", "DBHost": "db.internal", "DBName": "site"},
  "uploads": {"UploadDir": "/srv/uploads", "MaxUploadMB": 4},
  "display": {"DisplayTimezone": "UTC"},
  "policy": {"PostEditPolicy": "author"}
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := loadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", c.AppPort)
	assert.Equal(t, "from-file", c.SecretKey)
	assert.False(t, c.InsecureSecret)
	assert.Equal(t, 3, c.RateLimitPerMinute)
	assert.Equal(t, "mysql", c.DBDriver)
	assert.Equal(t, "db.internal", c.DBHost)
	assert.Equal(t, "site", c.DBName)
	assert.Equal(t, "/srv/uploads", c.UploadDir)
	assert.Equal(t, 4, c.MaxUploadMB)
	assert.Equal(t, "UTC", c.DisplayTimezone)
	assert.Equal(t, PolicyAuthorOnly, c.PostEditPolicy)
}

func TestLoadFrom_FlatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"AppPort": "7000", "LogLevel": "debug"}`), 0o644))

	c, err := loadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", c.AppPort)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestLoadFrom_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"app":`), 0o644))

	_, err := loadFrom(path)
	assert.Error(t, err)
}

func TestLoadFrom_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"app": {"AppPort": "9000"}}`), 0o644))
	t.Setenv("APP_PORT", "9100")
	t.Setenv("SECRET_KEY", "env-secret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("EDIT_CONFLICT_POLICY", "Reject-Stale")
	t.Setenv("COOKIE_SECURE", "true")

	c, err := loadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", c.AppPort)
	assert.Equal(t, "env-secret", c.SecretKey)
	assert.False(t, c.InsecureSecret)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
	assert.Equal(t, ConflictRejectStale, c.EditConflictPolicy)
	assert.True(t, c.CookieSecure)
}

func TestInitDatabase_SQLite(t *testing.T) {
	type widget struct {
		ID   uint
		Name string
	}
	c := AppConfig{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "nested", "site.db"), LogLevel: "silent"}

	db, err := InitDatabase(c, &widget{})
	require.NoError(t, err)
	require.NoError(t, db.Create(&widget{Name: "x"}).Error)

	var count int64
	require.NoError(t, db.Model(&widget{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestInitDatabase_UnknownDriver(t *testing.T) {
	_, err := InitDatabase(AppConfig{DBDriver: "oracle"})
	assert.ErrorContains(t, err, "unsupported database driver")
}
