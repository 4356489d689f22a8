package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	c := FromEnv()
	require.NoError(t, c.Validate())
	assert.Equal(t, ModeOffline, c.Mode)
	assert.Equal(t, "https://quiz-prod.ekos.my.id/api/v1", c.QuizAPIURL)
	assert.Equal(t, 15*time.Second, c.HTTPTimeout)
	assert.Equal(t, c.CORSOriginsOffline, c.CORSOrigins())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("CACHE_TTL", "5m")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CORS_ORIGINS_ONLINE", " https://a.example , https://b.example,")
	t.Setenv("ENABLE_ADMIN", "no")

	c := FromEnv()
	assert.Equal(t, ModeOnline, c.Mode)
	assert.Equal(t, 5*time.Minute, c.CacheTTL)
	assert.Equal(t, 3, c.RedisDB)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSOrigins())
	assert.False(t, c.EnableAdmin)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "quiz.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":9090"
http_timeout: 3s
cache_driver: none
log:
  level: debug
  format: json
`), 0o600))
	t.Setenv("HTTP_ADDR", ":7070")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", c.HTTPAddr, "env wins over file")
	assert.Equal(t, 3*time.Second, c.HTTPTimeout)
	assert.Equal(t, "none", c.CacheDriver)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "console", c.Log.Output, "unset keys keep defaults")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PROFILE=work\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PROFILE") })

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "work", c.Profile)
}

func TestValidate(t *testing.T) {
	c := Defaults()
	c.Mode = "hybrid"
	c.QuizAPIURL = "/relative"
	c.DBDriver = "mysql"
	c.CacheDriver = "memcached"
	c.SessionSweep = -time.Minute
	err := c.Validate()
	require.Error(t, err)
	for _, want := range []string{"MODE", "QUIZ_API_URL", "DB_DRIVER", "CACHE_DRIVER", "SESSION_SWEEP"} {
		assert.Contains(t, err.Error(), want)
	}

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
