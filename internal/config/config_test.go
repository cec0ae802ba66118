package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "client.yaml", `
server_url: https://whist.example/api/
request_timeout: 3s
requirement:
  core: "^1.0"
log:
  level: debug
  format: json
`)
	t.Setenv("WHIST_LOG_LEVEL", "warn")
	t.Setenv("WHIST_GITHUB_CLIENT_ID", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://whist.example/api/", cfg.ServerURL)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "^1.0", cfg.Requirement.Core)
	assert.Equal(t, "^0.7", cfg.Requirement.Server, "unset keys keep defaults")
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "warn", cfg.Log.Level, "env wins over file")
	assert.Equal(t, "from-env", cfg.GitHub.ClientID)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, ".env", "WHIST_DEV_SERVER_ADDR=:9999\n")
	t.Cleanup(func() { os.Unsetenv("WHIST_DEV_SERVER_ADDR") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.DevServer.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cases := map[string]string{
		"level":   "log:\n  level: loud\n",
		"format":  "log:\n  format: xml\n",
		"timeout": "request_timeout: 0s\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, dir, name+".yaml", content))
			assert.Error(t, err)
		})
	}

	_, err := Load(writeFile(t, dir, "broken.yaml", "log: [\n"))
	assert.Error(t, err)
}
