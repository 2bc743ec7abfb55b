package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const minimalYAML = `
search:
  credentials:
    - client_id: id-a
      client_secret: secret-a
    - client_id: " id-b "
      client_secret: secret-b
  trusted_domains: ["N.News.Naver.com", "n.news.naver.com"]
  timeout: 5
rendering:
  page_load_timeout: 12s
worker:
  concurrency: 2
  flush_every: 10
checkpoint:
  backend: FILE
  directory: /tmp/ckpt
`

func TestLoadFromReaderAppliesDefaultsAndOverrides(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(minimalYAML))
	require.NoError(t, err)

	assert.Len(t, cfg.Search.Credentials, 2)
	assert.Equal(t, "id-b", cfg.Search.Credentials[1].ClientID)
	assert.Equal(t, []string{"n.news.naver.com"}, cfg.Search.TrustedDomains)
	assert.Equal(t, 5*time.Second, cfg.Search.Timeout.Duration)
	assert.Equal(t, 12*time.Second, cfg.Rendering.PageLoadTimeout.Duration)
	assert.Equal(t, 15, cfg.Search.Display)
	assert.Equal(t, 200, cfg.Search.MinBodyChars)
	assert.Equal(t, 2, cfg.Worker.Concurrency)
	assert.Equal(t, "file", cfg.Checkpoint.Backend)
	assert.True(t, cfg.Output.Hyperlink)
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("search:\n  nonsense: 1\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Default()
	cfg.Worker.Concurrency = 9
	cfg.Checkpoint.Backend = "redis"

	err := cfg.Validate()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "credential")
	assert.Contains(t, err.Error(), "worker.concurrency")
	assert.Contains(t, err.Error(), "checkpoint.redis_addr")
}

func TestCredentialsFromEnvPreservesOrder(t *testing.T) {
	t.Setenv("NAVER_CLIENT_ID", "base")
	t.Setenv("NAVER_CLIENT_SECRET", "base-secret")
	t.Setenv("NAVER_CLIENT_ID_1", "one")
	t.Setenv("NAVER_CLIENT_SECRET_1", "one-secret")
	t.Setenv("NAVER_CLIENT_ID_3", "three")
	t.Setenv("NAVER_CLIENT_SECRET_3", "three-secret")
	t.Setenv("NAVER_CLIENT_ID_4", "four-without-secret")

	creds := CredentialsFromEnv()

	require.Len(t, creds, 3)
	assert.Equal(t, "base", creds[0].ClientID)
	assert.Equal(t, "one", creds[1].ClientID)
	assert.Equal(t, "three", creds[2].ClientID)
}

func TestLoadEnvFileFeedsCredentials(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("NAVER_CLIENT_ID_2=from-file\nNAVER_CLIENT_SECRET_2=file-secret\n"), 0o600))
	t.Setenv("NAVER_CLIENT_ID_2", "")
	t.Setenv("NAVER_CLIENT_SECRET_2", "")
	require.NoError(t, os.Unsetenv("NAVER_CLIENT_ID_2"))
	require.NoError(t, os.Unsetenv("NAVER_CLIENT_SECRET_2"))

	require.NoError(t, LoadEnv(envPath))
	require.NoError(t, LoadEnv(filepath.Join(dir, "missing.env")))

	creds := CredentialsFromEnv()
	var ids []string
	for _, c := range creds {
		ids = append(ids, c.ClientID)
	}
	assert.Contains(t, ids, "from-file")
}

func TestDurationAcceptsStringsAndSeconds(t *testing.T) {
	var holder struct {
		A Duration `yaml:"a"`
		B Duration `yaml:"b"`
		C Duration `yaml:"c"`
	}
	err := decodeInto(t, "a: 1m30s\nb: 2.5\nc: 3\n", &holder)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, holder.A.Duration)
	assert.Equal(t, 2500*time.Millisecond, holder.B.Duration)
	assert.Equal(t, 3*time.Second, holder.C.Duration)

	err = decodeInto(t, "a: soon\n", &holder)
	assert.Error(t, err)
}

func TestBuildLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := BuildLogger(LoggingConfig{Level: "warn", Structured: true}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "row", 3)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"row":3`)

	_, err = BuildLogger(LoggingConfig{Level: "loud"}, &buf)
	assert.Error(t, err)
}

func decodeInto(t *testing.T, doc string, out any) error {
	t.Helper()
	return yaml.NewDecoder(strings.NewReader(doc)).Decode(out)
}

func TestReadSkipsValidation(t *testing.T) {
	t.Setenv("NAVER_CLIENT_ID", "")
	t.Setenv("NAVER_CLIENT_SECRET", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("worker:\n  parallel_partitions: -1\noutput:\n  stats: true\n"), 0o644))

	cfg, err := Read(path)
	require.NoError(t, err)
	assert.True(t, cfg.Output.Stats)
	assert.Empty(t, cfg.Search.Credentials)

	_, err = Load(path)
	require.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "worker.parallel_partitions")
}
