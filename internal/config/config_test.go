package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "any", cfg.Export.SelectionPredicate)
	assert.Equal(t, "gltf", cfg.Export.Format)
	assert.False(t, cfg.Export.ExportSelectedOnly)
	assert.Equal(t, 2*time.Minute, cfg.Decoder.Timeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.RedisEnabled())
}

func TestLoadLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app_port: "9000"
export:
  export_selected_only: true
  selection_predicate: full
decoder:
  command: node
  args: ["decode.js", "{input}", "{output}"]
  timeout: 30s
logging:
  level: debug
`), 0644))

	t.Setenv("EXPORT_PORT", "9100")
	t.Setenv("OUTPUT_FORMAT", "glb")
	t.Setenv("CACHE_TTL", "1h")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.AppPort)
	assert.True(t, cfg.Export.ExportSelectedOnly)
	assert.Equal(t, "full", cfg.Export.SelectionPredicate)
	assert.Equal(t, "glb", cfg.Export.Format)
	assert.Equal(t, "node", cfg.Decoder.Command)
	assert.Equal(t, []string{"decode.js", "{input}", "{output}"}, cfg.Decoder.Args)
	assert.Equal(t, 30*time.Second, cfg.Decoder.Timeout)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "5432", cfg.DB.Port)
}

func TestLoadConfigFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("minio:\n  bucket: exports\n"), 0644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DECODER_ARGS", "decode.py {input} {output}")
	t.Setenv("EXPORT_SELECTED_ONLY", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "exports", cfg.Minio.Bucket)
	assert.Equal(t, []string{"decode.py", "{input}", "{output}"}, cfg.Decoder.Args)
	assert.True(t, cfg.Export.ExportSelectedOnly)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("MINIO_SSL", "maybe")
	_, err = Load("")
	assert.ErrorContains(t, err, "MINIO_SSL")
}

func TestValidateService(t *testing.T) {
	cfg := Default()
	assert.ErrorContains(t, cfg.ValidateService(), "database")

	cfg.DB = DBConfig{Host: "db", User: "u", Name: "exports"}
	assert.ErrorContains(t, cfg.ValidateService(), "minio")

	cfg.Minio = MinioConfig{Endpoint: "minio:9000", AccessKey: "a", SecretKey: "s", Bucket: "b"}
	assert.NoError(t, cfg.ValidateService())
}
