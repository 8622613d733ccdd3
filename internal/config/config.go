package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Config holds all configuration values. Values are layered: defaults, then
// the YAML file named by CONFIG_FILE, then environment variables.
type Config struct {
	AppPort string        `yaml:"app_port"`
	DB      DBConfig      `yaml:"database"`
	Minio   MinioConfig   `yaml:"minio"`
	Redis   RedisConfig   `yaml:"redis"`
	Export  ExportConfig  `yaml:"export"`
	Decoder DecoderConfig `yaml:"decoder"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	SSL       bool   `yaml:"ssl"`
}

// RedisConfig is optional; an empty host disables the redis cache layer.
type RedisConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// ExportConfig holds the conversion defaults applied when a request does not
// override them.
type ExportConfig struct {
	ExportSelectedOnly bool   `yaml:"export_selected_only"`
	SelectionPredicate string `yaml:"selection_predicate"` // any, partial or full
	Format             string `yaml:"format"`              // gltf or glb
	Generator          string `yaml:"generator"`
}

// DecoderConfig configures the external process that decodes .3dm files.
// Args may use the {input} and {output} placeholders.
type DecoderConfig struct {
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`
}

type CacheConfig struct {
	MemoryMaxBytes int64         `yaml:"memory_max_bytes"`
	FileDir        string        `yaml:"file_dir"`
	FileMaxBytes   int64         `yaml:"file_max_bytes"`
	TTL            time.Duration `yaml:"ttl"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	JSON  bool   `yaml:"json"`
}

// Default returns a Config with the built-in defaults.
func Default() *Config {
	return &Config{
		AppPort: "8080",
		DB:      DBConfig{Port: "5432"},
		Redis:   RedisConfig{Port: "6379"},
		Export: ExportConfig{
			SelectionPredicate: "any",
			Format:             "gltf",
		},
		Decoder: DecoderConfig{
			Timeout: 2 * time.Minute,
		},
		Cache: CacheConfig{
			MemoryMaxBytes: 512 << 20,
			FileDir:        filepath.Join(os.TempDir(), "gltf-export-cache"),
			FileMaxBytes:   2 << 30,
			TTL:            24 * time.Hour,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadConfig loads configuration from defaults, the optional CONFIG_FILE and
// environment variables.
func LoadConfig() (*Config, error) {
	return Load(os.Getenv("CONFIG_FILE"))
}

// Load is LoadConfig with an explicit YAML path. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.AppPort, "EXPORT_PORT")
	setString(&cfg.DB.Host, "DB_HOST")
	setString(&cfg.DB.Port, "DB_PORT")
	setString(&cfg.DB.User, "DB_USER")
	setString(&cfg.DB.Password, "DB_PASSWORD")
	setString(&cfg.DB.Name, "DB_NAME")
	setString(&cfg.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&cfg.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.Minio.Bucket, "MINIO_BUCKET")
	setString(&cfg.Redis.Host, "REDIS_HOST")
	setString(&cfg.Redis.Port, "REDIS_PORT")
	setString(&cfg.Export.SelectionPredicate, "SELECTION_PREDICATE")
	setString(&cfg.Export.Format, "OUTPUT_FORMAT")
	setString(&cfg.Export.Generator, "GLTF_GENERATOR")
	setString(&cfg.Decoder.Command, "DECODER_COMMAND")
	setString(&cfg.Cache.FileDir, "CACHE_DIR")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.File, "LOG_FILE")

	if v := os.Getenv("DECODER_ARGS"); v != "" {
		cfg.Decoder.Args = strings.Fields(v)
	}

	for _, b := range []struct {
		dst *bool
		env string
	}{
		{&cfg.Minio.SSL, "MINIO_SSL"},
		{&cfg.Export.ExportSelectedOnly, "EXPORT_SELECTED_ONLY"},
		{&cfg.Logging.JSON, "LOG_JSON"},
	} {
		if v := os.Getenv(b.env); v != "" {
			val, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s value: %v", b.env, err)
			}
			*b.dst = val
		}
	}

	for _, d := range []struct {
		dst *time.Duration
		env string
	}{
		{&cfg.Decoder.Timeout, "DECODER_TIMEOUT"},
		{&cfg.Cache.TTL, "CACHE_TTL"},
	} {
		if v := os.Getenv(d.env); v != "" {
			val, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s value: %v", d.env, err)
			}
			*d.dst = val
		}
	}

	for _, n := range []struct {
		dst *int64
		env string
	}{
		{&cfg.Cache.MemoryMaxBytes, "CACHE_MEMORY_MAX_BYTES"},
		{&cfg.Cache.FileMaxBytes, "CACHE_FILE_MAX_BYTES"},
	} {
		if v := os.Getenv(n.env); v != "" {
			val, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid %s value: %v", n.env, err)
			}
			*n.dst = val
		}
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// ValidateService checks the settings the HTTP service cannot run without.
func (c *Config) ValidateService() error {
	if c.DB.Host == "" || c.DB.User == "" || c.DB.Name == "" {
		return fmt.Errorf("database configuration is incomplete")
	}
	if c.Minio.Endpoint == "" || c.Minio.AccessKey == "" || c.Minio.SecretKey == "" || c.Minio.Bucket == "" {
		return fmt.Errorf("minio configuration is incomplete")
	}
	return nil
}

// RedisEnabled reports whether a redis cache layer is configured.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

// ConnectDatabase initializes a GORM database connection to PostgreSQL.
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return db, nil
}
