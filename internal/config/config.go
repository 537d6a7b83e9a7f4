package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"recharge_desk/internal/model"
)

const defaultAdminSeedPassword = "Usuarioderecargathstore1234554321!@"

// Config holds runtime configuration sourced from env vars
type Config struct {
	Env        string
	LogLevel   string
	ServerPort string

	StoreDriver string // postgres or memory
	DB          *DBConfig

	JWTSecret string
	JWTTTL    time.Duration

	CORSOrigins []string

	Storage        StorageConfig
	MaxUploadBytes int64

	StatusPolicy      string
	AdminSeedPassword string
	PixKey            string
}

// StorageConfig selects and configures the receipt storage backend
type StorageConfig struct {
	Driver     string // local or s3
	UploadsDir string
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Access   string
	S3Secret   string
}

// Load reads configuration from the environment and performs minimal validation
func Load() (*Config, error) {
	cfg := &Config{
		Env:               getEnv("APP_ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		StoreDriver:       getEnv("STORE_DRIVER", "postgres"),
		JWTSecret:         strings.TrimSpace(os.Getenv("JWT_SECRET_KEY")),
		CORSOrigins:       parseCSV(getEnv("CORS_ORIGINS", "*")),
		StatusPolicy:      getEnv("STATUS_POLICY", "permissive"),
		AdminSeedPassword: getEnv("ADMIN_SEED_PASSWORD", defaultAdminSeedPassword),
		PixKey:            getEnv("PIX_KEY", model.DefaultPixKey),
		Storage: StorageConfig{
			Driver:     getEnv("STORAGE_DRIVER", "local"),
			UploadsDir: getEnv("UPLOADS_DIR", "uploads"),
			S3Bucket:   os.Getenv("S3_BUCKET"),
			S3Region:   getEnv("S3_REGION", "us-east-1"),
			S3Endpoint: os.Getenv("S3_ENDPOINT"),
			S3Access:   os.Getenv("S3_ACCESS_KEY"),
			S3Secret:   os.Getenv("S3_SECRET_KEY"),
		},
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET_KEY not set in environment")
	}

	hours, err := strconv.ParseInt(getEnv("JWT_EXPIRATION_HOURS", "24"), 10, 64)
	if err != nil || hours <= 0 {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %q", os.Getenv("JWT_EXPIRATION_HOURS"))
	}
	cfg.JWTTTL = time.Duration(hours) * time.Hour

	maxMB, err := strconv.ParseInt(getEnv("MAX_UPLOAD_MB", "10"), 10, 64)
	if err != nil || maxMB <= 0 {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB: %q", os.Getenv("MAX_UPLOAD_MB"))
	}
	cfg.MaxUploadBytes = maxMB << 20

	switch cfg.StoreDriver {
	case "postgres":
		dbCfg, err := LoadDBConfig()
		if err != nil {
			return nil, err
		}
		cfg.DB = dbCfg
	case "memory":
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want postgres or memory)", cfg.StoreDriver)
	}

	switch cfg.Storage.Driver {
	case "local":
	case "s3":
		if cfg.Storage.S3Bucket == "" {
			return nil, errors.New("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q (want local or s3)", cfg.Storage.Driver)
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to
func (c *Config) HTTPAddress() string {
	return ":" + c.ServerPort
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseCSV(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
