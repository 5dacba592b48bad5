/*
Package config loads the server configuration.

LAYERING (later wins):
  1. Defaults
  2. .env file in the working directory (missing file is fine; it never
     overrides variables already set in the environment)
  3. ABSENCE_* environment variables
  4. Command-line flags

SEE ALSO:
  - cmd/server/main.go: Consumer
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// MemoryDB selects the in-memory store instead of a SQLite file.
const MemoryDB = ":mem:"

type Config struct {
	Addr           string
	DBPath         string
	LogLevel       string
	LogJSON        bool
	Seed           bool
	StaticDir      string
	AllowedOrigins []string

	Backup BackupConfig
}

type BackupConfig struct {
	Dir      string
	Driver   string // "fs" or "s3"
	Interval time.Duration
	Compress bool

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

func Defaults() Config {
	return Config{
		Addr:           "127.0.0.1:8080",
		DBPath:         "absence.db",
		LogLevel:       "info",
		Seed:           true,
		StaticDir:      "./web/dist",
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		Backup: BackupConfig{
			Dir:      "backups",
			Driver:   "fs",
			Compress: true,
			S3Region: "us-east-1",
		},
	}
}

// Load builds the configuration from envFile, the environment and args
// (without the program name). An empty envFile skips the .env step.
func Load(args []string, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := Defaults()
	cfg.Addr = getEnv("ABSENCE_ADDR", cfg.Addr)
	cfg.DBPath = getEnv("ABSENCE_DB", cfg.DBPath)
	cfg.LogLevel = getEnv("ABSENCE_LOG_LEVEL", cfg.LogLevel)
	cfg.LogJSON = getEnvAsBool("ABSENCE_LOG_JSON", cfg.LogJSON)
	cfg.Seed = getEnvAsBool("ABSENCE_SEED", cfg.Seed)
	cfg.StaticDir = getEnv("ABSENCE_STATIC_DIR", cfg.StaticDir)
	if origins := getEnv("ABSENCE_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}

	b := &cfg.Backup
	b.Dir = getEnv("ABSENCE_BACKUP_DIR", b.Dir)
	b.Driver = getEnv("ABSENCE_BACKUP_DRIVER", b.Driver)
	b.Interval = getEnvAsDuration("ABSENCE_BACKUP_INTERVAL", b.Interval)
	b.Compress = getEnvAsBool("ABSENCE_BACKUP_COMPRESS", b.Compress)
	b.S3Bucket = getEnv("ABSENCE_BACKUP_S3_BUCKET", b.S3Bucket)
	b.S3Region = getEnv("ABSENCE_BACKUP_S3_REGION", b.S3Region)
	b.S3Endpoint = getEnv("ABSENCE_BACKUP_S3_ENDPOINT", b.S3Endpoint)
	b.S3PathStyle = getEnvAsBool("ABSENCE_BACKUP_S3_PATH_STYLE", b.S3PathStyle)

	fset := flag.NewFlagSet("absence-tracker", flag.ContinueOnError)
	fset.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fset.StringVar(&cfg.DBPath, "db", cfg.DBPath, `SQLite database path ("`+MemoryDB+`" for the in-memory store)`)
	fset.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fset.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "log as JSON")
	fset.BoolVar(&cfg.Seed, "seed", cfg.Seed, "seed default employees into an empty roster")
	fset.StringVar(&cfg.StaticDir, "static", cfg.StaticDir, "directory of the web UI build")
	fset.StringVar(&b.Dir, "backup-dir", b.Dir, "backup directory (fs driver)")
	fset.StringVar(&b.Driver, "backup-driver", b.Driver, "backup sink: fs or s3")
	fset.DurationVar(&b.Interval, "backup-interval", b.Interval, "periodic backup interval (0 disables)")
	fset.BoolVar(&b.Compress, "backup-compress", b.Compress, "xz-compress backup archives")
	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("addr required")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("db path required")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	switch c.Backup.Driver {
	case "fs":
	case "s3":
		if c.Backup.S3Bucket == "" {
			return fmt.Errorf("ABSENCE_BACKUP_S3_BUCKET required for s3 backup driver")
		}
	default:
		return fmt.Errorf("unknown backup driver %q", c.Backup.Driver)
	}
	if c.Backup.Interval < 0 {
		return fmt.Errorf("backup interval must not be negative")
	}
	return nil
}

// UseMemoryStore reports whether DBPath selects the in-memory store.
func (c Config) UseMemoryStore() bool { return c.DBPath == MemoryDB }

// NewLogger builds the process logger from LogLevel and LogJSON.
func (c Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if c.LogJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func getEnv(key string, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvAsBool(name string, defaultVal bool) bool {
	if val, err := strconv.ParseBool(getEnv(name, "")); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	if val, err := time.ParseDuration(getEnv(name, "")); err == nil {
		return val
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
