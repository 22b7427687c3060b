package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	// DefaultPath is where the tool keeps its key=value configuration.
	DefaultPath = "/etc/pgvault/pgvault.conf"

	defaultPrefix        = "backup"
	defaultRetentionDays = 30
	defaultMinFreeBytes  = 512 << 20 // 512MB headroom before a dump
)

type (
	// Config holds credentials and workflow settings. It is loaded once and
	// passed into each component at construction; components only read it.
	Config struct {
		PGUser     string `validate:"required"`
		PGPassword string

		// Container pins the target container by name. Empty means the
		// locator discovers candidates and the operator disambiguates.
		Container string

		BackupDir     string `validate:"required"`
		FilePrefix    string
		RetentionDays int `validate:"gte=0"`
		MinFreeBytes  uint64

		WebhookURL     string `validate:"omitempty,url"`
		DeadLetterPath string
		LogFile        string
		HistoryDBPath  string

		// Optional offsite copy of published artifacts.
		S3Endpoint  string
		S3AccessKey string
		S3SecretKey string
		S3Bucket    string
		S3Region    string
	}
)

// Load reads the key=value configuration file, letting process environment
// variables override file values. A missing file is not an error; the caller
// decides whether the resulting config is complete enough.
func Load(path string) (Config, error) {
	values := map[string]string{}
	if _, err := os.Stat(path); err == nil {
		values, err = godotenv.Read(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "failed to parse config file")
		}
	}

	get := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return values[key]
	}

	cfg := Config{
		PGUser:         get("PG_USER"),
		PGPassword:     get("PG_PASSWORD"),
		Container:      get("CONTAINER_NAME"),
		BackupDir:      get("BACKUP_DIR"),
		FilePrefix:     get("FILE_PREFIX"),
		WebhookURL:     get("WEBHOOK_URL"),
		DeadLetterPath: get("DEAD_LETTER_FILE"),
		LogFile:        get("LOG_FILE"),
		HistoryDBPath:  get("HISTORY_DB"),
		S3Endpoint:     get("S3_ENDPOINT"),
		S3AccessKey:    get("S3_ACCESS_KEY"),
		S3SecretKey:    get("S3_SECRET_KEY"),
		S3Bucket:       get("S3_BUCKET"),
		S3Region:       get("S3_REGION"),
		RetentionDays:  defaultRetentionDays,
		MinFreeBytes:   defaultMinFreeBytes,
	}

	if v := get("RETENTION_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, errors.Wrapf(err, "invalid RETENTION_DAYS %q", v)
		}
		cfg.RetentionDays = n
	}
	if v := get("MIN_FREE_BYTES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, errors.Wrapf(err, "invalid MIN_FREE_BYTES %q", v)
		}
		cfg.MinFreeBytes = n
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.PGUser == "" {
		c.PGUser = "postgres"
	}
	if c.FilePrefix == "" {
		c.FilePrefix = defaultPrefix
	}
	if c.BackupDir != "" {
		if c.DeadLetterPath == "" {
			c.DeadLetterPath = filepath.Join(c.BackupDir, "webhook-dead-letter.log")
		}
		if c.LogFile == "" {
			c.LogFile = filepath.Join(c.BackupDir, "pgvault.log")
		}
		if c.HistoryDBPath == "" {
			c.HistoryDBPath = filepath.Join(c.BackupDir, "history.db")
		}
	}
}

// Validate checks the config is complete enough to run a backup or restore.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

func (c Config) HasObjectStorage() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// Save writes the config back as a key=value file, owner read/write only
// since it carries credentials.
func Save(path string, c Config) error {
	values := map[string]string{
		"PG_USER":          c.PGUser,
		"PG_PASSWORD":      c.PGPassword,
		"CONTAINER_NAME":   c.Container,
		"BACKUP_DIR":       c.BackupDir,
		"FILE_PREFIX":      c.FilePrefix,
		"RETENTION_DAYS":   strconv.Itoa(c.RetentionDays),
		"MIN_FREE_BYTES":   strconv.FormatUint(c.MinFreeBytes, 10),
		"WEBHOOK_URL":      c.WebhookURL,
		"DEAD_LETTER_FILE": c.DeadLetterPath,
		"LOG_FILE":         c.LogFile,
		"HISTORY_DB":       c.HistoryDBPath,
		"S3_ENDPOINT":      c.S3Endpoint,
		"S3_ACCESS_KEY":    c.S3AccessKey,
		"S3_SECRET_KEY":    c.S3SecretKey,
		"S3_BUCKET":        c.S3Bucket,
		"S3_REGION":        c.S3Region,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		if values[k] == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s=%s\n", k, values[k]))
	}

	return os.WriteFile(path, []byte(sb.String()), 0600)
}
