// Package config loads runtime settings from the environment and selects the
// session store backend.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultWorkflowPath = "workflow.yaml"
	DefaultListenAddr   = ":8080"
	DefaultSessionTTL   = time.Hour
)

// Config is the full runtime configuration.
type Config struct {
	// WorkflowPath points at the YAML workflow document to serve.
	WorkflowPath string
	// ListenAddr is the HTTP bind address.
	ListenAddr string
	// RedisURL selects the Redis session store when set (redis://host:port/db).
	// Empty means in-memory sessions.
	RedisURL string
	// SessionTTL is the Redis expiry refreshed on every session write.
	SessionTTL time.Duration
	// EncryptionKey, when set, encrypts sessions at rest (AES-256).
	EncryptionKey []byte
	// PIIPatterns are regexes for context keys whose values are masked
	// before a session is persisted.
	PIIPatterns []string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogJSON switches log output from text to JSON lines.
	LogJSON bool
}

// FromEnv reads configuration from process environment variables.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Config{
		WorkflowPath: DefaultWorkflowPath,
		ListenAddr:   DefaultListenAddr,
		SessionTTL:   DefaultSessionTTL,
		LogLevel:     "info",
	}

	if v, ok := lookup("WORKFLOW_PATH"); ok && v != "" {
		cfg.WorkflowPath = v
	}
	if v, ok := lookup("WEFT_ADDR"); ok && v != "" {
		cfg.ListenAddr = v
	}
	if v, ok := lookup("REDIS_URL"); ok {
		cfg.RedisURL = v
	}
	if v, ok := lookup("SESSION_TTL_SECONDS"); ok && v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds < 0 {
			return Config{}, fmt.Errorf("SESSION_TTL_SECONDS: %q is not a non-negative integer", v)
		}
		cfg.SessionTTL = time.Duration(seconds) * time.Second
	}
	if v, ok := lookup("SESSION_ENCRYPTION_KEY"); ok && v != "" {
		key, err := base64.StdEncoding.DecodeString(v)
		if err != nil || len(key) != 32 {
			return Config{}, fmt.Errorf("SESSION_ENCRYPTION_KEY must be base64 of exactly 32 bytes")
		}
		cfg.EncryptionKey = key
	}
	if v, ok := lookup("SESSION_PII_PATTERNS"); ok && v != "" {
		for _, p := range strings.Split(v, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if _, err := regexp.Compile(p); err != nil {
				return Config{}, fmt.Errorf("SESSION_PII_PATTERNS: %q is not a valid pattern: %w", p, err)
			}
			cfg.PIIPatterns = append(cfg.PIIPatterns, p)
		}
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok {
		cfg.LogJSON = v == "json"
	}
	return cfg, nil
}
