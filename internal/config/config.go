// Package config loads the service configuration from the environment.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Session backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Submission sinks.
const (
	SinkCSV    = "csv"
	SinkSQLite = "sqlite"
	SinkBoth   = "both"
)

// Config aggregates every setting of the service.
type Config struct {
	Server    ServerConfig
	Sessions  SessionConfig
	Sink      SinkConfig
	Agent     AgentConfig
	Flow      FlowConfig
	Reference ReferenceConfig
	LogLevel  string
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	// RateLimit is messages per second per session; zero disables limiting.
	RateLimit float64
}

// SessionConfig selects the session store.
type SessionConfig struct {
	Backend       string
	DataDir       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
	// EncryptionKey enables AES-256 encryption at rest when set.
	EncryptionKey []byte
	FallbackKeys  [][]byte
}

// SinkConfig selects where submissions go.
type SinkConfig struct {
	Kind       string
	DataDir    string
	SQLitePath string
}

// AgentConfig describes the fallback completion API.
type AgentConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
}

// Enabled reports whether an API key was provided.
func (c AgentConfig) Enabled() bool {
	return c.APIKey != ""
}

// FlowConfig describes the scripted flows.
type FlowConfig struct {
	File   string
	Pacing time.Duration
}

// ReferenceConfig points at the static reference data.
type ReferenceConfig struct {
	TeamFile        string
	PortfolioFile   string
	EnrichPortfolio bool
	DocsLogFile     string
}

// Load reads a .env file when present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}
	sessions, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}
	sink, err := loadSinkConfig()
	if err != nil {
		return nil, err
	}
	agent, err := loadAgentConfig()
	if err != nil {
		return nil, err
	}
	flow, err := loadFlowConfig()
	if err != nil {
		return nil, err
	}
	ref, err := loadReferenceConfig()
	if err != nil {
		return nil, err
	}
	return &Config{
		Server:    server,
		Sessions:  sessions,
		Sink:      sink,
		Agent:     agent,
		Flow:      flow,
		Reference: ref,
		LogLevel:  getEnvOrDefault("LEADFLOW_LOG_LEVEL", "info"),
	}, nil
}

func dataDir() string {
	return getEnvOrDefault("LEADFLOW_DATA_DIR", "data")
}

func loadServerConfig() (ServerConfig, error) {
	port := getEnvOrDefault("PORT", "8080")
	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}
	addr := port
	if !strings.Contains(port, ":") {
		addr = ":" + port
	}

	rate, err := parseFloatEnv("LEADFLOW_RATE_LIMIT", 5)
	if err != nil {
		return ServerConfig{}, err
	}
	if rate < 0 {
		return ServerConfig{}, fmt.Errorf("LEADFLOW_RATE_LIMIT must not be negative")
	}

	return ServerConfig{
		Addr:           addr,
		AllowedOrigins: parseListEnv("LEADFLOW_ALLOWED_ORIGINS", []string{"*"}),
		RateLimit:      rate,
	}, nil
}

func loadSessionConfig() (SessionConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("LEADFLOW_SESSION_BACKEND", BackendMemory))
	switch backend {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		return SessionConfig{}, fmt.Errorf("invalid LEADFLOW_SESSION_BACKEND value: %q", backend)
	}

	db, err := parseIntEnv("REDIS_DB", 0)
	if err != nil {
		return SessionConfig{}, err
	}
	ttl, err := parseDurationEnv("LEADFLOW_SESSION_TTL", 0)
	if err != nil {
		return SessionConfig{}, err
	}
	key, err := parseKeyEnv("LEADFLOW_ENCRYPTION_KEY")
	if err != nil {
		return SessionConfig{}, err
	}
	var fallback [][]byte
	for i, raw := range parseListEnv("LEADFLOW_ENCRYPTION_FALLBACK_KEYS", nil) {
		k, err := decodeKey(raw)
		if err != nil {
			return SessionConfig{}, fmt.Errorf("invalid LEADFLOW_ENCRYPTION_FALLBACK_KEYS entry %d: %w", i, err)
		}
		fallback = append(fallback, k)
	}
	if key == nil && fallback != nil {
		return SessionConfig{}, errors.New("LEADFLOW_ENCRYPTION_FALLBACK_KEYS requires LEADFLOW_ENCRYPTION_KEY")
	}

	return SessionConfig{
		Backend:       backend,
		DataDir:       filepath.Join(dataDir(), "sessions"),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       db,
		TTL:           ttl,
		EncryptionKey: key,
		FallbackKeys:  fallback,
	}, nil
}

func loadSinkConfig() (SinkConfig, error) {
	kind := strings.ToLower(getEnvOrDefault("LEADFLOW_SINK", SinkCSV))
	switch kind {
	case SinkCSV, SinkSQLite, SinkBoth:
	default:
		return SinkConfig{}, fmt.Errorf("invalid LEADFLOW_SINK value: %q", kind)
	}
	return SinkConfig{
		Kind:       kind,
		DataDir:    dataDir(),
		SQLitePath: getEnvOrDefault("LEADFLOW_SQLITE_PATH", filepath.Join(dataDir(), "leadflow.db")),
	}, nil
}

func loadAgentConfig() (AgentConfig, error) {
	temperature, err := parseFloatEnv("OPENAI_TEMPERATURE", 0.55)
	if err != nil {
		return AgentConfig{}, err
	}
	return AgentConfig{
		APIKey:      os.Getenv("OPENAI_API_KEY"),
		BaseURL:     getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		Model:       getEnvOrDefault("OPENAI_MODEL", "gpt-4o"),
		Temperature: temperature,
	}, nil
}

func loadFlowConfig() (FlowConfig, error) {
	pacing, err := parseDurationEnv("LEADFLOW_PACING_DELAY", time.Second)
	if err != nil {
		return FlowConfig{}, err
	}
	return FlowConfig{
		File:   os.Getenv("LEADFLOW_FLOW_FILE"),
		Pacing: pacing,
	}, nil
}

func loadReferenceConfig() (ReferenceConfig, error) {
	portfolio, err := parseBoolEnv("LEADFLOW_ENRICH_PORTFOLIO", false)
	if err != nil {
		return ReferenceConfig{}, err
	}
	return ReferenceConfig{
		TeamFile:        os.Getenv("LEADFLOW_TEAM_FILE"),
		PortfolioFile:   os.Getenv("LEADFLOW_PORTFOLIO_FILE"),
		EnrichPortfolio: portfolio,
		DocsLogFile:     filepath.Join(dataDir(), "docsLog.json"),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return v, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return v, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return v, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return v, nil
}

func parseKeyEnv(key string) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil, nil
	}
	k, err := decodeKey(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return k, nil
}

// decodeKey reads a base64 encoded 32-byte key.
func decodeKey(raw string) ([]byte, error) {
	k, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	if len(k) != 32 {
		return nil, fmt.Errorf("key must decode to 32 bytes, got %d", len(k))
	}
	return k, nil
}

func parseListEnv(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
