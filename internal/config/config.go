// Package config loads server settings from LOYALTY_* environment variables.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Preference store backends.
const (
	PrefsSQLite = "sqlite"
	PrefsRedis  = "redis"
	PrefsMemory = "memory"
)

// EnvProduction is the LOYALTY_ENV value that turns off development conveniences.
const EnvProduction = "production"

// Config errors
var (
	ErrBadCSRFKey         = errors.New("LOYALTY_CSRF_KEY must be 64 hex characters (32 bytes)")
	ErrCSRFKeyRequired    = errors.New("LOYALTY_CSRF_KEY is required in production")
	ErrResetSecretMissing = errors.New("LOYALTY_RESET_SECRET is required in production")
	ErrBypassInProduction = errors.New("LOYALTY_BYPASS cannot be enabled in production")
	ErrUnknownPrefs       = errors.New("LOYALTY_PREFS_BACKEND must be sqlite, redis or memory")
)

// Config holds every setting the server reads at startup.
type Config struct {
	Addr    string
	Env     string
	DBPath  string
	BaseURL string

	CSRFKey          []byte
	CSRFKeyGenerated bool // true when no key was configured and one was generated
	ResetSecret      []byte

	ResendKey  string
	ResendFrom string
	ReplyTo    string

	PrefsBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Bypass compiles in the development login bypass.
	Bypass bool

	LoadingWait   time.Duration
	SlowRequest   time.Duration
	SlowQuery     time.Duration
	WorkspaceIdle time.Duration
	RateLimit     int // requests per second per IP
	SeedDemo      bool
}

// Production reports whether the server runs with production settings.
func (c Config) Production() bool { return c.Env == EnvProduction }

// Load reads the environment.
// POST: on success every field has a usable value
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	env := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}

	c := Config{
		Addr:          env("LOYALTY_ADDR", ":8080"),
		Env:           env("LOYALTY_ENV", "development"),
		DBPath:        env("LOYALTY_DB_PATH", "loyaltyloop.db"),
		ResendKey:     getenv("LOYALTY_RESEND_KEY"),
		ResendFrom:    env("LOYALTY_RESEND_FROM", "LoyaltyLoop <noreply@loyaltyloop.app>"),
		ReplyTo:       env("LOYALTY_REPLY_TO", "support@loyaltyloop.app"),
		PrefsBackend:  strings.ToLower(env("LOYALTY_PREFS_BACKEND", PrefsSQLite)),
		RedisAddr:     env("LOYALTY_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("LOYALTY_REDIS_PASSWORD"),
	}
	c.BaseURL = strings.TrimRight(env("LOYALTY_BASE_URL", "http://localhost"+c.Addr), "/")

	var err error
	if c.RedisDB, err = intVar(getenv, "LOYALTY_REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if c.RateLimit, err = intVar(getenv, "LOYALTY_RATE_LIMIT", 20); err != nil {
		return Config{}, err
	}
	if c.LoadingWait, err = msVar(getenv, "LOYALTY_LOADING_WAIT_MS", 1500); err != nil {
		return Config{}, err
	}
	if c.SlowRequest, err = msVar(getenv, "LOYALTY_SLOW_REQUEST_MS", 200); err != nil {
		return Config{}, err
	}
	if c.SlowQuery, err = msVar(getenv, "LOYALTY_SLOW_QUERY_MS", 50); err != nil {
		return Config{}, err
	}
	if c.WorkspaceIdle, err = msVar(getenv, "LOYALTY_WORKSPACE_IDLE_MS", int(2*time.Hour/time.Millisecond)); err != nil {
		return Config{}, err
	}

	switch c.PrefsBackend {
	case PrefsSQLite, PrefsRedis, PrefsMemory:
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownPrefs, c.PrefsBackend)
	}

	// Bypass defaults on outside production.
	bypass, err := boolVar(getenv, "LOYALTY_BYPASS", !c.Production())
	if err != nil {
		return Config{}, err
	}
	if bypass && c.Production() {
		return Config{}, ErrBypassInProduction
	}
	c.Bypass = bypass

	seed, err := boolVar(getenv, "LOYALTY_SEED_DEMO", !c.Production())
	if err != nil {
		return Config{}, err
	}
	c.SeedDemo = seed

	if c.CSRFKey, c.CSRFKeyGenerated, err = secret(getenv("LOYALTY_CSRF_KEY"), c.Production()); err != nil {
		if errors.Is(err, errSecretRequired) {
			return Config{}, ErrCSRFKeyRequired
		}
		return Config{}, ErrBadCSRFKey
	}

	if s := getenv("LOYALTY_RESET_SECRET"); s != "" {
		c.ResetSecret = []byte(s)
	} else if c.Production() {
		return Config{}, ErrResetSecretMissing
	} else {
		c.ResetSecret, _, _ = secret("", false)
	}
	return c, nil
}

var errSecretRequired = errors.New("secret required")

// secret decodes a hex key, or generates a random one outside production.
func secret(keyHex string, production bool) ([]byte, bool, error) {
	if keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			return nil, false, ErrBadCSRFKey
		}
		return key, false, nil
	}
	if production {
		return nil, false, errSecretRequired
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generate key: %w", err)
	}
	return key, true, nil
}

func intVar(getenv func(string) string, key string, fallback int) (int, error) {
	v := getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, v)
	}
	return n, nil
}

func msVar(getenv func(string) string, key string, fallback int) (time.Duration, error) {
	n, err := intVar(getenv, key, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Millisecond, nil
}

func boolVar(getenv func(string) string, key string, fallback bool) (bool, error) {
	v := getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false, got %q", key, v)
	}
	return b, nil
}
