package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// It is built once in main and handed to constructors by value.
type Config struct {
	App   AppConfig
	Token TokenConfig
	Store StoreConfig
	DB    DBConfig
	Redis RedisConfig
	CORS  CORSConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type TokenConfig struct {
	// Secret is standard base64. Only read in signed mode.
	Secret string
	Signed bool
}

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type StoreConfig struct {
	Backend string

	// DurabilityIndex selects the write guarantee: 0 none, 1 majority,
	// 2 majority and persist to active, 3 persist to majority.
	DurabilityIndex   int
	DurabilityTimeout time.Duration
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int

	// Replicas is how many replicas the deployment runs; durability levels
	// above none wait for a majority of them.
	Replicas int
}

type CORSConfig struct {
	AllowedOrigins []string
}

const (
	maxDurabilityIndex    = 3
	defaultAllowedOrigin  = "http://localhost:8081"
	defaultDurabilityWait = 2 * time.Second
)

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Token.Secret = os.Getenv("TOKEN_SECRET")
	{
		b, err := optionalBool("TOKEN_SIGNED", true)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Token.Signed = b
	}

	c.Store.Backend = strings.TrimSpace(os.Getenv("STORE_BACKEND"))
	{
		n, err := optionalInt("STORE_DURABILITY", 0)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Store.DurabilityIndex = n
	}
	{
		d, err := optionalDuration("STORE_DURABILITY_TIMEOUT")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Store.DurabilityTimeout = d
	}

	if c.Store.Backend == BackendPostgres {
		c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
		{
			n, err := mustInt("DB_PORT")
			n, parseErrs = appendParseErr(parseErrs, n, err)
			c.DB.Port = n
		}
		c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
		c.DB.Password = os.Getenv("DB_PASSWORD")
		c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
		c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	}

	if c.Store.Backend == BackendRedis {
		c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
		{
			n, err := mustInt("REDIS_PORT")
			n, parseErrs = appendParseErr(parseErrs, n, err)
			c.Redis.Port = n
		}
		c.Redis.Password = os.Getenv("REDIS_PASSWORD")
		{
			n, err := optionalInt("REDIS_DB", 0)
			n, parseErrs = appendParseErr(parseErrs, n, err)
			c.Redis.DB = n
		}
		{
			n, err := optionalInt("REDIS_REPLICAS", 0)
			n, parseErrs = appendParseErr(parseErrs, n, err)
			c.Redis.Replicas = n
		}
	}

	c.CORS.AllowedOrigins = splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every problem at once and fills in defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Token.Signed {
		if strings.TrimSpace(c.Token.Secret) == "" {
			errs = append(errs, errors.New("TOKEN_SECRET is required when TOKEN_SIGNED is true"))
		} else if _, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.Token.Secret)); err != nil {
			errs = append(errs, errors.New("TOKEN_SECRET must be standard base64"))
		}
	} else if c.IsProduction() {
		errs = append(errs, errors.New("TOKEN_SIGNED=false is not allowed in production"))
	}

	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		errs = append(errs, c.validateDB()...)
	case BackendRedis:
		errs = append(errs, c.validateRedis()...)
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be one of memory, postgres, redis, got %q", c.Store.Backend))
	}

	if c.Store.DurabilityIndex < 0 || c.Store.DurabilityIndex > maxDurabilityIndex {
		errs = append(errs, fmt.Errorf("STORE_DURABILITY must be between 0 and %d, got %d", maxDurabilityIndex, c.Store.DurabilityIndex))
	}
	if c.Store.DurabilityTimeout <= 0 {
		c.Store.DurabilityTimeout = defaultDurabilityWait
	}

	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{defaultAllowedOrigin}
	}

	return joinErrors(errs)
}

func (c *Config) validateDB() []error {
	var errs []error
	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	return errs
}

func (c *Config) validateRedis() []error {
	var errs []error
	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}
	if c.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("REDIS_DB must not be negative, got %d", c.Redis.DB))
	}
	if c.Redis.Replicas < 0 {
		errs = append(errs, fmt.Errorf("REDIS_REPLICAS must not be negative, got %d", c.Redis.Replicas))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) IsLocal() bool {
	return c.App.Env == "local" || c.App.Env == "dev"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string, def int) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return def, nil
	}
	return mustInt(key)
}

func optionalBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

func optionalDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got %q", key, v)
	}
	return d, nil
}

func splitCSV(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
