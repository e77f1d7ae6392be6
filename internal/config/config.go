package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Dispatcher backends.
const (
	DispatcherLocal = "local"
	DispatcherRedis = "redis"
)

// Duration is a time.Duration that decodes from TOML strings such as "5s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all runtime configuration. Values come from defaults, then
// an optional TOML file, then environment variables; later sources win.
// Only the database URL is required.
type Config struct {
	Server   Server   `toml:"server"`
	Database Database `toml:"database"`
	Dispatch Dispatch `toml:"dispatch"`
	Refill   Refill   `toml:"refill"`
	Queue    Queue    `toml:"queue"`
	Logging  Logging  `toml:"logging"`
}

type Server struct {
	HTTPPort        string   `toml:"http_port"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

type Database struct {
	URL      string `toml:"url"`
	MaxConns int32  `toml:"max_conns"`
	MinConns int32  `toml:"min_conns"`
}

type Dispatch struct {
	// Backend is "local" (in-process channel queue) or "redis".
	Backend   string `toml:"backend"`
	RedisURL  string `toml:"redis_url"`
	RedisList string `toml:"redis_list"`
	Capacity  int    `toml:"capacity"`
}

type Refill struct {
	Workers       int      `toml:"workers"`
	Size          int      `toml:"size"`
	RateLimit     int      `toml:"rate_limit"`
	SweepInterval Duration `toml:"sweep_interval"`
}

type Queue struct {
	SamplerMaxRounds  int      `toml:"sampler_max_rounds"`
	CASMaxAttempts    int      `toml:"cas_max_attempts"`
	CASBackoffInitial Duration `toml:"cas_backoff_initial"`
	CASBackoffMax     Duration `toml:"cas_backoff_max"`
	FanoutConcurrency int      `toml:"fanout_concurrency"`
}

type Logging struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: Server{
			HTTPPort:        "8080",
			ReadTimeout:     Duration(5 * time.Second),
			WriteTimeout:    Duration(10 * time.Second),
			ShutdownTimeout: Duration(30 * time.Second),
		},
		Database: Database{MaxConns: 25, MinConns: 5},
		Dispatch: Dispatch{
			Backend:   DispatcherLocal,
			RedisURL:  "redis://localhost:6379/0",
			RedisList: "subjectqueue:refills",
			Capacity:  2000,
		},
		Refill: Refill{
			Workers:       4,
			Size:          20,
			RateLimit:     50,
			SweepInterval: Duration(time.Minute),
		},
		Queue: Queue{
			SamplerMaxRounds:  10,
			CASMaxAttempts:    5,
			CASBackoffInitial: Duration(10 * time.Millisecond),
			CASBackoffMax:     Duration(200 * time.Millisecond),
			FanoutConcurrency: 8,
		},
		Logging: Logging{Level: "info"},
	}
}

// Load builds the configuration. path names a TOML file; when empty the
// CONFIG_FILE environment variable is consulted. A named file that does
// not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) decodeFile(path string) error {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config file %s not found", path)
	}
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.HTTPPort = getEnv("HTTP_PORT", c.Server.HTTPPort)
	c.Server.ReadTimeout = getDuration("READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getDuration("WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Database.MaxConns = int32(getInt("DB_MAX_CONNS", int(c.Database.MaxConns)))
	c.Database.MinConns = int32(getInt("DB_MIN_CONNS", int(c.Database.MinConns)))

	c.Dispatch.Backend = getEnv("DISPATCHER", c.Dispatch.Backend)
	c.Dispatch.RedisURL = getEnv("REDIS_URL", c.Dispatch.RedisURL)
	c.Dispatch.RedisList = getEnv("REDIS_LIST", c.Dispatch.RedisList)
	c.Dispatch.Capacity = getInt("DISPATCH_CAPACITY", c.Dispatch.Capacity)

	c.Refill.Workers = getInt("REFILL_WORKERS", c.Refill.Workers)
	c.Refill.Size = getInt("REFILL_SIZE", c.Refill.Size)
	c.Refill.RateLimit = getInt("REFILL_RATE_LIMIT", c.Refill.RateLimit)
	c.Refill.SweepInterval = getDuration("SWEEP_INTERVAL", c.Refill.SweepInterval)

	c.Queue.SamplerMaxRounds = getInt("SAMPLER_MAX_ROUNDS", c.Queue.SamplerMaxRounds)
	c.Queue.CASMaxAttempts = getInt("CAS_MAX_ATTEMPTS", c.Queue.CASMaxAttempts)
	c.Queue.CASBackoffInitial = getDuration("CAS_BACKOFF_INITIAL", c.Queue.CASBackoffInitial)
	c.Queue.CASBackoffMax = getDuration("CAS_BACKOFF_MAX", c.Queue.CASBackoffMax)
	c.Queue.FanoutConcurrency = getInt("FANOUT_CONCURRENCY", c.Queue.FanoutConcurrency)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
}

// Validate checks the values that have no safe fallback.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.Dispatch.Backend {
	case DispatcherLocal, DispatcherRedis:
	default:
		return fmt.Errorf("unknown dispatcher %q (want %s or %s)", c.Dispatch.Backend, DispatcherLocal, DispatcherRedis)
	}
	if c.Refill.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	if c.Queue.CASBackoffMax < c.Queue.CASBackoffInitial {
		return fmt.Errorf("cas backoff max %s is below initial %s",
			c.Queue.CASBackoffMax.Std(), c.Queue.CASBackoffInitial.Std())
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal Duration) Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return Duration(d)
		}
	}
	return defaultVal
}
