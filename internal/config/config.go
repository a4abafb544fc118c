package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Server   ServerConfig
	Store    string
	Postgres PostgresConfig
	Redis    RedisConfig
	LogLevel string
	Tickets  TicketsConfig
	Gateways []GatewayConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
		p.SSLMode,
	)
}

// TicketsConfig holds the reservation lifecycle knobs.
type TicketsConfig struct {
	ReservationTimeout time.Duration
	SweepInterval      time.Duration
	SweepBatchSize     int
	// PaymentTimeout of zero disables payment timeouts.
	PaymentTimeout     time.Duration
	CheckInWindow      time.Duration
	GatewayTimeout     time.Duration
	PurchaseRateLimit  int
	PurchaseRateWindow time.Duration
	IdempotencyTTL     time.Duration
	CacheTTL           time.Duration
}

// GatewayConfig describes one payment gateway entry of the gateways file.
type GatewayConfig struct {
	Kind    string `yaml:"kind"`
	Name    string `yaml:"name"`
	Secret  string `yaml:"secret"`
	BaseURL string `yaml:"base_url"`
}

type gatewaysFile struct {
	Gateways []GatewayConfig `yaml:"gateways"`
}

// New loads envFile (when it exists) into the environment and reads the
// configuration from it.
func New(envFile string) (*Config, error) {
	const op = "config.New"

	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: load %s: %w", op, envFile, err)
	}

	var r reader

	cfg := &Config{
		Server: ServerConfig{
			Host: r.str("SERVER_HOST", "localhost"),
			Port: r.int("SERVER_PORT", 8080),
		},
		Store: strings.ToLower(r.str("STORE", StorePostgres)),
		Postgres: PostgresConfig{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Name:     os.Getenv("POSTGRES_DB"),
			Host:     r.str("POSTGRES_HOST", "localhost"),
			Port:     r.int("POSTGRES_PORT", 5432),
			SSLMode:  r.str("POSTGRES_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  r.bool("REDIS_ENABLED", true),
			Addr:     r.str("REDIS_ADDR", "localhost:6380"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       r.int("REDIS_DB", 0),
		},
		LogLevel: r.str("LOG_LEVEL", "info"),
		Tickets: TicketsConfig{
			ReservationTimeout: r.duration("RESERVATION_TIMEOUT", 15*time.Minute),
			SweepInterval:      r.duration("SWEEP_INTERVAL", time.Minute),
			SweepBatchSize:     r.int("SWEEP_BATCH_SIZE", 500),
			PaymentTimeout:     r.duration("PAYMENT_TIMEOUT", 30*time.Minute),
			CheckInWindow:      r.duration("CHECKIN_WINDOW", 2*time.Hour),
			GatewayTimeout:     r.duration("GATEWAY_TIMEOUT", 10*time.Second),
			PurchaseRateLimit:  r.int("PURCHASE_RATE_LIMIT", 10),
			PurchaseRateWindow: r.duration("PURCHASE_RATE_WINDOW", time.Minute),
			IdempotencyTTL:     r.duration("IDEMPOTENCY_TTL", 2*time.Hour),
			CacheTTL:           r.duration("CACHE_TTL", 5*time.Second),
		},
	}
	if r.err != nil {
		return nil, fmt.Errorf("%s: %w", op, r.err)
	}

	switch cfg.Store {
	case StorePostgres:
		if cfg.Postgres.User == "" {
			return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
		}
		if cfg.Postgres.Password == "" {
			return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
		}
		if cfg.Postgres.Name == "" {
			return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("%s: invalid STORE %q", op, cfg.Store)
	}

	if cfg.Tickets.ReservationTimeout <= 0 {
		return nil, fmt.Errorf("%s: RESERVATION_TIMEOUT must be positive", op)
	}
	if cfg.Tickets.PaymentTimeout < 0 {
		return nil, fmt.Errorf("%s: PAYMENT_TIMEOUT must not be negative", op)
	}

	if path := os.Getenv("GATEWAYS_FILE"); path != "" {
		gws, err := LoadGateways(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		cfg.Gateways = gws
	} else if secret := os.Getenv("SANDBOX_SECRET"); secret != "" {
		cfg.Gateways = []GatewayConfig{{Kind: "sandbox", Name: "sandbox", Secret: secret}}
	}

	return cfg, nil
}

// LoadGateways reads the YAML gateways file at path.
func LoadGateways(path string) ([]GatewayConfig, error) {
	const op = "config.LoadGateways"

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var f gatewaysFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%s: parse %s: %w", op, path, err)
	}

	seen := make(map[string]struct{}, len(f.Gateways))
	for i, g := range f.Gateways {
		if g.Kind == "" {
			return nil, fmt.Errorf("%s: gateway %d: kind is required", op, i)
		}
		name := strings.ToLower(g.Name)
		if name == "" {
			name = strings.ToLower(g.Kind)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%s: duplicate gateway %q", op, name)
		}
		seen[name] = struct{}{}
		f.Gateways[i].Name = name
	}

	return f.Gateways, nil
}

// reader collects the first parse error so New can report it once.
type reader struct {
	err error
}

func (r *reader) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (r *reader) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return n
}

func (r *reader) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return d
}
