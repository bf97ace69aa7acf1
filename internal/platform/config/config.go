package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config is the full process configuration, read once in main.
type Config struct {
	Server   Server
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Assets   AssetsConfig
	Ledger   LedgerConfig
	Security SecurityConfig
	Workers  WorkersConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Environment     string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	// ClaimTimeout bounds issue and claim requests, which wait on the ledger.
	ClaimTimeout time.Duration
	// SeedDemo loads a demo institution and accounts at startup. Refused in production.
	SeedDemo bool
}

// DatabaseConfig selects Postgres when URL is set; otherwise in-memory stores are used.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig enables the shared claim lock when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LockTTL      time.Duration
}

// KafkaConfig enables event publishing when Brokers is set.
type KafkaConfig struct {
	Brokers         string
	Topic           string
	Acks            string
	Retries         int
	DeliveryTimeout time.Duration
}

// AssetsConfig selects S3 when Bucket is set.
type AssetsConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// LinkTTL is the lifetime of presigned document links.
	LinkTTL time.Duration
}

// LedgerConfig selects the ERC-721 adapter when RPCURL is set.
type LedgerConfig struct {
	RPCURL          string
	ContractAddress string
	MinterKey       string
	CustodyKey      string
	// CustodyAddress is used by the in-memory ledger.
	CustodyAddress  string
	SubmitTimeout   time.Duration
	ConfirmTimeout  time.Duration
	PollInterval    time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
}

type SecurityConfig struct {
	JWTSigningKey    string
	JWTIssuer        string
	JWTAudience      string
	TokenTTL         time.Duration
	AdminAPIToken    string
	FingerprintKey   string
	BcryptCost       int
	Argon2MemoryKiB  uint32
	Argon2Iterations uint32
	LockoutThreshold int
	LockoutWindow    time.Duration
	LockoutDuration  time.Duration
}

type WorkersConfig struct {
	ReconcileInterval time.Duration
	ReconcileMinAge   time.Duration
	OutboxInterval    time.Duration
	OutboxRetention   time.Duration
}

const (
	devJWTKey         = "dev-secret-key-change-in-production"
	devFingerprintKey = "dev-fingerprint-key-change-in-production"
	devCustodyAddress = "0x000000000000000000000000000000000000c0de"
)

// FromEnv builds the configuration from environment variables so main stays lean.
// Development defaults are refused when VERICHAIN_ENV is production.
func FromEnv() (Config, error) {
	r := &reader{}
	cfg := Config{
		Server: Server{
			Addr:            r.str("VERICHAIN_ADDR", ":8080"),
			Environment:     r.str("VERICHAIN_ENV", "development"),
			RequestTimeout:  r.duration("REQUEST_TIMEOUT", 15*time.Second),
			ShutdownTimeout: r.duration("SHUTDOWN_TIMEOUT", 20*time.Second),
			SeedDemo:        r.bool("SEED_DEMO", false),
			ClaimTimeout:    r.duration("CLAIM_TIMEOUT", 90*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    r.int("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    r.int("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: r.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     r.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: r.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  r.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  r.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: r.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			LockTTL:      r.duration("CLAIM_LOCK_TTL", 2*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:         os.Getenv("KAFKA_BROKERS"),
			Topic:           r.str("KAFKA_TOPIC", "verichain.credential.events"),
			Acks:            r.str("KAFKA_ACKS", "all"),
			Retries:         r.int("KAFKA_RETRIES", 3),
			DeliveryTimeout: r.duration("KAFKA_DELIVERY_TIMEOUT", 30*time.Second),
		},
		Assets: AssetsConfig{
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    r.str("S3_REGION", "us-east-1"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			LinkTTL:   r.duration("S3_LINK_TTL", 15*time.Minute),
		},
		Ledger: LedgerConfig{
			RPCURL:          os.Getenv("LEDGER_RPC_URL"),
			ContractAddress: os.Getenv("LEDGER_CONTRACT_ADDRESS"),
			MinterKey:       os.Getenv("LEDGER_MINTER_KEY"),
			CustodyKey:      os.Getenv("LEDGER_CUSTODY_KEY"),
			CustodyAddress:  r.str("LEDGER_CUSTODY_ADDRESS", devCustodyAddress),
			SubmitTimeout:   r.duration("LEDGER_SUBMIT_TIMEOUT", 15*time.Second),
			ConfirmTimeout:  r.duration("LEDGER_CONFIRM_TIMEOUT", 60*time.Second),
			PollInterval:    r.duration("LEDGER_POLL_INTERVAL", 2*time.Second),
			BreakerFailures: r.int("LEDGER_BREAKER_FAILURES", 5),
			BreakerCooldown: r.duration("LEDGER_BREAKER_COOLDOWN", 30*time.Second),
		},
		Security: SecurityConfig{
			JWTSigningKey:    r.str("JWT_SIGNING_KEY", devJWTKey),
			JWTIssuer:        r.str("JWT_ISSUER", "verichain"),
			JWTAudience:      r.str("JWT_AUDIENCE", "verichain-api"),
			TokenTTL:         r.duration("TOKEN_TTL", 15*time.Minute),
			AdminAPIToken:    os.Getenv("ADMIN_API_TOKEN"),
			FingerprintKey:   r.str("SERIAL_FINGERPRINT_KEY", devFingerprintKey),
			BcryptCost:       r.int("BCRYPT_COST", 12),
			Argon2MemoryKiB:  r.uint32("ARGON2_MEMORY_KIB", 64*1024),
			Argon2Iterations: r.uint32("ARGON2_ITERATIONS", 3),
			LockoutThreshold: r.int("LOCKOUT_THRESHOLD", 5),
			LockoutWindow:    r.duration("LOCKOUT_WINDOW", 15*time.Minute),
			LockoutDuration:  r.duration("LOCKOUT_DURATION", 15*time.Minute),
		},
		Workers: WorkersConfig{
			ReconcileInterval: r.duration("RECONCILE_INTERVAL", 30*time.Second),
			ReconcileMinAge:   r.duration("RECONCILE_MIN_AGE", 2*time.Minute),
			OutboxInterval:    r.duration("OUTBOX_POLL_INTERVAL", 250*time.Millisecond),
			OutboxRetention:   r.duration("OUTBOX_RETENTION", 7*24*time.Hour),
		},
	}
	if err := r.err(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate checks combinations that cannot be caught per variable.
func (c Config) Validate() error {
	var errs []error
	if c.Ledger.RPCURL != "" {
		if c.Ledger.ContractAddress == "" || c.Ledger.MinterKey == "" || c.Ledger.CustodyKey == "" {
			errs = append(errs, errors.New("LEDGER_RPC_URL requires LEDGER_CONTRACT_ADDRESS, LEDGER_MINTER_KEY and LEDGER_CUSTODY_KEY"))
		}
	}
	if c.Assets.Bucket != "" && (c.Assets.AccessKey == "") != (c.Assets.SecretKey == "") {
		errs = append(errs, errors.New("S3_ACCESS_KEY and S3_SECRET_KEY must be set together"))
	}
	if n := len(c.Security.FingerprintKey); n < 16 || n > 64 {
		errs = append(errs, errors.New("SERIAL_FINGERPRINT_KEY must be 16 to 64 bytes"))
	}
	errs = append(errs, c.Security.validate()...)
	if c.IsProduction() {
		if c.Security.JWTSigningKey == devJWTKey {
			errs = append(errs, errors.New("JWT_SIGNING_KEY must be set in production"))
		}
		if c.Security.FingerprintKey == devFingerprintKey {
			errs = append(errs, errors.New("SERIAL_FINGERPRINT_KEY must be set in production"))
		}
		if c.Server.SeedDemo {
			errs = append(errs, errors.New("SEED_DEMO is not allowed in production"))
		}
		if c.Database.URL == "" || c.Ledger.RPCURL == "" || c.Assets.Bucket == "" {
			errs = append(errs, errors.New("production requires DATABASE_URL, LEDGER_RPC_URL and S3_BUCKET"))
		}
	}
	return errors.Join(errs...)
}

const (
	minArgon2MemoryKiB = 8 * 1024
	maxArgon2MemoryKiB = 1 << 22
)

func (s SecurityConfig) validate() []error {
	var errs []error
	if s.BcryptCost < bcrypt.MinCost || s.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be %d to %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if s.Argon2Iterations < 1 {
		errs = append(errs, errors.New("ARGON2_ITERATIONS must be at least 1"))
	}
	if s.Argon2MemoryKiB < minArgon2MemoryKiB || s.Argon2MemoryKiB > maxArgon2MemoryKiB {
		errs = append(errs, fmt.Errorf("ARGON2_MEMORY_KIB must be %d to %d", minArgon2MemoryKiB, maxArgon2MemoryKiB))
	}
	if s.LockoutThreshold < 1 {
		errs = append(errs, errors.New("LOCKOUT_THRESHOLD must be at least 1"))
	}
	if s.LockoutWindow <= 0 || s.LockoutDuration <= 0 {
		errs = append(errs, errors.New("LOCKOUT_WINDOW and LOCKOUT_DURATION must be positive"))
	}
	return errs
}

// reader collects parse errors so every bad variable is reported at once.
type reader struct {
	errs []error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

// uint32 rejects negatives and overflow instead of wrapping.
func (r *reader) uint32(key string, def uint32) uint32 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return uint32(n)
}

func (r *reader) bool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (r *reader) err() error {
	return errors.Join(r.errs...)
}
