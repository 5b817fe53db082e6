package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvDevelopment disables the Secure attribute on auth cookies.
const EnvDevelopment = "development"

// Config holds application level configuration loaded from environment variables
// and, optionally, a YAML file named by CONFIG_FILE.
type Config struct {
	AppEnv      string
	ServerPort  string
	GuardPort   string
	SwaggerHost string

	DBDriver    string
	DatabaseDSN string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	JWTSecret           string
	TokenTTL            time.Duration
	RefreshTokenTTL     time.Duration
	BcryptCost          int
	PasswordMinLength   int
	LoginRateLimit      int
	LoginRateWindow     time.Duration
	RateLimitBackend    string
	// TrustedProxies are the peers allowed to set X-Forwarded-For for the
	// login limiter. Empty means the peer address is the client.
	TrustedProxies []*net.IPNet
	IdentityProviderURL string
	IdentityTimeout     time.Duration

	UpstreamURL  string
	SignInPath   string
	LandingPath  string
	NotFoundPath string
	// Permissions overrides the built-in role-permission table when non-empty.
	Permissions map[string][]string

	LogLevel     string
	LogFormat    string
	OTLPEndpoint string
}

// Load builds Config from environment with sensible defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	tokenTTL, err := ParseTTL(v.GetString("TOKEN_EXPIRY"))
	if err != nil {
		return nil, fmt.Errorf("TOKEN_EXPIRY: %w", err)
	}
	refreshTTL, err := ParseTTL(v.GetString("REFRESH_TOKEN_EXPIRY"))
	if err != nil {
		return nil, fmt.Errorf("REFRESH_TOKEN_EXPIRY: %w", err)
	}

	proxies, err := parseProxies(v.GetStringSlice("TRUSTED_PROXIES"))
	if err != nil {
		return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}

	cfg := &Config{
		AppEnv:      strings.ToLower(v.GetString("APP_ENV")),
		ServerPort:  v.GetString("SERVER_PORT"),
		GuardPort:   v.GetString("GUARD_PORT"),
		SwaggerHost: v.GetString("SWAGGER_HOST"),

		DBDriver:    strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseDSN: v.GetString("DATABASE_DSN"),
		RedisAddr:   v.GetString("REDIS_ADDR"),
		RedisDB:     v.GetInt("REDIS_DB"),
		RedisPass:   v.GetString("REDIS_PASSWORD"),

		JWTSecret:           v.GetString("JWT_SECRET"),
		TokenTTL:            tokenTTL,
		RefreshTokenTTL:     refreshTTL,
		BcryptCost:          v.GetInt("BCRYPT_COST"),
		PasswordMinLength:   v.GetInt("PASSWORD_MIN_LENGTH"),
		LoginRateLimit:      v.GetInt("LOGIN_RATE_LIMIT"),
		LoginRateWindow:     v.GetDuration("LOGIN_RATE_WINDOW"),
		RateLimitBackend:    strings.ToLower(v.GetString("RATE_LIMIT_BACKEND")),
		TrustedProxies:      proxies,
		IdentityProviderURL: strings.TrimRight(v.GetString("IDENTITY_PROVIDER_URL"), "/"),
		IdentityTimeout:     v.GetDuration("IDENTITY_TIMEOUT"),

		UpstreamURL:  v.GetString("UPSTREAM_URL"),
		SignInPath:   v.GetString("SIGN_IN_PATH"),
		LandingPath:  v.GetString("LANDING_PATH"),
		NotFoundPath: v.GetString("NOT_FOUND_PATH"),
		Permissions:  permissions(v),

		LogLevel:     v.GetString("LOG_LEVEL"),
		LogFormat:    v.GetString("LOG_FORMAT"),
		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("GUARD_PORT", "3000")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=prepai port=5432 sslmode=disable")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("TOKEN_EXPIRY", "1d")
	v.SetDefault("REFRESH_TOKEN_EXPIRY", "7d")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("PASSWORD_MIN_LENGTH", 8)
	v.SetDefault("LOGIN_RATE_LIMIT", 5)
	v.SetDefault("LOGIN_RATE_WINDOW", 15*time.Minute)
	v.SetDefault("RATE_LIMIT_BACKEND", "memory")
	v.SetDefault("IDENTITY_PROVIDER_URL", "http://localhost:8080")
	v.SetDefault("IDENTITY_TIMEOUT", 5*time.Second)
	v.SetDefault("UPSTREAM_URL", "http://localhost:3001")
	v.SetDefault("SIGN_IN_PATH", "/auth/login")
	v.SetDefault("LANDING_PATH", "/dashboard")
	v.SetDefault("NOT_FOUND_PATH", "/404")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// permissions reads guard.permissions from the config file. Viper lowercases map
// keys, so role names are upper-cased back here.
func permissions(v *viper.Viper) map[string][]string {
	raw := v.GetStringMapStringSlice("guard.permissions")
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string][]string, len(raw))
	for role, patterns := range raw {
		out[strings.ToUpper(role)] = patterns
	}
	return out
}

// parseProxies accepts CIDRs or bare addresses, comma or space separated.
func parseProxies(entries []string) ([]*net.IPNet, error) {
	var out []*net.IPNet
	for _, entry := range entries {
		for _, s := range strings.FieldsFunc(entry, func(r rune) bool { return r == ',' || r == ' ' }) {
			if !strings.Contains(s, "/") {
				ip := net.ParseIP(s)
				if ip == nil {
					return nil, fmt.Errorf("invalid address %q", s)
				}
				bits := 128
				if ip.To4() != nil {
					ip, bits = ip.To4(), 32
				}
				out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
				continue
			}
			_, n, err := net.ParseCIDR(s)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
	}
	return out, nil
}

// Validate rejects configurations the services cannot safely start with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_EXPIRY must be positive"))
	}
	if c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_EXPIRY must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST %d out of range [4,31]", c.BcryptCost))
	}
	if c.PasswordMinLength < 1 {
		errs = append(errs, errors.New("PASSWORD_MIN_LENGTH must be positive"))
	}
	if c.LoginRateLimit < 1 || c.LoginRateWindow <= 0 {
		errs = append(errs, errors.New("LOGIN_RATE_LIMIT and LOGIN_RATE_WINDOW must be positive"))
	}
	if c.IdentityTimeout <= 0 {
		errs = append(errs, errors.New("IDENTITY_TIMEOUT must be positive"))
	}
	switch c.DBDriver {
	case "postgres", "mysql":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	switch c.RateLimitBackend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unsupported RATE_LIMIT_BACKEND %q", c.RateLimitBackend))
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether cookies may be sent over plain HTTP.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// ParseTTL parses a Go duration, additionally accepting a whole-day suffix ("1d", "7d").
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q", s)
		}
		if n <= 0 {
			return 0, fmt.Errorf("duration %q must be positive", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return d, nil
}
