package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
	Session   SessionConfig
	Export    ExportConfig
	Credits   CreditsConfig
	Printer   PrinterConfig
}

type AppConfig struct {
	Name        string
	Env         string
	Port        string
	Debug       bool
	TemplateDir string // empty uses the built-in catalog
}

type DatabaseConfig struct {
	Driver       string // memory or postgres
	Host         string
	Port         string
	Name         string
	User         string
	Password     string
	SSLMode      string
	Timezone     string
	MaxIdleConns int
	MaxOpenConns int
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type RateLimitConfig struct {
	Requests int
	Duration int // seconds
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	IncludeCaller bool
}

type SessionConfig struct {
	DraftPath       string // empty keeps drafts in memory
	TTL             time.Duration
	PreviewDebounce time.Duration
}

type ExportConfig struct {
	Backend     string // browser or document
	Timeout     time.Duration
	ChromePath  string
	ChromeWSURL string
	FontDir     string
}

type CreditsConfig struct {
	DownloadCost         int64
	PaymentWebhookSecret string
}

type PrinterConfig struct {
	Type    string // none, network or serial
	Address string
	Device  string
	Baud    int
	Retries int
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"

	BackendBrowser  = "browser"
	BackendDocument = "document"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "receipt-studio")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_DEBUG", false)
	v.SetDefault("TEMPLATE_DIR", "")
	v.SetDefault("DB_DRIVER", DriverMemory)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "receipts")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 50)
	v.SetDefault("JWT_SECRET", "change-this-secret-in-production")
	v.SetDefault("JWT_EXPIRY", "24h")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Authorization", "X-Client-ID", "X-Request-ID"})
	v.SetDefault("RATE_LIMIT_REQUESTS", 30)
	v.SetDefault("RATE_LIMIT_DURATION", 60)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_INCLUDE_CALLER", false)
	v.SetDefault("DRAFT_PATH", "")
	v.SetDefault("SESSION_TTL", "30m")
	v.SetDefault("PREVIEW_DEBOUNCE", "500ms")
	v.SetDefault("EXPORT_BACKEND", BackendDocument)
	v.SetDefault("EXPORT_TIMEOUT", "30s")
	v.SetDefault("CHROME_PATH", "")
	v.SetDefault("CHROME_WS_URL", "")
	v.SetDefault("FONT_DIR", "")
	v.SetDefault("DOWNLOAD_COST", 1)
	v.SetDefault("PAYMENT_WEBHOOK_SECRET", "")
	v.SetDefault("PRINTER_TYPE", "none")
	v.SetDefault("PRINTER_ADDRESS", "")
	v.SetDefault("PRINTER_DEVICE", "")
	v.SetDefault("PRINTER_BAUD", 9600)
	v.SetDefault("PRINTER_RETRIES", 3)
}

// Load reads configuration from envFile (when present) and the environment.
// Environment variables win over the file.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("config file not read, using environment variables", "file", envFile, "error", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        v.GetString("APP_NAME"),
			Env:         v.GetString("APP_ENV"),
			Port:        v.GetString("APP_PORT"),
			Debug:       v.GetBool("APP_DEBUG"),
			TemplateDir: v.GetString("TEMPLATE_DIR"),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetString("DB_PORT"),
			Name:         v.GetString("DB_NAME"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			SSLMode:      v.GetString("DB_SSL_MODE"),
			Timezone:     v.GetString("DB_TIMEZONE"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			Expiry: v.GetDuration("JWT_EXPIRY"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetStringSlice("CORS_ALLOWED_ORIGINS")),
			AllowedMethods: splitList(v.GetStringSlice("CORS_ALLOWED_METHODS")),
			AllowedHeaders: splitList(v.GetStringSlice("CORS_ALLOWED_HEADERS")),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Duration: v.GetInt("RATE_LIMIT_DURATION"),
		},
		Logging: LoggingConfig{
			Level:         v.GetString("LOG_LEVEL"),
			Format:        v.GetString("LOG_FORMAT"),
			IncludeCaller: v.GetBool("LOG_INCLUDE_CALLER"),
		},
		Session: SessionConfig{
			DraftPath:       v.GetString("DRAFT_PATH"),
			TTL:             v.GetDuration("SESSION_TTL"),
			PreviewDebounce: v.GetDuration("PREVIEW_DEBOUNCE"),
		},
		Export: ExportConfig{
			Backend:     strings.ToLower(v.GetString("EXPORT_BACKEND")),
			Timeout:     v.GetDuration("EXPORT_TIMEOUT"),
			ChromePath:  v.GetString("CHROME_PATH"),
			ChromeWSURL: v.GetString("CHROME_WS_URL"),
			FontDir:     v.GetString("FONT_DIR"),
		},
		Credits: CreditsConfig{
			DownloadCost:         v.GetInt64("DOWNLOAD_COST"),
			PaymentWebhookSecret: v.GetString("PAYMENT_WEBHOOK_SECRET"),
		},
		Printer: PrinterConfig{
			Type:    strings.ToLower(v.GetString("PRINTER_TYPE")),
			Address: v.GetString("PRINTER_ADDRESS"),
			Device:  v.GetString("PRINTER_DEVICE"),
			Baud:    v.GetInt("PRINTER_BAUD"),
			Retries: v.GetInt("PRINTER_RETRIES"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverMemory, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("invalid DB_DRIVER %q", c.Database.Driver))
	}
	switch c.Export.Backend {
	case BackendBrowser, BackendDocument:
	default:
		errs = append(errs, fmt.Errorf("invalid EXPORT_BACKEND %q", c.Export.Backend))
	}
	switch c.Printer.Type {
	case "none", "":
	case "network":
		if c.Printer.Address == "" {
			errs = append(errs, errors.New("PRINTER_ADDRESS is required for a network printer"))
		}
	case "serial":
		if c.Printer.Device == "" {
			errs = append(errs, errors.New("PRINTER_DEVICE is required for a serial printer"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid PRINTER_TYPE %q", c.Printer.Type))
	}
	if c.Session.PreviewDebounce <= 0 {
		errs = append(errs, errors.New("PREVIEW_DEBOUNCE must be positive"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.Credits.DownloadCost < 0 {
		errs = append(errs, errors.New("DOWNLOAD_COST must not be negative"))
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Duration <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_DURATION must be positive"))
	}

	return errors.Join(errs...)
}

func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.Timezone
}

// splitList accepts both repeated values and a single comma separated one.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
