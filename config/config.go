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

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Services   ServicesConfig   `mapstructure:"services"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
	Composite  CompositeConfig  `mapstructure:"composite"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Log        LogConfig        `mapstructure:"log"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ServiceEndpoint is the address of one backend service
type ServiceEndpoint struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ServicesConfig holds the addresses of the three backends
type ServicesConfig struct {
	Product        ServiceEndpoint `mapstructure:"product"`
	Recommendation ServiceEndpoint `mapstructure:"recommendation"`
	Review         ServiceEndpoint `mapstructure:"review"`
}

// HTTPClientConfig bounds every outbound exchange
type HTTPClientConfig struct {
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout         time.Duration `mapstructure:"read_timeout"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
}

// CompositeConfig holds settings for building composite responses
type CompositeConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP        int     `mapstructure:"per_ip"`  // requests per minute, 0 disables
	Backend      float64 `mapstructure:"backend"` // requests per second per backend, 0 disables
	BackendBurst int     `mapstructure:"backend_burst"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry exporter configuration
type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"`
	Insecure          bool          `mapstructure:"insecure"`
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
}

// ProductURL returns the base URL the product id is appended to
func (s ServicesConfig) ProductURL() string {
	return "http://" + s.Product.address() + "/product/"
}

// RecommendationURL returns the base URL the product id is appended to
func (s ServicesConfig) RecommendationURL() string {
	return "http://" + s.Recommendation.address() + "/recommendation?productId="
}

// ReviewURL returns the base URL the product id is appended to
func (s ServicesConfig) ReviewURL() string {
	return "http://" + s.Review.address() + "/review?productId="
}

func (e ServiceEndpoint) address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/product-composite/")

	// COMPOSITE_SERVICES_PRODUCT_HOST -> services.product.host
	v.SetEnvPrefix("COMPOSITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "7000")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})
	v.SetDefault("server.shutdown_timeout", "10s")

	// Backend defaults
	v.SetDefault("services.product.host", "localhost")
	v.SetDefault("services.product.port", 7001)
	v.SetDefault("services.recommendation.host", "localhost")
	v.SetDefault("services.recommendation.port", 7002)
	v.SetDefault("services.review.host", "localhost")
	v.SetDefault("services.review.port", 7003)

	// Outbound client defaults
	v.SetDefault("http_client.connect_timeout", "2s")
	v.SetDefault("http_client.read_timeout", "5s")
	v.SetDefault("http_client.max_idle_conns_per_host", 16)

	v.SetDefault("composite.timeout", "10s")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)
	v.SetDefault("ratelimit.backend", 0)
	v.SetDefault("ratelimit.backend_burst", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.collector_endpoint", "localhost:4317")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("telemetry.service_name", "product-composite")
	v.SetDefault("telemetry.metrics_interval", "60s")
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Server.Environment {
	case "development", "production", "test":
	default:
		return fmt.Errorf("environment must be 'development', 'production' or 'test', got: %s", config.Server.Environment)
	}

	if config.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server shutdown timeout must be positive, got: %s", config.Server.ShutdownTimeout)
	}

	endpoints := map[string]ServiceEndpoint{
		"product":        config.Services.Product,
		"recommendation": config.Services.Recommendation,
		"review":         config.Services.Review,
	}
	for _, name := range []string{"product", "recommendation", "review"} {
		endpoint := endpoints[name]
		if endpoint.Host == "" {
			return fmt.Errorf("%s service host is required", name)
		}
		if endpoint.Port < 1 || endpoint.Port > 65535 {
			return fmt.Errorf("%s service port must be between 1 and 65535, got: %d", name, endpoint.Port)
		}
	}

	if config.HTTPClient.ConnectTimeout <= 0 || config.HTTPClient.ReadTimeout <= 0 {
		return fmt.Errorf("http client timeouts must be positive")
	}

	if config.Composite.Timeout <= 0 {
		return fmt.Errorf("composite timeout must be positive, got: %s", config.Composite.Timeout)
	}

	if config.RateLimit.PerIP < 0 || config.RateLimit.Backend < 0 || config.RateLimit.BackendBurst < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}

	switch strings.ToLower(config.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error, got: %s", config.Log.Level)
	}

	switch config.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log format must be 'console' or 'json', got: %s", config.Log.Format)
	}

	if config.Telemetry.SamplingRatio < 0 || config.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry sampling ratio must be between 0 and 1, got: %v", config.Telemetry.SamplingRatio)
	}

	if config.Telemetry.Enabled && config.Telemetry.CollectorEndpoint == "" {
		return fmt.Errorf("telemetry collector endpoint is required when telemetry is enabled")
	}

	return nil
}
