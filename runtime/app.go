package runtime

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type App struct {
	Config    AppConfig
	Container *Container
	Runner    *Runner
}

// AppConfig is the host configuration file.
type AppConfig struct {
	Server    ServerConfig              `yaml:"server"`
	Log       LogConfig                 `yaml:"log"`
	Telemetry TelemetryConfig           `yaml:"telemetry"`
	Metrics   MetricsConfig             `yaml:"metrics"`
	Nodes     map[string]map[string]any `yaml:"nodes"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" default:":8080" validate:"listen_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"text" validate:"oneof=text json"`
}

// TelemetryConfig controls OpenTelemetry export. Nothing is exported unless Enabled is set.
type TelemetryConfig struct {
	Enabled        bool          `yaml:"enabled" default:"false"`
	ServiceName    string        `yaml:"service_name" default:"randomnode" validate:"required"`
	ServiceVersion string        `yaml:"service_version" default:"1.0.0"`
	Environment    string        `yaml:"environment" default:"development"`
	Endpoint       string        `yaml:"endpoint" default:"localhost:4317" validate:"hostname_port"`
	Insecure       bool          `yaml:"insecure" default:"true"`
	SampleRatio    float64       `yaml:"sample_ratio" default:"1" validate:"gte=0,lte=1"`
	MetricInterval time.Duration `yaml:"metric_interval" default:"30s" validate:"gte=1s"`
	Logs           bool          `yaml:"logs" default:"false"`
}

// MetricsConfig controls the Prometheus scrape endpoint of the HTTP server.
type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled" default:"true"`
	Path           string `yaml:"path" default:"/metrics" validate:"startswith=/"`
	Namespace      string `yaml:"namespace" default:"randomnode"`
	ProcessMetrics bool   `yaml:"process_metrics" default:"true"`
}

// NewApp builds the container with the given nodes, preparing each node's
// config from the matching entry under nodes in cfg.
func NewApp(cfg AppConfig, logger *slog.Logger, nodes ...NodeType) (*App, error) {
	container := NewContainer()
	for _, node := range nodes {
		raw := cfg.Nodes[node.Description().Name]
		if err := container.RegisterNode(node, raw); err != nil {
			return nil, err
		}
	}

	runner, err := NewRunner(logger, container)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:    cfg,
		Container: container,
		Runner:    runner,
	}, nil
}

// DefaultAppConfig returns the configuration used when no file is given.
func DefaultAppConfig() (AppConfig, error) {
	var cfg AppConfig
	if err := prepareConfig(&cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// LoadAppConfig reads a YAML config file, resolves ${VAR} and ${VAR:default}
// references, applies defaults and validates the result.
func LoadAppConfig(path string) (AppConfig, error) {
	if path == "" {
		return DefaultAppConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, fmt.Errorf("error reading config file: %w", err)
	}
	return ParseAppConfig(data)
}

// ParseAppConfig is LoadAppConfig for in-memory YAML.
func ParseAppConfig(data []byte) (AppConfig, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return AppConfig{}, fmt.Errorf("error unmarshalling YAML: %w", err)
	}

	resolved, err := resolveEnvVars(raw)
	if err != nil {
		return AppConfig{}, err
	}

	// Defaults go first so explicit zero values in the file (false, 0) survive.
	var cfg AppConfig
	if err := ApplyDefaults(&cfg); err != nil {
		return AppConfig{}, err
	}
	if m, ok := resolved.(map[string]any); ok && len(m) > 0 {
		if err := mapToStructFromYAML(m, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("invalid config: %w", err)
		}
	}

	if err := validateConfig(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:default} syntax
var envVarPattern = regexp.MustCompile(`^\$\{([A-Z_][A-Z0-9_]*)(:[^}]*)?\}$`)

// resolveEnvVars walks a decoded YAML tree and substitutes environment references.
func resolveEnvVars(value any) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		for k, child := range v {
			r, err := resolveEnvVars(child)
			if err != nil {
				return nil, err
			}
			v[k] = r
		}
		return v, nil
	case []any:
		for i, child := range v {
			r, err := resolveEnvVars(child)
			if err != nil {
				return nil, err
			}
			v[i] = r
		}
		return v, nil
	default:
		return resolveEnvVar(value)
	}
}

// resolveEnvVar resolves environment variables in property values
func resolveEnvVar(value any) (any, error) {
	strValue, ok := value.(string)
	if !ok {
		return value, nil
	}

	matches := envVarPattern.FindStringSubmatch(strValue)
	if matches == nil {
		return value, nil
	}

	varName := matches[1]
	defaultPart := matches[2]

	if envValue, exists := os.LookupEnv(varName); exists {
		return envValue, nil
	}

	if defaultPart != "" {
		return strings.TrimPrefix(defaultPart, ":"), nil
	}

	return nil, fmt.Errorf("required environment variable not set: %s", varName)
}

// NewLogger builds the slog logger described by cfg.
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
