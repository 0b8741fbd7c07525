package runtime

import (
	"strings"
	"testing"
	"time"
)

type clientConfig struct {
	BaseURL    string        `yaml:"base_url" default:"https://example.com" validate:"required,url_format"`
	Timeout    time.Duration `yaml:"timeout" default:"30s" validate:"gte=1s"`
	MaxRetries int           `yaml:"max_retries" default:"0" validate:"gte=0,lte=10"`
	Shape      string        `yaml:"shape" default:"full" validate:"oneof=full short"`
	Debug      bool          `yaml:"debug"`
}

type hostPortConfig struct {
	HostPort string `validate:"hostname_port"`
}

type listenConfig struct {
	Addr string `validate:"listen_addr"`
}

type urlConfig struct {
	URL string `validate:"url_format"`
}

func TestApplyDefaults_ClientConfig(t *testing.T) {
	config := clientConfig{}

	if err := ApplyDefaults(&config); err != nil {
		t.Fatalf("ApplyDefaults failed: %v", err)
	}

	if config.BaseURL != "https://example.com" {
		t.Errorf("Expected BaseURL='https://example.com', got '%s'", config.BaseURL)
	}
	if config.Timeout != 30*time.Second {
		t.Errorf("Expected Timeout=30s, got %v", config.Timeout)
	}
	if config.Shape != "full" {
		t.Errorf("Expected Shape='full', got '%s'", config.Shape)
	}
}

func TestApplyDefaults_NilConfig(t *testing.T) {
	if err := ApplyDefaults(nil); err == nil {
		t.Error("Expected error for nil config, got nil")
	}
}

func TestInitializeConfig_RawValuesOverrideDefaults(t *testing.T) {
	config := clientConfig{}

	err := InitializeConfig(&config, map[string]any{
		"base_url":    "http://127.0.0.1:9000",
		"timeout":     "5s",
		"max_retries": "2", // weakly typed
		"shape":       "short",
	})
	if err != nil {
		t.Fatalf("InitializeConfig failed: %v", err)
	}

	if config.BaseURL != "http://127.0.0.1:9000" {
		t.Errorf("Expected overridden BaseURL, got '%s'", config.BaseURL)
	}
	if config.Timeout != 5*time.Second {
		t.Errorf("Expected Timeout=5s, got %v", config.Timeout)
	}
	if config.MaxRetries != 2 {
		t.Errorf("Expected MaxRetries=2, got %d", config.MaxRetries)
	}
	if config.Shape != "short" {
		t.Errorf("Expected Shape='short', got '%s'", config.Shape)
	}
}

func TestInitializeConfig_ValidationFailsAfterMerge(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"timeout below minimum", map[string]any{"timeout": "10ms"}},
		{"retries above maximum", map[string]any{"max_retries": 11}},
		{"unknown shape", map[string]any{"shape": "huge"}},
		{"base url without scheme", map[string]any{"base_url": "example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := clientConfig{}
			err := InitializeConfig(&config, tt.raw)
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), "validation") {
				t.Errorf("Expected error to mention 'validation', got: %v", err)
			}
		})
	}
}

func TestInitializeConfig_BadRawValue(t *testing.T) {
	config := clientConfig{}
	err := InitializeConfig(&config, map[string]any{"timeout": "soon"})
	if err == nil {
		t.Fatal("Expected error for unparsable duration, got nil")
	}
}

func TestCustomValidator_HostnamePort(t *testing.T) {
	tests := []struct {
		name      string
		hostPort  string
		shouldErr bool
	}{
		{"valid localhost", "localhost:4317", false},
		{"valid IP", "192.168.1.1:8080", false},
		{"valid IPv6", "[::1]:8080", false},
		{"invalid no port", "localhost", true},
		{"invalid no host", ":8080", true},
		{"invalid format", "localhost:port", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(hostPortConfig{HostPort: tt.hostPort})
			if tt.shouldErr && err == nil {
				t.Errorf("Expected validation error for '%s', got nil", tt.hostPort)
			}
			if !tt.shouldErr && err != nil {
				t.Errorf("Expected no error for '%s', got: %v", tt.hostPort, err)
			}
		})
	}
}

func TestCustomValidator_ListenAddr(t *testing.T) {
	tests := []struct {
		addr      string
		shouldErr bool
	}{
		{":8080", false},
		{"0.0.0.0:8080", false},
		{"localhost:9000", false},
		{"8080", true},
		{"localhost:", true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := validateConfig(listenConfig{Addr: tt.addr})
			if tt.shouldErr && err == nil {
				t.Errorf("Expected validation error for '%s', got nil", tt.addr)
			}
			if !tt.shouldErr && err != nil {
				t.Errorf("Expected no error for '%s', got: %v", tt.addr, err)
			}
		})
	}
}

func TestCustomValidator_URLFormat(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		shouldErr bool
	}{
		{"valid HTTPS", "https://www.random.org", false},
		{"valid with port", "http://127.0.0.1:8080", false},
		{"invalid no scheme", "www.random.org", true},
		{"invalid no host", "http://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(urlConfig{URL: tt.url})
			if tt.shouldErr && err == nil {
				t.Errorf("Expected validation error for '%s', got nil", tt.url)
			}
			if !tt.shouldErr && err != nil {
				t.Errorf("Expected no error for '%s', got: %v", tt.url, err)
			}
		})
	}
}

func TestValidateConfig_NilConfig(t *testing.T) {
	if err := validateConfig(nil); err == nil {
		t.Error("Expected error for nil config, got nil")
	}
}

func TestParseAppConfig_Defaults(t *testing.T) {
	cfg, err := ParseAppConfig([]byte(""))
	if err != nil {
		t.Fatalf("ParseAppConfig failed: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Expected Addr=':8080', got '%s'", cfg.Server.Addr)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected ShutdownTimeout=10s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Expected info/text logging, got %s/%s", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.Telemetry.Enabled {
		t.Error("Expected telemetry to be disabled by default")
	}
	if !cfg.Telemetry.Insecure {
		t.Error("Expected telemetry.insecure default true")
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" || cfg.Metrics.Namespace != "randomnode" {
		t.Errorf("Unexpected metrics defaults: %+v", cfg.Metrics)
	}
}

func TestParseAppConfig_FileValuesAndEnv(t *testing.T) {
	t.Setenv("RANDOM_BASE_URL", "http://127.0.0.1:9999")

	cfg, err := ParseAppConfig([]byte(`
server:
  addr: "127.0.0.1:9090"
  shutdown_timeout: 3s
log:
  level: debug
  format: json
telemetry:
  insecure: false
  endpoint: "${RANDOMNODE_TEST_OTEL_ENDPOINT:collector:4317}"
nodes:
  random:
    base_url: "${RANDOM_BASE_URL}"
    output_shape: minimal
`))
	if err != nil {
		t.Fatalf("ParseAppConfig failed: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:9090" {
		t.Errorf("Expected Addr='127.0.0.1:9090', got '%s'", cfg.Server.Addr)
	}
	if cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("Expected ShutdownTimeout=3s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Expected debug/json logging, got %s/%s", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.Telemetry.Insecure {
		t.Error("Expected explicit insecure=false to survive defaults")
	}
	if cfg.Telemetry.Endpoint != "collector:4317" {
		t.Errorf("Expected env default endpoint, got '%s'", cfg.Telemetry.Endpoint)
	}

	node := cfg.Nodes["random"]
	if node["base_url"] != "http://127.0.0.1:9999" {
		t.Errorf("Expected base_url from env, got %v", node["base_url"])
	}
	if node["output_shape"] != "minimal" {
		t.Errorf("Expected output_shape='minimal', got %v", node["output_shape"])
	}
}

func TestParseAppConfig_MissingEnvVar(t *testing.T) {
	_, err := ParseAppConfig([]byte(`
nodes:
  random:
    base_url: "${RANDOMNODE_TEST_UNSET_VAR}"
`))
	if err == nil {
		t.Fatal("Expected error for unset environment variable, got nil")
	}
	if !strings.Contains(err.Error(), "RANDOMNODE_TEST_UNSET_VAR") {
		t.Errorf("Expected error to name the variable, got: %v", err)
	}
}

func TestParseAppConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad log level", "log:\n  level: loud\n"},
		{"bad addr", "server:\n  addr: nowhere\n"},
		{"bad sample ratio", "telemetry:\n  sample_ratio: 2\n"},
		{"relative metrics path", "metrics:\n  path: metrics\n"},
		{"malformed yaml", "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseAppConfig([]byte(tt.yaml)); err == nil {
				t.Errorf("Expected error for %s, got nil", tt.name)
			}
		})
	}
}

func BenchmarkInitializeConfig(b *testing.B) {
	raw := map[string]any{"timeout": "5s", "shape": "short"}
	for i := 0; i < b.N; i++ {
		config := clientConfig{}
		_ = InitializeConfig(&config, raw)
	}
}

func TestLoadAppConfig_ExampleFile(t *testing.T) {
	cfg, err := LoadAppConfig("../config.example.yaml")
	if err != nil {
		t.Fatalf("LoadAppConfig failed: %v", err)
	}

	node := cfg.Nodes["random"]
	if node == nil {
		t.Fatal("Expected nodes.random section")
	}
	if _, ok := node["base_url"].(string); !ok {
		t.Errorf("Expected resolved base_url, got %v", node["base_url"])
	}
}

func TestLoadAppConfig_MissingFile(t *testing.T) {
	if _, err := LoadAppConfig("does-not-exist.yaml"); err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}
