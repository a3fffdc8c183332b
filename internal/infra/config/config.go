package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level camsession configuration.
type Config struct {
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
	Capture   CaptureConfig   `yaml:"capture"`
	Renderer  RendererConfig  `yaml:"renderer"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// CaptureConfig selects the capture backend and session defaults.
type CaptureConfig struct {
	Backend          string          `yaml:"backend"` // "synthetic", "mediadevices" or "v4l2"
	DefaultDevice    string          `yaml:"default_device,omitempty"`
	EnableAudio      bool            `yaml:"enable_audio"`
	ResolutionPreset string          `yaml:"resolution_preset"`
	MediaDir         string          `yaml:"media_dir"`
	AudioBackend     string          `yaml:"audio_backend"` // "none" or "portaudio"
	AudioSampleRate  int             `yaml:"audio_sample_rate"`
	Synthetic        SyntheticConfig `yaml:"synthetic"`
}

// SyntheticConfig drives the built-in test pattern device.
type SyntheticConfig struct {
	Devices int      `yaml:"devices"`
	FPS     int      `yaml:"fps"`
	Sizes   []string `yaml:"sizes"` // "WxH"
}

// RendererConfig holds preview texture settings.
type RendererConfig struct {
	MaxFPS      float64 `yaml:"max_fps"`
	Burst       int     `yaml:"burst"`
	JPEGQuality int     `yaml:"jpeg_quality"`
}

// GatewayConfig holds WebSocket gateway settings.
type GatewayConfig struct {
	Enabled   bool            `yaml:"enabled"`
	Addr      string          `yaml:"addr"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig limits HTTP requests per client IP. Zero RequestsPerMin
// disables the limit.
type RateLimitConfig struct {
	RequestsPerMin int      `yaml:"requests_per_min"`
	Burst          int      `yaml:"burst"`
	TrustedProxies []string `yaml:"trusted_proxies,omitempty"`
}

// AuthConfig holds gateway authentication settings.
type AuthConfig struct {
	Type   string        `yaml:"type"` // "static" or ""
	Tokens []TokenConfig `yaml:"tokens,omitempty"`
}

// TokenConfig holds a single gateway auth token, in plain text or as an
// argon2id hash produced by "camsession hash-token".
type TokenConfig struct {
	Token     string   `yaml:"token,omitempty"`
	TokenHash string   `yaml:"token_hash,omitempty"`
	Name      string   `yaml:"name"`
	Roles     []string `yaml:"roles"`
}

// CatalogConfig holds the media catalog settings.
type CatalogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// SchedulerConfig holds scheduled task settings.
type SchedulerConfig struct {
	Enabled bool                  `yaml:"enabled"`
	Tasks   []ScheduledTaskConfig `yaml:"tasks"`
}

// ScheduledTaskConfig defines a single scheduled task.
type ScheduledTaskConfig struct {
	Name     string        `yaml:"name"`
	Schedule string        `yaml:"schedule"` // cron expression or duration string
	Action   string        `yaml:"action"`   // "snapshot" or "catalog_retention"
	DeviceID string        `yaml:"device_id,omitempty"`
	MaxAge   time.Duration `yaml:"max_age,omitempty"`
	OneShot  bool          `yaml:"one_shot,omitempty"`
}

// BreakerConfig guards device opens with a circuit breaker.
type BreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// DiscoveryConfig holds mDNS advertisement settings.
type DiscoveryConfig struct {
	MDNS bool   `yaml:"mdns"`
	Name string `yaml:"name"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// defaultDataDir returns $HOME/.camsession, or "./data" without a home directory.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".camsession")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Exporter: "noop",
		},
		Capture: CaptureConfig{
			Backend:          "synthetic",
			ResolutionPreset: "veryHigh",
			MediaDir:         filepath.Join(dataDir, "media"),
			AudioBackend:     "none",
			AudioSampleRate:  44100,
			Synthetic: SyntheticConfig{
				Devices: 1,
				FPS:     30,
				Sizes:   []string{"640x480", "1280x720", "1920x1080"},
			},
		},
		Renderer: RendererConfig{
			MaxFPS:      15,
			Burst:       1,
			JPEGQuality: 80,
		},
		Gateway: GatewayConfig{
			Addr:      "127.0.0.1:8790",
			RateLimit: RateLimitConfig{RequestsPerMin: 600, Burst: 60},
		},
		Catalog: CatalogConfig{
			Path: filepath.Join(dataDir, "catalog.db"),
		},
		Breaker: BreakerConfig{
			Enabled:     true,
			MaxFailures: 3,
			Timeout:     30 * time.Second,
			Interval:    time.Minute,
		},
		Discovery: DiscoveryConfig{
			Name: "camsession",
		},
	}
}

// Load reads a YAML config file, applies env overrides and validates the
// result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := validatePermissions(path); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps CAMSESSION_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CAMSESSION_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("CAMSESSION_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("CAMSESSION_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("CAMSESSION_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("CAMSESSION_CAPTURE_BACKEND"); v != "" {
		cfg.Capture.Backend = v
	}
	if v := os.Getenv("CAMSESSION_CAPTURE_DEVICE"); v != "" {
		cfg.Capture.DefaultDevice = v
	}
	if v := os.Getenv("CAMSESSION_CAPTURE_PRESET"); v != "" {
		cfg.Capture.ResolutionPreset = v
	}
	if v := os.Getenv("CAMSESSION_CAPTURE_AUDIO"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Capture.EnableAudio = b
		}
	}
	if v := os.Getenv("CAMSESSION_MEDIA_DIR"); v != "" {
		cfg.Capture.MediaDir = v
	}
	if v := os.Getenv("CAMSESSION_AUDIO_BACKEND"); v != "" {
		cfg.Capture.AudioBackend = v
	}
	if v := os.Getenv("CAMSESSION_RENDERER_MAX_FPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Renderer.MaxFPS = f
		}
	}
	if v := os.Getenv("CAMSESSION_GATEWAY_ENABLED"); v != "" {
		cfg.Gateway.Enabled = v == "true"
	}
	if v := os.Getenv("CAMSESSION_GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}
	// Comma-separated "name:token" pairs; enables static auth.
	if v := os.Getenv("CAMSESSION_GATEWAY_TOKENS"); v != "" {
		var tokens []TokenConfig
		for _, pair := range splitAndTrim(v, ",") {
			name, token, ok := strings.Cut(pair, ":")
			if !ok || token == "" {
				continue
			}
			tokens = append(tokens, TokenConfig{Name: name, Token: token})
		}
		if len(tokens) > 0 {
			cfg.Gateway.Auth.Type = "static"
			cfg.Gateway.Auth.Tokens = tokens
		}
	}
	if v := os.Getenv("CAMSESSION_CATALOG_ENABLED"); v != "" {
		cfg.Catalog.Enabled = v == "true"
	}
	if v := os.Getenv("CAMSESSION_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("CAMSESSION_BREAKER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Breaker.Timeout = d
		}
	}
	if v := os.Getenv("CAMSESSION_DISCOVERY_MDNS"); v == "true" {
		cfg.Discovery.MDNS = true
	}
}

// splitAndTrim splits s by sep and trims whitespace from each element.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// validatePermissions checks the config file has restrictive permissions.
// Gateway tokens live in it.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
