package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"camsession/internal/domain"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateCapture(cfg, ve)
	validateRenderer(cfg, ve)
	validateGateway(cfg, ve)
	validateCatalog(cfg, ve)
	validateScheduler(cfg, ve)
	validateBreaker(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

var (
	validLogLevels   = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats  = map[string]bool{"json": true, "text": true}
	validExporters   = map[string]bool{"noop": true, "stdout": true}
	validBackends    = map[string]bool{"synthetic": true, "mediadevices": true, "v4l2": true}
	validAudio       = map[string]bool{"none": true, "portaudio": true}
	validTaskActions = map[string]bool{"snapshot": true, "catalog_retention": true}
)

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is not one of debug, info, warn, error", cfg.Logger.Level)
	}
	if !validLogFormats[cfg.Logger.Format] {
		ve.Add("logger.format %q must be json or text", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if cfg.Tracer.Enabled && !validExporters[cfg.Tracer.Exporter] {
		ve.Add("tracer.exporter %q must be noop or stdout", cfg.Tracer.Exporter)
	}
}

func validateCapture(cfg *Config, ve *ValidationError) {
	c := cfg.Capture
	if !validBackends[c.Backend] {
		ve.Add("capture.backend %q must be synthetic, mediadevices or v4l2", c.Backend)
	}
	if _, err := domain.ParseResolutionPreset(c.ResolutionPreset); err != nil {
		ve.Add("capture.resolution_preset: %v", err)
	}
	if c.MediaDir == "" {
		ve.Add("capture.media_dir is required")
	}
	if !validAudio[c.AudioBackend] {
		ve.Add("capture.audio_backend %q must be none or portaudio", c.AudioBackend)
	}
	if c.AudioBackend == "portaudio" && c.AudioSampleRate <= 0 {
		ve.Add("capture.audio_sample_rate must be > 0 when portaudio is used")
	}
	if c.Backend == "synthetic" {
		if c.Synthetic.Devices <= 0 {
			ve.Add("capture.synthetic.devices must be > 0")
		}
		if c.Synthetic.FPS <= 0 || c.Synthetic.FPS > 240 {
			ve.Add("capture.synthetic.fps must be in (0, 240]")
		}
		if len(c.Synthetic.Sizes) == 0 {
			ve.Add("capture.synthetic.sizes must not be empty")
		}
		for i, s := range c.Synthetic.Sizes {
			if _, _, err := domain.ParseSize(s); err != nil {
				ve.Add("capture.synthetic.sizes[%d] %q: %v", i, s, err)
			}
		}
	}
}

func validateRenderer(cfg *Config, ve *ValidationError) {
	if cfg.Renderer.MaxFPS <= 0 {
		ve.Add("renderer.max_fps must be > 0")
	}
	if cfg.Renderer.Burst <= 0 {
		ve.Add("renderer.burst must be > 0")
	}
	if q := cfg.Renderer.JPEGQuality; q < 1 || q > 100 {
		ve.Add("renderer.jpeg_quality must be in [1, 100]")
	}
}

func validateGateway(cfg *Config, ve *ValidationError) {
	if !cfg.Gateway.Enabled {
		return
	}
	if cfg.Gateway.Addr == "" {
		ve.Add("gateway.addr is required when gateway is enabled")
		return
	}
	if _, _, err := net.SplitHostPort(cfg.Gateway.Addr); err != nil {
		ve.Add("gateway.addr %q is not a valid host:port", cfg.Gateway.Addr)
	}
	switch cfg.Gateway.Auth.Type {
	case "":
	case "static":
		if len(cfg.Gateway.Auth.Tokens) == 0 {
			ve.Add("gateway.auth.tokens must not be empty for static auth")
		}
		for i, tok := range cfg.Gateway.Auth.Tokens {
			if (tok.Token == "") == (tok.TokenHash == "") {
				ve.Add("gateway.auth.tokens[%d] needs exactly one of token or token_hash", i)
			}
		}
	default:
		ve.Add("gateway.auth.type %q must be static or empty", cfg.Gateway.Auth.Type)
	}
	if rl := cfg.Gateway.RateLimit; rl.RequestsPerMin < 0 || (rl.RequestsPerMin > 0 && rl.Burst <= 0) {
		ve.Add("gateway.rate_limit needs requests_per_min >= 0 and a positive burst")
	}
}

func validateCatalog(cfg *Config, ve *ValidationError) {
	if cfg.Catalog.Enabled && cfg.Catalog.Path == "" {
		ve.Add("catalog.path is required when catalog is enabled")
	}
}

func validateScheduler(cfg *Config, ve *ValidationError) {
	if !cfg.Scheduler.Enabled {
		return
	}
	for i, t := range cfg.Scheduler.Tasks {
		if t.Name == "" {
			ve.Add("scheduler.tasks[%d].name is required", i)
		}
		if t.Schedule == "" {
			ve.Add("scheduler.tasks[%d].schedule is required", i)
		}
		if t.Action == "" {
			ve.Add("scheduler.tasks[%d].action is required", i)
			continue
		}
		if !validTaskActions[t.Action] {
			ve.Add("scheduler.tasks[%d].action %q must be snapshot or catalog_retention", i, t.Action)
		}
		if t.Action == "catalog_retention" {
			if !cfg.Catalog.Enabled {
				ve.Add("scheduler.tasks[%d]: catalog_retention requires catalog.enabled", i)
			}
			if t.MaxAge <= 0 {
				ve.Add("scheduler.tasks[%d].max_age must be > 0 for catalog_retention", i)
			}
		}
	}
}

func validateBreaker(cfg *Config, ve *ValidationError) {
	if !cfg.Breaker.Enabled {
		return
	}
	if cfg.Breaker.MaxFailures == 0 {
		ve.Add("breaker.max_failures must be > 0")
	}
	if cfg.Breaker.Timeout < time.Second {
		ve.Add("breaker.timeout must be at least 1s")
	}
}
