package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":  {"openai", "openai-direct", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq"},
	"live": {"gemini-live", "openai-realtime"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${ENV} references in
// credential fields, and validates the result. Useful in tests where configs
// are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	expandEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandEnv substitutes ${VAR} and $VAR from the environment in the fields
// that commonly carry secrets or deploy-specific endpoints.
func expandEnv(cfg *Config) {
	expandEntry := func(e *ProviderEntry) {
		e.APIKey = os.ExpandEnv(e.APIKey)
		e.BaseURL = os.ExpandEnv(e.BaseURL)
	}
	expandEntry(&cfg.Providers.LLM)
	for i := range cfg.Providers.LLMFallbacks {
		expandEntry(&cfg.Providers.LLMFallbacks[i])
	}
	expandEntry(&cfg.Providers.Live)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	for _, entry := range cfg.Providers.LLMFallbacks {
		validateProviderName("llm", entry.Name)
	}
	validateProviderName("live", cfg.Providers.Live.Name)

	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	if cfg.Providers.LLM.Name != "" && cfg.Providers.LLM.Model == "" {
		errs = append(errs, errors.New("providers.llm.model is required"))
	}
	for i, entry := range cfg.Providers.LLMFallbacks {
		prefix := fmt.Sprintf("providers.llm_fallbacks[%d]", i)
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if entry.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required", prefix))
		}
		if entry.Name == cfg.Providers.LLM.Name && entry.Model == cfg.Providers.LLM.Model {
			slog.Warn("fallback duplicates the primary provider; it will fail the same way",
				"name", entry.Name, "model", entry.Model)
		}
	}

	if cfg.Providers.Live.Name == "" {
		slog.Warn("providers.live is not configured; live voice calls will be unavailable")
	}

	if cfg.Audio.InputSampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.input_sample_rate %d must not be negative", cfg.Audio.InputSampleRate))
	}
	if c := cfg.Audio.InputChannels; c != 0 && c != 1 && c != 2 {
		errs = append(errs, fmt.Errorf("audio.input_channels %d is invalid; valid values: 1, 2", c))
	}

	if cfg.Resilience.FailureThreshold < 0 {
		errs = append(errs, fmt.Errorf("resilience.failure_threshold %d must not be negative", cfg.Resilience.FailureThreshold))
	}
	if cfg.Resilience.RecoveryTimeout < 0 {
		errs = append(errs, fmt.Errorf("resilience.recovery_timeout %v must not be negative", cfg.Resilience.RecoveryTimeout))
	}
	if cfg.Resilience.HalfOpenMaxCalls < 0 {
		errs = append(errs, fmt.Errorf("resilience.half_open_max_calls %d must not be negative", cfg.Resilience.HalfOpenMaxCalls))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
