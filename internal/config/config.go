// Package config provides the configuration schema, loader, and provider
// registry for the coldcall trainer.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for the trainer.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Empty means "info".
	LogLevel LogLevel `yaml:"log_level"`

	// Locale is the BCP 47 tag the simulation converses in (e.g. "ru-RU").
	// Empty means "en-US".
	Locale string `yaml:"locale"`

	// ScenarioFile points to a YAML scenario catalog. Empty selects the
	// built-in scenarios.
	ScenarioFile string `yaml:"scenario_file"`

	Providers  ProvidersConfig  `yaml:"providers"`
	Audio      AudioConfig      `yaml:"audio"`
	Resilience ResilienceConfig `yaml:"resilience"`
}

// ProvidersConfig declares which backend serves each concern.
type ProvidersConfig struct {
	// LLM is the primary text-generation backend for turns and feedback.
	LLM ProviderEntry `yaml:"llm"`

	// LLMFallbacks are tried in order when the primary fails or its circuit
	// breaker is open.
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`

	// Live is the duplex voice backend used for live calls.
	Live ProviderEntry `yaml:"live"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds. The Name field selects the factory in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g. "gemini", "openai", "gemini-live").
	Name string `yaml:"name"`

	// APIKey is the authentication key. Values like "${GEMINI_API_KEY}" are
	// expanded from the environment at load time.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Voice is the synthesised voice name for live providers. Ignored by
	// text providers.
	Voice string `yaml:"voice"`
}

// AudioConfig carries local device hints for the live call capture path.
// The capture pipeline converts whatever the device produces, so these are
// hints for opening the device, not hard requirements.
type AudioConfig struct {
	// InputSampleRate is the preferred microphone sample rate in Hz.
	// Zero lets the device pick.
	InputSampleRate int `yaml:"input_sample_rate"`

	// InputChannels is the preferred capture channel count (1 or 2).
	// Zero lets the device pick.
	InputChannels int `yaml:"input_channels"`
}

// ResilienceConfig tunes the circuit breakers guarding the LLM providers.
// Zero values select the built-in defaults.
type ResilienceConfig struct {
	// FailureThreshold is the number of consecutive failures that opens a
	// provider's breaker.
	FailureThreshold int `yaml:"failure_threshold"`

	// RecoveryTimeout is how long an open breaker waits before probing the
	// provider again.
	RecoveryTimeout Duration `yaml:"recovery_timeout"`

	// HalfOpenMaxCalls is the number of probe calls allowed while half-open.
	HalfOpenMaxCalls int `yaml:"half_open_max_calls"`
}
