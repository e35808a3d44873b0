// Command coldcall is a terminal front-end for the cold-call gatekeeper
// trainer. It simulates the secretary who stands between a sales manager and
// the decision maker: the trainee types (or, in a live call, speaks) their
// way past the gatekeeper and receives structured coaching feedback at the
// end of each simulation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/kronitek/coldcall/internal/coach"
	"github.com/kronitek/coldcall/internal/config"
	"github.com/kronitek/coldcall/internal/fallback"
	"github.com/kronitek/coldcall/internal/gatekeeper"
	"github.com/kronitek/coldcall/internal/observe"
	"github.com/kronitek/coldcall/internal/scenario"
	"github.com/kronitek/coldcall/internal/session"
	"github.com/kronitek/coldcall/pkg/audio"
	"github.com/kronitek/coldcall/pkg/audio/extcmd"
	"github.com/kronitek/coldcall/pkg/provider/live"
	geminilive "github.com/kronitek/coldcall/pkg/provider/live/gemini"
	oailive "github.com/kronitek/coldcall/pkg/provider/live/openai"
	"github.com/kronitek/coldcall/pkg/provider/llm"
	"github.com/kronitek/coldcall/pkg/provider/llm/anyllm"
	oaidirect "github.com/kronitek/coldcall/pkg/provider/llm/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ─────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	locale := flag.String("locale", "", "override the configured conversation locale (e.g. ru-RU)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "coldcall: %v\n", err)
		return 1
	}
	if *locale != "" {
		cfg.Locale = *locale
	}
	if cfg.Locale == "" {
		cfg.Locale = "en-US"
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("coldcall starting",
		"config", *configPath,
		"locale", cfg.Locale,
		"log_level", cfg.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "coldcall"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	textProvider, err := buildTextProvider(cfg, reg)
	if err != nil {
		slog.Error("failed to build text provider", "err", err)
		return 1
	}

	var liveProvider live.Provider
	if cfg.Providers.Live.Name != "" {
		liveProvider, err = reg.CreateLive(cfg.Providers.Live)
		if err != nil {
			slog.Error("failed to build live provider", "err", err)
			return 1
		}
		slog.Info("provider created", "kind", "live", "name", cfg.Providers.Live.Name)
	}

	// ── Scenario catalog ──────────────────────────────────────────────────────
	var catalog *scenario.Catalog
	if cfg.ScenarioFile != "" {
		catalog, err = scenario.Load(cfg.ScenarioFile)
		if err != nil {
			slog.Error("failed to load scenarios", "err", err)
			return 1
		}
	} else {
		catalog = scenario.BuiltIn()
	}
	slog.Info("scenario catalog loaded", "scenarios", catalog.Len())

	// ── Session ───────────────────────────────────────────────────────────────
	sess := session.New(
		gatekeeper.NewResponder(textProvider, logger),
		coach.New(textProvider, logger),
		session.WithLocale(cfg.Locale),
		session.WithLogger(logger),
	)

	repl := &repl{
		sess:     sess,
		catalog:  catalog,
		liveProv: liveProvider,
		device:   extcmd.New(),
		voice:    cfg.Providers.Live.Voice,
		captureFmt: audio.Format{
			SampleRate: cfg.Audio.InputSampleRate,
			Channels:   cfg.Audio.InputChannels,
		},
		out: os.Stdout,
		in:  os.Stdin,
	}
	if err := repl.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// openai, anthropic, gemini, deepseek, mistral, groq share the same
	// pattern: optional APIKey plus optional BaseURL, routed through any-llm.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini", "deepseek", "mistral", "groq",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// openai-direct talks to the OpenAI SDK without the any-llm indirection.
	reg.RegisterLLM("openai-direct", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaidirect.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaidirect.WithBaseURL(entry.BaseURL))
		}
		return oaidirect.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterLive("gemini-live", func(entry config.ProviderEntry) (live.Provider, error) {
		var opts []geminilive.Option
		if entry.Model != "" {
			opts = append(opts, geminilive.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, geminilive.WithBaseURL(entry.BaseURL))
		}
		return geminilive.New(entry.APIKey, opts...), nil
	})

	reg.RegisterLive("openai-realtime", func(entry config.ProviderEntry) (live.Provider, error) {
		var opts []oailive.Option
		if entry.Model != "" {
			opts = append(opts, oailive.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, oailive.WithBaseURL(entry.BaseURL))
		}
		return oailive.New(entry.APIKey, opts...), nil
	})
}

// buildTextProvider constructs the primary LLM provider wrapped in the
// circuit-breaker fallback chain from cfg.
func buildTextProvider(cfg *config.Config, reg *config.Registry) (llm.Provider, error) {
	primary, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name, "model", cfg.Providers.LLM.Model)

	group := fallback.NewLLMFallback(primary, cfg.Providers.LLM.Name, fallback.GroupConfig{
		CircuitBreaker: fallback.CircuitBreakerConfig{
			MaxFailures:  cfg.Resilience.FailureThreshold,
			ResetTimeout: cfg.Resilience.RecoveryTimeout.Std(),
			HalfOpenMax:  cfg.Resilience.HalfOpenMaxCalls,
		},
	})
	for _, entry := range cfg.Providers.LLMFallbacks {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create fallback provider %q: %w", entry.Name, err)
		}
		group.AddFallback(entry.Name, p)
		slog.Info("provider created", "kind", "llm-fallback", "name", entry.Name, "model", entry.Model)
	}
	return group, nil
}

// ── Logger ────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
