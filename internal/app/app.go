// Package app assembles the assistant from configuration. Both binaries
// share it.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"homechat/config"
	"homechat/internal/application"
	"homechat/internal/infra/anthropic"
	"homechat/internal/infra/gemini"
	"homechat/internal/infra/homeassistant"
	"homechat/internal/infra/mqtt"
	"homechat/internal/infra/openai"
	"homechat/internal/infra/openweather"
	"homechat/internal/infra/pushover"
	"homechat/internal/infra/simulation"
	"homechat/internal/infra/sqlite"
	"homechat/internal/infra/xai"
	"homechat/internal/scheduler"
)

const sweepInterval = time.Minute

type dispatcher interface {
	application.Dispatcher
	scheduler.Dispatcher
}

type App struct {
	Sessions   *application.SessionStore
	Router     *application.Router
	Dispatcher application.Dispatcher
	Scheduler  *scheduler.Scheduler
	Weather    application.WeatherProvider
	STT        application.SpeechToText
	Journal    application.Journal

	cfg       *config.Config
	logger    *slog.Logger
	publisher *mqtt.Publisher
	closeDB   func() error
}

// New builds every component. Observers receive timer firings in addition
// to the ones the configuration enables.
func New(cfg *config.Config, logger *slog.Logger, observers ...scheduler.Observer) (*App, error) {
	a := &App{
		cfg:     cfg,
		logger:  logger,
		Journal: application.NoopJournal{},
		closeDB: func() error { return nil },
	}

	if cfg.Journal.Path != "" {
		j, err := sqlite.Open(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("opening journal: %w", err)
		}
		a.Journal = j
		a.closeDB = j.Close
	}

	var disp dispatcher
	if cfg.HomeAssistant.Enabled() {
		disp = homeassistant.NewDispatcher(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, logger)
	} else {
		disp = simulation.NewDispatcher(logger)
	}
	a.Dispatcher = disp

	completion, err := newCompletion(cfg)
	if err != nil {
		_ = a.closeDB()
		return nil, err
	}

	a.Weather = openweather.NewClient(openweather.Config{
		APIKey:   cfg.Weather.APIKey,
		City:     cfg.Weather.City,
		CacheTTL: cfg.Weather.CacheTTL,
	}, logger)

	if cfg.OpenAI.APIKey != "" {
		a.STT = openai.NewWhisperClient(openai.WhisperConfig{
			APIKey:     cfg.OpenAI.APIKey,
			Model:      cfg.OpenAI.Model,
			Language:   cfg.OpenAI.Language,
			MaxRetries: cfg.LLM.MaxRetries,
		})
	} else {
		a.STT = &application.NoopSTT{}
	}

	if cfg.Pushover.Enabled {
		notifier := pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey)
		observers = append(observers, application.NewNotifyObserver(notifier, logger))
	}
	if cfg.MQTT.Broker != "" {
		a.publisher = mqtt.New(mqtt.Config{
			Broker:   cfg.MQTT.Broker,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
		}, logger)
		observers = append(observers, a.publisher)
	}
	if cfg.Journal.Path != "" {
		observers = append(observers, application.NewJournalObserver(a.Journal, disp.Mode(), logger))
	}

	a.Scheduler = scheduler.New(scheduler.Config{
		Workers:    cfg.Scheduler.Workers,
		MaxPending: cfg.Scheduler.MaxPending,
	}, disp, logger, observers...)

	a.Sessions = application.NewSessionStore(cfg.Server.SessionTTL, logger)
	// Recurring timers die with the session that set them.
	a.Sessions.OnRemove(func(id string) {
		a.Scheduler.DropSession(id)
	})
	a.Router = application.NewRouter(completion, a.Weather, disp, a.Scheduler, a.Journal, logger)

	return a, nil
}

func newCompletion(cfg *config.Config) (application.CompletionClient, error) {
	switch cfg.LLM.Provider {
	case config.ProviderXAI:
		return xai.NewClient(xai.Config{
			APIKey:      cfg.XAI.APIKey,
			BaseURL:     cfg.XAI.BaseURL,
			Model:       cfg.XAI.Model,
			Temperature: cfg.XAI.Temperature,
			MaxTokens:   cfg.XAI.MaxTokens,
			MaxRetries:  cfg.LLM.MaxRetries,
			Timeout:     cfg.LLM.Timeout,
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewClaudeClient(anthropic.Config{
			APIKey:     cfg.Anthropic.APIKey,
			Model:      cfg.Anthropic.Model,
			MaxTokens:  cfg.Anthropic.MaxTokens,
			MaxRetries: cfg.LLM.MaxRetries,
			Timeout:    cfg.LLM.Timeout,
		}), nil
	case config.ProviderGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:     cfg.Gemini.APIKey,
			Model:      cfg.Gemini.Model,
			MaxTokens:  cfg.Gemini.MaxTokens,
			MaxRetries: cfg.LLM.MaxRetries,
			Timeout:    cfg.LLM.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

// Start launches the background parts: scheduler, session sweeper and the
// MQTT connection.
func (a *App) Start(ctx context.Context) error {
	if ha, ok := a.Dispatcher.(*homeassistant.Dispatcher); ok {
		pingCtx, cancel := context.WithTimeout(ctx, homeassistant.DefaultTimeout)
		if err := ha.Ping(pingCtx); err != nil {
			a.logger.Warn("home assistant not reachable", "url", a.cfg.HomeAssistant.URL, "error", err)
		}
		cancel()
	}

	if err := a.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	if a.publisher != nil {
		if err := a.publisher.Start(ctx); err != nil {
			return fmt.Errorf("starting mqtt publisher: %w", err)
		}
	}
	a.Sessions.StartSweeper(ctx, sweepInterval)

	a.logger.Info("assistant ready",
		"mode", a.Dispatcher.Mode(),
		"provider", a.cfg.LLM.Provider,
		"journal", a.cfg.Journal.Path != "",
		"mqtt", a.publisher != nil,
	)
	return nil
}

// Close stops the scheduler, waits for in-flight dispatches and releases
// connections.
func (a *App) Close(ctx context.Context) {
	a.Scheduler.Stop()
	if a.publisher != nil {
		if err := a.publisher.Stop(ctx); err != nil {
			a.logger.Warn("stopping mqtt publisher", "error", err)
		}
	}
	if err := a.closeDB(); err != nil {
		a.logger.Warn("closing journal", "error", err)
	}
}

func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	// Load has already rejected unknown levels.
	level, _ := config.ParseLogLevel(cfg.Level)

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
