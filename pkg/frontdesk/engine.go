// Package frontdesk assembles the receptionist service from its parts:
// config loading, provider construction, the session store and sweeper,
// the call controller, and the webhook transport.
package frontdesk

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/voxline/frontdesk/pkg/call"
	"github.com/voxline/frontdesk/pkg/calllog"
	"github.com/voxline/frontdesk/pkg/clientconfig"
	"github.com/voxline/frontdesk/pkg/configutil"
	"github.com/voxline/frontdesk/pkg/monitor"
	"github.com/voxline/frontdesk/pkg/policy"
	"github.com/voxline/frontdesk/pkg/redact"
	"github.com/voxline/frontdesk/pkg/resilience"
	"github.com/voxline/frontdesk/pkg/session"
	"github.com/voxline/frontdesk/pkg/transports/twilio"
	"github.com/voxline/frontdesk/pkg/turn"
)

type Engine struct {
	cfg        Config
	providers  *ProviderRegistry
	store      *session.Store
	sweeper    *session.Sweeper
	controller *call.Controller
	webhook    *twilio.Webhook
	feed       *monitor.Feed
	logWriter  *calllog.AsyncWriter
	ctx        context.Context
	cancel     context.CancelFunc
}

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	// Clients overrides the file-backed client configuration store.
	Clients clientconfig.Store
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	SetDefaultLogger(cfg.LogLevel, cfg.LogFormat)
	redact.SetEnabled(cfg.Privacy.RedactPII)

	slog.Info("frontdesk_init",
		"environment", cfg.Environment,
		"completion_provider", cfg.Completion.Provider,
		"transcription_provider", cfg.Transcription.Provider,
		"transport", cfg.Transport.Provider,
	)

	providers := opts.Providers
	if providers == nil {
		providers = NewProviderRegistry()
	}

	adapter, err := providers.BuildCompletion(cfg.Completion.Provider, cfg.Completion.Settings)
	if err != nil {
		return nil, fmt.Errorf("build completion: %w", err)
	}

	var transcriber call.Transcriber
	if strings.TrimSpace(cfg.Transcription.Provider) != "" {
		transcriber, err = providers.BuildTranscriber(cfg.Transcription.Provider, cfg.Transcription.Settings)
		if err != nil {
			return nil, fmt.Errorf("build transcriber: %w", err)
		}
	}

	clients := opts.Clients
	if clients == nil {
		clients = clientconfig.NewFileStore(cfg.ClientsFile)
	}

	logWriter := calllog.NewAsyncWriter(
		calllog.NewRetryWriter(
			calllog.NewJSONLWriter(cfg.CallLog.Path),
			resilience.NewRetryPolicy(cfg.CallLog.Retries, time.Duration(cfg.CallLog.RetryBackoffMS)*time.Millisecond),
		),
		cfg.CallLog.Buffer,
	)

	store := session.NewStore()

	var feed *monitor.Feed
	var events monitor.Sink
	if cfg.Monitor.Enabled {
		feed = monitor.NewFeed()
		events = feed
	}

	turns := turn.NewEngine(adapter, turn.Config{
		System:    cfg.BasePrompt,
		MaxTokens: cfg.Turn.MaxTokens,
		Timeout:   time.Duration(cfg.Turn.TimeoutMS) * time.Millisecond,
		Attempts:  cfg.Turn.Attempts,
	})

	controller := call.NewController(call.Options{
		Store:       store,
		Turns:       turns,
		Policy:      policy.NewEscalation(cfg.Policy.TriggerPhrases, cfg.Policy.MaxTurns),
		Configs:     clients,
		Log:         logWriter,
		Transcriber: transcriber,
		Events:      events,
		Config: call.Config{
			Prompts:          cfg.callPrompts(),
			RecordMaxSeconds: cfg.Call.RecordMaxSeconds,
		},
	})

	sweeper := session.NewSweeper(store,
		time.Duration(cfg.Session.IdleTimeoutMS)*time.Millisecond,
		time.Duration(cfg.Session.SweepIntervalMS)*time.Millisecond,
		controller.OnSessionExpired,
	)

	if strings.ToLower(strings.TrimSpace(cfg.Transport.Provider)) != "twilio" {
		return nil, fmt.Errorf("transport provider not registered: %s", cfg.Transport.Provider)
	}
	var transportCfg twilio.Config
	if err := configutil.DecodeSettings(cfg.Transport.Settings, &transportCfg); err != nil {
		return nil, fmt.Errorf("transport settings: %w", err)
	}
	webhook := twilio.New(transportCfg, controller)
	webhook.SetNumberResolver(clients)
	if feed != nil {
		webhook.SetMonitor(feed)
	}

	return &Engine{
		cfg:        cfg,
		providers:  providers,
		store:      store,
		sweeper:    sweeper,
		controller: controller,
		webhook:    webhook,
		feed:       feed,
		logWriter:  logWriter,
	}, nil
}

func (e *Engine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	if err := e.webhook.Start(e.ctx); err != nil {
		return err
	}
	e.sweeper.Start(e.ctx)
	slog.Info("frontdesk_started",
		"voice_webhook", e.webhook.VoiceWebhookURL(),
	)
	return nil
}

func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	err := e.webhook.Stop()
	e.sweeper.Stop()
	if e.feed != nil {
		e.feed.Close()
	}
	e.logWriter.Close()
	slog.Info("frontdesk_stopped", "active_sessions", e.store.Len())
	return err
}

// Run starts the engine and blocks until ctx is cancelled, then shuts
// down cleanly.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}
	<-e.ctx.Done()
	return e.Stop()
}

// Transfer redirects an active call to a number through the transport.
func (e *Engine) Transfer(ctx context.Context, callID, number string) error {
	return e.webhook.Transfer(ctx, callID, number)
}

func (e *Engine) Controller() *call.Controller { return e.controller }

func (e *Engine) Store() *session.Store { return e.store }

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Health() error {
	if e.webhook == nil {
		return fmt.Errorf("missing transport")
	}
	return nil
}

func SetDefaultLogger(level, format string) {
	lvl := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.ToLower(strings.TrimSpace(format)) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
