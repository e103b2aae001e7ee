// Package twilio serves the provider-facing webhook surface. Each turn
// of a call arrives as an independent HTTP request (voice, gather
// action, record action); the response is TwiML rendered from the
// core's instructions.
package twilio

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/voxline/frontdesk/pkg/errorsx"
	"github.com/voxline/frontdesk/pkg/transports"
)

type Config struct {
	ServerAddr      string `mapstructure:"server_addr"`
	PublicURL       string `mapstructure:"public_url"`
	AccountSID      string `mapstructure:"account_sid"`
	AuthToken       string `mapstructure:"auth_token"`
	VoicePath       string `mapstructure:"voice_path"`
	SpeechPath      string `mapstructure:"speech_path"`
	RecordingPath   string `mapstructure:"recording_path"`
	MonitorPath     string `mapstructure:"monitor_path"`
	DefaultClientID string `mapstructure:"default_client_id"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.VoicePath == "" {
		c.VoicePath = "/voice"
	}
	if c.SpeechPath == "" {
		c.SpeechPath = "/speech"
	}
	if c.RecordingPath == "" {
		c.RecordingPath = "/recording"
	}
	if c.MonitorPath == "" {
		c.MonitorPath = "/monitor"
	}
	return c
}

// NumberResolver maps a dialed number to a clientID when the webhook
// URL carries no explicit client_id parameter.
type NumberResolver interface {
	ClientIDForNumber(ctx context.Context, number string) (string, bool)
}

type Webhook struct {
	cfg      Config
	handler  transports.Handler
	resolver NumberResolver
	monitor  http.Handler
	server   *http.Server
	logger   *slog.Logger
	draining atomic.Bool

	updateClient callUpdater
}

func New(cfg Config, handler transports.Handler) *Webhook {
	return &Webhook{
		cfg:     cfg.withDefaults(),
		handler: handler,
		logger:  slog.Default(),
	}
}

func (w *Webhook) Name() string { return "twilio" }

// SetNumberResolver wires dialed-number to clientID resolution.
func (w *Webhook) SetNumberResolver(r NumberResolver) { w.resolver = r }

// SetMonitor mounts an ops handler (e.g. the live event feed) on the
// monitor path.
func (w *Webhook) SetMonitor(h http.Handler) { w.monitor = h }

// VoiceWebhookURL reports the URL to configure on the Twilio number.
func (w *Webhook) VoiceWebhookURL() string {
	return w.externalURL(w.cfg.VoicePath)
}

func (w *Webhook) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc(w.cfg.VoicePath, w.handleVoice)
	mux.HandleFunc(w.cfg.SpeechPath, w.handleSpeech)
	mux.HandleFunc(w.cfg.RecordingPath, w.handleRecording)
	if w.monitor != nil {
		mux.Handle(w.cfg.MonitorPath, w.monitor)
	}
	mux.HandleFunc("/health", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})
	w.server = &http.Server{
		Addr:              w.cfg.ServerAddr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	go func() {
		<-ctx.Done()
		_ = w.server.Close()
	}()
	go func() {
		if err := w.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error("twilio_webhook_server_error", "error", err.Error())
		}
	}()
	return nil
}

func (w *Webhook) Stop() error {
	w.draining.Store(true)
	if w.server != nil {
		return w.server.Close()
	}
	return nil
}

func (w *Webhook) handleVoice(rw http.ResponseWriter, r *http.Request) {
	form, ok := w.acceptForm(rw, r, "twilio_voice")
	if !ok {
		return
	}
	callID := form.Get("CallSid")
	if callID == "" {
		rw.WriteHeader(http.StatusBadRequest)
		return
	}
	to := form.Get("To")
	ev := transports.CallStarted{
		CallID:   callID,
		From:     form.Get("From"),
		To:       to,
		ClientID: w.resolveClientID(r, to),
	}
	w.respond(rw, w.handler.HandleCallStarted(r.Context(), ev))
}

func (w *Webhook) handleSpeech(rw http.ResponseWriter, r *http.Request) {
	form, ok := w.acceptForm(rw, r, "twilio_speech")
	if !ok {
		return
	}
	callID := form.Get("CallSid")
	if callID == "" {
		rw.WriteHeader(http.StatusBadRequest)
		return
	}
	ev := transports.SpeechReceived{
		CallID: callID,
		Text:   strings.TrimSpace(form.Get("SpeechResult")),
	}
	w.respond(rw, w.handler.HandleSpeech(r.Context(), ev))
}

func (w *Webhook) handleRecording(rw http.ResponseWriter, r *http.Request) {
	form, ok := w.acceptForm(rw, r, "twilio_recording")
	if !ok {
		return
	}
	callID := form.Get("CallSid")
	if callID == "" {
		rw.WriteHeader(http.StatusBadRequest)
		return
	}
	duration, _ := strconv.Atoi(form.Get("RecordingDuration"))
	ev := transports.RecordingCompleted{
		CallID:          callID,
		URL:             form.Get("RecordingUrl"),
		DurationSeconds: duration,
	}
	w.respond(rw, w.handler.HandleRecording(r.Context(), ev))
}

// acceptForm rejects drained, non-POST and badly signed requests, and
// parses the form body.
func (w *Webhook) acceptForm(rw http.ResponseWriter, r *http.Request, event string) (formValues, bool) {
	if w.draining.Load() {
		rw.WriteHeader(http.StatusServiceUnavailable)
		return nil, false
	}
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return nil, false
	}
	if err := r.ParseForm(); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		return nil, false
	}
	if w.cfg.AuthToken != "" && !w.validateRequest(r) {
		w.logger.Warn(event+"_invalid_signature",
			"reason_code", string(errorsx.ReasonTransportInvalidSignature),
		)
		rw.WriteHeader(http.StatusForbidden)
		return nil, false
	}
	return formValues(r.PostForm), true
}

type formValues map[string][]string

func (f formValues) Get(key string) string {
	if vs := f[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func (w *Webhook) respond(rw http.ResponseWriter, instructions []transports.Instruction) {
	body := renderTwiML(instructions, w.cfg)
	rw.Header().Set("Content-Type", "text/xml")
	_, _ = rw.Write([]byte(body))
}

func (w *Webhook) resolveClientID(r *http.Request, to string) string {
	if id := r.URL.Query().Get("client_id"); id != "" {
		return id
	}
	if w.resolver != nil {
		if id, ok := w.resolver.ClientIDForNumber(r.Context(), to); ok {
			return id
		}
	}
	return w.cfg.DefaultClientID
}

func (w *Webhook) validateRequest(r *http.Request) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}
	validator := twilioclient.NewRequestValidator(w.cfg.AuthToken)
	return validator.Validate(w.requestURL(r), params, signature)
}

func (w *Webhook) requestURL(r *http.Request) string {
	if w.cfg.PublicURL != "" {
		base := strings.TrimRight(w.cfg.PublicURL, "/")
		return base + r.URL.RequestURI()
	}
	scheme := r.URL.Scheme
	if scheme == "" {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		} else {
			scheme = "https"
		}
	}
	host := r.Host
	if host == "" {
		host = strings.TrimPrefix(w.cfg.ServerAddr, ":")
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

func (w *Webhook) externalURL(path string) string {
	if w.cfg.PublicURL != "" {
		return "https://" + normalizePublicURL(w.cfg.PublicURL) + path
	}
	addr := w.cfg.ServerAddr
	if addr == "" {
		addr = ":8080"
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + path
}

func normalizePublicURL(v string) string {
	v = strings.TrimPrefix(v, "https://")
	v = strings.TrimPrefix(v, "http://")
	return strings.TrimRight(v, "/")
}
