// Package call implements the call lifecycle controller: the state
// machine that decides, after each webhook event, whether to keep
// gathering speech, hand the caller to a human, or record a voicemail,
// and that owns session teardown and durable logging at terminal
// states.
package call

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voxline/frontdesk/pkg/calllog"
	"github.com/voxline/frontdesk/pkg/clientconfig"
	"github.com/voxline/frontdesk/pkg/errorsx"
	"github.com/voxline/frontdesk/pkg/logging"
	"github.com/voxline/frontdesk/pkg/monitor"
	"github.com/voxline/frontdesk/pkg/policy"
	"github.com/voxline/frontdesk/pkg/redact"
	"github.com/voxline/frontdesk/pkg/session"
	"github.com/voxline/frontdesk/pkg/transports"
	"github.com/voxline/frontdesk/pkg/turn"
)

// Prompts are the fixed caller-facing texts for non-conversational
// moments. All failures surface as one of these, spoken calmly; the
// provider never sees a raw error.
type Prompts struct {
	Apology        string
	Expired        string
	Connect        string
	VoicemailIntro string
	AfterHours     string
	Goodbye        string
	Greeting       string
}

func (p Prompts) withDefaults() Prompts {
	if p.Apology == "" {
		p.Apology = "I'm sorry, I'm having a little trouble right now. Could you say that again?"
	}
	if p.Expired == "" {
		p.Expired = "I'm sorry, this call has expired. Please call back. Goodbye."
	}
	if p.Connect == "" {
		p.Connect = "Please hold while I connect you."
	}
	if p.VoicemailIntro == "" {
		p.VoicemailIntro = "Please leave a message after the tone."
	}
	if p.AfterHours == "" {
		p.AfterHours = "We are currently closed. Please leave a message after the tone."
	}
	if p.Goodbye == "" {
		p.Goodbye = "Thank you, your message has been received. Goodbye."
	}
	if p.Greeting == "" {
		p.Greeting = "Hello, how can I help you today?"
	}
	return p
}

// Transcriber converts a voicemail recording into text. Optional and
// strictly best-effort.
type Transcriber interface {
	TranscribeURL(ctx context.Context, url string) (string, error)
}

type Config struct {
	Prompts           Prompts
	RecordMaxSeconds  int
	TranscribeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	c.Prompts = c.Prompts.withDefaults()
	if c.RecordMaxSeconds <= 0 {
		c.RecordMaxSeconds = 120
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = 15 * time.Second
	}
	return c
}

type Options struct {
	Store       *session.Store
	Turns       *turn.Engine
	Policy      *policy.Escalation
	Configs     clientconfig.Store
	Log         calllog.Writer
	Transcriber Transcriber
	Events      monitor.Sink
	Config      Config
}

// Controller is the call lifecycle state machine.
type Controller struct {
	store       *session.Store
	turns       *turn.Engine
	policy      *policy.Escalation
	configs     clientconfig.Store
	log         calllog.Writer
	transcriber Transcriber
	events      monitor.Sink
	cfg         Config
	clock       func() time.Time
	logger      *slog.Logger
}

func NewController(opts Options) *Controller {
	return &Controller{
		store:       opts.Store,
		turns:       opts.Turns,
		policy:      opts.Policy,
		configs:     opts.Configs,
		log:         opts.Log,
		transcriber: opts.Transcriber,
		events:      opts.Events,
		cfg:         opts.Config.withDefaults(),
		clock:       time.Now,
		logger:      logging.NewComponentLogger(slog.Default(), "call_controller"),
	}
}

// SetClock overrides the time source. Test hook.
func (c *Controller) SetClock(clock func() time.Time) {
	if clock != nil {
		c.clock = clock
	}
}

// HandleCallStarted creates the session (idempotently, tolerating
// provider retries) and answers with the client greeting. When the
// client configuration cannot be fetched there is nothing meaningful
// to log, so the call ends with an apology and no record.
func (c *Controller) HandleCallStarted(ctx context.Context, ev transports.CallStarted) []transports.Instruction {
	sess, created := c.store.Create(ev.CallID, ev.ClientID, ev.From, ev.To)

	cfg, err := c.configs.GetClientConfig(ctx, sess.ClientID)
	if err != nil {
		reason := errorsx.ReasonClientConfigLoad
		if errors.Is(err, clientconfig.ErrNotFound) {
			reason = errorsx.ReasonClientConfigNotFound
		}
		c.logger.Warn("client_config_lookup_failed",
			"call_id", ev.CallID,
			"client_id", sess.ClientID,
			"reason_code", string(reason),
			"error", err.Error(),
		)
		c.store.Delete(ev.CallID)
		return []transports.Instruction{
			transports.Speak(c.cfg.Prompts.Apology),
			transports.Hangup(),
		}
	}

	if created {
		c.logger.Info("call_started",
			"call_id", ev.CallID,
			"client_id", sess.ClientID,
			"from", sess.From,
			"to", sess.To,
		)
		c.publish(monitor.Event{CallID: ev.CallID, ClientID: sess.ClientID, Type: monitor.EventCallStarted})
	}

	greeting := cfg.Greeting
	if greeting == "" {
		greeting = c.cfg.Prompts.Greeting
	}

	if !cfg.BusinessHours.IsOpen(c.clock()) {
		err := c.store.Mutate(ev.CallID, func(s *session.CallSession) error {
			// A provider retry finds the session already in Recording;
			// replay the same instructions rather than failing.
			if s.State == session.StateRecording {
				return nil
			}
			return transition(s, session.StateRecording, "after hours")
		})
		if err != nil {
			return c.expired(ev.CallID)
		}
		return []transports.Instruction{
			transports.Speak(greeting),
			transports.Speak(c.cfg.Prompts.AfterHours),
			transports.Record(c.cfg.RecordMaxSeconds),
		}
	}

	return []transports.Instruction{transports.GatherSpeech(greeting)}
}

// HandleSpeech runs one turn of the conversation. The session's
// per-key lock is held across the whole read-modify-write, including
// the completion call, so provider retries for the same callID cannot
// interleave.
func (c *Controller) HandleSpeech(ctx context.Context, ev transports.SpeechReceived) []transports.Instruction {
	var out []transports.Instruction
	var record *calllog.Record

	err := c.store.Mutate(ev.CallID, func(s *session.CallSession) error {
		if s.State != session.StateGathering {
			c.logger.Warn("speech_in_unexpected_state",
				"call_id", ev.CallID,
				"state", s.State.String(),
			)
			out = []transports.Instruction{transports.Hangup()}
			return nil
		}

		reply, terr := c.turns.ProduceNextUtterance(ctx, s, ev.Text)
		if terr != nil {
			// Recoverable: apologize and keep listening. The caller's
			// own utterance stays in the history.
			c.publish(monitor.Event{CallID: s.CallID, ClientID: s.ClientID, Type: monitor.EventCompletionFailed})
			out = []transports.Instruction{transports.GatherSpeech(c.cfg.Prompts.Apology)}
			return nil
		}
		if text := ev.Text; text != "" {
			c.publish(monitor.Event{CallID: s.CallID, ClientID: s.ClientID, Type: monitor.EventCallerTurn, Text: text})
		}
		c.publish(monitor.Event{CallID: s.CallID, ClientID: s.ClientID, Type: monitor.EventReceptionistTurn, Text: reply})

		if !c.policy.ShouldEscalate(reply, s.TurnCount()) {
			out = []transports.Instruction{transports.GatherSpeech(reply)}
			return nil
		}

		if err := transition(s, session.StateEscalating, "escalation policy"); err != nil {
			c.logger.Error("transition_failed", "call_id", s.CallID, "error", err.Error())
			out = []transports.Instruction{transports.Hangup()}
			return nil
		}

		cfg, cerr := c.configs.GetClientConfig(ctx, s.ClientID)
		if cerr != nil {
			c.logger.Warn("client_config_lookup_failed",
				"call_id", s.CallID,
				"client_id", s.ClientID,
				"reason_code", string(errorsx.ReasonClientConfigLoad),
				"error", cerr.Error(),
			)
			// Fall through with no escalation number: voicemail.
		}

		if cfg.EscalationNumber != "" {
			rec := c.buildRecord(s, calllog.TypeEscalated, calllog.StatusTransferred, "")
			record = &rec
			_ = transition(s, session.StateTerminated, "transferred")
			out = []transports.Instruction{
				transports.Speak(reply),
				transports.Speak(c.cfg.Prompts.Connect),
				transports.Dial(cfg.EscalationNumber),
			}
			return nil
		}

		_ = transition(s, session.StateRecording, "no escalation number")
		out = []transports.Instruction{
			transports.Speak(reply),
			transports.Speak(c.cfg.Prompts.VoicemailIntro),
			transports.Record(c.cfg.RecordMaxSeconds),
		}
		return nil
	})
	if errors.Is(err, session.ErrNotFound) {
		return c.expired(ev.CallID)
	}

	if record != nil {
		c.appendRecord(*record)
		c.store.Delete(ev.CallID)
		c.logger.Info("call_escalated",
			"call_id", ev.CallID,
			"client_id", record.ClientID,
			"duration_seconds", record.DurationSeconds,
		)
		c.publish(monitor.Event{CallID: ev.CallID, ClientID: record.ClientID, Type: monitor.EventEscalated})
	}
	return out
}

// HandleRecording finishes the voicemail path: the recording reference
// (and, best-effort, its transcription) joins the transcript, the
// durable record is written, and the session is torn down.
func (c *Controller) HandleRecording(ctx context.Context, ev transports.RecordingCompleted) []transports.Instruction {
	transcript := c.transcribe(ctx, ev.URL)

	var record *calllog.Record
	err := c.store.Mutate(ev.CallID, func(s *session.CallSession) error {
		if transcript != "" {
			s.AppendTurn(session.SpeakerCaller, transcript)
		}
		s.AppendTurn(session.SpeakerCaller, "[voicemail recording: "+ev.URL+"]")
		if err := transition(s, session.StateTerminated, "recording completed"); err != nil {
			c.logger.Error("transition_failed", "call_id", s.CallID, "error", err.Error())
		}
		rec := c.buildRecord(s, calllog.TypeMessage, calllog.StatusVoicemail, ev.URL)
		rec.RecordingSeconds = ev.DurationSeconds
		record = &rec
		return nil
	})
	if errors.Is(err, session.ErrNotFound) {
		return c.expired(ev.CallID)
	}

	if record != nil {
		c.appendRecord(*record)
		c.store.Delete(ev.CallID)
		c.logger.Info("voicemail_recorded",
			"call_id", ev.CallID,
			"client_id", record.ClientID,
			"recording_url", ev.URL,
			"duration_seconds", record.DurationSeconds,
			"recording_seconds", record.RecordingSeconds,
		)
		c.publish(monitor.Event{CallID: ev.CallID, ClientID: record.ClientID, Type: monitor.EventVoicemail, Text: ev.URL})
	}
	return []transports.Instruction{
		transports.Speak(c.cfg.Prompts.Goodbye),
		transports.Hangup(),
	}
}

// OnSessionExpired is the sweeper callback: a best-effort abandoned
// record for calls the provider silently dropped.
func (c *Controller) OnSessionExpired(snap session.CallSession) {
	rec := c.buildRecord(&snap, calllog.TypeAbandoned, calllog.StatusAbandoned, "")
	c.appendRecord(rec)
	c.publish(monitor.Event{CallID: snap.CallID, ClientID: snap.ClientID, Type: monitor.EventExpired})
}

func (c *Controller) transcribe(ctx context.Context, url string) string {
	if c.transcriber == nil || url == "" {
		return ""
	}
	tctx, cancel := context.WithTimeout(ctx, c.cfg.TranscribeTimeout)
	defer cancel()
	text, err := c.transcriber.TranscribeURL(tctx, url)
	if err != nil {
		c.logger.Warn("voicemail_transcription_failed",
			"recording_url", url,
			"reason_code", string(errorsx.ReasonTranscribeFailed),
			"error", err.Error(),
		)
		return ""
	}
	return text
}

func (c *Controller) buildRecord(s *session.CallSession, callType, status, recordingURL string) calllog.Record {
	now := c.clock()
	return calllog.Record{
		ID:              uuid.NewString(),
		ClientID:        s.ClientID,
		From:            s.From,
		To:              s.To,
		Timestamp:       now,
		Transcript:      redact.Text(s.Transcript()),
		DurationSeconds: int(now.Sub(s.StartedAt) / time.Second),
		CallType:        callType,
		Status:          status,
		RecordingURL:    recordingURL,
	}
}

func (c *Controller) appendRecord(rec calllog.Record) {
	if c.log == nil {
		return
	}
	if err := c.log.Append(context.Background(), rec); err != nil {
		c.logger.Warn("call_log_write_failed",
			"reason_code", string(errorsx.ReasonLogWrite),
			"call_record_id", rec.ID,
			"error", err.Error(),
		)
	}
}

func (c *Controller) expired(callID string) []transports.Instruction {
	c.logger.Warn("event_for_dead_session",
		"call_id", callID,
		"reason_code", string(errorsx.ReasonSessionExpired),
	)
	return []transports.Instruction{
		transports.Speak(c.cfg.Prompts.Expired),
		transports.Hangup(),
	}
}

func (c *Controller) publish(ev monitor.Event) {
	if c.events == nil {
		return
	}
	ev.Time = c.clock()
	c.events.Publish(ev)
}
