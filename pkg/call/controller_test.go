package call

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxline/frontdesk/pkg/calllog"
	"github.com/voxline/frontdesk/pkg/clientconfig"
	"github.com/voxline/frontdesk/pkg/policy"
	"github.com/voxline/frontdesk/pkg/providers/mock"
	"github.com/voxline/frontdesk/pkg/session"
	"github.com/voxline/frontdesk/pkg/transports"
	"github.com/voxline/frontdesk/pkg/turn"
)

type memLog struct {
	mu      sync.Mutex
	records []calllog.Record
}

func (m *memLog) Append(ctx context.Context, rec calllog.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memLog) all() []calllog.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]calllog.Record, len(m.records))
	copy(out, m.records)
	return out
}

func newTestController(t *testing.T, responses []string, completionErr error, clients map[string]clientconfig.ClientConfig) (*Controller, *session.Store, *memLog) {
	t.Helper()
	adapter := mock.NewLLMAdapter(mock.LLMConfig{Responses: responses, Err: completionErr})
	store := session.NewStore()
	log := &memLog{}
	ctrl := NewController(Options{
		Store:   store,
		Turns:   turn.NewEngine(adapter, turn.Config{}),
		Policy:  policy.NewEscalation(nil, 0),
		Configs: clientconfig.NewStaticStore(clients),
		Log:     log,
	})
	return ctrl, store, log
}

func acmeClients() map[string]clientconfig.ClientConfig {
	return map[string]clientconfig.ClientConfig{
		"acme": {Greeting: "Hi, Acme here", EscalationNumber: "+1900"},
	}
}

func start() transports.CallStarted {
	return transports.CallStarted{CallID: "C1", From: "+1555", To: "+1800", ClientID: "acme"}
}

func TestCallStartedEmitsGreetingGather(t *testing.T) {
	ctrl, store, _ := newTestController(t, []string{"Sure, what time?"}, nil, acmeClients())
	out := ctrl.HandleCallStarted(context.Background(), start())
	if len(out) != 1 || out[0].Verb != transports.VerbGatherSpeech || out[0].Text != "Hi, Acme here" {
		t.Fatalf("unexpected instructions: %+v", out)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one live session")
	}
}

func TestCallStartedIsIdempotent(t *testing.T) {
	ctrl, store, _ := newTestController(t, []string{"ok"}, nil, acmeClients())
	ctrl.HandleCallStarted(context.Background(), start())
	out := ctrl.HandleCallStarted(context.Background(), start())
	if len(out) != 1 || out[0].Verb != transports.VerbGatherSpeech {
		t.Fatalf("retry must replay the greeting: %+v", out)
	}
	if store.Len() != 1 {
		t.Fatalf("duplicate start must not create a second session")
	}
	sess, err := store.Get("C1")
	if err != nil || sess.TurnCount() != 0 {
		t.Fatalf("duplicate start must not touch turn history: %+v %v", sess, err)
	}
}

func TestCallStartedConfigLookupFailure(t *testing.T) {
	ctrl, store, log := newTestController(t, []string{"ok"}, nil, nil)
	out := ctrl.HandleCallStarted(context.Background(), start())
	if len(out) != 2 || out[0].Verb != transports.VerbSpeak || out[1].Verb != transports.VerbHangup {
		t.Fatalf("expected apology + hangup, got %+v", out)
	}
	if store.Len() != 0 {
		t.Fatalf("session must be torn down on config failure")
	}
	if len(log.all()) != 0 {
		t.Fatalf("nothing meaningful to log on config failure")
	}
}

func TestSpeechContinuesGathering(t *testing.T) {
	ctrl, store, _ := newTestController(t, []string{"Sure, what time?"}, nil, acmeClients())
	ctrl.HandleCallStarted(context.Background(), start())

	out := ctrl.HandleSpeech(context.Background(), transports.SpeechReceived{CallID: "C1", Text: "I want to book an appointment"})
	if len(out) != 1 || out[0].Verb != transports.VerbGatherSpeech || out[0].Text != "Sure, what time?" {
		t.Fatalf("unexpected instructions: %+v", out)
	}
	sess, err := store.Get("C1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.TurnCount() != 2 {
		t.Fatalf("expected turn count 2, got %d", sess.TurnCount())
	}
	if sess.State != session.StateGathering {
		t.Fatalf("expected Gathering, got %s", sess.State)
	}
}

func TestSpeechTriggersEscalationAndDial(t *testing.T) {
	ctrl, store, log := newTestController(t,
		[]string{"Sure, what time?", "Let me transfer you to our staff."}, nil, acmeClients())
	ctrl.HandleCallStarted(context.Background(), start())
	ctrl.HandleSpeech(context.Background(), transports.SpeechReceived{CallID: "C1", Text: "I want to book an appointment"})

	out := ctrl.HandleSpeech(context.Background(), transports.SpeechReceived{CallID: "C1", Text: "I need to talk to someone"})
	if len(out) != 3 {
		t.Fatalf("expected speak+connect+dial, got %+v", out)
	}
	if out[0].Verb != transports.VerbSpeak || out[2].Verb != transports.VerbDial || out[2].Number != "+1900" {
		t.Fatalf("unexpected escalation instructions: %+v", out)
	}

	records := log.all()
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	rec := records[0]
	if rec.CallType != calllog.TypeEscalated || rec.Status != calllog.StatusTransferred {
		t.Fatalf("unexpected record classification: %+v", rec)
	}
	if rec.ClientID != "acme" || rec.From != "+1555" || rec.To != "+1800" {
		t.Fatalf("unexpected record identity: %+v", rec)
	}
	if !strings.Contains(rec.Transcript, "Caller: I want to book an appointment") {
		t.Fatalf("transcript missing caller line: %q", rec.Transcript)
	}

	if _, err := store.Get("C1"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("session must be removed after transfer")
	}
	out = ctrl.HandleSpeech(context.Background(), transports.SpeechReceived{CallID: "C1", Text: "hello?"})
	if len(out) != 2 || out[1].Verb != transports.VerbHangup {
		t.Fatalf("post-terminal event must get expired response: %+v", out)
	}
}

func TestEscalationWithoutNumberGoesToVoicemail(t *testing.T) {
	clients := map[string]clientconfig.ClientConfig{"acme": {Greeting: "Hi"}}
	ctrl, store, log := newTestController(t, []string{"I will transfer you shortly."}, nil, clients)
	ctrl.HandleCallStarted(context.Background(), start())

	out := ctrl.HandleSpeech(context.Background(), transports.SpeechReceived{CallID: "C1", Text: "talk to a person please"})
	if len(out) != 3 || out[2].Verb != transports.VerbRecord {
		t.Fatalf("expected recording instructions, got %+v", out)
	}
	if len(log.all()) != 0 {
		t.Fatalf("voicemail path must not log until the recording completes")
	}
	sess, err := store.Get("C1")
	if err != nil || sess.State != session.StateRecording {
		t.Fatalf("expected Recording state: %+v %v", sess, err)
	}

	out = ctrl.HandleRecording(context.Background(), transports.RecordingCompleted{CallID: "C1", URL: "https://recordings/r1", DurationSeconds: 42})
	if len(out) != 2 || out[0].Verb != transports.VerbSpeak || out[1].Verb != transports.VerbHangup {
		t.Fatalf("expected goodbye + hangup, got %+v", out)
	}
	records := log.all()
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	rec := records[0]
	if rec.CallType != calllog.TypeMessage || rec.Status != calllog.StatusVoicemail {
		t.Fatalf("unexpected record classification: %+v", rec)
	}
	if rec.RecordingURL != "https://recordings/r1" {
		t.Fatalf("recording url missing: %+v", rec)
	}
	if rec.RecordingSeconds != 42 {
		t.Fatalf("expected reported recording length 42, got %d", rec.RecordingSeconds)
	}
	if !strings.Contains(rec.Transcript, "[voicemail recording: https://recordings/r1]") {
		t.Fatalf("transcript missing recording reference: %q", rec.Transcript)
	}
	if _, err := store.Get("C1"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("session must be removed after voicemail")
	}
}

func TestTurnCeilingForcesEscalation(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{Responses: []string{"Noted."}})
	store := session.NewStore()
	log := &memLog{}
	ctrl := NewController(Options{
		Store:   store,
		Turns:   turn.NewEngine(adapter, turn.Config{}),
		Policy:  policy.NewEscalation([]string{"nonmatching trigger"}, 4),
		Configs: clientconfig.NewStaticStore(acmeClients()),
		Log:     log,
	})
	ctrl.HandleCallStarted(context.Background(), start())

	out := ctrl.HandleSpeech(context.Background(), transports.SpeechReceived{CallID: "C1", Text: "first"})
	if out[0].Verb != transports.VerbGatherSpeech {
		t.Fatalf("expected to keep gathering at 2 turns: %+v", out)
	}
	out = ctrl.HandleSpeech(context.Background(), transports.SpeechReceived{CallID: "C1", Text: "second"})
	if out[len(out)-1].Verb != transports.VerbDial {
		t.Fatalf("expected escalation at the turn ceiling: %+v", out)
	}
}

func TestCompletionFailureKeepsSessionAlive(t *testing.T) {
	ctrl, store, log := newTestController(t, nil, errors.New("quota"), acmeClients())
	ctrl.HandleCallStarted(context.Background(), start())

	out := ctrl.HandleSpeech(context.Background(), transports.SpeechReceived{CallID: "C1", Text: "hello"})
	if len(out) != 1 || out[0].Verb != transports.VerbGatherSpeech {
		t.Fatalf("expected apology gather, got %+v", out)
	}
	sess, err := store.Get("C1")
	if err != nil {
		t.Fatalf("session must survive completion failure: %v", err)
	}
	if sess.State != session.StateGathering || sess.TurnCount() != 1 {
		t.Fatalf("expected caller turn retained in Gathering: %+v", sess)
	}
	if len(log.all()) != 0 {
		t.Fatalf("completion failure must not log")
	}
}

func TestSpeechForUnknownCall(t *testing.T) {
	ctrl, _, _ := newTestController(t, []string{"ok"}, nil, acmeClients())
	out := ctrl.HandleSpeech(context.Background(), transports.SpeechReceived{CallID: "ghost", Text: "hello"})
	if len(out) != 2 || out[0].Verb != transports.VerbSpeak || out[1].Verb != transports.VerbHangup {
		t.Fatalf("expected expired apology + hangup, got %+v", out)
	}
}

func TestAfterHoursGoesStraightToVoicemail(t *testing.T) {
	clients := map[string]clientconfig.ClientConfig{
		"acme": {
			Greeting:      "Hi, Acme here",
			BusinessHours: clientconfig.BusinessHours{Open: "09:00", Close: "17:00", Timezone: "UTC"},
		},
	}
	ctrl, store, _ := newTestController(t, []string{"ok"}, nil, clients)
	afterHours := time.Date(2026, 8, 20, 20, 0, 0, 0, time.UTC)
	ctrl.SetClock(func() time.Time { return afterHours })

	out := ctrl.HandleCallStarted(context.Background(), start())
	if len(out) != 3 || out[2].Verb != transports.VerbRecord {
		t.Fatalf("expected after-hours recording instructions, got %+v", out)
	}
	sess, err := store.Get("C1")
	if err != nil || sess.State != session.StateRecording {
		t.Fatalf("expected Recording state after hours: %+v %v", sess, err)
	}
}

func TestAfterHoursStartIsIdempotent(t *testing.T) {
	clients := map[string]clientconfig.ClientConfig{
		"acme": {
			Greeting:      "Hi, Acme here",
			BusinessHours: clientconfig.BusinessHours{Open: "09:00", Close: "17:00", Timezone: "UTC"},
		},
	}
	ctrl, store, _ := newTestController(t, []string{"ok"}, nil, clients)
	afterHours := time.Date(2026, 8, 20, 20, 0, 0, 0, time.UTC)
	ctrl.SetClock(func() time.Time { return afterHours })

	ctrl.HandleCallStarted(context.Background(), start())
	out := ctrl.HandleCallStarted(context.Background(), start())
	if len(out) != 3 || out[2].Verb != transports.VerbRecord {
		t.Fatalf("retry must replay the recording instructions: %+v", out)
	}
	sess, err := store.Get("C1")
	if err != nil || sess.State != session.StateRecording {
		t.Fatalf("retry must leave the session in Recording: %+v %v", sess, err)
	}
	if store.Len() != 1 {
		t.Fatalf("duplicate start must not create a second session")
	}
}

type recordedTranscriber struct {
	text string
	err  error
}

func (r recordedTranscriber) TranscribeURL(ctx context.Context, url string) (string, error) {
	return r.text, r.err
}

func TestVoicemailTranscriptionJoinsTranscript(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{Responses: []string{"I will transfer you."}})
	store := session.NewStore()
	log := &memLog{}
	ctrl := NewController(Options{
		Store:       store,
		Turns:       turn.NewEngine(adapter, turn.Config{}),
		Policy:      policy.NewEscalation(nil, 0),
		Configs:     clientconfig.NewStaticStore(map[string]clientconfig.ClientConfig{"acme": {}}),
		Log:         log,
		Transcriber: recordedTranscriber{text: "please call me back about my order"},
	})
	ctrl.HandleCallStarted(context.Background(), start())
	ctrl.HandleSpeech(context.Background(), transports.SpeechReceived{CallID: "C1", Text: "person please"})
	ctrl.HandleRecording(context.Background(), transports.RecordingCompleted{CallID: "C1", URL: "https://recordings/r1"})

	records := log.all()
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	if !strings.Contains(records[0].Transcript, "please call me back about my order") {
		t.Fatalf("transcription missing from transcript: %q", records[0].Transcript)
	}
}

func TestSessionExpiryWritesAbandonedRecord(t *testing.T) {
	ctrl, _, log := newTestController(t, []string{"ok"}, nil, acmeClients())
	snap := session.CallSession{CallID: "C9", ClientID: "acme", From: "+1", To: "+2"}
	ctrl.OnSessionExpired(snap)
	records := log.all()
	if len(records) != 1 || records[0].CallType != calllog.TypeAbandoned || records[0].Status != calllog.StatusAbandoned {
		t.Fatalf("unexpected abandoned record: %+v", records)
	}
}
