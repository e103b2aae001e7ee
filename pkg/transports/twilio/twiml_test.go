package twilio

import (
	"strings"
	"testing"

	"github.com/voxline/frontdesk/pkg/transports"
)

func TestRenderGather(t *testing.T) {
	cfg := Config{}.withDefaults()
	doc := renderTwiML([]transports.Instruction{transports.GatherSpeech("Hi, Acme here")}, cfg)
	for _, want := range []string{"<Gather", `input="speech"`, `action="/speech"`, "Hi, Acme here"} {
		if !strings.Contains(doc, want) {
			t.Fatalf("missing %q in %s", want, doc)
		}
	}
}

func TestRenderEscalationSequence(t *testing.T) {
	cfg := Config{}.withDefaults()
	doc := renderTwiML([]transports.Instruction{
		transports.Speak("One moment."),
		transports.Dial("+1900"),
	}, cfg)
	sayIdx := strings.Index(doc, "<Say")
	dialIdx := strings.Index(doc, "<Dial")
	if sayIdx < 0 || dialIdx < 0 || sayIdx > dialIdx {
		t.Fatalf("expected Say before Dial: %s", doc)
	}
	if !strings.Contains(doc, "+1900") {
		t.Fatalf("dial number missing: %s", doc)
	}
}

func TestRenderRecord(t *testing.T) {
	cfg := Config{}.withDefaults()
	doc := renderTwiML([]transports.Instruction{transports.Record(120)}, cfg)
	for _, want := range []string{"<Record", `maxLength="120"`, `action="/recording"`} {
		if !strings.Contains(doc, want) {
			t.Fatalf("missing %q in %s", want, doc)
		}
	}
}

func TestRenderEscapesText(t *testing.T) {
	cfg := Config{}.withDefaults()
	doc := renderTwiML([]transports.Instruction{transports.Speak(`Tom & "Jerry" <open>`)}, cfg)
	if strings.Contains(doc, "<open>") {
		t.Fatalf("unescaped text in %s", doc)
	}
	if !strings.Contains(doc, "&amp;") {
		t.Fatalf("ampersand not escaped in %s", doc)
	}
}

func TestRenderHangupOnly(t *testing.T) {
	cfg := Config{}.withDefaults()
	doc := renderTwiML([]transports.Instruction{transports.Hangup()}, cfg)
	if !strings.Contains(doc, "<Hangup") || !strings.Contains(doc, "<Response>") {
		t.Fatalf("unexpected doc: %s", doc)
	}
}
