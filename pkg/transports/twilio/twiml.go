package twilio

import (
	"log/slog"
	"strconv"

	"github.com/twilio/twilio-go/twiml"

	"github.com/voxline/frontdesk/pkg/transports"
)

// renderTwiML converts the core's instructions into a TwiML document.
// The provider must always receive well-formed TwiML, so a render
// failure degrades to a plain hangup response.
func renderTwiML(instructions []transports.Instruction, cfg Config) string {
	verbs := make([]twiml.Element, 0, len(instructions))
	for _, in := range instructions {
		switch in.Verb {
		case transports.VerbSpeak:
			verbs = append(verbs, &twiml.VoiceSay{Message: in.Text})
		case transports.VerbGatherSpeech:
			verbs = append(verbs, &twiml.VoiceGather{
				Input:               "speech",
				Action:              cfg.SpeechPath,
				Method:              "POST",
				SpeechTimeout:       "auto",
				ActionOnEmptyResult: "true",
				InnerElements: []twiml.Element{
					&twiml.VoiceSay{Message: in.Text},
				},
			})
		case transports.VerbDial:
			verbs = append(verbs, &twiml.VoiceDial{
				InnerElements: []twiml.Element{
					&twiml.VoiceNumber{PhoneNumber: in.Number},
				},
			})
		case transports.VerbRecord:
			verbs = append(verbs, &twiml.VoiceRecord{
				Action:    cfg.RecordingPath,
				Method:    "POST",
				MaxLength: strconv.Itoa(in.MaxLengthSeconds),
				PlayBeep:  "true",
			})
		case transports.VerbHangup:
			verbs = append(verbs, &twiml.VoiceHangup{})
		}
	}
	doc, err := twiml.Voice(verbs)
	if err != nil {
		slog.Error("twiml_render_failed", "error", err.Error())
		return `<?xml version="1.0" encoding="UTF-8"?><Response><Hangup/></Response>`
	}
	return doc
}
