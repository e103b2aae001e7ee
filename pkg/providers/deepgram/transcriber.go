// Package deepgram transcribes recorded voicemail audio through the
// Deepgram prerecorded REST API. Transcription is best effort: callers
// treat a failure as "no transcript", never as a call failure.
package deepgram

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	restapi "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	restinterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/voxline/frontdesk/pkg/errorsx"
	"github.com/voxline/frontdesk/pkg/logging"
)

type Config struct {
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Language string        `mapstructure:"language"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "nova-2"
	}
	if c.Language == "" {
		c.Language = "en"
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	return c
}

type Transcriber struct {
	cfg    Config
	api    *restapi.Client
	logger *slog.Logger
}

func New(cfg Config) (*Transcriber, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("deepgram api key required")
	}
	cfg = cfg.withDefaults()
	rest := client.NewREST(cfg.APIKey, &interfaces.ClientOptions{})
	return &Transcriber{
		cfg:    cfg,
		api:    restapi.New(rest),
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_transcriber"),
	}, nil
}

// TranscribeURL fetches a transcript for audio hosted at the given URL.
func (t *Transcriber) TranscribeURL(ctx context.Context, audioURL string) (string, error) {
	if strings.TrimSpace(audioURL) == "" {
		return "", errorsx.Wrap(errors.New("empty audio url"), errorsx.ReasonTranscribeFailed)
	}
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       t.cfg.Model,
		Language:    t.cfg.Language,
		SmartFormat: true,
		Punctuate:   true,
	}
	started := time.Now()
	res, err := t.api.FromURL(ctx, audioURL, options)
	if err != nil {
		t.logger.Warn("transcription_request_failed",
			"error", err.Error(),
			"reason_code", string(errorsx.ReasonTranscribeFailed),
		)
		return "", errorsx.Wrap(err, errorsx.ReasonTranscribeFailed)
	}
	transcript := firstTranscript(res)
	if transcript == "" {
		return "", errorsx.Wrap(errors.New("no transcript in response"), errorsx.ReasonTranscribeFailed)
	}
	t.logger.Debug("transcription_completed",
		"duration_ms", time.Since(started).Milliseconds(),
		"chars", len(transcript),
	)
	return transcript, nil
}

func firstTranscript(res *restinterfaces.PreRecordedResponse) string {
	if res == nil || res.Results == nil {
		return ""
	}
	for _, ch := range res.Results.Channels {
		for _, alt := range ch.Alternatives {
			if s := strings.TrimSpace(alt.Transcript); s != "" {
				return s
			}
		}
	}
	return ""
}
