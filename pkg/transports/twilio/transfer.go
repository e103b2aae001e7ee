package twilio

import (
	"context"
	"errors"
	"strings"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"

	"github.com/voxline/frontdesk/pkg/errorsx"
)

type callUpdater interface {
	UpdateCall(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error)
}

// Transfer redirects an active call to a number via the Twilio REST
// API, for escalations triggered outside the webhook request cycle
// (e.g. operator-initiated from the monitor).
func (w *Webhook) Transfer(ctx context.Context, callID, number string) error {
	_ = ctx
	if strings.TrimSpace(callID) == "" {
		return errors.New("call sid required")
	}
	if strings.TrimSpace(number) == "" {
		return errors.New("number required")
	}
	if w.cfg.AccountSID == "" || w.cfg.AuthToken == "" {
		return errors.New("missing twilio credentials")
	}
	updater := w.updateClient
	if updater == nil {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: w.cfg.AccountSID,
			Password: w.cfg.AuthToken,
		})
		updater = rest.Api
	}
	doc, err := buildTransferTwiML(number)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransferFailed)
	}
	params := &api.UpdateCallParams{}
	params.SetTwiml(doc)
	if _, err := updater.UpdateCall(callID, params); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransferFailed)
	}
	return nil
}

func buildTransferTwiML(number string) (string, error) {
	return twiml.Voice([]twiml.Element{
		&twiml.VoiceSay{Message: "Please hold while I connect you."},
		&twiml.VoiceDial{
			InnerElements: []twiml.Element{
				&twiml.VoiceNumber{PhoneNumber: number},
			},
		},
	})
}
