// Command make_call places an outbound test call through Twilio and
// points it at the service's voice webhook, so a full IVR round trip
// can be exercised without waiting for a real caller.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/voxline/frontdesk/pkg/configutil"
	"github.com/voxline/frontdesk/pkg/frontdesk"
	twiliotransport "github.com/voxline/frontdesk/pkg/transports/twilio"
)

func main() {
	configPath := flag.String("config", "config.yaml", "")
	from := flag.String("from", "", "caller ID for the test call")
	to := flag.String("to", "", "destination number")
	voiceURL := flag.String("voice_url", "", "override the voice webhook URL")
	flag.Parse()
	if *from == "" || *to == "" {
		fmt.Println("usage: make_call -from=+123 -to=+456 [-config=...]")
		os.Exit(1)
	}

	cfg, err := frontdesk.LoadConfig(*configPath)
	if err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	var settings twiliotransport.Config
	if err := configutil.DecodeSettings(cfg.Transport.Settings, &settings); err != nil {
		fmt.Println("settings error:", err)
		os.Exit(1)
	}
	url := *voiceURL
	if url == "" {
		url = twiliotransport.New(settings, nil).VoiceWebhookURL()
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: settings.AccountSID,
		Password: settings.AuthToken,
	})
	params := &api.CreateCallParams{}
	params.SetTo(*to)
	params.SetFrom(*from)
	params.SetUrl(url)
	params.SetMethod("POST")
	call, err := client.Api.CreateCall(params)
	if err != nil {
		fmt.Println("call error:", err)
		os.Exit(1)
	}
	if call.Sid != nil {
		fmt.Println("call_sid:", *call.Sid)
	}
}
