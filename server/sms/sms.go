package sms

import (
	"github.com/ecotterell/carelink/server/logger"
	"github.com/ecotterell/carelink/shared"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

var logg = logger.NewLogger()

// ClientWrapper wraps the twilio client used for the best-effort SMS
// escalation when an SOS finds no nearby carer.
type ClientWrapper struct {
	client   *twilio.RestClient
	config   shared.TwilioConfig
	testMode bool
}

func NewClient(config shared.TwilioConfig, testMode bool) *ClientWrapper {
	client := twilio.NewRestClientWithParams(twilio.RestClientParams{
		Username: config.AccountSid,
		Password: config.AuthToken,
	})

	return &ClientWrapper{
		client:   client,
		config:   config,
		testMode: testMode,
	}
}

// SendMessage sends a single SMS, no retries.
func (cw *ClientWrapper) SendMessage(to, msg string) error {
	if cw.testMode {
		return nil
	}

	params := &openapi.CreateMessageParams{}
	params.SetMessagingServiceSid(cw.config.MessagingServiceSid)
	params.SetTo(to)
	params.SetBody(msg)

	resp, err := cw.client.ApiV2010.CreateMessage(params)
	if err != nil {
		return err
	}

	if resp.ErrorMessage != nil {
		logg.Errorf("twilio message creation failed: %v", *resp.ErrorMessage)
	}

	return nil
}
