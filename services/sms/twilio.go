package smssvc

import (
	"fmt"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/swanstudios/studio/core"
)

type twilioService struct {
	client *twilio.RestClient
	from   string
	logger core.Logger
}

var _ core.SMSService = (*twilioService)(nil)

func NewTwilioService(conf *core.Config, logger core.Logger) core.SMSService {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: conf.Twilio.AccountSID,
		Password: conf.Twilio.AuthToken,
	})
	return &twilioService{client: client, from: conf.Twilio.FromNumber, logger: logger}
}

func (svc twilioService) SendMessages(messages ...*core.SMSMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if msg.IsValid() {
				svc.send(*msg)
			}
		}()
	}
}

func (svc twilioService) prepare(msg core.SMSMessage) *twilioapi.CreateMessageParams {
	params := &twilioapi.CreateMessageParams{}
	params.SetTo(msg.To)
	params.SetFrom(svc.from)
	params.SetBody(msg.Body)
	return params
}

func (svc twilioService) send(msg core.SMSMessage) {
	res, err := svc.client.Api.CreateMessage(svc.prepare(msg))
	if err != nil {
		svc.logger.Error(fmt.Sprintf("sending sms: %v", err), err)
		return
	}
	if res.ErrorCode != nil {
		svc.logger.Error(fmt.Sprintf("sending sms - code: %d", *res.ErrorCode), map[string]interface{}{"to": msg.To})
	}
}
