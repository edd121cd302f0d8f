package smssvc

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/swanstudios/studio/core"
)

const segmentLen = 160

var outbox struct {
	mu   sync.Mutex
	msgs []core.SMSMessage
}

// ClearSentMessages forgets all text messages sent so far.
func ClearSentMessages() {
	outbox.mu.Lock()
	outbox.msgs = nil
	outbox.mu.Unlock()
}

// GetSentMessages returns a copy of the text messages sent so far, oldest first.
func GetSentMessages() []core.SMSMessage {
	outbox.mu.Lock()
	defer outbox.mu.Unlock()
	return append([]core.SMSMessage{}, outbox.msgs...)
}

// consoleService logs text messages instead of sending them.
type consoleService struct {
	from   string
	quiet  bool
	inline bool
	logger core.Logger
}

var _ core.SMSService = (*consoleService)(nil)

func NewConsoleService(conf *core.Config, logger core.Logger) core.SMSService {
	return &consoleService{from: conf.Twilio.FromNumber, logger: logger}
}

// NewConsoleServiceMock returns a silent console service delivering messages synchronously.
func NewConsoleServiceMock(conf *core.Config, logger core.Logger) core.SMSService {
	return &consoleService{from: conf.Twilio.FromNumber, quiet: true, inline: true, logger: logger}
}

func (svc *consoleService) SendMessages(messages ...*core.SMSMessage) {
	for _, msg := range messages {
		if svc.inline {
			svc.deliver(*msg)
		} else {
			go svc.deliver(*msg)
		}
	}
}

func (svc *consoleService) deliver(msg core.SMSMessage) {
	if !msg.IsValid() {
		return
	}
	if !svc.quiet {
		svc.logger.Info(fmt.Sprintf("SMS %s -> %s (%d segment(s))\r\n\r\n%s", svc.from, msg.To, segments(msg.Body), msg.Body))
	}
	outbox.mu.Lock()
	outbox.msgs = append(outbox.msgs, msg)
	outbox.mu.Unlock()
}

// segments is the number of 160 characters parts a carrier splits body into.
func segments(body string) int {
	n := utf8.RuneCountInString(body)
	return (n + segmentLen - 1) / segmentLen
}
