package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/swanstudios/studio/core"
)

const (
	sendgridMaxAttempts = 3
	sendgridRetryDelay  = 2 * time.Second
)

// sendgridService delivers emails through the SendGrid v3 API.
// Messages are tagged with their template name so deliveries can be filtered by kind on SendGrid.
type sendgridService struct {
	client     *sendgrid.Client
	from       *sgmail.Email
	replyTo    *sgmail.Email
	subjPrefix string
	sandbox    bool
	logger     core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	svc := &sendgridService{
		client:     sendgrid.NewSendClient(conf.SendgridApiKey),
		from:       toSGEmail(conf.DefaultFromEmail),
		subjPrefix: "[" + conf.AppName + "] ",
		sandbox:    conf.TestMode,
		logger:     logger,
	}
	if len(conf.AdminEmails) > 0 {
		svc.replyTo = toSGEmail(conf.AdminEmails[0])
	}
	return svc
}

func toSGEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go func(msg *core.EmailMessage) {
			if err := msg.Render(); err != nil {
				svc.logger.Error(fmt.Sprintf("rendering email %q: %v", msg.TemplateName, err), err)
				return
			}
			if !msg.IsDeliverable() {
				return
			}
			if err := svc.send(svc.prepare(*msg)); err != nil {
				svc.logger.Error(fmt.Sprintf("sending email %q: %v", msg.TemplateName, err), err)
			}
		}(msg)
	}
}

func (svc *sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	for _, to := range msg.To {
		p.AddTos(toSGEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(toSGEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(toSGEmail(bcc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.Subject = svc.subjPrefix + msg.Subject
	m.AddPersonalizations(p)
	if svc.replyTo != nil {
		m.SetReplyTo(svc.replyTo)
	}
	if msg.TemplateName != "" {
		m.AddCategories(msg.TemplateName)
	}
	if svc.sandbox {
		m.SetMailSettings(sgmail.NewMailSettings().SetSandboxMode(sgmail.NewSetting(true)))
	}

	if msg.TextContent != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	}
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	for _, at := range msg.Attachments {
		m.AddAttachment(sgmail.NewAttachment().
			SetContent(at.Content.String()).
			SetType(at.ContentType).
			SetFilename(at.Filename).
			SetDisposition("attachment"))
	}
	return m
}

// send posts the mail, retrying on rate limiting & server errors.
func (svc *sendgridService) send(m *sgmail.SGMailV3) error {
	var (
		res *rest.Response
		err error
	)
	for attempt := 1; attempt <= sendgridMaxAttempts; attempt++ {
		res, err = svc.client.Send(m)
		if err == nil && !retryable(res.StatusCode) {
			break
		}
		if attempt < sendgridMaxAttempts {
			time.Sleep(time.Duration(attempt) * sendgridRetryDelay)
		}
	}
	if err != nil {
		return err
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
