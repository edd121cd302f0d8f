package contact

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/swanstudios/studio/core"
)

var (
	ErrNotFound = errors.New("contact not found")

	NowFunc = time.Now // mockable

	smsExcerptLen = 120
)

type (
	Repository interface {
		CreateContact(ctx context.Context, c Contact, exec ...core.DBExecutor) (Contact, error)
		// QueryContacts returns a page of contacts, newest first, & the total count.
		QueryContacts(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Contact, int, error)
		GetContact(ctx context.Context, id string, exec ...core.DBExecutor) (Contact, error)
		UpdateContact(ctx context.Context, c Contact, exec ...core.DBExecutor) (Contact, error)
	}

	Service interface {
		// Submit saves the contact & notifies the admins & the sender.
		// Notification failures never fail the submission.
		Submit(ctx context.Context, nc NewContact) (Contact, error)
		List(ctx context.Context, filter QueryFilter) (Page, error)
		Get(ctx context.Context, id string) (Contact, error)
		MarkViewed(ctx context.Context, id string) (Contact, error)
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		smsSvc  core.SMSService
		metrics core.Metrics
		logger  core.Logger
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, smsSvc core.SMSService, metrics core.Metrics, logger core.Logger, conf *core.Config) Service {
	if metrics == nil {
		metrics = core.NopMetrics
	}
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		smsSvc:  smsSvc,
		metrics: metrics,
		logger:  logger,
		conf:    conf,
	}
}

func (svc *service) Submit(ctx context.Context, nc NewContact) (Contact, error) {
	c, err := svc.repo.CreateContact(ctx, Contact{
		Name:      nc.Name,
		Email:     nc.Email,
		Phone:     nc.Phone,
		Message:   nc.Message,
		Priority:  nc.Priority,
		CreatedAt: NowFunc().UTC(),
	})
	if err != nil {
		return Contact{}, errors.Wrap(err, "saving contact")
	}

	svc.metrics.ContactSubmitted(string(c.Priority))
	svc.notifyAdmins(c)
	svc.acknowledge(c)
	return c, nil
}

func (svc *service) notifyAdmins(c Contact) {
	subject := fmt.Sprintf("New contact form submission from %s", c.Name)
	if c.IsUrgent() {
		subject = "[URGENT] " + subject
	}

	if len(svc.conf.AdminEmails) > 0 {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           svc.conf.AdminEmails,
			Subject:      subject,
			TemplateName: "contact_notification",
			TemplateData: map[string]interface{}{
				"Name":      c.Name,
				"Email":     c.Email,
				"Phone":     c.Phone,
				"Message":   c.Message,
				"CreatedAt": c.CreatedAt.Format(time.RFC1123),
				"Urgent":    c.IsUrgent(),
			},
		})
	} else {
		svc.logger.Warn("no admin emails configured, contact notification not sent", map[string]interface{}{"contact_id": c.ID})
	}

	if svc.smsSvc != nil && svc.conf.AdminPhone != "" {
		svc.smsSvc.SendMessages(&core.SMSMessage{To: svc.conf.AdminPhone, Body: smsBody(c)})
	}
}

func smsBody(c Contact) string {
	prefix := "New"
	if c.IsUrgent() {
		prefix = "URGENT"
	}
	return fmt.Sprintf("%s contact from %s (%s): %s", prefix, c.Name, c.Email, core.Ellipsize(c.Message, smsExcerptLen))
}

func (svc *service) acknowledge(c Contact) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: c.Name, Address: c.Email}},
		Subject:      "We received your message",
		TemplateName: "contact_received",
		TemplateData: map[string]interface{}{
			"Name":    c.Name,
			"Message": c.Message,
		},
	})
}

func (svc *service) List(ctx context.Context, filter QueryFilter) (Page, error) {
	filter.Clean()
	contacts, total, err := svc.repo.QueryContacts(ctx, filter)
	if err != nil {
		return Page{}, errors.Wrap(err, "querying contacts")
	}
	return Page{Contacts: contacts, PageInfo: core.NewPageInfo(filter.Pagination, total)}, nil
}

func (svc *service) Get(ctx context.Context, id string) (Contact, error) {
	return svc.repo.GetContact(ctx, id)
}

func (svc *service) MarkViewed(ctx context.Context, id string) (Contact, error) {
	c, err := svc.repo.GetContact(ctx, id)
	if err != nil {
		return Contact{}, err
	}
	if !c.ViewedAt.IsZero() {
		return c, nil
	}
	c.ViewedAt = NowFunc().UTC()
	return svc.repo.UpdateContact(ctx, c)
}
