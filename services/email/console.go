package emailsvc

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/swanstudios/studio/core"
)

const base64LineLen = 76

var outbox sentMessages

// sentMessages records what the console service delivered.
type sentMessages struct {
	mu   sync.Mutex
	msgs []core.EmailMessage
}

func (s *sentMessages) add(msg core.EmailMessage) {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
}

// ClearSentMessages forgets all messages sent so far.
func ClearSentMessages() {
	outbox.mu.Lock()
	outbox.msgs = nil
	outbox.mu.Unlock()
}

// GetSentMessages returns a copy of the messages sent so far, oldest first.
func GetSentMessages() []core.EmailMessage {
	outbox.mu.Lock()
	defer outbox.mu.Unlock()
	return append([]core.EmailMessage{}, outbox.msgs...)
}

// consoleService prints MIME encoded emails to the logger instead of sending them.
type consoleService struct {
	from       mail.Address
	subjPrefix string
	quiet      bool // don't print
	inline     bool // deliver synchronously
	logger     core.Logger
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService(conf *core.Config, logger core.Logger) core.EmailService {
	return &consoleService{
		from:       conf.DefaultFromEmail,
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

// NewConsoleServiceMock returns a silent console service delivering messages synchronously.
func NewConsoleServiceMock(conf *core.Config, logger core.Logger) core.EmailService {
	svc := NewConsoleService(conf, logger).(*consoleService)
	svc.quiet = true
	svc.inline = true
	return svc
}

func (svc *consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if svc.inline {
			svc.deliver(msg)
		} else {
			go svc.deliver(msg)
		}
	}
}

func (svc *consoleService) deliver(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		svc.logger.Error("rendering email", errors.Wrap(err, "rendering email"), map[string]interface{}{"template": msg.TemplateName})
		return
	}
	if !msg.IsDeliverable() {
		return
	}

	raw, err := svc.compose(*msg, time.Now())
	if err != nil {
		svc.logger.Error("composing email", err, map[string]interface{}{"template": msg.TemplateName})
		return
	}
	if !svc.quiet {
		svc.logger.Info(string(raw))
	}
	outbox.add(*msg)
}

// compose renders msg as a MIME document: multipart/alternative for the text & html bodies,
// wrapped in multipart/mixed when there are attachments.
func (svc *consoleService) compose(msg core.EmailMessage, date time.Time) ([]byte, error) {
	altType, altBody, err := alternativeBody(msg)
	if err != nil {
		return nil, err
	}

	var doc bytes.Buffer
	header := []struct{ key, val string }{
		{"From", svc.from.String()},
		{"To", joinAddresses(msg.To)},
		{"Cc", joinAddresses(msg.Cc)},
		{"Bcc", joinAddresses(msg.Bcc)},
		{"Date", date.Format(time.RFC1123Z)},
		{"Subject", mime.QEncoding.Encode("utf-8", svc.subjPrefix+msg.Subject)},
		{"MIME-Version", "1.0"},
	}
	for _, h := range header {
		if h.val != "" {
			fmt.Fprintf(&doc, "%s: %s\r\n", h.key, h.val)
		}
	}

	if !msg.HasAttachments() {
		fmt.Fprintf(&doc, "Content-Type: %s\r\n\r\n", altType)
		doc.Write(altBody)
		return doc.Bytes(), nil
	}

	var parts bytes.Buffer
	mixed := multipart.NewWriter(&parts)
	w, err := mixed.CreatePart(textproto.MIMEHeader{"Content-Type": {altType}})
	if err != nil {
		return nil, errors.Wrap(err, "creating multipart/alternative part")
	}
	_, _ = w.Write(altBody)

	for _, at := range msg.Attachments {
		w, err = mixed.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {at.ContentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": at.Filename})},
		})
		if err != nil {
			return nil, errors.Wrapf(err, "creating %s part", at.ContentType)
		}
		writeWrapped(w, at.Content.String(), base64LineLen)
	}
	if err = mixed.Close(); err != nil {
		return nil, errors.Wrap(err, "closing multipart/mixed")
	}

	fmt.Fprintf(&doc, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mixed.Boundary())
	doc.Write(parts.Bytes())
	return doc.Bytes(), nil
}

func alternativeBody(msg core.EmailMessage) (string, []byte, error) {
	var body bytes.Buffer
	alt := multipart.NewWriter(&body)

	bodies := []struct{ ct, content string }{
		{"text/plain; charset=utf-8", msg.TextContent},
		{"text/html; charset=utf-8", msg.HTMLContent},
	}
	for _, b := range bodies {
		if b.content == "" {
			continue
		}
		w, err := alt.CreatePart(textproto.MIMEHeader{"Content-Type": {b.ct}})
		if err != nil {
			return "", nil, errors.Wrapf(err, "creating %s part", b.ct)
		}
		fmt.Fprintf(w, "%s\r\n", b.content)
	}
	if err := alt.Close(); err != nil {
		return "", nil, errors.Wrap(err, "closing multipart/alternative")
	}
	return "multipart/alternative; boundary=" + alt.Boundary(), body.Bytes(), nil
}

func writeWrapped(w io.Writer, s string, width int) {
	for len(s) > width {
		_, _ = w.Write([]byte(s[:width] + "\r\n"))
		s = s[width:]
	}
	if s != "" {
		_, _ = w.Write([]byte(s + "\r\n"))
	}
}

func joinAddresses(addrs []mail.Address) string {
	strs := make([]string, len(addrs))
	for i, a := range addrs {
		strs[i] = a.String()
	}
	return strings.Join(strs, ", ")
}
