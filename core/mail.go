package core

import (
	"bytes"
	"encoding/base64"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"
	"time"

	"github.com/pkg/errors"

	appfs "github.com/swanstudios/studio/fs"
)

const (
	emailTemplatesDir = "assets/templates/email"
	textExt           = ".txt"
	htmlExt           = ".gohtml"
)

// emailTemplateFuncs are available to every email template.
var emailTemplateFuncs = map[string]interface{}{
	"year":  func() int { return time.Now().Year() },
	"upper": strings.ToUpper,
}

var emailTemplates = &templateRegistry{}

type (
	Attachment struct {
		Content     *bytes.Buffer // base64 encoded
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// templateSet holds both renditions of an email. Either may be nil.
type templateSet struct {
	text *texttmpl.Template
	html *htmltmpl.Template
}

type templateRegistry struct {
	mu       sync.RWMutex
	sets     map[string]templateSet
	frontURL string
}

func (r *templateRegistry) lookup(name string) (templateSet, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.sets[name]
	return set, r.frontURL, ok
}

func (r *templateRegistry) replace(sets map[string]templateSet, frontURL string) {
	r.mu.Lock()
	r.sets = sets
	r.frontURL = frontURL
	r.mu.Unlock()
}

// Render fills TextContent & HTMLContent. BodyStr takes precedence over the text template.
func (m *EmailMessage) Render() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}

	set, frontURL, ok := emailTemplates.lookup(m.TemplateName)
	if !ok {
		return errors.Errorf("unknown email template %q", m.TemplateName)
	}
	data := ContextData{FrontendBaseURL: frontURL, Data: m.TemplateData}

	var buff bytes.Buffer
	if set.text != nil && m.BodyStr == "" {
		if err := set.text.Execute(&buff, data); err != nil {
			return errors.Wrapf(err, "rendering %s%s", m.TemplateName, textExt)
		}
		m.TextContent = buff.String()
		buff.Reset()
	}
	if set.html != nil {
		if err := set.html.Execute(&buff, data); err != nil {
			return errors.Wrapf(err, "rendering %s%s", m.TemplateName, htmlExt)
		}
		m.HTMLContent = buff.String()
	}
	return nil
}

// Attach base64 encodes the content of r as an attachment.
// The content type is sniffed unless given.
func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading attachment")
	}

	at := Attachment{Filename: filename, Content: new(bytes.Buffer), ContentType: http.DetectContentType(content)}
	if len(ct) > 0 && ct[0] != "" {
		at.ContentType = ct[0]
	}
	enc := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err = enc.Write(content); err != nil {
		return errors.Wrap(err, "encoding attachment")
	}
	if err = enc.Close(); err != nil {
		return errors.Wrap(err, "encoding attachment")
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// IsDeliverable reports whether the rendered message has somebody to go to & something to say.
func (m *EmailMessage) IsDeliverable() bool {
	return m.HasRecipients() && (m.HasContent() || m.HasAttachments())
}

// ParseEmailTemplates parses the email templates embedded in appfs.
// Every template is parsed along with its `_base` layout of the same extension.
func ParseEmailTemplates(conf *Config) error {
	return parseTemplates(appfs.FS, conf.FrontendBaseURL, conf.Debug || conf.TestMode)
}

func parseTemplates(fsys fs.FS, frontendBaseURL string, strict bool) error {
	fps, err := fs.Glob(fsys, path.Join(emailTemplatesDir, "*"))
	if err != nil {
		return errors.Wrap(err, "listing email templates")
	}

	missingKey := "missingkey=default"
	if strict {
		missingKey = "missingkey=error"
	}

	sets := make(map[string]templateSet)
	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		base := path.Join(emailTemplatesDir, "_base"+ext)
		set := sets[name]

		switch ext {
		case textExt:
			set.text, err = texttmpl.New(path.Base(base)).Funcs(emailTemplateFuncs).Option(missingKey).ParseFS(fsys, base, fp)
		case htmlExt:
			set.html, err = htmltmpl.New(path.Base(base)).Funcs(emailTemplateFuncs).Option(missingKey).ParseFS(fsys, base, fp)
		default:
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "parsing %s", fname)
		}
		sets[name] = set
	}

	emailTemplates.replace(sets, frontendBaseURL)
	return nil
}
