package emailsvc

import (
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/tests"
)

func TestConsoleService_compose(t *testing.T) {
	conf := testutil.NewConfig()
	svc := NewConsoleServiceMock(conf, testutil.NewLogger(conf)).(*consoleService)
	date := time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC)

	t.Run("text & html", func(t *testing.T) {
		raw, err := svc.compose(core.EmailMessage{
			To:          []mail.Address{{Name: "Jane", Address: "jane@test.com"}},
			Subject:     "Welcome",
			TextContent: "hello",
			HTMLContent: "<p>hello</p>",
		}, date)
		require.NoError(t, err)

		doc := string(raw)
		assert.Contains(t, doc, "To: \"Jane\" <jane@test.com>\r\n")
		assert.Contains(t, doc, "Subject: ["+conf.AppName+"] Welcome\r\n")
		assert.Contains(t, doc, "Date: Fri, 01 Mar 2024 09:30:00 +0000\r\n")
		assert.Contains(t, doc, "Content-Type: multipart/alternative; boundary=")
		assert.Contains(t, doc, "text/plain; charset=utf-8")
		assert.Contains(t, doc, "<p>hello</p>")
		assert.NotContains(t, doc, "Cc:")
		assert.NotContains(t, doc, "multipart/mixed")
	})

	t.Run("attachments", func(t *testing.T) {
		msg := core.EmailMessage{
			To:          []mail.Address{{Address: "jane@test.com"}},
			Bcc:         []mail.Address{{Address: "admin@test.com"}},
			Subject:     "Reçu",
			TextContent: "see attached",
		}
		require.NoError(t, msg.Attach(strings.NewReader(strings.Repeat("receipt line\n", 20)), "receipt.txt", "text/plain"))

		raw, err := svc.compose(msg, date)
		require.NoError(t, err)

		doc := string(raw)
		assert.Contains(t, doc, "Bcc: <admin@test.com>\r\n")
		assert.Contains(t, doc, "Subject: =?utf-8?q?")
		assert.Contains(t, doc, "Content-Type: multipart/mixed; boundary=")
		assert.Contains(t, doc, "Content-Disposition: attachment; filename=receipt.txt")
		for _, line := range strings.Split(doc, "\r\n") {
			assert.LessOrEqual(t, len(line), 120, line)
		}
	})
}

func TestConsoleService_SendMessages(t *testing.T) {
	conf := testutil.NewConfig()
	svc := NewConsoleServiceMock(conf, testutil.NewLogger(conf))
	ClearSentMessages()

	svc.SendMessages(
		&core.EmailMessage{To: []mail.Address{{Address: "jane@test.com"}}, Subject: "Hi", BodyStr: "hello"},
		&core.EmailMessage{Subject: "nobody to send to", BodyStr: "hello"},
		&core.EmailMessage{To: []mail.Address{{Address: "jane@test.com"}}, Subject: "nothing to say"},
		&core.EmailMessage{To: []mail.Address{{Address: "jane@test.com"}}, TemplateName: "lol"},
	)

	sent := GetSentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Hi", sent[0].Subject)
	assert.Equal(t, "hello", sent[0].TextContent)

	ClearSentMessages()
	assert.Empty(t, GetSentMessages())
}
