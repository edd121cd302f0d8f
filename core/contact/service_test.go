package contact_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/contact"
	dummydb "github.com/swanstudios/studio/storage/database/dummy"
	"github.com/swanstudios/studio/tests"
)

type recorder struct {
	mu     sync.Mutex
	emails []*core.EmailMessage
	sms    []*core.SMSMessage
}

func (r *recorder) SendMessages(messages ...*core.EmailMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, messages...)
}

type smsRecorder struct{ *recorder }

func (r smsRecorder) SendMessages(messages ...*core.SMSMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sms = append(r.sms, messages...)
}

func setup(t *testing.T, conf *core.Config) (contact.Service, *recorder) {
	rec := &recorder{}
	db := dummydb.Open()
	svc := contact.NewService(dummydb.NewContactRepository(db), rec, smsRecorder{rec}, nil, testutil.NewLogger(conf), conf)
	return svc, rec
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("normal", func(t *testing.T) {
		svc, rec := setup(t, testutil.NewConfig())

		c, err := svc.Submit(ctx, contact.NewContact{
			Name:     "Jane",
			Email:    "jane@test.com",
			Message:  "Do you offer group classes?",
			Priority: contact.PriorityNormal,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, c.ID)
		assert.True(t, c.ViewedAt.IsZero())

		if assert.Len(t, rec.emails, 2) {
			admin, ack := rec.emails[0], rec.emails[1]
			assert.Equal(t, "New contact form submission from Jane", admin.Subject)
			assert.Equal(t, testutil.AdminEmail, admin.To[0].Address)
			assert.Equal(t, "contact_notification", admin.TemplateName)
			assert.Equal(t, "jane@test.com", ack.To[0].Address)
			assert.Equal(t, "contact_received", ack.TemplateName)
		}
		if assert.Len(t, rec.sms, 1) {
			assert.Equal(t, testutil.AdminPhone, rec.sms[0].To)
			assert.Equal(t, "New contact from Jane (jane@test.com): Do you offer group classes?", rec.sms[0].Body)
		}
	})

	t.Run("urgent with long message", func(t *testing.T) {
		svc, rec := setup(t, testutil.NewConfig())

		msg := strings.Repeat("a", 200)
		_, err := svc.Submit(ctx, contact.NewContact{Name: "Joe", Email: "joe@test.com", Message: msg, Priority: contact.PriorityUrgent})
		require.NoError(t, err)

		require.Len(t, rec.emails, 2)
		assert.Equal(t, "[URGENT] New contact form submission from Joe", rec.emails[0].Subject)
		require.Len(t, rec.sms, 1)
		assert.Equal(t, "URGENT contact from Joe (joe@test.com): "+strings.Repeat("a", 120)+"...", rec.sms[0].Body)
	})

	t.Run("no admins configured", func(t *testing.T) {
		conf := testutil.NewConfig()
		conf.AdminEmails = nil
		conf.AdminPhone = ""
		svc, rec := setup(t, conf)

		_, err := svc.Submit(ctx, contact.NewContact{Name: "Ann", Email: "ann@test.com", Message: "Hi"})
		require.NoError(t, err)
		if assert.Len(t, rec.emails, 1) {
			assert.Equal(t, "contact_received", rec.emails[0].TemplateName)
		}
		assert.Empty(t, rec.sms)
	})
}

func TestService_MarkViewed(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t, testutil.NewConfig())

	now := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	contact.NowFunc = func() time.Time { return now }
	defer func() { contact.NowFunc = time.Now }()

	c, err := svc.Submit(ctx, contact.NewContact{Name: "Jane", Email: "jane@test.com", Message: "Hello"})
	require.NoError(t, err)

	viewed, err := svc.MarkViewed(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, now, viewed.ViewedAt)

	// viewing again keeps the first view time
	contact.NowFunc = func() time.Time { return now.Add(time.Hour) }
	viewed, err = svc.MarkViewed(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, now, viewed.ViewedAt)

	_, err = svc.MarkViewed(ctx, "unknown")
	assert.Equal(t, contact.ErrNotFound, err)

	unviewed := false
	page, err := svc.List(ctx, contact.QueryFilter{Viewed: &unviewed})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)

	page, err = svc.List(ctx, contact.QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}
