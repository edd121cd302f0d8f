package echoapi_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swanstudios/studio/core/contact"
	"github.com/swanstudios/studio/core/user"
	emailsvc "github.com/swanstudios/studio/services/email"
	smssvc "github.com/swanstudios/studio/services/sms"
	"github.com/swanstudios/studio/tests"
)

func Test_contactApi_submit(t *testing.T) {
	resetDB()

	reqMsg := "this field is required"
	tests := []struct {
		httpTest
		wantSMS     string
		wantSubject string
	}{
		{
			httpTest: httpTest{
				name: "required fields", wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{"name": reqMsg, "email": reqMsg, "message": reqMsg}),
			},
		},
		{
			httpTest: httpTest{
				name: "invalid email", wantCode: http.StatusBadRequest,
				body:     marchallObj(t, contact.NewContact{Name: "Jane", Email: "lol", Message: "Hi"}),
				wantData: marchallObj(t, map[string]string{"email": "email must be a valid email address"}),
			},
		},
		{
			httpTest: httpTest{
				name: "invalid priority", wantCode: http.StatusBadRequest,
				body: marchallObj(t, contact.NewContact{Name: "Jane", Email: "jane@test.com", Message: "Hi", Priority: "asap"}),
			},
		},
		{
			httpTest: httpTest{
				name: "normal", wantCode: http.StatusCreated,
				body: marchallObj(t, contact.NewContact{Name: " Jane ", Email: "JANE@test.com", Message: "I want to book a session"}),
			},
			wantSMS:     "New contact from Jane (jane@test.com): I want to book a session",
			wantSubject: "New contact form submission from Jane",
		},
		{
			httpTest: httpTest{
				name: "urgent", wantCode: http.StatusCreated,
				body: marchallObj(t, contact.NewContact{Name: "Bob", Email: "bob@test.com", Message: "Call me back", Priority: contact.PriorityUrgent}),
			},
			wantSMS:     "URGENT contact from Bob (bob@test.com): Call me back",
			wantSubject: "[URGENT] New contact form submission from Bob",
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/contact"

		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ClearSentMessages()
			smssvc.ClearSentMessages()

			rec := serve(tt.method, tt.path, "", tt.body)
			checkCodeAndData(t, tt.httpTest, rec)

			if tt.wantCode != http.StatusCreated {
				assert.Empty(t, emailsvc.GetSentMessages())
				assert.Empty(t, smssvc.GetSentMessages())
				return
			}

			var c contact.Contact
			decode(t, rec, &c)
			assert.NotEmpty(t, c.ID)
			assert.False(t, c.CreatedAt.IsZero())
			assert.True(t, c.ViewedAt.IsZero())

			// admin notification + acknowledgement
			msgs := emailsvc.GetSentMessages()
			require.Len(t, msgs, 2)
			var notified, acked bool
			for _, msg := range msgs {
				switch msg.To[0].Address {
				case testutil.AdminEmail:
					notified = true
					assert.Contains(t, msg.Subject, tt.wantSubject)
					assert.Contains(t, msg.TextContent, c.Message)
				case c.Email:
					acked = true
					assert.Contains(t, msg.TextContent, c.Name)
				}
			}
			assert.True(t, notified, "admin not notified")
			assert.True(t, acked, "sender not acknowledged")

			sms := smssvc.GetSentMessages()
			require.Len(t, sms, 1)
			assert.Equal(t, testutil.AdminPhone, sms[0].To)
			assert.Equal(t, tt.wantSMS, sms[0].Body)
		})
	}
}

func Test_contactApi_smsExcerpt(t *testing.T) {
	resetDB()

	body := marchallObj(t, contact.NewContact{Name: "Jane", Email: "jane@test.com", Message: strings.Repeat("a", 200)})
	rec := serve(http.MethodPost, "/api/contact", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	sms := smssvc.GetSentMessages()
	require.Len(t, sms, 1)
	assert.True(t, strings.HasSuffix(sms[0].Body, strings.Repeat("a", 120)+"..."), sms[0].Body)
}

func Test_contactApi_admin(t *testing.T) {
	resetDB()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin01", "admin@test.com", "", []string{user.RoleAdmin}, true)
	client := testutil.CreateUser(t, usrRepo, "Client", "client01", "client@test.com", "", []string{user.RoleClient}, true)
	adminToken := getToken(t, admin)

	submit := func(name string, priority contact.Priority) contact.Contact {
		body := marchallObj(t, contact.NewContact{Name: name, Email: "someone@test.com", Message: "Hello", Priority: priority})
		rec := serve(http.MethodPost, "/api/contact", "", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var c contact.Contact
		decode(t, rec, &c)
		return c
	}
	normal := submit("Jane", contact.PriorityNormal)
	urgent := submit("Bob", contact.PriorityUrgent)

	runTests(t, []httpTest{
		{name: "list: auth required", method: http.MethodGet, path: "/api/contact", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "list: admin required", method: http.MethodGet, path: "/api/contact", token: getToken(t, client), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "get: unknown", method: http.MethodGet, path: "/api/contact/lol", token: adminToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "contact not found"})},
		{name: "get", method: http.MethodGet, path: "/api/contact/" + normal.ID, token: adminToken, wantData: marchallObj(t, normal)},
	})

	t.Run("list: all", func(t *testing.T) {
		rec := serve(http.MethodGet, "/api/contact", adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var page contact.Page
		decode(t, rec, &page)
		assert.Equal(t, 2, page.Total)
		assert.Equal(t, 1, page.Pages)
		assert.Len(t, page.Contacts, 2)
	})

	t.Run("list: urgent only", func(t *testing.T) {
		rec := serve(http.MethodGet, "/api/contact?priority=urgent", adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var page contact.Page
		decode(t, rec, &page)
		require.Len(t, page.Contacts, 1)
		assert.Equal(t, urgent.ID, page.Contacts[0].ID)
	})

	t.Run("mark viewed", func(t *testing.T) {
		rec := serve(http.MethodPut, "/api/contact/"+normal.ID+"/viewed", adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var c contact.Contact
		decode(t, rec, &c)
		assert.False(t, c.ViewedAt.IsZero())

		// idempotent
		rec = serve(http.MethodPut, "/api/contact/"+normal.ID+"/viewed", adminToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var again contact.Contact
		decode(t, rec, &again)
		assert.True(t, c.ViewedAt.Equal(again.ViewedAt))

		rec = serve(http.MethodGet, "/api/contact?viewed=false", adminToken)
		var page contact.Page
		decode(t, rec, &page)
		require.Len(t, page.Contacts, 1)
		assert.Equal(t, urgent.ID, page.Contacts[0].ID)
	})
}
