package echoapi_test

import (
	"context"
	"net/http"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/swanstudios/studio/apps/api/echo"
	"github.com/swanstudios/studio/core/user"
	emailsvc "github.com/swanstudios/studio/services/email"
	"github.com/swanstudios/studio/tests"
)

const testPwd = "Sw@nLake42"

func Test_userApi_login(t *testing.T) {
	resetDB()

	client := testutil.CreateUser(t, usrRepo, "Hero", "hero01", "hero@test.com", testPwd, []string{user.RoleClient}, true)
	_ = testutil.CreateUser(t, usrRepo, "N Dog", "ndog01", "ndog@test.com", testPwd, []string{user.RoleClient}, false)

	reqMsg := "this field is required"
	tests := []httpTest{
		{name: "required fields", wantCode: http.StatusBadRequest, wantData: marchallObj(t, echoapi.LoginRequest{Username: reqMsg, Password: reqMsg})},
		{
			name: "unknown user", wantCode: http.StatusBadRequest, body: marchallObj(t, echoapi.LoginRequest{Username: "lol", Password: testPwd}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", wantCode: http.StatusBadRequest, body: marchallObj(t, echoapi.LoginRequest{Username: "hero01", Password: "lol"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "inactive user", wantCode: http.StatusForbidden, body: marchallObj(t, echoapi.LoginRequest{Username: "ndog01", Password: testPwd}),
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "by username", body: marchallObj(t, echoapi.LoginRequest{Username: " HERO01 ", Password: testPwd})},
		{name: "by email", body: marchallObj(t, echoapi.LoginRequest{Username: "hero@test.com", Password: testPwd})},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/users/login"
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt.method, tt.path, "", tt.body)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp echoapi.LoginResponse
				decode(t, rec, &resp)
				assert.NotEmpty(t, resp.Token)

				usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: client.ID})
				require.NoError(t, err)
				assert.False(t, usr.LastLogin.IsZero(), "last login not set")
			}
		})
	}
}

func Test_userApi_query(t *testing.T) {
	resetDB()

	path := func(search, ordering string, createdFrom, createdTo time.Time, isActive *bool, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		if !createdFrom.IsZero() {
			v.Add("created_from", createdFrom.Format(time.RFC3339))
		}
		if !createdTo.IsZero() {
			v.Add("created_to", createdTo.Format(time.RFC3339))
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/api/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }
	var zero time.Time

	base := time.Now().Add(-24 * time.Hour).Truncate(time.Second).UTC()
	at := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

	usr := testutil.CreateUser(t, usrRepo, "User", "awesome1", "awe@test.com", "", []string{user.RoleUser}, true, at(0))
	client := testutil.CreateUser(t, usrRepo, "Hero", "hero01", "hero@test.com", "", []string{user.RoleClient}, true, at(1))
	trainer := testutil.CreateUser(t, usrRepo, "Trainer", "trainer1", "trainer@test.com", "", []string{user.RoleTrainer}, true, at(2))
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin01", "admin@test.com", "", []string{user.RoleAdmin}, true, at(3))
	owner := testutil.CreateUser(t, usrRepo, "Owner", "owner01", "owner@test.com", "", []string{user.RoleAdminOwner}, true, at(4))
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog01", "ndog@test.com", "", []string{user.RoleClient}, false, at(5))

	adminToken := getToken(t, admin)
	empty := marchallList(t)

	tests := []httpTest{
		{name: "Auth required", path: "/api/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Admin required", path: "/api/users", token: getToken(t, trainer), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "Get all", path: "/api/users", token: adminToken, wantData: marchallList(t, naughty, owner, admin, trainer, client, usr)},
		// filtering
		{name: "search (unknown)", path: path("lol", "", zero, zero, nil), token: adminToken, wantData: empty},
		{name: "search=HER", path: path("HER", "", zero, zero, nil), token: adminToken, wantData: marchallList(t, client)},
		{name: "role (unknown)", path: path("", "", zero, zero, nil, "lol"), token: adminToken, wantData: empty},
		{name: "role=admin:", path: path("", "", zero, zero, nil, user.RoleAdmin), token: adminToken, wantData: marchallList(t, owner, admin)},
		{
			name: "role=trainer:,client:", path: path("", "", zero, zero, nil, user.RoleTrainer, user.RoleClient),
			token: adminToken, wantData: marchallList(t, naughty, trainer, client),
		},
		{name: "is_active=false", path: path("", "", zero, zero, bPtr(false)), token: adminToken, wantData: marchallList(t, naughty)},
		{name: "created_from", path: path("", "", at(3), zero, nil), token: adminToken, wantData: marchallList(t, naughty, owner, admin)},
		{name: "created_to", path: path("", "", zero, at(1), nil), token: adminToken, wantData: marchallList(t, client, usr)},
		{name: "created_from - created_to", path: path("", "", at(1), at(2), nil), token: adminToken, wantData: marchallList(t, trainer, client)},
		{name: "all combo (empty)", path: path("her", "", at(2), zero, bPtr(true), user.RoleClient), token: adminToken, wantData: empty},
		// ordering
		{name: "order by name", path: path("", "name", zero, zero, nil), token: adminToken, wantData: marchallList(t, admin, client, naughty, owner, trainer, usr)},
		{name: "order by created_at", path: path("", "created_at", zero, zero, nil), token: adminToken, wantData: marchallList(t, usr, client, trainer, admin, owner, naughty)},
		{
			name: "order by is_active,-name", path: path("", "is_active,-name", zero, zero, nil), token: adminToken,
			wantData: marchallList(t, naughty, usr, trainer, owner, client, admin),
		},
		{name: "unknown ordering ignored", path: path("", "password_hash", zero, zero, nil), token: adminToken, wantData: marchallList(t, naughty, owner, admin, trainer, client, usr)},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
	}
	runTests(t, tests)
}

func Test_userApi_create(t *testing.T) {
	resetDB()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin01", "admin@test.com", "", []string{user.RoleAdmin}, true)
	trainer := testutil.CreateUser(t, usrRepo, "Trainer", "trainer1", "trainer@test.com", "", []string{user.RoleTrainer}, true)
	adminToken := getToken(t, admin)

	newUsr := func(uname, email string, roles ...string) user.NewUser {
		return user.NewUser{Name: "Jane Doe", Username: uname, Email: email, Password: testPwd, PasswordConfirm: testPwd, Roles: roles}
	}

	runTests(t, []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/api/users/register", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "admin required", method: http.MethodPost, path: "/api/users/register", token: getToken(t, trainer), wantCode: http.StatusForbidden},
		{
			name: "username or email required", method: http.MethodPost, path: "/api/users/register", token: adminToken, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, newUsr("", "")),
			wantData: marchallObj(t, map[string]string{"username": "one of username or email is required", "email": "one of username or email is required"}),
		},
		{
			name: "username taken", method: http.MethodPost, path: "/api/users/register", token: adminToken, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, newUsr("TRAINER1", "")),
			wantData: marchallObj(t, map[string]string{"username": "a user with this username already exists"}),
		},
		{
			name: "invalid roles", method: http.MethodPost, path: "/api/users/register", token: adminToken, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, newUsr("janedoe", "", "lol:")),
			wantData: marchallObj(t, map[string]string{"roles": "invalid roles"}),
		},
		{
			name: "role above own", method: http.MethodPost, path: "/api/users/register", token: adminToken, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, newUsr("janedoe", "", user.RoleAdminOwner)),
			wantData: marchallObj(t, map[string]string{"roles": "not enough rights to set these roles"}),
		},
	})

	t.Run("created", func(t *testing.T) {
		rec := serve(http.MethodPost, "/api/users/register", adminToken, marchallObj(t, newUsr("JaneDoe", "Jane@Test.com")))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var usr user.User
		decode(t, rec, &usr)
		assert.NotEmpty(t, usr.ID)
		assert.Equal(t, "janedoe", usr.Username)
		assert.Equal(t, "jane@test.com", usr.Email)
		assert.Equal(t, []string{user.RoleUser}, usr.Roles)
		assert.True(t, usr.IsActive)
	})
}

func Test_userApi_retrieveUpdateDestroy(t *testing.T) {
	resetDB()

	owner := testutil.CreateUser(t, usrRepo, "Owner", "owner01", "owner@test.com", "", []string{user.RoleAdminOwner}, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin01", "admin@test.com", "", []string{user.RoleAdmin}, true)
	trainer := testutil.CreateUser(t, usrRepo, "Trainer", "trainer1", "trainer@test.com", "", []string{user.RoleTrainer}, true)
	client := testutil.CreateUser(t, usrRepo, "Hero", "hero01", "hero@test.com", "", []string{user.RoleClient}, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other01", "other@test.com", "", []string{user.RoleClient}, true)

	adminToken := getToken(t, admin)
	clientToken := getToken(t, client)
	detail := func(usr user.User) string { return "/api/users/" + usr.ID }

	runTests(t, []httpTest{
		{name: "me: auth required", method: http.MethodGet, path: "/api/users/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "me", method: http.MethodGet, path: "/api/users/me", token: clientToken, wantData: marchallObj(t, client)},
		{name: "retrieve: self", method: http.MethodGet, path: detail(client), token: clientToken, wantData: marchallObj(t, client)},
		{name: "retrieve: other user", method: http.MethodGet, path: detail(other), token: clientToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "retrieve: trainer", method: http.MethodGet, path: detail(other), token: getToken(t, trainer), wantCode: http.StatusNotFound},
		{name: "retrieve: admin", method: http.MethodGet, path: detail(other), token: adminToken, wantData: marchallObj(t, other)},
		{name: "retrieve: unknown", method: http.MethodGet, path: "/api/users/lol", token: adminToken, wantCode: http.StatusNotFound},
		{
			name: "update: non-admin cannot change roles", method: http.MethodPut, path: detail(client), token: clientToken,
			body: marchallObj(t, map[string]interface{}{"roles": []string{user.RoleAdmin}}), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "update: admin cannot grant owner", method: http.MethodPut, path: detail(client), token: adminToken,
			body:     marchallObj(t, map[string]interface{}{"roles": []string{user.RoleAdminOwner}}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"roles": "not enough rights to set these roles"}),
		},
		{
			name: "update: invalid phone", method: http.MethodPut, path: detail(client), token: clientToken,
			body:     marchallObj(t, map[string]interface{}{"phone": "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"phone": "invalid phone number"}),
		},
		{name: "destroy: admin required", method: http.MethodDelete, path: detail(client), token: clientToken, wantCode: http.StatusForbidden},
		{name: "destroy: self", method: http.MethodDelete, path: detail(admin), token: adminToken, wantCode: http.StatusForbidden},
		{name: "destroy: higher role", method: http.MethodDelete, path: detail(owner), token: adminToken, wantCode: http.StatusForbidden},
		{name: "destroy", method: http.MethodDelete, path: detail(other), token: adminToken, wantCode: http.StatusNoContent},
		{name: "destroy: gone", method: http.MethodGet, path: detail(other), token: adminToken, wantCode: http.StatusNotFound},
	})

	t.Run("update: self", func(t *testing.T) {
		body := marchallObj(t, map[string]interface{}{"name": " Hero Client ", "phone": "+15555550123"})
		rec := serve(http.MethodPut, detail(client), clientToken, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, "Hero Client", usr.Name)
		assert.Equal(t, "+15555550123", usr.Phone)
		assert.Equal(t, client.Username, usr.Username)
		assert.Equal(t, client.Roles, usr.Roles)
	})

	t.Run("update: admin deactivates", func(t *testing.T) {
		body := marchallObj(t, map[string]interface{}{"is_active": false, "roles": []string{user.RoleTrainer}})
		rec := serve(http.MethodPut, detail(client), adminToken, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var usr user.User
		decode(t, rec, &usr)
		assert.False(t, usr.IsActive)
		assert.Equal(t, []string{user.RoleTrainer}, usr.Roles)
	})
}

func Test_userApi_destroyMultiple(t *testing.T) {
	resetDB()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin01", "admin@test.com", "", []string{user.RoleAdmin}, true)
	usr1 := testutil.CreateUser(t, usrRepo, "One", "user0001", "one@test.com", "", nil, true)
	usr2 := testutil.CreateUser(t, usrRepo, "Two", "user0002", "two@test.com", "", nil, true)
	adminToken := getToken(t, admin)

	runTests(t, []httpTest{
		{name: "no ids", method: http.MethodDelete, path: "/api/users", token: adminToken, wantCode: http.StatusNoContent},
		{name: "self included", method: http.MethodDelete, path: "/api/users?id=" + usr1.ID + "&id=" + admin.ID, token: adminToken, wantCode: http.StatusForbidden},
		{name: "deleted", method: http.MethodDelete, path: "/api/users?id=" + usr1.ID + "&id=" + usr2.ID, token: adminToken, wantCode: http.StatusNoContent},
		{name: "only admin left", method: http.MethodGet, path: "/api/users", token: adminToken, wantData: marchallList(t, admin)},
	})
}

func Test_userApi_queryRoles(t *testing.T) {
	resetDB()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin01", "admin@test.com", "", []string{user.RoleAdmin}, true)
	roles := make([]interface{}, len(user.Roles))
	for i, r := range user.Roles {
		roles[i] = r
	}
	runTests(t, []httpTest{
		{name: "roles", method: http.MethodGet, path: "/api/users/roles", token: getToken(t, admin), wantData: marchallList(t, roles...)},
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	resetDB()

	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog01", "ndog@test.com", "", []string{user.RoleClient}, false)
	client := testutil.CreateUser(t, usrRepo, "Hero", "hero01", "hero@test.com", "", []string{user.RoleClient}, true)

	// older than the refresh threshold
	oriat := time.Now().Add(-2 * conf.Server.JWTRefreshExpirationDelta).Unix()
	unrefreshableToken, err := auth.GenerateToken(auth.GetUserClaims(client, oriat))
	require.NoError(t, err, "GenerateToken()")

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Inactive user not allowed", token: getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "Token refreshed", token: getToken(t, client), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/users/token-refresh"

		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)

			// cannot guess new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				var resp echoapi.LoginResponse
				decode(t, rec, &resp)
				assert.NotEmpty(t, resp.Token)
			}
		})
	}
}

func Test_userApi_resetPassword(t *testing.T) {
	resetDB()

	client := testutil.CreateUser(t, usrRepo, "Hero", "hero01", "hero@test.com", "", []string{user.RoleClient}, true)
	_ = testutil.CreateUser(t, usrRepo, "N Dog", "ndog01", "ndog@test.com", "", []string{user.RoleClient}, false)
	successData := marchallObj(t, echoapi.SuccessResponse{Success: "If the email address supplied is associated with an active account, " +
		"an email with instructions to reset your password will arrive shortly."})
	pathRegex := regexp.MustCompile("/password-reset/.+/.+")

	tests := []struct {
		httpTest
		emailSent bool
		to        mail.Address
	}{
		{httpTest: httpTest{name: "required fields", wantCode: http.StatusBadRequest, wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "this field is required"})}},
		{
			httpTest: httpTest{
				name: "invalid email", wantCode: http.StatusBadRequest, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol"}),
				wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "email must be a valid email address"}),
			},
		},
		{httpTest: httpTest{name: "unknown email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol@test.com"}), wantData: successData}},
		{httpTest: httpTest{name: "inactive user", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "ndog@test.com"}), wantData: successData}},
		{
			httpTest:  httpTest{name: "known email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "HERO@test.com"}), wantData: successData},
			emailSent: true, to: mail.Address{Name: client.Name, Address: client.Email},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/users/password-reset"

		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ClearSentMessages()

			rec := serve(tt.method, tt.path, "", tt.body)
			checkCodeAndData(t, tt.httpTest, rec)

			msgs := emailsvc.GetSentMessages()
			if !tt.emailSent {
				assert.Empty(t, msgs)
				return
			}
			require.Len(t, msgs, 1)
			msg := msgs[0]
			assert.Equal(t, tt.to, msg.To[0])
			assert.Contains(t, msg.TextContent, tt.to.Name)
			assert.Contains(t, msg.HTMLContent, tt.to.Name)
			assert.Regexp(t, pathRegex, msg.TextContent)
			assert.Regexp(t, pathRegex, msg.HTMLContent)
		})
	}
}

func Test_userApi_confirmPasswordReset(t *testing.T) {
	resetDB()

	client := testutil.CreateUser(t, usrRepo, "Hero", "hero01", "hero@test.com", "lol", []string{user.RoleClient}, true)
	tokens := user.NewTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta)
	validUID := user.EncodeUID(client)
	validToken, err := tokens.MakeToken(client)
	require.NoError(t, err, "MakeToken()")

	// generate an expired token
	dayLate := conf.PasswordResetTimeoutDelta + (24 * time.Hour)
	user.NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := tokens.MakeToken(client)
	user.NowFunc = time.Now // reset
	require.NoError(t, err, "MakeToken()")

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, user.ResetUserPassword{Token: reqMsg, UID: reqMsg, Password: "password must contain at least 8 characters", PasswordConfirm: reqMsg}),
		},
		{
			name: "invalid pwd: min len", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "lol", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password must contain at least 8 characters"}),
		},
		{
			name: "invalid pwd: no whitespace", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "l o loll", PasswordConfirm: "l o loll"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password must not contain whitespace"}),
		},
		{
			name: "invalid pwd: not all numeric", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "12345678", PasswordConfirm: "12345678"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password cannot be entirely numeric"}),
		},
		{
			name: "invalid pwd: complexity", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "lol12345", PasswordConfirm: "lol12345"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"}),
		},
		{
			name: "invalid pwd: too common", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "P@$$w0rd", PasswordConfirm: "P@$$w0rd"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password is too common"}),
		},
		{
			name: "PasswordConfirm must = Password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: testPwd, PasswordConfirm: "lol"}),
			wantData: marchallObj(t, user.ResetUserPassword{PasswordConfirm: "password_confirm must be equal to Password"}),
		},
		{
			name: "user not found", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "bG9s", Password: testPwd, PasswordConfirm: testPwd}),
			wantData: marchallObj(t, user.ResetUserPassword{UID: "invalid value"}),
		},
		{
			name: "invalid token", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "HE4TS-sigsig-sig", UID: validUID, Password: testPwd, PasswordConfirm: testPwd}),
			wantData: marchallObj(t, user.ResetUserPassword{Token: "invalid value"}),
		},
		{
			name: "expired token", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: expiredToken, UID: validUID, Password: testPwd, PasswordConfirm: testPwd}),
			wantData: marchallObj(t, user.ResetUserPassword{Token: "invalid value"}),
		},
		{
			name: "valid token", wantCode: http.StatusOK,
			body:     marchallObj(t, user.ResetUserPassword{Token: validToken, UID: validUID, Password: testPwd, PasswordConfirm: testPwd}),
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
		},
		{
			name: "token used", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: validToken, UID: validUID, Password: testPwd, PasswordConfirm: testPwd}),
			wantData: marchallObj(t, user.ResetUserPassword{Token: "invalid value"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/users/password-reset-confirm"

		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt.method, tt.path, "", tt.body)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				refreshed, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: client.ID})
				require.NoError(t, err, "GetUser()")
				assert.NoError(t, refreshed.CheckPassword(testPwd), "new password not set")
			}
		})
	}
}
