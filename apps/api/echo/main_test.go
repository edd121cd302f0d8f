package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/swanstudios/studio/apps/api/echo"
	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/contact"
	"github.com/swanstudios/studio/core/gamification"
	"github.com/swanstudios/studio/core/store"
	"github.com/swanstudios/studio/core/user"
	emailsvc "github.com/swanstudios/studio/services/email"
	metricsvc "github.com/swanstudios/studio/services/metrics"
	paymentsvc "github.com/swanstudios/studio/services/payment"
	smssvc "github.com/swanstudios/studio/services/sms"
	dummydb "github.com/swanstudios/studio/storage/database/dummy"
	"github.com/swanstudios/studio/tests"
)

var (
	conf    *core.Config
	db      *dummydb.DB
	app     echoapi.Server
	auth    *echoapi.Auth
	gateway *paymentsvc.ConsoleGateway

	usrRepo     user.Repository
	gamRepo     gamification.Repository
	storeRepo   store.Repository
	contactRepo contact.Repository

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

func TestMain(m *testing.M) {
	conf = testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	validate, translator := testutil.NewValidator()
	metrics := metricsvc.NewPrometheus(logger)
	user.LoadCommonPasswords(logger)

	// set up DB & repos
	db = dummydb.Open()
	usrRepo = dummydb.NewUserRepository(db)
	gamRepo = dummydb.NewGamificationRepository(db)
	storeRepo = dummydb.NewStoreRepository(db)
	contactRepo = dummydb.NewContactRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	smsSvc := smssvc.NewConsoleServiceMock(conf, logger)
	gateway = paymentsvc.NewConsoleGateway(conf, logger)
	usrSvc := user.NewServiceMock(usrRepo, mailSvc, conf)

	// set up server
	auth = echoapi.NewAuth(conf)
	app = echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Metrics:        metrics,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,

		UserSvc:         usrSvc,
		GamificationSvc: gamification.NewService(gamRepo, db, usrSvc, mailSvc, metrics, logger),
		StoreSvc:        store.NewService(storeRepo, db, usrSvc, gateway, mailSvc, metrics, logger, conf),
		ContactSvc:      contact.NewService(contactRepo, mailSvc, smsSvc, metrics, logger, conf),
	})

	os.Exit(m.Run())
}

// resetDB empties the DB & the outboxes.
func resetDB() {
	db.Flush()
	emailsvc.ClearSentMessages()
	smssvc.ClearSentMessages()
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// serve runs the request through the app & returns the recorder.
func serve(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, usr user.User) string {
	token, err := auth.GenerateToken(auth.GetUserClaims(usr))
	require.NoError(t, err, "getToken()")
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	require.NoError(t, err, "marchallObj()")
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	require.NoError(t, err, "marchallList()")
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "decoding %s", rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "code; body %s", rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if assert.NoError(t, err, "jsonBytesEqual()") {
		assert.True(t, ok, "data = %s; wantData %s", rec.Body.String(), string(tt.wantData))
	}
}

func runTests(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestServer_home(t *testing.T) {
	rec := serve(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to "+conf.AppName+" API!", rec.Body.String())
}

func TestServer_metrics(t *testing.T) {
	_ = serve(http.MethodGet, "/", "")

	rec := serve(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swanstudios_http_requests_total")
}
