package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/doubt"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/topic"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	relaysvc "github.com/trezcool/darasa/services/relay"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

var (
	app      echoapi.Server
	doubtSvc doubt.ServiceInterface

	usrRepo   user.Repository
	schRepo   school.Repository
	topRepo   topic.Repository
	doubtRepo doubt.Repository

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func TestMain(m *testing.M) {
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.Doubt.ResponderDelay = 10 * time.Millisecond

	// set up DB & repos
	db := inmemdb.NewDB()
	usrRepo = inmemdb.NewUserRepository(db)
	schRepo = inmemdb.NewSchoolRepository(db)
	topRepo = inmemdb.NewTopicRepository(db)
	doubtRepo = inmemdb.NewDoubtRepository(db)

	// set up validators
	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	doubt.InitValidators(validate, translator)

	// set up services
	logger := nopLogger{}
	mailSvc := emailsvc.NewConsoleServiceMock()
	relay := relaysvc.NewInProcRelay()
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	schSvc := school.NewService(schRepo)
	topSvc := topic.NewService(topRepo)
	svc := doubt.NewService(doubt.Deps{
		Repo:      doubtRepo,
		UserSvc:   usrSvc,
		SchoolSvc: schSvc,
		TopicSvc:  topSvc,
		Relay:     relay,
		MailSvc:   mailSvc,
		Answerer:  nil,
		Logger:    logger,
		Conf:      conf,
	})
	doubtSvc = svc

	// set up server
	app = echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		SchoolSvc:      schSvc,
		TopicSvc:       topSvc,
		DoubtSvc:       svc,
		Relay:          relay,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})

	// run tests
	code := m.Run()

	svc.Responder().Stop()
	os.Exit(code)
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
	extra    interface{}
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

func getToken(t *testing.T, usr user.User) string {
	claims := echoapi.GetUserClaims(usr)
	token, err := echoapi.GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
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
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
