package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core/user"
	testutil "github.com/trezcool/darasa/tests"
)

func Test_schoolApi(t *testing.T) {
	student := testutil.CreateUser(t, usrRepo, "School Student", "schstud", "schstud@test.cd", "", "Mbandaka High", 5, []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, usrRepo, "School Admin", "schadmin", "schadmin@test.cd", "", "", 0, []string{user.RoleAdmin}, true)
	sch := testutil.CreateSchool(t, schRepo, "Mbandaka High")

	t.Run("anyone authenticated can browse", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/schools/"+sch.ID, getToken(t, student))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, sch)}, rec)
	})

	t.Run("unknown school", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/schools/nope", getToken(t, student))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "school not found"}),
		}, rec)
	})

	t.Run("only admins register schools", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"name": "Kikwit High"})

		req, rec := newAuthRequest(http.MethodPost, "/api/schools", getToken(t, student), body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}, rec)

		req, rec = newAuthRequest(http.MethodPost, "/api/schools", getToken(t, admin), body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("duplicate name is rejected", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/schools", getToken(t, admin),
			marchallObj(t, map[string]string{"name": "Mbandaka High"}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want %v; body = %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})
}

func Test_topicApi(t *testing.T) {
	student := testutil.CreateUser(t, usrRepo, "Topic Student", "topstud", "topstud@test.cd", "", "Kalemie High", 4, []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, usrRepo, "Topic Admin", "topadmin", "topadmin@test.cd", "", "", 0, []string{user.RoleAdmin}, true)
	mine := testutil.CreateTopic(t, topRepo, "Multiplication Tables", "Math", 4)
	other := testutil.CreateTopic(t, topRepo, "Long Division", "Math", 5)

	listTitles := func(t *testing.T, token, path string) []string {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, path, token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var topics []struct {
			Title string `json:"title"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &topics); err != nil {
			t.Fatalf("unmarshalling: %v", err)
		}
		titles := make([]string, 0, len(topics))
		for _, top := range topics {
			titles = append(titles, top.Title)
		}
		return titles
	}

	t.Run("student gets their grade's curriculum", func(t *testing.T) {
		assert.Contains(t, listTitles(t, getToken(t, student), "/api/topics"), mine.Title)
		assert.NotContains(t, listTitles(t, getToken(t, student), "/api/topics"), other.Title)
	})

	t.Run("admin may pick a grade", func(t *testing.T) {
		assert.Contains(t, listTitles(t, getToken(t, admin), "/api/topics?grade=5"), other.Title)
	})

	t.Run("grade override is ignored for students", func(t *testing.T) {
		assert.NotContains(t, listTitles(t, getToken(t, student), "/api/topics?grade=5"), other.Title)
	})

	t.Run("retrieve", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/topics/"+mine.ID, getToken(t, student))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, mine)}, rec)
	})

	t.Run("only admins create topics", func(t *testing.T) {
		body := marchallObj(t, map[string]interface{}{"title": "Fractions", "subject": "Math", "grade": 4})

		req, rec := newAuthRequest(http.MethodPost, "/api/topics", getToken(t, student), body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}, rec)

		req, rec = newAuthRequest(http.MethodPost, "/api/topics", getToken(t, admin), body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
		}
	})
}
