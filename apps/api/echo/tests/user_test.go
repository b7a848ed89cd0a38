package tests

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core/user"
	testutil "github.com/trezcool/darasa/tests"
)

func Test_userApi_login(t *testing.T) {
	active := testutil.CreateUser(t, usrRepo, "Login User", "loginusr", "loginusr@test.cd", "LePassword#123", "Mont Amba", 8, []string{user.RoleStudent}, true)
	testutil.CreateUser(t, usrRepo, "Gone User", "goneusr", "goneusr@test.cd", "LePassword#123", "Mont Amba", 8, []string{user.RoleStudent}, false)

	tests := []httpTest{
		{
			name:     "valid credentials",
			body:     marchallObj(t, map[string]string{"username": active.Username, "password": "LePassword#123"}),
			wantCode: http.StatusOK,
		},
		{
			name:     "login with email",
			body:     marchallObj(t, map[string]string{"username": active.Email, "password": "LePassword#123"}),
			wantCode: http.StatusOK,
		},
		{
			name:     "wrong password",
			body:     marchallObj(t, map[string]string{"username": active.Username, "password": "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "unknown user",
			body:     marchallObj(t, map[string]string{"username": "whodis", "password": "LePassword#123"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated account",
			body:     marchallObj(t, map[string]string{"username": "goneusr", "password": "LePassword#123"}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/users/login", tt.body)
			app.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("failed! code = %v; wantCode %v; body = %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			// a successful login returns a usable token
			var resp struct {
				Token string `json:"token"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshalling LoginResponse: %v", err)
			}
			if resp.Token == "" {
				t.Error("empty token")
			}
		})
	}
}

func Test_userApi_queryTrainers(t *testing.T) {
	student := testutil.CreateUser(t, usrRepo, "Trainee", "trainee1", "trainee1@test.cd", "", "Boyoma", 6, []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, usrRepo, "Directory Admin", "diradmin", "diradmin@test.cd", "", "", 0, []string{user.RoleAdmin}, true)
	tr1 := testutil.CreateUser(t, usrRepo, "Trainer One", "boytr1", "boytr1@test.cd", "", "Boyoma", 6, []string{user.RoleTrainer}, true)
	tr2 := testutil.CreateUser(t, usrRepo, "Trainer Two", "boytr2", "boytr2@test.cd", "", "Boyoma", 6, []string{user.RoleTrainer}, true)
	testutil.CreateUser(t, usrRepo, "Other Grade", "boytr3", "boytr3@test.cd", "", "Boyoma", 9, []string{user.RoleTrainer}, true)
	testutil.CreateUser(t, usrRepo, "Other School", "boytr4", "boytr4@test.cd", "", "Wagenia", 6, []string{user.RoleTrainer}, true)
	testutil.CreateUser(t, usrRepo, "Inactive", "boytr5", "boytr5@test.cd", "", "Boyoma", 6, []string{user.RoleTrainer}, false)

	adminPath := func(school string, grade int) string {
		v := make(url.Values)
		v.Add("school", school)
		v.Add("grade", strconv.Itoa(grade))
		return "/api/users/trainers?" + v.Encode()
	}

	t.Run("anonymous is rejected", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/users/trainers")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("student gets their school and grade slice", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/users/trainers", getToken(t, student))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var got []user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling: %v", err)
		}
		ids := make([]string, 0, len(got))
		for _, u := range got {
			ids = append(ids, u.ID)
		}
		assert.ElementsMatch(t, []string{tr1.ID, tr2.ID}, ids)
	})

	t.Run("admin can look up any slice", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, adminPath("Boyoma", 9), getToken(t, admin))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var got []user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling: %v", err)
		}
		if len(got) != 1 || got[0].Username != "boytr3" {
			t.Errorf("got = %+v; want [boytr3]", got)
		}
	})
}

func Test_userApi_queryIsAdminOnly(t *testing.T) {
	student := testutil.CreateUser(t, usrRepo, "Nosy Student", "nosystud", "nosystud@test.cd", "", "Mont Amba", 8, []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, usrRepo, "Query Admin", "qryadmin", "qryadmin@test.cd", "", "", 0, []string{user.RoleAdmin}, true)

	tests := []httpTest{
		{
			name:     "anonymous is rejected",
			path:     "/api/users",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "student is rejected",
			path:     "/api/users",
			token:    getToken(t, student),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "admin can filter the directory",
			path:     "/api/users?search=nosystud",
			token:    getToken(t, admin),
			wantCode: http.StatusOK,
			wantData: marchallList(t, student),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
