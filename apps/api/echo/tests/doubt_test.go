package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core/doubt"
	"github.com/trezcool/darasa/core/user"
	testutil "github.com/trezcool/darasa/tests"
)

type doubtFixtures struct {
	student  user.User
	trainer  user.User
	stranger user.User
	admin    user.User
	topicID  string
}

func newDoubtFixtures(t *testing.T, prefix, schoolName string) doubtFixtures {
	t.Helper()
	testutil.CreateSchool(t, schRepo, schoolName)
	top := testutil.CreateTopic(t, topRepo, "Algebra "+prefix, "Math", 8)
	return doubtFixtures{
		student:  testutil.CreateUser(t, usrRepo, "Student", prefix+"stud", prefix+"stud@test.cd", "", schoolName, 8, []string{user.RoleStudent}, true),
		trainer:  testutil.CreateUser(t, usrRepo, "Trainer", prefix+"train", prefix+"train@test.cd", "", schoolName, 8, []string{user.RoleTrainer}, true),
		stranger: testutil.CreateUser(t, usrRepo, "Stranger", prefix+"strange", prefix+"strange@test.cd", "", schoolName, 8, []string{user.RoleStudent}, true),
		admin:    testutil.CreateUser(t, usrRepo, "Admin", prefix+"admin", prefix+"admin@test.cd", "", "", 0, []string{user.RoleAdmin}, true),
		topicID:  top.ID,
	}
}

func waitForSessionStatus(t *testing.T, id string, status doubt.Status) doubt.Session {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		sess, err := doubtRepo.GetSessionByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetSessionByID(): %v", err)
		}
		if sess.Status == status {
			return sess
		}
		if time.Now().After(deadline) {
			t.Fatalf("session %s never reached %s (status=%s)", id, status, sess.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func decodeSession(t *testing.T, data []byte) doubt.Session {
	t.Helper()
	var sess doubt.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		t.Fatalf("unmarshalling Session: %v", err)
	}
	return sess
}

func Test_doubtApi_initiateTrainer(t *testing.T) {
	fix := newDoubtFixtures(t, "dt1", "Lisala High")
	body := marchallObj(t, map[string]string{
		"trainer_id":   fix.trainer.ID,
		"topic_id":     fix.topicID,
		"message_text": "I am stuck on factoring quadratics.",
	})

	t.Run("anonymous is rejected", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/doubts/trainer", body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("only students may ask", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/doubts/trainer", getToken(t, fix.trainer), body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}, rec)
	})

	t.Run("missing refs fail validation", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/doubts/trainer", getToken(t, fix.student), marchallObj(t, map[string]string{"message_text": "help"}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want %v; body = %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})

	t.Run("unknown trainer fails validation", func(t *testing.T) {
		bad := marchallObj(t, map[string]string{
			"trainer_id":   fix.stranger.ID, // not a trainer
			"topic_id":     fix.topicID,
			"message_text": "help",
		})
		req, rec := newAuthRequest(http.MethodPost, "/api/doubts/trainer", getToken(t, fix.student), bad)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want %v; body = %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})

	t.Run("student opens a pending session", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/doubts/trainer", getToken(t, fix.student), body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
		}
		sess := decodeSession(t, rec.Body.Bytes())
		if sess.Status != doubt.StatusPending || sess.Type != doubt.TypeTrainer {
			t.Errorf("session = %+v; want pending trainer session", sess)
		}
		if sess.StudentID != fix.student.ID || sess.TrainerID != fix.trainer.ID {
			t.Errorf("unexpected participants: %+v", sess)
		}

		msgs, err := doubtRepo.QuerySessionMessages(context.Background(), sess.ID)
		if err != nil {
			t.Fatalf("QuerySessionMessages(): %v", err)
		}
		if len(msgs) != 1 || msgs[0].SenderRole != doubt.SenderStudent {
			t.Errorf("initial message not recorded: %+v", msgs)
		}
	})
}

func Test_doubtApi_initiateAI(t *testing.T) {
	fix := newDoubtFixtures(t, "da1", "Bumba High")

	req, rec := newAuthRequest(http.MethodPost, "/api/doubts/ai", getToken(t, fix.student),
		marchallObj(t, map[string]string{"message_text": "Why do seasons change?"}))
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
	}
	sess := decodeSession(t, rec.Body.Bytes())
	if sess.Status != doubt.StatusInProgress || sess.Type != doubt.TypeAI {
		t.Errorf("session = %+v; want in_progress ai session", sess)
	}

	// the assistant answers and resolves the session shortly after
	waitForSessionStatus(t, sess.ID, doubt.StatusResolved)
}

func Test_doubtApi_retrieveAndHistory(t *testing.T) {
	fix := newDoubtFixtures(t, "dr1", "Gemena High")

	sess, err := doubtSvc.InitiateTrainerDoubt(context.Background(), fix.student, doubt.NewTrainerDoubt{
		TrainerID: fix.trainer.ID,
		TopicID:   fix.topicID,
		Text:      "please explain ratios",
	})
	if err != nil {
		t.Fatalf("InitiateTrainerDoubt(): %v", err)
	}
	msgs, err := doubtRepo.QuerySessionMessages(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("QuerySessionMessages(): %v", err)
	}

	tests := []httpTest{
		{
			name:     "participant retrieves the session",
			path:     "/api/doubts/" + sess.ID,
			token:    getToken(t, fix.trainer),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, sess),
		},
		{
			name:     "admin may inspect any session",
			path:     "/api/doubts/" + sess.ID,
			token:    getToken(t, fix.admin),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, sess),
		},
		{
			name:     "stranger is rejected",
			path:     "/api/doubts/" + sess.ID,
			token:    getToken(t, fix.stranger),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "not a participant of this doubt session"}),
		},
		{
			name:     "unknown session",
			path:     "/api/doubts/nope",
			token:    getToken(t, fix.student),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "doubt session not found"}),
		},
		{
			name:     "participant replays the chat",
			path:     "/api/doubts/" + sess.ID + "/messages",
			token:    getToken(t, fix.student),
			wantCode: http.StatusOK,
			wantData: marchallList(t, msgs[0]),
		},
		{
			name:     "stranger cannot replay the chat",
			path:     "/api/doubts/" + sess.ID + "/messages",
			token:    getToken(t, fix.stranger),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "not a participant of this doubt session"}),
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

func Test_doubtApi_appendMessage(t *testing.T) {
	fix := newDoubtFixtures(t, "dm1", "Kindu High")

	sess, err := doubtSvc.InitiateTrainerDoubt(context.Background(), fix.student, doubt.NewTrainerDoubt{
		TrainerID: fix.trainer.ID,
		TopicID:   fix.topicID,
		Text:      "what is a prime number?",
	})
	if err != nil {
		t.Fatalf("InitiateTrainerDoubt(): %v", err)
	}
	path := "/api/doubts/" + sess.ID + "/messages"
	body := marchallObj(t, map[string]string{"message_text": "a number with exactly two divisors"})

	t.Run("trainer reply escalates the session", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, getToken(t, fix.trainer), body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var msg doubt.Message
		if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
			t.Fatalf("unmarshalling Message: %v", err)
		}
		if msg.SenderRole != doubt.SenderTrainer || msg.SenderID != fix.trainer.ID {
			t.Errorf("message = %+v; want trainer message", msg)
		}
		got, _ := doubtRepo.GetSessionByID(context.Background(), sess.ID)
		if got.Status != doubt.StatusInProgress {
			t.Errorf("status = %s; want %s", got.Status, doubt.StatusInProgress)
		}
	})

	t.Run("stranger is rejected", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, getToken(t, fix.stranger), body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "not a participant of this doubt session"}),
		}, rec)
	})

	t.Run("closed session conflicts", func(t *testing.T) {
		if _, err := doubtSvc.Close(context.Background(), fix.student, sess.ID); err != nil {
			t.Fatalf("Close(): %v", err)
		}
		req, rec := newAuthRequest(http.MethodPost, path, getToken(t, fix.student), body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "doubt session no longer accepts this action"}),
		}, rec)
	})
}

func Test_doubtApi_query(t *testing.T) {
	fix := newDoubtFixtures(t, "dq1", "Isiro High")

	mine, err := doubtSvc.InitiateTrainerDoubt(context.Background(), fix.student, doubt.NewTrainerDoubt{
		TrainerID: fix.trainer.ID,
		TopicID:   fix.topicID,
		Text:      "mine",
	})
	if err != nil {
		t.Fatalf("InitiateTrainerDoubt(): %v", err)
	}
	if _, err = doubtSvc.InitiateAIDoubt(context.Background(), fix.stranger, doubt.NewAIDoubt{Text: "theirs"}); err != nil {
		t.Fatalf("InitiateAIDoubt(): %v", err)
	}

	listIDs := func(t *testing.T, token, path string) []string {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, path, token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var sessions []doubt.Session
		if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
			t.Fatalf("unmarshalling: %v", err)
		}
		ids := make([]string, 0, len(sessions))
		for _, s := range sessions {
			ids = append(ids, s.ID)
		}
		return ids
	}

	t.Run("student sees own sessions only", func(t *testing.T) {
		assert.ElementsMatch(t, []string{mine.ID}, listIDs(t, getToken(t, fix.student), "/api/doubts"))
	})

	t.Run("trainer sees assigned sessions only", func(t *testing.T) {
		assert.ElementsMatch(t, []string{mine.ID}, listIDs(t, getToken(t, fix.trainer), "/api/doubts"))
	})

	t.Run("trainer filter is pinned for trainers", func(t *testing.T) {
		// a trainer cannot list someone else's queue
		ids := listIDs(t, getToken(t, fix.trainer), "/api/doubts?student="+fix.stranger.ID)
		assert.Empty(t, ids)
	})
}

func Test_doubtApi_closeAndFeedback(t *testing.T) {
	fix := newDoubtFixtures(t, "df1", "Uvira High")
	helpful := true

	req, rec := newAuthRequest(http.MethodPost, "/api/doubts/ai", getToken(t, fix.student),
		marchallObj(t, map[string]string{"message_text": "what is osmosis?"}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
	}
	sess := decodeSession(t, rec.Body.Bytes())
	waitForSessionStatus(t, sess.ID, doubt.StatusResolved)

	t.Run("student rates the answer", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/doubts/"+sess.ID+"/feedback", getToken(t, fix.student),
			marchallObj(t, doubt.AIFeedback{Helpful: &helpful, Comment: "spot on"}))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
		}
		got := decodeSession(t, rec.Body.Bytes())
		if got.AIHelpful == nil || !*got.AIHelpful || got.AIFeedback != "spot on" {
			t.Errorf("feedback not recorded: %+v", got)
		}
	})

	t.Run("feedback requires a verdict", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/doubts/"+sess.ID+"/feedback", getToken(t, fix.student),
			marchallObj(t, map[string]string{"comment": "hmm"}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want %v; body = %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})

	t.Run("stranger cannot rate", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/doubts/"+sess.ID+"/feedback", getToken(t, fix.stranger),
			marchallObj(t, doubt.AIFeedback{Helpful: &helpful}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "not a participant of this doubt session"}),
		}, rec)
	})

	t.Run("student closes the session", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/doubts/"+sess.ID+"/close", getToken(t, fix.student))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
		}
		got := decodeSession(t, rec.Body.Bytes())
		if got.Status != doubt.StatusClosed {
			t.Errorf("status = %s; want %s", got.Status, doubt.StatusClosed)
		}
	})

	t.Run("closing twice conflicts", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/doubts/"+sess.ID+"/close", getToken(t, fix.student))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "doubt session no longer accepts this action"}),
		}, rec)
	})
}
