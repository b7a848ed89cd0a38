package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/doubt"
)

type doubtRepository struct {
	db *doubtTable
}

var _ doubt.Repository = (*doubtRepository)(nil)

func NewDoubtRepository(db *DB) *doubtRepository {
	return &doubtRepository{db: db.doubt}
}

func (repo *doubtRepository) CreateSession(_ context.Context, sess doubt.Session) (doubt.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	repo.db.sessions[sess.ID] = &sess
	return sess, nil
}

func (repo *doubtRepository) GetSessionByID(_ context.Context, id string) (doubt.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sess, ok := repo.db.sessions[id]; ok {
		return *sess, nil
	}
	return doubt.Session{}, doubt.ErrNotFound
}

func (repo *doubtRepository) FilterSessions(_ context.Context, filter doubt.QueryFilter, ordering ...core.DBOrdering) ([]doubt.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var sessions []doubt.Session
	for _, sess := range repo.db.sessions {
		if matchesSessionFilter(*sess, filter) {
			sessions = append(sessions, *sess)
		}
	}
	// last_message_at DESC unless told otherwise
	asc := len(ordering) > 0 && ordering[0].Ascending
	sort.Slice(sessions, func(i, j int) bool {
		if asc {
			return sessions[i].LastMessageAt.Before(sessions[j].LastMessageAt)
		}
		return sessions[i].LastMessageAt.After(sessions[j].LastMessageAt)
	})
	return sessions, nil
}

func matchesSessionFilter(sess doubt.Session, filter doubt.QueryFilter) bool {
	if filter.StudentID != "" && sess.StudentID != filter.StudentID {
		return false
	}
	if filter.TrainerID != "" && sess.TrainerID != filter.TrainerID {
		return false
	}
	if filter.SchoolID != "" && sess.SchoolID != filter.SchoolID {
		return false
	}
	if filter.Grade != 0 && sess.Grade != filter.Grade {
		return false
	}
	if filter.Type != "" && sess.Type != filter.Type {
		return false
	}
	if filter.Status != "" && sess.Status != filter.Status {
		return false
	}
	return true
}

func (repo *doubtRepository) UpdateSessionStatus(_ context.Context, id string, from []doubt.Status, to doubt.Status) (doubt.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sess, ok := repo.db.sessions[id]
	if !ok {
		return doubt.Session{}, doubt.ErrNotFound
	}
	var eligible bool
	for _, s := range from {
		if sess.Status == s {
			eligible = true
			break
		}
	}
	if !eligible {
		return doubt.Session{}, doubt.ErrConflict
	}
	sess.Status = to
	sess.UpdatedAt = time.Now().UTC()
	return *sess, nil
}

func (repo *doubtRepository) SetSessionFeedback(_ context.Context, id string, helpful bool, comment string) (doubt.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sess, ok := repo.db.sessions[id]
	if !ok {
		return doubt.Session{}, doubt.ErrNotFound
	}
	sess.AIHelpful = &helpful
	sess.AIFeedback = comment
	sess.UpdatedAt = time.Now().UTC()
	return *sess, nil
}

func (repo *doubtRepository) TouchSession(_ context.Context, id string, at time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sess, ok := repo.db.sessions[id]
	if !ok {
		return doubt.ErrNotFound
	}
	sess.LastMessageAt = at
	sess.UpdatedAt = at
	return nil
}

func (repo *doubtRepository) CreateMessage(_ context.Context, msg doubt.Message) (doubt.Message, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.sessions[msg.SessionID]; !ok {
		return doubt.Message{}, doubt.ErrNotFound
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	repo.db.messages[msg.SessionID] = append(repo.db.messages[msg.SessionID], msg)
	return msg, nil
}

func (repo *doubtRepository) QuerySessionMessages(_ context.Context, sessionID string) ([]doubt.Message, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	msgs := make([]doubt.Message, len(repo.db.messages[sessionID]))
	copy(msgs, repo.db.messages[sessionID])
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}
