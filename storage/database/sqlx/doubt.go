package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/doubt"
)

type sessionRow struct {
	ID            string         `db:"id"`
	StudentID     string         `db:"student_id"`
	TrainerID     sql.NullString `db:"trainer_id"`
	TopicID       sql.NullString `db:"topic_id"`
	SchoolID      string         `db:"school_id"`
	Grade         int            `db:"grade"`
	Type          doubt.Type     `db:"doubt_type"`
	Status        doubt.Status   `db:"status"`
	DoubtText     string         `db:"doubt_text"`
	LastMessageAt time.Time      `db:"last_message_at"`
	AIHelpful     sql.NullBool   `db:"ai_helpful"`
	AIFeedback    string         `db:"ai_feedback"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r sessionRow) toSession() doubt.Session {
	sess := doubt.Session{
		ID:            r.ID,
		StudentID:     r.StudentID,
		TrainerID:     r.TrainerID.String,
		TopicID:       r.TopicID.String,
		SchoolID:      r.SchoolID,
		Grade:         r.Grade,
		Type:          r.Type,
		Status:        r.Status,
		DoubtText:     r.DoubtText,
		LastMessageAt: r.LastMessageAt,
		AIFeedback:    r.AIFeedback,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.AIHelpful.Valid {
		helpful := r.AIHelpful.Bool
		sess.AIHelpful = &helpful
	}
	return sess
}

type messageRow struct {
	ID            string           `db:"id"`
	SessionID     string           `db:"session_id"`
	SenderID      sql.NullString   `db:"sender_id"`
	SenderRole    doubt.SenderRole `db:"sender_role"`
	Text          string           `db:"text"`
	AttachmentURL string           `db:"attachment_url"`
	CreatedAt     time.Time        `db:"created_at"`
}

func (r messageRow) toMessage() doubt.Message {
	return doubt.Message{
		ID:            r.ID,
		SessionID:     r.SessionID,
		SenderID:      r.SenderID.String,
		SenderRole:    r.SenderRole,
		Text:          r.Text,
		AttachmentURL: r.AttachmentURL,
		CreatedAt:     r.CreatedAt,
	}
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type doubtRepository struct {
	db *sqlx.DB
}

var _ doubt.Repository = (*doubtRepository)(nil)

func NewDoubtRepository(db *sqlx.DB) *doubtRepository {
	return &doubtRepository{db: db}
}

func (repo *doubtRepository) CreateSession(ctx context.Context, sess doubt.Session) (doubt.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	q := `
		INSERT INTO doubt_sessions (id, student_id, trainer_id, topic_id, school_id, grade, doubt_type, status,
		                            doubt_text, last_message_at, ai_feedback, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := repo.db.ExecContext(ctx, q,
		sess.ID, sess.StudentID, nullStr(sess.TrainerID), nullStr(sess.TopicID), sess.SchoolID, sess.Grade,
		sess.Type, sess.Status, sess.DoubtText, sess.LastMessageAt, sess.AIFeedback, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return doubt.Session{}, errors.Wrap(err, "creating doubt session")
	}
	return sess, nil
}

func (repo *doubtRepository) GetSessionByID(ctx context.Context, id string) (doubt.Session, error) {
	var row sessionRow
	q := `SELECT * FROM doubt_sessions WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return doubt.Session{}, doubt.ErrNotFound
		}
		return doubt.Session{}, errors.Wrap(err, "getting doubt session")
	}
	return row.toSession(), nil
}

func (repo *doubtRepository) FilterSessions(ctx context.Context, filter doubt.QueryFilter, ordering ...core.DBOrdering) ([]doubt.Session, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = %s", arg(filter.StudentID)))
	}
	if filter.TrainerID != "" {
		where = append(where, fmt.Sprintf("trainer_id = %s", arg(filter.TrainerID)))
	}
	if filter.SchoolID != "" {
		where = append(where, fmt.Sprintf("school_id = %s", arg(filter.SchoolID)))
	}
	if filter.Grade != 0 {
		where = append(where, fmt.Sprintf("grade = %s", arg(filter.Grade)))
	}
	if filter.Type != "" {
		where = append(where, fmt.Sprintf("doubt_type = %s", arg(filter.Type)))
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = %s", arg(filter.Status)))
	}

	q := `SELECT * FROM doubt_sessions`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += orderBy(ordering, core.DBOrdering{Field: "last_message_at"})

	var rows []sessionRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering doubt sessions")
	}
	sessions := make([]doubt.Session, len(rows))
	for i, row := range rows {
		sessions[i] = row.toSession()
	}
	return sessions, nil
}

func (repo *doubtRepository) UpdateSessionStatus(ctx context.Context, id string, from []doubt.Status, to doubt.Status) (doubt.Session, error) {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	var row sessionRow
	q := `
		UPDATE doubt_sessions SET status = $1, updated_at = $2
		WHERE id = $3 AND status = ANY($4)
		RETURNING *`
	err := repo.db.GetContext(ctx, &row, q, to, time.Now().UTC(), id, pq.Array(fromStrs))
	if err == nil {
		return row.toSession(), nil
	}
	if err != sql.ErrNoRows {
		return doubt.Session{}, errors.Wrap(err, "updating doubt session status")
	}

	// no row matched: distinguish a missing session from a lost status race
	if _, err = repo.GetSessionByID(ctx, id); err != nil {
		return doubt.Session{}, err
	}
	return doubt.Session{}, doubt.ErrConflict
}

func (repo *doubtRepository) SetSessionFeedback(ctx context.Context, id string, helpful bool, comment string) (doubt.Session, error) {
	var row sessionRow
	q := `
		UPDATE doubt_sessions SET ai_helpful = $1, ai_feedback = $2, updated_at = $3
		WHERE id = $4
		RETURNING *`
	if err := repo.db.GetContext(ctx, &row, q, helpful, comment, time.Now().UTC(), id); err != nil {
		if err == sql.ErrNoRows {
			return doubt.Session{}, doubt.ErrNotFound
		}
		return doubt.Session{}, errors.Wrap(err, "setting session feedback")
	}
	return row.toSession(), nil
}

func (repo *doubtRepository) TouchSession(ctx context.Context, id string, at time.Time) error {
	q := `UPDATE doubt_sessions SET last_message_at = $1, updated_at = $1 WHERE id = $2`
	res, err := repo.db.ExecContext(ctx, q, at, id)
	if err != nil {
		return errors.Wrap(err, "touching doubt session")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return doubt.ErrNotFound
	}
	return nil
}

func (repo *doubtRepository) CreateMessage(ctx context.Context, msg doubt.Message) (doubt.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	q := `
		INSERT INTO chat_messages (id, session_id, sender_id, sender_role, text, attachment_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := repo.db.ExecContext(ctx, q,
		msg.ID, msg.SessionID, nullStr(msg.SenderID), msg.SenderRole, msg.Text, msg.AttachmentURL, msg.CreatedAt,
	)
	if err != nil {
		return doubt.Message{}, errors.Wrap(err, "creating chat message")
	}
	return msg, nil
}

func (repo *doubtRepository) QuerySessionMessages(ctx context.Context, sessionID string) ([]doubt.Message, error) {
	var rows []messageRow
	q := `SELECT * FROM chat_messages WHERE session_id = $1 ORDER BY created_at ASC`
	if err := repo.db.SelectContext(ctx, &rows, q, sessionID); err != nil {
		return nil, errors.Wrap(err, "querying chat messages")
	}
	msgs := make([]doubt.Message, len(rows))
	for i, row := range rows {
		msgs[i] = row.toMessage()
	}
	return msgs, nil
}
