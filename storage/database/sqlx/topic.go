package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/topic"
)

type topicRow struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Subject   string    `db:"subject"`
	Grade     int       `db:"grade"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r topicRow) toTopic() topic.Topic {
	return topic.Topic(r)
}

type topicRepository struct {
	db *sqlx.DB
}

var _ topic.Repository = (*topicRepository)(nil)

func NewTopicRepository(db *sqlx.DB) *topicRepository {
	return &topicRepository{db: db}
}

func (repo *topicRepository) CreateTopic(ctx context.Context, t topic.Topic) (topic.Topic, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	q := `
		INSERT INTO topics (id, title, subject, grade, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := repo.db.ExecContext(ctx, q, t.ID, t.Title, t.Subject, t.Grade, t.CreatedAt, t.UpdatedAt); err != nil {
		return topic.Topic{}, errors.Wrap(err, "creating topic")
	}
	return t, nil
}

func (repo *topicRepository) GetTopicByID(ctx context.Context, id string) (topic.Topic, error) {
	var row topicRow
	q := `SELECT * FROM topics WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return topic.Topic{}, topic.ErrNotFound
		}
		return topic.Topic{}, errors.Wrap(err, "getting topic")
	}
	return row.toTopic(), nil
}

func (repo *topicRepository) QueryTopicsByGrade(ctx context.Context, grade int, ordering ...core.DBOrdering) ([]topic.Topic, error) {
	var rows []topicRow
	q := `SELECT * FROM topics WHERE grade = $1` + orderBy(ordering, core.DBOrdering{Field: "title", Ascending: true})
	if err := repo.db.SelectContext(ctx, &rows, q, grade); err != nil {
		return nil, errors.Wrap(err, "querying topics")
	}
	topics := make([]topic.Topic, len(rows))
	for i, row := range rows {
		topics[i] = row.toTopic()
	}
	return topics, nil
}
