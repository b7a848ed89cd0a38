package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/topic"
)

type topicRepository struct {
	db *topicTable
}

var _ topic.Repository = (*topicRepository)(nil)

func NewTopicRepository(db *DB) *topicRepository {
	return &topicRepository{db: db.topic}
}

func (repo *topicRepository) CreateTopic(_ context.Context, t topic.Topic) (topic.Topic, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	repo.db.table[t.ID] = &t
	return t, nil
}

func (repo *topicRepository) GetTopicByID(_ context.Context, id string) (topic.Topic, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.table[id]; ok {
		return *t, nil
	}
	return topic.Topic{}, topic.ErrNotFound
}

func (repo *topicRepository) QueryTopicsByGrade(_ context.Context, grade int, _ ...core.DBOrdering) ([]topic.Topic, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var topics []topic.Topic
	for _, t := range repo.db.table {
		if t.Grade == grade {
			topics = append(topics, *t)
		}
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Title < topics[j].Title })
	return topics, nil
}
