package topic

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var ErrNotFound = errors.New("topic not found")

type (
	Repository interface {
		CreateTopic(ctx context.Context, t Topic) (Topic, error)
		GetTopicByID(ctx context.Context, id string) (Topic, error)
		QueryTopicsByGrade(ctx context.Context, grade int, ordering ...core.DBOrdering) ([]Topic, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, nt NewTopic) (Topic, error)
		GetByID(ctx context.Context, id string) (Topic, error)
		GetForGrade(ctx context.Context, id string, grade int) (Topic, error)
		QueryByGrade(ctx context.Context, grade int) ([]Topic, error)
	}

	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, nt NewTopic) (Topic, error) {
	now := time.Now().UTC()
	t := Topic{
		Title:     nt.Title,
		Subject:   nt.Subject,
		Grade:     nt.Grade,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateTopic(ctx, t)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Topic, error) {
	return svc.repo.GetTopicByID(ctx, id)
}

// GetForGrade confirms the topic exists within the given grade's curriculum.
func (svc *Service) GetForGrade(ctx context.Context, id string, grade int) (Topic, error) {
	t, err := svc.repo.GetTopicByID(ctx, id)
	if err != nil {
		return Topic{}, err
	}
	if t.Grade != grade {
		return Topic{}, ErrNotFound
	}
	return t, nil
}

func (svc *Service) QueryByGrade(ctx context.Context, grade int) ([]Topic, error) {
	return svc.repo.QueryTopicsByGrade(ctx, grade, core.DBOrdering{Field: "title", Ascending: true})
}
