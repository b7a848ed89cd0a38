package school

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound   = errors.New("school not found")
	ErrNameExists = errors.New("a school with this name already exists")
)

type (
	Repository interface {
		CheckNameUniqueness(ctx context.Context, name string, excludedSchools ...School) error
		CreateSchool(ctx context.Context, sch School) (School, error)
		GetSchoolByID(ctx context.Context, id string) (School, error)
		// GetSchoolByName does a case-insensitive match on School.Name.
		GetSchoolByName(ctx context.Context, name string) (School, error)
		QueryAllSchools(ctx context.Context, ordering ...core.DBOrdering) ([]School, error)
	}

	ServiceInterface interface {
		CheckUniqueness(name string, exclSchools ...School) error
		Create(ctx context.Context, ns NewSchool) (School, error)
		GetByID(ctx context.Context, id string) (School, error)
		GetByName(ctx context.Context, name string) (School, error)
		QueryAll(ctx context.Context) ([]School, error)
	}

	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CheckUniqueness(name string, exclSchools ...School) error {
	if err := svc.repo.CheckNameUniqueness(context.Background(), name, exclSchools...); err != nil {
		if errors.Cause(err) == ErrNameExists {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, ns NewSchool) (School, error) {
	now := time.Now().UTC()
	sch := School{
		Name:      ns.Name,
		Address:   ns.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateSchool(ctx, sch)
}

func (svc *Service) GetByID(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchoolByID(ctx, id)
}

// GetByName resolves a school name (as stored on user profiles) to its record.
func (svc *Service) GetByName(ctx context.Context, name string) (School, error) {
	return svc.repo.GetSchoolByName(ctx, core.CleanString(name))
}

func (svc *Service) QueryAll(ctx context.Context) ([]School, error) {
	return svc.repo.QueryAllSchools(ctx, core.DBOrdering{Field: "name", Ascending: true})
}
