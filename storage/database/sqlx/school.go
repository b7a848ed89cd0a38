package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/school"
)

type schoolRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Address   string    `db:"address"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r schoolRow) toSchool() school.School {
	return school.School(r)
}

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *sqlx.DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CheckNameUniqueness(ctx context.Context, name string, excludedSchools ...school.School) error {
	exclIDs := make([]string, 0, len(excludedSchools))
	for _, sch := range excludedSchools {
		exclIDs = append(exclIDs, sch.ID)
	}

	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM schools WHERE LOWER(name) = LOWER($1) AND NOT (id = ANY($2)))`
	if err := repo.db.GetContext(ctx, &exists, q, name, pq.Array(exclIDs)); err != nil {
		return errors.Wrap(err, "checking school name")
	}
	if exists {
		return school.ErrNameExists
	}
	return nil
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	if sch.ID == "" {
		sch.ID = uuid.NewString()
	}
	q := `
		INSERT INTO schools (id, name, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := repo.db.ExecContext(ctx, q, sch.ID, sch.Name, sch.Address, sch.CreatedAt, sch.UpdatedAt); err != nil {
		return school.School{}, errors.Wrap(err, "creating school")
	}
	return sch, nil
}

func (repo *schoolRepository) getSchoolBy(ctx context.Context, where string, args ...interface{}) (school.School, error) {
	var row schoolRow
	q := `SELECT * FROM schools WHERE ` + where
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return school.School{}, school.ErrNotFound
		}
		return school.School{}, errors.Wrap(err, "getting school")
	}
	return row.toSchool(), nil
}

func (repo *schoolRepository) GetSchoolByID(ctx context.Context, id string) (school.School, error) {
	return repo.getSchoolBy(ctx, `id = $1`, id)
}

func (repo *schoolRepository) GetSchoolByName(ctx context.Context, name string) (school.School, error) {
	return repo.getSchoolBy(ctx, `LOWER(name) = LOWER($1)`, name)
}

func (repo *schoolRepository) QueryAllSchools(ctx context.Context, ordering ...core.DBOrdering) ([]school.School, error) {
	var rows []schoolRow
	q := `SELECT * FROM schools` + orderBy(ordering, core.DBOrdering{Field: "name", Ascending: true})
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]school.School, len(rows))
	for i, row := range rows {
		schools[i] = row.toSchool()
	}
	return schools, nil
}
