package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (Course, error)
	FindByIDs(ctx context.Context, ids []string) ([]Course, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const selectCourse = `SELECT id, title, category, type, price, published FROM courses`

func (r *repository) GetByID(ctx context.Context, id string) (Course, error) {
	var c Course
	err := r.db.QueryRowContext(ctx, selectCourse+` WHERE id = $1`, id).
		Scan(&c.ID, &c.Title, &c.Category, &c.Type, &c.Price, &c.Published)
	if errors.Is(err, sql.ErrNoRows) {
		return Course{}, ErrCourseNotFound
	}
	if err != nil {
		return Course{}, fmt.Errorf("get course: %w", err)
	}
	return c, nil
}

// FindByIDs returns the courses that exist; missing ids are simply absent.
func (r *repository) FindByIDs(ctx context.Context, ids []string) ([]Course, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, selectCourse+` WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("find courses: %w", err)
	}
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Category, &c.Type, &c.Price, &c.Published); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}
