package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store reads the catalog from PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const moduleColumns = "id, code, name, description, credits"

func (s *Store) SearchByCode(ctx context.Context, code string) ([]Module, error) {
	return s.queryModules(ctx,
		"SELECT "+moduleColumns+" FROM modules WHERE code = $1", code)
}

// SearchByName matches term case-insensitively against module names and
// codes.
func (s *Store) SearchByName(ctx context.Context, term string) ([]Module, error) {
	pattern := "%" + term + "%"
	return s.queryModules(ctx,
		"SELECT "+moduleColumns+" FROM modules WHERE name ILIKE $1 OR code ILIKE $1 ORDER BY code", pattern)
}

func (s *Store) queryModules(ctx context.Context, sql string, args ...any) ([]Module, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	defer rows.Close()

	modules := []Module{}
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.Code, &m.Name, &m.Description, &m.Credits); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

func (s *Store) Courses(ctx context.Context) ([]Course, error) {
	return s.queryCourses(ctx, "SELECT id, code, name FROM courses ORDER BY code")
}

func (s *Store) CoursesForIteration(ctx context.Context, iterationID int) ([]Course, error) {
	return s.queryCourses(ctx,
		"SELECT id, code, name FROM courses_from_module_iteration($1)", iterationID)
}

func (s *Store) queryCourses(ctx context.Context, sql string, args ...any) ([]Course, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query courses: %w", err)
	}
	defer rows.Close()

	courses := []Course{}
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Code, &c.Name); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (s *Store) Module(ctx context.Context, id int) (Module, bool, error) {
	var m Module
	err := s.pool.QueryRow(ctx,
		"SELECT "+moduleColumns+" FROM modules WHERE id = $1", id,
	).Scan(&m.ID, &m.Code, &m.Name, &m.Description, &m.Credits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Module{}, false, nil
		}
		return Module{}, false, fmt.Errorf("get module %d: %w", id, err)
	}
	return m, true, nil
}

func (s *Store) Iterations(ctx context.Context, moduleID int) ([]Iteration, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, module_id, academic_year_start_year, term
		 FROM module_iterations WHERE module_id = $1
		 ORDER BY academic_year_start_year, id`, moduleID)
	if err != nil {
		return nil, fmt.Errorf("query iterations: %w", err)
	}
	defer rows.Close()

	var iterations []Iteration
	for rows.Next() {
		var it Iteration
		if err := rows.Scan(&it.ID, &it.ModuleID, &it.StartYear, &it.Term); err != nil {
			return nil, err
		}
		iterations = append(iterations, it)
	}
	return iterations, rows.Err()
}

func (s *Store) Lecturers(ctx context.Context, iterationID int) ([]Lecturer, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, name, email FROM lecturers_from_module_iteration($1)", iterationID)
	if err != nil {
		return nil, fmt.Errorf("query lecturers: %w", err)
	}
	defer rows.Close()

	lecturers := []Lecturer{}
	for rows.Next() {
		var l Lecturer
		if err := rows.Scan(&l.ID, &l.Name, &l.Email); err != nil {
			return nil, err
		}
		lecturers = append(lecturers, l)
	}
	return lecturers, rows.Err()
}

func (s *Store) PublishedReviews(ctx context.Context, iterationID int) ([]Review, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, module_iteration_id, rating, body, moderation_status, created_at
		 FROM reviews WHERE module_iteration_id = $1 AND moderation_status = $2
		 ORDER BY created_at, id`, iterationID, ModerationPublished)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	reviews := []Review{}
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.IterationID, &r.Rating, &r.Body, &r.ModerationStatus, &r.CreatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func (s *Store) ModuleInfo(ctx context.Context, moduleID int) (YearsInfo, bool, error) {
	return BuildModuleInfo(ctx, s, moduleID)
}
