// Package catalog reads the module guide's modules, courses, lecturers and
// reviews, and assembles the per-year module info served by the API.
package catalog

import (
	"context"
	"time"
)

// ModerationPublished is the only review status shown to students.
const ModerationPublished = "published"

type Module struct {
	ID          int    `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Credits     int    `json:"credits"`
}

// Iteration is one run of a module in an academic year and term.
type Iteration struct {
	ID        int    `json:"id"`
	ModuleID  int    `json:"module_id"`
	StartYear int    `json:"academic_year_start_year"`
	Term      string `json:"term"`
}

type Lecturer struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Course struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type Review struct {
	ID               int       `json:"id"`
	IterationID      int       `json:"module_iteration_id"`
	Rating           int       `json:"rating"`
	Body             string    `json:"body"`
	ModerationStatus string    `json:"moderation_status"`
	CreatedAt        time.Time `json:"created_at"`
}

// YearInfo describes the iteration that represents a module in one year.
type YearInfo struct {
	Term      string     `json:"term"`
	Lecturers []Lecturer `json:"lecturers"`
	Courses   []Course   `json:"courses"`
	Reviews   []Review   `json:"reviews"`
}

// YearsInfo maps an academic start year to its iteration details.
type YearsInfo map[int]YearInfo

// Catalog is the read API the backend serves from.
type Catalog interface {
	SearchByCode(ctx context.Context, code string) ([]Module, error)
	SearchByName(ctx context.Context, term string) ([]Module, error)
	Courses(ctx context.Context) ([]Course, error)
	// ModuleInfo reports false when no module has the id.
	ModuleInfo(ctx context.Context, moduleID int) (YearsInfo, bool, error)
}

// Source provides the row-level lookups ModuleInfo is built from.
type Source interface {
	Module(ctx context.Context, id int) (Module, bool, error)
	// Iterations returns a module's iterations ordered by start year, then id.
	Iterations(ctx context.Context, moduleID int) ([]Iteration, error)
	Lecturers(ctx context.Context, iterationID int) ([]Lecturer, error)
	CoursesForIteration(ctx context.Context, iterationID int) ([]Course, error)
	PublishedReviews(ctx context.Context, iterationID int) ([]Review, error)
}

// BuildModuleInfo groups a module's iterations by start year. When a year
// has several iterations the first one in Source order represents it.
func BuildModuleInfo(ctx context.Context, src Source, moduleID int) (YearsInfo, bool, error) {
	if _, ok, err := src.Module(ctx, moduleID); err != nil || !ok {
		return nil, ok, err
	}

	iterations, err := src.Iterations(ctx, moduleID)
	if err != nil {
		return nil, false, err
	}

	info := make(YearsInfo)
	for _, it := range iterations {
		if _, seen := info[it.StartYear]; seen {
			continue
		}

		lecturers, err := src.Lecturers(ctx, it.ID)
		if err != nil {
			return nil, false, err
		}
		courses, err := src.CoursesForIteration(ctx, it.ID)
		if err != nil {
			return nil, false, err
		}
		reviews, err := src.PublishedReviews(ctx, it.ID)
		if err != nil {
			return nil, false, err
		}

		info[it.StartYear] = YearInfo{
			Term:      it.Term,
			Lecturers: nonNil(lecturers),
			Courses:   nonNil(courses),
			Reviews:   nonNil(reviews),
		}
	}
	return info, true, nil
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
