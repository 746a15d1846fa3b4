package course

import (
	"context"
	"errors"
)

var (
	// errors
	ErrNotFound = errors.New("record not found")
)

// Repository is the persistence adapter of the remote data service for courses and tasks.
// Implementations return ErrNotFound for unknown IDs.
type Repository interface {
	QueryAllCourses(ctx context.Context) ([]Course, error)
	QueryAllTasks(ctx context.Context) ([]Task, error)
	CreateCourse(ctx context.Context, c Course) (Course, error)
	UpdateCourse(ctx context.Context, c Course) (Course, error)
	// DeleteCourse deletes the course and its tasks.
	DeleteCourse(ctx context.Context, id string) error
	CreateTask(ctx context.Context, t Task) (Task, error)
	UpdateTask(ctx context.Context, t Task) (Task, error)
	DeleteTask(ctx context.Context, id string) error
}
