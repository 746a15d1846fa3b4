package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core/course"
)

const (
	courseColumns = `id, title, description, image, instructor_id, instructor_name, roster, schedule, created_at`
	taskColumns   = `id, course_id, title, description, due_at, status, score`
)

type courseRow struct {
	ID             string         `db:"id"`
	Title          string         `db:"title"`
	Description    string         `db:"description"`
	Image          string         `db:"image"`
	InstructorID   string         `db:"instructor_id"`
	InstructorName string         `db:"instructor_name"`
	Roster         pq.StringArray `db:"roster"`
	Schedule       string         `db:"schedule"`
	CreatedAt      time.Time      `db:"created_at"`
}

func newCourseRow(c course.Course) courseRow {
	roster := pq.StringArray(c.Roster)
	if roster == nil {
		roster = pq.StringArray{}
	}
	return courseRow{
		ID:             c.ID,
		Title:          c.Title,
		Description:    c.Description,
		Image:          c.Image,
		InstructorID:   c.InstructorID,
		InstructorName: c.InstructorName,
		Roster:         roster,
		Schedule:       c.Schedule,
		CreatedAt:      c.CreatedAt,
	}
}

func (row courseRow) toCourse() course.Course {
	return course.Course{
		ID:             row.ID,
		Title:          row.Title,
		Description:    row.Description,
		Image:          row.Image,
		InstructorID:   row.InstructorID,
		InstructorName: row.InstructorName,
		Roster:         []string(row.Roster),
		Schedule:       row.Schedule,
		CreatedAt:      row.CreatedAt.UTC(),
	}
}

type taskRow struct {
	ID          string          `db:"id"`
	CourseID    string          `db:"course_id"`
	Title       string          `db:"title"`
	Description string          `db:"description"`
	DueAt       time.Time       `db:"due_at"`
	Status      string          `db:"status"`
	Score       sql.NullFloat64 `db:"score"`
}

func newTaskRow(t course.Task) taskRow {
	row := taskRow{
		ID:          t.ID,
		CourseID:    t.CourseID,
		Title:       t.Title,
		Description: t.Description,
		DueAt:       t.DueAt,
		Status:      string(t.Status),
	}
	if t.Score != nil {
		row.Score = sql.NullFloat64{Float64: *t.Score, Valid: true}
	}
	return row
}

func (row taskRow) toTask() course.Task {
	t := course.Task{
		ID:          row.ID,
		CourseID:    row.CourseID,
		Title:       row.Title,
		Description: row.Description,
		DueAt:       row.DueAt.UTC(),
		Status:      course.TaskStatus(row.Status),
	}
	if row.Score.Valid {
		score := row.Score.Float64
		t.Score = &score
	}
	return t
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) QueryAllCourses(ctx context.Context) ([]course.Course, error) {
	rows := make([]courseRow, 0)
	if err := repo.db.SelectContext(ctx, &rows, `SELECT `+courseColumns+` FROM courses ORDER BY created_at, id`); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	return courses, nil
}

func (repo *courseRepository) QueryAllTasks(ctx context.Context) ([]course.Task, error) {
	rows := make([]taskRow, 0)
	if err := repo.db.SelectContext(ctx, &rows, `SELECT `+taskColumns+` FROM tasks ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "selecting tasks")
	}
	tasks := make([]course.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toTask())
	}
	return tasks, nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	q := `INSERT INTO courses (` + courseColumns + `)
		VALUES (:id, :title, :description, :image, :instructor_id, :instructor_name, :roster, :schedule, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newCourseRow(c)); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	q := `UPDATE courses SET title = :title, description = :description, image = :image,
		instructor_id = :instructor_id, instructor_name = :instructor_name, roster = :roster, schedule = :schedule
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newCourseRow(c))
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if err := expectOne(res); err != nil {
		return course.Course{}, err
	}
	return c, nil
}

// DeleteCourse relies on ON DELETE CASCADE to delete the tasks and messages of the course.
func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return expectOne(res)
}

func (repo *courseRepository) CreateTask(ctx context.Context, t course.Task) (course.Task, error) {
	q := `INSERT INTO tasks (` + taskColumns + `)
		VALUES (:id, :course_id, :title, :description, :due_at, :status, :score)`
	if _, err := repo.db.NamedExecContext(ctx, q, newTaskRow(t)); err != nil {
		return course.Task{}, errors.Wrap(err, "inserting task")
	}
	return t, nil
}

func (repo *courseRepository) UpdateTask(ctx context.Context, t course.Task) (course.Task, error) {
	q := `UPDATE tasks SET course_id = :course_id, title = :title, description = :description,
		due_at = :due_at, status = :status, score = :score
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newTaskRow(t))
	if err != nil {
		return course.Task{}, errors.Wrap(err, "updating task")
	}
	if err := expectOne(res); err != nil {
		return course.Task{}, err
	}
	return t, nil
}

func (repo *courseRepository) DeleteTask(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if n == 0 {
		return course.ErrNotFound
	}
	return nil
}
