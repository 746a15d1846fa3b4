package course

import (
	"errors"
	"time"

	"github.com/trezcool/classroom/core"
)

var errDueAtRequired = errors.New("due date is required")

type TaskStatus string

// Task statuses. Status is set explicitly; it never follows the due date on its own.
const (
	StatusPending   TaskStatus = "pending"
	StatusCompleted TaskStatus = "completed"
	StatusOverdue   TaskStatus = "overdue"
)

var AllTaskStatuses = []TaskStatus{StatusPending, StatusCompleted, StatusOverdue}

func (s TaskStatus) Valid() bool {
	for _, st := range AllTaskStatuses {
		if s == st {
			return true
		}
	}
	return false
}

type Course struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Image          string    `json:"image"`
	InstructorID   string    `json:"instructor_id"`
	InstructorName string    `json:"instructor_name"`
	Roster         []string  `json:"roster"` // learner IDs
	CreatedAt      time.Time `json:"created_at"` // UTC
	Schedule       string    `json:"schedule,omitempty"`
}

// HasLearner reports whether learner `id` is enrolled in the course.
func (c Course) HasLearner(id string) bool {
	for _, lid := range c.Roster {
		if lid == id {
			return true
		}
	}
	return false
}

func (c Course) clone() Course {
	if c.Roster != nil {
		c.Roster = append([]string(nil), c.Roster...)
	}
	return c
}

type Task struct {
	ID          string     `json:"id"`
	CourseID    string     `json:"course_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueAt       time.Time  `json:"due_at"` // UTC
	Status      TaskStatus `json:"status"`
	Score       *float64   `json:"score,omitempty"`
}

func (t Task) clone() Task {
	if t.Score != nil {
		score := *t.Score
		t.Score = &score
	}
	return t
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title          string   `json:"title" validate:"required,notblank"`
	Description    string   `json:"description"`
	Image          string   `json:"image"`
	InstructorID   string   `json:"instructor_id" validate:"required,notblank"`
	InstructorName string   `json:"instructor_name"`
	Roster         []string `json:"roster"`
	Schedule       string   `json:"schedule"`
}

func (nc *NewCourse) Validate() error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Image = core.CleanString(nc.Image)
	nc.InstructorID = core.CleanString(nc.InstructorID)
	nc.InstructorName = core.CleanString(nc.InstructorName)
	nc.Schedule = core.CleanString(nc.Schedule)
	nc.Roster = core.Dedupe(nc.Roster)
	return core.ValidateStruct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
// nil fields are left unchanged.
type UpdateCourse struct {
	Title          *string  `json:"title" validate:"omitempty,notblank"`
	Description    *string  `json:"description"`
	Image          *string  `json:"image"`
	InstructorID   *string  `json:"instructor_id" validate:"omitempty,notblank"`
	InstructorName *string  `json:"instructor_name"`
	Roster         []string `json:"roster"`
	Schedule       *string  `json:"schedule"`
}

func (uc *UpdateCourse) Validate() error {
	cleanPtr(uc.Title)
	cleanPtr(uc.Description)
	cleanPtr(uc.Image)
	cleanPtr(uc.InstructorID)
	cleanPtr(uc.InstructorName)
	cleanPtr(uc.Schedule)
	if uc.Roster != nil {
		uc.Roster = core.Dedupe(uc.Roster)
	}
	return core.ValidateStruct(uc)
}

// apply shallow-merges the set fields into c.
func (uc UpdateCourse) apply(c Course) Course {
	if uc.Title != nil {
		c.Title = *uc.Title
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	if uc.Image != nil {
		c.Image = *uc.Image
	}
	if uc.InstructorID != nil {
		c.InstructorID = *uc.InstructorID
	}
	if uc.InstructorName != nil {
		c.InstructorName = *uc.InstructorName
	}
	if uc.Roster != nil {
		c.Roster = append([]string(nil), uc.Roster...)
	}
	if uc.Schedule != nil {
		c.Schedule = *uc.Schedule
	}
	return c
}

// NewTask contains information needed to create a new Task.
type NewTask struct {
	CourseID    string     `json:"course_id" validate:"required,notblank"`
	Title       string     `json:"title" validate:"required,notblank"`
	Description string     `json:"description"`
	DueAt       time.Time  `json:"due_at"`
	Status      TaskStatus `json:"status" validate:"omitempty,taskstatus"`
	Score       *float64   `json:"score" validate:"omitempty,gte=0"`
}

func (nt *NewTask) Validate() error {
	nt.CourseID = core.CleanString(nt.CourseID)
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	if nt.Status == "" {
		nt.Status = StatusPending
	}
	if err := core.ValidateStruct(nt); err != nil {
		return err
	}
	if nt.DueAt.IsZero() {
		return core.NewValidationError(errDueAtRequired, core.FieldError{Field: "due_at", Error: errDueAtRequired.Error()})
	}
	nt.DueAt = nt.DueAt.UTC()
	return nil
}

// UpdateTask defines what information may be provided to modify an existing Task.
// nil fields are left unchanged.
type UpdateTask struct {
	CourseID    *string     `json:"course_id" validate:"omitempty,notblank"`
	Title       *string     `json:"title" validate:"omitempty,notblank"`
	Description *string     `json:"description"`
	DueAt       *time.Time  `json:"due_at"`
	Status      *TaskStatus `json:"status" validate:"omitempty,taskstatus"`
	Score       *float64    `json:"score" validate:"omitempty,gte=0"`
}

func (ut *UpdateTask) Validate() error {
	cleanPtr(ut.CourseID)
	cleanPtr(ut.Title)
	cleanPtr(ut.Description)
	return core.ValidateStruct(ut)
}

func (ut UpdateTask) apply(t Task) Task {
	if ut.CourseID != nil {
		t.CourseID = *ut.CourseID
	}
	if ut.Title != nil {
		t.Title = *ut.Title
	}
	if ut.Description != nil {
		t.Description = *ut.Description
	}
	if ut.DueAt != nil {
		t.DueAt = ut.DueAt.UTC()
	}
	if ut.Status != nil {
		t.Status = *ut.Status
	}
	if ut.Score != nil {
		score := *ut.Score
		t.Score = &score
	}
	return t
}

func cleanPtr(s *string) {
	if s != nil {
		*s = core.CleanString(*s)
	}
}
