package gormrepos

import (
	"time"

	"github.com/trezcool/classroom/core/chat"
	"github.com/trezcool/classroom/core/course"
	"github.com/trezcool/classroom/core/user"
)

type profileModel struct {
	ID     string `gorm:"primaryKey"`
	Name   string
	Email  string
	Role   string
	Avatar string
}

func (profileModel) TableName() string { return "profiles" }

func (m profileModel) toUser() user.User {
	usr := user.User{ID: m.ID, Name: m.Name, Email: m.Email, Avatar: m.Avatar}
	if r, err := user.ParseRole(m.Role); err == nil {
		usr.Role = r
	}
	return usr
}

type courseModel struct {
	ID             string `gorm:"primaryKey"`
	Title          string `gorm:"not null"`
	Description    string
	Image          string
	InstructorID   string `gorm:"index;not null"`
	InstructorName string
	Roster         []string `gorm:"serializer:json"`
	Schedule       string
	CreatedAt      time.Time `gorm:"index"`
}

func (courseModel) TableName() string { return "courses" }

func newCourseModel(c course.Course) courseModel {
	return courseModel{
		ID:             c.ID,
		Title:          c.Title,
		Description:    c.Description,
		Image:          c.Image,
		InstructorID:   c.InstructorID,
		InstructorName: c.InstructorName,
		Roster:         append([]string{}, c.Roster...),
		Schedule:       c.Schedule,
		CreatedAt:      c.CreatedAt,
	}
}

func (m courseModel) toCourse() course.Course {
	return course.Course{
		ID:             m.ID,
		Title:          m.Title,
		Description:    m.Description,
		Image:          m.Image,
		InstructorID:   m.InstructorID,
		InstructorName: m.InstructorName,
		Roster:         m.Roster,
		Schedule:       m.Schedule,
		CreatedAt:      m.CreatedAt.UTC(),
	}
}

type taskModel struct {
	ID          string `gorm:"primaryKey"`
	CourseID    string `gorm:"index;not null"`
	Title       string `gorm:"not null"`
	Description string
	DueAt       time.Time
	Status      string `gorm:"default:pending"`
	Score       *float64
}

func (taskModel) TableName() string { return "tasks" }

func newTaskModel(t course.Task) taskModel {
	return taskModel{
		ID:          t.ID,
		CourseID:    t.CourseID,
		Title:       t.Title,
		Description: t.Description,
		DueAt:       t.DueAt,
		Status:      string(t.Status),
		Score:       t.Score,
	}
}

func (m taskModel) toTask() course.Task {
	return course.Task{
		ID:          m.ID,
		CourseID:    m.CourseID,
		Title:       m.Title,
		Description: m.Description,
		DueAt:       m.DueAt.UTC(),
		Status:      course.TaskStatus(m.Status),
		Score:       m.Score,
	}
}

type messageModel struct {
	ID        string    `gorm:"primaryKey"`
	CourseID  string    `gorm:"index:idx_course_messages_course_created,priority:1;not null"`
	SenderID  string    `gorm:"not null"`
	Message   string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"index:idx_course_messages_course_created,priority:2"`
}

func (messageModel) TableName() string { return "course_messages" }

func (m messageModel) toMessage() chat.Message {
	return chat.Message{
		ID:        m.ID,
		CourseID:  m.CourseID,
		SenderID:  m.SenderID,
		Body:      m.Message,
		CreatedAt: m.CreatedAt.UTC(),
	}
}
