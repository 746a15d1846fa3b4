package dummydb

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core/course"
	"github.com/trezcool/classroom/core/user"
)

// Demo users
var (
	SeedAdmin      = user.User{ID: "1", Name: "Ada Admin", Email: "admin@example.com", Role: user.Admin}
	SeedInstructor = user.User{ID: "2", Name: "John Instructor", Email: "instructor@example.com", Role: user.Instructor}
	SeedLearner    = user.User{ID: "3", Name: "Lea Learner", Email: "learner@example.com", Role: user.Learner}
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Seed fills db with demo profiles, courses and tasks.
func Seed(ctx context.Context, db *DB) error {
	usrRepo := NewUserRepository(db)
	for _, usr := range []user.User{SeedAdmin, SeedInstructor, SeedLearner} {
		if _, err := usrRepo.CreateUser(ctx, usr); err != nil {
			return errors.Wrap(err, "seeding users")
		}
	}

	score := 85.0
	courses := []course.Course{
		{
			ID:             "1",
			Title:          "Introduction to Programming",
			Description:    "Programming basics for beginners",
			Image:          "https://images.unsplash.com/photo-1484417894907-623942c8ee29",
			InstructorID:   SeedInstructor.ID,
			InstructorName: SeedInstructor.Name,
			Roster:         []string{SeedLearner.ID},
			CreatedAt:      date(2023, time.January, 15),
			Schedule:       "Mondays and Wednesdays, 10:00 to 12:00",
		},
		{
			ID:             "2",
			Title:          "Advanced Mathematics",
			Description:    "Calculus and linear algebra",
			Image:          "https://images.unsplash.com/photo-1509228627152-72ae9ae6848d",
			InstructorID:   SeedInstructor.ID,
			InstructorName: SeedInstructor.Name,
			Roster:         []string{SeedLearner.ID},
			CreatedAt:      date(2023, time.February, 10),
			Schedule:       "Tuesdays and Thursdays, 14:00 to 16:00",
		},
	}
	tasks := []course.Task{
		{ID: "1", CourseID: "1", Title: "Homework: Basic Algorithms", Description: "Implement 5 basic algorithms in the language of your choice", DueAt: date(2023, time.May, 20), Status: course.StatusPending},
		{ID: "2", CourseID: "1", Title: "Quiz: Programming Fundamentals", Description: "Assessment of programming fundamentals", DueAt: date(2023, time.May, 15), Status: course.StatusCompleted, Score: &score},
		{ID: "3", CourseID: "2", Title: "Exam: Differential Calculus", Description: "Limits, derivatives and their applications", DueAt: date(2023, time.May, 25), Status: course.StatusPending},
	}

	repo := NewCourseRepository(db)
	for _, c := range courses {
		if _, err := repo.CreateCourse(ctx, c); err != nil {
			return errors.Wrap(err, "seeding courses")
		}
	}
	for _, t := range tasks {
		if _, err := repo.CreateTask(ctx, t); err != nil {
			return errors.Wrap(err, "seeding tasks")
		}
	}
	return nil
}
