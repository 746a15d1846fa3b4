package dummydb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core/course"
)

type courseRepository struct {
	db *courseTable
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.course}
}

func (repo *courseRepository) QueryAllCourses(_ context.Context) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courseOrder))
	for _, id := range repo.db.courseOrder {
		courses = append(courses, copyCourse(*repo.db.courses[id]))
	}
	return courses, nil
}

func (repo *courseRepository) QueryAllTasks(_ context.Context) ([]course.Task, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	tasks := make([]course.Task, 0, len(repo.db.taskOrder))
	for _, id := range repo.db.taskOrder {
		tasks = append(tasks, copyTask(*repo.db.tasks[id]))
	}
	return tasks, nil
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[c.ID]; ok {
		return course.Course{}, errors.Errorf("duplicate course id %q", c.ID)
	}
	c = copyCourse(c)
	repo.db.courses[c.ID] = &c
	repo.db.courseOrder = append(repo.db.courseOrder, c.ID)
	return copyCourse(c), nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[c.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	c = copyCourse(c)
	repo.db.courses[c.ID] = &c
	return copyCourse(c), nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.courses, id)
	repo.db.courseOrder = without(repo.db.courseOrder, id)
	for tid, t := range repo.db.tasks {
		if t.CourseID == id {
			delete(repo.db.tasks, tid)
			repo.db.taskOrder = without(repo.db.taskOrder, tid)
		}
	}
	return nil
}

func (repo *courseRepository) CreateTask(_ context.Context, t course.Task) (course.Task, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[t.CourseID]; !ok {
		return course.Task{}, errors.Errorf("foreign key violation: course %q", t.CourseID)
	}
	if _, ok := repo.db.tasks[t.ID]; ok {
		return course.Task{}, errors.Errorf("duplicate task id %q", t.ID)
	}
	t = copyTask(t)
	repo.db.tasks[t.ID] = &t
	repo.db.taskOrder = append(repo.db.taskOrder, t.ID)
	return copyTask(t), nil
}

func (repo *courseRepository) UpdateTask(_ context.Context, t course.Task) (course.Task, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.tasks[t.ID]; !ok {
		return course.Task{}, course.ErrNotFound
	}
	if _, ok := repo.db.courses[t.CourseID]; !ok {
		return course.Task{}, errors.Errorf("foreign key violation: course %q", t.CourseID)
	}
	t = copyTask(t)
	repo.db.tasks[t.ID] = &t
	return copyTask(t), nil
}

func (repo *courseRepository) DeleteTask(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.tasks[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.tasks, id)
	repo.db.taskOrder = without(repo.db.taskOrder, id)
	return nil
}

func copyCourse(c course.Course) course.Course {
	if c.Roster != nil {
		c.Roster = append([]string(nil), c.Roster...)
	}
	return c
}

func copyTask(t course.Task) course.Task {
	if t.Score != nil {
		score := *t.Score
		t.Score = &score
	}
	return t
}

func without(ids []string, id string) []string {
	res := make([]string, 0, len(ids))
	for _, it := range ids {
		if it != id {
			res = append(res, it)
		}
	}
	return res
}
