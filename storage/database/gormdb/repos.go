package gormrepos

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/trezcool/classroom/core/chat"
	"github.com/trezcool/classroom/core/course"
	"github.com/trezcool/classroom/core/user"
)

var NowFunc = time.Now // mockable

// Users

type userRepository struct {
	db *gorm.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *gorm.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	m := profileModel{ID: usr.ID, Name: usr.Name, Email: usr.Email, Avatar: usr.Avatar, Role: user.Learner.String()}
	if usr.Role != nil {
		m.Role = usr.Role.String()
	}
	if err := repo.db.WithContext(ctx).Create(&m).Error; err != nil {
		return user.User{}, errors.Wrap(err, "create profile")
	}
	return m.toUser(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var m profileModel
	err := repo.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, errors.Wrap(err, "get profile")
	}
	return m.toUser(), nil
}

// Courses & tasks

type courseRepository struct {
	db *gorm.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *gorm.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) QueryAllCourses(ctx context.Context) ([]course.Course, error) {
	var models []courseModel
	if err := repo.db.WithContext(ctx).Order("created_at, id").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list courses")
	}
	courses := make([]course.Course, 0, len(models))
	for _, m := range models {
		courses = append(courses, m.toCourse())
	}
	return courses, nil
}

func (repo *courseRepository) QueryAllTasks(ctx context.Context) ([]course.Task, error) {
	var models []taskModel
	if err := repo.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list tasks")
	}
	tasks := make([]course.Task, 0, len(models))
	for _, m := range models {
		tasks = append(tasks, m.toTask())
	}
	return tasks, nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	m := newCourseModel(c)
	if err := repo.db.WithContext(ctx).Create(&m).Error; err != nil {
		return course.Course{}, errors.Wrap(err, "create course")
	}
	return m.toCourse(), nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	m := newCourseModel(c)
	res := repo.db.WithContext(ctx).Model(&courseModel{}).Where("id = ?", c.ID).
		Select("title", "description", "image", "instructor_id", "instructor_name", "roster", "schedule").
		Updates(&m)
	if res.Error != nil {
		return course.Course{}, errors.Wrap(res.Error, "update course")
	}
	if res.RowsAffected == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return c, nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&courseModel{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete course")
		}
		if res.RowsAffected == 0 {
			return course.ErrNotFound
		}
		if err := tx.Where("course_id = ?", id).Delete(&taskModel{}).Error; err != nil {
			return errors.Wrap(err, "delete course tasks")
		}
		if err := tx.Where("course_id = ?", id).Delete(&messageModel{}).Error; err != nil {
			return errors.Wrap(err, "delete course messages")
		}
		return nil
	})
}

func (repo *courseRepository) CreateTask(ctx context.Context, t course.Task) (course.Task, error) {
	if err := repo.courseExists(ctx, t.CourseID); err != nil {
		return course.Task{}, err
	}
	m := newTaskModel(t)
	if err := repo.db.WithContext(ctx).Create(&m).Error; err != nil {
		return course.Task{}, errors.Wrap(err, "create task")
	}
	return m.toTask(), nil
}

func (repo *courseRepository) UpdateTask(ctx context.Context, t course.Task) (course.Task, error) {
	if err := repo.courseExists(ctx, t.CourseID); err != nil {
		return course.Task{}, err
	}
	m := newTaskModel(t)
	res := repo.db.WithContext(ctx).Model(&taskModel{}).Where("id = ?", t.ID).
		Select("course_id", "title", "description", "due_at", "status", "score").
		Updates(&m)
	if res.Error != nil {
		return course.Task{}, errors.Wrap(res.Error, "update task")
	}
	if res.RowsAffected == 0 {
		return course.Task{}, course.ErrNotFound
	}
	return t, nil
}

func (repo *courseRepository) DeleteTask(ctx context.Context, id string) error {
	res := repo.db.WithContext(ctx).Where("id = ?", id).Delete(&taskModel{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete task")
	}
	if res.RowsAffected == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo *courseRepository) courseExists(ctx context.Context, id string) error {
	var n int64
	if err := repo.db.WithContext(ctx).Model(&courseModel{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return errors.Wrap(err, "check course")
	}
	if n == 0 {
		return errors.Errorf("foreign key violation: course %q", id)
	}
	return nil
}

// Messages

type messageRepository struct {
	db *gorm.DB
}

var _ chat.Backend = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *gorm.DB) chat.Backend {
	return &messageRepository{db: db}
}

func (repo *messageRepository) ListMessages(ctx context.Context, courseID string) ([]chat.Message, error) {
	var models []messageModel
	if err := repo.db.WithContext(ctx).Where("course_id = ?", courseID).Order("created_at, id").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	msgs := make([]chat.Message, 0, len(models))
	for _, m := range models {
		msgs = append(msgs, m.toMessage())
	}
	// sqlite compares timestamps as text
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

func (repo *messageRepository) InsertMessage(ctx context.Context, nm chat.NewMessage) (chat.Message, error) {
	if err := nm.Validate(); err != nil {
		return chat.Message{}, err
	}
	m := messageModel{
		ID:        uuid.NewString(),
		CourseID:  nm.CourseID,
		SenderID:  nm.SenderID,
		Message:   nm.Body,
		CreatedAt: NowFunc().UTC(),
	}
	if err := repo.db.WithContext(ctx).Create(&m).Error; err != nil {
		return chat.Message{}, errors.Wrap(err, "insert message")
	}
	return m.toMessage(), nil
}
