package course

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/user"
)

var (
	NewID   = uuid.NewString // mockable
	NowFunc = time.Now       // mockable
)

// Store owns the in-memory courses and tasks of the app session.
//
// Mutations are staged, persisted through the Repository, then committed:
// a persistence failure never reaches the in-memory collections.
type Store struct {
	repo     Repository
	session  *user.Session
	notifier core.Notifier
	logger   core.Logger

	mu          sync.RWMutex
	courses     map[string]*Course
	courseOrder []string
	tasks       map[string]*Task
	taskOrder   []string
}

func NewStore(repo Repository, session *user.Session, notifier core.Notifier, logger core.Logger) *Store {
	return &Store{
		repo:     repo,
		session:  session,
		notifier: notifier,
		logger:   logger,
		courses:  make(map[string]*Course),
		tasks:    make(map[string]*Task),
	}
}

// Load replaces the in-memory collections with the remote ones.
// On failure the current collections are kept.
func (s *Store) Load(ctx context.Context) error {
	var (
		courses []Course
		tasks   []Task
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		courses, err = s.repo.QueryAllCourses(gctx)
		return errors.Wrap(err, "courses")
	})
	g.Go(func() (err error) {
		tasks, err = s.repo.QueryAllTasks(gctx)
		return errors.Wrap(err, "tasks")
	})
	if err := g.Wait(); err != nil {
		return s.remoteFailure("load", "Could not load courses", err)
	}
	sort.SliceStable(courses, func(i, j int) bool {
		if courses[i].CreatedAt.Equal(courses[j].CreatedAt) {
			return courses[i].ID < courses[j].ID
		}
		return courses[i].CreatedAt.Before(courses[j].CreatedAt)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	s.courses = make(map[string]*Course, len(courses))
	s.courseOrder = make([]string, 0, len(courses))
	for _, c := range courses {
		c := c.clone()
		if _, dup := s.courses[c.ID]; dup {
			continue
		}
		s.courses[c.ID] = &c
		s.courseOrder = append(s.courseOrder, c.ID)
	}
	s.tasks = make(map[string]*Task, len(tasks))
	s.taskOrder = make([]string, 0, len(tasks))
	for _, t := range tasks {
		t := t.clone()
		if _, ok := s.courses[t.CourseID]; !ok {
			continue // orphan
		}
		if _, dup := s.tasks[t.ID]; dup {
			continue
		}
		s.tasks[t.ID] = &t
		s.taskOrder = append(s.taskOrder, t.ID)
	}
	return nil
}

// Courses

// AddCourse assigns an ID and a creation timestamp to a new Course and appends it.
func (s *Store) AddCourse(ctx context.Context, nc NewCourse) (Course, error) {
	actor, err := s.session.MustCurrent()
	if err != nil {
		return Course{}, err
	}
	if !canCreate(actor) {
		return Course{}, core.ErrPermissionDenied
	}
	if actor.IsInstructor() {
		// instructors can only create their own courses
		if core.CleanString(nc.InstructorID) == "" {
			nc.InstructorID = actor.ID
		} else if core.CleanString(nc.InstructorID) != actor.ID {
			return Course{}, core.ErrPermissionDenied
		}
		if core.CleanString(nc.InstructorName) == "" {
			nc.InstructorName = actor.Name
		}
	}
	if err := nc.Validate(); err != nil {
		return Course{}, err
	}

	staged := Course{
		ID:             NewID(),
		Title:          nc.Title,
		Description:    nc.Description,
		Image:          nc.Image,
		InstructorID:   nc.InstructorID,
		InstructorName: nc.InstructorName,
		Roster:         nc.Roster,
		CreatedAt:      NowFunc().UTC(),
		Schedule:       nc.Schedule,
	}
	saved, err := s.repo.CreateCourse(ctx, staged)
	if err != nil {
		return Course{}, s.remoteFailure("create course", "Could not create course", err)
	}
	if saved.ID == "" {
		saved.ID = staged.ID
	}
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = staged.CreatedAt
	}

	s.mu.Lock()
	saved = saved.clone()
	if _, exists := s.courses[saved.ID]; !exists {
		s.courseOrder = append(s.courseOrder, saved.ID)
	}
	s.courses[saved.ID] = &saved
	s.mu.Unlock()

	s.notify(core.Success(fmt.Sprintf("Course %q created", saved.Title)))
	return saved.clone(), nil
}

// UpdateCourse shallow-merges the set fields of `uc` into course `id`. Unknown IDs are ignored.
func (s *Store) UpdateCourse(ctx context.Context, id string, uc UpdateCourse) error {
	actor, err := s.session.MustCurrent()
	if err != nil {
		return err
	}
	orig, ok := s.GetCourse(id)
	if !ok {
		s.logger.Debug(fmt.Sprintf("update course: %q not found", id))
		return nil
	}
	if !canManage(actor, orig) {
		return core.ErrPermissionDenied
	}
	if err := uc.Validate(); err != nil {
		return err
	}
	if actor.IsInstructor() && uc.InstructorID != nil && *uc.InstructorID != actor.ID {
		return core.ErrPermissionDenied
	}

	saved, err := s.repo.UpdateCourse(ctx, uc.apply(orig))
	if err != nil {
		return s.remoteFailure("update course", "Could not update course", err)
	}

	s.mu.Lock()
	committed := false
	if _, exists := s.courses[id]; exists { // deleted meanwhile: deletion wins
		saved = saved.clone()
		s.courses[id] = &saved
		committed = true
	}
	s.mu.Unlock()

	if committed {
		s.notify(core.Success("Course updated"))
	}
	return nil
}

// DeleteCourse removes course `id` and all its tasks. Unknown IDs are ignored.
func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	actor, err := s.session.MustCurrent()
	if err != nil {
		return err
	}
	orig, ok := s.GetCourse(id)
	if !ok {
		s.logger.Debug(fmt.Sprintf("delete course: %q not found", id))
		return nil
	}
	if !canManage(actor, orig) {
		return core.ErrPermissionDenied
	}

	if err := s.repo.DeleteCourse(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return s.remoteFailure("delete course", "Could not delete course", err)
	}

	s.mu.Lock()
	delete(s.courses, id)
	s.courseOrder = removeID(s.courseOrder, id)
	for tid, t := range s.tasks {
		if t.CourseID == id {
			delete(s.tasks, tid)
			s.taskOrder = removeID(s.taskOrder, tid)
		}
	}
	s.mu.Unlock()

	s.notify(core.Success("Course deleted"))
	return nil
}

// Enroll adds learner `learnerID` to the roster of course `courseID`.
func (s *Store) Enroll(ctx context.Context, courseID, learnerID string) error {
	c, ok := s.GetCourse(courseID)
	if !ok || c.HasLearner(core.CleanString(learnerID)) {
		return nil
	}
	return s.UpdateCourse(ctx, courseID, UpdateCourse{Roster: append(c.Roster, learnerID)})
}

// Unenroll removes learner `learnerID` from the roster of course `courseID`.
func (s *Store) Unenroll(ctx context.Context, courseID, learnerID string) error {
	c, ok := s.GetCourse(courseID)
	learnerID = core.CleanString(learnerID)
	if !ok || !c.HasLearner(learnerID) {
		return nil
	}
	return s.UpdateCourse(ctx, courseID, UpdateCourse{Roster: removeID(c.Roster, learnerID)})
}

func (s *Store) GetCourse(id string) (Course, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.courses[id]; ok {
		return c.clone(), true
	}
	return Course{}, false
}

// Courses returns all courses in creation order.
func (s *Store) Courses() []Course {
	return s.filterCourses(func(Course) bool { return true })
}

// UserCourses returns the courses `userID` may see with `role`. It is recomputed on every call.
func (s *Store) UserCourses(userID string, role user.Role) []Course {
	return s.filterCourses(AllowedCourse(role, userID))
}

func (s *Store) filterCourses(keep func(Course) bool) []Course {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]Course, 0)
	for _, id := range s.courseOrder {
		if c := s.courses[id]; keep(*c) {
			res = append(res, c.clone())
		}
	}
	return res
}

// Tasks

// AddTask assigns an ID to a new Task of an existing course and appends it.
func (s *Store) AddTask(ctx context.Context, nt NewTask) (Task, error) {
	actor, err := s.session.MustCurrent()
	if err != nil {
		return Task{}, err
	}
	if !canCreate(actor) {
		return Task{}, core.ErrPermissionDenied
	}
	if err := nt.Validate(); err != nil {
		return Task{}, err
	}
	c, ok := s.GetCourse(nt.CourseID)
	if !ok {
		return Task{}, errUnknownCourse(nt.CourseID)
	}
	if !canManage(actor, c) {
		return Task{}, core.ErrPermissionDenied
	}

	staged := Task{
		ID:          NewID(),
		CourseID:    nt.CourseID,
		Title:       nt.Title,
		Description: nt.Description,
		DueAt:       nt.DueAt,
		Status:      nt.Status,
		Score:       nt.Score,
	}
	saved, err := s.repo.CreateTask(ctx, staged.clone())
	if err != nil {
		return Task{}, s.remoteFailure("create task", "Could not create task", err)
	}
	if saved.ID == "" {
		saved.ID = staged.ID
	}

	s.mu.Lock()
	_, courseExists := s.courses[saved.CourseID]
	if courseExists {
		saved = saved.clone()
		if _, exists := s.tasks[saved.ID]; !exists {
			s.taskOrder = append(s.taskOrder, saved.ID)
		}
		s.tasks[saved.ID] = &saved
	}
	s.mu.Unlock()

	if !courseExists { // course deleted meanwhile
		return Task{}, errUnknownCourse(saved.CourseID)
	}
	s.notify(core.Success(fmt.Sprintf("Task %q created", saved.Title)))
	return saved.clone(), nil
}

// UpdateTask shallow-merges the set fields of `ut` into task `id`. Unknown IDs are ignored.
func (s *Store) UpdateTask(ctx context.Context, id string, ut UpdateTask) error {
	actor, err := s.session.MustCurrent()
	if err != nil {
		return err
	}
	orig, ok := s.GetTask(id)
	if !ok {
		s.logger.Debug(fmt.Sprintf("update task: %q not found", id))
		return nil
	}
	if err := ut.Validate(); err != nil {
		return err
	}
	updated := ut.apply(orig)
	for _, cid := range []string{orig.CourseID, updated.CourseID} {
		c, ok := s.GetCourse(cid)
		if !ok {
			return errUnknownCourse(cid)
		}
		if !canManage(actor, c) {
			return core.ErrPermissionDenied
		}
	}

	saved, err := s.repo.UpdateTask(ctx, updated)
	if err != nil {
		return s.remoteFailure("update task", "Could not update task", err)
	}

	s.mu.Lock()
	committed := false
	if _, exists := s.tasks[id]; exists {
		if _, courseExists := s.courses[saved.CourseID]; courseExists {
			saved = saved.clone()
			s.tasks[id] = &saved
			committed = true
		}
	}
	s.mu.Unlock()

	if committed {
		s.notify(core.Success("Task updated"))
	}
	return nil
}

// DeleteTask removes task `id`. Unknown IDs are ignored.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	actor, err := s.session.MustCurrent()
	if err != nil {
		return err
	}
	orig, ok := s.GetTask(id)
	if !ok {
		s.logger.Debug(fmt.Sprintf("delete task: %q not found", id))
		return nil
	}
	if c, ok := s.GetCourse(orig.CourseID); !ok || !canManage(actor, c) {
		return core.ErrPermissionDenied
	}

	if err := s.repo.DeleteTask(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return s.remoteFailure("delete task", "Could not delete task", err)
	}

	s.mu.Lock()
	delete(s.tasks, id)
	s.taskOrder = removeID(s.taskOrder, id)
	s.mu.Unlock()

	s.notify(core.Success("Task deleted"))
	return nil
}

func (s *Store) GetTask(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tasks[id]; ok {
		return t.clone(), true
	}
	return Task{}, false
}

// Tasks returns all tasks in creation order.
func (s *Store) Tasks() []Task {
	return s.filterTasks(func(Task) bool { return true })
}

// CourseTasks returns the tasks of course `courseID`.
func (s *Store) CourseTasks(courseID string) []Task {
	return s.filterTasks(func(t Task) bool { return t.CourseID == courseID })
}

// UserTasks returns the tasks belonging to any of `allowedCourseIDs`.
func (s *Store) UserTasks(allowedCourseIDs []string) []Task {
	allowed := make(map[string]struct{}, len(allowedCourseIDs))
	for _, id := range allowedCourseIDs {
		allowed[id] = struct{}{}
	}
	return s.filterTasks(func(t Task) bool {
		_, ok := allowed[t.CourseID]
		return ok
	})
}

func (s *Store) filterTasks(keep func(Task) bool) []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]Task, 0)
	for _, id := range s.taskOrder {
		if t := s.tasks[id]; keep(*t) {
			res = append(res, t.clone())
		}
	}
	return res
}

// helpers

func (s *Store) notify(n core.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(n)
	}
}

func (s *Store) remoteFailure(op, msg string, err error) error {
	rerr := core.NewRemoteError(op, err)
	s.logger.Error(msg, errors.Wrap(err, op))
	s.notify(core.Failure(msg))
	return rerr
}

func errUnknownCourse(id string) error {
	err := fmt.Errorf("course %q does not exist", id)
	return core.NewValidationError(err, core.FieldError{Field: "course_id", Error: err.Error()})
}

func removeID(ids []string, id string) []string {
	res := ids[:0:0]
	for _, it := range ids {
		if it != id {
			res = append(res, it)
		}
	}
	return res
}
