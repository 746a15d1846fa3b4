package course_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/course"
	"github.com/trezcool/classroom/core/user"
	notifysvc "github.com/trezcool/classroom/services/notify"
	dummydb "github.com/trezcool/classroom/storage/database/dummy"
	testutil "github.com/trezcool/classroom/tests"
)

var (
	admin      = user.User{ID: "1", Name: "Ada Admin", Role: user.Admin}
	instructor = user.User{ID: "2", Name: "John Instructor", Role: user.Instructor}
	otherInstr = user.User{ID: "4", Name: "Other Instructor", Role: user.Instructor}
	learner    = user.User{ID: "3", Name: "Lea Learner", Role: user.Learner}

	due = time.Date(2024, time.May, 20, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	store    *course.Store
	repo     *testutil.FailingCourseRepo
	session  *user.Session
	notifier *notifysvc.Recorder
}

// setup returns a store acting as `actor`, loaded with the dummy seed data.
func setup(t *testing.T, actor user.User) fixture {
	t.Helper()

	db, err := dummydb.Open()
	require.NoError(t, err)
	require.NoError(t, dummydb.Seed(context.Background(), db))

	f := fixture{
		repo:     testutil.NewFailingCourseRepo(dummydb.NewCourseRepository(db)),
		session:  testutil.NewSession(t, actor),
		notifier: notifysvc.NewRecorder(),
	}
	f.store = course.NewStore(f.repo, f.session, f.notifier, testutil.NewLogger())
	require.NoError(t, f.store.Load(context.Background()))
	return f
}

func courseIDs(courses []course.Course) []string {
	res := make([]string, 0, len(courses))
	for _, c := range courses {
		res = append(res, c.ID)
	}
	return res
}

func taskIDs(tasks []course.Task) []string {
	res := make([]string, 0, len(tasks))
	for _, t := range tasks {
		res = append(res, t.ID)
	}
	return res
}

func strPtr(s string) *string { return &s }

func mockIDs(t *testing.T, ids ...string) {
	orig := course.NewID
	course.NewID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	t.Cleanup(func() { course.NewID = orig })
}

func TestStore_Load(t *testing.T) {
	f := setup(t, admin)
	assert.Equal(t, []string{"1", "2"}, courseIDs(f.store.Courses()))
	assert.Equal(t, []string{"1", "2", "3"}, taskIDs(f.store.Tasks()))

	t.Run("failure keeps the current state", func(t *testing.T) {
		f.repo.FailOn["QueryAllCourses"] = true
		err := f.store.Load(context.Background())
		assert.True(t, core.IsRemoteFailure(err))
		assert.Equal(t, []string{"1", "2"}, courseIDs(f.store.Courses()))
		assert.Equal(t, []core.NotificationLevel{core.LevelError}, f.notifier.Levels())
	})
}

func TestStore_UserCourses(t *testing.T) {
	f := setup(t, admin)
	_, err := f.store.AddCourse(context.Background(), course.NewCourse{Title: "Chemistry", InstructorID: otherInstr.ID})
	require.NoError(t, err)
	chem := f.store.Courses()[2].ID

	tests := []struct {
		name   string
		userID string
		role   string
		want   []string
	}{
		{name: "admin sees all", userID: admin.ID, role: "admin", want: []string{"1", "2", chem}},
		{name: "instructor sees own", userID: instructor.ID, role: "profesor", want: []string{"1", "2"}},
		{name: "other instructor", userID: otherInstr.ID, role: "instructor", want: []string{chem}},
		{name: "learner sees enrolled", userID: learner.ID, role: "estudiante", want: []string{"1", "2"}},
		{name: "learner not enrolled", userID: "99", role: "student", want: []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			role, err := user.ParseRole(tc.role)
			require.NoError(t, err)
			assert.Equal(t, tc.want, courseIDs(f.store.UserCourses(tc.userID, role)))
		})
	}

	t.Run("nil role sees nothing", func(t *testing.T) {
		assert.Empty(t, f.store.UserCourses(admin.ID, nil))
	})
}

func TestStore_UserCourses_rosterScenario(t *testing.T) {
	db, err := dummydb.Open()
	require.NoError(t, err)
	repo := dummydb.NewCourseRepository(db)
	_, err = repo.CreateCourse(context.Background(), course.Course{ID: "1", Title: "Intro", InstructorID: "2", Roster: []string{"3"}})
	require.NoError(t, err)

	store := course.NewStore(repo, user.NewSession(), nil, testutil.NewLogger())
	require.NoError(t, store.Load(context.Background()))

	role, err := user.ParseRole("estudiante")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, courseIDs(store.UserCourses("3", role)))
	assert.Empty(t, store.UserCourses("4", role))
}

func TestStore_AddCourse(t *testing.T) {
	t.Run("assigns id and creation time", func(t *testing.T) {
		mockIDs(t, "c-1")
		now := time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)
		origNow := course.NowFunc
		course.NowFunc = func() time.Time { return now }
		defer func() { course.NowFunc = origNow }()

		f := setup(t, admin)
		c, err := f.store.AddCourse(context.Background(), course.NewCourse{
			Title:        "  Chemistry ",
			InstructorID: instructor.ID,
			Roster:       []string{"3", "3", " ", "5"},
		})
		require.NoError(t, err)
		assert.Equal(t, "c-1", c.ID)
		assert.Equal(t, "Chemistry", c.Title)
		assert.Equal(t, now, c.CreatedAt)
		assert.Equal(t, []string{"3", "5"}, c.Roster)

		got, ok := f.store.GetCourse("c-1")
		require.True(t, ok)
		assert.Equal(t, c, got)
		assert.Equal(t, []core.NotificationLevel{core.LevelSuccess}, f.notifier.Levels())
	})

	t.Run("instructor creates own course", func(t *testing.T) {
		f := setup(t, instructor)
		c, err := f.store.AddCourse(context.Background(), course.NewCourse{Title: "Physics"})
		require.NoError(t, err)
		assert.Equal(t, instructor.ID, c.InstructorID)
		assert.Equal(t, instructor.Name, c.InstructorName)
	})

	tests := []struct {
		name    string
		actor   user.User
		nc      course.NewCourse
		wantErr error
		isValid bool
	}{
		{name: "learner", actor: learner, nc: course.NewCourse{Title: "x", InstructorID: "2"}, wantErr: core.ErrPermissionDenied},
		{name: "instructor for someone else", actor: instructor, nc: course.NewCourse{Title: "x", InstructorID: "4"}, wantErr: core.ErrPermissionDenied},
		{name: "blank title", actor: admin, nc: course.NewCourse{Title: "  ", InstructorID: "2"}, isValid: true},
		{name: "no instructor", actor: admin, nc: course.NewCourse{Title: "x"}, isValid: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t, tc.actor)
			_, err := f.store.AddCourse(context.Background(), tc.nc)
			if tc.isValid {
				assert.True(t, core.IsValidation(err), "got %v", err)
			} else {
				assert.Equal(t, tc.wantErr, err)
			}
			assert.Len(t, f.store.Courses(), 2)
			assert.Empty(t, f.notifier.Notifications())
		})
	}

	t.Run("remote failure leaves the store untouched", func(t *testing.T) {
		f := setup(t, admin)
		f.repo.FailOn["CreateCourse"] = true

		_, err := f.store.AddCourse(context.Background(), course.NewCourse{Title: "x", InstructorID: "2"})
		assert.True(t, core.IsRemoteFailure(err))
		assert.Equal(t, []string{"1", "2"}, courseIDs(f.store.Courses()))
		assert.Equal(t, []core.NotificationLevel{core.LevelError}, f.notifier.Levels())
	})

	t.Run("no session", func(t *testing.T) {
		f := setup(t, admin)
		f.session.Clear()
		_, err := f.store.AddCourse(context.Background(), course.NewCourse{Title: "x", InstructorID: "2"})
		assert.Equal(t, core.ErrNoSession, err)
	})
}

func TestStore_UpdateCourse(t *testing.T) {
	t.Run("shallow merge", func(t *testing.T) {
		f := setup(t, instructor)
		before, _ := f.store.GetCourse("1")

		err := f.store.UpdateCourse(context.Background(), "1", course.UpdateCourse{Title: strPtr("Programming 101")})
		require.NoError(t, err)

		after, _ := f.store.GetCourse("1")
		assert.Equal(t, "Programming 101", after.Title)
		assert.Equal(t, before.Description, after.Description)
		assert.Equal(t, before.Roster, after.Roster)
		assert.Equal(t, before.CreatedAt, after.CreatedAt)
		assert.Equal(t, []core.NotificationLevel{core.LevelSuccess}, f.notifier.Levels())
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		f := setup(t, admin)
		err := f.store.UpdateCourse(context.Background(), "nope", course.UpdateCourse{Title: strPtr("x")})
		assert.NoError(t, err)
		assert.Len(t, f.store.Courses(), 2)
		assert.Empty(t, f.notifier.Notifications())
	})

	t.Run("not the owner", func(t *testing.T) {
		f := setup(t, otherInstr)
		err := f.store.UpdateCourse(context.Background(), "1", course.UpdateCourse{Title: strPtr("x")})
		assert.Equal(t, core.ErrPermissionDenied, err)
	})

	t.Run("instructor cannot hand the course over", func(t *testing.T) {
		f := setup(t, instructor)
		err := f.store.UpdateCourse(context.Background(), "1", course.UpdateCourse{InstructorID: strPtr(otherInstr.ID)})
		assert.Equal(t, core.ErrPermissionDenied, err)
	})

	t.Run("remote failure leaves the store untouched", func(t *testing.T) {
		f := setup(t, admin)
		f.repo.FailOn["UpdateCourse"] = true
		err := f.store.UpdateCourse(context.Background(), "1", course.UpdateCourse{Title: strPtr("x")})
		assert.True(t, core.IsRemoteFailure(err))
		c, _ := f.store.GetCourse("1")
		assert.Equal(t, "Introduction to Programming", c.Title)
	})
}

func TestStore_Enrollment(t *testing.T) {
	f := setup(t, instructor)

	require.NoError(t, f.store.Enroll(context.Background(), "1", "5"))
	require.NoError(t, f.store.Enroll(context.Background(), "1", "5")) // already enrolled
	c, _ := f.store.GetCourse("1")
	assert.Equal(t, []string{"3", "5"}, c.Roster)

	role, _ := user.ParseRole("learner")
	assert.Equal(t, []string{"1"}, courseIDs(f.store.UserCourses("5", role)))

	require.NoError(t, f.store.Unenroll(context.Background(), "1", "3"))
	c, _ = f.store.GetCourse("1")
	assert.Equal(t, []string{"5"}, c.Roster)
	assert.Equal(t, []string{"2"}, courseIDs(f.store.UserCourses("3", role)))
}

func TestStore_DeleteCourse(t *testing.T) {
	t.Run("cascades to its tasks only", func(t *testing.T) {
		f := setup(t, admin)
		require.NoError(t, f.store.DeleteCourse(context.Background(), "1"))

		_, ok := f.store.GetCourse("1")
		assert.False(t, ok)
		assert.Equal(t, []string{"2"}, courseIDs(f.store.Courses()))
		assert.Equal(t, []string{"3"}, taskIDs(f.store.Tasks()))
		assert.Empty(t, f.store.CourseTasks("1"))
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		f := setup(t, admin)
		assert.NoError(t, f.store.DeleteCourse(context.Background(), "nope"))
		assert.Len(t, f.store.Courses(), 2)
	})

	t.Run("learner", func(t *testing.T) {
		f := setup(t, learner)
		assert.Equal(t, core.ErrPermissionDenied, f.store.DeleteCourse(context.Background(), "1"))
		assert.Len(t, f.store.Courses(), 2)
	})

	t.Run("remote failure leaves the store untouched", func(t *testing.T) {
		f := setup(t, admin)
		f.repo.FailOn["DeleteCourse"] = true
		err := f.store.DeleteCourse(context.Background(), "1")
		assert.True(t, core.IsRemoteFailure(err))
		assert.Len(t, f.store.Courses(), 2)
		assert.Len(t, f.store.Tasks(), 3)
	})
}

func TestStore_AddTask(t *testing.T) {
	t.Run("defaults to pending", func(t *testing.T) {
		mockIDs(t, "t-1")
		f := setup(t, instructor)
		tsk, err := f.store.AddTask(context.Background(), course.NewTask{CourseID: "2", Title: "Homework", DueAt: due})
		require.NoError(t, err)
		assert.Equal(t, "t-1", tsk.ID)
		assert.Equal(t, course.StatusPending, tsk.Status)
		assert.Equal(t, []string{"3", "t-1"}, taskIDs(f.store.CourseTasks("2")))
	})

	score := 12.5
	neg := -1.0
	tests := []struct {
		name    string
		actor   user.User
		nt      course.NewTask
		wantErr error
		isValid bool
	}{
		{name: "unknown course", actor: admin, nt: course.NewTask{CourseID: "nope", Title: "x", DueAt: due}, isValid: true},
		{name: "no due date", actor: admin, nt: course.NewTask{CourseID: "1", Title: "x"}, isValid: true},
		{name: "bad status", actor: admin, nt: course.NewTask{CourseID: "1", Title: "x", DueAt: due, Status: "late"}, isValid: true},
		{name: "negative score", actor: admin, nt: course.NewTask{CourseID: "1", Title: "x", DueAt: due, Score: &neg}, isValid: true},
		{name: "learner", actor: learner, nt: course.NewTask{CourseID: "1", Title: "x", DueAt: due, Score: &score}, wantErr: core.ErrPermissionDenied},
		{name: "not the owner", actor: otherInstr, nt: course.NewTask{CourseID: "1", Title: "x", DueAt: due}, wantErr: core.ErrPermissionDenied},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t, tc.actor)
			_, err := f.store.AddTask(context.Background(), tc.nt)
			if tc.isValid {
				assert.True(t, core.IsValidation(err), "got %v", err)
			} else {
				assert.Equal(t, tc.wantErr, err)
			}
			assert.Len(t, f.store.Tasks(), 3)
		})
	}

	t.Run("remote failure leaves the store untouched", func(t *testing.T) {
		f := setup(t, admin)
		f.repo.FailOn["CreateTask"] = true
		_, err := f.store.AddTask(context.Background(), course.NewTask{CourseID: "1", Title: "x", DueAt: due})
		assert.True(t, core.IsRemoteFailure(err))
		assert.Len(t, f.store.Tasks(), 3)
	})
}

func TestStore_UpdateTask(t *testing.T) {
	completed := course.StatusCompleted
	score := 90.0

	f := setup(t, instructor)
	require.NoError(t, f.store.UpdateTask(context.Background(), "1", course.UpdateTask{Status: &completed, Score: &score}))
	tsk, ok := f.store.GetTask("1")
	require.True(t, ok)
	assert.Equal(t, course.StatusCompleted, tsk.Status)
	assert.Equal(t, 90.0, *tsk.Score)
	assert.Equal(t, "Homework: Basic Algorithms", tsk.Title)

	t.Run("unknown id is a no-op", func(t *testing.T) {
		assert.NoError(t, f.store.UpdateTask(context.Background(), "nope", course.UpdateTask{Status: &completed}))
	})

	t.Run("move to an unknown course", func(t *testing.T) {
		err := f.store.UpdateTask(context.Background(), "1", course.UpdateTask{CourseID: strPtr("nope")})
		assert.True(t, core.IsValidation(err))
	})

	t.Run("returned copies are detached", func(t *testing.T) {
		tsk, _ := f.store.GetTask("1")
		*tsk.Score = 0
		again, _ := f.store.GetTask("1")
		assert.Equal(t, 90.0, *again.Score)
	})
}

func TestStore_DeleteTask(t *testing.T) {
	f := setup(t, admin)
	require.NoError(t, f.store.DeleteTask(context.Background(), "2"))
	assert.Equal(t, []string{"1", "3"}, taskIDs(f.store.Tasks()))
	_, ok := f.store.GetCourse("1")
	assert.True(t, ok)

	assert.NoError(t, f.store.DeleteTask(context.Background(), "2"))
}

func TestStore_UserTasks(t *testing.T) {
	f := setup(t, learner)
	role, _ := user.ParseRole("estudiante")

	var allowed []string
	for _, c := range f.store.UserCourses(learner.ID, role) {
		allowed = append(allowed, c.ID)
	}
	assert.Equal(t, []string{"1", "2", "3"}, taskIDs(f.store.UserTasks(allowed)))
	assert.Equal(t, []string{"3"}, taskIDs(f.store.UserTasks([]string{"2"})))
	assert.Empty(t, f.store.UserTasks(nil))
}
