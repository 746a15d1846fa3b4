package course

import "github.com/trezcool/classroom/core/user"

// AllowedCourse returns the predicate selecting the courses `userID` may see with `role`:
// admins see all, instructors see the courses they own, learners the ones they are enrolled in.
func AllowedCourse(role user.Role, userID string) func(Course) bool {
	if role == nil {
		return func(Course) bool { return false }
	}
	return user.MatchRole(role,
		func() func(Course) bool { return func(Course) bool { return true } },
		func() func(Course) bool { return func(c Course) bool { return c.InstructorID == userID } },
		func() func(Course) bool { return func(c Course) bool { return c.HasLearner(userID) } },
	)
}

func canCreate(usr user.User) bool {
	return user.MatchRole(usr.Role,
		func() bool { return true },
		func() bool { return true },
		func() bool { return false },
	)
}

func canManage(usr user.User, c Course) bool {
	return user.MatchRole(usr.Role,
		func() bool { return true },
		func() bool { return c.InstructorID == usr.ID },
		func() bool { return false },
	)
}
