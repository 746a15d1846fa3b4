package user

import (
	"fmt"
	"strings"

	"github.com/trezcool/classroom/core"
)

// Role is the closed set of permission roles: Admin, Instructor and Learner.
// It is sealed; use MatchRole to branch on it so every variant is handled.
type Role interface {
	fmt.Stringer
	isRole()
}

type (
	adminRole      struct{}
	instructorRole struct{}
	learnerRole    struct{}
)

func (adminRole) isRole()      {}
func (instructorRole) isRole() {}
func (learnerRole) isRole()    {}

func (adminRole) String() string      { return "admin" }
func (instructorRole) String() string { return "instructor" }
func (learnerRole) String() string    { return "learner" }

// Roles
var (
	Admin      Role = adminRole{}
	Instructor Role = instructorRole{}
	Learner    Role = learnerRole{}

	AllRoles = []Role{Admin, Instructor, Learner}

	roleAliases = map[string]Role{
		"admin":      Admin,
		"instructor": Instructor,
		"teacher":    Instructor,
		"profesor":   Instructor,
		"learner":    Learner,
		"student":    Learner,
		"estudiante": Learner,
	}
)

// MatchRole calls the function matching `r` and returns its result.
// Callers must supply one branch per role.
func MatchRole[T any](r Role, admin, instructor, learner func() T) T {
	switch r.(type) {
	case adminRole:
		return admin()
	case instructorRole:
		return instructor()
	case learnerRole:
		return learner()
	default:
		panic(fmt.Sprintf("user.MatchRole: unknown role %v", r))
	}
}

// ParseRole maps a role name (or one of its aliases) to its Role.
func ParseRole(name string) (Role, error) {
	if r, ok := roleAliases[core.CleanString(name, true /* lower */)]; ok {
		return r, nil
	}
	err := fmt.Errorf("unknown role %q", name)
	return nil, core.NewValidationError(err, core.FieldError{Field: "role", Error: err.Error()})
}

type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"-"`
	Avatar string `json:"avatar,omitempty"`
}

func (u User) IsAdmin() bool      { return u.Role == Admin }
func (u User) IsInstructor() bool { return u.Role == Instructor }
func (u User) IsLearner() bool    { return u.Role == Learner }

// ShortID returns the first 4 characters of the user ID.
func ShortID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > 4 {
		return id[:4]
	}
	return id
}
