package dummydb

import (
	"sync"
	"time"

	"github.com/trezcool/classroom/core/chat"
	"github.com/trezcool/classroom/core/course"
	"github.com/trezcool/classroom/core/user"
)

var NowFunc = time.Now // mockable

type (
	// DB is an in-memory stand-in for the remote data service.
	DB struct {
		user    *userTable
		course  *courseTable
		message *messageTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	courseTable struct {
		sync.RWMutex
		courses     map[string]*course.Course
		courseOrder []string
		tasks       map[string]*course.Task
		taskOrder   []string
	}

	messageTable struct {
		sync.RWMutex
		pkCount int
		table   []chat.Message
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		course: &courseTable{
			courses: make(map[string]*course.Course),
			tasks:   make(map[string]*course.Task),
		},
		message: &messageTable{table: make([]chat.Message, 0)},
	}
	return db, nil
}
