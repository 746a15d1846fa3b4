package testutil

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/user"
	logsvc "github.com/trezcool/classroom/services/logger"
)

// NewConfig returns the configuration used by tests: dummy database, in-process push channel.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:  "Classroom",
		Env:      "TEST",
		Build:    "test",
		Debug:    true,
		TestMode: true,
		Database: core.DatabaseConfig{Engine: core.EngineDummy},
		Realtime: core.RealtimeConfig{
			Driver:        core.DriverInMem,
			ChannelPrefix: "course_messages",
			BufferSize:    64,
		},
		Chat: core.ChatConfig{ReloadOnResume: true, UnknownSenderPrefix: "User"},
	}
}

// NewLogger returns a logger discarding everything.
func NewLogger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), NewConfig())
}

// NewSession returns a session established for usr.
func NewSession(t *testing.T, usr user.User) *user.Session {
	t.Helper()
	sess, err := user.NewSessionFor(usr)
	if err != nil {
		t.Fatalf("NewSession() failed: %v", err)
	}
	return sess
}

func CreateUser(t *testing.T, repo user.Repository, id, name string, role user.Role) user.User {
	t.Helper()
	usr, err := repo.CreateUser(context.Background(), user.User{ID: id, Name: name, Email: id + "@example.com", Role: role})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}
