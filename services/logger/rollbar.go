package logsvc

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/chat"
	"github.com/trezcool/classroom/core/course"
	"github.com/trezcool/classroom/core/user"
)

// RollbarLogger reports to Rollbar and echoes every entry to a std logger.
type RollbarLogger struct {
	std   *log.Logger
	debug bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	if host, err := os.Hostname(); err == nil {
		rollbar.SetServerHost(host)
	}
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.Debug && !conf.TestMode)
	return &RollbarLogger{std: std, debug: conf.Debug}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// entry is a log call with its args sorted out.
type entry struct {
	msg    string
	err    error
	usr    *user.User
	fields map[string]interface{}
}

// newEntry flattens args into fields.
// Domain values (messages, courses, tasks) contribute their identifiers,
// the first error and the first user.User are kept apart.
func newEntry(msg string, args []interface{}) entry {
	e := entry{msg: msg, fields: make(map[string]interface{})}
	var extra []interface{}
	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
		case user.User:
			if e.usr == nil {
				usr := v
				e.usr = &usr
			}
		case error:
			if e.err == nil {
				e.err = v
			} else {
				extra = append(extra, v.Error())
			}
		case map[string]interface{}:
			for k, val := range v {
				e.fields[k] = val
			}
		case chat.Entry:
			e.addMessage(v.Message)
			e.fields["state"] = v.State.String()
		case chat.Message:
			e.addMessage(v)
		case course.Course:
			e.fields["course_id"] = v.ID
			e.fields["instructor_id"] = v.InstructorID
		case course.Task:
			e.fields["task_id"] = v.ID
			e.fields["course_id"] = v.CourseID
			e.fields["status"] = string(v.Status)
		default:
			extra = append(extra, v)
		}
	}
	if len(extra) > 0 {
		e.fields["extra"] = extra
	}
	return e
}

func (e *entry) addMessage(msg chat.Message) {
	e.fields["course_id"] = msg.CourseID
	e.fields["message_id"] = msg.ID
	e.fields["sender_id"] = msg.SenderID
}

// rollbarArgs returns the args understood by rollbar.Log.
// An error hides the message string there, so the message moves into the custom data.
func (e entry) rollbarArgs() []interface{} {
	custom := make(map[string]interface{}, len(e.fields)+1)
	for k, v := range e.fields {
		custom[k] = v
	}
	args := make([]interface{}, 0, 2)
	if e.err != nil {
		custom["message"] = e.msg
		args = append(args, e.err)
	} else {
		args = append(args, e.msg)
	}
	if len(custom) > 0 {
		args = append(args, custom)
	}
	return args
}

// String formats the entry as `msg k=v ...`, keys sorted.
func (e entry) String() string {
	var sb strings.Builder
	sb.WriteString(e.msg)
	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, e.fields[k])
	}
	if e.usr != nil {
		fmt.Fprintf(&sb, " user_id=%s", e.usr.ID)
	}
	return sb.String()
}

func (l RollbarLogger) report(level string, msg string, args []interface{}) {
	e := newEntry(msg, args)
	if e.usr != nil {
		rollbar.SetPerson(e.usr.ID, e.usr.Name, e.usr.Email)
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, e.rollbarArgs()...)
	l.print(e)
}

func (l RollbarLogger) print(e entry) {
	l.std.Println(e.String())
	if e.err != nil {
		l.std.Printf("%+v\n", e.err)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.report(rollbar.DEBUG, msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.report(rollbar.INFO, msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	l.report(rollbar.WARN, msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	l.report(rollbar.ERR, msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.report(rollbar.CRIT, msg, args)
	l.std.Fatal(msg)
}
