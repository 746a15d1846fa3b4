package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/chat"
	"github.com/trezcool/classroom/core/course"
	"github.com/trezcool/classroom/core/user"
)

const dateLayout = "2006-01-02"

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	session *user.Session
	users   *user.Service
	store   *course.Store
	chat    *chat.Manager
	in      io.Reader
	out     io.Writer
}

func newCommandLine(session *user.Session, users *user.Service, store *course.Store, mgr *chat.Manager, in io.Reader, out io.Writer) *commandLine {
	return &commandLine{session: session, users: users, store: store, chat: mgr, in: in, out: out}
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage: classroom -as USER_ID COMMAND [flags]")
	fmt.Fprintln(cli.out, "  courses                                              - list the courses you can see")
	fmt.Fprintln(cli.out, "  course-add -title TITLE [-description D] [-schedule S] [-instructor ID]")
	fmt.Fprintln(cli.out, "  course-delete -id ID                                 - delete a course and its tasks")
	fmt.Fprintln(cli.out, "  enroll -course ID -learner ID [-remove]              - edit a course roster")
	fmt.Fprintln(cli.out, "  tasks [-course ID]                                   - list the tasks of your courses")
	fmt.Fprintln(cli.out, "  task-add -course ID -title TITLE -due YYYY-MM-DD [-description D]")
	fmt.Fprintln(cli.out, "  task-status -id ID -status pending|completed|overdue [-score N]")
	fmt.Fprintln(cli.out, "  chat -course ID                                      - join a course chat (/quit to leave)")
}

func (cli *commandLine) run(args []string) error {
	root := flag.NewFlagSet("classroom", flag.ContinueOnError)
	root.SetOutput(cli.out)
	as := root.String("as", "", "The ID of the user to act as.")
	if err := root.Parse(args[1:]); err != nil {
		return err
	}
	rest := root.Args()
	if *as == "" || len(rest) == 0 {
		cli.printUsage()
		return errHelp
	}

	ctx := context.Background()
	switch rest[0] {
	case "courses", "course-add", "course-delete", "enroll", "tasks", "task-add", "task-status", "chat":
	default:
		cli.printUsage()
		return errHelp
	}
	defer cli.session.Clear()
	if err := cli.signIn(ctx, *as); err != nil {
		return err
	}

	cmdArgs := rest[1:]
	switch rest[0] {
	case "courses":
		return cli.listCourses()

	case "course-add":
		cmd := cli.flagSet("course-add")
		title := cmd.String("title", "", "The course title.")
		desc := cmd.String("description", "", "The course description.")
		schedule := cmd.String("schedule", "", "When the course takes place.")
		instructor := cmd.String("instructor", "", "The instructor ID (defaults to you).")
		if err := cmd.Parse(cmdArgs); err != nil {
			return err
		}
		if *title == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.addCourse(ctx, *title, *desc, *schedule, *instructor)

	case "course-delete":
		cmd := cli.flagSet("course-delete")
		id := cmd.String("id", "", "The course ID.")
		if err := cmd.Parse(cmdArgs); err != nil {
			return err
		}
		if *id == "" {
			cmd.Usage()
			return errHelp
		}
		if _, ok := cli.store.GetCourse(*id); !ok {
			return course.ErrNotFound
		}
		return cli.store.DeleteCourse(ctx, *id)

	case "enroll":
		cmd := cli.flagSet("enroll")
		courseID := cmd.String("course", "", "The course ID.")
		learnerID := cmd.String("learner", "", "The learner ID.")
		remove := cmd.Bool("remove", false, "Remove the learner instead.")
		if err := cmd.Parse(cmdArgs); err != nil {
			return err
		}
		if *courseID == "" || *learnerID == "" {
			cmd.Usage()
			return errHelp
		}
		if _, ok := cli.store.GetCourse(*courseID); !ok {
			return course.ErrNotFound
		}
		if *remove {
			return cli.store.Unenroll(ctx, *courseID, *learnerID)
		}
		return cli.store.Enroll(ctx, *courseID, *learnerID)

	case "tasks":
		cmd := cli.flagSet("tasks")
		courseID := cmd.String("course", "", "Only list the tasks of this course.")
		if err := cmd.Parse(cmdArgs); err != nil {
			return err
		}
		return cli.listTasks(*courseID)

	case "task-add":
		cmd := cli.flagSet("task-add")
		courseID := cmd.String("course", "", "The course ID.")
		title := cmd.String("title", "", "The task title.")
		desc := cmd.String("description", "", "The task description.")
		due := cmd.String("due", "", "The due date (YYYY-MM-DD).")
		if err := cmd.Parse(cmdArgs); err != nil {
			return err
		}
		if *courseID == "" || *title == "" || *due == "" {
			cmd.Usage()
			return errHelp
		}
		dueAt, err := time.Parse(dateLayout, *due)
		if err != nil {
			return fmt.Errorf("due date must be of form YYYY-MM-DD (got '%s')", *due)
		}
		_, err = cli.store.AddTask(ctx, course.NewTask{CourseID: *courseID, Title: *title, Description: *desc, DueAt: dueAt})
		return err

	case "task-status":
		cmd := cli.flagSet("task-status")
		id := cmd.String("id", "", "The task ID.")
		status := cmd.String("status", "", "pending, completed or overdue.")
		score := cmd.String("score", "", "The score obtained.")
		if err := cmd.Parse(cmdArgs); err != nil {
			return err
		}
		if *id == "" || *status == "" {
			cmd.Usage()
			return errHelp
		}
		if _, ok := cli.store.GetTask(*id); !ok {
			return course.ErrNotFound
		}
		st := course.TaskStatus(strings.ToLower(*status))
		ut := course.UpdateTask{Status: &st}
		if *score != "" {
			n, err := strconv.ParseFloat(*score, 64)
			if err != nil {
				return fmt.Errorf("score must be a number (got '%s')", *score)
			}
			ut.Score = &n
		}
		return cli.store.UpdateTask(ctx, *id, ut)

	default: // chat
		cmd := cli.flagSet("chat")
		courseID := cmd.String("course", "", "The course ID.")
		if err := cmd.Parse(cmdArgs); err != nil {
			return err
		}
		if *courseID == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.runChat(ctx, *courseID)
	}
}

func (cli *commandLine) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

// signIn establishes the session for profile `id` and loads its data.
func (cli *commandLine) signIn(ctx context.Context, id string) error {
	usr, err := cli.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := cli.session.Establish(usr); err != nil {
		return err
	}
	return cli.store.Load(ctx)
}

func (cli *commandLine) visibleCourses() []course.Course {
	usr, _ := cli.session.Current()
	return cli.store.UserCourses(usr.ID, usr.Role)
}

func (cli *commandLine) listCourses() error {
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tINSTRUCTOR\tLEARNERS\tSCHEDULE")
	for _, c := range cli.visibleCourses() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", c.ID, c.Title, c.InstructorName, len(c.Roster), c.Schedule)
	}
	return w.Flush()
}

func (cli *commandLine) addCourse(ctx context.Context, title, desc, schedule, instructorID string) error {
	usr, _ := cli.session.Current()
	if instructorID == "" {
		instructorID = usr.ID
	}
	_, err := cli.store.AddCourse(ctx, course.NewCourse{
		Title:          title,
		Description:    desc,
		Schedule:       schedule,
		InstructorID:   instructorID,
		InstructorName: cli.users.DisplayName(ctx, instructorID),
	})
	return err
}

func (cli *commandLine) listTasks(courseID string) error {
	allowed := make([]string, 0)
	for _, c := range cli.visibleCourses() {
		if courseID == "" || c.ID == courseID {
			allowed = append(allowed, c.ID)
		}
	}
	if courseID != "" && len(allowed) == 0 {
		return core.ErrPermissionDenied
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOURSE\tTITLE\tDUE\tSTATUS\tSCORE")
	for _, t := range cli.store.UserTasks(allowed) {
		score := "-"
		if t.Score != nil {
			score = strconv.FormatFloat(*t.Score, 'f', -1, 64)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.CourseID, t.Title, t.DueAt.Format(dateLayout), t.Status, score)
	}
	return w.Flush()
}

func (cli *commandLine) prompt() {
	if isTerminalFunc(int(os.Stdin.Fd())) {
		fmt.Fprint(cli.out, "> ")
	}
}
