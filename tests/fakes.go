package testutil

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core/chat"
	"github.com/trezcool/classroom/core/course"
)

var ErrRemote = errors.New("remote unavailable")

// FailingCourseRepo wraps a course.Repository and fails the operations named in FailOn with Err.
type FailingCourseRepo struct {
	course.Repository

	mu     sync.Mutex
	Err    error
	FailOn map[string]bool // e.g. "CreateCourse"
}

func NewFailingCourseRepo(repo course.Repository, ops ...string) *FailingCourseRepo {
	r := &FailingCourseRepo{Repository: repo, Err: ErrRemote, FailOn: make(map[string]bool)}
	for _, op := range ops {
		r.FailOn[op] = true
	}
	return r
}

func (r *FailingCourseRepo) fail(op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailOn[op] {
		return r.Err
	}
	return nil
}

func (r *FailingCourseRepo) QueryAllCourses(ctx context.Context) ([]course.Course, error) {
	if err := r.fail("QueryAllCourses"); err != nil {
		return nil, err
	}
	return r.Repository.QueryAllCourses(ctx)
}

func (r *FailingCourseRepo) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	if err := r.fail("CreateCourse"); err != nil {
		return course.Course{}, err
	}
	return r.Repository.CreateCourse(ctx, c)
}

func (r *FailingCourseRepo) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	if err := r.fail("UpdateCourse"); err != nil {
		return course.Course{}, err
	}
	return r.Repository.UpdateCourse(ctx, c)
}

func (r *FailingCourseRepo) DeleteCourse(ctx context.Context, id string) error {
	if err := r.fail("DeleteCourse"); err != nil {
		return err
	}
	return r.Repository.DeleteCourse(ctx, id)
}

func (r *FailingCourseRepo) CreateTask(ctx context.Context, t course.Task) (course.Task, error) {
	if err := r.fail("CreateTask"); err != nil {
		return course.Task{}, err
	}
	return r.Repository.CreateTask(ctx, t)
}

func (r *FailingCourseRepo) UpdateTask(ctx context.Context, t course.Task) (course.Task, error) {
	if err := r.fail("UpdateTask"); err != nil {
		return course.Task{}, err
	}
	return r.Repository.UpdateTask(ctx, t)
}

func (r *FailingCourseRepo) DeleteTask(ctx context.Context, id string) error {
	if err := r.fail("DeleteTask"); err != nil {
		return err
	}
	return r.Repository.DeleteTask(ctx, id)
}

// Backend is a scriptable chat.Backend.
//
// When Hold is set, InsertMessage persists the message, sends it on Inserted,
// then waits for Hold to be closed before confirming: tests can deliver the push echo
// or tear the conversation down while the send is in flight. A failing insert waits for Hold too.
type Backend struct {
	mu        sync.Mutex
	History   []chat.Message
	ListErr   error
	InsertErr error
	IDs       []string // IDs assigned to inserted messages, in order; then "1", "2", ...
	Times     []time.Time
	ListCalls int

	Hold     chan struct{}
	Inserted chan chat.Message

	seq int
}

var _ chat.Backend = (*Backend)(nil)

func NewBackend(history ...chat.Message) *Backend {
	return &Backend{History: history, Inserted: make(chan chat.Message, 16)}
}

func (b *Backend) ListMessages(_ context.Context, courseID string) ([]chat.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ListCalls++
	if b.ListErr != nil {
		return nil, b.ListErr
	}
	msgs := make([]chat.Message, 0, len(b.History))
	for _, msg := range b.History {
		if msg.CourseID == courseID {
			msgs = append(msgs, msg)
		}
	}
	return msgs, nil
}

func (b *Backend) InsertMessage(_ context.Context, nm chat.NewMessage) (chat.Message, error) {
	b.mu.Lock()
	hold := b.Hold
	if err := b.InsertErr; err != nil {
		b.mu.Unlock()
		b.received(chat.Message{CourseID: nm.CourseID, SenderID: nm.SenderID, Body: nm.Body}, hold)
		return chat.Message{}, err
	}
	b.seq++
	msg := chat.Message{
		ID:        strconv.Itoa(b.seq),
		CourseID:  nm.CourseID,
		SenderID:  nm.SenderID,
		Body:      nm.Body,
		CreatedAt: time.Now().UTC(),
	}
	if len(b.IDs) > 0 {
		msg.ID, b.IDs = b.IDs[0], b.IDs[1:]
	}
	if len(b.Times) > 0 {
		msg.CreatedAt, b.Times = b.Times[0], b.Times[1:]
	}
	b.History = append(b.History, msg)
	b.mu.Unlock()

	b.received(msg, hold)
	return msg, nil
}

// received reports msg on Inserted then waits for hold, if any.
func (b *Backend) received(msg chat.Message, hold chan struct{}) {
	select {
	case b.Inserted <- msg:
	default:
	}
	if hold != nil {
		<-hold
	}
}

func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ListCalls
}

// Channel is a chat.Channel delivering pushes synchronously when the test calls Push.
type Channel struct {
	mu           sync.Mutex
	Err          error
	handlers     map[string]chat.Handlers
	Subscribed   int
	Unsubscribed int
}

var _ chat.Channel = (*Channel)(nil)

func NewChannel() *Channel {
	return &Channel{handlers: make(map[string]chat.Handlers)}
}

func (c *Channel) Subscribe(_ context.Context, courseID string, h chat.Handlers) (chat.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	c.Subscribed++
	c.handlers[courseID] = h
	return &channelSub{ch: c, courseID: courseID}, nil
}

// Active returns the number of open subscriptions.
func (c *Channel) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}

func (c *Channel) Push(msg chat.Message) {
	c.mu.Lock()
	h, ok := c.handlers[msg.CourseID]
	c.mu.Unlock()
	if ok {
		h.Insert(msg)
	}
}

func (c *Channel) Resume(courseID string) {
	c.mu.Lock()
	h, ok := c.handlers[courseID]
	c.mu.Unlock()
	if ok {
		h.Resume()
	}
}

type channelSub struct {
	ch       *Channel
	courseID string
	once     sync.Once
}

func (sub *channelSub) Unsubscribe() error {
	sub.once.Do(func() {
		sub.ch.mu.Lock()
		defer sub.ch.mu.Unlock()
		delete(sub.ch.handlers, sub.courseID)
		sub.ch.Unsubscribed++
	})
	return nil
}
