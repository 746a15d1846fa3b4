package chat

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/trezcool/classroom/core"
)

type State int

const (
	Unsubscribed State = iota
	Subscribing
	Subscribed
)

func (s State) String() string {
	switch s {
	case Unsubscribed:
		return "unsubscribed"
	case Subscribing:
		return "subscribing"
	case Subscribed:
		return "subscribed"
	}
	return "unknown"
}

// Manager binds the push channel to the conversation of the mounted course.
// It keeps at most one subscription open at a time.
type Manager struct {
	deps Deps
	conf core.ChatConfig

	op sync.Mutex // serializes Enter and Leave

	mu       sync.Mutex
	state    State
	courseID string
	conv     *Synchronizer
	sub      Subscription
	cancel   context.CancelFunc

	reloads singleflight.Group
}

func NewManager(deps Deps, conf core.ChatConfig) *Manager {
	return &Manager{deps: deps, conf: conf}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CourseID returns the mounted course, or "" when none is.
func (m *Manager) CourseID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.courseID
}

// Current returns the conversation of the mounted course, if any.
func (m *Manager) Current() (*Synchronizer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conv, m.conv != nil
}

// Enter mounts the conversation of course `courseID` and returns it.
// Entering the mounted course again returns the same conversation; entering another one
// tears the current subscription down first. The history is loaded in the background
// (see Synchronizer.Ready). A failed subscription leaves a usable conversation without live updates.
func (m *Manager) Enter(ctx context.Context, courseID string) (*Synchronizer, error) {
	courseID = core.CleanString(courseID)
	if courseID == "" {
		return nil, core.NewValidationError(errCourseRequired, core.FieldError{Field: "course_id", Error: errCourseRequired.Error()})
	}

	m.op.Lock()
	defer m.op.Unlock()

	if conv, ok := m.Current(); ok && conv.CourseID() == courseID {
		return conv, nil
	}
	if err := m.teardown(); err != nil {
		m.deps.Logger.Warn("could not unsubscribe", err)
	}

	convCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	conv := NewSynchronizer(courseID, m.deps)

	m.mu.Lock()
	m.state = Subscribing
	m.courseID = courseID
	m.conv = conv
	m.cancel = cancel
	m.mu.Unlock()

	sub, err := m.subscribe(convCtx, conv)

	m.mu.Lock()
	if err != nil {
		m.state = Unsubscribed
	} else {
		m.sub = sub
		m.state = Subscribed
	}
	m.mu.Unlock()

	if err != nil {
		rerr := core.NewRemoteError("subscribe", err)
		m.deps.Logger.Error("could not subscribe to course messages", rerr, map[string]interface{}{"course_id": courseID})
		m.notify(core.Failure("Live updates are unavailable"))
	}

	go func() { _ = conv.LoadHistory(convCtx) }()
	return conv, nil
}

// Leave unsubscribes and discards the mounted conversation.
func (m *Manager) Leave() error {
	m.op.Lock()
	defer m.op.Unlock()
	return m.teardown()
}

func (m *Manager) subscribe(ctx context.Context, conv *Synchronizer) (Subscription, error) {
	if m.deps.Channel == nil {
		return nil, errNoChannel
	}
	return m.deps.Channel.Subscribe(ctx, conv.CourseID(), Handlers{
		OnInsert: conv.OnPushed,
		OnResume: func() {
			if !m.conf.ReloadOnResume || conv.Closed() {
				return
			}
			m.deps.Logger.Info("push channel resumed, reloading messages", map[string]interface{}{"course_id": conv.CourseID()})
			_ = m.reload(ctx, conv)
		},
	})
}

// reload re-runs the history load of conv after a resume; concurrent reloads are collapsed.
func (m *Manager) reload(ctx context.Context, conv *Synchronizer) error {
	_, err, _ := m.reloads.Do(fmt.Sprintf("%p", conv), func() (interface{}, error) {
		return nil, conv.LoadHistory(ctx)
	})
	return err
}

// teardown closes the current subscription and conversation. Callers hold m.op.
func (m *Manager) teardown() error {
	m.mu.Lock()
	conv, sub, cancel := m.conv, m.sub, m.cancel
	m.state = Unsubscribed
	m.courseID = ""
	m.conv = nil
	m.sub = nil
	m.cancel = nil
	m.mu.Unlock()

	var err error
	if sub != nil {
		err = sub.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	if conv != nil {
		conv.Close()
	}
	return err
}

func (m *Manager) notify(n core.Notification) {
	if m.deps.Notifier != nil {
		m.deps.Notifier.Notify(n)
	}
}
