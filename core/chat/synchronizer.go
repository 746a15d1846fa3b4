package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/user"
)

const tempIDPrefix = "temp-"

var (
	NowFunc   = time.Now                                                 // mockable
	NewTempID = func() string { return tempIDPrefix + uuid.NewString() } // mockable

	// EchoSkew is how much earlier than a pending send a server message may be stamped
	// and still be taken for its echo.
	EchoSkew = 30 * time.Second
)

// IsProvisional reports whether id was assigned locally to a message not confirmed by the server.
func IsProvisional(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

// Synchronizer owns the ordered message sequence of one course conversation.
// It merges the history fetch, optimistic local sends and pushed messages so that
// the sequence stays sorted by (CreatedAt, ID) with no duplicate ID.
type Synchronizer struct {
	courseID string
	backend  Backend
	session  *user.Session
	names    NameResolver
	notifier core.Notifier
	logger   core.Logger

	mu      sync.Mutex
	entries []*Entry
	index   map[string]*Entry
	closed  bool

	changes   chan struct{}
	ready     chan struct{}
	readyOnce sync.Once
}

func NewSynchronizer(courseID string, deps Deps) *Synchronizer {
	return &Synchronizer{
		courseID: courseID,
		backend:  deps.Backend,
		session:  deps.Session,
		names:    deps.Names,
		notifier: deps.Notifier,
		logger:   deps.Logger,
		index:    make(map[string]*Entry),
		changes:  make(chan struct{}, 1),
		ready:    make(chan struct{}),
	}
}

func (s *Synchronizer) CourseID() string { return s.courseID }

// Changes signals every change of the sequence. Signals are coalesced.
// The channel is closed by Close.
func (s *Synchronizer) Changes() <-chan struct{} { return s.changes }

// Ready is closed once the first history load ended, successfully or not.
func (s *Synchronizer) Ready() <-chan struct{} { return s.ready }

// Messages returns a snapshot of the sequence.
func (s *Synchronizer) Messages() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		res = append(res, *e)
	}
	return res
}

// LoadHistory fetches the whole conversation and merges it into the sequence.
// Entries already known (pushed or sent meanwhile) are kept. On failure the sequence is left as is.
func (s *Synchronizer) LoadHistory(ctx context.Context) error {
	defer s.markReady()

	msgs, err := s.backend.ListMessages(ctx, s.courseID)
	if err != nil {
		rerr := core.NewRemoteError("list messages", err)
		s.logger.Error("could not load messages", rerr, map[string]interface{}{"course_id": s.courseID})
		s.notify(core.Failure("Could not load messages"))
		return rerr
	}

	names := make(map[string]string)
	for _, msg := range msgs {
		if _, ok := names[msg.SenderID]; !ok {
			names[msg.SenderID] = s.senderName(ctx, msg.SenderID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	changed := false
	for _, msg := range msgs {
		if msg.CourseID != "" && msg.CourseID != s.courseID {
			continue
		}
		if s.merge(msg, names[msg.SenderID]) {
			changed = true
		}
	}
	if changed {
		s.signal()
	}
	return nil
}

// Send appends an optimistic entry for `body` then inserts it remotely.
// The entry is refined in place with the server ID and timestamp once confirmed;
// on failure it is kept and marked Unconfirmed.
func (s *Synchronizer) Send(ctx context.Context, body string) (Entry, error) {
	usr, err := s.session.MustCurrent()
	if err != nil {
		return Entry{}, err
	}
	nm := NewMessage{CourseID: s.courseID, SenderID: usr.ID, Body: body}
	if err := nm.Validate(); err != nil {
		return Entry{}, err
	}

	e := &Entry{
		Message: Message{
			ID:        NewTempID(),
			CourseID:  nm.CourseID,
			SenderID:  nm.SenderID,
			Body:      nm.Body,
			CreatedAt: NowFunc().UTC(),
		},
		SenderName: s.ownName(usr),
		State:      Pending,
	}

	local := *e

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Entry{}, ErrClosed
	}
	s.insert(e)
	s.signal()
	s.mu.Unlock()

	saved, err := s.backend.InsertMessage(ctx, nm)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		rerr := core.NewRemoteError("insert message", err)
		s.logger.Error("could not send message", rerr, usr, local.Message)
		s.notify(core.Failure("Could not send message"))
		if s.closed {
			local.State = Unconfirmed
			return local, rerr
		}
		if e.State != Pending || s.index[e.ID] != e {
			// adopted by a message that was not its echo
			e = &local
			s.insert(e)
		}
		e.State = Unconfirmed
		s.signal()
		return *e, rerr
	}

	if s.closed { // torn down meanwhile
		return Entry{Message: saved, SenderName: e.SenderName, State: Confirmed}, nil
	}
	return *s.confirm(e, saved), nil
}

// OnPushed merges a message pushed by the channel. It is idempotent.
// Messages of other courses and pushes received after Close are ignored.
func (s *Synchronizer) OnPushed(msg Message) {
	if msg.CourseID != s.courseID {
		return
	}
	name := s.senderName(context.Background(), msg.SenderID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.merge(msg, name) {
		s.signal()
	}
}

// Close discards the sequence. Later pushes, loads and confirmations are dropped.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.entries = nil
	s.index = nil
	close(s.changes)
	s.markReady()
}

func (s *Synchronizer) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// sequence operations; callers hold s.mu

// merge adds a server message unless its ID is already known.
// The echo of an own pending send adopts that entry instead of adding a new one.
func (s *Synchronizer) merge(msg Message, name string) bool {
	if _, ok := s.index[msg.ID]; ok {
		return false
	}
	if e := s.pendingFor(msg); e != nil {
		s.rekey(e, msg)
		return true
	}
	s.insert(&Entry{Message: msg, SenderName: name, State: Confirmed})
	return true
}

// confirm refines the optimistic entry `e` with its server copy.
func (s *Synchronizer) confirm(e *Entry, saved Message) *Entry {
	if existing, ok := s.index[saved.ID]; ok {
		if existing != e {
			// pushed before the confirmation and not adopted by e
			if e.State == Pending && s.index[e.ID] == e {
				s.remove(e)
			}
			existing.SenderName = e.SenderName
		}
		existing.State = Confirmed
		s.signal()
		return existing
	}
	if s.index[e.ID] == e && e.State == Pending {
		s.rekey(e, saved)
		s.signal()
		return e
	}
	// e was adopted by the echo of another identical message
	ne := &Entry{Message: saved, SenderName: e.SenderName, State: Confirmed}
	s.insert(ne)
	s.signal()
	return ne
}

// pendingFor returns the oldest pending entry `msg` could be the echo of.
// Messages stamped before the send (minus EchoSkew) are older copies, not echoes.
func (s *Synchronizer) pendingFor(msg Message) *Entry {
	for _, e := range s.entries {
		if e.State != Pending || msg.CreatedAt.Before(e.CreatedAt.Add(-EchoSkew)) {
			continue
		}
		if e.SenderID == msg.SenderID && e.Body == msg.Body {
			return e
		}
	}
	return nil
}

// rekey gives `e` the server ID and timestamp of `msg` and moves it to its sorted position.
func (s *Synchronizer) rekey(e *Entry, msg Message) {
	s.remove(e)
	e.ID = msg.ID
	e.CreatedAt = msg.CreatedAt
	if msg.CourseID != "" {
		e.CourseID = msg.CourseID
	}
	e.State = Confirmed
	s.insert(e)
}

func (s *Synchronizer) insert(e *Entry) {
	i := sort.Search(len(s.entries), func(i int) bool { return e.before(s.entries[i].Message) })
	s.entries = append(s.entries, nil)
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = e
	s.index[e.ID] = e
}

func (s *Synchronizer) remove(e *Entry) {
	for i, it := range s.entries {
		if it == e {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
	if s.index[e.ID] == e {
		delete(s.index, e.ID)
	}
}

func (s *Synchronizer) signal() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Synchronizer) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// names

func (s *Synchronizer) senderName(ctx context.Context, senderID string) string {
	if usr, ok := s.session.Current(); ok && usr.ID == senderID {
		return s.ownName(usr)
	}
	if s.names != nil {
		return s.names.DisplayName(ctx, senderID)
	}
	return s.fallbackName(senderID)
}

func (s *Synchronizer) ownName(usr user.User) string {
	if usr.Name != "" {
		return usr.Name
	}
	return s.fallbackName(usr.ID)
}

func (s *Synchronizer) fallbackName(id string) string {
	if s.names != nil {
		return s.names.FallbackName(id)
	}
	return fmt.Sprintf("User %s", user.ShortID(id))
}

func (s *Synchronizer) notify(n core.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(n)
	}
}
