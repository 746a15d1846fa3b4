package notifysvc

import (
	"sync"

	"github.com/trezcool/classroom/core"
)

// Recorder keeps every notification it receives. Meant for tests.
type Recorder struct {
	mu    sync.Mutex
	notes []core.Notification
}

var _ core.Notifier = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{notes: make([]core.Notification, 0)}
}

func (r *Recorder) Notify(n core.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

// Notifications returns the received notifications, oldest first.
func (r *Recorder) Notifications() []core.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Notification(nil), r.notes...)
}

// Levels returns the levels of the received notifications, oldest first.
func (r *Recorder) Levels() []core.NotificationLevel {
	r.mu.Lock()
	defer r.mu.Unlock()
	lvls := make([]core.NotificationLevel, 0, len(r.notes))
	for _, n := range r.notes {
		lvls = append(lvls, n.Level)
	}
	return lvls
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = r.notes[:0]
}
