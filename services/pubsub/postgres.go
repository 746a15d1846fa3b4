package pubsub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/chat"
)

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// PGListener is a push channel over Postgres LISTEN/NOTIFY.
// The message table trigger notifies every inserted row as JSON on one channel;
// rows are filtered by course on the client.
type PGListener struct {
	dsn     string
	channel string
	logger  core.Logger
}

var _ chat.Channel = (*PGListener)(nil)

func NewPGListener(conf *core.Config, logger core.Logger) *PGListener {
	return &PGListener{dsn: conf.Database.DSN, channel: conf.Realtime.ChannelPrefix, logger: logger}
}

func (l *PGListener) Subscribe(_ context.Context, courseID string, h chat.Handlers) (chat.Subscription, error) {
	listener := pq.NewListener(l.dsn, minReconnectInterval, maxReconnectInterval, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			l.logger.Warn("postgres: listener event", err, map[string]interface{}{"event": int(ev), "course_id": courseID})
		}
	})
	if err := listener.Listen(l.channel); err != nil {
		_ = listener.Close()
		return nil, errors.Wrapf(err, "listening to %s", l.channel)
	}

	sub := &pgSub{listener: listener, done: make(chan struct{}), stopped: make(chan struct{})}
	go l.forward(sub, courseID, h)
	return sub, nil
}

func (l *PGListener) forward(sub *pgSub, courseID string, h chat.Handlers) {
	defer close(sub.stopped)

	for {
		select {
		case <-sub.done:
			return
		case n := <-sub.listener.Notify:
			if n == nil {
				// connection re-established: notifications may have been lost
				h.Resume()
				continue
			}
			var msg chat.Message
			if err := json.Unmarshal([]byte(n.Extra), &msg); err != nil {
				l.logger.Warn("postgres: bad notification payload", err)
				continue
			}
			if msg.CourseID == courseID {
				msg.CreatedAt = msg.CreatedAt.UTC()
				h.Insert(msg)
			}
		case <-time.After(pingInterval):
			go func() { _ = sub.listener.Ping() }()
		}
	}
}

type pgSub struct {
	listener *pq.Listener
	once     sync.Once
	done     chan struct{}
	stopped  chan struct{}
}

func (sub *pgSub) Unsubscribe() error {
	var err error
	sub.once.Do(func() {
		close(sub.done)
		<-sub.stopped
		err = sub.listener.Close()
	})
	return err
}
