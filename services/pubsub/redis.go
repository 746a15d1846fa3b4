package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/chat"
)

var retryDelay = time.Second // mockable

// RedisBus is a push channel over Redis pub/sub, one Redis channel per course.
type RedisBus struct {
	rdb    *goredis.Client
	prefix string
	logger core.Logger
}

var _ chat.Channel = (*RedisBus)(nil)

func NewRedisBus(conf *core.Config, logger core.Logger) (*RedisBus, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        conf.Realtime.RedisAddr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis ping")
	}
	return &RedisBus{rdb: rdb, prefix: conf.Realtime.ChannelPrefix, logger: logger}, nil
}

func (b *RedisBus) channel(courseID string) string {
	return b.prefix + ":" + courseID
}

func (b *RedisBus) Publish(ctx context.Context, msg chat.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encoding message")
	}
	return errors.Wrap(b.rdb.Publish(ctx, b.channel(msg.CourseID), raw).Err(), "redis publish")
}

func (b *RedisBus) Subscribe(ctx context.Context, courseID string, h chat.Handlers) (chat.Subscription, error) {
	ps := b.rdb.Subscribe(ctx, b.channel(courseID))

	// ensures subscription actually started
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrap(err, "redis subscribe")
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &redisSub{ps: ps, cancel: cancel, done: make(chan struct{})}
	go b.forward(subCtx, sub, courseID, h)
	return sub, nil
}

// forward delivers the messages of `ps` until the subscription is closed.
// go-redis resubscribes after a connection loss; the following confirmation means pushes may have been missed.
func (b *RedisBus) forward(ctx context.Context, sub *redisSub, courseID string, h chat.Handlers) {
	defer close(sub.done)

	dropped := false
	for {
		raw, err := sub.ps.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !dropped {
				b.logger.Warn("redis: subscription dropped", err, map[string]interface{}{"course_id": courseID})
			}
			dropped = true
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
			continue
		}

		switch m := raw.(type) {
		case *goredis.Subscription:
			if m.Kind == "subscribe" && dropped {
				dropped = false
				b.logger.Info("redis: subscription resumed", map[string]interface{}{"course_id": courseID})
				h.Resume()
			}
		case *goredis.Message:
			var msg chat.Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				b.logger.Warn("redis: bad message payload", err)
				continue
			}
			if msg.CourseID == courseID {
				h.Insert(msg)
			}
		}
	}
}

func (b *RedisBus) Close() error {
	return b.rdb.Close()
}

type redisSub struct {
	ps     *goredis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
}

func (sub *redisSub) Unsubscribe() error {
	sub.cancel()
	err := sub.ps.Close()
	<-sub.done
	return err
}
