package pubsub

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/chat"
)

// Hub is an in-process push channel. Every subscriber owns a bounded outbound queue;
// when it is full the message is dropped and the subscriber is told to resume.
type Hub struct {
	mu      sync.RWMutex
	logger  core.Logger
	bufSize int
	subs    map[string]map[*hubSub]struct{} // by course ID
}

var _ chat.Channel = (*Hub)(nil)

func NewHub(conf *core.Config, logger core.Logger) *Hub {
	size := conf.Realtime.BufferSize
	if size <= 0 {
		size = 64
	}
	return &Hub{
		logger:  logger,
		bufSize: size,
		subs:    make(map[string]map[*hubSub]struct{}),
	}
}

type hubSub struct {
	hub      *Hub
	courseID string
	handlers chat.Handlers
	outbound chan chat.Message
	lagged   atomic.Bool
	kick     chan struct{}
	done     chan struct{}
	once     sync.Once
}

func (hub *Hub) Subscribe(_ context.Context, courseID string, h chat.Handlers) (chat.Subscription, error) {
	sub := &hubSub{
		hub:      hub,
		courseID: courseID,
		handlers: h,
		outbound: make(chan chat.Message, hub.bufSize),
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	hub.mu.Lock()
	subs, ok := hub.subs[courseID]
	if !ok {
		subs = make(map[*hubSub]struct{})
		hub.subs[courseID] = subs
	}
	subs[sub] = struct{}{}
	hub.mu.Unlock()

	go sub.forward()
	hub.logger.Debug("hub: subscribed", map[string]interface{}{"course_id": courseID})
	return sub, nil
}

// Publish queues msg for every subscriber of its course. It never blocks.
func (hub *Hub) Publish(_ context.Context, msg chat.Message) error {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for sub := range hub.subs[msg.CourseID] {
		select {
		case sub.outbound <- msg:
		default:
			hub.logger.Warn("hub: dropping message; outbound buffer full", msg)
			sub.lagged.Store(true)
			select {
			case sub.kick <- struct{}{}:
			default:
			}
		}
	}
	return nil
}

// Subscribers returns the number of open subscriptions to course `courseID`.
func (hub *Hub) Subscribers(courseID string) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.subs[courseID])
}

func (hub *Hub) remove(sub *hubSub) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if subs, ok := hub.subs[sub.courseID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(hub.subs, sub.courseID)
		}
	}
}

func (sub *hubSub) forward() {
	for {
		select {
		case <-sub.done:
			return
		case msg := <-sub.outbound:
			sub.handlers.Insert(msg)
		case <-sub.kick:
		}
		if sub.lagged.CompareAndSwap(true, false) {
			sub.handlers.Resume()
		}
	}
}

func (sub *hubSub) Unsubscribe() error {
	sub.once.Do(func() {
		sub.hub.remove(sub)
		close(sub.done)
		sub.hub.logger.Debug("hub: unsubscribed", map[string]interface{}{"course_id": sub.courseID})
	})
	return nil
}
