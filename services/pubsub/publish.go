package pubsub

import (
	"context"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/chat"
)

// Publisher pushes a stored message to its course subscribers.
type Publisher interface {
	Publish(ctx context.Context, msg chat.Message) error
}

type publishingBackend struct {
	chat.Backend
	pub    Publisher
	logger core.Logger
}

// NewPublishingBackend returns b publishing every inserted message to pub,
// the way the remote data service echoes inserts on its push channel.
// A failed publish never fails the insert.
func NewPublishingBackend(b chat.Backend, pub Publisher, logger core.Logger) chat.Backend {
	return &publishingBackend{Backend: b, pub: pub, logger: logger}
}

func (b *publishingBackend) InsertMessage(ctx context.Context, nm chat.NewMessage) (chat.Message, error) {
	msg, err := b.Backend.InsertMessage(ctx, nm)
	if err != nil {
		return msg, err
	}
	if err := b.pub.Publish(ctx, msg); err != nil {
		b.logger.Warn("could not publish message", err, msg)
	}
	return msg, nil
}
