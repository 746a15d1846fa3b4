package chat

import (
	"context"
	"errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/user"
)

var (
	// errors
	ErrClosed = errors.New("conversation closed")

	errCourseRequired = errors.New("course is required")
	errNoChannel      = errors.New("no push channel configured")
)

type (
	// Backend is the message collection of the remote data service.
	Backend interface {
		// ListMessages returns all messages of course `courseID`, oldest first.
		ListMessages(ctx context.Context, courseID string) ([]Message, error)
		// InsertMessage stores nm and returns it with its server ID and timestamp.
		InsertMessage(ctx context.Context, nm NewMessage) (Message, error)
	}

	// Handlers are the callbacks of a push subscription. They are called asynchronously.
	Handlers struct {
		// OnInsert receives every message inserted for the subscribed course.
		OnInsert func(msg Message)
		// OnResume is called after the stream was dropped and resumed: pushes may have been missed.
		OnResume func()
	}

	// Subscription is an open push stream.
	Subscription interface {
		Unsubscribe() error
	}

	// Channel is the push channel of the remote data service.
	Channel interface {
		Subscribe(ctx context.Context, courseID string, h Handlers) (Subscription, error)
	}

	// NameResolver gives the display name of a sender.
	// FallbackName names a sender without a profile name, without any lookup.
	NameResolver interface {
		DisplayName(ctx context.Context, userID string) string
		FallbackName(userID string) string
	}

	// Deps are the collaborators of a conversation.
	Deps struct {
		Backend  Backend
		Channel  Channel
		Session  *user.Session
		Names    NameResolver
		Notifier core.Notifier
		Logger   core.Logger
	}
)

// Insert calls OnInsert if set.
func (h Handlers) Insert(msg Message) {
	if h.OnInsert != nil {
		h.OnInsert(msg)
	}
}

// Resume calls OnResume if set.
func (h Handlers) Resume() {
	if h.OnResume != nil {
		h.OnResume()
	}
}
