package core

type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelInfo    NotificationLevel = "info"
	LevelError   NotificationLevel = "error"
)

type (
	// Notification is a transient, user-facing message describing the outcome of an operation.
	Notification struct {
		Level   NotificationLevel
		Message string
	}

	// Notifier is any service that can surface notifications to the user.
	Notifier interface {
		Notify(n Notification)
	}
)

func Success(msg string) Notification { return Notification{Level: LevelSuccess, Message: msg} }
func Info(msg string) Notification    { return Notification{Level: LevelInfo, Message: msg} }
func Failure(msg string) Notification { return Notification{Level: LevelError, Message: msg} }
