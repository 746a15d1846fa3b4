package notifysvc

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/trezcool/classroom/core"
)

type consoleNotifier struct {
	mu     sync.Mutex
	out    io.Writer
	prefix string
	logger core.Logger
}

var _ core.Notifier = (*consoleNotifier)(nil)

// NewConsoleNotifier prints notifications to `out` (stdout if nil).
// Error notifications are also logged as warnings.
func NewConsoleNotifier(out io.Writer, conf *core.Config, logger core.Logger) core.Notifier {
	if out == nil {
		out = os.Stdout
	}
	return &consoleNotifier{
		out:    out,
		prefix: "[" + conf.AppName + "] ",
		logger: logger,
	}
}

func (n *consoleNotifier) Notify(note core.Notification) {
	n.mu.Lock()
	_, _ = fmt.Fprintf(n.out, "%s%s %s\n", n.prefix, symbol(note.Level), note.Message)
	n.mu.Unlock()

	if note.Level == core.LevelError && n.logger != nil {
		n.logger.Warn("notified failure: " + note.Message)
	}
}

func symbol(lvl core.NotificationLevel) string {
	switch lvl {
	case core.LevelSuccess:
		return "✓"
	case core.LevelError:
		return "✗"
	}
	return "·"
}
