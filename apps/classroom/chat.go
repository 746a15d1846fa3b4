package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/chat"
	"github.com/trezcool/classroom/core/course"
)

const quitCmd = "/quit"

// runChat mounts the conversation of course `courseID` and sends every input line until /quit or EOF.
func (cli *commandLine) runChat(ctx context.Context, courseID string) error {
	if _, ok := cli.store.GetCourse(courseID); !ok {
		return course.ErrNotFound
	}
	allowed := false
	for _, c := range cli.visibleCourses() {
		if c.ID == courseID {
			allowed = true
			break
		}
	}
	if !allowed {
		return core.ErrPermissionDenied
	}

	conv, err := cli.chat.Enter(ctx, courseID)
	if err != nil {
		return err
	}

	p := &transcript{out: cli.out, seen: make(map[string]bool)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-conv.Ready()
		p.flush(conv)
		for range conv.Changes() {
			p.flush(conv)
		}
	}()

	scanner := bufio.NewScanner(cli.in)
	for cli.prompt(); scanner.Scan(); cli.prompt() {
		line := scanner.Text()
		if strings.TrimSpace(line) == quitCmd {
			break
		}
		_, _ = conv.Send(ctx, line) // failures are notified; blank lines are rejected
	}
	scanErr := scanner.Err()

	<-conv.Ready()
	p.flush(conv)
	err = cli.chat.Leave()
	<-done
	if scanErr != nil {
		return scanErr
	}
	return err
}

// transcript prints the entries of a conversation once each, after the server confirmed them.
type transcript struct {
	mu   sync.Mutex
	out  io.Writer
	seen map[string]bool
}

func (p *transcript) flush(conv *chat.Synchronizer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range conv.Messages() {
		if e.State == chat.Pending || p.seen[e.ID] {
			continue
		}
		p.seen[e.ID] = true
		line := fmt.Sprintf("[%s] %s: %s", e.CreatedAt.Local().Format("15:04"), e.SenderName, e.Body)
		if e.State == chat.Unconfirmed {
			line += " (not delivered)"
		}
		fmt.Fprintln(p.out, line)
	}
}
