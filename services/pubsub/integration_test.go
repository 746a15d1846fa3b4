package pubsub

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core/chat"
	testutil "github.com/trezcool/classroom/tests"
)

func TestRedisBus(t *testing.T) {
	addr := os.Getenv("CLASSROOM_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CLASSROOM_TEST_REDIS_ADDR not set")
	}
	conf := testutil.NewConfig()
	conf.Realtime.RedisAddr = addr
	conf.Realtime.ChannelPrefix = "classroom_test"

	bus, err := NewRedisBus(conf, testutil.NewLogger())
	require.NoError(t, err)
	defer func() { _ = bus.Close() }()

	c := &collector{}
	sub, err := bus.Subscribe(context.Background(), "1", c.handlers())
	require.NoError(t, err)

	want := chat.Message{ID: "42", CourseID: "1", SenderID: "3", Body: "hi", CreatedAt: time.Now().UTC().Truncate(time.Microsecond)}
	require.NoError(t, bus.Publish(context.Background(), want))
	require.NoError(t, bus.Publish(context.Background(), chat.Message{ID: "43", CourseID: "2"}))

	assert.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.msgs) == 1 && c.msgs[0].ID == want.ID && c.msgs[0].CreatedAt.Equal(want.CreatedAt)
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sub.Unsubscribe())
}
