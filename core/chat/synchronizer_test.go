package chat_test

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/chat"
	"github.com/trezcool/classroom/core/user"
	notifysvc "github.com/trezcool/classroom/services/notify"
	dummydb "github.com/trezcool/classroom/storage/database/dummy"
	testutil "github.com/trezcool/classroom/tests"
)

const courseID = "1"

var (
	me    = user.User{ID: "3", Name: "Lea Learner", Role: user.Learner}
	other = user.User{ID: "2", Name: "John Instructor", Role: user.Instructor}
	t0    = time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
)

type fixture struct {
	sync     *chat.Synchronizer
	backend  *testutil.Backend
	session  *user.Session
	notifier *notifysvc.Recorder
}

func setup(t *testing.T, history ...chat.Message) fixture {
	t.Helper()

	db, err := dummydb.Open()
	require.NoError(t, err)
	usrRepo := dummydb.NewUserRepository(db)
	testutil.CreateUser(t, usrRepo, other.ID, other.Name, other.Role)

	f := fixture{
		backend:  testutil.NewBackend(history...),
		session:  testutil.NewSession(t, me),
		notifier: notifysvc.NewRecorder(),
	}
	f.sync = chat.NewSynchronizer(courseID, chat.Deps{
		Backend:  f.backend,
		Session:  f.session,
		Names:    user.NewService(usrRepo, "User"),
		Notifier: f.notifier,
		Logger:   testutil.NewLogger(),
	})
	return f
}

func msg(id, sender, body string, at time.Time) chat.Message {
	return chat.Message{ID: id, CourseID: courseID, SenderID: sender, Body: body, CreatedAt: at}
}

func ids(entries []chat.Entry) []string {
	res := make([]string, 0, len(entries))
	for _, e := range entries {
		res = append(res, e.ID)
	}
	return res
}

func assertOrdered(t *testing.T, entries []chat.Entry) {
	t.Helper()
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		assert.False(t, seen[e.ID], "duplicate id %q", e.ID)
		seen[e.ID] = true
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		ordered := prev.CreatedAt.Before(e.CreatedAt) || (prev.CreatedAt.Equal(e.CreatedAt) && prev.ID < e.ID)
		assert.True(t, ordered, "%q (%v) sorted before %q (%v)", prev.ID, prev.CreatedAt, e.ID, e.CreatedAt)
	}
}

func mockTempID(t *testing.T, id string) {
	orig := chat.NewTempID
	chat.NewTempID = func() string { return id }
	t.Cleanup(func() { chat.NewTempID = orig })
}

func mockNow(t *testing.T, now time.Time) {
	orig := chat.NowFunc
	chat.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { chat.NowFunc = orig })
}

type sendResult struct {
	entry chat.Entry
	err   error
}

func sendAsync(f fixture, body string) <-chan sendResult {
	res := make(chan sendResult, 1)
	go func() {
		e, err := f.sync.Send(context.Background(), body)
		res <- sendResult{e, err}
	}()
	return res
}

func TestSynchronizer_Send(t *testing.T) {
	t.Run("provisional entry is refined with the server id", func(t *testing.T) {
		mockTempID(t, "temp")
		f := setup(t)
		f.backend.IDs = []string{"42"}
		f.backend.Hold = make(chan struct{})

		res := sendAsync(f, "hi")
		<-f.backend.Inserted

		msgs := f.sync.Messages()
		if assert.Len(t, msgs, 1) {
			assert.Equal(t, "temp", msgs[0].ID)
			assert.Equal(t, chat.Pending, msgs[0].State)
			assert.Equal(t, me.Name, msgs[0].SenderName)
		}

		close(f.backend.Hold)
		r := <-res
		require.NoError(t, r.err)
		assert.Equal(t, "42", r.entry.ID)

		msgs = f.sync.Messages()
		if assert.Len(t, msgs, 1) {
			assert.Equal(t, "42", msgs[0].ID)
			assert.Equal(t, chat.Confirmed, msgs[0].State)
			assert.Equal(t, "hi", msgs[0].Body)
			assert.Equal(t, me.Name, msgs[0].SenderName)
		}
		assert.Empty(t, f.notifier.Notifications())
	})

	t.Run("echo pushed before the confirmation", func(t *testing.T) {
		f := setup(t)
		f.backend.IDs = []string{"42"}
		f.backend.Hold = make(chan struct{})

		res := sendAsync(f, "hi")
		saved := <-f.backend.Inserted
		f.sync.OnPushed(saved)

		msgs := f.sync.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "42", msgs[0].ID)

		close(f.backend.Hold)
		r := <-res
		require.NoError(t, r.err)

		msgs = f.sync.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "42", msgs[0].ID)
		assert.Equal(t, me.Name, msgs[0].SenderName)
		assert.Equal(t, chat.Confirmed, msgs[0].State)
	})

	t.Run("echo pushed after the confirmation", func(t *testing.T) {
		f := setup(t)
		f.backend.IDs = []string{"42"}

		e, err := f.sync.Send(context.Background(), "hi")
		require.NoError(t, err)
		f.sync.OnPushed(e.Message)

		msgs := f.sync.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "42", msgs[0].ID)
		assert.Equal(t, me.Name, msgs[0].SenderName)
	})

	t.Run("body is trimmed", func(t *testing.T) {
		f := setup(t)
		e, err := f.sync.Send(context.Background(), "  hello \n")
		require.NoError(t, err)
		assert.Equal(t, "hello", e.Body)
	})

	t.Run("blank body is rejected", func(t *testing.T) {
		f := setup(t)
		_, err := f.sync.Send(context.Background(), "   ")
		assert.True(t, core.IsValidation(err))
		assert.Empty(t, f.sync.Messages())
	})

	t.Run("no session", func(t *testing.T) {
		f := setup(t)
		f.session.Clear()
		_, err := f.sync.Send(context.Background(), "hi")
		assert.Equal(t, core.ErrNoSession, err)
		assert.Empty(t, f.sync.Messages())
	})

	t.Run("failed insert keeps the entry as unconfirmed", func(t *testing.T) {
		mockTempID(t, "temp")
		f := setup(t)
		f.backend.InsertErr = testutil.ErrRemote

		e, err := f.sync.Send(context.Background(), "hi")
		assert.True(t, core.IsRemoteFailure(err))
		assert.Equal(t, chat.Unconfirmed, e.State)

		msgs := f.sync.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "temp", msgs[0].ID)
		assert.Equal(t, chat.Unconfirmed, msgs[0].State)
		assert.Equal(t, []core.NotificationLevel{core.LevelError}, f.notifier.Levels())
	})

	t.Run("teardown during an in-flight send", func(t *testing.T) {
		f := setup(t)
		f.backend.IDs = []string{"42"}
		f.backend.Hold = make(chan struct{})

		res := sendAsync(f, "hi")
		<-f.backend.Inserted
		f.sync.Close()
		close(f.backend.Hold)

		r := <-res
		require.NoError(t, r.err)
		assert.Equal(t, "42", r.entry.ID)
		assert.Empty(t, f.sync.Messages())
		assert.True(t, f.sync.Closed())

		_, err := f.sync.Send(context.Background(), "again")
		assert.Equal(t, chat.ErrClosed, err)
	})

	t.Run("two identical sends", func(t *testing.T) {
		f := setup(t)
		f.backend.IDs = []string{"41", "42"}
		f.backend.Hold = make(chan struct{})

		res1 := sendAsync(f, "hi")
		saved1 := <-f.backend.Inserted
		res2 := sendAsync(f, "hi")
		saved2 := <-f.backend.Inserted

		// echoes in reverse order
		f.sync.OnPushed(saved2)
		f.sync.OnPushed(saved1)
		close(f.backend.Hold)
		require.NoError(t, (<-res1).err)
		require.NoError(t, (<-res2).err)

		msgs := f.sync.Messages()
		assert.ElementsMatch(t, []string{"41", "42"}, ids(msgs))
		assertOrdered(t, msgs)
		for _, m := range msgs {
			assert.Equal(t, chat.Confirmed, m.State)
		}
	})
}

func TestSynchronizer_Send_failureAfterIdenticalMessage(t *testing.T) {
	tests := []struct {
		name   string
		sentAt time.Time
	}{
		{name: "older copy is not an echo", sentAt: t0.Add(time.Hour)},
		{name: "copy within the skew is adopted", sentAt: t0.Add(10 * time.Second)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockTempID(t, "temp")
			mockNow(t, tc.sentAt)
			f := setup(t, msg("h1", me.ID, "ok", t0))
			f.backend.InsertErr = testutil.ErrRemote
			f.backend.Hold = make(chan struct{})

			res := sendAsync(f, "ok")
			<-f.backend.Inserted
			require.NoError(t, f.sync.LoadHistory(context.Background()))
			close(f.backend.Hold)

			r := <-res
			assert.True(t, core.IsRemoteFailure(r.err))
			assert.Equal(t, "temp", r.entry.ID)
			assert.Equal(t, chat.Unconfirmed, r.entry.State)

			msgs := f.sync.Messages()
			require.Len(t, msgs, 2)
			assert.Equal(t, []string{"h1", "temp"}, ids(msgs))
			assert.Equal(t, chat.Confirmed, msgs[0].State)
			assert.Equal(t, chat.Unconfirmed, msgs[1].State)
			assert.True(t, tc.sentAt.Equal(msgs[1].CreatedAt))
		})
	}
}

func TestSynchronizer_OnPushed(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		f := setup(t)
		m := msg("7", other.ID, "hello", t0)
		f.sync.OnPushed(m)
		f.sync.OnPushed(m)
		f.sync.OnPushed(m)
		assert.Equal(t, []string{"7"}, ids(f.sync.Messages()))
	})

	t.Run("out of order pushes are sorted", func(t *testing.T) {
		f := setup(t)
		f.sync.OnPushed(msg("c", other.ID, "3", t0.Add(2*time.Second)))
		f.sync.OnPushed(msg("a", other.ID, "1", t0))
		f.sync.OnPushed(msg("b", other.ID, "2", t0.Add(time.Second)))
		f.sync.OnPushed(msg("a2", other.ID, "1bis", t0)) // same timestamp: by id

		msgs := f.sync.Messages()
		assert.Equal(t, []string{"a", "a2", "b", "c"}, ids(msgs))
		assertOrdered(t, msgs)
	})

	t.Run("other courses are ignored", func(t *testing.T) {
		f := setup(t)
		m := msg("7", other.ID, "hello", t0)
		m.CourseID = "2"
		f.sync.OnPushed(m)
		assert.Empty(t, f.sync.Messages())
	})

	t.Run("ignored after close", func(t *testing.T) {
		f := setup(t)
		f.sync.Close()
		f.sync.OnPushed(msg("7", other.ID, "hello", t0))
		assert.Empty(t, f.sync.Messages())
	})

	t.Run("sender names", func(t *testing.T) {
		f := setup(t)
		f.sync.OnPushed(msg("1", other.ID, "known", t0))
		f.sync.OnPushed(msg("2", "abcdef-123", "unknown", t0.Add(time.Second)))
		f.sync.OnPushed(msg("3", me.ID, "mine, from another device", t0.Add(2*time.Second)))

		msgs := f.sync.Messages()
		require.Len(t, msgs, 3)
		assert.Equal(t, other.Name, msgs[0].SenderName)
		assert.Equal(t, "User abcd", msgs[1].SenderName)
		assert.Equal(t, me.Name, msgs[2].SenderName)
	})

	t.Run("configured prefix for unnamed senders", func(t *testing.T) {
		db, err := dummydb.Open()
		require.NoError(t, err)
		anonymous := user.User{ID: "9f3c-77", Role: user.Learner}
		conv := chat.NewSynchronizer(courseID, chat.Deps{
			Backend: testutil.NewBackend(),
			Session: testutil.NewSession(t, anonymous),
			Names:   user.NewService(dummydb.NewUserRepository(db), "Usuario"),
			Logger:  testutil.NewLogger(),
		})

		conv.OnPushed(msg("1", "abcdef-123", "unknown", t0))
		e, err := conv.Send(context.Background(), "mine")
		require.NoError(t, err)

		assert.Equal(t, "Usuario 9f3c", e.SenderName)
		msgs := conv.Messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, "Usuario abcd", msgs[0].SenderName)
	})

	t.Run("signals changes", func(t *testing.T) {
		f := setup(t)
		f.sync.OnPushed(msg("7", other.ID, "hello", t0))
		select {
		case <-f.sync.Changes():
		default:
			t.Fatal("no change signaled")
		}
	})
}

func TestSynchronizer_LoadHistory(t *testing.T) {
	history := []chat.Message{
		msg("1", other.ID, "welcome", t0),
		msg("2", me.ID, "thanks", t0.Add(time.Minute)),
	}

	t.Run("loads the course history", func(t *testing.T) {
		f := setup(t, history...)
		require.NoError(t, f.sync.LoadHistory(context.Background()))

		msgs := f.sync.Messages()
		assert.Equal(t, []string{"1", "2"}, ids(msgs))
		assert.Equal(t, other.Name, msgs[0].SenderName)
		assert.Equal(t, me.Name, msgs[1].SenderName)

		select {
		case <-f.sync.Ready():
		default:
			t.Fatal("not ready after load")
		}
	})

	t.Run("keeps pushes received before the load", func(t *testing.T) {
		f := setup(t, history...)
		f.sync.OnPushed(msg("3", other.ID, "late", t0.Add(2*time.Minute)))
		f.sync.OnPushed(history[0])

		require.NoError(t, f.sync.LoadHistory(context.Background()))
		msgs := f.sync.Messages()
		assert.Equal(t, []string{"1", "2", "3"}, ids(msgs))
		assertOrdered(t, msgs)
	})

	t.Run("reload is idempotent", func(t *testing.T) {
		f := setup(t, history...)
		require.NoError(t, f.sync.LoadHistory(context.Background()))
		require.NoError(t, f.sync.LoadHistory(context.Background()))
		assert.Equal(t, []string{"1", "2"}, ids(f.sync.Messages()))
	})

	t.Run("failure keeps the current sequence", func(t *testing.T) {
		f := setup(t, history...)
		f.sync.OnPushed(history[0])
		f.backend.ListErr = testutil.ErrRemote

		err := f.sync.LoadHistory(context.Background())
		assert.True(t, core.IsRemoteFailure(err))
		assert.Equal(t, []string{"1"}, ids(f.sync.Messages()))
		assert.Equal(t, []core.NotificationLevel{core.LevelError}, f.notifier.Levels())

		select {
		case <-f.sync.Ready():
		default:
			t.Fatal("not ready after a failed load")
		}
	})

	t.Run("history holding a pending send", func(t *testing.T) {
		f := setup(t)
		f.backend.IDs = []string{"42"}
		f.backend.Hold = make(chan struct{})

		res := sendAsync(f, "hi")
		<-f.backend.Inserted
		// the history now holds the inserted message
		require.NoError(t, f.sync.LoadHistory(context.Background()))
		close(f.backend.Hold)
		require.NoError(t, (<-res).err)

		assert.Equal(t, []string{"42"}, ids(f.sync.Messages()))
	})
}

// Any interleaving of sends, pushed echoes, foreign pushes and reloads converges to
// a sorted sequence holding every message exactly once.
func TestSynchronizer_interleavings(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			rnd := rand.New(rand.NewSource(seed))
			f := setup(t)

			var ops []func()
			var want []string
			for i := 0; i < 5; i++ {
				id := fmt.Sprintf("f%d", i)
				want = append(want, id)
				m := msg(id, other.ID, fmt.Sprintf("foreign %d", i), t0.Add(time.Duration(rnd.Intn(10))*time.Second))
				ops = append(ops, func() { f.sync.OnPushed(m) })
				if rnd.Intn(2) == 0 {
					ops = append(ops, func() { f.sync.OnPushed(m) }) // duplicate delivery
				}
			}
			rnd.Shuffle(len(ops), func(i, j int) { ops[i], ops[j] = ops[j], ops[i] })

			for i, op := range ops {
				go op()
				if i%3 == 0 {
					go func() { _ = f.sync.LoadHistory(context.Background()) }()
				}
			}

			var sent []string
			for i := 0; i < 3; i++ {
				e, err := f.sync.Send(context.Background(), fmt.Sprintf("mine %d", i))
				require.NoError(t, err)
				sent = append(sent, e.ID)
				if rnd.Intn(2) == 0 {
					go f.sync.OnPushed(e.Message)
				}
			}
			want = append(want, sent...)

			assert.Eventually(t, func() bool {
				got := ids(f.sync.Messages())
				sort.Strings(got)
				exp := append([]string(nil), want...)
				sort.Strings(exp)
				return assert.ObjectsAreEqual(exp, got)
			}, time.Second, 5*time.Millisecond)
			assertOrdered(t, f.sync.Messages())
		})
	}
}
