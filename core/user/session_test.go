package user

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/classroom/core"
)

func TestSession(t *testing.T) {
	sess := NewSession()
	_, err := sess.MustCurrent()
	assert.Equal(t, core.ErrNoSession, err)

	assert.True(t, core.IsValidation(sess.Establish(User{ID: " ", Role: Admin})))
	assert.True(t, core.IsValidation(sess.Establish(User{ID: "1"})))

	assert.NoError(t, sess.Establish(User{ID: " 1 ", Name: "Ada", Role: Admin}))
	usr, err := sess.MustCurrent()
	assert.NoError(t, err)
	assert.Equal(t, "1", usr.ID)
	assert.True(t, usr.IsAdmin())

	sess.Clear()
	_, ok := sess.Current()
	assert.False(t, ok)

	var nilSess *Session
	_, ok = nilSess.Current()
	assert.False(t, ok)
}
