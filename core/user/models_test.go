package user

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/classroom/core"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		name string
		want Role
	}{
		{"admin", Admin},
		{"instructor", Instructor},
		{"profesor", Instructor},
		{" Teacher ", Instructor},
		{"learner", Learner},
		{"student", Learner},
		{"ESTUDIANTE", Learner},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRole(tc.name)
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := ParseRole("janitor")
		assert.True(t, core.IsValidation(err))
	})
}

func TestMatchRole(t *testing.T) {
	name := func(r Role) string {
		return MatchRole(r,
			func() string { return "a" },
			func() string { return "i" },
			func() string { return "l" },
		)
	}
	assert.Equal(t, "a", name(Admin))
	assert.Equal(t, "i", name(Instructor))
	assert.Equal(t, "l", name(Learner))
	assert.Panics(t, func() { name(nil) })
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abcd", ShortID("abcdef-1234"))
	assert.Equal(t, "ab", ShortID("ab"))
}
