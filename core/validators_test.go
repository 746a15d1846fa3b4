package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validated struct {
	Name  string `json:"name" validate:"required,notblank"`
	Email string `json:"email" validate:"omitempty,email"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name       string
		input      validated
		wantFields []FieldError
	}{
		{name: "valid", input: validated{Name: "Ada"}},
		{name: "missing", input: validated{}, wantFields: []FieldError{{Field: "name", Error: "this field is required"}}},
		{name: "blank", input: validated{Name: "   "}, wantFields: []FieldError{{Field: "name", Error: "this field cannot be blank"}}},
		{name: "bad email", input: validated{Name: "Ada", Email: "nope"}, wantFields: []FieldError{{Field: "email", Error: "email must be a valid email address"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateStruct(tc.input)
			if tc.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			require.True(t, IsValidation(err))
			assert.Equal(t, tc.wantFields, err.(*ValidationError).Fields)
		})
	}
}

func TestErrors(t *testing.T) {
	err := NewRemoteError("insert message", assert.AnError)
	assert.True(t, IsRemoteFailure(err))
	assert.False(t, IsValidation(err))
	assert.Equal(t, "insert message: "+assert.AnError.Error(), err.Error())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Dedupe([]string{" a", "b", "", "a "}))
	assert.Empty(t, Dedupe(nil))
}
