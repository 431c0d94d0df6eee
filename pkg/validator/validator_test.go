package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type input struct {
	Username string `json:"username" validate:"required,max=8"`
	RoomId   string `json:"room_id" validate:"omitempty,len=4"`
}

func TestValidate(t *testing.T) {
	v := NewValidator()

	errs, ok := v.Validate(input{Username: "bob", RoomId: "AF3D"})
	assert.True(t, ok)
	assert.Empty(t, errs)

	errs, ok = v.Validate(input{RoomId: "AF3"})
	require.False(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, "username", errs[0].Field)
	assert.Equal(t, "REQUIRED", errs[0].Code)
	assert.Equal(t, "username is required", errs[0].Message)
	assert.Equal(t, "room_id", errs[1].Field)
	assert.Equal(t, "LEN", errs[1].Code)
}

func TestValidateNonStruct(t *testing.T) {
	v := NewValidator()

	_, ok := v.Validate(42)
	assert.True(t, ok)
}
