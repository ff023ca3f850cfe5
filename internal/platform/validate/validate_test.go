package validate

import (
	"testing"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDate("2024-03-10T12:30:00-03:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC), got)

	for _, bad := range []string{"", "  ", "10/03/2024", "mañana"} {
		_, err := ParseDate(bad)
		assert.ErrorIs(t, err, ErrBadDate, bad)
	}
}

type dueReq struct {
	Due string `binding:"omitempty,isodate"`
}

func TestRegister_IsoDateRule(t *testing.T) {
	require.NoError(t, Register())
	require.NoError(t, Register())

	assert.NoError(t, binding.Validator.ValidateStruct(dueReq{Due: "2024-01-31"}))
	assert.NoError(t, binding.Validator.ValidateStruct(dueReq{}))
	assert.Error(t, binding.Validator.ValidateStruct(dueReq{Due: "31-01-2024"}))
}
