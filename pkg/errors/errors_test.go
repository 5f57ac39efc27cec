package errors

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatchesKindAndCause(t *testing.T) {
	cause := stderrors.New("broker said no")
	err := New(ErrPublish, "shoot", "pza/tester/boolean/wo/cmd", cause)

	assert.True(t, stderrors.Is(err, ErrPublish))
	assert.True(t, stderrors.Is(err, cause))
	assert.False(t, stderrors.Is(err, ErrTimeout))
	assert.Equal(t, "shoot: pza/tester/boolean/wo/cmd: publish failed: broker said no", err.Error())
}

func TestErrorWithoutCause(t *testing.T) {
	err := New(ErrInvalidMode, "set", "", nil)
	assert.Equal(t, "set: operation not allowed by attribute mode", err.Error())
	assert.True(t, Is(err, ErrInvalidMode))
}

func TestInvalidType(t *testing.T) {
	err := InvalidType("pza/a/b", "boolean", "number")

	require.True(t, Is(err, ErrInvalidType))

	var ite *InvalidTypeError
	require.True(t, As(err, &ite))
	assert.Equal(t, "boolean", ite.Expected)
	assert.Equal(t, "number", ite.Found)
}

func TestKind(t *testing.T) {
	assert.Nil(t, Kind(nil))
	assert.Nil(t, Kind(context.Canceled))
	assert.Equal(t, ErrTimeout, Kind(New(ErrTimeout, "set", "x", context.DeadlineExceeded)))

	wrapped := stderrors.Join(stderrors.New("outer"), New(ErrDecode, "inbound", "x", nil))
	assert.Equal(t, ErrDecode, Kind(wrapped))
}
