package vterrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewHasNoCause(t *testing.T) {
	err := New(KindInvalidInput, "matcher.Match", "empty hypothesis")
	assert.Nil(t, err.Unwrap())
	assert.Contains(t, err.Error(), "invalid_input")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindIoFailed, "aliaspersist.writeMaster", cause)
	assert.Equal(t, cause, err.Unwrap())
	assert.ErrorIs(t, err, cause)
}

func TestIsMatchesKind(t *testing.T) {
	err := New(KindBufferFull, "orchestrator.enqueue", "pending buffer at capacity")
	assert.True(t, Is(err, KindBufferFull))
	assert.False(t, Is(err, KindIoFailed))
}

func TestIsRejectsNonVtError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), KindIoFailed))
}
