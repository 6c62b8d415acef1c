package timelineerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapNilIsNil(t *testing.T) {
	assert.Nil(t, Wrap("save", nil))
}

func TestWrapIsKind(t *testing.T) {
	err := Wrap("save", errors.New("disk full"))
	assert.True(t, Is(err, Transient))
	assert.False(t, Is(err, Degraded))
	assert.Contains(t, err.Error(), "disk full")
}

func TestInvariantViolationPanics(t *testing.T) {
	assert.Panics(t, func() {
		InvariantViolation("item %s linked to itself", "abc")
	})
}
