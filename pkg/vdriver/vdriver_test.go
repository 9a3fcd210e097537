package vdriver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCancellationIsIdempotent(t *testing.T) {
	var c Cancellation
	assert.False(t, c.Cancelled())
	c.Cancel()
	c.Cancel()
	assert.True(t, c.Cancelled())
}
