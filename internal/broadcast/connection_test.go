package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConnectionIdleSinceReflectsTouchActivity(t *testing.T) {
	c := &connection{}
	c.touchActivity()

	assert.False(t, c.idleSince(time.Now().Add(-time.Minute)))
	assert.True(t, c.idleSince(time.Now().Add(time.Minute)))
}
