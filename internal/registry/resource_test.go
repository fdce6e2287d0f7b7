package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLifecycle_DisposeFiresSubscribersOnce(t *testing.T) {
	var l Lifecycle
	fired := 0
	l.OnDisposed(func() { fired++ })
	l.OnDisposed(nil)

	assert.NoError(t, l.Check())
	assert.True(t, l.Dispose())
	assert.False(t, l.Dispose())
	assert.Equal(t, 1, fired)
	assert.True(t, l.Disposed())
	assert.ErrorIs(t, l.Check(), ErrDisposed)
}

func TestLifecycle_LateSubscriberRunsImmediately(t *testing.T) {
	var l Lifecycle
	l.Dispose()

	fired := false
	l.OnDisposed(func() { fired = true })
	assert.True(t, fired)
}

func TestLifecycle_SubscriberMayResubscribe(t *testing.T) {
	var l Lifecycle
	nested := false
	l.OnDisposed(func() {
		l.OnDisposed(func() { nested = true })
	})
	l.Dispose()
	assert.True(t, nested)
}
