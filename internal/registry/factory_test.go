package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryFor(t *testing.T) {
	r := New()
	f := &windowFactory{}

	_, err := FactoryFor[*fakeWindow](r)
	require.ErrorIs(t, err, ErrNoFactory)
	require.ErrorIs(t, RegisterFactory[*fakeWindow](r, nil), ErrNilFactory)
	require.ErrorIs(t, RegisterDefault[*fakeWindow](r, nil), ErrNilFactory)

	// default constructor ignores the tag and arguments
	require.NoError(t, RegisterDefault(r, f.unique))
	create, err := FactoryFor[*fakeWindow](r)
	require.NoError(t, err)
	w, err := create("X", 1, 2)
	require.NoError(t, err)
	assert.Nil(t, w.tag)
	assert.Empty(t, w.arg)

	// a tagged constructor takes precedence
	require.NoError(t, RegisterFactory(r, f.tagged))
	create, err = FactoryFor[*fakeWindow](r)
	require.NoError(t, err)
	w, err = create("X", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "X", w.tag)
	assert.Equal(t, []any{1, 2}, w.arg)
}

func TestShowOrCreateRegistered(t *testing.T) {
	r := New()
	f := &windowFactory{}

	_, err := ShowOrCreateRegistered[*toolWindow](r, "X", nil)
	require.ErrorIs(t, err, ErrNoFactory)

	require.NoError(t, RegisterFactory(r, f.tool))
	w, err := ShowOrCreateRegistered[*toolWindow](r, "X", nil)
	require.NoError(t, err)
	again, err := ShowOrCreateRegistered[*toolWindow](r, "X", nil)
	require.NoError(t, err)
	assert.Same(t, w, again)
}
