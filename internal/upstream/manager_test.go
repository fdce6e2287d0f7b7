package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kenelite/go-solo/internal/config"
	"github.com/kenelite/go-solo/internal/registry"
)

// quietProber never ticks during a test; probes run through ProbeNow.
var quietProber = config.ProberConfig{IntervalMS: 3_600_000, TimeoutMS: 1000}

func newTestManager(t *testing.T, cfgs ...config.UpstreamConfig) *Manager {
	t.Helper()
	if len(cfgs) == 0 {
		cfgs = []config.UpstreamConfig{{Name: "u", Targets: []string{"http://127.0.0.1:1/a", "http://127.0.0.1:1/b"}, Timeout: 1000}}
	}
	m, err := NewManager(cfgs, quietProber, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })
	return m
}

func TestManagerBasic(t *testing.T) {
	_, err := NewManager([]config.UpstreamConfig{{Name: "u"}}, quietProber, nil, nil)
	assert.Error(t, err, "targets required")

	m := newTestManager(t)
	assert.Equal(t, []string{"u"}, m.Upstreams())

	s, err := m.Open("u")
	require.NoError(t, err)
	require.Len(t, s.Targets, 2)
	assert.Equal(t, "http://127.0.0.1:1/a", s.Targets[0].String())

	first, err := s.Target()
	require.NoError(t, err)
	second, err := s.Target()
	require.NoError(t, err)
	assert.NotEqual(t, first.String(), second.String())
}

func TestManager_OpenReusesSession(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Open("u")
	require.NoError(t, err)
	again, err := m.Open("u")
	require.NoError(t, err)
	assert.Same(t, s, again)

	info := s.Info()
	assert.True(t, info.Visible)
	assert.Equal(t, 1, info.Activations)
	assert.False(t, info.FocusedAt.IsZero())

	p, ok := m.CurrentProber()
	require.True(t, ok)
	assert.Equal(t, 1, p.Sessions())
}

func TestManager_UnknownUpstream(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Open("nope")
	assert.ErrorIs(t, err, ErrUnknownUpstream)
	_, ok := m.Lookup("nope")
	assert.False(t, ok)
	assert.NoError(t, m.Close("nope"))
}

func TestManager_CloseThenReopen(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Open("u")
	require.NoError(t, err)
	require.NoError(t, m.Close("u"))

	assert.True(t, s.Disposed())
	_, err = s.Target()
	assert.ErrorIs(t, err, registry.ErrDisposed)
	_, ok := m.Lookup("u")
	assert.False(t, ok)

	p, _ := m.CurrentProber()
	assert.Zero(t, p.Sessions(), "disposed session detached from prober")

	fresh, err := m.Open("u")
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, fresh.ID)
}

func TestManager_RetagRotatesSession(t *testing.T) {
	m := newTestManager(t)

	old, err := m.Open("u")
	require.NoError(t, err)

	ok, err := m.Retag("u", "u-draining")
	require.NoError(t, err)
	require.True(t, ok)

	_, found := m.Lookup("u")
	assert.False(t, found)
	got, found := m.Lookup("u-draining")
	require.True(t, found)
	assert.Same(t, old, got)

	fresh, err := m.Open("u")
	require.NoError(t, err)
	assert.NotSame(t, old, fresh)

	ok, err = m.Retag("missing", "x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_OpenAs(t *testing.T) {
	m := newTestManager(t)

	s, err := m.OpenAs("billing-canary", "u")
	require.NoError(t, err)
	assert.Equal(t, "u", s.Upstream)

	got, ok := m.Lookup("billing-canary")
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestManager_CloseAllKeepsProber(t *testing.T) {
	m := newTestManager(t,
		config.UpstreamConfig{Name: "u", Targets: []string{"http://127.0.0.1:1/a"}, Timeout: 1000},
		config.UpstreamConfig{Name: "v", Targets: []string{"http://127.0.0.1:1/b"}, Timeout: 1000},
	)
	su, err := m.Open("u")
	require.NoError(t, err)
	sv, err := m.Open("v")
	require.NoError(t, err)

	require.NoError(t, m.CloseAll())
	assert.True(t, su.Disposed())
	assert.True(t, sv.Disposed())

	p, ok := m.CurrentProber()
	require.True(t, ok)
	assert.False(t, p.Disposed())

	require.NoError(t, m.Shutdown())
	assert.True(t, p.Disposed())
	_, ok = m.CurrentProber()
	assert.False(t, ok)
}

func TestProber_ProbesAttachedSessions(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	m := newTestManager(t, config.UpstreamConfig{Name: "u", Targets: []string{healthy.URL, broken.URL}, Timeout: 1000})
	_, err := m.Open("u")
	require.NoError(t, err)

	p, ok := m.CurrentProber()
	require.True(t, ok)
	p.ProbeNow(context.Background())

	results := p.Results()
	require.Len(t, results, 2)
	byTarget := map[string]ProbeResult{}
	for _, r := range results {
		byTarget[r.Target] = r
	}
	assert.True(t, byTarget[healthy.URL].Healthy)
	assert.Equal(t, http.StatusOK, byTarget[healthy.URL].Status)
	assert.False(t, byTarget[broken.URL].Healthy)
	assert.Equal(t, http.StatusServiceUnavailable, byTarget[broken.URL].Status)

	require.NoError(t, m.Close("u"))
	assert.Empty(t, p.Results())
}

func TestProber_CloseWithoutShow(t *testing.T) {
	p := newProber(quietProber, nil)
	require.NoError(t, p.Close())
	assert.True(t, p.Disposed())
	assert.ErrorIs(t, p.Close(), registry.ErrDisposed)
}
