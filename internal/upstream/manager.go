package upstream

import (
	"errors"
	"fmt"
	"net/url"
	"sort"

	"github.com/kenelite/go-solo/internal/config"
	"github.com/kenelite/go-solo/internal/observability"
	"github.com/kenelite/go-solo/internal/registry"
)

// ErrUnknownUpstream is returned when a name has no upstream definition.
var ErrUnknownUpstream = errors.New("unknown upstream")

// Manager opens sessions on configured upstreams through the registry: one
// live Session per tag, all attached to the process-wide Prober.
type Manager struct {
	upstreams map[string]config.UpstreamConfig
	prober    config.ProberConfig
	reg       *registry.Registry
	logger    *observability.Logger
}

func NewManager(cfgs []config.UpstreamConfig, prober config.ProberConfig, reg *registry.Registry, logger *observability.Logger) (*Manager, error) {
	if logger == nil {
		logger = observability.NewNop()
	}
	if reg == nil {
		reg = registry.New(registry.WithLogger(logger.Zap()))
	}
	m := &Manager{upstreams: make(map[string]config.UpstreamConfig), prober: prober, reg: reg, logger: logger}
	for _, uc := range cfgs {
		if uc.Name == "" || len(uc.Targets) == 0 {
			return nil, errors.New("upstream name and targets required")
		}
		for _, t := range uc.Targets {
			if _, err := url.Parse(t); err != nil {
				return nil, fmt.Errorf("upstream %s: %w", uc.Name, err)
			}
		}
		m.upstreams[uc.Name] = uc
	}
	if err := registry.RegisterFactory(reg, m.newSession); err != nil {
		return nil, err
	}
	return m, nil
}

// newSession builds a session for tag. The upstream name defaults to the
// tag and may be given as the first argument.
func (m *Manager) newSession(tag registry.Tag, args ...any) (*Session, error) {
	name, _ := tag.(string)
	if len(args) > 0 {
		if s, ok := args[0].(string); ok {
			name = s
		}
	}
	uc, ok := m.upstreams[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUpstream, name)
	}
	s, err := newSession(uc)
	if err != nil {
		return nil, err
	}
	m.logger.Infow("session opened", "session", s.ID, "upstream", name, "tag", tag)
	return s, nil
}

func (m *Manager) newProber(...any) (*Prober, error) {
	p := newProber(m.prober, m.logger)
	m.logger.Infow("prober started", "prober", p.ID)
	return p, nil
}

// Registry returns the registry the manager works on.
func (m *Manager) Registry() *registry.Registry { return m.reg }

// Upstreams lists the configured upstream names in order.
func (m *Manager) Upstreams() []string {
	names := make([]string, 0, len(m.upstreams))
	for n := range m.upstreams {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Prober shows the process-wide prober, creating it on first use.
func (m *Manager) Prober() (*Prober, error) {
	return registry.ShowOrCreate(m.reg, nil, m.newProber)
}

// CurrentProber returns the live prober without side effects.
func (m *Manager) CurrentProber() (*Prober, bool) {
	return registry.Get[*Prober](m.reg)
}

// Open returns the live session tagged name, reactivating it, or opens one
// on the upstream of the same name.
func (m *Manager) Open(name string) (*Session, error) { return m.OpenAs(name, name) }

// OpenAs is Open with a tag that differs from the upstream name.
func (m *Manager) OpenAs(tag, upstream string) (*Session, error) {
	if _, ok := m.upstreams[upstream]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUpstream, upstream)
	}
	p, err := m.Prober()
	if err != nil {
		return nil, fmt.Errorf("prober: %w", err)
	}
	return registry.ShowOrCreateRegistered[*Session](m.reg, tag, p, upstream)
}

// Lookup returns the live session tagged name without side effects.
func (m *Manager) Lookup(tag string) (*Session, bool) {
	return registry.GetByTag[*Session](m.reg, tag)
}

// Close closes the session tagged name. Closing a missing tag is a no-op.
func (m *Manager) Close(tag string) error {
	return registry.CloseAndRemove[*Session](m.reg, tag)
}

// Retag moves a live session to a new tag so a fresh one can be opened
// under the old tag. The new tag is assumed to be free.
func (m *Manager) Retag(oldTag, newTag string) (bool, error) {
	return registry.ChangeTag[*Session](m.reg, oldTag, newTag)
}

// CloseAll closes every session. The prober keeps running.
func (m *Manager) CloseAll() error { return m.reg.CloseAllTagged() }

// Shutdown closes every session and the prober.
func (m *Manager) Shutdown() error { return m.reg.Close() }
