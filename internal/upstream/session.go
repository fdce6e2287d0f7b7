package upstream

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kenelite/go-solo/internal/config"
	"github.com/kenelite/go-solo/internal/registry"
	"github.com/kenelite/go-solo/internal/scheduler"
)

// Session is a live handle on one upstream: a pooled HTTP client plus
// round-robin target selection. The registry keeps at most one per tag.
type Session struct {
	registry.Lifecycle

	ID       string
	Upstream string
	Targets  []*url.URL
	Client   *http.Client

	rr       scheduler.RoundRobin
	openedAt time.Time

	mu          sync.Mutex
	visible     bool
	activations int
	focusedAt   time.Time
	owner       *Prober
}

// SessionInfo is the JSON view of a Session.
type SessionInfo struct {
	ID          string    `json:"id"`
	Upstream    string    `json:"upstream"`
	Targets     []string  `json:"targets"`
	Visible     bool      `json:"visible"`
	Activations int       `json:"activations"`
	OpenedAt    time.Time `json:"opened_at"`
	FocusedAt   time.Time `json:"focused_at,omitzero"`
}

func newSession(uc config.UpstreamConfig) (*Session, error) {
	s := &Session{
		ID:       uuid.NewString(),
		Upstream: uc.Name,
		Client:   &http.Client{Timeout: time.Duration(uc.Timeout) * time.Millisecond},
		openedAt: time.Now(),
	}
	for _, t := range uc.Targets {
		u, err := url.Parse(t)
		if err != nil {
			return nil, fmt.Errorf("upstream %s: target %q: %w", uc.Name, t, err)
		}
		s.Targets = append(s.Targets, u)
	}
	return s, nil
}

func (s *Session) Visible() (bool, error) {
	if err := s.Check(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible, nil
}

// Show marks the session in service. A *Prober owner starts health-checking
// its targets.
func (s *Session) Show(owner registry.Resource) error {
	if err := s.Check(); err != nil {
		return err
	}
	p, _ := owner.(*Prober)

	s.mu.Lock()
	s.visible = true
	attach := p != nil && p != s.owner
	if attach {
		s.owner = p
	}
	s.mu.Unlock()

	if attach {
		p.attach(s)
	}
	return nil
}

func (s *Session) Activate() error {
	if err := s.Check(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activations++
	return nil
}

func (s *Session) Focus() error {
	if err := s.Check(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focusedAt = time.Now()
	return nil
}

// Close drops idle connections and disposes the session.
func (s *Session) Close() error {
	if err := s.Check(); err != nil {
		return fmt.Errorf("session %s: %w", s.ID, err)
	}
	s.mu.Lock()
	s.visible = false
	s.mu.Unlock()
	s.Client.CloseIdleConnections()
	s.Dispose()
	return nil
}

// Target returns the next target in round-robin order.
func (s *Session) Target() (*url.URL, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	u, ok := scheduler.Pick(&s.rr, s.Targets)
	if !ok {
		return nil, fmt.Errorf("upstream %s: no targets", s.Upstream)
	}
	return u, nil
}

func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	targets := make([]string, 0, len(s.Targets))
	for _, t := range s.Targets {
		targets = append(targets, t.String())
	}
	return SessionInfo{
		ID:          s.ID,
		Upstream:    s.Upstream,
		Targets:     targets,
		Visible:     s.visible,
		Activations: s.activations,
		OpenedAt:    s.openedAt,
		FocusedAt:   s.focusedAt,
	}
}
