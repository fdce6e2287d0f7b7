package upstream

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kenelite/go-solo/internal/config"
	"github.com/kenelite/go-solo/internal/observability"
	"github.com/kenelite/go-solo/internal/registry"
)

// ProbeResult is the outcome of the latest health check of one target.
type ProbeResult struct {
	Session   string    `json:"session"`
	Upstream  string    `json:"upstream"`
	Target    string    `json:"target"`
	Healthy   bool      `json:"healthy"`
	Status    int       `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Prober health-checks the targets of every session shown with it as owner.
// One lives per process in the unique registry. Show starts the loop,
// Activate requests an immediate round, Close stops it.
type Prober struct {
	registry.Lifecycle

	ID       string
	interval time.Duration
	client   *http.Client
	logger   *observability.Logger

	mu        sync.Mutex
	sessions  map[*Session]struct{}
	results   map[string]ProbeResult
	visible   bool
	started   bool
	focusedAt time.Time

	kick     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newProber(cfg config.ProberConfig, logger *observability.Logger) *Prober {
	interval := time.Duration(cfg.IntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = observability.NewNop()
	}
	return &Prober{
		ID:       uuid.NewString(),
		interval: interval,
		client:   &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
		logger:   logger,
		sessions: make(map[*Session]struct{}),
		results:  make(map[string]ProbeResult),
		kick:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *Prober) Visible() (bool, error) {
	if err := p.Check(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible, nil
}

func (p *Prober) Show(registry.Resource) error {
	if err := p.Check(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible = true
	if !p.started {
		p.started = true
		go p.loop()
	}
	return nil
}

// Activate schedules a probe round without waiting for it.
func (p *Prober) Activate() error {
	if err := p.Check(); err != nil {
		return err
	}
	select {
	case p.kick <- struct{}{}:
	default:
	}
	return nil
}

func (p *Prober) Focus() error {
	if err := p.Check(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.focusedAt = time.Now()
	return nil
}

// Close stops the loop, waits for it to exit and disposes the prober.
func (p *Prober) Close() error {
	if err := p.Check(); err != nil {
		return fmt.Errorf("prober %s: %w", p.ID, err)
	}
	p.mu.Lock()
	started := p.started
	p.visible = false
	p.mu.Unlock()

	p.stopOnce.Do(func() { close(p.stop) })
	if started {
		<-p.done
	}
	p.client.CloseIdleConnections()
	p.Dispose()
	return nil
}

func (p *Prober) attach(s *Session) {
	p.mu.Lock()
	p.sessions[s] = struct{}{}
	p.mu.Unlock()
	s.OnDisposed(func() { p.detach(s) })
	p.logger.Debugw("session attached to prober", "session", s.ID, "upstream", s.Upstream)
}

func (p *Prober) detach(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, s)
	for k, r := range p.results {
		if r.Session == s.ID {
			delete(p.results, k)
		}
	}
}

// Sessions returns the number of attached sessions.
func (p *Prober) Sessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

func (p *Prober) loop() {
	defer close(p.done)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-p.stop
		cancel()
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
		case <-p.kick:
		}
		p.ProbeNow(ctx)
	}
}

// ProbeNow checks every target of every attached session once.
func (p *Prober) ProbeNow(ctx context.Context) {
	p.mu.Lock()
	sessions := make([]*Session, 0, len(p.sessions))
	for s := range p.sessions {
		sessions = append(sessions, s)
	}
	p.mu.Unlock()

	for _, s := range sessions {
		for _, t := range s.Targets {
			res := p.probe(ctx, s, t.String())
			if !res.Healthy {
				p.logger.Warnw("target unhealthy", "upstream", res.Upstream, "target", res.Target, "status", res.Status, "err", res.Error)
			}
			p.mu.Lock()
			if _, attached := p.sessions[s]; attached {
				p.results[s.ID+" "+res.Target] = res
			}
			p.mu.Unlock()
		}
	}
}

func (p *Prober) probe(ctx context.Context, s *Session, target string) ProbeResult {
	res := ProbeResult{Session: s.ID, Upstream: s.Upstream, Target: target, CheckedAt: time.Now()}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	resp, err := p.client.Do(req)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	_ = resp.Body.Close()
	res.Status = resp.StatusCode
	res.Healthy = resp.StatusCode < http.StatusInternalServerError
	return res
}

// Results returns the latest result per session target, ordered by
// upstream.
func (p *Prober) Results() []ProbeResult {
	p.mu.Lock()
	out := make([]ProbeResult, 0, len(p.results))
	for _, r := range p.results {
		out = append(out, r)
	}
	p.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Upstream != b.Upstream {
			return a.Upstream < b.Upstream
		}
		if a.Session != b.Session {
			return a.Session < b.Session
		}
		return a.Target < b.Target
	})
	return out
}
