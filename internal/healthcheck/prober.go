package healthcheck

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/boostgw/boostgw/internal/models"
)

// BalanceFetcher is the slice of the upstream client the prober needs.
type BalanceFetcher interface {
	Balance(ctx context.Context) (*models.UpstreamBalance, error)
}

// Status is the last known upstream state, served on /health.
type Status struct {
	Reachable    bool                    `json:"reachable"`
	LastCheck    time.Time               `json:"last_check"`
	LastSuccess  time.Time               `json:"last_success,omitempty"`
	FailureCount int                     `json:"failure_count,omitempty"`
	Balance      *models.UpstreamBalance `json:"balance,omitempty"`
}

// Prober periodically checks the reseller API by fetching the account
// balance, so /health can report upstream reachability without paying an
// upstream round trip per request.
type Prober struct {
	mu          sync.RWMutex
	client      BalanceFetcher
	interval    time.Duration
	timeout     time.Duration
	maxFailures int
	status      Status
	stopChan    chan struct{}
	running     bool
}

type Config struct {
	Interval    time.Duration // how often to probe (default: 60s)
	Timeout     time.Duration // per-probe timeout (default: 5s)
	MaxFailures int           // failures before reporting unreachable (default: 3)
}

func NewProber(client BalanceFetcher, cfg Config) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}

	return &Prober{
		client:      client,
		interval:    cfg.Interval,
		timeout:     cfg.Timeout,
		maxFailures: cfg.MaxFailures,
		status:      Status{Reachable: true}, // optimistic until first probe
		stopChan:    make(chan struct{}),
	}
}

// Start launches the probe loop. Safe to call once.
func (p *Prober) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()
}

func (p *Prober) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		close(p.stopChan)
		p.running = false
	}
}

func (p *Prober) loop() {
	p.probe()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.probe()
		}
	}
}

func (p *Prober) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	balance, err := p.client.Balance(ctx)
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.LastCheck = now
	if err != nil {
		p.status.FailureCount++
		if p.status.FailureCount >= p.maxFailures {
			p.status.Reachable = false
		}
		log.Printf("Upstream probe failed (%d): %v", p.status.FailureCount, err)
		return
	}

	p.status.Reachable = true
	p.status.FailureCount = 0
	p.status.LastSuccess = now
	p.status.Balance = balance
}

// Status returns a copy of the last probe result.
func (p *Prober) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}
