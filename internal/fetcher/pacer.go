package fetcher

import (
	"context"
	"sync"
	"time"
)

// pacer spaces requests to the same host at least delay apart. Hosts are
// independent; callers waiting on one host queue behind each other.
type pacer struct {
	delay time.Duration
	mu    sync.Mutex
	hosts map[string]*hostSlot
}

type hostSlot struct {
	mu   sync.Mutex
	last time.Time
}

func newPacer(delay time.Duration) *pacer {
	return &pacer{
		delay: delay,
		hosts: make(map[string]*hostSlot),
	}
}

// Wait blocks until at least the pacing delay has passed since the
// previous request to host.
func (p *pacer) Wait(ctx context.Context, host string) error {
	if p.delay <= 0 || host == "" {
		return nil
	}

	s := p.slot(host)
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.last.IsZero() {
		if elapsed := time.Since(s.last); elapsed < p.delay {
			select {
			case <-time.After(p.delay - elapsed):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	s.last = time.Now()
	return nil
}

func (p *pacer) slot(host string) *hostSlot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.hosts[host]
	if !ok {
		s = &hostSlot{}
		p.hosts[host] = s
	}
	return s
}
