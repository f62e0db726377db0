package pool

import (
	"context"
	"log/slog"
	"time"
)

// healthLoop pings idle handles and reaps those past the idle timeout on a
// fixed interval. Checked-out handles are never touched: the loop only ever
// sees handles it has removed from the idle set itself.
func (p *Pool) healthLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

// sweep takes ownership of the whole idle set, health-checks each handle, and
// returns the survivors. Handles past the idle timeout are closed, but the
// pool keeps MinSize connections warm; checked-out handles count toward that
// floor since they return to the idle set on release.
func (p *Pool) sweep() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	batch := p.idle
	p.idle = nil
	keepWarm := max(0, p.cfg.MinSize-p.inUse)
	p.mu.Unlock()

	now := time.Now()
	var survivors []*Handle
	var reaped []*Handle

	for _, h := range batch {
		if h.expired(p.cfg.RecycleAfterUses, p.cfg.RecycleAfterAge) {
			reaped = append(reaped, h)
			continue
		}
		if now.Sub(h.lastUsed) > p.cfg.IdleTimeout && len(survivors) >= keepWarm {
			reaped = append(reaped, h)
			continue
		}
		if !p.ping(h) {
			p.mu.Lock()
			p.broken++
			p.destroyLocked(h, "health check failed")
			p.wakeLocked()
			p.mu.Unlock()
			continue
		}
		survivors = append(survivors, h)
	}

	p.mu.Lock()
	for _, h := range reaped {
		p.destroyLocked(h, "idle reap")
	}
	if p.closed {
		for _, h := range survivors {
			p.destroyLocked(h, "pool closed")
		}
		p.mu.Unlock()
		return
	}
	for _, h := range survivors {
		p.releaseLocked(h)
	}
	p.mu.Unlock()
}

func (p *Pool) ping(h *Handle) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.conn.PingContext(ctx); err != nil {
		p.logger.Debug("idle connection failed ping",
			slog.String("handle", h.id.String()),
			slog.String("error", err.Error()))
		return false
	}
	return true
}
