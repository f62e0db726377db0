// Package pool implements the bounded connection pool that owns every
// physical connection of one adapter instance. All pool state is serialized
// through a single mutex; waiters are served FIFO so no caller starves.
package pool

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dataforge-labs/dbridge/pkg/core"
	"github.com/dataforge-labs/dbridge/pkg/dberr"
)

// Opener creates one new physical connection. The adapter supplies this from
// its *sql.DB; the pool owns the returned connection until destruction.
type Opener func(ctx context.Context) (*sql.Conn, error)

// grant is what a waiter receives: a ready handle, a nil handle meaning
// "capacity reserved, open your own connection", or a shutdown notice.
type grant struct {
	h      *Handle
	closed bool
}

type waiter struct {
	ch        chan grant
	delivered bool
}

// Stats is a snapshot of the pool's conservation counters. At any instant
// InUse + Idle == Open, and Open == Created - Destroyed.
type Stats struct {
	MaxSize   int
	Open      int
	Idle      int
	InUse     int
	Waiting   int
	Created   int64
	Destroyed int64
	Broken    int64
}

// Pool is a bounded set of reusable physical connections. Each adapter
// instance owns exactly one pool; there is no process-wide singleton.
type Pool struct {
	cfg    core.PoolConfig
	open   Opener
	logger *slog.Logger

	mu      sync.Mutex
	idle    []*Handle // LIFO reuse; reaper trims cold entries
	waiters []*waiter // FIFO
	live    int       // created and not yet destroyed, including reservations
	inUse   int
	closed  bool

	created   int64
	destroyed int64
	broken    int64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New creates a pool. The pool opens connections lazily; call Start to warm
// MinSize connections and launch the background health loop.
func New(cfg core.PoolConfig, open Opener, logger *slog.Logger) *Pool {
	cfg.Normalize()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pool{
		cfg:    cfg,
		open:   open,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start warms MinSize connections and launches the health-check/idle-reap
// loop. Warm-up failures are returned so misconfiguration fails fast.
func (p *Pool) Start(ctx context.Context) error {
	for i := 0; i < p.cfg.MinSize; i++ {
		h, err := p.openHandle(ctx)
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.live++
		p.created++
		h.state = stateIdle
		h.lastUsed = time.Now()
		p.idle = append(p.idle, h)
		p.mu.Unlock()
	}
	if p.cfg.HealthCheckInterval > 0 {
		p.wg.Add(1)
		go p.healthLoop()
	}
	return nil
}

// Acquire checks out a handle, waiting FIFO up to the pool's acquire timeout
// (or ctx cancellation, whichever comes first). Cancellation while waiting
// removes the caller from the queue with no handle leaked.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	start := time.Now()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("pool is closed")
	}

	// Fast path: reuse an idle handle, recycling expired ones in place.
	for len(p.idle) > 0 {
		h := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if h.expired(p.cfg.RecycleAfterUses, p.cfg.RecycleAfterAge) {
			p.destroyLocked(h, "recycle")
			continue
		}
		p.checkoutLocked(h)
		p.mu.Unlock()
		return h, nil
	}

	// Grow: reserve a slot before opening so live never exceeds MaxSize.
	if p.live < p.cfg.MaxSize {
		p.live++
		p.mu.Unlock()
		return p.growInto(ctx)
	}

	// Full: queue FIFO.
	w := &waiter{ch: make(chan grant, 1)}
	p.waiters = append(p.waiters, w)
	waiting := len(p.waiters)
	p.mu.Unlock()

	p.logger.Debug("pool full, waiting", slog.Int("position", waiting))

	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case g := <-w.ch:
		if g.closed {
			return nil, fmt.Errorf("pool is closed")
		}
		if g.h != nil {
			return g.h, nil
		}
		return p.growInto(ctx)

	case <-ctx.Done():
		p.abandon(w)
		return nil, ctx.Err()

	case <-timer.C:
		p.abandon(w)
		return nil, &dberr.PoolExhaustedError{MaxSize: p.cfg.MaxSize, Waited: time.Since(start)}
	}
}

// abandon removes w from the wait queue with no side effects. If a grant
// raced in before removal it is consumed and given back: a handle re-enters
// the pool, a capacity reservation passes to the next waiter.
func (p *Pool) abandon(w *waiter) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !w.delivered {
		for i, q := range p.waiters {
			if q == w {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				break
			}
		}
		return
	}

	// The grant was sent while we were timing out; the buffered channel
	// guarantees it is already present.
	g := <-w.ch
	switch {
	case g.closed:
		// Shutdown grant carries no handle or reservation.
	case g.h != nil:
		p.inUse-- // granted handles are delivered checked out
		p.releaseLocked(g.h)
	default:
		p.live--
		p.wakeLocked()
	}
}

// growInto opens a new physical connection against a slot already reserved in
// live. On failure the reservation is returned and the next waiter woken.
func (p *Pool) growInto(ctx context.Context) (*Handle, error) {
	h, err := p.openHandle(ctx)
	if err != nil {
		p.mu.Lock()
		p.live--
		p.wakeLocked()
		p.mu.Unlock()
		return nil, err
	}
	p.mu.Lock()
	if p.closed {
		p.live--
		p.mu.Unlock()
		_ = h.conn.Close()
		return nil, fmt.Errorf("pool is closed")
	}
	p.created++
	p.checkoutLocked(h)
	p.mu.Unlock()
	return h, nil
}

// openHandle creates the physical connection. Accounting (live/created) is
// the caller's responsibility: Start adds both, the grow path reserves live
// before opening.
func (p *Pool) openHandle(ctx context.Context) (*Handle, error) {
	conn, err := p.open(ctx)
	if err != nil {
		return nil, &dberr.ConnectionError{Kind: dberr.ConnRefused, Err: err}
	}
	h := &Handle{
		id:        uuid.New(),
		conn:      conn,
		createdAt: time.Now(),
		state:     stateCheckedOut,
	}
	p.logger.Debug("opened connection", slog.String("handle", h.id.String()))
	return h, nil
}

// Release returns a handle to the pool. Broken handles are discarded instead
// of being returned to the idle set.
func (p *Pool) Release(h *Handle) {
	if h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	switch h.state {
	case stateBroken, stateClosing:
		// Already discarded or being torn down; nothing to return.
		return
	case stateIdle:
		// Double release.
		return
	}

	p.inUse--
	h.useCount++
	h.lastUsed = time.Now()

	if p.closed {
		p.destroyLocked(h, "pool closed")
		return
	}
	if h.expired(p.cfg.RecycleAfterUses, p.cfg.RecycleAfterAge) {
		p.destroyLocked(h, "recycle")
		p.wakeLocked()
		return
	}
	p.releaseLocked(h)
}

// Discard permanently removes a handle the caller knows is unusable. The
// live count drops so a later Acquire may open a replacement.
func (p *Pool) Discard(h *Handle) {
	if h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if h.state == stateCheckedOut {
		p.inUse--
	}
	if h.state == stateBroken || h.state == stateClosing {
		return
	}
	p.destroyLocked(h, "discarded")
	p.wakeLocked()
}

// MarkBroken records an I/O failure on a checked-out handle. The handle is
// destroyed, never returned to the idle set, and the freed capacity wakes the
// next waiter.
func (p *Pool) MarkBroken(h *Handle) {
	if h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if h.state == stateBroken || h.state == stateClosing {
		return
	}
	if h.state == stateCheckedOut {
		p.inUse--
	}
	p.broken++
	h.state = stateBroken
	p.live--
	p.destroyed++
	conn := h.conn
	h.conn = nil
	go func() { _ = conn.Close() }()
	p.logger.Debug("connection marked broken", slog.String("handle", h.id.String()))
	p.wakeLocked()
}

// Stats returns a snapshot of the conservation counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		MaxSize:   p.cfg.MaxSize,
		Open:      p.live,
		Idle:      len(p.idle),
		InUse:     p.inUse,
		Waiting:   len(p.waiters),
		Created:   p.created,
		Destroyed: p.destroyed,
		Broken:    p.broken,
	}
}

// Close shuts the pool down: the health loop stops, idle handles are closed,
// and pending waiters fail. Checked-out handles are destroyed on release.
func (p *Pool) Close() error {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	p.mu.Lock()
	p.closed = true
	for _, w := range p.waiters {
		w.delivered = true
		w.ch <- grant{closed: true}
	}
	p.waiters = nil
	idle := p.idle
	p.idle = nil
	for _, h := range idle {
		p.destroyLocked(h, "pool closed")
	}
	p.mu.Unlock()
	return nil
}

// --- locked helpers ---

func (p *Pool) checkoutLocked(h *Handle) {
	h.state = stateCheckedOut
	h.lastUsed = time.Now()
	p.inUse++
}

// releaseLocked hands h to the oldest waiter or parks it in the idle set.
func (p *Pool) releaseLocked(h *Handle) {
	for len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		if w.delivered {
			continue
		}
		w.delivered = true
		p.checkoutLocked(h)
		w.ch <- grant{h: h}
		return
	}
	h.state = stateIdle
	p.idle = append(p.idle, h)
}

// wakeLocked hands freed capacity to the oldest waiter, reserving the slot on
// its behalf.
func (p *Pool) wakeLocked() {
	if p.closed || p.live >= p.cfg.MaxSize {
		return
	}
	for len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		if w.delivered {
			continue
		}
		w.delivered = true
		p.live++
		w.ch <- grant{}
		return
	}
}

func (p *Pool) destroyLocked(h *Handle, reason string) {
	h.state = stateClosing
	p.live--
	p.destroyed++
	if h.conn != nil {
		conn := h.conn
		h.conn = nil
		go func() { _ = conn.Close() }()
	}
	p.logger.Debug("closed connection", slog.String("handle", h.id.String()), slog.String("reason", reason))
}
