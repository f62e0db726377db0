package pool

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// handleState tracks where a handle is in its lifecycle.
type handleState int

const (
	stateIdle handleState = iota
	stateCheckedOut
	stateBroken
	stateClosing
)

func (s handleState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateCheckedOut:
		return "checked_out"
	case stateBroken:
		return "broken"
	case stateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Handle wraps one live physical connection. A handle is exclusively owned by
// at most one caller between Acquire and Release; it never executes two
// statements concurrently.
type Handle struct {
	id        uuid.UUID
	conn      *sql.Conn
	createdAt time.Time

	// Fields below are guarded by the owning pool's mutex.
	state    handleState
	lastUsed time.Time
	useCount int
}

// ID returns the pool-assigned identity of the handle.
func (h *Handle) ID() uuid.UUID { return h.id }

// Conn exposes the underlying dedicated connection. Callers must hold the
// handle (checked out) while using it.
func (h *Handle) Conn() *sql.Conn { return h.conn }

// Age returns how long ago the physical connection was created.
func (h *Handle) Age() time.Duration { return time.Since(h.createdAt) }

// expired reports whether the handle passed its recycle thresholds.
func (h *Handle) expired(maxUses int, maxAge time.Duration) bool {
	if maxUses > 0 && h.useCount >= maxUses {
		return true
	}
	if maxAge > 0 && time.Since(h.createdAt) >= maxAge {
		return true
	}
	return false
}
