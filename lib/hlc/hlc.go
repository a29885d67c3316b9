package hlc

import (
	"fmt"
	"sync"
	"time"
)

// HLC is a hybrid-logical timestamp: a wall-clock reading in nanoseconds
// plus a logical counter that disambiguates ticks within the same wall
// reading. Zero value is the "unset" timestamp (0, 0).
type HLC struct {
	Wall    uint64
	Logical uint64
}

// Compare returns -1, 0 or 1 for a<b, a==b, a>b under lexicographic
// ordering on (Wall, Logical).
func Compare(a, b HLC) int {
	if a.Wall != b.Wall {
		if a.Wall < b.Wall {
			return -1
		}
		return 1
	}
	if a.Logical != b.Logical {
		if a.Logical < b.Logical {
			return -1
		}
		return 1
	}
	return 0
}

func (h HLC) Less(o HLC) bool { return Compare(h, o) < 0 }
func (h HLC) IsZero() bool    { return h.Wall == 0 && h.Logical == 0 }

func (h HLC) String() string {
	return fmt.Sprintf("%d.%d", h.Wall, h.Logical)
}

// nowFunc is indirected for deterministic tests.
var nowFunc = func() uint64 { return uint64(time.Now().UnixNano()) }

// Clock generates strictly monotonic HLCs for a single shard. Grounded on
// the teacher's currIndex atomic-CAS pattern (lib/db/engines/maple), widened
// from a flat counter to a (wall, logical) pair.
type Clock struct {
	mu   sync.Mutex
	last HLC
}

// NewClock returns a Clock with the zero HLC as its last-issued value.
func NewClock() *Clock {
	return &Clock{}
}

// Now advances and returns the next HLC. If wall-clock time has moved
// forward since the previous call, the logical counter resets to 0;
// otherwise it increments, guaranteeing strict monotonicity even under a
// stalled or backwards-skewed wall clock.
func (c *Clock) Now() HLC {
	c.mu.Lock()
	defer c.mu.Unlock()

	wall := nowFunc()
	if wall > c.last.Wall {
		c.last = HLC{Wall: wall, Logical: 0}
	} else {
		c.last = HLC{Wall: c.last.Wall, Logical: c.last.Logical + 1}
	}
	return c.last
}

// Observe folds a remote HLC into this clock so that a later Now() call
// never returns a timestamp the remote peer has already observed.
// wall = max(local_wall, remote_wall, physical_now).
func (c *Clock) Observe(remote HLC) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wall := nowFunc()
	if remote.Wall > wall {
		wall = remote.Wall
	}
	if c.last.Wall > wall {
		wall = c.last.Wall
	}

	switch {
	case wall > c.last.Wall && wall > remote.Wall:
		c.last = HLC{Wall: wall, Logical: 0}
	case wall == remote.Wall && wall == c.last.Wall:
		if remote.Logical >= c.last.Logical {
			c.last = HLC{Wall: wall, Logical: remote.Logical + 1}
		} else {
			c.last = HLC{Wall: wall, Logical: c.last.Logical + 1}
		}
	case wall == remote.Wall:
		c.last = HLC{Wall: wall, Logical: remote.Logical + 1}
	default:
		c.last = HLC{Wall: wall, Logical: c.last.Logical + 1}
	}
}

// Last returns the most recently issued HLC without advancing the clock.
func (c *Clock) Last() HLC {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
