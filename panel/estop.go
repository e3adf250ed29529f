package panel

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// stopController is the emergency-stop interlock: a two-state machine that
// blocks all outbound commands while tripped and reverts automatically after
// the configured cool-down. There is no manual early-clear path and the
// pending reversion is never cancelled; a repeated trip while tripped is a
// no-op, so at most one reversion is ever outstanding.
type stopController struct {
	mu       sync.Mutex
	clock    Clock
	cooldown time.Duration
	logger   zerolog.Logger

	active   bool
	deadline time.Time
}

func newStopController(cooldown time.Duration, clock Clock, logger zerolog.Logger) *stopController {
	if cooldown <= 0 {
		cooldown = 5 * time.Second
	}
	return &stopController{
		clock:    clock,
		cooldown: cooldown,
		logger:   logger.With().Str("component", "emergency_stop").Logger(),
	}
}

// trip moves the interlock to the tripped state and schedules the automatic
// reversion. It reports false when the interlock was already tripped.
func (c *stopController) trip() bool {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return false
	}
	now := c.clock.Now()
	c.active = true
	c.deadline = now.Add(c.cooldown)
	deadline := c.deadline
	c.mu.Unlock()

	c.logger.Warn().Time("until", deadline).Msg("emergency stop tripped")
	c.clock.AfterFunc(c.cooldown, c.clear)
	return true
}

func (c *stopController) clear() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	c.deadline = time.Time{}
	c.mu.Unlock()

	c.logger.Info().Msg("emergency stop reverted")
}

func (c *stopController) isActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// state returns the tripped flag and, while tripped, the reversion deadline.
func (c *stopController) state() (bool, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.deadline
}
