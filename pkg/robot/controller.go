package robot

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/kome-inc/robocar/internal/log"
	"github.com/kome-inc/robocar/pkg/drive"
)

// Control loop defaults.
const (
	DefaultRate     = 20 * time.Millisecond
	DefaultDeadZone = 0.02 // fraction of full power
)

// RateConfig configures a RateController.
type RateConfig struct {
	Rate time.Duration

	// Watchdog stops the motors when nothing has been heard from the relay for
	// this long. 0 disables it.
	Watchdog time.Duration

	// DeadZone skips updates smaller than this on both tracks.
	DeadZone float64
}

// DefaultRateConfig returns a 50Hz loop with a 500ms watchdog.
func DefaultRateConfig() RateConfig {
	return RateConfig{
		Rate:     DefaultRate,
		Watchdog: 500 * time.Millisecond,
		DeadZone: DefaultDeadZone,
	}
}

// RateStats are control loop diagnostics.
type RateStats struct {
	Ticks     uint64
	Skipped   uint64
	Errors    uint64
	Watchdogs uint64
}

// RateController applies the latest drive command at a fixed rate.
// Commands may arrive faster or slower than the motors are updated; only the
// newest one is applied.
type RateController struct {
	tank *TankDrive
	cfg  RateConfig
	now  func() time.Time

	mu      sync.Mutex
	target  drive.Power
	lastRx  time.Time
	tripped bool

	// Touched only by the loop goroutine.
	lastSent      drive.Power
	sent          bool
	lastErrorTime time.Time

	statsMu sync.Mutex
	stats   RateStats
}

// NewRateController creates a controller for tank. Zero config fields use the defaults.
func NewRateController(tank *TankDrive, cfg RateConfig) *RateController {
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRate
	}
	if cfg.DeadZone < 0 {
		cfg.DeadZone = 0
	}
	return &RateController{
		tank:   tank,
		cfg:    cfg,
		now:    time.Now,
		lastRx: time.Now(),
	}
}

// SetPower sets the power the next tick will apply.
func (c *RateController) SetPower(p drive.Power) {
	c.mu.Lock()
	c.target = p
	c.lastRx = c.now()
	c.tripped = false
	c.mu.Unlock()
}

// Feed records that the relay link is alive without changing the target.
func (c *RateController) Feed() {
	c.mu.Lock()
	c.lastRx = c.now()
	c.mu.Unlock()
}

// Target returns the power the loop is converging to.
func (c *RateController) Target() drive.Power {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Stats returns a snapshot of the loop counters.
func (c *RateController) Stats() RateStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// Run starts the control loop. It blocks until ctx is done and leaves the
// motors stopped.
func (c *RateController) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.Rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := c.tank.Stop(); err != nil {
				log.Warn("failed to stop motors on exit", "error", err)
			}
			return nil
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick executes one control cycle.
func (c *RateController) tick() {
	c.mu.Lock()
	if c.cfg.Watchdog > 0 && !c.tripped && c.now().Sub(c.lastRx) > c.cfg.Watchdog {
		c.tripped = true
		c.target = drive.Stop
		c.count(func(s *RateStats) { s.Watchdogs++ })
		log.Warn("relay silent, stopping motors", "timeout", c.cfg.Watchdog)
	}
	target := c.target
	c.mu.Unlock()

	c.count(func(s *RateStats) { s.Ticks++ })

	// An exact stop always goes out; anything else must move past the dead-zone.
	stopping := target.IsZero() && !c.lastSent.IsZero()
	diff := math.Max(math.Abs(target.Left-c.lastSent.Left), math.Abs(target.Right-c.lastSent.Right))
	if c.sent && !stopping && !(diff >= c.cfg.DeadZone) {
		c.count(func(s *RateStats) { s.Skipped++ })
		return
	}

	if err := c.tank.Apply(target); err != nil {
		c.count(func(s *RateStats) { s.Errors++ })
		// Max once per 5 seconds
		if c.lastErrorTime.IsZero() || c.now().Sub(c.lastErrorTime) > 5*time.Second {
			log.Warn("motor update failed", "error", err, "errors", c.Stats().Errors)
			c.lastErrorTime = c.now()
		}
		return
	}

	c.lastSent = target
	c.sent = true
}

func (c *RateController) count(fn func(*RateStats)) {
	c.statsMu.Lock()
	fn(&c.stats)
	c.statsMu.Unlock()
}
