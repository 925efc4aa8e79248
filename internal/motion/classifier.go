// Package motion is a local stand-in for an external motion classifier:
// it maps reported fix speeds to activity classes and emits edge-triggered
// classification changes.
package motion

import (
	"sync"

	"github.com/tripwatch/tripwatch/internal/logger"
	"github.com/tripwatch/tripwatch/internal/sanitize"
	"github.com/tripwatch/tripwatch/internal/trip"
)

const (
	defaultAutomotiveSpeed = 6.7 // m/s, ~15 mph
	defaultWalkingSpeed    = 2.5 // m/s
	defaultStationarySpeed = 0.5 // m/s
	defaultDebounce        = 3
)

// Config tunes the classifier bands. Zero values take defaults.
type Config struct {
	AutomotiveSpeed float64
	WalkingSpeed    float64
	StationarySpeed float64

	// Debounce is how many consecutive samples must agree before a
	// classification change is emitted.
	Debounce int

	// OnChange receives each classification edge.
	OnChange func(trip.Activity)
}

// Classifier debounces per-sample speed classes into stable activity edges.
type Classifier struct {
	mu  sync.Mutex
	cfg Config

	current      trip.Activity
	pending      trip.Activity
	pendingCount int
}

func NewClassifier(cfg Config) *Classifier {
	if cfg.AutomotiveSpeed <= 0 {
		cfg.AutomotiveSpeed = defaultAutomotiveSpeed
	}
	if cfg.WalkingSpeed <= 0 {
		cfg.WalkingSpeed = defaultWalkingSpeed
	}
	if cfg.StationarySpeed <= 0 {
		cfg.StationarySpeed = defaultStationarySpeed
	}
	if cfg.Debounce < 1 {
		cfg.Debounce = defaultDebounce
	}

	return &Classifier{
		cfg:     cfg,
		current: trip.ActivityUnknown,
		pending: trip.ActivityUnknown,
	}
}

// Observe feeds one reported speed sample (m/s). Non-finite or negative
// speeds classify as unknown rather than being dropped, so a noisy source
// still debounces away from a stale class.
func (c *Classifier) Observe(speed float64) {
	class := c.classify(speed)

	c.mu.Lock()

	if class == c.current {
		c.pending = class
		c.pendingCount = 0
		c.mu.Unlock()

		return
	}

	if class != c.pending {
		c.pending = class
		c.pendingCount = 0
	}
	c.pendingCount++
	if c.pendingCount < c.cfg.Debounce {
		c.mu.Unlock()

		return
	}

	c.current = class
	c.pendingCount = 0
	onChange := c.cfg.OnChange
	c.mu.Unlock()

	logger.Debug().Str("activity", class.String()).Msg("Motion classification changed")
	if onChange != nil {
		onChange(class)
	}
}

// Current returns the last emitted classification.
func (c *Classifier) Current() trip.Activity {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

func (c *Classifier) classify(speed float64) trip.Activity {
	if !sanitize.ValidDistance(speed) {
		return trip.ActivityUnknown
	}

	switch {
	case speed >= c.cfg.AutomotiveSpeed:
		return trip.ActivityAutomotive
	case speed < c.cfg.StationarySpeed:
		return trip.ActivityStationary
	case speed <= c.cfg.WalkingSpeed:
		return trip.ActivityWalking
	default:
		// Between a walking and an automotive pace; most often a bicycle.
		return trip.ActivityCycling
	}
}
