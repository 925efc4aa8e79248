package location

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/tripwatch/tripwatch/internal/geo"
	"github.com/tripwatch/tripwatch/internal/logger"
	"github.com/tripwatch/tripwatch/internal/sanitize"
)

type acceptedDelta struct {
	at     time.Time
	meters float64
}

// Processor consumes the raw position-fix stream, rejects implausible
// samples and accumulates trip distance. A rejected sample never moves the
// baseline: the stream continues from the last accepted fix.
type Processor struct {
	mu  sync.Mutex
	cfg Config

	last   *Fix
	window *fixRing

	tripOpen      bool
	tripDistance  float64
	totalDistance float64
	accepted      []acceptedDelta // trip-scoped, cleared on open/close

	lastMovement time.Time
	haveMovement bool

	stats Stats
}

func NewProcessor(cfg Config) *Processor {
	if cfg.WindowSize < 2 {
		cfg.WindowSize = 2
	}

	return &Processor{
		cfg:    cfg,
		window: newFixRing(cfg.WindowSize),
	}
}

// Ingest feeds one raw fix through the plausibility gate. It reports whether
// the fix was accepted. The first fix only establishes the baseline.
func (p *Processor) Ingest(fix Fix) bool {
	p.mu.Lock()

	if !sanitize.Finite(fix.Latitude) || !sanitize.Finite(fix.Longitude) {
		p.stats.Rejected++
		p.mu.Unlock()
		logger.Debug().
			Float64("lat", fix.Latitude).
			Float64("lon", fix.Longitude).
			Msg("Rejected fix: non-finite coordinates")

		return false
	}

	if p.last == nil {
		last := fix
		p.last = &last
		p.window.push(fix)
		p.mu.Unlock()

		return true
	}

	delta := geo.DistanceMeters(p.last.Latitude, p.last.Longitude, fix.Latitude, fix.Longitude)
	dt := fix.Timestamp.Sub(p.last.Timestamp).Seconds()

	if reason := p.rejectReason(delta, dt); reason != "" {
		p.stats.Rejected++
		p.mu.Unlock()
		logger.Debug().
			Float64("delta_m", delta).
			Float64("dt_s", dt).
			Str("reason", reason).
			Msg("Rejected fix")

		return false
	}

	if p.tripOpen {
		p.tripDistance = sanitize.Distance(p.tripDistance + delta)
		p.accepted = append(p.accepted, acceptedDelta{at: fix.Timestamp, meters: delta})
	}
	p.totalDistance = sanitize.Distance(p.totalDistance + delta)

	last := fix
	p.last = &last
	p.window.push(fix)
	p.lastMovement = fix.Timestamp
	p.haveMovement = true
	p.stats.Accepted++

	notify := p.cfg.OnMovement
	p.mu.Unlock()

	if notify != nil {
		notify(fix.Timestamp, delta)
	}

	return true
}

// rejectReason applies the plausibility gate: duplicates and out-of-order
// samples fail the dt check, GPS jumps fail the step or speed cap.
func (p *Processor) rejectReason(delta, dt float64) string {
	switch {
	case !sanitize.ValidDistance(delta):
		return "non-finite or negative delta"
	case dt <= 0:
		return "non-positive time step"
	case delta > p.cfg.MaxStepMeters:
		return "step cap exceeded"
	case delta > dt*p.cfg.MaxPlausibleSpeed:
		return "implied speed implausible"
	default:
		return ""
	}
}

// BeginTrip opens trip-scoped accumulation. The trailing window restarts so
// candidate-phase fixes do not leak into the new trip's speed estimate; the
// baseline fix is kept so distance continues from the current position.
func (p *Processor) BeginTrip() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tripOpen = true
	p.tripDistance = 0
	p.accepted = p.accepted[:0]
	p.window.reset()
	if p.last != nil {
		p.window.push(*p.last)
	}
}

// EndTrip closes trip-scoped accumulation and returns the frozen distance.
func (p *Processor) EndTrip() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	final := sanitize.Distance(p.tripDistance)
	p.tripOpen = false
	p.tripDistance = 0
	p.accepted = p.accepted[:0]

	return final
}

// DistanceSince sums the accepted deltas at or after t. The cut is keyed by
// fix timestamp (GPS time), not by arrival time.
func (p *Processor) DistanceSince(t time.Time) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	var sum float64
	for _, d := range p.accepted {
		if !d.at.Before(t) {
			sum += d.meters
		}
	}

	return sanitize.Distance(sum)
}

// AverageSpeed returns the mean pairwise speed (m/s) over the trailing
// window. ok is false with fewer than two fixes.
func (p *Processor) AverageSpeed() (avg float64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fixes := p.window.ordered()
	if len(fixes) < 2 {
		return 0, false
	}

	speeds := make([]float64, 0, len(fixes)-1)
	for i := 1; i < len(fixes); i++ {
		prev, cur := fixes[i-1], fixes[i]
		dt := cur.Timestamp.Sub(prev.Timestamp).Seconds()
		if dt <= 0 {
			continue
		}
		d := geo.DistanceMeters(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude)
		speeds = append(speeds, sanitize.Distance(d/dt))
	}
	if len(speeds) == 0 {
		return 0, false
	}

	return sanitize.Distance(stat.Mean(speeds, nil)), true
}

// TripDistance returns the running distance of the open trip, 0 when idle.
func (p *Processor) TripDistance() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return sanitize.Distance(p.tripDistance)
}

// TotalDistance returns the running sum of all accepted deltas.
func (p *Processor) TotalDistance() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return sanitize.Distance(p.totalDistance)
}

// ResetTotal zeroes the running total; an explicit user operation.
func (p *Processor) ResetTotal() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalDistance = 0
}

// LastMovement returns the timestamp of the last accepted delta.
func (p *Processor) LastMovement() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.lastMovement, p.haveMovement
}

// LastFix returns a copy of the current baseline fix.
func (p *Processor) LastFix() (Fix, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.last == nil {
		return Fix{}, false
	}

	return *p.last, true
}

// Window returns the trailing fixes oldest first, as a copy.
func (p *Processor) Window() []Fix {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.window.ordered()
}

// Stats returns the accept/reject counters.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats
}
