package trip

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tripwatch/tripwatch/internal/logger"
	"github.com/tripwatch/tripwatch/internal/sanitize"
)

// Engine is the trip-detection state machine. It consumes motion
// classifications and the processor's movement signal, owns the candidate
// and auto-stop timers, and folds closed trips into the accumulated total.
//
// All mutation is serialized through one mutex; timer callbacks re-enter
// through the same lock and are guarded by a generation counter so a timer
// cancelled on a state transition can never fire into later state.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	state   State
	current *Trip

	accumulatedTotal float64

	candidateTimer *time.Timer
	candidateGen   uint64
	autoStopTimer  *time.Timer
	autoStopGen    uint64

	now func() time.Time
}

func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg: cfg,
		now: time.Now,
	}
}

// HandleActivity delivers one motion classification edge.
func (e *Engine) HandleActivity(a Activity) {
	e.mu.Lock()

	switch {
	case a == ActivityAutomotive:
		if e.state != StateIdle {
			// Repeated automotive signals are idempotent; mid-trip they must
			// not restart detection.
			e.mu.Unlock()
			logger.Debug().Str("state", e.state.String()).Msg("Automotive signal ignored")

			return
		}
		e.startCandidateLocked()
		e.mu.Unlock()

	case a.onFoot() && e.state == StateCandidate:
		e.cancelCandidateLocked()
		e.state = StateIdle
		e.mu.Unlock()
		logger.Debug().Str("activity", a.String()).Msg("Candidate cancelled by non-automotive activity")

	default:
		e.mu.Unlock()
	}
}

// OnMovement observes an accepted distance delta; wired as the location
// processor's movement callback. Only an accepted delta re-arms the
// auto-stop timer, so stationary GPS noise cannot keep a trip alive.
func (e *Engine) OnMovement(_ time.Time, _ float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateActive {
		return
	}
	e.armAutoStopLocked()
}

// StartTrip opens a trip immediately, bypassing speed evaluation. A trip
// already in progress makes this a logged no-op.
func (e *Engine) StartTrip(synthetic bool) {
	e.mu.Lock()

	if e.state == StateActive {
		e.mu.Unlock()
		logger.Debug().Msg("StartTrip ignored: trip already active")

		return
	}
	if e.state == StateCandidate {
		e.cancelCandidateLocked()
	}
	opened := e.openTripLocked(synthetic)
	e.mu.Unlock()

	e.emitOpened(opened)
}

// StopTrip closes the active trip. A no-op while idle.
func (e *Engine) StopTrip() {
	e.mu.Lock()

	if e.state != StateActive {
		e.mu.Unlock()
		logger.Debug().Msg("StopTrip ignored: no active trip")

		return
	}
	closed := e.closeTripLocked("manual stop")
	e.mu.Unlock()

	e.emitClosed(closed)
}

// Stop cancels every timer unconditionally and force-closes an open trip.
func (e *Engine) Stop() {
	e.mu.Lock()

	e.cancelCandidateLocked()
	var closed *Trip
	if e.state == StateActive {
		c := e.closeTripLocked("engine stop")
		closed = &c
	}
	e.state = StateIdle
	e.mu.Unlock()

	if closed != nil {
		e.emitClosed(*closed)
	}
}

// ResetTotal zeroes the accumulated cross-trip total.
func (e *Engine) ResetTotal() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.accumulatedTotal = 0
}

// State returns the current detection state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// IsTripActive reports whether a trip is open.
func (e *Engine) IsTripActive() bool {
	return e.State() == StateActive
}

// CurrentTrip returns a copy of the open trip, if any.
func (e *Engine) CurrentTrip() (Trip, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return Trip{}, false
	}

	return *e.current, true
}

// AccumulatedTotal returns the sanitized cross-trip distance total.
func (e *Engine) AccumulatedTotal() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return sanitize.Distance(e.accumulatedTotal)
}

func (e *Engine) startCandidateLocked() {
	e.state = StateCandidate
	e.candidateGen++
	gen := e.candidateGen
	e.candidateTimer = time.AfterFunc(e.cfg.SpeedDetectionDuration, func() {
		e.evaluateCandidate(gen)
	})
	logger.Debug().Dur("window", e.cfg.SpeedDetectionDuration).Msg("Candidate started")
}

func (e *Engine) cancelCandidateLocked() {
	e.candidateGen++
	if e.candidateTimer != nil {
		e.candidateTimer.Stop()
		e.candidateTimer = nil
	}
}

// evaluateCandidate runs at candidate-timer expiry. Fewer than two window
// fixes cannot confirm a trip; the candidate is discarded without penalty.
func (e *Engine) evaluateCandidate(gen uint64) {
	e.mu.Lock()

	if gen != e.candidateGen || e.state != StateCandidate {
		e.mu.Unlock()

		return
	}
	e.candidateTimer = nil

	avg, ok := e.cfg.Stream.AverageSpeed()
	if !ok || avg < e.cfg.SpeedThreshold {
		e.state = StateIdle
		e.mu.Unlock()
		logger.Debug().
			Float64("avg_speed", avg).
			Bool("enough_fixes", ok).
			Float64("threshold", e.cfg.SpeedThreshold).
			Msg("Candidate discarded")

		return
	}

	opened := e.openTripLocked(false)
	e.mu.Unlock()

	logger.Info().Float64("avg_speed", avg).Msg("Trip confirmed")
	e.emitOpened(opened)
}

func (e *Engine) openTripLocked(synthetic bool) Trip {
	now := e.now()
	e.current = &Trip{
		ID:          uuid.New(),
		StartTime:   now,
		IsSynthetic: synthetic,
	}
	e.state = StateActive
	e.cfg.Stream.BeginTrip()
	e.armAutoStopLocked()

	return *e.current
}

func (e *Engine) closeTripLocked(reason string) Trip {
	e.autoStopGen++
	if e.autoStopTimer != nil {
		e.autoStopTimer.Stop()
		e.autoStopTimer = nil
	}

	t := *e.current
	t.EndTime = e.now()

	// Fix timestamps are GPS time; the trip-scoped sum EndTrip freezes must
	// never be filtered against the engine's wall clock.
	final := sanitize.Distance(e.cfg.Stream.EndTrip())
	t.DistanceMeters = final

	e.accumulatedTotal = sanitize.Distance(e.accumulatedTotal + final)
	e.current = nil
	e.state = StateIdle

	logger.Info().
		Str("trip_id", t.ID.String()).
		Float64("distance_m", final).
		Str("reason", reason).
		Msg("Trip closed")

	return t
}

func (e *Engine) armAutoStopLocked() {
	e.autoStopGen++
	gen := e.autoStopGen
	if e.autoStopTimer != nil {
		e.autoStopTimer.Stop()
	}
	e.autoStopTimer = time.AfterFunc(e.cfg.AutoStopDuration, func() {
		e.autoStopFired(gen)
	})
}

func (e *Engine) autoStopFired(gen uint64) {
	e.mu.Lock()

	if gen != e.autoStopGen || e.state != StateActive {
		e.mu.Unlock()

		return
	}
	closed := e.closeTripLocked("no movement")
	e.mu.Unlock()

	e.emitClosed(closed)
}

func (e *Engine) emitOpened(t Trip) {
	if e.cfg.OnTripOpened != nil {
		e.cfg.OnTripOpened(t)
	}
}

func (e *Engine) emitClosed(t Trip) {
	if e.cfg.OnTripClosed != nil {
		e.cfg.OnTripClosed(t)
	}
}
