package trip

import (
	"time"

	"github.com/google/uuid"
)

// Activity is one discrete motion classification delivered by the external
// classifier. Edge-triggered: the engine only reacts to the value itself,
// never to arrival rate.
type Activity int

const (
	ActivityUnknown Activity = iota
	ActivityAutomotive
	ActivityWalking
	ActivityRunning
	ActivityCycling
	ActivityStationary
)

func (a Activity) String() string {
	switch a {
	case ActivityAutomotive:
		return "automotive"
	case ActivityWalking:
		return "walking"
	case ActivityRunning:
		return "running"
	case ActivityCycling:
		return "cycling"
	case ActivityStationary:
		return "stationary"
	default:
		return "unknown"
	}
}

// onFoot reports whether the activity cancels a pending candidate.
func (a Activity) onFoot() bool {
	return a == ActivityWalking || a == ActivityRunning || a == ActivityCycling
}

// State is the engine's detection state.
type State int

const (
	StateIdle State = iota
	StateCandidate
	StateActive
)

func (s State) String() string {
	switch s {
	case StateCandidate:
		return "candidate"
	case StateActive:
		return "active"
	default:
		return "idle"
	}
}

// Trip is one closed or in-progress driving interval. Once closed it is
// immutable and handed to the sink exactly once.
type Trip struct {
	ID             uuid.UUID
	StartTime      time.Time
	EndTime        time.Time // zero while the trip is open
	DistanceMeters float64
	IsSynthetic    bool
}

// Stream is the location-processor surface the engine drives. EndTrip
// returns the frozen trip-scoped distance.
type Stream interface {
	BeginTrip()
	EndTrip() float64
	TripDistance() float64
	AverageSpeed() (avg float64, ok bool)
}

// Config wires an Engine. Both callbacks are invoked outside the engine
// lock, from whichever goroutine triggered the transition.
type Config struct {
	// SpeedThreshold (m/s) a candidate's window average must reach.
	SpeedThreshold float64

	// SpeedDetectionDuration is how long a candidate runs before evaluation.
	SpeedDetectionDuration time.Duration

	// AutoStopDuration closes an active trip after this long without an
	// accepted distance delta.
	AutoStopDuration time.Duration

	Stream Stream

	OnTripOpened func(Trip)
	OnTripClosed func(Trip)
}
