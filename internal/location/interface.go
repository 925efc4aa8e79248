package location

import "time"

// Fix is one externally produced position sample. Immutable once ingested.
type Fix struct {
	Latitude           float64
	Longitude          float64
	Timestamp          time.Time
	HorizontalAccuracy float64 // meters, <= 0 when unknown
	Speed              float64 // m/s as reported by the source
	Course             float64 // degrees
	Altitude           float64 // meters
}

// MovementFunc is invoked after every accepted distance delta. The processor
// calls it outside its own lock, so implementations may safely call back into
// the processor.
type MovementFunc func(at time.Time, deltaMeters float64)

// Stats counts the outcome of every ingested fix.
type Stats struct {
	Accepted uint64
	Rejected uint64
}

// Config holds the plausibility caps and window sizing for a Processor.
type Config struct {
	// MaxStepMeters rejects any single-step delta above this absolute cap.
	MaxStepMeters float64

	// MaxPlausibleSpeed (m/s) rejects deltas implying a faster movement.
	MaxPlausibleSpeed float64

	// WindowSize is the capacity of the trailing fix window (>= 2).
	WindowSize int

	// OnMovement, when set, observes accepted deltas.
	OnMovement MovementFunc
}
