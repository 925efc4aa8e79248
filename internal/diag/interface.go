package diag

import (
	"time"

	"github.com/google/uuid"
)

// Severity ranks a diagnostic issue.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "low"
	}
}

// Category names the subsystem an issue concerns.
type Category int

const (
	CategoryGPS Category = iota
	CategoryPerformance
	CategorySystem
	CategoryBattery
	CategoryDataQuality
)

func (c Category) String() string {
	switch c {
	case CategoryPerformance:
		return "performance"
	case CategorySystem:
		return "system"
	case CategoryBattery:
		return "battery"
	case CategoryDataQuality:
		return "data_quality"
	default:
		return "gps"
	}
}

// AuthStatus is the externally polled location-authorization state.
type AuthStatus int

const (
	AuthNotDetermined AuthStatus = iota
	AuthDenied
	AuthAuthorized
)

func (a AuthStatus) String() string {
	switch a {
	case AuthDenied:
		return "denied"
	case AuthAuthorized:
		return "authorized"
	default:
		return "not_determined"
	}
}

// Issue is one advisory diagnostic finding. Append-only during a session.
type Issue struct {
	ID             uuid.UUID
	Severity       Severity
	Category       Category
	Timestamp      time.Time
	Description    string
	Impact         string
	Recommendation string
	Context        map[string]string
}

// MemorySnapshot samples process and system memory.
type MemorySnapshot struct {
	Timestamp      time.Time
	HeapAllocBytes uint64
	SysBytes       uint64
	AvailableBytes uint64 // system-wide, 0 when unknown
}

// BatterySnapshot samples device battery state.
type BatterySnapshot struct {
	Timestamp time.Time
	Present   bool
	Percent   int // -1 when unknown
	Charging  bool
}

// GPSQualitySnapshot samples the health of the position-fix stream.
type GPSQualitySnapshot struct {
	Timestamp          time.Time
	HorizontalAccuracy float64
	FixAgeSeconds      float64
	WindowFixes        int
}

// SystemStateSnapshot samples authorization and coarse system flags.
type SystemStateSnapshot struct {
	Timestamp         time.Time
	Authorization     AuthStatus
	LowPowerMode      bool
	BackgroundRefresh bool
}

// Data is a point-in-time copy of every buffer plus the issue log.
type Data struct {
	Memory      []MemorySnapshot
	Battery     []BatterySnapshot
	GPSQuality  []GPSQualitySnapshot
	SystemState []SystemStateSnapshot
	Issues      []Issue
}

// Prober supplies raw samples; the monitor stamps them. Implementations
// must be safe for concurrent use by the two sampler goroutines.
type Prober interface {
	Memory() (MemorySnapshot, error)
	Battery() (BatterySnapshot, error)
	System() (SystemStateSnapshot, error)
}

// Config wires a Monitor.
type Config struct {
	// Interval between samples of each periodic task.
	Interval time.Duration

	// Capacity of every ring buffer.
	Capacity int

	// Prober defaults to the host prober.
	Prober Prober

	// GPSStatus, when set, supplies fix-stream health; ok=false skips the
	// sample (no fixes seen yet).
	GPSStatus func() (GPSQualitySnapshot, bool)

	// Authorization, when set, overrides the prober's authorization state.
	Authorization func() AuthStatus
}
