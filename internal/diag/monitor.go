package diag

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tripwatch/tripwatch/internal/logger"
)

const (
	lowBatteryPercent = 20
	lowMemoryBytes    = 50 << 20 // 50 MiB available
	staleFixSeconds   = 60.0
	defaultInterval   = 20 * time.Second
	defaultCapacity   = 60
)

// Monitor collects bounded rolling telemetry about the sensing pipeline,
// independent of trip state. Two periodic tasks sample on their own
// schedule; neither orders against trip transitions (diagnostics are
// advisory, never load-bearing).
type Monitor struct {
	mu  sync.Mutex
	cfg Config

	memory  *ring[MemorySnapshot]
	battery *ring[BatterySnapshot]
	gps     *ring[GPSQualitySnapshot]
	system  *ring[SystemStateSnapshot]
	issues  []Issue

	// Edge detection for threshold issues, so a persisting condition does
	// not flood the log.
	lowBatterySeen bool
	lowMemorySeen  bool
	staleFixSeen   bool

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func NewMonitor(cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = defaultCapacity
	}
	if cfg.Prober == nil {
		cfg.Prober = NewHostProber()
	}

	return &Monitor{
		cfg:     cfg,
		memory:  newRing[MemorySnapshot](cfg.Capacity),
		battery: newRing[BatterySnapshot](cfg.Capacity),
		gps:     newRing[GPSQualitySnapshot](cfg.Capacity),
		system:  newRing[SystemStateSnapshot](cfg.Capacity),
	}
}

// Start launches both periodic samplers. Starting a running monitor is a
// no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true

	m.wg.Add(2)
	go m.runSampler(ctx, m.sampleResources)
	go m.runSampler(ctx, m.sampleSystem)

	logger.Info().Dur("interval", m.cfg.Interval).Int("capacity", m.cfg.Capacity).Msg("Diagnostic monitoring started")
}

// Stop cancels both samplers and waits for them. Idempotent; buffers
// persist until explicitly cleared.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()

		return
	}
	m.running = false
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	logger.Info().Msg("Diagnostic monitoring stopped")
}

// Running reports whether the samplers are active (diagnostic mode).
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.running
}

func (m *Monitor) runSampler(ctx context.Context, sample func(now time.Time)) {
	defer m.wg.Done()

	// Immediate first sample, then the periodic schedule.
	sample(time.Now())

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sample(now)
		}
	}
}

// sampleResources is the memory+battery task.
func (m *Monitor) sampleResources(now time.Time) {
	mem, memErr := m.cfg.Prober.Memory()
	bat, batErr := m.cfg.Prober.Battery()

	m.mu.Lock()
	defer m.mu.Unlock()

	if memErr == nil {
		mem.Timestamp = now
		m.memory.push(mem)

		low := mem.AvailableBytes > 0 && mem.AvailableBytes < lowMemoryBytes
		if low && !m.lowMemorySeen {
			m.appendIssueLocked(Issue{
				Severity:       SeverityHigh,
				Category:       CategoryPerformance,
				Timestamp:      now,
				Description:    "Available system memory is low",
				Impact:         "Telemetry buffers may need an emergency cleanup",
				Recommendation: "Close other workloads or run emergency cleanup",
			})
		}
		m.lowMemorySeen = low
	}

	if batErr == nil {
		bat.Timestamp = now
		m.battery.push(bat)

		low := bat.Present && bat.Percent >= 0 && bat.Percent < lowBatteryPercent && !bat.Charging
		if low && !m.lowBatterySeen {
			m.appendIssueLocked(Issue{
				Severity:       SeverityMedium,
				Category:       CategoryBattery,
				Timestamp:      now,
				Description:    "Battery below 20% while discharging",
				Impact:         "Continuous tracking drains the remaining charge",
				Recommendation: "Connect power or stop tracking",
			})
		}
		m.lowBatterySeen = low
	}
}

// sampleSystem is the authorization/system-flags task; it also records GPS
// stream quality when a status source is wired.
func (m *Monitor) sampleSystem(now time.Time) {
	sys, err := m.cfg.Prober.System()

	var gps GPSQualitySnapshot
	haveGPS := false
	if m.cfg.GPSStatus != nil {
		gps, haveGPS = m.cfg.GPSStatus()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		sys.Timestamp = now
		if m.cfg.Authorization != nil {
			sys.Authorization = m.cfg.Authorization()
		}
		m.system.push(sys)
	}

	if haveGPS {
		gps.Timestamp = now
		m.gps.push(gps)

		stale := gps.FixAgeSeconds > staleFixSeconds
		if stale && !m.staleFixSeen {
			m.appendIssueLocked(Issue{
				Severity:       SeverityLow,
				Category:       CategoryGPS,
				Timestamp:      now,
				Description:    "No recent position fix",
				Impact:         "Trip distance cannot advance without fixes",
				Recommendation: "Check the fix source and sky view",
			})
		}
		m.staleFixSeen = stale
	}
}

// AddIssue appends to the issue log, filling ID and timestamp when unset.
func (m *Monitor) AddIssue(issue Issue) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.appendIssueLocked(issue)
}

func (m *Monitor) appendIssueLocked(issue Issue) {
	if issue.ID == uuid.Nil {
		issue.ID = uuid.New()
	}
	if issue.Timestamp.IsZero() {
		issue.Timestamp = time.Now()
	}
	m.issues = append(m.issues, issue)

	logger.Info().
		Str("severity", issue.Severity.String()).
		Str("category", issue.Category.String()).
		Str("description", issue.Description).
		Msg("Diagnostic issue")
}

// Issues returns a copy of the issue log.
func (m *Monitor) Issues() []Issue {
	m.mu.Lock()
	defer m.mu.Unlock()

	return copyIssues(m.issues)
}

// IssueCount returns the size of the issue log.
func (m *Monitor) IssueCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.issues)
}

// AllData returns a copy of every buffer and the issue log.
func (m *Monitor) AllData() Data {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Data{
		Memory:      m.memory.snapshot(),
		Battery:     m.battery.snapshot(),
		GPSQuality:  m.gps.snapshot(),
		SystemState: m.system.snapshot(),
		Issues:      copyIssues(m.issues),
	}
}

// DataForRange returns a copy of every buffer and the issue log filtered to
// timestamps within [from, to]. The copy shares nothing with the live
// buffers.
func (m *Monitor) DataForRange(from, to time.Time) Data {
	m.mu.Lock()
	defer m.mu.Unlock()

	in := func(t time.Time) bool {
		return !t.Before(from) && !t.After(to)
	}

	d := Data{}
	for _, s := range m.memory.snapshot() {
		if in(s.Timestamp) {
			d.Memory = append(d.Memory, s)
		}
	}
	for _, s := range m.battery.snapshot() {
		if in(s.Timestamp) {
			d.Battery = append(d.Battery, s)
		}
	}
	for _, s := range m.gps.snapshot() {
		if in(s.Timestamp) {
			d.GPSQuality = append(d.GPSQuality, s)
		}
	}
	for _, s := range m.system.snapshot() {
		if in(s.Timestamp) {
			d.SystemState = append(d.SystemState, s)
		}
	}
	for _, issue := range m.issues {
		if in(issue.Timestamp) {
			d.Issues = append(d.Issues, copyIssue(issue))
		}
	}

	return d
}

// EmergencyCleanup unconditionally clears every buffer and the issue log.
// The escape hatch for externally detected memory pressure; destructive.
func (m *Monitor) EmergencyCleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.memory.reset()
	m.battery.reset()
	m.gps.reset()
	m.system.reset()
	m.issues = nil
	m.lowBatterySeen = false
	m.lowMemorySeen = false
	m.staleFixSeen = false

	logger.Warn().Msg("Emergency cleanup: all diagnostic buffers cleared")
}

func copyIssues(issues []Issue) []Issue {
	out := make([]Issue, len(issues))
	for i, issue := range issues {
		out[i] = copyIssue(issue)
	}

	return out
}

func copyIssue(issue Issue) Issue {
	if issue.Context != nil {
		ctx := make(map[string]string, len(issue.Context))
		for k, v := range issue.Context {
			ctx[k] = v
		}
		issue.Context = ctx
	}

	return issue
}
