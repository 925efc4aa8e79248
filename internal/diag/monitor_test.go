package diag_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwatch/tripwatch/internal/diag"
)

// fakeProber returns canned samples.
type fakeProber struct {
	mem diag.MemorySnapshot
	bat diag.BatterySnapshot
	sys diag.SystemStateSnapshot
}

func (f *fakeProber) Memory() (diag.MemorySnapshot, error)      { return f.mem, nil }
func (f *fakeProber) Battery() (diag.BatterySnapshot, error)    { return f.bat, nil }
func (f *fakeProber) System() (diag.SystemStateSnapshot, error) { return f.sys, nil }

func healthyProber() *fakeProber {
	return &fakeProber{
		mem: diag.MemorySnapshot{HeapAllocBytes: 10 << 20, SysBytes: 40 << 20, AvailableBytes: 4 << 30},
		bat: diag.BatterySnapshot{Present: true, Percent: 90, Charging: false},
		sys: diag.SystemStateSnapshot{Authorization: diag.AuthAuthorized, BackgroundRefresh: true},
	}
}

func TestBuffersNeverExceedCapacity(t *testing.T) {
	m := diag.NewMonitor(diag.Config{
		Interval: 2 * time.Millisecond,
		Capacity: 5,
		Prober:   healthyProber(),
	})

	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return len(m.AllData().Memory) == 5
	}, time.Second, 2*time.Millisecond, "buffer should fill to capacity")

	// Keep sampling well past capacity; length must stay pinned
	time.Sleep(50 * time.Millisecond)
	data := m.AllData()
	assert.Len(t, data.Memory, 5)
	assert.Len(t, data.Battery, 5)
	assert.Len(t, data.SystemState, 5)
}

func TestBufferEvictsOldestFirst(t *testing.T) {
	m := diag.NewMonitor(diag.Config{
		Interval: 2 * time.Millisecond,
		Capacity: 4,
		Prober:   healthyProber(),
	})

	m.Start()
	time.Sleep(50 * time.Millisecond)
	m.Stop()

	mem := m.AllData().Memory
	require.Len(t, mem, 4)
	for i := 1; i < len(mem); i++ {
		assert.True(t, !mem[i].Timestamp.Before(mem[i-1].Timestamp), "entries must stay in FIFO order")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	m := diag.NewMonitor(diag.Config{Interval: 5 * time.Millisecond, Capacity: 8, Prober: healthyProber()})

	m.Start()
	assert.True(t, m.Running())
	m.Stop()
	m.Stop()
	assert.False(t, m.Running())

	// Buffers persist after stop
	assert.NotEmpty(t, m.AllData().Memory)
}

func TestStartWhileRunningIsNoOp(t *testing.T) {
	m := diag.NewMonitor(diag.Config{Interval: 5 * time.Millisecond, Capacity: 8, Prober: healthyProber()})

	m.Start()
	m.Start()
	m.Stop()
}

func TestAddIssueFillsIdentity(t *testing.T) {
	m := diag.NewMonitor(diag.Config{Prober: healthyProber()})

	m.AddIssue(diag.Issue{
		Severity:    diag.SeverityCritical,
		Category:    diag.CategoryDataQuality,
		Description: "reject rate spike",
		Context:     map[string]string{"rejected": "17"},
	})

	issues := m.Issues()
	require.Len(t, issues, 1)
	assert.NotEqual(t, uuid.Nil, issues[0].ID)
	assert.False(t, issues[0].Timestamp.IsZero())
}

func TestIssuesReturnsDeepCopy(t *testing.T) {
	m := diag.NewMonitor(diag.Config{Prober: healthyProber()})
	m.AddIssue(diag.Issue{Description: "original", Context: map[string]string{"k": "v"}})

	got := m.Issues()
	got[0].Context["k"] = "mutated"

	assert.Equal(t, "v", m.Issues()[0].Context["k"], "caller mutation must not reach the live log")
}

func TestLowBatteryRaisesSingleIssue(t *testing.T) {
	p := healthyProber()
	p.bat = diag.BatterySnapshot{Present: true, Percent: 10, Charging: false}

	m := diag.NewMonitor(diag.Config{Interval: 2 * time.Millisecond, Capacity: 16, Prober: p})
	m.Start()
	time.Sleep(30 * time.Millisecond)
	m.Stop()

	var batteryIssues []diag.Issue
	for _, issue := range m.Issues() {
		if issue.Category == diag.CategoryBattery {
			batteryIssues = append(batteryIssues, issue)
		}
	}
	require.Len(t, batteryIssues, 1, "persisting condition must not flood the log")
	assert.Equal(t, diag.SeverityMedium, batteryIssues[0].Severity)
}

func TestDataForRange(t *testing.T) {
	m := diag.NewMonitor(diag.Config{Prober: healthyProber()})

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		m.AddIssue(diag.Issue{Description: "i", Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}

	d := m.DataForRange(base.Add(time.Minute), base.Add(3*time.Minute))
	assert.Len(t, d.Issues, 3, "range is inclusive on both ends")

	empty := m.DataForRange(base.Add(time.Hour), base.Add(2*time.Hour))
	assert.Empty(t, empty.Issues)
}

func TestGPSStatusSampling(t *testing.T) {
	status := diag.GPSQualitySnapshot{HorizontalAccuracy: 8, FixAgeSeconds: 2, WindowFixes: 5}
	m := diag.NewMonitor(diag.Config{
		Interval: 2 * time.Millisecond,
		Capacity: 8,
		Prober:   healthyProber(),
		GPSStatus: func() (diag.GPSQualitySnapshot, bool) {
			return status, true
		},
	})

	m.Start()
	require.Eventually(t, func() bool {
		return len(m.AllData().GPSQuality) > 0
	}, time.Second, 2*time.Millisecond)
	m.Stop()

	got := m.AllData().GPSQuality[0]
	want := status
	want.Timestamp = got.Timestamp
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestEmergencyCleanup(t *testing.T) {
	m := diag.NewMonitor(diag.Config{Interval: 2 * time.Millisecond, Capacity: 8, Prober: healthyProber()})
	m.Start()
	require.Eventually(t, func() bool {
		return len(m.AllData().Memory) > 0
	}, time.Second, 2*time.Millisecond)
	m.Stop()
	m.AddIssue(diag.Issue{Description: "x"})

	m.EmergencyCleanup()

	d := m.AllData()
	assert.Empty(t, d.Memory)
	assert.Empty(t, d.Battery)
	assert.Empty(t, d.GPSQuality)
	assert.Empty(t, d.SystemState)
	assert.Empty(t, d.Issues)
	assert.Zero(t, m.IssueCount())
}
