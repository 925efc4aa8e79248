package diag

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

const powerSupplyDir = "/sys/class/power_supply"

// hostProber samples the local host: process memory from the runtime,
// system memory from /proc/meminfo, battery from sysfs. Everything degrades
// to "unknown" rather than erroring on hosts without a battery or procfs.
type hostProber struct{}

func NewHostProber() Prober {
	return hostProber{}
}

func (hostProber) Memory() (MemorySnapshot, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return MemorySnapshot{
		HeapAllocBytes: ms.HeapAlloc,
		SysBytes:       ms.Sys,
		AvailableBytes: readMemAvailable(),
	}, nil
}

func (hostProber) Battery() (BatterySnapshot, error) {
	snap := BatterySnapshot{Percent: -1}

	entries, err := os.ReadDir(powerSupplyDir)
	if err != nil {
		return snap, nil
	}

	for _, e := range entries {
		base := filepath.Join(powerSupplyDir, e.Name())
		if readSysfsString(filepath.Join(base, "type")) != "Battery" {
			continue
		}
		snap.Present = true
		if pct, err := strconv.Atoi(readSysfsString(filepath.Join(base, "capacity"))); err == nil {
			snap.Percent = pct
		}
		status := readSysfsString(filepath.Join(base, "status"))
		snap.Charging = status == "Charging" || status == "Full"

		break
	}

	return snap, nil
}

func (hostProber) System() (SystemStateSnapshot, error) {
	return SystemStateSnapshot{
		Authorization:     AuthAuthorized,
		LowPowerMode:      false,
		BackgroundRefresh: true,
	}, nil
}

func readSysfsString(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(b))
}

// readMemAvailable returns MemAvailable from /proc/meminfo in bytes, 0 when
// unavailable.
func readMemAvailable() uint64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0
		}

		return kb * 1024
	}

	return 0
}
