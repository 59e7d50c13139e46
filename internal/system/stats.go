// Package system reads host health metrics: CPU, memory, disk, load,
// uptime and the SoC temperature on boards that expose one.
package system

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Stats is one snapshot of host health. Temperature is zero when no
// sensor is available.
type Stats struct {
	CPUPercent    float64       `json:"cpuPercent"`
	MemoryPercent float64       `json:"memoryPercent"`
	MemoryUsedMB  uint64        `json:"memoryUsedMb"`
	MemoryTotalMB uint64        `json:"memoryTotalMb"`
	DiskPercent   float64       `json:"diskPercent"`
	DiskFreeGB    float64       `json:"diskFreeGb"`
	Load1         float64       `json:"load1"`
	Load5         float64       `json:"load5"`
	Load15        float64       `json:"load15"`
	Uptime        time.Duration `json:"uptime"`
	TemperatureC  float64       `json:"temperatureC"`
}

const thermalZonePath = "/sys/class/thermal/thermal_zone0/temp"

// Read collects a snapshot. Individual metric failures leave their fields
// zero rather than failing the whole read; a headless dashboard poll
// should not die because one sensor is missing.
func Read(ctx context.Context) Stats {
	var stats Stats

	if percents, err := cpu.PercentWithContext(ctx, time.Second, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryPercent = vm.UsedPercent
		stats.MemoryUsedMB = vm.Used / 1024 / 1024
		stats.MemoryTotalMB = vm.Total / 1024 / 1024
	}
	if usage, err := disk.UsageWithContext(ctx, "/"); err == nil {
		stats.DiskPercent = usage.UsedPercent
		stats.DiskFreeGB = float64(usage.Free) / 1024 / 1024 / 1024
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		stats.Load1 = avg.Load1
		stats.Load5 = avg.Load5
		stats.Load15 = avg.Load15
	}
	if uptime, err := host.UptimeWithContext(ctx); err == nil {
		stats.Uptime = time.Duration(uptime) * time.Second
	}
	stats.TemperatureC = Temperature(ctx)

	return stats
}

// Temperature returns the CPU temperature in Celsius, or 0 when no sensor
// is readable. gopsutil's sensor list is tried first, then the Raspberry
// Pi thermal zone file.
func Temperature(ctx context.Context) float64 {
	if sensors, err := host.SensorsTemperaturesWithContext(ctx); err == nil {
		for _, sensor := range sensors {
			key := strings.ToLower(sensor.SensorKey)
			if sensor.Temperature > 0 &&
				(strings.Contains(key, "cpu") || strings.Contains(key, "coretemp") || strings.Contains(key, "soc")) {
				return sensor.Temperature
			}
		}
	}
	return thermalZoneTemperature(thermalZonePath)
}

// thermalZoneTemperature reads the sysfs thermal zone, which reports
// millidegrees.
func thermalZoneTemperature(path string) float64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	milli, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return float64(milli) / 1000
}
