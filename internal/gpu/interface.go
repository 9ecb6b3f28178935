package gpu

import (
	"context"
	"time"
)

// Sampler reads one snapshot of device metrics.
type Sampler interface {
	Sample(ctx context.Context) (Snapshot, error)
}

// Metric names under which snapshot values are recorded.
const (
	MetricTemperature       = "temperature"
	MetricFanSpeed          = "fan_speed"
	MetricPowerUsage        = "power_usage"
	MetricPowerLimit        = "power_limit"
	MetricUtilization       = "utilization"
	MetricMemoryUtilization = "memory_utilization"
)

// Domain types for type safety
type (
	Temperature int64 // degrees Celsius
	FanSpeed    int64 // percent of maximum
	Watts       int64
	Percent     int64
)

// Snapshot holds the readings of one sampling round. Fan and power readings
// are absent on devices that do not report them.
type Snapshot struct {
	Time              time.Time
	Temperature       Temperature
	Utilization       Percent
	MemoryUtilization Percent

	HasFan   bool
	FanSpeed FanSpeed

	HasPower   bool
	PowerUsage Watts
	PowerLimit Watts
}

// Values returns the snapshot keyed by metric name.
func (s Snapshot) Values() map[string]int64 {
	values := map[string]int64{
		MetricTemperature:       int64(s.Temperature),
		MetricUtilization:       int64(s.Utilization),
		MetricMemoryUtilization: int64(s.MemoryUtilization),
	}
	if s.HasFan {
		values[MetricFanSpeed] = int64(s.FanSpeed)
	}
	if s.HasPower {
		values[MetricPowerUsage] = int64(s.PowerUsage)
		values[MetricPowerLimit] = int64(s.PowerLimit)
	}
	return values
}
