// Package gpu samples NVIDIA device sensors through NVML.
package gpu

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/nvidiawatch/internal/errors"
	"codeberg.org/mutker/nvidiawatch/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// GPU is a read-only handle on one NVML device.
type GPU struct {
	ctl    nvmlController
	dev    device
	index  int
	name   string
	uuid   string
	fans   *fanReader
	power  *powerReader
	logger logger.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// Open initializes NVML and attaches to the device at index.
func Open(index int, log logger.Logger) (*GPU, error) {
	return open(&nvmlWrapper{}, index, log)
}

func open(ctl nvmlController, index int, log logger.Logger) (*GPU, error) {
	errFactory := errors.New()

	if err := ctl.Initialize(); err != nil {
		return nil, err
	}

	count, err := ctl.GetDeviceCount()
	if err != nil {
		_ = ctl.Shutdown()
		return nil, err
	}
	if index < 0 || index >= count {
		_ = ctl.Shutdown()
		return nil, errFactory.WithData(ErrDeviceNotFound, struct {
			Index int
			Count int
		}{
			Index: index,
			Count: count,
		})
	}

	dev, err := ctl.GetDevice(index)
	if err != nil {
		_ = ctl.Shutdown()
		return nil, err
	}

	g := newGPU(dev, index, log)
	g.ctl = ctl

	return g, nil
}

func newGPU(dev device, index int, log logger.Logger) *GPU {
	g := &GPU{
		dev:    dev,
		index:  index,
		logger: log,
		now:    time.Now,
	}

	if name, ret := dev.GetName(); IsNVMLSuccess(ret) {
		g.name = name
	} else {
		log.Warn().Str("error", nvml.ErrorString(ret)).Msg("Failed to get GPU name")
	}
	if uuid, ret := dev.GetUUID(); IsNVMLSuccess(ret) {
		g.uuid = uuid
	}

	g.fans = newFanReader(dev, log)
	g.power = newPowerReader(dev, log)

	log.Info().
		Int("index", index).
		Str("name", g.name).
		Str("uuid", g.uuid).
		Int("fans", g.fans.count).
		Bool("power", g.power.supported).
		Msg("Detected GPU")

	return g
}

func (g *GPU) Name() string { return g.name }
func (g *GPU) UUID() string { return g.uuid }

// Sample reads every supported sensor. Temperature and utilization are
// required; fan and power readings are skipped on devices without them.
func (g *GPU) Sample(ctx context.Context) (Snapshot, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return Snapshot{}, errFactory.Wrap(errors.ErrTimeout, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	snap := Snapshot{Time: g.now()}

	temp, ret := g.dev.GetTemperature(nvml.TEMPERATURE_GPU)
	if !IsNVMLSuccess(ret) {
		return Snapshot{}, errFactory.Wrap(ErrTemperatureReadFailed, newNVMLError(ret))
	}
	snap.Temperature = Temperature(temp)

	util, ret := g.dev.GetUtilizationRates()
	if !IsNVMLSuccess(ret) {
		return Snapshot{}, errFactory.Wrap(ErrUtilizationReadFailed, newNVMLError(ret))
	}
	snap.Utilization = Percent(util.Gpu)
	snap.MemoryUtilization = Percent(util.Memory)

	if err := g.fans.read(&snap); err != nil {
		return Snapshot{}, err
	}
	if err := g.power.read(&snap); err != nil {
		return Snapshot{}, err
	}

	return snap, nil
}

// Shutdown releases NVML. It is safe to call more than once.
func (g *GPU) Shutdown() error {
	if g.ctl == nil {
		return nil
	}
	return g.ctl.Shutdown()
}
