package gpu

import (
	"codeberg.org/mutker/nvidiawatch/internal/errors"
	"codeberg.org/mutker/nvidiawatch/internal/logger"
)

const milliWattsToWatts = 1000

// powerReader reports board power draw and the enforced limit, in watts.
type powerReader struct {
	dev       device
	supported bool
}

func newPowerReader(dev device, log logger.Logger) *powerReader {
	pr := &powerReader{dev: dev}

	_, ret := dev.GetPowerUsage()
	switch {
	case IsNVMLSuccess(ret):
		pr.supported = true
	case isUnsupported(ret):
		log.Debug().Msg("Power readings not supported")
	default:
		log.Warn().Err(newNVMLError(ret)).Msg("Failed to probe power usage")
	}

	return pr
}

func (pr *powerReader) read(snap *Snapshot) error {
	if !pr.supported {
		return nil
	}
	errFactory := errors.New()

	usage, ret := pr.dev.GetPowerUsage()
	if !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrPowerUsageFailed, newNVMLError(ret))
	}

	limit, ret := pr.dev.GetEnforcedPowerLimit()
	if !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrPowerLimitFailed, newNVMLError(ret))
	}

	snap.HasPower = true
	snap.PowerUsage = Watts(usage / milliWattsToWatts)
	snap.PowerLimit = Watts(limit / milliWattsToWatts)

	return nil
}
