package gpu

import (
	"codeberg.org/mutker/nvidiawatch/internal/errors"
	"codeberg.org/mutker/nvidiawatch/internal/logger"
)

// fanReader reports the speed of the first fan. Passively cooled devices
// report no fans.
type fanReader struct {
	dev   device
	count int
}

func newFanReader(dev device, log logger.Logger) *fanReader {
	fr := &fanReader{dev: dev}

	count, ret := dev.GetNumFans()
	switch {
	case IsNVMLSuccess(ret):
		fr.count = count
	case isUnsupported(ret):
		log.Debug().Msg("Fan speed not supported")
	default:
		log.Warn().Err(newNVMLError(ret)).Msg("Failed to get fan count")
	}

	return fr
}

func (fr *fanReader) read(snap *Snapshot) error {
	if fr.count == 0 {
		return nil
	}

	speed, ret := fr.dev.GetFanSpeed_v2(0)
	if !IsNVMLSuccess(ret) {
		return errors.New().Wrap(ErrGetFanSpeedFailed, newNVMLError(ret))
	}

	snap.HasFan = true
	snap.FanSpeed = FanSpeed(speed)

	return nil
}
