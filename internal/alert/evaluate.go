package alert

import "codeberg.org/mutker/nvidiawatch/internal/series"

const (
	// MinSamples is the fewest samples a count window may fall back to when the
	// buffer holds fewer than requested.
	MinSamples = 30
	// MinHistoryMillis is the window length below which a millis window requires
	// the buffer to reach back past the window start.
	MinHistoryMillis = 30000
)

// Satisfied reports whether the series currently satisfies the condition.
//
// Every read from s is treated as an independent snapshot; a series appended to
// concurrently at worst yields a decision that is one sample stale.
func (c *Condition) Satisfied(s series.Series) bool {
	if c.IsNone() {
		return true
	}
	if s == nil || s.ObservedCount() == 0 {
		return false
	}

	stable := s.IsStable()
	// The last sample failing does not disqualify the average of an unstable window.
	if (!c.onAverage || stable) && !c.compare(s.LastValue()) {
		return false
	}

	switch {
	case c.window.IsMillis():
		ms := c.window.Length()
		if ms <= 0 {
			return c.scan(s.Points(), -1)
		}
		return c.verdict(s, stable).forLastMillis(ms)
	case c.window.IsCount():
		return c.verdict(s, stable).forLastTimes(int(c.window.Length()))
	default:
		return true
	}
}

// windowedVerdict decides a windowed condition either from the series'
// stability bookkeeping or by scanning its retained samples.
type windowedVerdict interface {
	forLastMillis(ms int64) bool
	forLastTimes(k int) bool
}

func (c *Condition) verdict(s series.Series, stable bool) windowedVerdict {
	if stable {
		return stableVerdict{s: s}
	}
	return scanVerdict{c: c, s: s}
}

// stableVerdict answers from the run of unchanged values without touching the samples.
// The caller has already checked the run's value against the threshold.
type stableVerdict struct {
	s series.Series
}

func (v stableVerdict) forLastMillis(ms int64) bool {
	return v.s.StableSince() <= v.s.LastTime()-ms
}

func (v stableVerdict) forLastTimes(k int) bool {
	return v.s.StableCount() >= k
}

type scanVerdict struct {
	c *Condition
	s series.Series
}

func (v scanVerdict) forLastMillis(ms int64) bool {
	points := v.s.Points()
	if len(points) == 0 {
		return false
	}

	startTime := v.s.LastTime() - ms
	if points[0].Time > startTime && ms < MinHistoryMillis {
		return false // buffer does not reach back far enough yet
	}

	// The newest sample at or before startTime is the value in effect when the
	// window opens, so it is part of the window.
	i := len(points) - 1
	for i >= 0 && points[i].Time > startTime {
		i--
	}
	n := len(points)
	if i > 0 {
		n -= i
	}

	return v.c.scan(points, n)
}

func (v scanVerdict) forLastTimes(k int) bool {
	return v.c.scan(v.s.Points(), k)
}

// scan checks the k most recent points; k <= 0 means every point.
func (c *Condition) scan(points []series.Point, k int) bool {
	n := len(points)
	if k > 0 {
		n = min(n, k)
	}
	if k > 0 && n < k && n < MinSamples {
		return false // not enough data yet
	}
	if n == 0 {
		return false
	}

	window := points[len(points)-n:]
	if c.onAverage {
		return c.compare(truncatedMean(window))
	}

	for i := len(window) - 1; i >= 0; i-- {
		if !c.compare(window[i].Value) {
			return false
		}
	}

	return true
}

// truncatedMean returns the mean of the values rounded toward zero. It sums
// quotients and remainders separately so large values cannot overflow.
func truncatedMean(points []series.Point) int64 {
	n := int64(len(points))

	var quotients, remainders int64
	for _, p := range points {
		quotients += p.Value / n
		remainders += p.Value % n
	}

	mean := quotients + remainders/n
	rest := remainders % n
	switch {
	case mean > 0 && rest < 0:
		mean--
	case mean < 0 && rest > 0:
		mean++
	}

	return mean
}
