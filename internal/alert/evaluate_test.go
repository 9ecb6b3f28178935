package alert_test

import (
	"sync"
	"testing"

	"codeberg.org/mutker/nvidiawatch/internal/alert"
	"codeberg.org/mutker/nvidiawatch/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSeries lets tests pin the stability fields independently of the points.
type fakeSeries struct {
	points      []series.Point
	stable      bool
	stableSince int64
	stableCount int
}

func (f *fakeSeries) ObservedCount() int64 { return int64(len(f.points)) }
func (f *fakeSeries) LastValue() int64     { return f.points[len(f.points)-1].Value }
func (f *fakeSeries) LastTime() int64      { return f.points[len(f.points)-1].Time }
func (f *fakeSeries) Points() []series.Point {
	return append([]series.Point(nil), f.points...)
}
func (f *fakeSeries) IsStable() bool     { return f.stable }
func (f *fakeSeries) StableSince() int64 { return f.stableSince }
func (f *fakeSeries) StableCount() int   { return f.stableCount }

// bufferOf fills a buffer with one sample per second starting at t=1000ms.
func bufferOf(t *testing.T, capacity int, values ...int64) *series.Buffer {
	t.Helper()
	b, err := series.NewBuffer(capacity)
	require.NoError(t, err)
	for i, v := range values {
		require.NoError(t, b.Add(int64(i+1)*1000, v))
	}
	return b
}

func repeat(v int64, n int) []int64 {
	values := make([]int64, n)
	for i := range values {
		values[i] = v
	}
	return values
}

func TestNoneAlwaysSatisfied(t *testing.T) {
	assert.True(t, alert.None.Satisfied(bufferOf(t, 3)))
	assert.True(t, alert.None.Satisfied(nil))
	assert.True(t, alert.None.Satisfied(bufferOf(t, 3, 5, 6, 7)))

	var unset *alert.Condition
	assert.True(t, unset.Satisfied(bufferOf(t, 3)))
}

func TestNoDataNeverSatisfied(t *testing.T) {
	empty := bufferOf(t, 10)
	conds := []*alert.Condition{
		alert.New(alert.EQ, 0),
		alert.New(alert.GE, -1000),
		alert.New(alert.LE, 1000).WithWindowCount(3),
		alert.New(alert.LE, 1000).WithWindowMillis(0).WithAverage(),
		alert.New(alert.LE, 1000).WithWindowMillis(5000),
	}

	for _, c := range conds {
		assert.False(t, c.Satisfied(empty), c.String())
		assert.False(t, c.Satisfied(nil), c.String())
	}
}

func TestInstantComparison(t *testing.T) {
	b := bufferOf(t, 10, 100, 3, 42)
	ops := []alert.Operator{alert.LT, alert.LE, alert.EQ, alert.GT, alert.GE}

	for _, op := range ops {
		for _, threshold := range []int64{41, 42, 43} {
			c := alert.New(op, threshold)
			assert.Equal(t, op.Compare(42, threshold), c.Satisfied(b), c.String())
		}
	}
}

func TestAverageWithoutWindow(t *testing.T) {
	unstable := bufferOf(t, 10, 100, 100, 1)

	// nothing to average over and the last-value check is skipped
	assert.True(t, alert.New(alert.GE, 50).WithAverage().Satisfied(unstable))
	assert.True(t, alert.New(alert.LT, 50).WithAverage().Satisfied(unstable))

	stable := bufferOf(t, 2, 1, 1)
	require.True(t, stable.IsStable())
	assert.False(t, alert.New(alert.GE, 50).WithAverage().Satisfied(stable))
	assert.True(t, alert.New(alert.LT, 50).WithAverage().Satisfied(stable))
}

func TestAverageVersusPerSample(t *testing.T) {
	perSample := alert.New(alert.GE, 50).WithWindowCount(5)
	average := perSample.WithAverage()

	mixed := bufferOf(t, 5, 10, 10, 10, 10, 100)
	assert.False(t, perSample.Satisfied(mixed))
	assert.False(t, average.Satisfied(mixed), "average is 28")

	for _, capacity := range []int{5, 10} {
		flat := bufferOf(t, capacity, 60, 60, 60, 60, 60)
		assert.True(t, perSample.Satisfied(flat), "capacity %d", capacity)
		assert.True(t, average.Satisfied(flat), "capacity %d", capacity)
	}
}

func TestAverageSkipsLastValueRejectWhenUnstable(t *testing.T) {
	b := bufferOf(t, 10, 90, 90, 90, 90, 10)

	assert.True(t, alert.New(alert.GE, 50).WithWindowCount(5).WithAverage().Satisfied(b), "average is 74")
	assert.False(t, alert.New(alert.GE, 50).WithWindowCount(5).Satisfied(b))
}

func TestAverageDividesBySamplesScanned(t *testing.T) {
	values := repeat(60, 35)
	b := bufferOf(t, 100, values...)

	// 35 samples of 60: dividing by the requested 50 would give 42
	c := alert.New(alert.GE, 60).WithWindowCount(50).WithAverage()
	assert.True(t, c.Satisfied(b))
}

func TestAverageTruncatesTowardZero(t *testing.T) {
	b := bufferOf(t, 10, 1, 2)
	assert.True(t, alert.New(alert.EQ, 1).WithWindowCount(2).WithAverage().Satisfied(b))

	neg := bufferOf(t, 10, -1, -2)
	assert.True(t, alert.New(alert.EQ, -1).WithWindowCount(2).WithAverage().Satisfied(neg))

	mixed := bufferOf(t, 10, -3, 2)
	assert.True(t, alert.New(alert.EQ, 0).WithWindowCount(2).WithAverage().Satisfied(mixed))
}

func TestAverageDoesNotOverflow(t *testing.T) {
	const big = int64(1) << 62
	b := bufferOf(t, 10, big, big, big, big+3)

	assert.True(t, alert.New(alert.EQ, big).WithWindowCount(4).WithAverage().Satisfied(b))
	assert.False(t, alert.New(alert.GT, big).WithWindowCount(4).WithAverage().Satisfied(b))
}

func TestWarmUpGuard(t *testing.T) {
	b := bufferOf(t, 100, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	assert.False(t, alert.New(alert.GT, 0).WithWindowCount(50).Satisfied(b), "10 of 50 samples")
	assert.True(t, alert.New(alert.GT, 0).WithWindowCount(5).Satisfied(b))
	assert.True(t, alert.New(alert.GT, 0).WithWindowCount(10).Satisfied(b))
	assert.False(t, alert.New(alert.GT, 5).WithWindowCount(6).Satisfied(b))
}

func TestWarmUpGuardReleasedAtMinSamples(t *testing.T) {
	values := make([]int64, alert.MinSamples)
	for i := range values {
		values[i] = int64(i + 1)
	}
	b := bufferOf(t, 100, values...)

	assert.True(t, alert.New(alert.GT, 0).WithWindowCount(50).Satisfied(b))
	assert.False(t, alert.New(alert.GT, 1).WithWindowCount(50).Satisfied(b))
}

func TestNonPositiveMillisWindowUsesAllSamples(t *testing.T) {
	passing := bufferOf(t, 100, 70, 80, 90, 60)
	failing := bufferOf(t, 100, 40, 80, 90, 60)

	for _, ms := range []int64{0, -5} {
		c := alert.New(alert.GE, 50).WithWindowMillis(ms)
		assert.True(t, c.Satisfied(passing), "ms=%d", ms)
		assert.False(t, c.Satisfied(failing), "ms=%d", ms)

		avg := c.WithAverage()
		assert.True(t, avg.Satisfied(failing), "ms=%d average is 67", ms)
	}

	zero := alert.New(alert.GE, 50).WithWindowMillis(0)
	negative := alert.New(alert.GE, 50).WithWindowMillis(-5)
	assert.Equal(t, zero.Satisfied(failing), negative.Satisfied(failing))
}

func TestNonPositiveMillisWindowScansEvenWhenStable(t *testing.T) {
	f := &fakeSeries{
		points:      []series.Point{{Time: 1000, Value: 1}, {Time: 2000, Value: 9}},
		stable:      true,
		stableSince: 2000,
		stableCount: 1,
	}

	assert.False(t, alert.New(alert.GE, 9).WithWindowMillis(0).Satisfied(f))
}

func TestMillisWindowScan(t *testing.T) {
	// t=1000..10000, the window opens at 10000-3000=7000
	b := bufferOf(t, 100, 0, 0, 0, 0, 0, 0, 50, 50, 50, 50)

	assert.True(t, alert.New(alert.GE, 50).WithWindowMillis(2500).Satisfied(b))
	assert.True(t, alert.New(alert.GE, 50).WithWindowMillis(3000).Satisfied(b))
	assert.False(t, alert.New(alert.GE, 50).WithWindowMillis(3500).Satisfied(b), "sample at 6000 is in effect at 6500")
	assert.False(t, alert.New(alert.GE, 50).WithWindowMillis(4000).Satisfied(b))
	assert.True(t, alert.New(alert.GE, 0).WithWindowMillis(4000).Satisfied(b))
}

func TestMillisWindowShortHistoryGuard(t *testing.T) {
	b := bufferOf(t, 100, 50, 50, 60, 50, 50)

	// buffer spans 1000..5000, so a 20s window reaches back before it
	assert.False(t, alert.New(alert.GE, 50).WithWindowMillis(20000).Satisfied(b))
	assert.True(t, alert.New(alert.GE, 50).WithWindowMillis(4000).Satisfied(b))

	// long windows accept partial history
	assert.True(t, alert.New(alert.GE, 50).WithWindowMillis(alert.MinHistoryMillis).Satisfied(b))
	assert.True(t, alert.New(alert.GE, 50).WithWindowMillis(60000).Satisfied(b))
	assert.False(t, alert.New(alert.GE, 55).WithWindowMillis(60000).Satisfied(b))
}

func TestStableFastPath(t *testing.T) {
	b := bufferOf(t, 5, 1, 2, 7, 7, 7, 7, 7)
	require.True(t, b.IsStable())
	require.Equal(t, int64(3000), b.StableSince())
	require.Equal(t, 5, b.StableCount())

	assert.True(t, alert.New(alert.EQ, 7).WithWindowCount(5).Satisfied(b))
	assert.False(t, alert.New(alert.EQ, 7).WithWindowCount(6).Satisfied(b))
	assert.True(t, alert.New(alert.EQ, 7).WithWindowMillis(4000).Satisfied(b))
	assert.False(t, alert.New(alert.EQ, 7).WithWindowMillis(4001).Satisfied(b))
	assert.False(t, alert.New(alert.EQ, 8).WithWindowCount(1).Satisfied(b))
	assert.False(t, alert.New(alert.LT, 7).WithWindowCount(1).WithAverage().Satisfied(b), "stable series rejects on last value")
}

func TestStableAndScanAgree(t *testing.T) {
	// values change at t=3000 and stay at 9 up to t=10000
	values := []int64{5, 5, 9, 9, 9, 9, 9, 9, 9, 9}
	points := make([]series.Point, len(values))
	for i, v := range values {
		points[i] = series.Point{Time: int64(i+1) * 1000, Value: v}
	}
	stable := &fakeSeries{points: points, stable: true, stableSince: 3000, stableCount: 8}
	scanned := &fakeSeries{points: points}

	// the values before the run fail every one of these conditions
	for _, c0 := range []*alert.Condition{alert.New(alert.GE, 9), alert.New(alert.EQ, 9), alert.New(alert.GT, 8)} {
		for k := int32(1); k <= 12; k++ {
			c := c0.WithWindowCount(k)
			assert.Equal(t, c.Satisfied(scanned), c.Satisfied(stable), c.String())
		}
		for ms := int64(250); ms <= 12000; ms += 250 {
			c := c0.WithWindowMillis(ms)
			assert.Equal(t, c.Satisfied(scanned), c.Satisfied(stable), c.String())
		}
	}

	for k := int32(1); k <= 8; k++ {
		c := alert.New(alert.GE, 9).WithWindowCount(k).WithAverage()
		assert.True(t, c.Satisfied(scanned), c.String())
		assert.True(t, c.Satisfied(stable), c.String())
	}
}

func TestStaleSnapshotDoesNotPanic(t *testing.T) {
	// LastTime is ahead of the newest point, as with a concurrent append
	racy := &racySeries{fakeSeries: fakeSeries{points: []series.Point{{Time: 1000, Value: 5}}}, lastTime: 90000}
	assert.NotPanics(t, func() {
		alert.New(alert.GE, 1).WithWindowMillis(1000).Satisfied(racy)
		alert.New(alert.GE, 1).WithWindowMillis(50000).WithAverage().Satisfied(racy)
		alert.New(alert.GE, 1).WithWindowCount(3).Satisfied(racy)
	})

	// observed but the points snapshot came back empty
	empty := &racySeries{observed: 1}
	assert.NotPanics(t, func() {
		assert.False(t, alert.New(alert.GE, 0).WithWindowMillis(0).WithAverage().Satisfied(empty))
		assert.False(t, alert.New(alert.GE, 0).WithWindowMillis(50000).Satisfied(empty))
		assert.False(t, alert.New(alert.GE, 0).WithWindowCount(-1).Satisfied(empty))
	})
}

type racySeries struct {
	fakeSeries
	lastTime int64
	observed int64
}

func (r *racySeries) ObservedCount() int64 {
	if r.observed > 0 {
		return r.observed
	}
	return r.fakeSeries.ObservedCount()
}

func (r *racySeries) LastValue() int64 {
	if len(r.points) == 0 {
		return 0
	}
	return r.fakeSeries.LastValue()
}

func (r *racySeries) LastTime() int64 {
	if r.lastTime > 0 || len(r.points) == 0 {
		return r.lastTime
	}
	return r.fakeSeries.LastTime()
}

func TestConcurrentEvaluation(t *testing.T) {
	b := bufferOf(t, 64)
	conds := []*alert.Condition{
		alert.New(alert.GE, 0).WithWindowCount(10),
		alert.New(alert.LT, 3).WithWindowMillis(200).WithAverage(),
		alert.New(alert.LE, 5).WithWindowMillis(0),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(1); i <= 2000; i++ {
			_ = b.Add(i, (i/50)%4)
		}
	}()
	for _, c := range conds {
		wg.Add(1)
		go func(c *alert.Condition) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				c.Satisfied(b)
			}
		}(c)
	}
	wg.Wait()
}
