package history_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/nvidiawatch/internal/errors"
	"codeberg.org/mutker/nvidiawatch/internal/history"
	"codeberg.org/mutker/nvidiawatch/internal/logger"
	"codeberg.org/mutker/nvidiawatch/internal/watch"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, batchSize int) (history.Store, history.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := history.Config{
		Enabled:      true,
		DBPath:       filepath.Join(dir, "history.db"),
		BatchSize:    batchSize,
		BatchTimeout: time.Hour,
		BackupDir:    filepath.Join(dir, "backups"),
	}
	store, err := history.NewRepository(cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, cfg
}

func transition(rule string, state watch.State, at time.Time) watch.Transition {
	return watch.Transition{
		ID:        uuid.New(),
		Rule:      rule,
		Metric:    "temperature",
		Severity:  watch.SeverityCritical,
		State:     state,
		Value:     91,
		Time:      at,
		Condition: "value > 80",
	}
}

func TestSamplesRoundTrip(t *testing.T) {
	store, _ := newStore(t, 100)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, store.RecordSample(ctx, history.Sample{Metric: "temperature", Timestamp: i * 1000, Value: 60 + i}))
	}
	require.NoError(t, store.RecordSample(ctx, history.Sample{Metric: "fan_speed", Timestamp: 1000, Value: 40}))

	// buffered samples are flushed before reading
	samples, err := store.LoadSamples(ctx, "temperature", 3)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, history.Sample{Metric: "temperature", Timestamp: 3000, Value: 63}, samples[0])
	assert.Equal(t, int64(5000), samples[2].Timestamp)

	samples, err = store.LoadSamples(ctx, "fan_speed", 10)
	require.NoError(t, err)
	require.Len(t, samples, 1)

	samples, err = store.LoadSamples(ctx, "missing", 10)
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestDuplicateSamplesIgnored(t *testing.T) {
	store, _ := newStore(t, 1)
	ctx := context.Background()

	require.NoError(t, store.RecordSample(ctx, history.Sample{Metric: "temperature", Timestamp: 1000, Value: 60}))
	require.NoError(t, store.RecordSample(ctx, history.Sample{Metric: "temperature", Timestamp: 1000, Value: 61}))

	samples, err := store.LoadSamples(ctx, "temperature", 10)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, int64(60), samples[0].Value)
}

func TestTransitionsRoundTrip(t *testing.T) {
	store, _ := newStore(t, 10)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	raised := transition("gpu-hot", watch.StateRaised, base)
	cleared := transition("gpu-hot", watch.StateCleared, base.Add(time.Minute))
	fan := transition("fan-stuck", watch.StateRaised, base.Add(30*time.Second))
	require.NoError(t, store.RecordTransition(ctx, raised))
	require.NoError(t, store.RecordTransition(ctx, fan))
	require.NoError(t, store.RecordTransition(ctx, cleared))

	// newest per rule, oldest first
	got, err := store.LatestTransitions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, fan.ID, got[0].ID)
	assert.Equal(t, "fan-stuck", got[0].Rule)
	assert.Equal(t, watch.StateRaised, got[0].State)
	assert.Equal(t, watch.SeverityCritical, got[0].Severity)
	assert.True(t, base.Add(30*time.Second).Equal(got[0].Time))
	assert.Equal(t, "value > 80", got[0].Condition)
	assert.Equal(t, cleared.ID, got[1].ID)
	assert.Equal(t, watch.StateCleared, got[1].State)

	// ids are unique
	assert.Error(t, store.RecordTransition(ctx, raised))
}

func TestSinkWritesTransitions(t *testing.T) {
	store, _ := newStore(t, 10)
	ctx := context.Background()

	sink := history.Sink(store)
	require.NoError(t, sink.Emit(ctx, transition("fan-stuck", watch.StateRaised, time.Now())))

	got, err := store.LatestTransitions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fan-stuck", got[0].Rule)
}

func TestPrune(t *testing.T) {
	store, _ := newStore(t, 100)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.RecordSample(ctx, history.Sample{Metric: "temperature", Timestamp: at.UnixMilli(), Value: 50}))
		require.NoError(t, store.RecordTransition(ctx, transition("r", watch.StateRaised, at)))
	}

	removed, err := store.Prune(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(4), removed)

	samples, err := store.LoadSamples(ctx, "temperature", 10)
	require.NoError(t, err)
	assert.Len(t, samples, 2)

	transitions, err := store.LatestTransitions(ctx)
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.True(t, base.Add(3*time.Hour).Equal(transitions[0].Time))
}

func TestPruneKeepsLatestTransitionPerRule(t *testing.T) {
	store, _ := newStore(t, 10)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	old := transition("gpu-hot", watch.StateRaised, base)
	older := transition("fan-stuck", watch.StateRaised, base.Add(-time.Hour))
	cleared := transition("fan-stuck", watch.StateCleared, base.Add(time.Minute))
	for _, tr := range []watch.Transition{older, old, cleared} {
		require.NoError(t, store.RecordTransition(ctx, tr))
	}

	removed, err := store.Prune(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed, "only the superseded fan-stuck raise goes")

	got, err := store.LatestTransitions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, old.ID, got[0].ID)
	assert.Equal(t, cleared.ID, got[1].ID)
}

func TestPruneJob(t *testing.T) {
	store, _ := newStore(t, 1)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, store.RecordSample(ctx, history.Sample{Metric: "temperature", Timestamp: old.UnixMilli(), Value: 50}))
	require.NoError(t, store.RecordSample(ctx, history.Sample{Metric: "temperature", Timestamp: time.Now().UnixMilli(), Value: 51}))

	job := history.PruneJob(store, 24*time.Hour, logger.Nop())
	require.NoError(t, job(ctx))

	samples, err := store.LoadSamples(ctx, "temperature", 10)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, int64(51), samples[0].Value)
}

func TestCloseFlushesAndRejectsWrites(t *testing.T) {
	store, cfg := newStore(t, 100)
	ctx := context.Background()

	require.NoError(t, store.RecordSample(ctx, history.Sample{Metric: "temperature", Timestamp: 1000, Value: 60}))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	err := store.RecordSample(ctx, history.Sample{Metric: "temperature", Timestamp: 2000, Value: 61})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, history.ErrClosed))

	reopened, err := history.NewRepository(cfg, logger.Nop())
	require.NoError(t, err)
	defer reopened.Close()

	samples, err := reopened.LoadSamples(ctx, "temperature", 10)
	require.NoError(t, err)
	assert.Len(t, samples, 1)
}

func TestSchemaMismatchBacksUp(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "history.db")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_versions (version, applied_at) VALUES (99, datetime('now'));
		CREATE TABLE samples (legacy INTEGER);`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	backupDir := filepath.Join(dir, "backups")
	store, err := history.NewRepository(history.Config{
		Enabled:   true,
		DBPath:    dbPath,
		BackupDir: backupDir,
	}, logger.Nop())
	require.NoError(t, err)
	defer store.Close()

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "history_v99_")

	// new schema is usable
	require.NoError(t, store.RecordSample(context.Background(), history.Sample{Metric: "m", Timestamp: 1, Value: 1}))
	samples, err := store.LoadSamples(context.Background(), "m", 1)
	require.NoError(t, err)
	assert.Len(t, samples, 1)
}

func TestSchemaVersion(t *testing.T) {
	_, cfg := newStore(t, 1)

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	defer db.Close()

	version, err := history.GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, history.SchemaVersion, version)
}

func TestNewServiceDisabled(t *testing.T) {
	store, err := history.NewService(history.Config{}, logger.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, store.RecordSample(ctx, history.Sample{Metric: "m", Timestamp: 1, Value: 1}))
	samples, err := store.LoadSamples(ctx, "m", 10)
	assert.NoError(t, err)
	assert.Empty(t, samples)
	assert.NoError(t, store.Close())
}

func TestNewServiceRequiresPath(t *testing.T) {
	_, err := history.NewService(history.Config{Enabled: true}, logger.Nop())
	assert.Error(t, err)
}
