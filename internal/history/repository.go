package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/nvidiawatch/internal/errors"
	"codeberg.org/mutker/nvidiawatch/internal/logger"
	"codeberg.org/mutker/nvidiawatch/internal/watch"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db            *sql.DB
	logger        logger.Logger
	cfg           Config
	mu            sync.Mutex
	buffer        []Sample
	closed        bool
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
	closeOnce     sync.Once
	closeErr      error
}

// NewRepository opens (creating if needed) the SQLite database at cfg.DBPath
// and starts the background flusher for buffered samples.
func NewRepository(cfg Config, log logger.Logger) (Store, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}
	cfg = cfg.withDefaults()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}
	// a single writer avoids SQLITE_BUSY between the flusher and transition writes
	db.SetMaxOpenConns(1)

	if err := ValidateAndUpdateSchema(db, cfg.BackupDir, log); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Dur("batch_timeout", cfg.BatchTimeout).
		Msg("History repository initialized")

	repo := &repository{
		db:            db,
		logger:        log,
		cfg:           cfg,
		buffer:        make([]Sample, 0, cfg.BatchSize),
		flushTicker:   time.NewTicker(cfg.BatchTimeout),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}
	go repo.flusher()

	return repo, nil
}

// RecordSample buffers a sample; the buffer is written once it reaches the
// batch size or the batch timeout elapses.
func (r *repository) RecordSample(ctx context.Context, sample Sample) error {
	if err := ctx.Err(); err != nil {
		return errors.New().Wrap(ErrOperationTimeout, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.New().New(ErrClosed)
	}

	r.buffer = append(r.buffer, sample)
	if len(r.buffer) >= r.cfg.BatchSize {
		return r.flush()
	}

	return nil
}

// RecordTransition writes the transition immediately.
func (r *repository) RecordTransition(ctx context.Context, t watch.Transition) error {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errFactory.New(ErrClosed)
	}

	_, err := r.db.ExecContext(ctx, insertTransitionSQL,
		t.ID.String(),
		t.Rule,
		t.Metric,
		string(t.State),
		string(t.Severity),
		t.Value,
		t.Time.UnixMilli(),
		t.Condition,
	)
	if err != nil {
		return errFactory.Wrap(ErrStorageWrite, err).WithData(t.Rule)
	}

	return nil
}

// LoadSamples returns up to limit of the most recent samples for metric in
// ascending time order.
func (r *repository) LoadSamples(ctx context.Context, metric string, limit int) ([]Sample, error) {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errFactory.New(ErrClosed)
	}
	if err := r.flush(); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, selectSamplesSQL, metric, limit)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageRead, err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		s := Sample{Metric: metric}
		if err := rows.Scan(&s.Timestamp, &s.Value); err != nil {
			return nil, errFactory.Wrap(ErrStorageRead, err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageRead, err)
	}

	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}

	return samples, nil
}

// LatestTransitions returns the newest transition of every rule in ascending
// time order.
func (r *repository) LatestTransitions(ctx context.Context) ([]watch.Transition, error) {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errFactory.New(ErrClosed)
	}

	rows, err := r.db.QueryContext(ctx, selectLatestTransitionsSQL)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageRead, err)
	}
	defer rows.Close()

	var transitions []watch.Transition
	for rows.Next() {
		var (
			t        watch.Transition
			id       string
			state    string
			severity string
			millis   int64
		)
		if err := rows.Scan(&id, &t.Rule, &t.Metric, &state, &severity, &t.Value, &millis, &t.Condition); err != nil {
			return nil, errFactory.Wrap(ErrStorageRead, err)
		}
		if t.ID, err = uuid.Parse(id); err != nil {
			return nil, errFactory.Wrap(ErrStorageRead, err).WithData(id)
		}
		t.State = watch.State(state)
		t.Severity = watch.Severity(severity)
		t.Time = time.UnixMilli(millis)
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageRead, err)
	}

	return transitions, nil
}

// Prune deletes samples and transitions recorded before the given time and
// returns the number of rows removed. The newest transition of each rule is
// always kept.
func (r *repository) Prune(ctx context.Context, before time.Time) (int64, error) {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, errFactory.New(ErrClosed)
	}
	if err := r.flush(); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errFactory.Wrap(ErrTransactionFailed, err)
	}

	cutoff := before.UnixMilli()
	var removed int64
	for _, table := range dataTables {
		res, err := tx.ExecContext(ctx, pruneSQL[table], cutoff)
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error().Err(rbErr).Msg("Failed to roll back transaction")
			}
			return 0, errFactory.Wrap(ErrStorageWrite, err).WithData(table)
		}
		n, _ := res.RowsAffected()
		removed += n
	}

	if err := tx.Commit(); err != nil {
		return 0, errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.logger.Debug().
		Int64("removed", removed).
		Time("before", before).
		Msg("Pruned history")

	return removed, nil
}

func (r *repository) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		// the flusher writes whatever is still buffered before exiting
		close(r.shutdownChan)
		r.flushTicker.Stop()
		<-r.flushDoneChan

		if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			r.closeErr = errors.New().WithData(ErrStorageClose, struct {
				Phase string
				Error string
			}{
				Phase: "checkpoint_wal",
				Error: err.Error(),
			})
			r.db.Close()
			return
		}

		if err := r.db.Close(); err != nil {
			r.closeErr = errors.New().WithData(ErrStorageClose, struct {
				Phase string
				Error string
			}{
				Phase: "close_database",
				Error: err.Error(),
			})
			return
		}

		r.logger.Info().Msg("History repository closed gracefully")
	})

	return r.closeErr
}

func (r *repository) flusher() {
	defer close(r.flushDoneChan)

	for {
		select {
		case <-r.flushTicker.C:
			r.mu.Lock()
			if err := r.flush(); err != nil {
				r.logger.Error().Err(err).Msg("Periodic flush failed")
			}
			r.mu.Unlock()
		case <-r.shutdownChan:
			r.mu.Lock()
			if err := r.flush(); err != nil {
				r.logger.Error().Err(err).Msg("Final flush failed")
			}
			r.mu.Unlock()
			return
		}
	}
}

// flush writes the buffered samples in one transaction. Callers hold r.mu.
func (r *repository) flush() error {
	if len(r.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := r.db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	stmt, err := tx.Prepare(insertSampleSQL)
	if err != nil {
		if err := tx.Rollback(); err != nil {
			r.logger.Error().Err(err).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, s := range r.buffer {
		if _, err := stmt.Exec(s.Metric, s.Timestamp, s.Value); err != nil {
			if err := tx.Rollback(); err != nil {
				r.logger.Error().Err(err).Msg("Failed to roll back transaction")
			}
			return errFactory.Wrap(ErrStorageWrite, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.logger.Debug().Int("records", len(r.buffer)).Msg("Flushed samples to database")
	r.buffer = r.buffer[:0]

	return nil
}
