// Package badger implements [store.Store] on an embedded BadgerDB.
//
// This is the default pagecraft backend. Records are CBOR encoded and laid
// out under a small set of key prefixes:
//
//	r/<collection>/<id>      record body (id: 8 bytes big endian)
//	o/<order>/<id>           template rank index, empty value
//	s/<slug>                 page slug index, value is the page id
//	seq/<collection>         id sequence
//
// Big-endian ids and ranks make Badger's lexicographic key order match
// numeric order, so prefix iteration doubles as the ordered range scan the
// ordering engine needs. Every single-record write, including the index
// entries it implies, happens in one Badger transaction.
//
// [InMemoryConfig] opens a throwaway database for tests.
package badger

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// Config holds configuration for a BadgerDB-backed store.
type Config struct {
	// Path is the directory for database files. Ignored when InMemory is
	// true.
	Path string

	// InMemory keeps everything in RAM. Data is lost on Close.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives Badger's internal log lines. Nil disables them.
	Logger *zerolog.Logger

	// GCInterval is how often value log garbage collection runs. Zero
	// disables the collector.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum garbage ratio before a value log file is
	// rewritten.
	GCDiscardRatio float64

	// SequenceBandwidth is how many ids are leased from disk at a time.
	SequenceBandwidth uint64
}

// DefaultConfig returns production defaults for a database at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:              path,
		SyncWrites:        true,
		GCInterval:        5 * time.Minute,
		GCDiscardRatio:    0.5,
		SequenceBandwidth: 64,
	}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{
		InMemory:          true,
		SequenceBandwidth: 64,
	}
}

// badgerLogger adapts zerolog to Badger's Logger interface.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func openDB(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger.With().Str("component", "badger").Logger()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

// gcRunner runs periodic value log garbage collection.
type gcRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	stopCh   chan struct{}
	doneCh   chan struct{}
	logger   *zerolog.Logger
}

func newGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *zerolog.Logger) *gcRunner {
	return &gcRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (r *gcRunner) start() {
	go r.run()
}

func (r *gcRunner) stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *gcRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.runGC()
		}
	}
}

func (r *gcRunner) runGC() {
	// RunValueLogGC returns nil if GC was triggered, ErrNoRewrite if not needed.
	err := r.db.RunValueLogGC(r.ratio)
	if r.logger == nil {
		return
	}
	if err == nil {
		r.logger.Debug().Msg("badger value log GC completed")
	} else if !errors.Is(err, badger.ErrNoRewrite) {
		r.logger.Warn().Err(err).Msg("badger value log GC error")
	}
}
