// Package updater implements the periodic driver that keeps every MIB
// leaf's backing data fresh. It knows nothing about OIDs or the wire
// protocol — only the reinit/update/frequency contract each updater
// exposes.
package updater

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Updater is one source of MIB data, refreshed on its own cadence. Reads by
// the request dispatcher must always observe the snapshot committed by the
// last completed UpdateData call — never a partial update.
type Updater interface {
	// Name identifies the updater in logs and for scheduler deduplication
	// (also satisfies mib.Updater).
	Name() string

	// ReinitData re-establishes this updater's view of the world from
	// scratch: called once at startup and every ReinitRate update cycles.
	ReinitData(ctx context.Context) error

	// UpdateData refreshes the snapshot leaves read from. Must publish its
	// result atomically.
	UpdateData(ctx context.Context) error

	// ReinitConnection is called after a recoverable store fault to
	// re-establish any held connections before the next cycle.
	ReinitConnection(ctx context.Context) error

	// Frequency is how often UpdateData runs.
	Frequency() time.Duration

	// ReinitRate is how many UpdateData cycles occur between ReinitData
	// calls (e.g. 1 = every cycle, 12 = once every 12 cycles).
	ReinitRate() int
}

// RecoverableError marks an UpdateData/ReinitData failure as a transient
// store problem: the scheduler logs and calls ReinitConnection rather
// than treating it as an unexpected fault.
type RecoverableError struct {
	Err error
}

func (e *RecoverableError) Error() string { return e.Err.Error() }
func (e *RecoverableError) Unwrap() error { return e.Err }

// ─────────────────────────────────────────────────────────────────────────────
// Scheduler
// ─────────────────────────────────────────────────────────────────────────────

// Scheduler drives every registered Updater on its own independent cadence.
type Scheduler struct {
	logger   *slog.Logger
	updaters []Updater

	wg sync.WaitGroup
}

// New builds a Scheduler over updaters. It does not start running until
// Start is called.
func New(updaters []Updater, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Scheduler{logger: logger, updaters: updaters}
}

// Start runs every updater's loop as an independent goroutine and returns
// immediately. Cancelling ctx shuts the loops down; Wait blocks until they
// have returned.
func (s *Scheduler) Start(ctx context.Context) {
	for _, u := range s.updaters {
		u := u
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(ctx, u)
		}()
	}
}

// Wait blocks until every updater loop has observed cancellation and
// returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, u Updater) {
	log := s.logger.With("updater", u.Name())

	if err := u.ReinitData(ctx); err != nil {
		s.handleError(ctx, log, u, err)
	}

	freq := u.Frequency()
	if freq <= 0 {
		freq = 5 * time.Second
	}
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	cycle := 0
	for {
		select {
		case <-ctx.Done():
			log.Debug("updater loop stopping")
			return
		case <-ticker.C:
		}

		cycle++
		rate := u.ReinitRate()
		if rate > 0 && cycle%rate == 0 {
			if err := u.ReinitData(ctx); err != nil {
				s.handleError(ctx, log, u, err)
			}
		}

		if err := u.UpdateData(ctx); err != nil {
			s.handleError(ctx, log, u, err)
		}
	}
}

func (s *Scheduler) handleError(ctx context.Context, log *slog.Logger, u Updater, err error) {
	var recoverable *RecoverableError
	if errors.As(err, &recoverable) {
		log.Warn("store unavailable, reinitializing connection", "err", recoverable.Err)
		if rerr := u.ReinitConnection(ctx); rerr != nil {
			log.Error("failed to reinitialize updater connection", "err", rerr)
		}
		return
	}
	// Unexpected fault: log and keep the prior snapshot.
	log.Error("updater cycle failed", "err", err)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
