// Package refresh serializes scans for one view and coalesces triggers that
// arrive while a scan is running.
package refresh

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"wtdash/internal/scan"
)

// ErrClosed is returned by Refresh once the scheduler is closed.
var ErrClosed = errors.New("refresh scheduler closed")

// Reason says why a refresh was requested.
type Reason int

const (
	ReasonTimer Reason = iota
	ReasonUser
	ReasonAction
	ReasonWatch
)

func (r Reason) String() string {
	switch r {
	case ReasonTimer:
		return "timer"
	case ReasonUser:
		return "user"
	case ReasonAction:
		return "action"
	case ReasonWatch:
		return "watch"
	default:
		return "unknown"
	}
}

// State of the scheduler.
type State int

const (
	Idle State = iota
	Refreshing
)

// ScanFunc produces one snapshot.
type ScanFunc func(ctx context.Context) (scan.Snapshot, error)

type waiter struct {
	gen uint64
	ch  chan error
}

// Scheduler runs at most one scan at a time. Triggers that arrive during a
// scan collapse into a single follow-up scan.
type Scheduler struct {
	scan     ScanFunc
	interval time.Duration
	log      *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	pending bool
	reason  Reason // of the pending follow-up
	visible bool
	closed  bool
	started uint64 // generation of the most recently started scan
	snap    scan.Snapshot
	have    bool
	lastErr error
	waiters []waiter
	updates chan scan.Snapshot
}

// New returns an idle, visible scheduler. interval is the timer period used
// by Run.
func New(fn ScanFunc, interval time.Duration, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scan:     fn,
		interval: interval,
		log:      logger.WithPrefix("refresh"),
		ctx:      ctx,
		cancel:   cancel,
		visible:  true,
		updates:  make(chan scan.Snapshot, 1),
	}
}

// Trigger requests a scan. Timer triggers are ignored while the view is
// hidden.
func (s *Scheduler) Trigger(reason Reason) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if reason == ReasonTimer && !s.visible {
		return
	}
	if s.state == Refreshing {
		s.pending = true
		s.reason = reason
		s.log.Debug("coalesced trigger", "reason", reason)
		return
	}
	s.startLocked(reason)
}

// Refresh forces a scan that starts after the call and waits for it. On
// failure the previous snapshot is returned alongside the error.
func (s *Scheduler) Refresh(ctx context.Context) (scan.Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return scan.Snapshot{}, ErrClosed
	}
	w := waiter{gen: s.started + 1, ch: make(chan error, 1)}
	s.waiters = append(s.waiters, w)
	if s.state == Refreshing {
		s.pending = true
		s.reason = ReasonUser
	} else {
		s.startLocked(ReasonUser)
	}
	s.mu.Unlock()

	select {
	case err := <-w.ch:
		snap, _ := s.Snapshot()
		return snap, err
	case <-ctx.Done():
		s.dropWaiter(w.ch)
		snap, _ := s.Snapshot()
		return snap, ctx.Err()
	}
}

// Snapshot returns the latest successful snapshot and whether one exists.
func (s *Scheduler) Snapshot() (scan.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, s.have
}

// Updates delivers each new snapshot. The channel holds one value; a slow
// reader only ever sees the newest.
func (s *Scheduler) Updates() <-chan scan.Snapshot {
	return s.updates
}

// LastErr is the error of the most recent scan, nil if it succeeded.
func (s *Scheduler) LastErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// State reports whether a scan is running.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetVisible gates timer triggers.
func (s *Scheduler) SetVisible(v bool) {
	s.mu.Lock()
	s.visible = v
	s.mu.Unlock()
}

// Run triggers an initial scan, then one per interval until ctx is done or
// the scheduler is closed.
func (s *Scheduler) Run(ctx context.Context) {
	s.Trigger(ReasonUser)
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Trigger(ReasonTimer)
		}
	}
}

// Close cancels any running scan, fails outstanding Refresh calls and waits
// for the scan goroutine to exit.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.pending = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	for _, w := range s.waiters {
		w.ch <- ErrClosed
	}
	s.waiters = nil
	s.mu.Unlock()
}

func (s *Scheduler) startLocked(reason Reason) {
	s.state = Refreshing
	s.started++
	gen := s.started
	s.log.Debug("scan started", "generation", gen, "reason", reason)

	s.wg.Add(1)
	go s.run(gen)
}

func (s *Scheduler) run(gen uint64) {
	defer s.wg.Done()

	snap, err := s.scan(s.ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.lastErr = err
		s.log.Warn("scan failed, keeping previous snapshot", "generation", gen, "err", err)
	} else {
		snap.Generation = gen
		s.snap = snap
		s.have = true
		s.lastErr = nil
		s.publishLocked(snap)
	}

	kept := s.waiters[:0]
	for _, w := range s.waiters {
		if w.gen <= gen {
			w.ch <- err
		} else {
			kept = append(kept, w)
		}
	}
	s.waiters = kept

	if s.pending && !s.closed {
		s.pending = false
		s.startLocked(s.reason)
		return
	}
	s.state = Idle
}

func (s *Scheduler) publishLocked(snap scan.Snapshot) {
	select {
	case <-s.updates:
	default:
	}
	s.updates <- snap
}

func (s *Scheduler) dropWaiter(ch chan error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.waiters {
		if w.ch == ch {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
}
