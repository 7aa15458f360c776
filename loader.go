package assetq

import (
	"log/slog"
	"sync"

	"github.com/gogpu/assetq/internal/syncq"
)

// Loader schedules asset loading on a single background worker
// goroutine.
//
// Assets move through three stages: pending (submitted, waiting for the
// worker), active (their Load is in flight), and completed (loaded,
// waiting for the owning goroutine to finalize them). At any instant an
// asset occupies exactly one stage until it is finalized, after which
// the Loader holds no reference to it.
//
// Lifecycle: a Loader is constructed idle. Start spawns the worker;
// RequestStop or Shutdown stops it after the queue drains; Pause stops
// it immediately after the in-flight load. A stopped Loader can be
// restarted with Start, and newly submitted assets resume processing.
//
// Shutdown must be called before a Loader is discarded. Discarding a
// Loader whose worker is still running leaks the goroutine.
//
// All methods other than the worker's own loop are intended to be
// called from the owning goroutine.
type Loader struct {
	opts loaderOptions

	// mu guards pending, completed, active, outstanding, running, and
	// workerDone. It is held only for queue bookkeeping, never across a
	// Load or Finalize call.
	mu          sync.Mutex
	pending     *syncq.Queue[Asset]
	completed   []Asset
	active      Asset
	outstanding int

	running      bool          // worker spawned and not yet exited
	workerDone   chan struct{} // closed on worker exit; nil once joined
	stopDeferred bool          // a drain-stop request was preempted by a pause
}

// NewLoader creates an idle Loader. Call Start to begin processing.
func NewLoader(opts ...Option) *Loader {
	o := defaultLoaderOptions()
	for _, opt := range opts {
		opt(&o)
	}
	l := &Loader{opts: o}
	l.pending = syncq.New[Asset](&l.mu)
	return l
}

// stopMarker is the sentinel pushed through the pending queue to make
// the worker exit its loop. Pushed at the tail by RequestStop and
// Shutdown (drain set, stop when drained) and at the head by Pause
// (stop after the in-flight load).
type stopMarker struct{ drain bool }

func (*stopMarker) Name() string                         { return "<stop>" }
func (*stopMarker) Load()                                {}
func (*stopMarker) Finalize() bool                       { return false }
func (*stopMarker) IsValid() bool                        { return false }
func (*stopMarker) IsFinalized() bool                    { return false }
func (*stopMarker) AddFinalizeCallback(func(Asset)) bool { return false }

func isStop(a Asset) bool {
	_, ok := a.(*stopMarker)
	return ok
}

// Submit appends a to the pending queue and wakes the worker.
//
// The asset's Name must be set, and the same asset instance must not be
// submitted again while it is still outstanding; either is a programmer
// error and panics. Submitting before Start is the normal way to queue
// work up front.
func (l *Loader) Submit(a Asset) {
	if a == nil {
		panic("assetq: Submit of nil asset")
	}
	if a.Name() == "" {
		panic("assetq: Submit of asset with empty name")
	}

	l.mu.Lock()
	if l.pending.Contains(a) || l.active == a || l.completedIndexLocked(a) >= 0 {
		l.mu.Unlock()
		panic("assetq: asset submitted while still outstanding: " + a.Name())
	}
	l.pending.Push(a)
	l.outstanding++
	n := l.outstanding
	l.mu.Unlock()

	l.logger().Debug("asset submitted", "asset", a.Name(), "outstanding", n)
}

// Start spawns the worker goroutine. Calling Start while the worker is
// running is a programmer error and panics. After RequestStop, Pause,
// or Shutdown, Start may be called again to resume processing.
func (l *Loader) Start() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		panic("assetq: Start called while the worker is running")
	}
	// Join a worker that stopped on its own (RequestStop sentinel) but
	// has not been waited on yet.
	done := l.workerDone
	l.mu.Unlock()
	if done != nil {
		<-done
	}

	l.mu.Lock()
	l.workerDone = make(chan struct{})
	l.running = true
	if l.stopDeferred {
		// Honor a RequestStop that a pause preempted: stop again once
		// the queue drains.
		l.stopDeferred = false
		l.pending.Push(&stopMarker{drain: true})
	}
	go l.work(l.workerDone)
	l.mu.Unlock()

	l.logger().Info("loader started")
}

// work is the worker goroutine's loop. It pops one pending asset at a
// time, runs its Load without holding the lock, and parks the result on
// the completed queue for Drain.
func (l *Loader) work(done chan struct{}) {
	defer close(done)

	for {
		l.mu.Lock()
		l.pending.Wait()
		a := l.pending.Pop()
		if m, ok := a.(*stopMarker); ok {
			// Drop any further queued markers so that a restarted
			// worker does not exit immediately. A pause marker can
			// overtake a drain marker; remember the drain request so
			// Start re-queues it.
			if n := l.pending.RemoveFunc(isStop); n > 0 && !m.drain {
				l.stopDeferred = true
			}
			l.running = false
			l.mu.Unlock()
			l.logger().Info("worker stopped")
			return
		}
		l.active = a
		l.mu.Unlock()

		a.Load() // slow; must not hold the lock

		l.mu.Lock()
		l.active = nil
		l.completed = append(l.completed, a)
		l.mu.Unlock()

		l.logger().Debug("asset loaded", "asset", a.Name())
	}
}

// Pause stops the worker and blocks until it has exited. If a load is
// in flight, Pause waits for it to complete; the loaded asset is parked
// on the completed queue as usual. Pending assets stay queued and are
// processed after the next Start.
//
// Pause on an idle Loader is a no-op. Cancel relies on Pause to make
// removing an in-flight asset race-free.
func (l *Loader) Pause() {
	l.mu.Lock()
	if l.running {
		l.pending.PushFront(&stopMarker{})
	}
	done := l.workerDone
	l.mu.Unlock()

	if done != nil {
		<-done
	}

	l.mu.Lock()
	l.workerDone = nil
	l.mu.Unlock()
}

// RequestStop enqueues a stop marker at the tail of the pending queue
// and returns immediately. The worker processes everything queued ahead
// of the marker, then exits. Use Shutdown to also wait for the exit.
// RequestStop on an idle Loader is a no-op.
//
// If a Pause, or a Cancel of the in-flight asset, overtakes the marker,
// the stop request survives: the next Start re-queues it at the tail,
// and the worker stops again once the queue drains.
func (l *Loader) RequestStop() {
	l.mu.Lock()
	if l.running {
		l.pending.Push(&stopMarker{drain: true})
	}
	l.mu.Unlock()
}

// Cancel removes a from the Loader so the caller may free it. It
// reports whether a was found.
//
// A pending or completed asset is removed directly; no phase of it runs
// afterwards. If a's Load is in flight, Cancel blocks until that load
// completes, stops the worker, and removes the asset. With
// [WithResumeAfterCancel] left at its default it then restarts the worker.
// Either way, once Cancel returns true, a's Finalize and callbacks are
// guaranteed never to run.
func (l *Loader) Cancel(a Asset) bool {
	if a == nil {
		return false
	}

	l.mu.Lock()
	if l.pending.Remove(a) {
		l.outstanding--
		l.mu.Unlock()
		l.logger().Debug("asset cancelled", "asset", a.Name(), "stage", "pending")
		return true
	}
	if i := l.completedIndexLocked(a); i >= 0 {
		l.removeCompletedLocked(i)
		l.outstanding--
		l.mu.Unlock()
		l.logger().Debug("asset cancelled", "asset", a.Name(), "stage", "completed")
		return true
	}
	if l.active != a {
		l.mu.Unlock()
		return false
	}
	l.mu.Unlock()

	// The load is in flight. Stop the worker so that by the time we
	// return, nothing in the Loader references a.
	l.Pause()

	l.mu.Lock()
	if i := l.completedIndexLocked(a); i >= 0 {
		// The finished load parked it on the completed queue.
		l.removeCompletedLocked(i)
	}
	l.outstanding--
	l.mu.Unlock()

	if l.opts.resumeAfterCancel {
		l.Start()
	}
	l.logger().Debug("asset cancelled", "asset", a.Name(), "stage", "active")
	return true
}

// Drain runs the finalize phase of every completed asset on the calling
// goroutine, in completion order, and reports whether the Loader is
// fully drained: no asset pending, in flight, or awaiting finalize.
//
// Call Drain once per frame from the owning goroutine. Draining an idle
// Loader is a safe no-op returning true. The lock is never held across
// a Finalize call, so the worker keeps loading while Drain runs.
func (l *Loader) Drain() bool {
	log := l.logger()
	for {
		l.mu.Lock()
		if len(l.completed) == 0 {
			drained := l.pending.Len() == 0 && l.active == nil
			l.mu.Unlock()
			return drained
		}
		a := l.completed[0]
		l.removeCompletedLocked(0)
		l.mu.Unlock()

		ok := a.Finalize()

		l.mu.Lock()
		l.outstanding--
		l.mu.Unlock()

		if ok {
			log.Debug("asset finalized", "asset", a.Name())
		} else {
			log.Warn("asset finalize failed", "asset", a.Name())
		}
	}
}

// Shutdown stops the worker after the pending queue drains and blocks
// until it has exited. It must be called before the Loader is
// discarded. Shutdown does not finalize completed assets; run a final
// Drain first if their finalize phases must execute.
func (l *Loader) Shutdown() {
	l.mu.Lock()
	if l.running {
		l.pending.Push(&stopMarker{drain: true})
	}
	done := l.workerDone
	l.mu.Unlock()

	if done != nil {
		<-done
	}

	l.mu.Lock()
	l.workerDone = nil
	l.mu.Unlock()

	l.logger().Info("loader shut down")
}

// Outstanding returns the number of assets submitted but not yet
// finalized or cancelled.
func (l *Loader) Outstanding() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.outstanding
}

// IsRunning reports whether the worker goroutine is running.
func (l *Loader) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// completedIndexLocked returns the index of a in the completed queue,
// or -1. Caller holds mu.
func (l *Loader) completedIndexLocked(a Asset) int {
	for i, c := range l.completed {
		if c == a {
			return i
		}
	}
	return -1
}

// removeCompletedLocked deletes the completed entry at i, preserving
// order. Caller holds mu.
func (l *Loader) removeCompletedLocked(i int) {
	copy(l.completed[i:], l.completed[i+1:])
	l.completed[len(l.completed)-1] = nil
	l.completed = l.completed[:len(l.completed)-1]
}

func (l *Loader) logger() *slog.Logger {
	if l.opts.logger != nil {
		return l.opts.logger
	}
	return Logger()
}
