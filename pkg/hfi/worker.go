// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hfi

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
	"k8s.io/client-go/util/workqueue"
)

// worker is the single-threaded update worker: a deferred task queued per
// die, reading the mirror under table_lock and dispatching capability
// events to the external consumer in bounded chunks.
//
// Scheduling reuses k8s.io/client-go/util/workqueue's delaying queue,
// exactly as internal worker code in the corpus this package was built
// from uses a rate-limiting queue for its own deferred batch dispatch: a
// second AddAfter for a die already waiting in the queue is coalesced into
// the existing entry (which keeps the earlier of the two ready times),
// giving the same "only one pending update_work per instance" behavior the
// hardware driver relies on.
type worker struct {
	mgr    *Manager
	logger logr.Logger
	queue  workqueue.TypedDelayingInterface[int]

	done chan struct{}
}

func newWorker(mgr *Manager, logger logr.Logger) *worker {
	return &worker{
		mgr:    mgr,
		logger: logger.WithName("hfi-updates"),
		queue:  workqueue.NewTypedDelayingQueue[int](),
		done:   make(chan struct{}),
	}
}

func (w *worker) schedule(dieID int, delay time.Duration) {
	w.queue.AddAfter(dieID, delay)
}

// run drains the queue on the calling goroutine until ctx is cancelled.
// Callers start this in its own goroutine; "single-threaded work queue"
// means exactly one call to run is ever active for a given worker.
func (w *worker) run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		w.queue.ShutDown()
	}()

	for {
		dieID, shutdown := w.queue.Get()
		if shutdown {
			close(w.done)
			return
		}
		w.process(ctx, dieID)
		w.queue.Done(dieID)
	}
}

// process implements §4.2: snapshot the CPU set, read the mirror under
// table_lock into a batch and publish per-CPU scores, then emit to the
// consumer in chunks of at most MaxNotifyCount.
func (w *worker) process(ctx context.Context, dieID int) {
	m := w.mgr

	m.mu.Lock()
	inst := m.registry.get(dieID)
	if inst == nil {
		m.mu.Unlock()
		return
	}
	cpus := inst.cpuList()
	m.mu.Unlock()

	if len(cpus) == 0 {
		return
	}

	events := make([]CapabilityEvent, 0, len(cpus))

	inst.tableLock.Lock()
	for _, cpu := range cpus {
		info, ok := m.cpus.get(cpu)
		if !ok || info.Index < 0 {
			continue
		}
		row := inst.dataOffset + int(info.Index)*m.features.CPUStride
		if row+m.features.HdrSize > len(inst.localTable) {
			continue
		}

		perf := uint32(inst.localTable[row])
		var eff uint32
		if m.features.NrCapabilities > 1 {
			eff = uint32(inst.localTable[row+1])
		}
		events = append(events, CapabilityEvent{
			CPU:         cpu,
			Performance: scaleCapability(perf),
			Efficiency:  scaleCapability(eff),
		})

		for class := 0; class < m.features.NrClasses; class++ {
			classOff := row + class*m.features.ClassStride
			val := uint32(inst.localTable[classOff])
			if err := m.scores.Set(cpu, class, int32(val)); err != nil {
				w.logger.V(1).Info("hfi: dropping score write", "cpu", cpu, "class", class, "err", err)
			}
		}
	}
	inst.tableLock.Unlock()

	w.emitChunks(ctx, events)
}

// emitChunks dispatches events to the consumer in fixed-size groups of at
// most MaxNotifyCount, retrying each chunk with exponential backoff so a
// transient consumer hiccup never drops an update silently.
func (w *worker) emitChunks(ctx context.Context, events []CapabilityEvent) {
	for start := 0; start < len(events); start += MaxNotifyCount {
		end := start + MaxNotifyCount
		if end > len(events) {
			end = len(events)
		}
		chunk := events[start:end]

		_, err := backoff.Retry(ctx, func() (struct{}, error) {
			return struct{}{}, w.mgr.consumer.EmitCapabilityEvent(ctx, chunk)
		}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))
		if err != nil {
			w.logger.Error(err, "hfi: failed to emit capability chunk", "count", len(chunk))
		}
	}
}
