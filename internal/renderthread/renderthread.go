// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package renderthread owns the single dedicated OS thread that the video
// bridge's producer GL context lives on.
//
// Architecture:
//   - Host UI thread: owns the compositor's GL context, polls for textures.
//   - Render thread: owns the producer GL context, runs decoder render tasks.
//
// This separation means GL work submitted by the decoder never blocks the
// host's UI thread, and the producer context is never touched from any
// goroutine but this one.
package renderthread

import (
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// RenderThread is a single OS thread with a FIFO task queue. Tasks run in
// enqueue order; no task runs after shutdown has been requested and the
// queue has drained.
type RenderThread struct {
	funcs   chan func()
	done    chan struct{}
	running atomic.Bool
	tid     atomic.Int32 // OS thread id of the worker, set once at startup
}

// New starts a new render thread and blocks until it is ready to accept
// tasks. The worker goroutine is locked to its OS thread for the lifetime
// of the RenderThread, since EGL/GL contexts are thread-affine.
func New() *RenderThread {
	t := &RenderThread{
		funcs: make(chan func(), 64),
		done:  make(chan struct{}),
	}
	t.running.Store(true)

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		t.tid.Store(int32(unix.Gettid()))
		elevatePriority()

		wg.Done()
		t.run()
	}()

	wg.Wait()
	return t
}

// run is the worker loop. It always drains every already-queued task before
// observing shutdown, so request_shutdown never drops a task that was
// posted before it was called.
func (t *RenderThread) run() {
	for {
		select {
		case f := <-t.funcs:
			f()
			continue
		default:
		}

		select {
		case f := <-t.funcs:
			f()
		case <-t.done:
			for {
				select {
				case f := <-t.funcs:
					f()
				default:
					return
				}
			}
		}
	}
}

// elevatePriority raises the worker's scheduling priority to the maximum
// available to an unprivileged process. Best effort: a failure here is not
// fatal, it just means the render thread competes for CPU at the default
// niceness.
func elevatePriority() {
	for nice := -20; nice < 0; nice++ {
		if unix.Setpriority(unix.PRIO_PROCESS, 0, nice) == nil {
			return
		}
	}
}

// Post enqueues f to run on the render thread and returns immediately.
// Returns false iff shutdown has begun and the task was dropped.
func (t *RenderThread) Post(f func()) bool {
	if !t.running.Load() {
		return false
	}
	select {
	case t.funcs <- f:
		return true
	case <-t.done:
		return false
	}
}

// PostAndWait enqueues f and blocks until it has run. If called from the
// render thread itself (a task posting another task synchronously), f runs
// inline instead of being enqueued — enqueueing would deadlock, since the
// worker would be waiting on its own queue.
func (t *RenderThread) PostAndWait(f func()) {
	if t.IsCurrentThread() {
		f()
		return
	}
	if !t.running.Load() {
		return
	}

	done := make(chan struct{})
	posted := t.Post(func() {
		f()
		close(done)
	})
	if !posted {
		return
	}
	<-done
}

// IsCurrentThread reports whether the calling goroutine is running on the
// render thread's OS thread. Only meaningful for goroutines that have
// called runtime.LockOSThread, or for the render thread's own worker
// goroutine — which is the only caller that matters for PostAndWait's
// reentrancy check.
func (t *RenderThread) IsCurrentThread() bool {
	tid := t.tid.Load()
	return tid != 0 && int32(unix.Gettid()) == tid
}

// RequestShutdown stops accepting new tasks and wakes the worker so it can
// exit once the queue drains. Safe to call multiple times.
func (t *RenderThread) RequestShutdown() {
	if t.running.Swap(false) {
		close(t.done)
	}
}

// IsRunning reports whether the render thread is still accepting tasks.
func (t *RenderThread) IsRunning() bool {
	return t.running.Load()
}
