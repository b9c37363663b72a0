// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build linux

package bufferpool

// NewStub returns a BufferPool-shaped value with no GL/EGL context
// attached, for exercising FrameExchange's slot-selection logic in tests
// that have no GPU available. A stub pool can never allocate (Ensure
// would panic); use SetSeq/SetResizing/SetFencePending to drive it
// directly instead.
func NewStub() *BufferPool {
	return &BufferPool{initialized: true}
}

// SetSeq stores slot i's published sequence number. FrameExchange.PublishWrite
// publishes each frame's sequence through it; tests also call it directly to
// seed a stub pool's state.
func (p *BufferPool) SetSeq(i int, seq uint64) {
	p.slots[i].seq.Store(seq)
}

// SetResizing toggles the resizing flag directly, for tests of the
// consumer's placeholder-during-resize behavior.
func (p *BufferPool) SetResizing(v bool) {
	p.resizing.Store(v)
}

// SetFencePending marks slot i as having an outstanding (never-signaling)
// fence, for tests of the consumer's non-blocking-wait timeout path. A
// stub pool has no real GL fence, so ClientWaitNonBlocking always reports
// "not yet signaled" for a pending fence rather than calling into GL.
func (p *BufferPool) SetFencePending(i int, pending bool) {
	if pending {
		p.slots[i].fence = 1
	} else {
		p.slots[i].fence = 0
	}
}
