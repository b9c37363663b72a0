// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package renderthread

import "sync/atomic"

// PendingResize tracks a width/height change requested from a caller
// thread (the decoder's dimension report, or a fixed-size configuration
// change) for the render thread to pick up and apply to the BufferPool.
// Adapted from the teacher's RenderLoop pending-resize fields; generalized
// here since this bridge reallocates GPU buffers instead of a swapchain.
type PendingResize struct {
	width, height atomic.Uint32
	pending       atomic.Bool
}

// Request records a new target size. A zero width or height is ignored:
// the dimension protocol treats zero as "not yet known", never as a real
// resize target.
func (p *PendingResize) Request(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	p.width.Store(width)
	p.height.Store(height)
	p.pending.Store(true)
}

// HasPending reports whether a resize is waiting to be applied.
func (p *PendingResize) HasPending() bool {
	return p.pending.Load()
}

// Consume clears the pending flag and returns the target size. Returns
// ok=false if nothing was pending.
func (p *PendingResize) Consume() (width, height uint32, ok bool) {
	if !p.pending.Swap(false) {
		return 0, 0, false
	}
	return p.width.Load(), p.height.Load(), true
}
