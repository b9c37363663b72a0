// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build linux

// Package frameexchange implements the lock-free producer/consumer
// handoff between the render thread and the host's texture-poll callback.
// There is no direct analogue for this in the teacher repository — wgpu's
// command-submission model assumes a single consumer driving the queue —
// so this package is grounded in spec.md §4.4 directly, using the same
// atomic-with-acquire/release idiom the teacher uses for its `seq`-style
// counters elsewhere (e.g. hal/gles/resource.go's Fence.value).
package frameexchange

import (
	"sync/atomic"

	"github.com/Predidit/media-kit/bufferpool"
)

// FrameExchange is the atomic state shared between the producer (render
// thread) and the consumer (host UI thread), per spec §3.
type FrameExchange struct {
	producerSeq atomic.Uint64
	displaySeq  atomic.Uint64
	consumerSeq atomic.Uint64

	writeIndex int // producer-thread-private bookkeeping only

	pool *bufferpool.BufferPool

	displayIndex int // consumer-thread-private: -1 until a frame is chosen
}

// New creates a FrameExchange over pool, in the post-reset epoch state
// (producerSeq=1, displaySeq=0, consumerSeq=0 — spec §4.3 step 5).
func New(pool *bufferpool.BufferPool) *FrameExchange {
	fe := &FrameExchange{pool: pool, displayIndex: -1, writeIndex: -1}
	fe.producerSeq.Store(1)
	return fe
}

// ResetEpoch reinitializes the sequence counters for a new epoch, called
// right after BufferPool.Ensure reallocates the pool (spec §4.3 step 5,
// §8 "resize mid-flight": producer_seq=1, consumer_seq=0 after resize).
func (fe *FrameExchange) ResetEpoch() {
	fe.producerSeq.Store(1)
	fe.displaySeq.Store(0)
	fe.consumerSeq.Store(0)
	fe.writeIndex = -1
	fe.displayIndex = -1
}

// DisplaySeq returns the sequence currently protected from producer
// overwrite (0 means no frame has been displayed yet this epoch).
func (fe *FrameExchange) DisplaySeq() uint64 { return fe.displaySeq.Load() }

// ConsumerSeq returns the largest sequence the consumer has accepted.
func (fe *FrameExchange) ConsumerSeq() uint64 { return fe.consumerSeq.Load() }

// PrepareWrite selects the next write slot (spec §4.4 producer steps
// 1-2): any slot whose seq != displaySeq, preferring the smallest seq.
// Destroys that slot's old fence. Must run on the render thread. Returns
// -1 only if every slot carries the nonzero displaySeq, which cannot
// happen while published sequences are distinct; the pool's initialized
// state is not checked.
func (fe *FrameExchange) PrepareWrite() int {
	idx := fe.selectWriteSlot()
	if idx < 0 {
		return -1
	}
	fe.pool.DestroyFence(idx)
	fe.writeIndex = idx
	return idx
}

func (fe *FrameExchange) selectWriteSlot() int {
	displaySeq := fe.displaySeq.Load() // acquire: happens-before any prior consumer publish
	best := -1
	var bestSeq uint64
	for i := 0; i < bufferpool.N; i++ {
		seq := fe.pool.Slot(i).Seq()
		if displaySeq != 0 && seq == displaySeq {
			continue // never overwrite the displayed slot
		}
		if best < 0 || seq < bestSeq {
			best, bestSeq = i, seq
		}
	}
	return best
}

// PublishWrite flushes and fences slot idx (spec §4.4 producer steps
// 3-5), then assigns and stores the next sequence number. Call this after
// the decoder has finished rendering into the slot's FBO. A fence
// creation failure is non-fatal (spec §7): the slot is still published,
// just treated as always-ready by future client-waits.
func (fe *FrameExchange) PublishWrite(idx int) uint64 {
	_ = fe.pool.PublishFence(idx) // error discarded: a fence-less slot reads as always-ready; never fatal
	seq := fe.producerSeq.Add(1) - 1
	fe.pool.SetSeq(idx, seq) // release: visible to the consumer's next poll
	return seq
}

// Poll implements the consumer side of spec §4.4: returns the slot index
// to display and true, or (-1, false) when there is nothing to show yet
// (cold start with no frame ever published). Never blocks: fence waits use
// a zero timeout. Must not be called while the caller is racing a resize;
// check Resizing() (or rely on this returning the dummy-worthy (-1,false)
// during one, since a resizing pool's slots are all mid-reallocation).
func (fe *FrameExchange) Poll() (slotIndex int, ok bool) {
	if fe.pool.Resizing() {
		return -1, false
	}

	consumerSeq := fe.consumerSeq.Load()
	best := -1
	var bestSeq uint64

	for i := 0; i < bufferpool.N; i++ {
		seq := fe.pool.Slot(i).Seq()
		if seq <= consumerSeq {
			continue
		}
		if !fe.pool.ClientWaitNonBlocking(i) {
			continue // fence not yet signaled: not an error, just not ready this poll
		}
		fe.pool.DestroyFence(i)
		if best < 0 || seq > bestSeq {
			best, bestSeq = i, seq
		}
	}

	if best >= 0 {
		fe.consumerSeq.Store(bestSeq)
		fe.displaySeq.Store(bestSeq) // release, before returning to the caller
		fe.displayIndex = best
		return best, true
	}

	if fe.displayIndex >= 0 {
		return fe.displayIndex, true
	}

	return fe.coldStartTieBreak()
}

// coldStartTieBreak handles the very first poll when no candidate passed
// its fence wait yet but the producer has already published something:
// pick the slot with the largest non-zero seq.
func (fe *FrameExchange) coldStartTieBreak() (int, bool) {
	best := -1
	var bestSeq uint64
	for i := 0; i < bufferpool.N; i++ {
		seq := fe.pool.Slot(i).Seq()
		if seq == 0 {
			continue
		}
		if best < 0 || seq > bestSeq {
			best, bestSeq = i, seq
		}
	}
	if best < 0 {
		return -1, false
	}
	fe.consumerSeq.Store(bestSeq)
	fe.displaySeq.Store(bestSeq)
	fe.displayIndex = best
	return best, true
}
