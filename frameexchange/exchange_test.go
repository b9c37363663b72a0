// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build linux

package frameexchange

import (
	"testing"

	"github.com/Predidit/media-kit/bufferpool"
)

func newTestExchange() *FrameExchange {
	pool := bufferpool.NewStub()
	return New(pool)
}

// scenario 3/display-protection: producer publishes 1..5 before any poll;
// the poll must yield 5 (so none of 1..4 is displayed), and the producer
// never selects the displayed slot as a write target afterwards.
func TestDisplayProtection(t *testing.T) {
	fe := newTestExchange()

	for want := uint64(1); want <= 5; want++ {
		idx := fe.PrepareWrite()
		if idx < 0 {
			t.Fatalf("PrepareWrite returned no slot for seq %d", want)
		}
		got := fe.PublishWrite(idx)
		if got != want {
			t.Fatalf("PublishWrite seq = %d, want %d", got, want)
		}
	}

	idx, ok := fe.Poll()
	if !ok {
		t.Fatal("Poll() ok = false, want true")
	}
	if fe.pool.Slot(idx).Seq() != 5 {
		t.Fatalf("displayed seq = %d, want 5", fe.pool.Slot(idx).Seq())
	}
	if fe.DisplaySeq() != 5 {
		t.Fatalf("DisplaySeq() = %d, want 5", fe.DisplaySeq())
	}

	// The producer must never again select the displayed slot while it
	// remains the display slot.
	for i := 0; i < 50; i++ {
		writeIdx := fe.PrepareWrite()
		if writeIdx == idx {
			t.Fatalf("producer selected the display slot (index %d, seq %d)", idx, fe.DisplaySeq())
		}
		fe.PublishWrite(writeIdx)
	}
}

// Interleave: publish(1); poll->1; publish(2); publish(3); poll->3.
// display_seq must transition 1 -> 3 without 2 ever being sampled.
func TestConsumerSamplingDuringProducerBurst(t *testing.T) {
	fe := newTestExchange()

	i1 := fe.PrepareWrite()
	fe.PublishWrite(i1)

	idx, ok := fe.Poll()
	if !ok || fe.pool.Slot(idx).Seq() != 1 {
		t.Fatalf("first poll did not return seq 1")
	}
	if fe.DisplaySeq() != 1 {
		t.Fatalf("DisplaySeq() = %d, want 1", fe.DisplaySeq())
	}

	i2 := fe.PrepareWrite()
	fe.PublishWrite(i2)
	i3 := fe.PrepareWrite()
	fe.PublishWrite(i3)

	idx, ok = fe.Poll()
	if !ok {
		t.Fatal("second poll: ok = false")
	}
	if got := fe.pool.Slot(idx).Seq(); got != 3 {
		t.Fatalf("second poll returned seq %d, want 3 (seq 2 must never be sampled)", got)
	}
	if fe.DisplaySeq() != 3 {
		t.Fatalf("DisplaySeq() = %d, want 3", fe.DisplaySeq())
	}
}

// Monotonic consumer: consumer_seq never decreases within an epoch.
func TestMonotonicConsumer(t *testing.T) {
	fe := newTestExchange()

	var last uint64
	for i := 0; i < 10; i++ {
		idx := fe.PrepareWrite()
		fe.PublishWrite(idx)
		if _, ok := fe.Poll(); !ok {
			continue
		}
		cur := fe.ConsumerSeq()
		if cur < last {
			t.Fatalf("consumer_seq went backwards: %d -> %d", last, cur)
		}
		last = cur
	}
}

// Liveness with N=3: continuous producer progress must eventually advance
// consumer_seq past any fixed point.
func TestLivenessWithThreeSlots(t *testing.T) {
	fe := newTestExchange()

	target := fe.ConsumerSeq() + 20
	for fe.ConsumerSeq() < target {
		idx := fe.PrepareWrite()
		if idx < 0 {
			t.Fatal("producer starved: PrepareWrite found no slot")
		}
		fe.PublishWrite(idx)
		fe.Poll()
	}
}

// Cold start: before any frame has published, Poll must report no frame.
func TestColdStart(t *testing.T) {
	fe := newTestExchange()
	if _, ok := fe.Poll(); ok {
		t.Fatal("Poll() on a pool with no published frames should return ok=false")
	}
}

// Resizing: a concurrent poll during resize must return "no frame",
// leaving display/consumer state untouched.
func TestPollDuringResize(t *testing.T) {
	fe := newTestExchange()

	idx := fe.PrepareWrite()
	fe.PublishWrite(idx)
	if _, ok := fe.Poll(); !ok {
		t.Fatal("expected a frame before resize")
	}
	wantDisplaySeq := fe.DisplaySeq()

	fe.pool.SetResizing(true)
	if _, ok := fe.Poll(); ok {
		t.Fatal("Poll() during resize should report ok=false")
	}
	if fe.DisplaySeq() != wantDisplaySeq {
		t.Fatalf("DisplaySeq() changed during resize: got %d, want %d", fe.DisplaySeq(), wantDisplaySeq)
	}
	fe.pool.SetResizing(false)

	// A real resize reallocates every slot and zeroes its seq (bufferpool.Ensure)
	// before the caller resets the exchange's epoch counters; simulate that here.
	for i := 0; i < bufferpool.N; i++ {
		fe.pool.SetSeq(i, 0)
	}
	fe.ResetEpoch()
	if fe.DisplaySeq() != 0 || fe.ConsumerSeq() != 0 {
		t.Fatal("ResetEpoch did not zero display/consumer sequences")
	}
	if _, ok := fe.Poll(); ok {
		t.Fatal("Poll() immediately after ResetEpoch should report ok=false (no frames published this epoch)")
	}
}

// A fence that has not yet signaled must be skipped, not treated as a
// candidate — "no tearing" means the consumer never accepts a slot whose
// fence has not completed.
func TestNoTearingSkipsUnsignaledFence(t *testing.T) {
	fe := newTestExchange()

	i1 := fe.PrepareWrite()
	fe.PublishWrite(i1)
	idx, ok := fe.Poll()
	if !ok {
		t.Fatal("expected a frame")
	}
	firstDisplayed := idx

	i2 := fe.PrepareWrite()
	seq2 := fe.PublishWrite(i2)
	fe.pool.SetFencePending(i2, true) // simulate: GPU has not finished this frame yet

	idx, ok = fe.Poll()
	if !ok {
		t.Fatal("expected the previous frame to still be displayable")
	}
	if idx != firstDisplayed {
		t.Fatalf("poll advanced to an unsignaled slot: got %d, want previous slot %d", idx, firstDisplayed)
	}
	if fe.ConsumerSeq() == seq2 {
		t.Fatal("consumer_seq advanced past an unsignaled fence")
	}

	fe.pool.SetFencePending(i2, false)
	idx, ok = fe.Poll()
	if !ok || fe.pool.Slot(idx).Seq() != seq2 {
		t.Fatal("expected the pending frame to become displayable once its fence signaled")
	}
}
