// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build linux

package bufferpool

import "testing"

// A freshly constructed, unallocated pool reports the zero state: no
// dimensions, not resizing, and every slot at seq 0.
func TestNewPoolZeroState(t *testing.T) {
	p := New(nil, nil)

	if p.Initialized() {
		t.Fatal("Initialized() = true on a pool that was never Ensure'd")
	}
	if p.Resizing() {
		t.Fatal("Resizing() = true on a fresh pool")
	}
	w, h := p.Dimensions()
	if w != 0 || h != 0 {
		t.Fatalf("Dimensions() = (%d, %d), want (0, 0)", w, h)
	}
	for i := 0; i < N; i++ {
		if seq := p.Slot(i).Seq(); seq != 0 {
			t.Fatalf("slot %d seq = %d, want 0", i, seq)
		}
	}
}

// A fence-less slot is always ready: ClientWaitNonBlocking must not dial
// into GL when there's nothing to wait on.
func TestClientWaitNonBlockingNoFence(t *testing.T) {
	p := NewStub()
	for i := 0; i < N; i++ {
		if !p.ClientWaitNonBlocking(i) {
			t.Fatalf("slot %d with no fence should report ready", i)
		}
	}
}

// A pending fence on a stub pool (no GL context) reports not-ready rather
// than panicking, and DestroyFence clears it without touching GL.
func TestStubFenceLifecycle(t *testing.T) {
	p := NewStub()

	p.SetFencePending(0, true)
	if p.ClientWaitNonBlocking(0) {
		t.Fatal("pending fence on a stub pool should report not-ready")
	}

	p.DestroyFence(0)
	if !p.ClientWaitNonBlocking(0) {
		t.Fatal("after DestroyFence, slot should report ready again")
	}
}

// SetSeq/SetResizing drive state directly, independent of each other.
func TestStubSetters(t *testing.T) {
	p := NewStub()

	p.SetSeq(1, 7)
	if got := p.Slot(1).Seq(); got != 7 {
		t.Fatalf("Slot(1).Seq() = %d, want 7", got)
	}
	for _, i := range []int{0, 2} {
		if got := p.Slot(i).Seq(); got != 0 {
			t.Fatalf("Slot(%d).Seq() = %d, want 0 (untouched)", i, got)
		}
	}

	if p.Resizing() {
		t.Fatal("Resizing() = true before SetResizing(true)")
	}
	p.SetResizing(true)
	if !p.Resizing() {
		t.Fatal("Resizing() = false after SetResizing(true)")
	}
	p.SetResizing(false)
	if p.Resizing() {
		t.Fatal("Resizing() = true after SetResizing(false)")
	}
}

// Ensure is a no-op when the pool is already initialized at the requested
// size (spec §8 round-trip property). A stub pool is "initialized" with
// zero dimensions, so re-Ensure'ing at (0, 0) must not touch glCtx/eglCtx
// (which are nil) and must return nil.
func TestEnsureNoOpOnUnchangedSize(t *testing.T) {
	p := NewStub()
	reallocated, err := p.Ensure(0, 0)
	if err != nil {
		t.Fatalf("Ensure(0, 0) on an already-initialized-at-(0,0) stub pool returned %v, want nil", err)
	}
	if reallocated {
		t.Fatal("Ensure(0, 0) on an unchanged size reported reallocated = true, want false")
	}
}
