// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build linux

package videooutput

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/Predidit/media-kit/config"
	"github.com/Predidit/media-kit/decoder"
)

type testDecoder struct {
	mu       sync.Mutex
	w, h     int
	rotate   int
	haveInfo bool
	callback func()
	freed    int
}

func (d *testDecoder) CreateRenderContext(decoder.ContextCreateParams) (decoder.RenderContext, error) {
	return d, nil
}

func (d *testDecoder) SetUpdateCallback(cb func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callback = cb
}

func (d *testDecoder) RenderFBO(fbo uint32, w, h int, flipY bool) error { return nil }

func (d *testDecoder) RenderSoftware(w, h, stride int, pixels unsafe.Pointer) error {
	buf := unsafe.Slice((*byte)(pixels), stride*h)
	for i := range buf {
		buf[i] = 0xAB
	}
	return nil
}

func (d *testDecoder) VideoOutParams() (decoder.VideoOutParams, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.haveInfo {
		return decoder.VideoOutParams{}, false
	}
	return decoder.VideoOutParams{Width: d.w, Height: d.h, RotateDegrees: d.rotate}, true
}

func (d *testDecoder) Free() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.freed++
}

func (d *testDecoder) setParams(w, h, rotate int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.w, d.h, d.rotate, d.haveInfo = w, h, rotate, true
}

func (d *testDecoder) signal() {
	d.mu.Lock()
	cb := d.callback
	d.mu.Unlock()
	if cb != nil {
		cb()
	}
}

type testRegistrar struct {
	mu             sync.Mutex
	frames         int
	lastW, lastH   int
	dimsCalls      int
}

func (r *testRegistrar) NotifyFrameAvailable(int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
}

func (r *testRegistrar) NotifyDimensionsChanged(_ int64, w, h int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastW, r.lastH = w, h
	r.dimsCalls++
}

type inlineIdle struct{}

func (inlineIdle) ScheduleIdle(f func()) { f() }

// Scenario 1 (cold start, SW variant): before any frame, the software
// path reports no dimensions yet.
func TestColdStartBeforeAnyFrame(t *testing.T) {
	dec := &testDecoder{}
	reg := &testRegistrar{}
	out, err := New(dec, reg, inlineIdle{}, 1, config.Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if out.State() != "sw_ready" {
		t.Fatalf("State() = %s, want sw_ready", out.State())
	}
	w, h := out.Width()
	if w != 0 || h != 0 {
		t.Fatalf("Width() = (%d, %d), want (0, 0) before any frame", w, h)
	}
	if reg.dimsCalls != 1 || reg.lastW != 1 || reg.lastH != 1 {
		t.Fatalf("expected one (1,1) dimensions notification to mount the widget, got calls=%d (%d,%d)",
			reg.dimsCalls, reg.lastW, reg.lastH)
	}
}

// Scenario 1 continued: once the decoder reports geometry and signals a
// frame, the reported size matches.
func TestFirstFrameReportsGeometry(t *testing.T) {
	dec := &testDecoder{}
	reg := &testRegistrar{}
	out, _ := New(dec, reg, inlineIdle{}, 1, config.Options{})

	dec.setParams(640, 360, 0)
	dec.signal()

	w, h := out.Width()
	if w != 640 || h != 360 {
		t.Fatalf("Width() = (%d, %d), want (640, 360)", w, h)
	}
	if reg.frames == 0 {
		t.Fatal("registrar was never notified of a frame")
	}
}

// Scenario 2: rotation of 90 degrees swaps reported width/height.
func TestRotation90SwapsDimensions(t *testing.T) {
	dec := &testDecoder{}
	reg := &testRegistrar{}
	out, _ := New(dec, reg, inlineIdle{}, 1, config.Options{})

	dec.setParams(640, 360, 90)
	dec.signal()

	w, h := out.Width()
	if w != 360 || h != 640 {
		t.Fatalf("Width() = (%d, %d), want (360, 640) for a 90-degree rotation", w, h)
	}
}

func TestRotation270SwapsDimensions(t *testing.T) {
	dec := &testDecoder{}
	reg := &testRegistrar{}
	out, _ := New(dec, reg, inlineIdle{}, 1, config.Options{})

	dec.setParams(640, 360, 270)
	dec.signal()

	w, h := out.Width()
	if w != 360 || h != 640 {
		t.Fatalf("Width() = (%d, %d), want (360, 640) for a 270-degree rotation", w, h)
	}
}

// SetDimensions overrides the decoder-reported geometry until reset.
func TestSetDimensionsOverridesThenResets(t *testing.T) {
	dec := &testDecoder{}
	reg := &testRegistrar{}
	out, _ := New(dec, reg, inlineIdle{}, 1, config.Options{})

	dec.setParams(640, 360, 0)
	if err := out.SetDimensions(1280, 720); err != nil {
		t.Fatalf("SetDimensions error = %v", err)
	}
	dec.signal()
	if w, h := out.Width(); w != 1280 || h != 720 {
		t.Fatalf("Width() = (%d, %d), want fixed override (1280, 720)", w, h)
	}

	if err := out.SetDimensions(0, 0); err != nil {
		t.Fatalf("SetDimensions error = %v", err)
	}
	dec.signal()
	if w, h := out.Width(); w != 640 || h != 360 {
		t.Fatalf("Width() = (%d, %d), want decoder-reported (640, 360) after clearing the override", w, h)
	}
}

// Dispose races: a callback firing after Dispose must be a safe no-op,
// and Dispose itself is idempotent.
func TestDisposeIsIdempotentAndRaceSafe(t *testing.T) {
	dec := &testDecoder{}
	reg := &testRegistrar{}
	out, _ := New(dec, reg, inlineIdle{}, 1, config.Options{})

	dec.setParams(640, 360, 0)
	dec.signal()

	out.Dispose()
	if dec.freed != 1 {
		t.Fatalf("decoder.Free() called %d times, want 1", dec.freed)
	}

	// Second Dispose must not call Free again.
	out.Dispose()
	if dec.freed != 1 {
		t.Fatalf("decoder.Free() called %d times after a second Dispose, want 1", dec.freed)
	}

	if err := out.SetDimensions(100, 100); err != ErrDisposed {
		t.Fatalf("SetDimensions after Dispose = %v, want ErrDisposed", err)
	}

	if out.State() != "destroyed" {
		t.Fatalf("State() = %s, want destroyed", out.State())
	}
}

// Forcing software via config (EnableHardwareAcceleration: false) never
// attempts HW init and goes straight to sw_ready.
func TestForcedSoftwareSkipsHWTrying(t *testing.T) {
	dec := &testDecoder{}
	reg := &testRegistrar{}
	out, err := New(dec, reg, inlineIdle{}, 1, config.Options{EnableHardwareAcceleration: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if out.State() != "sw_ready" {
		t.Fatalf("State() = %s, want sw_ready", out.State())
	}
	if out.SoftwareFrame() == nil {
		t.Fatal("SoftwareFrame() = nil, want a Fallback instance")
	}
	if _, ok := out.PollTexture(); ok {
		t.Fatal("PollTexture() ok = true on the SW path, want false")
	}
}
