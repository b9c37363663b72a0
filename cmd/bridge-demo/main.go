// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build linux

// Command bridge-demo is an integration test for the video bridge: it
// wires a fake decoder and a fake compositor registrar end-to-end through
// videooutput.VideoOutput, forcing the software path so it can run
// without a live host GL context.
package main

import (
	"fmt"
	"os"
	"sync"
	"time"
	"unsafe"

	"github.com/Predidit/media-kit/compositor"
	"github.com/Predidit/media-kit/config"
	"github.com/Predidit/media-kit/decoder"
	"github.com/Predidit/media-kit/videooutput"
)

func main() {
	fmt.Println("=== Video Bridge Integration Demo ===")
	fmt.Println()

	fmt.Print("1. Constructing fake decoder + registrar... ")
	dec := newFakeDecoder(640, 360, 0)
	registrar := newFakeRegistrar()
	idle := newInlineIdleScheduler()
	fmt.Println("OK")

	fmt.Print("2. Creating VideoOutput (software-forced)... ")
	out, err := videooutput.New(dec, registrar, idle, 1, config.Options{
		EnableHardwareAcceleration: false,
	})
	if err != nil {
		fmt.Printf("FAILED: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK (state=%s)\n", out.State())

	fmt.Print("3. Signaling first frame... ")
	dec.signalFrame()
	w, h := out.SoftwareFrame().Dimensions()
	fmt.Printf("OK (%dx%d)\n", w, h)
	if w != 640 || h != 360 {
		fmt.Println("FAILED: expected 640x360")
		os.Exit(1)
	}

	fmt.Print("4. Reconfiguring to a rotated stream... ")
	dec.setVideoOutParams(640, 360, 90)
	dec.signalFrame()
	w, h = out.SoftwareFrame().Dimensions()
	fmt.Printf("OK (%dx%d)\n", w, h)
	if w != 360 || h != 640 {
		fmt.Println("FAILED: expected rotation to swap to 360x640")
		os.Exit(1)
	}

	fmt.Print("5. Disposing... ")
	out.Dispose()
	dec.signalFrame() // must be a no-op post-dispose
	time.Sleep(10 * time.Millisecond)
	fmt.Println("OK")

	fmt.Println()
	fmt.Println("=== All steps passed ===")
}

// fakeDecoder is a minimal decoder.Factory + decoder.RenderContext: it
// never actually decodes, just reports a configurable geometry and
// fills the software buffer with zeros.
type fakeDecoder struct {
	mu       sync.Mutex
	width    int
	height   int
	rotate   int
	callback func()
}

func newFakeDecoder(w, h, rotate int) *fakeDecoder {
	return &fakeDecoder{width: w, height: h, rotate: rotate}
}

func (d *fakeDecoder) CreateRenderContext(decoder.ContextCreateParams) (decoder.RenderContext, error) {
	return d, nil
}

func (d *fakeDecoder) SetUpdateCallback(cb func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callback = cb
}

func (d *fakeDecoder) RenderFBO(fbo uint32, w, h int, flipY bool) error {
	return fmt.Errorf("fakeDecoder: no GL context available in this demo")
}

func (d *fakeDecoder) RenderSoftware(w, h, stride int, pixels unsafe.Pointer) error {
	buf := unsafe.Slice((*byte)(pixels), stride*h)
	for i := range buf {
		buf[i] = 0
	}
	return nil
}

func (d *fakeDecoder) VideoOutParams() (decoder.VideoOutParams, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return decoder.VideoOutParams{Width: d.width, Height: d.height, RotateDegrees: d.rotate}, true
}

func (d *fakeDecoder) Free() {}

func (d *fakeDecoder) setVideoOutParams(w, h, rotate int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.width, d.height, d.rotate = w, h, rotate
}

func (d *fakeDecoder) signalFrame() {
	d.mu.Lock()
	cb := d.callback
	d.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// fakeRegistrar records every notification for inspection.
type fakeRegistrar struct {
	mu               sync.Mutex
	frameAvailable   int
	lastWidth        int
	lastHeight       int
}

func newFakeRegistrar() *fakeRegistrar { return &fakeRegistrar{} }

func (r *fakeRegistrar) NotifyFrameAvailable(textureID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frameAvailable++
}

func (r *fakeRegistrar) NotifyDimensionsChanged(textureID int64, width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastWidth, r.lastHeight = width, height
}

// inlineIdleScheduler runs scheduled work synchronously, which is fine for
// this single-threaded demo (a real host would hop onto its own main loop).
type inlineIdleScheduler struct{}

func newInlineIdleScheduler() inlineIdleScheduler { return inlineIdleScheduler{} }

func (inlineIdleScheduler) ScheduleIdle(f func()) { f() }

var (
	_ decoder.Factory             = (*fakeDecoder)(nil)
	_ decoder.RenderContext       = (*fakeDecoder)(nil)
	_ compositor.TextureRegistrar = (*fakeRegistrar)(nil)
	_ compositor.IdleScheduler    = inlineIdleScheduler{}
)
