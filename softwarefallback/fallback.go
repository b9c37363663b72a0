// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build linux

// Package softwarefallback implements the CPU pixel-buffer path
// VideoOutput falls back to when the zero-copy GL path is unavailable
// (spec §4.6).
package softwarefallback

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/Predidit/media-kit/compositor"
	"github.com/Predidit/media-kit/decoder"
)

// MaxWidth and MaxHeight are the hard-coded dimension cap for the
// software path (spec §4.3 "the software path caps each dimension to a
// hard-coded maximum while preserving aspect ratio").
const (
	MaxWidth  = 1920
	MaxHeight = 1080
)

// Fallback owns a single CPU pixel buffer of MaxWidth*MaxHeight*4 bytes,
// guarded by a mutex, and the idle-callback scheduling that keeps all GL-
// and registrar-facing work off the decoder's own thread.
type Fallback struct {
	dec       decoder.RenderContext
	registrar compositor.TextureRegistrar
	idle      compositor.IdleScheduler
	textureID int64

	destroyed atomic.Bool

	mu         sync.Mutex
	buf        []byte
	width      int
	height     int
	fixedW     int // 0 = auto (follow decoder)
	fixedH     int
}

// New creates a Fallback bound to dec, notifying registrar under textureID
// and scheduling render work through idle.
func New(dec decoder.RenderContext, registrar compositor.TextureRegistrar, idle compositor.IdleScheduler, textureID int64) *Fallback {
	return &Fallback{
		dec:       dec,
		registrar: registrar,
		idle:      idle,
		textureID: textureID,
		buf:       make([]byte, MaxWidth*MaxHeight*4),
	}
}

// SetDimensions overrides the reported size; (0, 0) reverts to following
// the decoder's native geometry.
func (f *Fallback) SetDimensions(w, h int) {
	f.mu.Lock()
	f.fixedW, f.fixedH = w, h
	f.mu.Unlock()
}

// Dimensions returns the buffer's current clamped size.
func (f *Fallback) Dimensions() (width, height int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.width, f.height
}

// OnFrameAvailable is the decoder's update callback. It must never touch
// GL or the registrar directly (spec §4.6 step 1): it only schedules idle
// work on the host's main loop.
func (f *Fallback) OnFrameAvailable() {
	if f.destroyed.Load() {
		return
	}
	f.idle.ScheduleIdle(f.renderIdle)
}

// renderIdle runs on the host's main loop. It is idempotent on dispose
// (spec §4.6 step 3): a destroyed Fallback bails without touching the
// decoder or the registrar.
func (f *Fallback) renderIdle() {
	if f.destroyed.Load() {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.destroyed.Load() {
		return
	}

	w, h := f.targetDimensions()
	w, h = ClampToMax(w, h)
	if w <= 0 || h <= 0 {
		return
	}

	stride := 4 * w
	if err := f.dec.RenderSoftware(w, h, stride, unsafe.Pointer(&f.buf[0])); err != nil {
		return
	}

	sizeChanged := w != f.width || h != f.height
	f.width, f.height = w, h

	if sizeChanged {
		f.registrar.NotifyDimensionsChanged(f.textureID, w, h)
	}
	f.registrar.NotifyFrameAvailable(f.textureID)
}

// targetDimensions resolves the unclamped size to render at: a fixed
// override if set, otherwise the decoder's reported native geometry with
// rotation applied (spec §4.5 dimension protocol, shared with the HW path).
func (f *Fallback) targetDimensions() (width, height int) {
	if f.fixedW != 0 && f.fixedH != 0 {
		return f.fixedW, f.fixedH
	}
	params, ok := f.dec.VideoOutParams()
	if !ok {
		return f.fixedW, f.fixedH
	}
	w, h := params.Width, params.Height
	if params.RotateDegrees == 90 || params.RotateDegrees == 270 {
		w, h = h, w
	}
	return w, h
}

// ClampToMax scales (w, h) down to fit within MaxWidth x MaxHeight while
// preserving aspect ratio. Dimensions already within bounds are returned
// unchanged.
func ClampToMax(w, h int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if w <= MaxWidth && h <= MaxHeight {
		return w, h
	}

	widthScale := float64(MaxWidth) / float64(w)
	heightScale := float64(MaxHeight) / float64(h)
	scale := widthScale
	if heightScale < scale {
		scale = heightScale
	}

	cw := int(float64(w) * scale)
	ch := int(float64(h) * scale)
	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}
	return cw, ch
}

// CopyInto copies the current frame into dst, which must be at least
// width*height*4 bytes, and returns the frame's dimensions. Safe to call
// concurrently with renderIdle.
func (f *Fallback) CopyInto(dst []byte) (width, height int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.width * f.height * 4
	if n > 0 && len(dst) >= n {
		copy(dst, f.buf[:n])
	}
	return f.width, f.height
}

// Dispose marks the Fallback destroyed. Any renderIdle already queued on
// the host's main loop will observe this and bail without touching the
// decoder.
func (f *Fallback) Dispose() {
	f.destroyed.Store(true)
}
