// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build linux

// Package videooutput is the orchestrator: it owns the HW/SW tagged
// variant, the lifecycle state machine, and the dimension protocol that
// bridges a decoder's reported video geometry to the host compositor
// (spec §4.5).
package videooutput

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/Predidit/media-kit/compositor"
	"github.com/Predidit/media-kit/config"
	"github.com/Predidit/media-kit/decoder"
	"github.com/Predidit/media-kit/internal/egl"
	"github.com/Predidit/media-kit/softwarefallback"
)

// VideoOutput is the public entry point: one instance per decoded video
// stream exposed to the host compositor as a single texture id.
type VideoOutput struct {
	registrar compositor.TextureRegistrar
	idle      compositor.IdleScheduler
	textureID int64
	dec       decoder.RenderContext
	display   *egl.DisplayOwner

	destroyed atomic.Bool

	mu      sync.Mutex
	st      state
	fixedW  int
	fixedH  int

	hw *hwPath
	sw *softwarefallback.Fallback
}

// New constructs a VideoOutput. If cfg requests hardware acceleration, it
// attempts the HW path first (spec §4.5: "attempts HW init... on any
// failure, falls back to software"); New must be called on a thread where
// the host's GL context is current when HW is requested, since HW
// discovery snapshots that thread's current EGL state.
func New(factory decoder.Factory, registrar compositor.TextureRegistrar, idle compositor.IdleScheduler, textureID int64, cfg config.Options) (*VideoOutput, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Opening a native display here is purely to populate the decoder's
	// optional X11_DISPLAY VA-API hint (spec §6); it has no bearing on the
	// producer context, which always shares the host's already-open
	// display. Wayland has no equivalent live handle available: EGL's own
	// TestWaylandDisplay probe connects and disconnects immediately, so
	// there is nothing durable to hand the decoder for that case.
	var display *egl.DisplayOwner
	var x11Display unsafe.Pointer
	if egl.DetectWindowKind() == egl.WindowKindX11 {
		if owner := egl.OpenX11Display(); owner != nil {
			display = owner
			x11Display = unsafe.Pointer(owner.Display())
		}
	}

	dec, err := factory.CreateRenderContext(decoder.ContextCreateParams{
		GetProcAddress: func(name string) unsafe.Pointer { return unsafe.Pointer(egl.GetProcAddress(name)) },
		X11Display:     x11Display,
	})
	if err != nil {
		if display != nil {
			display.Close()
		}
		return nil, fmt.Errorf("%w: %v", ErrDecoderUnavailable, err)
	}

	vo := &VideoOutput{
		registrar: registrar,
		idle:      idle,
		textureID: textureID,
		dec:       dec,
		display:   display,
		fixedW:    cfg.Width,
		fixedH:    cfg.Height,
		st:        stateCreated,
	}

	if cfg.EnableHardwareAcceleration {
		vo.st = stateHWTrying
		if hw, err := newHWPath(dec, registrar, textureID); err != nil {
			logger.Printf("videooutput: hw init failed, falling back to software: %v", err)
			vo.startSW()
		} else {
			hw.SetFixedSize(cfg.Width, cfg.Height)
			vo.hw = hw
			dec.SetUpdateCallback(vo.onFrameAvailable)
			vo.st = stateHWReady
		}
	} else {
		vo.startSW()
	}

	// Force the widget layer to mount (spec §6).
	registrar.NotifyDimensionsChanged(textureID, 1, 1)

	return vo, nil
}

func (vo *VideoOutput) startSW() {
	sw := softwarefallback.New(vo.dec, vo.registrar, vo.idle, vo.textureID)
	sw.SetDimensions(vo.fixedW, vo.fixedH)
	vo.sw = sw
	vo.dec.SetUpdateCallback(vo.onFrameAvailable)
	vo.st = stateSWReady
}

// onFrameAvailable is registered with the decoder as its update callback
// (spec §4.5 "on_frame_available"). It runs on whatever thread the
// decoder chooses to invoke it from, so it must do as little as possible:
// dispatch and return.
func (vo *VideoOutput) onFrameAvailable() {
	if vo.destroyed.Load() {
		return
	}
	switch {
	case vo.hw != nil:
		vo.hw.rt.Post(vo.hw.renderFrame)
	case vo.sw != nil:
		vo.sw.OnFrameAvailable()
	}
}

// SetDimensions updates the fixed output size; (0, 0) reverts to following
// the decoder's reported geometry (spec §4.5 dimension protocol).
func (vo *VideoOutput) SetDimensions(w, h int) error {
	if vo.destroyed.Load() {
		return ErrDisposed
	}

	vo.mu.Lock()
	vo.fixedW, vo.fixedH = w, h
	vo.mu.Unlock()

	switch {
	case vo.hw != nil:
		vo.hw.SetFixedSize(w, h)
	case vo.sw != nil:
		vo.sw.SetDimensions(w, h)
	}
	return nil
}

// Width reports the last-known output width and height: the HW path's
// live pool size, or the SW path's last-rendered clamped size.
func (vo *VideoOutput) Width() (width, height int) {
	switch {
	case vo.hw != nil:
		return vo.hw.pool.Dimensions()
	case vo.sw != nil:
		return vo.sw.Dimensions()
	default:
		return 0, 0
	}
}

// TextureID returns the opaque identifier the host uses to refer to this
// video's texture (spec §4.5 "texture_id").
func (vo *VideoOutput) TextureID() int64 { return vo.textureID }

// State reports the current lifecycle state, for diagnostics and tests.
func (vo *VideoOutput) State() string {
	vo.mu.Lock()
	defer vo.mu.Unlock()
	return vo.st.String()
}

// PollTexture is the host's polled texture callback for the HW path
// (spec §6: "Must always return TRUE with a valid texture name... Must
// never block the host thread on GPU work"). Must run on the host thread
// with the host's GL context current. Returns ok=false when the SW path
// is active or the output has been disposed — the SW path delivers frames
// through CopyInto instead of a GL texture.
func (vo *VideoOutput) PollTexture() (compositor.Texture, bool) {
	if vo.destroyed.Load() || vo.hw == nil {
		return compositor.Texture{}, false
	}
	return vo.hw.pollTexture()
}

// SoftwareFrame returns the active SoftwareFallback, or nil when the HW
// path is in use. The host copies frames out via Fallback.CopyInto.
func (vo *VideoOutput) SoftwareFrame() *softwarefallback.Fallback {
	return vo.sw
}

// Dispose tears the instance down (spec §4.5 "dispose"): it sets the
// destroyed flag, clears the decoder's update callback so no further
// callback can arrive, tears down the render thread and GL/EGL state (HW)
// or marks the fallback destroyed (SW), and frees the decoder's render
// context. Safe to call more than once; only the first call does work.
func (vo *VideoOutput) Dispose() {
	if !vo.destroyed.CompareAndSwap(false, true) {
		return
	}

	vo.dec.SetUpdateCallback(nil)

	switch {
	case vo.hw != nil:
		vo.hw.destroy(vo.dec.Free)
	case vo.sw != nil:
		vo.sw.Dispose()
		vo.dec.Free()
	default:
		vo.dec.Free()
	}

	if vo.display != nil {
		vo.display.Close()
	}

	vo.mu.Lock()
	vo.st = stateDestroyed
	vo.mu.Unlock()
}
