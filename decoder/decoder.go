// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package decoder declares the contract VideoOutput relies on from an
// external video decoder (an mpv-style render API). The core never links
// against a concrete decoder; callers supply a Factory.
package decoder

import "unsafe"

// ContextCreateParams are passed to Factory.CreateRenderContext. The
// decoder uses GetProcAddress to resolve its own GL entry points against
// whichever context render_context_create activates; X11Display and
// WaylandDisplay are optional VA-API hardware-decode hints and may be
// left zero.
type ContextCreateParams struct {
	GetProcAddress func(name string) unsafe.Pointer
	X11Display     unsafe.Pointer
	WaylandDisplay unsafe.Pointer
}

// VideoOutParams is the decoder's reported native video geometry, read
// from its "video-out-params" property (spec §6).
type VideoOutParams struct {
	Width, Height int
	// RotateDegrees is the decoder-reported rotation: one of 0, 90, 180,
	// 270. VideoOutput swaps Width/Height when it is 90 or 270.
	RotateDegrees int
}

// RenderContext is the decoder's render handle, created once per
// VideoOutput instance and freed exactly once.
type RenderContext interface {
	// SetUpdateCallback registers the callback the decoder invokes from
	// its own thread(s) whenever a new frame is ready. Passing nil clears
	// any previously registered callback.
	SetUpdateCallback(cb func())

	// RenderFBO asks the decoder to draw the current frame into the GL
	// framebuffer object fbo, sized w by h. flipY matches the render
	// API's FLIP_Y render param. The producer GL context must be current
	// on the calling thread.
	RenderFBO(fbo uint32, w, h int, flipY bool) error

	// RenderSoftware asks the decoder to draw the current frame into a
	// CPU pixel buffer in "rgb0" format at the given stride. pixels must
	// point to at least stride*h bytes and remain valid for the duration
	// of the call.
	RenderSoftware(w, h, stride int, pixels unsafe.Pointer) error

	// VideoOutParams reports the decoder's native video geometry. ok is
	// false if the decoder has not yet determined it (e.g. before the
	// first frame has decoded).
	VideoOutParams() (params VideoOutParams, ok bool)

	// Free releases the decoder's render context. The caller must ensure
	// the producer GL context is current and no fence is outstanding on
	// any slot the decoder may have rendered into.
	Free()
}

// Factory creates a decoder RenderContext bound to params. Implementations
// wrap whatever decoder library (e.g. libmpv) the host embeds.
type Factory interface {
	CreateRenderContext(params ContextCreateParams) (RenderContext, error)
}
