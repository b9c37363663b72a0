// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build linux

// Package bufferpool implements the N=3-buffered pool of FBO/texture/
// shareable-image slots the producer renders into and the consumer
// samples from. Grounded in github.com/gogpu/wgpu's hal/gles/resource.go
// (Fence) and hal/gles/resource_linux.go (Surface/AcquireTexture), adapted
// from a generic multi-backend resource model into this bridge's fixed
// N=3 slot array.
package bufferpool

import (
	"sync/atomic"

	"github.com/Predidit/media-kit/internal/egl"
	"github.com/Predidit/media-kit/internal/gl"
)

// N is the fixed slot count. With N=3 the producer always has a slot to
// write to that isn't the one currently displayed (spec §3 invariant 2).
const N = 3

// Slot is one FBO/texture/image triple plus the fence and sequence number
// that make display protection possible.
type Slot struct {
	fbo     uint32
	texture uint32
	image   egl.EGLImage

	fence gl.Sync // zero means "no fence outstanding"
	seq   atomic.Uint64
}

// Seq returns the slot's published sequence number (0 = never rendered).
func (s *Slot) Seq() uint64 { return s.seq.Load() }

// Texture returns the GL texture name backing this slot, valid in the
// context that owns it (producer-context name for the FBO attachment; a
// distinct per-consumer-context name once bound via EGLImageTargetTexture2DOES).
func (s *Slot) Texture() uint32 { return s.texture }

// FBO returns the framebuffer object name, valid only in the producer context.
func (s *Slot) FBO() uint32 { return s.fbo }

// Image returns the shareable EGLImage handle for this slot.
func (s *Slot) Image() egl.EGLImage { return s.image }

func (s *Slot) reset() {
	s.fbo = 0
	s.texture = 0
	s.image = egl.NoImage
	s.fence = 0
	s.seq.Store(0)
}
