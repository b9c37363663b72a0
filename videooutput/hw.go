// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build linux

package videooutput

import (
	"fmt"

	"github.com/Predidit/media-kit/bufferpool"
	"github.com/Predidit/media-kit/compositor"
	"github.com/Predidit/media-kit/decoder"
	"github.com/Predidit/media-kit/frameexchange"
	"github.com/Predidit/media-kit/internal/egl"
	glpkg "github.com/Predidit/media-kit/internal/gl"
	"github.com/Predidit/media-kit/internal/renderthread"
)

// hwPath is the zero-copy GL variant of VideoOutput's tagged dispatch
// (spec §9 "Dynamic dispatch over HW/SW"): a BufferPool plus producer
// context plus the render thread that owns both.
type hwPath struct {
	eglCtx *egl.Context
	glCtx  *glpkg.Context
	pool   *bufferpool.BufferPool
	fe     *frameexchange.FrameExchange
	rt     *renderthread.RenderThread

	dec       decoder.RenderContext
	registrar compositor.TextureRegistrar
	textureID int64

	resize           renderthread.PendingResize
	fixedW, fixedH   uint32 // render-thread-private sticky cache of the last applied fixed size

	// host-side texture cache: a texture name bound against each slot's
	// shareable image, created lazily in the HOST context (spec §4.4
	// step 5). hostTexGen records the bufferpool.Generation() each name was
	// bound under, so a resize invalidates every cached name.
	hostTex    [bufferpool.N]uint32
	hostTexGen [bufferpool.N]uint64
	dummyTex   uint32
}

// newHWPath attempts the full HW discovery/allocation protocol (spec
// §4.2/§4.3). The caller must invoke this on a thread where the host's GL
// context is current (SnapshotCurrentState requires it).
func newHWPath(dec decoder.RenderContext, registrar compositor.TextureRegistrar, textureID int64) (*hwPath, error) {
	eglCtx, err := egl.NewContext()
	if err != nil {
		return nil, fmt.Errorf("videooutput: egl context discovery failed: %w", err)
	}

	glCtx := &glpkg.Context{}
	if err := glCtx.Load(egl.GetProcAddress); err != nil {
		eglCtx.Destroy()
		return nil, fmt.Errorf("videooutput: loading GL functions failed: %w", err)
	}

	pool := bufferpool.New(glCtx, eglCtx)
	fe := frameexchange.New(pool)
	rt := renderthread.New()

	return &hwPath{
		eglCtx:    eglCtx,
		glCtx:     glCtx,
		pool:      pool,
		fe:        fe,
		rt:        rt,
		dec:       dec,
		registrar: registrar,
		textureID: textureID,
	}, nil
}

// SetFixedSize pushes a new fixed-size override onto the render thread. A
// zero width or height reverts to following the decoder's reported size.
func (h *hwPath) SetFixedSize(w, height int) {
	if w == 0 || height == 0 {
		h.rt.Post(func() { h.fixedW, h.fixedH = 0, 0 })
		return
	}
	h.resize.Request(uint32(w), uint32(height))
}

// renderFrame runs entirely on the render thread: it resolves target
// dimensions, ensures the pool is sized for them, selects a write slot,
// asks the decoder to render into it, and publishes the result.
func (h *hwPath) renderFrame() {
	if w, ht, ok := h.resize.Consume(); ok {
		h.fixedW, h.fixedH = w, ht
	}

	w, ht := h.targetDimensions()
	if w <= 0 || ht <= 0 {
		return
	}

	if err := h.ensureProducerCurrent(); err != nil {
		logger.Printf("videooutput: make_current failed during render: %v", err)
		return
	}

	reallocated, err := h.pool.Ensure(w, ht)
	if err != nil {
		logger.Printf("videooutput: bufferpool.Ensure(%d,%d) failed: %v", w, ht, err)
		return
	}
	if reallocated {
		h.fe.ResetEpoch()
		h.registrar.NotifyDimensionsChanged(h.textureID, w, ht)
	}

	idx := h.fe.PrepareWrite()
	if idx < 0 {
		return
	}

	h.pool.BindWrite(idx)
	err = h.dec.RenderFBO(h.pool.Slot(idx).FBO(), w, ht, false)
	h.pool.Unbind()
	if err != nil {
		// Discard the frame: do not advance producer_seq (spec §7).
		return
	}

	h.fe.PublishWrite(idx)
	h.registrar.NotifyFrameAvailable(h.textureID)
}

func (h *hwPath) targetDimensions() (width, height int) {
	if h.fixedW != 0 && h.fixedH != 0 {
		return int(h.fixedW), int(h.fixedH)
	}
	params, ok := h.dec.VideoOutParams()
	if !ok {
		return 0, 0
	}
	w, ht := params.Width, params.Height
	if params.RotateDegrees == 90 || params.RotateDegrees == 270 {
		w, ht = ht, w
	}
	return w, ht
}

// ensureProducerCurrent activates the producer context on the render
// thread if it is not already current. The render thread is dedicated
// solely to this work, so once made current it stays current; this still
// satisfies spec §9's "save/restore is a hard precondition" discipline in
// spirit, just without redundant activation on every single task.
func (h *hwPath) ensureProducerCurrent() error {
	if egl.GetCurrentContext() == h.eglCtx.EGLContext() {
		return nil
	}
	return h.eglCtx.MakeCurrent()
}

// pollTexture implements the consumer side of spec §4.4 plus the host-side
// texture-cache bind (step 5). Must run on the host UI thread with the
// host's GL context current.
func (h *hwPath) pollTexture() (compositor.Texture, bool) {
	gen := h.pool.Generation()
	if h.pool.Resizing() || !h.pool.Initialized() {
		return h.dummyTexture(), true
	}

	idx, ok := h.fe.Poll()
	if !ok {
		return h.dummyTexture(), true
	}

	w, ht := h.pool.Dimensions()
	name := h.hostTextureFor(idx, gen)
	if name == 0 {
		return h.dummyTexture(), true
	}
	return compositor.Texture{Target: glpkg.Texture2D, Name: name, Width: w, Height: ht}, true
}

func (h *hwPath) hostTextureFor(idx int, gen uint64) uint32 {
	if h.hostTex[idx] != 0 && h.hostTexGen[idx] == gen {
		return h.hostTex[idx]
	}
	if h.hostTex[idx] != 0 {
		h.glCtx.DeleteTextures([]uint32{h.hostTex[idx]})
	}

	textures := h.glCtx.GenTextures(1)
	name := textures[0]
	h.glCtx.BindTexture(glpkg.Texture2D, name)
	image := h.pool.Slot(idx).Image()
	h.glCtx.EGLImageTargetTexture2DOES(glpkg.Texture2D, uintptr(image))

	h.hostTex[idx] = name
	h.hostTexGen[idx] = gen
	return name
}

func (h *hwPath) dummyTexture() compositor.Texture {
	if h.dummyTex == 0 {
		textures := h.glCtx.GenTextures(1)
		h.dummyTex = textures[0]
		h.glCtx.BindTexture(glpkg.Texture2D, h.dummyTex)
		h.glCtx.TexParameteri(glpkg.Texture2D, glpkg.TextureMinFilter, glpkg.Linear)
		h.glCtx.TexParameteri(glpkg.Texture2D, glpkg.TextureMagFilter, glpkg.Linear)
		h.glCtx.TexImage2D(glpkg.Texture2D, 0, glpkg.RGBA, 1, 1, 0, glpkg.RGBA, glpkg.UnsignedByte)
	}
	return compositor.Texture{Target: glpkg.Texture2D, Name: h.dummyTex, Width: 1, Height: 1}
}

// destroy tears down the render thread and every GL/EGL resource it owns.
// freeDecoder is invoked on the render thread with the producer context
// current, after BufferPool.DestroyAll has waited on and deleted every
// slot's fence, so no fence is outstanding when the decoder's render
// context is freed; the caller must already have cleared the decoder's
// update callback.
func (h *hwPath) destroy(freeDecoder func()) {
	h.rt.PostAndWait(func() {
		if err := h.ensureProducerCurrent(); err != nil {
			logger.Printf("videooutput: make_current failed during teardown: %v", err)
		}
		h.pool.DestroyAll()
		freeDecoder()
		if h.dummyTex != 0 {
			h.glCtx.DeleteTextures([]uint32{h.dummyTex})
		}
		h.eglCtx.Destroy()
	})
	h.rt.RequestShutdown()

	for i, name := range h.hostTex {
		if name != 0 {
			h.glCtx.DeleteTextures([]uint32{name})
			h.hostTex[i] = 0
		}
	}
}
