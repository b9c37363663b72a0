// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build linux

package bufferpool

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Predidit/media-kit/internal/egl"
	"github.com/Predidit/media-kit/internal/gl"
)

// BufferPool owns the N fixed slots and their common allocation size. All
// mutating operations (Ensure, DestroyAll) must run on the producer's
// render thread, per spec §4.3.
type BufferPool struct {
	glCtx  *gl.Context
	eglCtx *egl.Context

	slots [N]Slot

	resizeMu    sync.Mutex // guards width, height, initialized
	width       int
	height      int
	initialized bool

	resizing atomic.Bool // lock-free: observed by the consumer without the mutex

	generation atomic.Uint64 // bumped on every successful reallocation, for host-side texture-cache invalidation
}

// New creates an empty, unallocated pool. Call Ensure before using it.
func New(glCtx *gl.Context, eglCtx *egl.Context) *BufferPool {
	return &BufferPool{glCtx: glCtx, eglCtx: eglCtx}
}

// Dimensions returns the pool's current common allocation size.
func (p *BufferPool) Dimensions() (width, height int) {
	p.resizeMu.Lock()
	defer p.resizeMu.Unlock()
	return p.width, p.height
}

// Initialized reports whether every slot's FBO is currently valid.
func (p *BufferPool) Initialized() bool {
	p.resizeMu.Lock()
	defer p.resizeMu.Unlock()
	return p.initialized
}

// Generation returns a counter bumped on every successful reallocation.
// The host-side texture cache uses this to invalidate bound textures
// after a resize (spec §4.4 step 5: "invalidate cache entries on resize").
func (p *BufferPool) Generation() uint64 { return p.generation.Load() }

// Resizing reports whether a resize is in progress. Lock-free: the
// consumer polls this without taking resizeMu (spec §5: "resizing is
// atomic for lock-free observation by the consumer").
func (p *BufferPool) Resizing() bool {
	return p.resizing.Load()
}

// Slot returns a pointer to slot i for direct inspection (fence polling,
// sequence reads). Valid for i in [0, N).
func (p *BufferPool) Slot(i int) *Slot { return &p.slots[i] }

// Ensure reallocates the pool at (w, h) if needed. A no-op if the pool is
// already initialized at that exact size (spec §8 round-trip property:
// "repeated ensure(w,h) with unchanged (w,h) is a no-op"). Must be called
// on the render thread with the producer context current. reallocated
// reports whether a reallocation actually happened; the caller must gate
// FrameExchange.ResetEpoch on this, since resetting the epoch on every
// steady-state frame breaks display protection and the monotonic
// sequence invariant (spec §3 invariants 1 and 3).
func (p *BufferPool) Ensure(w, h int) (reallocated bool, err error) {
	p.resizeMu.Lock()
	same := p.initialized && p.width == w && p.height == h
	p.resizeMu.Unlock()
	if same {
		return false, nil
	}

	p.resizing.Store(true)
	defer p.resizing.Store(false)

	p.resizeMu.Lock()
	defer p.resizeMu.Unlock()

	for i := range p.slots {
		p.destroySlotResources(&p.slots[i])
	}
	p.initialized = false

	for i := range p.slots {
		if err := p.allocateSlot(&p.slots[i], w, h); err != nil {
			// Leave remaining slots zeroed; initialized stays false so the
			// consumer keeps returning the placeholder.
			return false, fmt.Errorf("bufferpool: allocating slot %d at %dx%d: %w", i, w, h, err)
		}
	}

	p.glCtx.Flush()

	for i := range p.slots {
		p.slots[i].seq.Store(0)
	}

	p.width, p.height = w, h
	p.initialized = true
	p.generation.Add(1)
	return true, nil
}

func (p *BufferPool) allocateSlot(s *Slot, w, h int) error {
	textures := p.glCtx.GenTextures(1)
	texture := textures[0]
	p.glCtx.BindTexture(gl.Texture2D, texture)
	p.glCtx.TexParameteri(gl.Texture2D, gl.TextureMinFilter, gl.Linear)
	p.glCtx.TexParameteri(gl.Texture2D, gl.TextureMagFilter, gl.Linear)
	p.glCtx.TexParameteri(gl.Texture2D, gl.TextureWrapS, gl.ClampToEdge)
	p.glCtx.TexParameteri(gl.Texture2D, gl.TextureWrapT, gl.ClampToEdge)
	p.glCtx.TexImage2D(gl.Texture2D, 0, gl.RGBA, int32(w), int32(h), 0, gl.RGBA, gl.UnsignedByte)

	fbos := p.glCtx.GenFramebuffers(1)
	fbo := fbos[0]
	p.glCtx.BindFramebuffer(gl.Framebuffer, fbo)
	p.glCtx.FramebufferTexture2D(gl.Framebuffer, gl.ColorAttachment0, gl.Texture2D, texture, 0)
	if status := p.glCtx.CheckFramebufferStatus(gl.Framebuffer); status != gl.FramebufferComplete {
		p.glCtx.DeleteFramebuffers([]uint32{fbo})
		p.glCtx.DeleteTextures([]uint32{texture})
		return fmt.Errorf("framebuffer incomplete: status 0x%x", status)
	}

	image, err := egl.CreateImageKHR(p.eglCtx.Display(), p.eglCtx.EGLContext(), egl.ImageGLTexture2DKHR,
		egl.EGLClientBuffer(texture), nil)
	if err != nil {
		p.glCtx.DeleteFramebuffers([]uint32{fbo})
		p.glCtx.DeleteTextures([]uint32{texture})
		return err
	}

	s.fbo = fbo
	s.texture = texture
	s.image = image
	return nil
}

// destroySlotResources waits out any live fence (forever, with a flush —
// spec §4.3 step 2) before freeing a slot's image, texture, and FBO.
func (p *BufferPool) destroySlotResources(s *Slot) {
	if s.fence != 0 {
		p.glCtx.Flush()
		p.glCtx.ClientWaitSync(s.fence, gl.TimeoutIgnored)
		p.glCtx.DeleteSync(s.fence)
	}
	if s.image != egl.NoImage {
		_ = egl.DestroyImageKHR(p.eglCtx.Display(), s.image)
	}
	if s.texture != 0 {
		p.glCtx.DeleteTextures([]uint32{s.texture})
	}
	if s.fbo != 0 {
		p.glCtx.DeleteFramebuffers([]uint32{s.fbo})
	}
	s.reset()
}

// BindWrite binds slot i's FBO as the current draw framebuffer, ready for
// the decoder to render into.
func (p *BufferPool) BindWrite(i int) {
	p.glCtx.BindFramebuffer(gl.Framebuffer, p.slots[i].fbo)
}

// Unbind restores the default framebuffer binding (name 0).
func (p *BufferPool) Unbind() {
	p.glCtx.BindFramebuffer(gl.Framebuffer, 0)
}

// DestroyFence destroys slot i's outstanding fence, if any. The producer
// calls this before overwriting a slot (spec §4.4 step 2); the consumer
// calls this after a successful non-blocking wait (spec §4.4 step 2,
// consumer side).
func (p *BufferPool) DestroyFence(i int) {
	s := &p.slots[i]
	if s.fence != 0 {
		if p.glCtx != nil {
			p.glCtx.DeleteSync(s.fence)
		}
		s.fence = 0
	}
}

// PublishFence flushes the command stream and inserts a new fence on slot
// i, recording it for later client-waits. Spec §4.3 invariant 4: the fence
// is created only after a Flush. A pool without a GL context (NewStub)
// records no fence, so the slot reads as always-ready.
func (p *BufferPool) PublishFence(i int) error {
	if p.glCtx == nil {
		p.slots[i].fence = 0
		return nil
	}
	p.glCtx.Flush()
	sync, err := p.glCtx.FenceSync()
	if err != nil {
		// Fence creation failure: treat the slot as always-ready (spec
		// §7). Leaving fence at zero means ClientWaitNonBlocking below
		// reports "ready" unconditionally.
		p.slots[i].fence = 0
		return err
	}
	p.slots[i].fence = sync
	return nil
}

// ClientWaitNonBlocking performs a zero-timeout client wait on slot i's
// fence (spec §4.4 consumer step 2). A slot with no outstanding fence is
// always ready. Returns true if the slot may be sampled.
func (p *BufferPool) ClientWaitNonBlocking(i int) bool {
	s := &p.slots[i]
	if s.fence == 0 {
		return true
	}
	if p.glCtx == nil {
		return false
	}
	return p.glCtx.ClientWaitSync(s.fence, 0)
}

// DestroyAll tears every slot down: waits on every outstanding fence, then
// destroys images, textures, and FBOs. Must run on the render thread with
// the producer context current, during shutdown (spec §3 Lifecycle).
func (p *BufferPool) DestroyAll() {
	p.resizeMu.Lock()
	defer p.resizeMu.Unlock()

	for i := range p.slots {
		p.destroySlotResources(&p.slots[i])
	}
	p.initialized = false
	p.width, p.height = 0, 0
}
