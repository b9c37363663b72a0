// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build linux

package gl

import (
	"fmt"
	"unsafe"

	"github.com/go-webgpu/goffi/ffi"
	"github.com/go-webgpu/goffi/types"
)

func prepareCallInterface(cif *types.CallInterface, ret *types.TypeDescriptor, params []*types.TypeDescriptor) error {
	if err := ffi.PrepareCallInterface(cif, types.DefaultCall, ret, params); err != nil {
		return fmt.Errorf("gl: failed to prepare call interface: %w", err)
	}
	return nil
}

// Sync is an opaque GLsync fence object handle, as returned by FenceSync.
type Sync uintptr

// GetError returns and clears the current GL error code.
func (c *Context) GetError() uint32 {
	var result uint32
	_ = ffi.CallFunction(&c.cifGetError, c.glGetError, unsafe.Pointer(&result), nil)
	return result
}

// GetIntegerv retrieves an integer GL state value, e.g. a bound object name.
func (c *Context) GetIntegerv(pname uint32, data *int32) {
	args := [2]unsafe.Pointer{unsafe.Pointer(&pname), unsafe.Pointer(data)}
	_ = ffi.CallFunction(&c.cifGetIntegerv, c.glGetIntegerv, nil, args[:])
}

// Viewport sets the viewport rectangle.
func (c *Context) Viewport(x, y, width, height int32) {
	args := [4]unsafe.Pointer{unsafe.Pointer(&x), unsafe.Pointer(&y), unsafe.Pointer(&width), unsafe.Pointer(&height)}
	_ = ffi.CallFunction(&c.cifVoid4I, c.glViewport, nil, args[:])
}

// ClearColor sets the color used by Clear.
func (c *Context) ClearColor(r, g, b, a float32) {
	args := [4]unsafe.Pointer{unsafe.Pointer(&r), unsafe.Pointer(&g), unsafe.Pointer(&b), unsafe.Pointer(&a)}
	_ = ffi.CallFunction(&c.cifVoid4F, c.glClearColor, nil, args[:])
}

// Clear clears the buffers selected by mask.
func (c *Context) Clear(mask uint32) {
	args := [1]unsafe.Pointer{unsafe.Pointer(&mask)}
	_ = ffi.CallFunction(&c.cifVoid1U, c.glClear, nil, args[:])
}

// Flush flushes the command stream.
func (c *Context) Flush() {
	_ = ffi.CallFunction(&c.cifVoid0, c.glFlush, nil, nil)
}

// Finish blocks until all submitted commands complete.
func (c *Context) Finish() {
	_ = ffi.CallFunction(&c.cifVoid0, c.glFinish, nil, nil)
}

// GenTextures allocates n texture names.
func (c *Context) GenTextures(n int32) []uint32 {
	names := make([]uint32, n)
	args := [2]unsafe.Pointer{unsafe.Pointer(&n), unsafe.Pointer(&names[0])}
	_ = ffi.CallFunction(&c.cifGen, c.glGenTextures, nil, args[:])
	return names
}

// DeleteTextures frees texture names.
func (c *Context) DeleteTextures(names []uint32) {
	if len(names) == 0 {
		return
	}
	n := int32(len(names))
	args := [2]unsafe.Pointer{unsafe.Pointer(&n), unsafe.Pointer(&names[0])}
	_ = ffi.CallFunction(&c.cifDelete, c.glDeleteTextures, nil, args[:])
}

// BindTexture binds texture to target.
func (c *Context) BindTexture(target, texture uint32) {
	args := [2]unsafe.Pointer{unsafe.Pointer(&target), unsafe.Pointer(&texture)}
	_ = ffi.CallFunction(&c.cifBindTex, c.glBindTexture, nil, args[:])
}

// TexImage2D allocates storage for the currently bound 2D texture.
func (c *Context) TexImage2D(target uint32, level, internalFormat int32, width, height int32, border int32, format, glType uint32) {
	args := [9]unsafe.Pointer{
		unsafe.Pointer(&target), unsafe.Pointer(&level), unsafe.Pointer(&internalFormat),
		unsafe.Pointer(&width), unsafe.Pointer(&height), unsafe.Pointer(&border),
		unsafe.Pointer(&format), unsafe.Pointer(&glType), nil,
	}
	_ = ffi.CallFunction(&c.cifTexImage2D, c.glTexImage2D, nil, args[:])
}

// TexParameteri sets an integer texture parameter.
func (c *Context) TexParameteri(target, pname uint32, param int32) {
	args := [3]unsafe.Pointer{unsafe.Pointer(&target), unsafe.Pointer(&pname), unsafe.Pointer(&param)}
	_ = ffi.CallFunction(&c.cifTexParam, c.glTexParameteri, nil, args[:])
}

// GenFramebuffers allocates n framebuffer object names.
func (c *Context) GenFramebuffers(n int32) []uint32 {
	names := make([]uint32, n)
	args := [2]unsafe.Pointer{unsafe.Pointer(&n), unsafe.Pointer(&names[0])}
	_ = ffi.CallFunction(&c.cifGen, c.glGenFramebuffers, nil, args[:])
	return names
}

// DeleteFramebuffers frees framebuffer object names.
func (c *Context) DeleteFramebuffers(names []uint32) {
	if len(names) == 0 {
		return
	}
	n := int32(len(names))
	args := [2]unsafe.Pointer{unsafe.Pointer(&n), unsafe.Pointer(&names[0])}
	_ = ffi.CallFunction(&c.cifDelete, c.glDeleteFramebuffers, nil, args[:])
}

// BindFramebuffer binds a framebuffer object as the current target.
func (c *Context) BindFramebuffer(target, framebuffer uint32) {
	args := [2]unsafe.Pointer{unsafe.Pointer(&target), unsafe.Pointer(&framebuffer)}
	_ = ffi.CallFunction(&c.cifBindTex, c.glBindFramebuffer, nil, args[:])
}

// FramebufferTexture2D attaches a texture image to the bound framebuffer.
func (c *Context) FramebufferTexture2D(target, attachment, texTarget, texture uint32, level int32) {
	args := [5]unsafe.Pointer{
		unsafe.Pointer(&target), unsafe.Pointer(&attachment), unsafe.Pointer(&texTarget),
		unsafe.Pointer(&texture), unsafe.Pointer(&level),
	}
	_ = ffi.CallFunction(&c.cifFBTex2D, c.glFramebufferTexture2D, nil, args[:])
}

// CheckFramebufferStatus returns the completeness status of the bound framebuffer.
func (c *Context) CheckFramebufferStatus(target uint32) uint32 {
	var result uint32
	args := [1]unsafe.Pointer{unsafe.Pointer(&target)}
	_ = ffi.CallFunction(&c.cifCheckFB, c.glCheckFramebufferStatus, unsafe.Pointer(&result), args[:])
	return result
}

// FenceSync inserts a fence into the GL command stream and returns a
// handle that ClientWaitSync/WaitSync can later wait on. The producer
// must call this only after Flush, per spec §3 invariant 4.
func (c *Context) FenceSync() (Sync, error) {
	if c.glFenceSync == nil {
		return 0, fmt.Errorf("gl: glFenceSync unavailable")
	}
	condition := uint32(SyncGPUCommandsComplete)
	var flags uint32
	var result uintptr
	args := [2]unsafe.Pointer{unsafe.Pointer(&condition), unsafe.Pointer(&flags)}
	_ = ffi.CallFunction(&c.cifFenceSync, c.glFenceSync, unsafe.Pointer(&result), args[:])
	if result == 0 {
		return 0, fmt.Errorf("gl: glFenceSync failed (error 0x%x)", c.GetError())
	}
	return Sync(result), nil
}

// ClientWaitSync waits, from the calling thread, for sync to signal, up
// to timeoutNS nanoseconds (TimeoutIgnored to wait forever). Returns true
// if the fence is signaled (either immediately or after waiting), false on
// timeout.
func (c *Context) ClientWaitSync(sync Sync, timeoutNS uint64) bool {
	flags := uint32(SyncFlushCommandsBit)
	var result uint32
	args := [3]unsafe.Pointer{unsafe.Pointer(&sync), unsafe.Pointer(&flags), unsafe.Pointer(&timeoutNS)}
	_ = ffi.CallFunction(&c.cifClientWait, c.glClientWaitSync, unsafe.Pointer(&result), args[:])
	return result == ConditionSatisfied || result == AlreadySignaled
}

// WaitSync makes the GL server wait (without blocking the CPU) until sync
// signals before executing subsequently-issued commands.
func (c *Context) WaitSync(sync Sync) {
	var flags uint32
	timeout := TimeoutIgnored
	args := [3]unsafe.Pointer{unsafe.Pointer(&sync), unsafe.Pointer(&flags), unsafe.Pointer(&timeout)}
	_ = ffi.CallFunction(&c.cifWaitSync, c.glWaitSync, nil, args[:])
}

// DeleteSync destroys a fence sync object.
func (c *Context) DeleteSync(sync Sync) {
	if sync == 0 {
		return
	}
	args := [1]unsafe.Pointer{unsafe.Pointer(&sync)}
	_ = ffi.CallFunction(&c.cifDeleteSync, c.glDeleteSync, nil, args[:])
}

// EGLImageTargetTexture2DOES binds image as the content of the texture
// currently bound to target (GL_OES_EGL_image). This is how the consumer
// side attaches the BufferPool's shareable image to a host-context texture
// name (spec §4.4 step 5).
func (c *Context) EGLImageTargetTexture2DOES(target uint32, image uintptr) {
	args := [2]unsafe.Pointer{unsafe.Pointer(&target), unsafe.Pointer(&image)}
	_ = ffi.CallFunction(&c.cifImageTarget, c.glEGLImageTargetTexture2DOES, nil, args[:])
}
