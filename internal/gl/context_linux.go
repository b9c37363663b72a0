// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build linux

// Package gl binds the subset of the GLES2/3 function table the video
// bridge needs: framebuffer/texture management for the BufferPool, and
// the fence-sync and EGL-image-target functions the teacher's upstream
// bindings declared but never wrapped. Adapted from
// github.com/gogpu/wgpu's hal/gles/gl package — same goffi-based
// dynamic-loading approach, trimmed to this bridge's surface and
// extended with sync/image-target entry points.
package gl

import (
	"fmt"
	"unsafe"

	"github.com/go-webgpu/goffi/types"
)

// ProcAddressFunc resolves a GL function name to its address, typically
// egl.GetProcAddress.
type ProcAddressFunc func(name string) uintptr

// Context holds function pointers for every GL entry point this package
// wraps, resolved once via Load. Safe for concurrent use only in the
// sense that the caller must never call two functions concurrently with a
// GL context current on two threads at once — exactly the discipline the
// render thread already provides.
type Context struct {
	glGetError            unsafe.Pointer
	glGetIntegerv          unsafe.Pointer
	glViewport             unsafe.Pointer
	glClearColor           unsafe.Pointer
	glClear                unsafe.Pointer
	glFlush                unsafe.Pointer
	glFinish               unsafe.Pointer
	glGenTextures          unsafe.Pointer
	glDeleteTextures       unsafe.Pointer
	glBindTexture          unsafe.Pointer
	glTexImage2D           unsafe.Pointer
	glTexParameteri        unsafe.Pointer
	glGenFramebuffers      unsafe.Pointer
	glDeleteFramebuffers   unsafe.Pointer
	glBindFramebuffer      unsafe.Pointer
	glFramebufferTexture2D unsafe.Pointer
	glCheckFramebufferStatus unsafe.Pointer
	glFenceSync            unsafe.Pointer
	glClientWaitSync       unsafe.Pointer
	glWaitSync             unsafe.Pointer
	glDeleteSync           unsafe.Pointer
	glEGLImageTargetTexture2DOES unsafe.Pointer

	cifVoid0       types.CallInterface // void f()
	cifVoid1U      types.CallInterface // void f(GLuint)
	cifVoid4I      types.CallInterface // void f(GLint,GLint,GLint,GLint) e.g. Viewport
	cifVoid4F      types.CallInterface // void f(float,float,float,float)
	cifGen         types.CallInterface // void f(GLsizei, GLuint*)
	cifDelete      types.CallInterface // void f(GLsizei, const GLuint*)
	cifBindTex     types.CallInterface // void f(GLenum, GLuint)
	cifTexParam    types.CallInterface // void f(GLenum, GLenum, GLint)
	cifTexImage2D  types.CallInterface // void f(GLenum,GLint,GLint,GLsizei,GLsizei,GLint,GLenum,GLenum,const void*)
	cifFBTex2D     types.CallInterface // void f(GLenum,GLenum,GLenum,GLuint,GLint)
	cifCheckFB     types.CallInterface // GLenum f(GLenum)
	cifGetError    types.CallInterface // GLenum f()
	cifGetIntegerv types.CallInterface // void f(GLenum, GLint*)
	cifFenceSync   types.CallInterface // GLsync f(GLenum, GLbitfield)
	cifClientWait  types.CallInterface // GLenum f(GLsync, GLbitfield, GLuint64)
	cifWaitSync    types.CallInterface // void f(GLsync, GLbitfield, GLuint64)
	cifDeleteSync  types.CallInterface // void f(GLsync)
	cifImageTarget types.CallInterface // void f(GLenum, GLeglImageOES)
}

// GL enum/constant subset this package needs. Values from the GLES2/3
// and fence-sync/EGL-image-target extension headers.
const (
	Texture2D             = 0x0DE1
	RGBA                  = 0x1908
	UnsignedByte          = 0x1401
	TextureMinFilter      = 0x2801
	TextureMagFilter      = 0x2800
	Linear                = 0x2601
	TextureWrapS          = 0x2802
	TextureWrapT          = 0x2803
	ClampToEdge           = 0x812F
	Framebuffer           = 0x8D40
	ColorAttachment0      = 0x8CE0
	FramebufferComplete   = 0x8CD5
	ColorBufferBit        = 0x00004000
	NoError               = 0

	// GL_SYNC_GPU_COMMANDS_COMPLETE / GL_SYNC_FLUSH_COMMANDS_BIT /
	// GL_TIMEOUT_EXPIRED / GL_CONDITION_SATISFIED / GL_ALREADY_SIGNALED /
	// GL_WAIT_FAILED
	SyncGPUCommandsComplete = 0x9117
	SyncFlushCommandsBit    = 0x00000001
	TimeoutExpired          = 0x911B
	ConditionSatisfied      = 0x911C
	AlreadySignaled         = 0x911A
	WaitFailed              = 0x911D
	TimeoutIgnored          = ^uint64(0)
)

// Load resolves every function pointer this Context uses via
// getProcAddr. Returns an error only if a function that has no reasonable
// fallback could not be resolved.
func (c *Context) Load(getProcAddr ProcAddressFunc) error {
	load := func(name string) unsafe.Pointer {
		addr := getProcAddr(name)
		if addr == 0 {
			return nil
		}
		return unsafe.Pointer(addr)
	}

	c.glGetError = load("glGetError")
	c.glGetIntegerv = load("glGetIntegerv")
	c.glViewport = load("glViewport")
	c.glClearColor = load("glClearColor")
	c.glClear = load("glClear")
	c.glFlush = load("glFlush")
	c.glFinish = load("glFinish")
	c.glGenTextures = load("glGenTextures")
	c.glDeleteTextures = load("glDeleteTextures")
	c.glBindTexture = load("glBindTexture")
	c.glTexImage2D = load("glTexImage2D")
	c.glTexParameteri = load("glTexParameteri")
	c.glGenFramebuffers = load("glGenFramebuffers")
	c.glDeleteFramebuffers = load("glDeleteFramebuffers")
	c.glBindFramebuffer = load("glBindFramebuffer")
	c.glFramebufferTexture2D = load("glFramebufferTexture2D")
	c.glCheckFramebufferStatus = load("glCheckFramebufferStatus")
	c.glFenceSync = load("glFenceSync")
	c.glClientWaitSync = load("glClientWaitSync")
	c.glWaitSync = load("glWaitSync")
	c.glDeleteSync = load("glDeleteSync")
	c.glEGLImageTargetTexture2DOES = load("glEGLImageTargetTexture2DOES")

	if c.glGenFramebuffers == nil || c.glFramebufferTexture2D == nil {
		return fmt.Errorf("gl: required framebuffer functions unavailable")
	}
	if c.glEGLImageTargetTexture2DOES == nil {
		return fmt.Errorf("gl: GL_OES_EGL_image (glEGLImageTargetTexture2DOES) unavailable")
	}

	return c.prepareCallInterfaces()
}

func (c *Context) prepareCallInterfaces() error {
	p := types.PointerTypeDescriptor
	u := types.UInt32TypeDescriptor
	f := types.FloatTypeDescriptor
	v := types.VoidTypeDescriptor

	type sig struct {
		cif    *types.CallInterface
		ret    *types.TypeDescriptor
		params []*types.TypeDescriptor
	}

	sigs := []sig{
		{&c.cifVoid0, v, nil},
		{&c.cifVoid1U, v, []*types.TypeDescriptor{u}},
		{&c.cifVoid4I, v, []*types.TypeDescriptor{u, u, u, u}},
		{&c.cifVoid4F, v, []*types.TypeDescriptor{f, f, f, f}},
		{&c.cifGen, v, []*types.TypeDescriptor{u, p}},
		{&c.cifDelete, v, []*types.TypeDescriptor{u, p}},
		{&c.cifBindTex, v, []*types.TypeDescriptor{u, u}},
		{&c.cifTexParam, v, []*types.TypeDescriptor{u, u, u}},
		{&c.cifTexImage2D, v, []*types.TypeDescriptor{u, u, u, u, u, u, u, u, p}},
		{&c.cifFBTex2D, v, []*types.TypeDescriptor{u, u, u, u, u}},
		{&c.cifCheckFB, u, []*types.TypeDescriptor{u}},
		{&c.cifGetError, u, nil},
		{&c.cifGetIntegerv, v, []*types.TypeDescriptor{u, p}},
		{&c.cifFenceSync, p, []*types.TypeDescriptor{u, u}},
		{&c.cifClientWait, u, []*types.TypeDescriptor{p, u, p}},
		{&c.cifWaitSync, v, []*types.TypeDescriptor{p, u, p}},
		{&c.cifDeleteSync, v, []*types.TypeDescriptor{p}},
		{&c.cifImageTarget, v, []*types.TypeDescriptor{u, p}},
	}

	for _, s := range sigs {
		if err := prepareCallInterface(s.cif, s.ret, s.params); err != nil {
			return err
		}
	}
	return nil
}
