// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build linux

package egl

import (
	"fmt"
	"unsafe"

	"github.com/go-webgpu/goffi/ffi"
	"github.com/go-webgpu/goffi/types"
)

var (
	// eglLib is the handle to the loaded libEGL.so library.
	eglLib unsafe.Pointer

	// EGL 1.0+ core function symbols
	symEglGetError             unsafe.Pointer
	symEglGetDisplay           unsafe.Pointer
	symEglInitialize           unsafe.Pointer
	symEglTerminate            unsafe.Pointer
	symEglQueryString          unsafe.Pointer
	symEglChooseConfig         unsafe.Pointer
	symEglGetConfigAttrib      unsafe.Pointer
	symEglCreatePbufferSurface unsafe.Pointer
	symEglDestroySurface       unsafe.Pointer
	symEglBindAPI              unsafe.Pointer
	symEglCreateContext        unsafe.Pointer
	symEglDestroyContext       unsafe.Pointer
	symEglMakeCurrent          unsafe.Pointer
	symEglQueryContext         unsafe.Pointer
	symEglGetCurrentContext    unsafe.Pointer
	symEglGetCurrentDisplay    unsafe.Pointer
	symEglGetCurrentSurface    unsafe.Pointer
	symEglGetProcAddress       unsafe.Pointer
	symEglGetPlatformDisplay   unsafe.Pointer // EGL 1.5, may be nil

	// EGL_KHR_image_base, loaded via eglGetProcAddress since it is an
	// extension, not a core 1.4 entry point.
	symEglCreateImageKHR  unsafe.Pointer
	symEglDestroyImageKHR unsafe.Pointer

	cifEglGetError             types.CallInterface
	cifEglGetDisplay           types.CallInterface
	cifEglInitialize           types.CallInterface
	cifEglTerminate            types.CallInterface
	cifEglQueryString          types.CallInterface
	cifEglChooseConfig         types.CallInterface
	cifEglGetConfigAttrib      types.CallInterface
	cifEglCreatePbufferSurface types.CallInterface
	cifEglDestroySurface       types.CallInterface
	cifEglBindAPI              types.CallInterface
	cifEglCreateContext        types.CallInterface
	cifEglDestroyContext       types.CallInterface
	cifEglMakeCurrent          types.CallInterface
	cifEglQueryContext         types.CallInterface
	cifEglGetCurrentContext    types.CallInterface
	cifEglGetCurrentDisplay    types.CallInterface
	cifEglGetCurrentSurface    types.CallInterface
	cifEglGetProcAddress       types.CallInterface
	cifEglGetPlatformDisplay   types.CallInterface
	cifEglCreateImageKHR       types.CallInterface
	cifEglDestroyImageKHR      types.CallInterface
)

// Init loads the EGL library and initializes function pointers. Safe to
// call more than once; the second and later calls are no-ops.
func Init() error {
	if eglLib != nil {
		return nil
	}

	var err error
	eglLib, err = ffi.LoadLibrary("libEGL.so.1")
	if err != nil {
		eglLib, err = ffi.LoadLibrary("libEGL.so")
		if err != nil {
			return fmt.Errorf("failed to load libEGL.so: %w", err)
		}
	}

	if err := loadEGLSymbols(); err != nil {
		return err
	}
	return prepareEGLCallInterfaces()
}

func loadEGLSymbols() error {
	var err error

	must := func(name string, dst *unsafe.Pointer) error {
		*dst, err = ffi.GetSymbol(eglLib, name)
		if err != nil {
			return fmt.Errorf("%s not found: %w", name, err)
		}
		return nil
	}

	for _, s := range []struct {
		name string
		dst  *unsafe.Pointer
	}{
		{"eglGetError", &symEglGetError},
		{"eglGetDisplay", &symEglGetDisplay},
		{"eglInitialize", &symEglInitialize},
		{"eglTerminate", &symEglTerminate},
		{"eglQueryString", &symEglQueryString},
		{"eglChooseConfig", &symEglChooseConfig},
		{"eglGetConfigAttrib", &symEglGetConfigAttrib},
		{"eglCreatePbufferSurface", &symEglCreatePbufferSurface},
		{"eglDestroySurface", &symEglDestroySurface},
		{"eglBindAPI", &symEglBindAPI},
		{"eglCreateContext", &symEglCreateContext},
		{"eglDestroyContext", &symEglDestroyContext},
		{"eglMakeCurrent", &symEglMakeCurrent},
		{"eglQueryContext", &symEglQueryContext},
		{"eglGetCurrentContext", &symEglGetCurrentContext},
		{"eglGetCurrentDisplay", &symEglGetCurrentDisplay},
		{"eglGetCurrentSurface", &symEglGetCurrentSurface},
		{"eglGetProcAddress", &symEglGetProcAddress},
	} {
		if err := must(s.name, s.dst); err != nil {
			return err
		}
	}

	// EGL 1.5 optional.
	symEglGetPlatformDisplay, _ = ffi.GetSymbol(eglLib, "eglGetPlatformDisplay")

	return nil
}

func prepareEGLCallInterfaces() error {
	type sig struct {
		cif    *types.CallInterface
		name   string
		ret    *types.TypeDescriptor
		params []*types.TypeDescriptor
	}

	p := types.PointerTypeDescriptor
	u := types.UInt32TypeDescriptor

	sigs := []sig{
		{&cifEglGetError, "eglGetError", u, nil},
		{&cifEglGetDisplay, "eglGetDisplay", p, []*types.TypeDescriptor{p}},
		{&cifEglInitialize, "eglInitialize", u, []*types.TypeDescriptor{p, p, p}},
		{&cifEglTerminate, "eglTerminate", u, []*types.TypeDescriptor{p}},
		{&cifEglQueryString, "eglQueryString", p, []*types.TypeDescriptor{p, u}},
		{&cifEglChooseConfig, "eglChooseConfig", u, []*types.TypeDescriptor{p, p, p, u, p}},
		{&cifEglGetConfigAttrib, "eglGetConfigAttrib", u, []*types.TypeDescriptor{p, p, u, p}},
		{&cifEglCreatePbufferSurface, "eglCreatePbufferSurface", p, []*types.TypeDescriptor{p, p, p}},
		{&cifEglDestroySurface, "eglDestroySurface", u, []*types.TypeDescriptor{p, p}},
		{&cifEglBindAPI, "eglBindAPI", u, []*types.TypeDescriptor{u}},
		{&cifEglCreateContext, "eglCreateContext", p, []*types.TypeDescriptor{p, p, p, p}},
		{&cifEglDestroyContext, "eglDestroyContext", u, []*types.TypeDescriptor{p, p}},
		{&cifEglMakeCurrent, "eglMakeCurrent", u, []*types.TypeDescriptor{p, p, p, p}},
		{&cifEglQueryContext, "eglQueryContext", u, []*types.TypeDescriptor{p, p, u, p}},
		{&cifEglGetCurrentContext, "eglGetCurrentContext", p, nil},
		{&cifEglGetCurrentDisplay, "eglGetCurrentDisplay", p, nil},
		{&cifEglGetCurrentSurface, "eglGetCurrentSurface", p, []*types.TypeDescriptor{u}},
		{&cifEglGetProcAddress, "eglGetProcAddress", p, []*types.TypeDescriptor{p}},
	}

	for _, s := range sigs {
		if err := ffi.PrepareCallInterface(s.cif, types.DefaultCall, s.ret, s.params); err != nil {
			return fmt.Errorf("failed to prepare %s: %w", s.name, err)
		}
	}

	if symEglGetPlatformDisplay != nil {
		if err := ffi.PrepareCallInterface(&cifEglGetPlatformDisplay, types.DefaultCall,
			p, []*types.TypeDescriptor{u, p, p}); err != nil {
			return fmt.Errorf("failed to prepare eglGetPlatformDisplay: %w", err)
		}
	}

	return nil
}

// GetError returns the last EGL error.
func GetError() EGLInt {
	var result EGLInt
	_ = ffi.CallFunction(&cifEglGetError, symEglGetError, unsafe.Pointer(&result), nil)
	return result
}

// GetDisplay returns an EGL display connection.
func GetDisplay(displayID EGLNativeDisplayType) EGLDisplay {
	var result EGLDisplay
	args := [1]unsafe.Pointer{unsafe.Pointer(&displayID)}
	_ = ffi.CallFunction(&cifEglGetDisplay, symEglGetDisplay, unsafe.Pointer(&result), args[:])
	return result
}

// GetPlatformDisplay returns an EGL display for a specific platform (EGL
// 1.5), falling back to GetDisplay if the 1.5 entry point is unavailable.
func GetPlatformDisplay(platform EGLEnum, nativeDisplay uintptr, attribList *EGLAttrib) EGLDisplay {
	if symEglGetPlatformDisplay != nil {
		var result EGLDisplay
		args := [3]unsafe.Pointer{
			unsafe.Pointer(&platform),
			unsafe.Pointer(&nativeDisplay),
			unsafe.Pointer(&attribList),
		}
		_ = ffi.CallFunction(&cifEglGetPlatformDisplay, symEglGetPlatformDisplay, unsafe.Pointer(&result), args[:])
		return result
	}
	return GetDisplay(EGLNativeDisplayType(nativeDisplay))
}

// Initialize initializes an EGL display connection.
func Initialize(dpy EGLDisplay, major, minor *EGLInt) EGLBoolean {
	var result EGLBoolean
	args := [3]unsafe.Pointer{unsafe.Pointer(&dpy), unsafe.Pointer(major), unsafe.Pointer(minor)}
	_ = ffi.CallFunction(&cifEglInitialize, symEglInitialize, unsafe.Pointer(&result), args[:])
	return result
}

// Terminate terminates an EGL display connection.
func Terminate(dpy EGLDisplay) EGLBoolean {
	var result EGLBoolean
	args := [1]unsafe.Pointer{unsafe.Pointer(&dpy)}
	_ = ffi.CallFunction(&cifEglTerminate, symEglTerminate, unsafe.Pointer(&result), args[:])
	return result
}

// QueryString returns a string describing properties of the EGL client or
// display. Calling with dpy == NoDisplay queries client extensions.
func QueryString(dpy EGLDisplay, name EGLInt) string {
	var ptr uintptr
	args := [2]unsafe.Pointer{unsafe.Pointer(&dpy), unsafe.Pointer(&name)}
	_ = ffi.CallFunction(&cifEglQueryString, symEglQueryString, unsafe.Pointer(&ptr), args[:])
	return goString(ptr)
}

// ChooseConfig returns EGL frame buffer configurations matching attribList.
func ChooseConfig(dpy EGLDisplay, attribList *EGLInt, configs *EGLConfig, configSize EGLInt, numConfig *EGLInt) EGLBoolean {
	var result EGLBoolean
	args := [5]unsafe.Pointer{
		unsafe.Pointer(&dpy), unsafe.Pointer(attribList), unsafe.Pointer(configs),
		unsafe.Pointer(&configSize), unsafe.Pointer(numConfig),
	}
	_ = ffi.CallFunction(&cifEglChooseConfig, symEglChooseConfig, unsafe.Pointer(&result), args[:])
	return result
}

// GetConfigAttrib returns information about an EGL frame buffer configuration.
func GetConfigAttrib(dpy EGLDisplay, config EGLConfig, attribute EGLInt, value *EGLInt) EGLBoolean {
	var result EGLBoolean
	args := [4]unsafe.Pointer{
		unsafe.Pointer(&dpy), unsafe.Pointer(&config), unsafe.Pointer(&attribute), unsafe.Pointer(value),
	}
	_ = ffi.CallFunction(&cifEglGetConfigAttrib, symEglGetConfigAttrib, unsafe.Pointer(&result), args[:])
	return result
}

// CreatePbufferSurface creates a new EGL pixel buffer surface.
func CreatePbufferSurface(dpy EGLDisplay, config EGLConfig, attribList *EGLInt) EGLSurface {
	var result EGLSurface
	args := [3]unsafe.Pointer{unsafe.Pointer(&dpy), unsafe.Pointer(&config), unsafe.Pointer(attribList)}
	_ = ffi.CallFunction(&cifEglCreatePbufferSurface, symEglCreatePbufferSurface, unsafe.Pointer(&result), args[:])
	return result
}

// DestroySurface destroys an EGL surface.
func DestroySurface(dpy EGLDisplay, surface EGLSurface) EGLBoolean {
	var result EGLBoolean
	args := [2]unsafe.Pointer{unsafe.Pointer(&dpy), unsafe.Pointer(&surface)}
	_ = ffi.CallFunction(&cifEglDestroySurface, symEglDestroySurface, unsafe.Pointer(&result), args[:])
	return result
}

// BindAPI sets the current rendering API (OpenGLESAPI for this bridge).
func BindAPI(api EGLEnum) EGLBoolean {
	var result EGLBoolean
	args := [1]unsafe.Pointer{unsafe.Pointer(&api)}
	_ = ffi.CallFunction(&cifEglBindAPI, symEglBindAPI, unsafe.Pointer(&result), args[:])
	return result
}

// CreateContext creates a new EGL rendering context, optionally sharing
// objects with shareContext.
func CreateContext(dpy EGLDisplay, config EGLConfig, shareContext EGLContext, attribList *EGLInt) EGLContext {
	var result EGLContext
	args := [4]unsafe.Pointer{
		unsafe.Pointer(&dpy), unsafe.Pointer(&config), unsafe.Pointer(&shareContext), unsafe.Pointer(attribList),
	}
	_ = ffi.CallFunction(&cifEglCreateContext, symEglCreateContext, unsafe.Pointer(&result), args[:])
	return result
}

// DestroyContext destroys an EGL rendering context.
func DestroyContext(dpy EGLDisplay, ctx EGLContext) EGLBoolean {
	var result EGLBoolean
	args := [2]unsafe.Pointer{unsafe.Pointer(&dpy), unsafe.Pointer(&ctx)}
	_ = ffi.CallFunction(&cifEglDestroyContext, symEglDestroyContext, unsafe.Pointer(&result), args[:])
	return result
}

// MakeCurrent binds ctx to the calling thread with draw/read surfaces.
func MakeCurrent(dpy EGLDisplay, draw, read EGLSurface, ctx EGLContext) EGLBoolean {
	var result EGLBoolean
	args := [4]unsafe.Pointer{
		unsafe.Pointer(&dpy), unsafe.Pointer(&draw), unsafe.Pointer(&read), unsafe.Pointer(&ctx),
	}
	_ = ffi.CallFunction(&cifEglMakeCurrent, symEglMakeCurrent, unsafe.Pointer(&result), args[:])
	return result
}

// QueryContext returns an attribute of ctx, e.g. ConfigID or ContextClientVersion.
func QueryContext(dpy EGLDisplay, ctx EGLContext, attribute EGLInt, value *EGLInt) EGLBoolean {
	var result EGLBoolean
	args := [4]unsafe.Pointer{
		unsafe.Pointer(&dpy), unsafe.Pointer(&ctx), unsafe.Pointer(&attribute), unsafe.Pointer(value),
	}
	_ = ffi.CallFunction(&cifEglQueryContext, symEglQueryContext, unsafe.Pointer(&result), args[:])
	return result
}

// GetCurrentContext returns the EGL context current on the calling thread.
func GetCurrentContext() EGLContext {
	var result EGLContext
	_ = ffi.CallFunction(&cifEglGetCurrentContext, symEglGetCurrentContext, unsafe.Pointer(&result), nil)
	return result
}

// GetCurrentDisplay returns the EGL display current on the calling thread.
func GetCurrentDisplay() EGLDisplay {
	var result EGLDisplay
	_ = ffi.CallFunction(&cifEglGetCurrentDisplay, symEglGetCurrentDisplay, unsafe.Pointer(&result), nil)
	return result
}

// GetCurrentSurface returns the draw (readdraw=EGL_DRAW, 0x3059) or read
// (EGL_READ, 0x305A) surface current on the calling thread.
func GetCurrentSurface(readdraw EGLInt) EGLSurface {
	var result EGLSurface
	args := [1]unsafe.Pointer{unsafe.Pointer(&readdraw)}
	_ = ffi.CallFunction(&cifEglGetCurrentSurface, symEglGetCurrentSurface, unsafe.Pointer(&result), args[:])
	return result
}

const (
	// EGLDraw and EGLRead select which current surface GetCurrentSurface reports.
	EGLDraw EGLInt = 0x3059
	EGLRead EGLInt = 0x305A
)

// GetProcAddress returns the address of an EGL or client API (extension)
// function. Suitable for use as a goffi-style ProcAddressFunc.
func GetProcAddress(procname string) uintptr {
	cname := append([]byte(procname), 0)
	var result uintptr
	args := [1]unsafe.Pointer{unsafe.Pointer(&cname[0])}
	_ = ffi.CallFunction(&cifEglGetProcAddress, symEglGetProcAddress, unsafe.Pointer(&result), args[:])
	return result
}

// CreateImageKHR creates a shareable EGLImage from a GL texture in ctx.
// Resolved lazily via eglGetProcAddress, since EGL_KHR_image_base is an
// extension rather than a core 1.4 entry point.
func CreateImageKHR(dpy EGLDisplay, ctx EGLContext, target EGLEnum, buffer EGLClientBuffer, attribList *EGLInt) (EGLImage, error) {
	if symEglCreateImageKHR == nil {
		addr := GetProcAddress("eglCreateImageKHR")
		if addr == 0 {
			return NoImage, fmt.Errorf("eglCreateImageKHR not available")
		}
		symEglCreateImageKHR = unsafe.Pointer(addr)
		if err := ffi.PrepareCallInterface(&cifEglCreateImageKHR, types.DefaultCall,
			types.PointerTypeDescriptor,
			[]*types.TypeDescriptor{
				types.PointerTypeDescriptor, // dpy
				types.PointerTypeDescriptor, // ctx
				types.UInt32TypeDescriptor,  // target
				types.PointerTypeDescriptor, // buffer
				types.PointerTypeDescriptor, // attrib_list
			}); err != nil {
			return NoImage, fmt.Errorf("failed to prepare eglCreateImageKHR: %w", err)
		}
	}

	var result EGLImage
	args := [5]unsafe.Pointer{
		unsafe.Pointer(&dpy), unsafe.Pointer(&ctx), unsafe.Pointer(&target),
		unsafe.Pointer(&buffer), unsafe.Pointer(attribList),
	}
	_ = ffi.CallFunction(&cifEglCreateImageKHR, symEglCreateImageKHR, unsafe.Pointer(&result), args[:])
	if result == NoImage {
		return NoImage, fmt.Errorf("eglCreateImageKHR failed: egl error 0x%x", GetError())
	}
	return result, nil
}

// DestroyImageKHR destroys a shareable image created by CreateImageKHR.
func DestroyImageKHR(dpy EGLDisplay, image EGLImage) error {
	if symEglDestroyImageKHR == nil {
		addr := GetProcAddress("eglDestroyImageKHR")
		if addr == 0 {
			return fmt.Errorf("eglDestroyImageKHR not available")
		}
		symEglDestroyImageKHR = unsafe.Pointer(addr)
		if err := ffi.PrepareCallInterface(&cifEglDestroyImageKHR, types.DefaultCall,
			types.UInt32TypeDescriptor,
			[]*types.TypeDescriptor{types.PointerTypeDescriptor, types.PointerTypeDescriptor}); err != nil {
			return fmt.Errorf("failed to prepare eglDestroyImageKHR: %w", err)
		}
	}

	var result EGLBoolean
	args := [2]unsafe.Pointer{unsafe.Pointer(&dpy), unsafe.Pointer(&image)}
	_ = ffi.CallFunction(&cifEglDestroyImageKHR, symEglDestroyImageKHR, unsafe.Pointer(&result), args[:])
	if result == False {
		return fmt.Errorf("eglDestroyImageKHR failed: egl error 0x%x", GetError())
	}
	return nil
}

// goString converts a null-terminated C string pointer to a Go string.
func goString(cstr uintptr) string {
	if cstr == 0 {
		return ""
	}
	length := 0
	//nolint:govet // converting a C string address to unsafe.Pointer is required for FFI
	ptr := (*byte)(unsafe.Pointer(cstr))
	for i := 0; i < 4096; i++ {
		b := unsafe.Slice(ptr, i+1)
		if b[i] == 0 {
			length = i
			break
		}
	}
	if length == 0 {
		return ""
	}
	return string(unsafe.Slice(ptr, length))
}
