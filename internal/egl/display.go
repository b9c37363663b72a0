// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build linux

package egl

import (
	"os"
	"strings"
	"unsafe"

	"github.com/go-webgpu/goffi/ffi"
	"github.com/go-webgpu/goffi/types"
)

var (
	x11Lib           unsafe.Pointer
	waylandClientLib unsafe.Pointer

	symXOpenDisplay  unsafe.Pointer
	symXCloseDisplay unsafe.Pointer

	symWlDisplayConnect    unsafe.Pointer
	symWlDisplayDisconnect unsafe.Pointer

	cifXOpenDisplay        types.CallInterface
	cifXCloseDisplay       types.CallInterface
	cifWlDisplayConnect    types.CallInterface
	cifWlDisplayDisconnect types.CallInterface
)

// DisplayOwner manages the lifetime of a native display connection, opened
// either to probe whether X11/Wayland is available or, for X11, to hand a
// live handle to the decoder as its optional X11_DISPLAY VA-API hint
// (spec §6). The producer GLContext itself never opens its own native
// display — it shares the host's.
type DisplayOwner struct {
	kind    WindowKind
	display uintptr
}

// OpenX11Display opens an X11 display connection. Returns nil if X11
// libraries are unavailable or no display can be opened.
func OpenX11Display() *DisplayOwner {
	var err error

	x11Lib, err = ffi.LoadLibrary("libX11.so.6")
	if err != nil {
		x11Lib, err = ffi.LoadLibrary("libX11.so")
		if err != nil {
			return nil
		}
	}

	if symXOpenDisplay, err = ffi.GetSymbol(x11Lib, "XOpenDisplay"); err != nil {
		return nil
	}
	if symXCloseDisplay, err = ffi.GetSymbol(x11Lib, "XCloseDisplay"); err != nil {
		return nil
	}

	if err = ffi.PrepareCallInterface(&cifXOpenDisplay, types.DefaultCall,
		types.PointerTypeDescriptor, []*types.TypeDescriptor{types.PointerTypeDescriptor}); err != nil {
		return nil
	}
	if err = ffi.PrepareCallInterface(&cifXCloseDisplay, types.DefaultCall,
		types.UInt32TypeDescriptor, []*types.TypeDescriptor{types.PointerTypeDescriptor}); err != nil {
		return nil
	}

	var display uintptr
	var displayName uintptr
	args := [1]unsafe.Pointer{unsafe.Pointer(&displayName)}
	_ = ffi.CallFunction(&cifXOpenDisplay, symXOpenDisplay, unsafe.Pointer(&display), args[:])
	if display == 0 {
		return nil
	}

	return &DisplayOwner{kind: WindowKindX11, display: display}
}

// TestWaylandDisplay tests whether a Wayland compositor is reachable,
// connecting and immediately disconnecting.
func TestWaylandDisplay() *DisplayOwner {
	var err error

	waylandClientLib, err = ffi.LoadLibrary("libwayland-client.so.0")
	if err != nil {
		waylandClientLib, err = ffi.LoadLibrary("libwayland-client.so")
		if err != nil {
			return nil
		}
	}

	if symWlDisplayConnect, err = ffi.GetSymbol(waylandClientLib, "wl_display_connect"); err != nil {
		return nil
	}
	if symWlDisplayDisconnect, err = ffi.GetSymbol(waylandClientLib, "wl_display_disconnect"); err != nil {
		return nil
	}

	if err = ffi.PrepareCallInterface(&cifWlDisplayConnect, types.DefaultCall,
		types.PointerTypeDescriptor, []*types.TypeDescriptor{types.PointerTypeDescriptor}); err != nil {
		return nil
	}
	if err = ffi.PrepareCallInterface(&cifWlDisplayDisconnect, types.DefaultCall,
		types.VoidTypeDescriptor, []*types.TypeDescriptor{types.PointerTypeDescriptor}); err != nil {
		return nil
	}

	var display uintptr
	var displayName uintptr
	args := [1]unsafe.Pointer{unsafe.Pointer(&displayName)}
	_ = ffi.CallFunction(&cifWlDisplayConnect, symWlDisplayConnect, unsafe.Pointer(&display), args[:])
	if display == 0 {
		return nil
	}

	argsDisconnect := [1]unsafe.Pointer{unsafe.Pointer(&display)}
	_ = ffi.CallFunction(&cifWlDisplayDisconnect, symWlDisplayDisconnect, nil, argsDisconnect[:])

	return &DisplayOwner{kind: WindowKindWayland, display: 0}
}

// QueryClientExtensions returns EGL client extensions, available without a
// display. Must be called with EGL_NO_DISPLAY.
func QueryClientExtensions() string {
	return QueryString(NoDisplay, Extensions)
}

// HasSurfacelessSupport reports whether EGL_MESA_platform_surfaceless is
// advertised as a client extension.
func HasSurfacelessSupport() bool {
	return strings.Contains(QueryClientExtensions(), "EGL_MESA_platform_surfaceless")
}

// DetectWindowKind detects the windowing system available in this process,
// for populating the decoder's optional VA-API display hint. Priority:
//  1. No DISPLAY/WAYLAND_DISPLAY and surfaceless available -> headless CI.
//  2. Wayland, if WAYLAND_DISPLAY is set and connects.
//  3. X11, if DISPLAY is set and opens.
//  4. Surfaceless, as the final fallback.
func DetectWindowKind() WindowKind {
	displayEnv := os.Getenv("DISPLAY")
	waylandEnv := os.Getenv("WAYLAND_DISPLAY")

	if displayEnv == "" && waylandEnv == "" && HasSurfacelessSupport() {
		return WindowKindSurfaceless
	}

	if waylandEnv != "" {
		if owner := TestWaylandDisplay(); owner != nil {
			owner.Close()
			return WindowKindWayland
		}
	}

	if displayEnv != "" {
		if owner := OpenX11Display(); owner != nil {
			owner.Close()
			return WindowKindX11
		}
	}

	return WindowKindSurfaceless
}

// Kind returns the window system type.
func (d *DisplayOwner) Kind() WindowKind { return d.kind }

// Display returns the native display pointer.
func (d *DisplayOwner) Display() uintptr { return d.display }

// Close closes the native display connection, if any.
func (d *DisplayOwner) Close() {
	if d.display == 0 {
		return
	}
	if d.kind == WindowKindX11 && symXCloseDisplay != nil {
		var result int32
		displayPtr := d.display
		args := [1]unsafe.Pointer{unsafe.Pointer(&displayPtr)}
		_ = ffi.CallFunction(&cifXCloseDisplay, symXCloseDisplay, unsafe.Pointer(&result), args[:])
	}
	d.display = 0
}
