// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build linux

package egl

import (
	"fmt"
	"strings"
)

// HostState is a snapshot of what is current on a thread: display, context,
// and draw/read surfaces. NewContext snapshots the host's state once at
// init time to discover what to share with, and restores it after the
// probe activation. Render-thread tasks do not snapshot or restore it:
// the producer context is made current on the render thread and stays
// current there.
type HostState struct {
	Display EGLDisplay
	Context EGLContext
	Draw    EGLSurface
	Read    EGLSurface
}

// SnapshotCurrentState captures whatever is current on the calling thread.
func SnapshotCurrentState() HostState {
	return HostState{
		Display: GetCurrentDisplay(),
		Context: GetCurrentContext(),
		Draw:    GetCurrentSurface(EGLDraw),
		Read:    GetCurrentSurface(EGLRead),
	}
}

// MakeCurrent restores a previously snapshotted state on the calling thread.
func (s HostState) MakeCurrent() error {
	if MakeCurrent(s.Display, s.Draw, s.Read, s.Context) == False {
		return fmt.Errorf("eglMakeCurrent(restore) failed: egl error 0x%x", GetError())
	}
	return nil
}

// Context is the producer EGL context: created sharing objects with the
// host's context, so that textures, images, and sync objects created here
// are visible to the host's context without a copy.
type Context struct {
	host HostState // the host state snapshotted at creation time

	display EGLDisplay
	config  EGLConfig
	context EGLContext
	pbuffer EGLSurface // NoSurface when running surfaceless
	kind    WindowKind

	// usesHostDrawSurface is true only in the emergency fallback path
	// (spec §4.2 step 4: "using the host's draw surface is an emergency
	// last resort"), when neither a pbuffer nor surfaceless mode could be
	// established.
	usesHostDrawSurface bool
}

// NewContext implements the discovery protocol from spec §4.2: it
// snapshots the host's current display/context, binds the ES API, chooses
// a config compatible with the host's (preferring an exact config-id
// match), creates a drawable, and creates a sharing context.
func NewContext() (*Context, error) {
	if err := Init(); err != nil {
		return nil, err
	}

	host := SnapshotCurrentState()
	if host.Display == NoDisplay || host.Context == NoContext {
		return nil, fmt.Errorf("egl: no host context is current on this thread")
	}

	if BindAPI(OpenGLESAPI) == False {
		return nil, fmt.Errorf("eglBindAPI(OPENGL_ES_API) failed: egl error 0x%x", GetError())
	}

	config, esVersion, err := chooseConfig(host)
	if err != nil {
		return nil, err
	}

	c := &Context{host: host, display: host.Display, config: config, kind: DetectWindowKind()}

	c.pbuffer, c.usesHostDrawSurface = createDrawable(host.Display, config, host.Draw)

	ctx, err := createSharingContext(host.Display, config, host.Context, esVersion)
	if err != nil {
		if c.pbuffer != NoSurface {
			DestroySurface(host.Display, c.pbuffer)
		}
		return nil, err
	}
	c.context = ctx

	if err := c.MakeCurrent(); err != nil {
		c.Destroy()
		return nil, fmt.Errorf("producer context failed first activation: %w", err)
	}
	if err := host.MakeCurrent(); err != nil {
		return nil, fmt.Errorf("failed to restore host state after probe activation: %w", err)
	}

	return c, nil
}

// chooseConfig queries the host context's config id and tries it first;
// on failure it falls back through WINDOW+PBUFFER/ES3, then ES2, then
// PBUFFER-only variants, returning the first match and the ES version it
// was chosen for.
func chooseConfig(host HostState) (EGLConfig, int, error) {
	var hostConfigID EGLInt
	if QueryContext(host.Display, host.Context, ConfigID, &hostConfigID) != False {
		attribs := []EGLInt{ConfigID, hostConfigID, None}
		if cfg, ok := tryChooseConfig(host.Display, attribs); ok {
			return cfg, hostClientVersion(host), nil
		}
	}

	candidates := []struct {
		surfaceBit EGLInt
		renderable EGLInt
		esVersion  int
	}{
		{WindowBit | PbufferBit, OpenGLES3Bit, 3},
		{WindowBit | PbufferBit, OpenGLES2Bit, 2},
		{PbufferBit, OpenGLES3Bit, 3},
		{PbufferBit, OpenGLES2Bit, 2},
	}

	for _, cand := range candidates {
		attribs := []EGLInt{
			SurfaceType, cand.surfaceBit,
			RenderableType, cand.renderable,
			RedSize, 8, GreenSize, 8, BlueSize, 8, AlphaSize, 8,
			None,
		}
		if cfg, ok := tryChooseConfig(host.Display, attribs); ok {
			return cfg, cand.esVersion, nil
		}
	}

	return EGLConfig(0), 0, fmt.Errorf("egl: no compatible config found (last error 0x%x)", GetError())
}

func hostClientVersion(host HostState) int {
	var version EGLInt
	if QueryContext(host.Display, host.Context, ContextClientVersion, &version) == False {
		return 2
	}
	if version >= 3 {
		return 3
	}
	return 2
}

func tryChooseConfig(display EGLDisplay, attribs []EGLInt) (EGLConfig, bool) {
	var config EGLConfig
	var numConfig EGLInt
	if ChooseConfig(display, &attribs[0], &config, 1, &numConfig) == False || numConfig == 0 {
		return 0, false
	}
	return config, true
}

// createDrawable implements spec §4.2 step 4: prefer a 1x1 pbuffer, then
// surfaceless (NO_SURFACE), and only as an emergency last resort reuse the
// host's draw surface (usesHostDrawSurface=true in that case; the producer
// context then never destroys that surface).
func createDrawable(display EGLDisplay, config EGLConfig, hostDraw EGLSurface) (pbuffer EGLSurface, usesHostDrawSurface bool) {
	var surfaceType EGLInt
	if GetConfigAttrib(display, config, SurfaceType, &surfaceType) != False && surfaceType&PbufferBit != 0 {
		attribs := []EGLInt{Width, 1, Height, 1, None}
		if pb := CreatePbufferSurface(display, config, &attribs[0]); pb != NoSurface {
			return pb, false
		}
	}

	// Surfaceless (NO_SURFACE) is valid only when the config was not
	// restricted to WINDOW-only surfaces; our candidate attribute lists
	// above always include PBUFFER or accept either, so this is safe.
	if hostDraw == NoSurface || strings.Contains(QueryString(display, Extensions), "EGL_KHR_surfaceless_context") {
		return NoSurface, false
	}

	return hostDraw, true
}

// createSharingContext creates the producer context sharing with
// hostContext, requesting ES2 first and retrying at ES3 only when the
// config advertised ES3 support (per spec §4.2 step 5).
func createSharingContext(display EGLDisplay, config EGLConfig, hostContext EGLContext, esVersion int) (EGLContext, error) {
	versions := []int{2}
	if esVersion >= 3 {
		versions = []int{2, 3}
	}

	var lastErr EGLInt
	for _, v := range versions {
		attribs := []EGLInt{ContextClientVersion, EGLInt(v), None}
		ctx := CreateContext(display, config, hostContext, &attribs[0])
		if ctx != NoContext {
			return ctx, nil
		}
		lastErr = GetError()
	}
	return NoContext, fmt.Errorf("eglCreateContext failed: egl error 0x%x", lastErr)
}

// MakeCurrent activates the producer context on the calling thread. The
// caller must already have snapshotted whatever was current before, and
// is responsible for restoring it afterward (spec §4.2: "save host state...
// restore host state").
func (c *Context) MakeCurrent() error {
	surface := c.pbuffer
	if MakeCurrent(c.display, surface, surface, c.context) == False {
		return fmt.Errorf("eglMakeCurrent(producer) failed: egl error 0x%x", GetError())
	}
	return nil
}

// Display returns the (host-owned) EGL display this context was created on.
func (c *Context) Display() EGLDisplay { return c.display }

// EGLContext returns the raw producer EGLContext handle, for use as the
// shareContext argument when creating further sharing contexts, or for
// constructing shareable images.
func (c *Context) EGLContext() EGLContext { return c.context }

// Kind reports the detected windowing system, for diagnostics.
func (c *Context) Kind() WindowKind { return c.kind }

// Destroy releases everything this Context owns: the context itself, and
// its pbuffer surface if one was created. It never destroys the host's
// display or surfaces — those are not owned by the producer.
func (c *Context) Destroy() {
	if c.context != NoContext {
		DestroyContext(c.display, c.context)
		c.context = NoContext
	}
	if c.pbuffer != NoSurface && !c.usesHostDrawSurface {
		DestroySurface(c.display, c.pbuffer)
		c.pbuffer = NoSurface
	}
}
