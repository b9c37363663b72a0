// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build linux

package softwarefallback

import "testing"

// Seed scenario 6: a 4000x3000 source with a 1920x1080 maximum clamps to
// 1440x1080, height-bound, preserving aspect ratio.
func TestClampToMaxHeightBound(t *testing.T) {
	w, h := ClampToMax(4000, 3000)
	if w != 1440 || h != 1080 {
		t.Fatalf("ClampToMax(4000, 3000) = (%d, %d), want (1440, 1080)", w, h)
	}
}

// A width-bound source clamps against MaxWidth instead.
func TestClampToMaxWidthBound(t *testing.T) {
	w, h := ClampToMax(3840, 1000)
	if w != MaxWidth {
		t.Fatalf("ClampToMax(3840, 1000) width = %d, want %d", w, MaxWidth)
	}
	wantH := int(float64(1000) * (float64(MaxWidth) / float64(3840)))
	if h != wantH {
		t.Fatalf("ClampToMax(3840, 1000) height = %d, want %d", h, wantH)
	}
}

// A source already within bounds is returned unchanged.
func TestClampToMaxWithinBounds(t *testing.T) {
	w, h := ClampToMax(640, 360)
	if w != 640 || h != 360 {
		t.Fatalf("ClampToMax(640, 360) = (%d, %d), want (640, 360)", w, h)
	}
}

func TestClampToMaxZeroDimension(t *testing.T) {
	if w, h := ClampToMax(0, 100); w != 0 || h != 0 {
		t.Fatalf("ClampToMax(0, 100) = (%d, %d), want (0, 0)", w, h)
	}
}
