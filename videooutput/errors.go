// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build linux

package videooutput

import "errors"

var (
	// ErrDisposed is returned by SetDimensions when called after Dispose.
	ErrDisposed = errors.New("videooutput: already disposed")

	// ErrDecoderUnavailable is returned by New when the decoder Factory
	// itself fails; unlike an HW init failure, there is no fallback from
	// this (spec §7: with no decoder there is nothing to render).
	ErrDecoderUnavailable = errors.New("videooutput: decoder render context creation failed")
)
