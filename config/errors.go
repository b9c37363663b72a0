// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package config

import "errors"

// ErrInvalidDimensions is returned by Options.Validate when Width or
// Height is negative.
var ErrInvalidDimensions = errors.New("config: width and height must be >= 0")
