// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package fb drives the frame-buffer writer (RX side) and reader (TX side).
package fb

import (
	"context"
	"fmt"
)

// Format is the memory video format code of the frame-buffer cores.
type Format uint32

const (
	RGBX8  Format = 10
	YUVX8  Format = 11
	YUYV8  Format = 12
	RGBX10 Format = 15
	YUVX10 Format = 16
	RGB8   Format = 20
	YUV8   Format = 21
)

// Bytes per pixel in memory.
func (f Format) Bytes() int {
	switch f {
	case YUYV8:
		return 2
	case RGB8, YUV8:
		return 3
	}
	return 4
}

func (f Format) String() string {
	switch f {
	case RGBX8:
		return "RGBX8"
	case YUVX8:
		return "YUVX8"
	case YUYV8:
		return "YUYV8"
	case RGBX10:
		return "RGBX10"
	case YUVX10:
		return "YUVX10"
	case RGB8:
		return "RGB8"
	case YUV8:
		return "YUV8"
	}
	return fmt.Sprint("format(", uint32(f), ")")
}

// MMWidth is the memory bus width in bytes; strides are multiples of it.
const MMWidth = 32

// Stride returns the line stride in bytes of width pixels of f.
func Stride(width int, f Format) int {
	return (width*f.Bytes() + MMWidth - 1) / MMWidth * MMWidth
}

// Stream is one frame-buffer configuration.
type Stream struct {
	Width, Height int
	Stride        int
	Format        Format
	PPC           int
}

func (s Stream) String() string {
	return fmt.Sprintf("%dx%d stride %d %v %dppc", s.Width, s.Height,
		s.Stride, s.Format, s.PPC)
}

// Driver is a frame-buffer writer or reader.
type Driver interface {
	Configure(Stream) error
	Start()
	Stop()
	// WaitIdle waits, bounded, for the current frame to finish after a
	// Stop.
	WaitIdle(ctx context.Context) error
}
