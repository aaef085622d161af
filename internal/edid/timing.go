// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package edid

// Timing is a detailed timing descriptor.
type Timing struct {
	PixelKHz        int
	HActive, HBlank int
	VActive, VBlank int
	HSyncOff, HSync int
	VSyncOff, VSync int
}

// Detailed decodes the first detailed timing descriptor.
func Detailed(b []byte) (Timing, bool) {
	var t Timing
	if len(b) < BlockSize {
		return t, false
	}
	d := b[DTD : DTD+18]
	t.PixelKHz = (int(d[0]) | int(d[1])<<8) * 10
	if t.PixelKHz == 0 {
		return t, false
	}
	t.HActive = int(d[2]) | int(d[4]&0xf0)<<4
	t.HBlank = int(d[3]) | int(d[4]&0x0f)<<8
	t.VActive = int(d[5]) | int(d[7]&0xf0)<<4
	t.VBlank = int(d[6]) | int(d[7]&0x0f)<<8
	t.HSyncOff = int(d[8]) | int(d[11]&0xc0)<<2
	t.HSync = int(d[9]) | int(d[11]&0x30)<<4
	t.VSyncOff = int(d[10]>>4) | int(d[11]&0x0c)<<2
	t.VSync = int(d[10]&0x0f) | int(d[11]&0x03)<<4
	return t, true
}

// Make builds a valid EDID 1.4 image with t as the preferred timing, a
// digital input of bpc bits per color and ext empty extension blocks.
func Make(t Timing, bpc, ext int) []byte {
	b := make([]byte, BlockSize*(1+ext))
	copy(b, header)
	b[18], b[19] = 1, 4
	in := uint8(0x80)
	switch bpc {
	case 6:
		in |= 1 << 4
	case 8:
		in |= 2 << 4
	case 10:
		in |= 3 << 4
	case 12:
		in |= 4 << 4
	}
	b[Input] = in
	d := b[DTD : DTD+18]
	pclk := t.PixelKHz / 10
	d[0], d[1] = uint8(pclk), uint8(pclk>>8)
	d[2], d[3] = uint8(t.HActive), uint8(t.HBlank)
	d[4] = uint8(t.HActive>>8)<<4 | uint8(t.HBlank>>8)&0xf
	d[5], d[6] = uint8(t.VActive), uint8(t.VBlank)
	d[7] = uint8(t.VActive>>8)<<4 | uint8(t.VBlank>>8)&0xf
	d[8], d[9] = uint8(t.HSyncOff), uint8(t.HSync)
	d[10] = uint8(t.VSyncOff&0xf)<<4 | uint8(t.VSync&0xf)
	d[11] = uint8(t.HSyncOff>>8&3)<<6 | uint8(t.HSync>>8&3)<<4 |
		uint8(t.VSyncOff>>4&3)<<2 | uint8(t.VSync>>4&3)
	b[ExtensionCount] = uint8(ext)
	for i := 0; i <= ext; i++ {
		blk := b[i*BlockSize : (i+1)*BlockSize]
		if i > 0 {
			blk[0] = 0x02
		}
		blk[BlockSize-1] = 0
		blk[BlockSize-1] = -Sum(blk)
	}
	return b
}

// UHD30 is 3840x2160 at 30 Hz.
var UHD30 = Timing{
	PixelKHz: 297000,
	HActive:  3840,
	HBlank:   560,
	VActive:  2160,
	VBlank:   90,
	HSyncOff: 176,
	HSync:    88,
	VSyncOff: 8,
	VSync:    10,
}

// FHD60 is 1920x1080 at 60 Hz.
var FHD60 = Timing{
	PixelKHz: 148500,
	HActive:  1920,
	HBlank:   280,
	VActive:  1080,
	VBlank:   45,
	HSyncOff: 88,
	HSync:    44,
	VSyncOff: 4,
	VSync:    5,
}
