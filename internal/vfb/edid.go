package vfb

import "fmt"

const edidSize = 128

// cea1080p is the CEA-861 1920x1080@60 detailed timing descriptor
var cea1080p = [18]byte{
	0x02, 0x3A, 0x80, 0x18, 0x71, 0x38, 0x2D, 0x40,
	0x58, 0x2C, 0x45, 0x00, 0x0F, 0x28, 0x21, 0x00, 0x00, 0x1E,
}

// EDID builds a 128-byte EDID 1.3 block advertising geom's resolution at
// 60 Hz as the preferred mode.
func EDID(geom Geometry, name string) ([]byte, error) {
	if geom.Width <= 0 || geom.Height <= 0 || geom.Width > 4095 || geom.Height > 4095 {
		return nil, fmt.Errorf("mode %dx%d cannot be described by EDID", geom.Width, geom.Height)
	}

	e := make([]byte, edidSize)

	copy(e[0:8], []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00})

	// Manufacturer "PRJ", 5 bits per letter, big-endian
	e[8], e[9] = 0x42, 0x4A
	e[10], e[11] = 0x01, 0x00 // product code
	e[16] = 1                 // week
	e[17] = 2024 - 1990       // year
	e[18], e[19] = 1, 3       // EDID 1.3

	e[20] = 0x80 // digital input
	wmm, hmm := physicalSize(geom)
	e[21] = byte(min(wmm/10, 255))
	e[22] = byte(min(hmm/10, 255))
	e[23] = 0x78 // gamma 2.2
	e[24] = 0x0A // RGB, preferred timing in first descriptor

	// sRGB chromaticity
	copy(e[25:35], []byte{0xEE, 0x91, 0xA3, 0x54, 0x4C, 0x99, 0x26, 0x0F, 0x50, 0x54})

	// no established timings, unused standard timings
	for i := 38; i < 54; i += 2 {
		e[i], e[i+1] = 0x01, 0x01
	}

	if geom.Width == 1920 && geom.Height == 1080 {
		copy(e[54:72], cea1080p[:])
	} else {
		dtd, err := reducedBlanking(geom.Width, geom.Height, wmm, hmm)
		if err != nil {
			return nil, err
		}
		copy(e[54:72], dtd[:])
	}

	copy(e[72:90], nameDescriptor(name))
	copy(e[90:108], dummyDescriptor())
	copy(e[108:126], dummyDescriptor())

	e[126] = 0 // no extensions

	var sum byte
	for _, b := range e[:127] {
		sum += b
	}
	e[127] = -sum
	return e, nil
}

// physicalSize assumes 96 DPI
func physicalSize(geom Geometry) (wmm, hmm int) {
	return min(geom.Width*254/960, 4095), min(geom.Height*254/960, 4095)
}

// reducedBlanking builds a 60 Hz detailed timing with CVT reduced-blanking style porches
func reducedBlanking(w, h, wmm, hmm int) ([18]byte, error) {
	const (
		hBlank  = 160
		hFront  = 48
		hSync   = 32
		vFront  = 3
		vSync   = 5
		refresh = 60
	)
	// at least 460us of vertical blanking
	vBlank := max(h*276/9724+1, vFront+vSync+6)

	htotal := w + hBlank
	vtotal := h + vBlank
	clock := htotal * vtotal * refresh / 10000 // 10 kHz units
	if clock > 0xFFFF {
		return [18]byte{}, fmt.Errorf("mode %dx%d exceeds the EDID pixel clock range", w, h)
	}

	var d [18]byte
	d[0], d[1] = byte(clock), byte(clock>>8)
	d[2] = byte(w)
	d[3] = byte(hBlank)
	d[4] = byte(w>>8)<<4 | byte(hBlank>>8)
	d[5] = byte(h)
	d[6] = byte(vBlank)
	d[7] = byte(h>>8)<<4 | byte(vBlank>>8)
	d[8] = byte(hFront)
	d[9] = byte(hSync)
	d[10] = byte(vFront)<<4 | byte(vSync)
	d[11] = 0
	d[12] = byte(wmm)
	d[13] = byte(hmm)
	d[14] = byte(wmm>>8)<<4 | byte(hmm>>8)
	d[17] = 0x1A // digital separate sync, +hsync, -vsync
	return d, nil
}

func nameDescriptor(name string) []byte {
	d := make([]byte, 18)
	d[3] = 0xFC
	text := []byte(name)
	if len(text) > 13 {
		text = text[:13]
	}
	n := copy(d[5:], text)
	if n < 13 {
		d[5+n] = 0x0A
		for i := 5 + n + 1; i < 18; i++ {
			d[i] = 0x20
		}
	}
	return d
}

func dummyDescriptor() []byte {
	d := make([]byte, 18)
	d[3] = 0x10
	return d
}
