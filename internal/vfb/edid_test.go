package vfb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checksum(e []byte) byte {
	var sum byte
	for _, b := range e {
		sum += b
	}
	return sum
}

func TestEDID1080p(t *testing.T) {
	e, err := EDID(Geometry{Width: 1920, Height: 1080, BytesPerPixel: 4}, "swayproj")
	require.NoError(t, err)
	require.Len(t, e, 128)

	assert.Equal(t, []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}, e[:8])
	assert.Equal(t, []byte{1, 3}, e[18:20])
	assert.Equal(t, cea1080p[:], e[54:72])
	assert.Equal(t, byte(0), e[126])
	assert.Equal(t, byte(0), checksum(e))

	name := e[72:90]
	assert.Equal(t, byte(0xFC), name[3])
	assert.Equal(t, "swayproj\n    ", string(name[5:]))
}

func TestEDIDReducedBlanking(t *testing.T) {
	e, err := EDID(Geometry{Width: 1280, Height: 720, BytesPerPixel: 4}, "a very long display name")
	require.NoError(t, err)
	assert.Equal(t, byte(0), checksum(e))

	dtd := e[54:72]
	hActive := int(dtd[2]) | int(dtd[4]>>4)<<8
	vActive := int(dtd[5]) | int(dtd[7]>>4)<<8
	assert.Equal(t, 1280, hActive)
	assert.Equal(t, 720, vActive)
	assert.NotZero(t, int(dtd[0])|int(dtd[1])<<8, "pixel clock")

	assert.Equal(t, "a very long d", string(e[77:90]), "name truncated to 13 bytes")
}

func TestEDIDRejectsOversize(t *testing.T) {
	_, err := EDID(Geometry{Width: 5000, Height: 1000, BytesPerPixel: 4}, "x")
	assert.Error(t, err)
}
