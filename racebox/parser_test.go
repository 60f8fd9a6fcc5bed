package racebox

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vx220/vxdash/telemetry"
)

func rawPacket() []byte {
	data := make([]byte, PacketLen)
	copy(data, Preamble[:])
	return data
}

func i32bits(v int32) uint32 { return uint32(v) }
func i16bits(v int16) uint16 { return uint16(v) }

func TestParseScaling(t *testing.T) {
	data := rawPacket()
	le := binary.LittleEndian
	le.PutUint32(data[offLatitude:], 481234560)
	le.PutUint32(data[offLongitude:], uint32(116543210))
	le.PutUint32(data[offSpeed:], 1000)
	le.PutUint32(data[offHeading:], 9000000)
	le.PutUint32(data[offWGSAlt:], 500250)
	le.PutUint32(data[offMSLAlt:], i32bits(-1500))
	le.PutUint32(data[offHorizAcc:], 1200)
	le.PutUint32(data[offVertAcc:], 1800)
	le.PutUint32(data[offSpeedAcc:], 200)
	le.PutUint32(data[offHeadingAcc:], 50000)
	le.PutUint16(data[offPDOP:], 120)
	le.PutUint16(data[offGForce:], i16bits(-1250))
	le.PutUint16(data[offGForce+2:], 300)
	le.PutUint16(data[offGForce+4:], 1000)
	le.PutUint16(data[offRotationRate:], i16bits(-4550))
	le.PutUint16(data[offRotationRate+2:], 25)
	le.PutUint16(data[offRotationRate+4:], 0)

	s, err := Parse(data)
	require.NoError(t, err)
	assert.InDelta(t, 48.123456, s.Latitude, 1e-9)
	assert.InDelta(t, 11.654321, s.Longitude, 1e-9)
	assert.InDelta(t, 3.6, s.Speed, 1e-9)
	assert.InDelta(t, 90.0, s.Heading, 1e-9)
	assert.InDelta(t, 500.25, s.WGSAltitude, 1e-9)
	assert.InDelta(t, -1.5, s.MSLAltitude, 1e-9)
	assert.InDelta(t, 1.2, s.HorizontalAccuracy, 1e-9)
	assert.InDelta(t, 1.8, s.VerticalAccuracy, 1e-9)
	assert.InDelta(t, 0.2, s.SpeedAccuracy, 1e-9)
	assert.InDelta(t, 0.5, s.HeadingAccuracy, 1e-9)
	assert.InDelta(t, 1.2, s.PDOP, 1e-9)
	assert.InDelta(t, -1.25, s.GForceX, 1e-9)
	assert.InDelta(t, 0.3, s.GForceY, 1e-9)
	assert.InDelta(t, 1.0, s.GForceZ, 1e-9)
	assert.InDelta(t, -45.5, s.RotRateX, 1e-9)
	assert.InDelta(t, 0.25, s.RotRateY, 1e-9)
	assert.Zero(t, s.RotRateZ)
}

func TestParseDateAndFix(t *testing.T) {
	data := rawPacket()
	binary.LittleEndian.PutUint32(data[offTimestamp:], 123456)
	binary.LittleEndian.PutUint16(data[offYear:], 2024)
	copy(data[offMonth:], []byte{6, 1, 12, 34, 56})
	data[offValidity] = validTimeBit
	data[offFixStatus] = 3
	data[offFixFlags] = fixOKBit
	data[offSatellites] = 14

	s, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(123456), s.TimestampMs)
	assert.Equal(t, uint16(2024), s.Year)
	assert.Equal(t, []uint8{6, 1, 12, 34, 56}, []uint8{s.Month, s.Day, s.Hour, s.Minute, s.Second})
	assert.False(t, s.ValidDate)
	assert.True(t, s.ValidTime)
	assert.Equal(t, uint8(3), s.FixStatus)
	assert.True(t, s.FixOK)
	assert.Equal(t, uint8(14), s.Satellites)
}

func TestParseRejects(t *testing.T) {
	s, err := Parse(rawPacket()[:PacketLen-1])
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrShortPayload)

	s, err = Parse(nil)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrShortPayload)

	for i := range Preamble {
		data := rawPacket()
		data[i] ^= 0xFF
		s, err = Parse(data)
		assert.Nil(t, s)
		assert.ErrorIs(t, err, ErrPreamble, "preamble byte %d", i)
	}
}

func TestParseAcceptsLongerPayload(t *testing.T) {
	data := append(rawPacket(), 0xDE, 0xAD, 0xBE, 0xEF)
	binary.LittleEndian.PutUint32(data[offLatitude:], 10000000)
	s, err := Parse(data)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.Latitude, 1e-9)
}

func TestEncodeRoundTrip(t *testing.T) {
	in := telemetry.PositionSample{
		TimestampMs:        987654,
		Year:               2024,
		Month:              6,
		Day:                1,
		Hour:               12,
		Minute:             0,
		Second:             30,
		ValidDate:          true,
		ValidTime:          true,
		FixStatus:          3,
		FixOK:              true,
		Satellites:         12,
		Latitude:           48.123456,
		Longitude:          -11.654321,
		WGSAltitude:        500.0,
		MSLAltitude:        495.125,
		HorizontalAccuracy: 1.0,
		VerticalAccuracy:   1.5,
		Speed:              123.4,
		SpeedAccuracy:      0.2,
		Heading:            271.5,
		HeadingAccuracy:    0.5,
		PDOP:               1.2,
		GForceX:            -0.75,
		GForceY:            1.1,
		GForceZ:            0.98,
		RotRateX:           10.5,
		RotRateY:           -3.25,
		RotRateZ:           0.01,
	}

	data := Encode(in)
	require.Len(t, data, PacketLen)
	out, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, in.TimestampMs, out.TimestampMs)
	assert.Equal(t, in.Year, out.Year)
	assert.Equal(t, in.Second, out.Second)
	assert.Equal(t, in.ValidDate, out.ValidDate)
	assert.Equal(t, in.ValidTime, out.ValidTime)
	assert.Equal(t, in.FixOK, out.FixOK)
	assert.Equal(t, in.Satellites, out.Satellites)
	assert.InDelta(t, in.Latitude, out.Latitude, 1e-7)
	assert.InDelta(t, in.Longitude, out.Longitude, 1e-7)
	assert.InDelta(t, in.WGSAltitude, out.WGSAltitude, 1e-3)
	assert.InDelta(t, in.MSLAltitude, out.MSLAltitude, 1e-3)
	assert.InDelta(t, in.HorizontalAccuracy, out.HorizontalAccuracy, 1e-3)
	assert.InDelta(t, in.VerticalAccuracy, out.VerticalAccuracy, 1e-3)
	assert.InDelta(t, in.Speed, out.Speed, 0.0036)
	assert.InDelta(t, in.SpeedAccuracy, out.SpeedAccuracy, 1e-3)
	assert.InDelta(t, in.Heading, out.Heading, 1e-5)
	assert.InDelta(t, in.HeadingAccuracy, out.HeadingAccuracy, 1e-5)
	assert.InDelta(t, in.PDOP, out.PDOP, 0.01)
	assert.InDelta(t, in.GForceX, out.GForceX, 1e-3)
	assert.InDelta(t, in.GForceY, out.GForceY, 1e-3)
	assert.InDelta(t, in.GForceZ, out.GForceZ, 1e-3)
	assert.InDelta(t, in.RotRateX, out.RotRateX, 0.01)
	assert.InDelta(t, in.RotRateY, out.RotRateY, 0.01)
	assert.InDelta(t, in.RotRateZ, out.RotRateZ, 0.01)
}
